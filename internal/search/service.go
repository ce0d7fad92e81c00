package search

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili  *Meili
	pgfts  Searcher
	loader func(context.Context) ([]CardRecord, error)
	logger logrus.FieldLogger
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS, logger logrus.FieldLogger) *Service {
	s := &Service{meili: meili, logger: logger}
	if pgfts != nil {
		s.pgfts = pgfts
		s.loader = pgfts.LoadAllRecords
	}
	return s
}

func (s *Service) meiliReady() bool {
	return s.meili != nil && s.meili.Healthy()
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
// Failures degrade to an empty response and are logged.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meiliReady() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.WithError(err).Warn("meilisearch error, falling back to pgfts")
	}
	if s.pgfts == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}

	results, total, err := s.pgfts.Search(ctx, q)
	if err != nil {
		s.logger.WithError(err).Error("pgfts search failed")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexCard pushes a card to Meilisearch without blocking the caller.
func (s *Service) IndexCard(card CardRecord) {
	if !s.meiliReady() {
		return
	}
	go func() {
		if err := s.meili.IndexCards([]CardRecord{card}); err != nil {
			s.logger.WithError(err).WithField("card_id", card.ID).Warn("index card")
		}
	}()
}

// DeleteCards removes cards from Meilisearch without blocking the caller.
func (s *Service) DeleteCards(ids ...string) {
	if !s.meiliReady() || len(ids) == 0 {
		return
	}
	go func() {
		for _, id := range ids {
			if err := s.meili.DeleteCard(id); err != nil {
				s.logger.WithError(err).WithField("card_id", id).Warn("delete card from index")
			}
		}
	}()
}

// ReindexAll reads every card from Postgres and pushes it to Meilisearch.
func (s *Service) ReindexAll(ctx context.Context) {
	if !s.meiliReady() || s.loader == nil {
		return
	}
	cards, err := s.loader(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("reindex load failed")
		return
	}
	if err := s.meili.IndexCards(cards); err != nil {
		s.logger.WithError(err).Warn("reindex cards")
		return
	}
	s.logger.WithField("cards", len(cards)).Info("search index rebuilt")
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
