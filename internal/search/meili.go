package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/sirupsen/logrus"
)

const idxCards = "taskboard_cards"

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  logrus.FieldLogger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the cards index.
// An unreachable server is not fatal: the client reports unhealthy and a
// background loop keeps probing.
func NewMeili(url, apiKey string, logger logrus.FieldLogger) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		logger: logger.WithField("component", "meilisearch"),
		done:   make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		m.logger.WithError(err).Warnf("meilisearch unavailable at %s", url)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: idxCards, PrimaryKey: "id"}); err != nil {
		m.logger.WithError(err).Debug("create cards index (may already exist)")
	}

	index := m.client.Index(idxCards)
	filterable := []interface{}{"ownerId", "boardId", "listId", "isCompleted"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.WithError(err).Warn("update filterable attributes")
	}
	searchable := []string{"title", "description", "listTitle"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.WithError(err).Warn("update searchable attributes")
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search runs the query against the cards index, always filtered by owner.
func (m *Meili) Search(_ context.Context, q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, errors.New("meilisearch unhealthy")
	}
	if q.OwnerID == "" {
		return nil, 0, errors.New("search requires an owner")
	}
	limit, offset := normalizePage(q)

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{{
			IndexUID:              idxCards,
			Query:                 q.Text,
			Limit:                 int64(limit),
			Offset:                int64(offset),
			Filter:                ownerFilter(q),
			AttributesToHighlight: []string{"title", "description"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		}},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit))
		}
	}
	return results, total, nil
}

func ownerFilter(q Query) []string {
	filters := []string{fmt.Sprintf("ownerId = %q", q.OwnerID)}
	if q.BoardID != "" {
		filters = append(filters, fmt.Sprintf("boardId = %q", q.BoardID))
	}
	return filters
}

func hitToResult(hit meili.Hit) Result {
	return Result{
		ID:          decodeString(hit, "id"),
		Title:       firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title")),
		Snippet:     firstNonBlank(decodeFormattedString(hit, "description"), decodeString(hit, "description")),
		ListID:      decodeString(hit, "listId"),
		ListTitle:   decodeString(hit, "listTitle"),
		BoardID:     decodeString(hit, "boardId"),
		IsCompleted: decodeBool(hit, "isCompleted"),
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeBool(hit meili.Hit, key string) bool {
	raw, ok := hit[key]
	if !ok {
		return false
	}
	var b bool
	_ = json.Unmarshal(raw, &b)
	return b
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]any
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	value, _ := formatted[key].(string)
	return strings.TrimSpace(value)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexCards adds or replaces cards in the index.
func (m *Meili) IndexCards(cards []CardRecord) error {
	if len(cards) == 0 {
		return nil
	}
	_, err := m.client.Index(idxCards).AddDocuments(cards, nil)
	return err
}

func (m *Meili) DeleteCard(id string) error {
	_, err := m.client.Index(idxCards).DeleteDocument(id, nil)
	return err
}
