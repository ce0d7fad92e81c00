package app

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"taskboard/api/internal/metrics"
	"taskboard/api/internal/position"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

func (s *Service) ListCards(ctx context.Context, principal, listID string) ([]store.Card, error) {
	if strings.TrimSpace(listID) == "" {
		return nil, domainError(KindValidationFailed, "VALIDATION_ERROR", "listId is required", nil)
	}
	if _, err := s.guard.AuthorizeList(ctx, listID, principal); err != nil {
		return nil, translate(err, "list")
	}
	cards, err := s.store.ListCards(ctx, listID)
	if err != nil {
		return nil, translate(err, "card")
	}
	return cards, nil
}

func (s *Service) GetCard(ctx context.Context, principal, cardID string) (store.Card, error) {
	access, err := s.guard.AuthorizeCard(ctx, cardID, principal)
	if err != nil {
		return store.Card{}, translate(err, "card")
	}
	return access.Card, nil
}

func (s *Service) CreateCard(ctx context.Context, principal string, input CreateCardInput) (store.Card, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if err := s.validate(input); err != nil {
		return store.Card{}, err
	}
	if _, err := s.guard.AuthorizeList(ctx, input.ListID, principal); err != nil {
		return store.Card{}, translate(err, "list")
	}
	card, err := s.store.AppendCard(ctx, store.Card{
		ID:          util.NewID("crd"),
		ListID:      input.ListID,
		Title:       input.Title,
		Description: input.Description,
		DueDate:     input.DueDate,
		CreatedBy:   principal,
	}, input.Position)
	if err != nil {
		return store.Card{}, translate(err, "card")
	}
	metrics.ObservePositionWrite("card", "insert")
	s.indexCard(ctx, card.ID)
	return card, nil
}

func (s *Service) UpdateCard(ctx context.Context, principal, cardID string, input UpdateCardInput) (store.Card, error) {
	input.Title = trimmed(input.Title)
	input.Description = trimmed(input.Description)
	if err := s.validate(input); err != nil {
		return store.Card{}, err
	}
	if _, err := s.guard.AuthorizeCard(ctx, cardID, principal); err != nil {
		return store.Card{}, translate(err, "card")
	}
	patch := store.CardPatch{
		Title:       input.Title,
		Description: input.Description,
	}
	if input.DueDate.Set {
		patch.DueDate = input.DueDate.Value
		patch.ClearDueDate = input.DueDate.Value == nil
	}
	card, err := s.store.UpdateCard(ctx, cardID, patch)
	if err != nil {
		return store.Card{}, translate(err, "card")
	}
	s.indexCard(ctx, card.ID)
	return card, nil
}

func (s *Service) ToggleCardComplete(ctx context.Context, principal, cardID string) (store.Card, error) {
	if _, err := s.guard.AuthorizeCard(ctx, cardID, principal); err != nil {
		return store.Card{}, translate(err, "card")
	}
	card, err := s.store.ToggleCardCompleted(ctx, cardID)
	if err != nil {
		return store.Card{}, translate(err, "card")
	}
	s.indexCard(ctx, card.ID)
	return card, nil
}

// DeleteCard removes the card, compacts its list and decrements the list's
// card count.
func (s *Service) DeleteCard(ctx context.Context, principal, cardID string) error {
	if _, err := s.guard.AuthorizeCard(ctx, cardID, principal); err != nil {
		return translate(err, "card")
	}
	if err := s.store.RemoveCard(ctx, cardID); err != nil {
		return translate(err, "card")
	}
	metrics.ObservePositionWrite("card", "remove")
	if s.search != nil {
		s.search.DeleteCards(cardID)
	}
	return nil
}

// MoveCard relocates a card within its list or into another list of the same
// board. Requests past the end of the destination are clamped to its last
// slot, which is n+1 when the card arrives from elsewhere. The store plans the
// final slot under its locks. Moving a card onto its current slot performs no
// writes.
func (s *Service) MoveCard(ctx context.Context, principal, cardID string, input MoveCardInput) (moved store.Card, err error) {
	ctx, span := s.startSpan(ctx, "Service.MoveCard",
		attribute.String("card.id", cardID),
		attribute.String("move.list_id", input.ListID),
		attribute.Int("move.requested", input.Position),
	)
	defer func() { endSpan(span, err) }()

	if err := s.validate(input); err != nil {
		metrics.ObserveMove("card", metrics.ResultRejected)
		return store.Card{}, err
	}
	src, err := s.guard.AuthorizeCard(ctx, cardID, principal)
	if err != nil {
		metrics.ObserveMove("card", metrics.ResultRejected)
		return store.Card{}, translate(err, "card")
	}
	dst, err := s.guard.AuthorizeList(ctx, input.ListID, principal)
	if err != nil {
		metrics.ObserveMove("card", metrics.ResultRejected)
		return store.Card{}, translate(err, "list")
	}
	if dst.Board.ID != src.Board.ID {
		metrics.ObserveMove("card", metrics.ResultRejected)
		return store.Card{}, invalidOperation("Cannot move card to a different board")
	}

	from := src.Card.Position
	sameList := dst.List.ID == src.List.ID
	log := s.logger.WithField("card_id", cardID).WithField("from_list_id", src.List.ID).WithField("to_list_id", dst.List.ID)
	if sameList {
		n, err := s.store.CountCards(ctx, dst.List.ID)
		if err != nil {
			metrics.ObserveMove("card", metrics.ResultError)
			return store.Card{}, translate(err, "card")
		}
		if position.Clamp(input.Position, n) == from {
			metrics.ObserveMove("card", metrics.ResultNoop)
			log.Debug("card move is a no-op")
			return src.Card, nil
		}
	}

	moved, err = s.store.MoveCard(ctx, store.CardMove{
		CardID:    cardID,
		ToListID:  dst.List.ID,
		Requested: input.Position,
	})
	if err != nil {
		err = translate(err, "card")
		metrics.ObserveMove("card", moveFailure(err))
		return store.Card{}, err
	}
	span.SetAttributes(attribute.Int("move.target", moved.Position))
	metrics.ObserveMove("card", metrics.ResultMoved)
	metrics.ObservePositionWrite("card", "move")
	log.WithField("from", from).WithField("to", moved.Position).Info("card moved")

	if moved.ListID != src.List.ID {
		s.indexCard(ctx, moved.ID)
	}
	return moved, nil
}
