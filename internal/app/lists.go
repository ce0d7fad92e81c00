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

// ListLists returns the lists of a board the caller owns, ordered by position.
func (s *Service) ListLists(ctx context.Context, principal, boardID string) ([]store.List, error) {
	if strings.TrimSpace(boardID) == "" {
		return nil, domainError(KindValidationFailed, "VALIDATION_ERROR", "boardId is required", nil)
	}
	if _, err := s.store.GetOwnedBoard(ctx, boardID, principal); err != nil {
		return nil, translate(err, "board")
	}
	lists, err := s.store.ListLists(ctx, boardID)
	if err != nil {
		return nil, translate(err, "list")
	}
	return lists, nil
}

func (s *Service) CreateList(ctx context.Context, principal string, input CreateListInput) (store.List, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if err := s.validate(input); err != nil {
		return store.List{}, err
	}
	if _, err := s.guard.AuthorizeBoard(ctx, input.BoardID, principal); err != nil {
		return store.List{}, translate(err, "board")
	}
	list, err := s.store.AppendList(ctx, store.List{
		ID:          util.NewID("lst"),
		BoardID:     input.BoardID,
		Title:       input.Title,
		Description: input.Description,
	}, input.Position)
	if err != nil {
		return store.List{}, translate(err, "list")
	}
	metrics.ObservePositionWrite("list", "insert")
	return list, nil
}

func (s *Service) UpdateList(ctx context.Context, principal, listID string, input UpdateListInput) (store.List, error) {
	input.Title = trimmed(input.Title)
	input.Description = trimmed(input.Description)
	if err := s.validate(input); err != nil {
		return store.List{}, err
	}
	if _, err := s.guard.AuthorizeList(ctx, listID, principal); err != nil {
		return store.List{}, translate(err, "list")
	}
	list, err := s.store.UpdateList(ctx, listID, store.ListPatch{
		Title:       input.Title,
		Description: input.Description,
		IsArchived:  input.IsArchived,
	})
	if err != nil {
		return store.List{}, translate(err, "list")
	}
	if input.Title != nil {
		s.reindexList(ctx, listID)
	}
	return list, nil
}

// reindexList refreshes the search records of every card in the list, which
// carry the list title.
func (s *Service) reindexList(ctx context.Context, listID string) {
	if s.search == nil {
		return
	}
	cards, err := s.store.ListCards(ctx, listID)
	if err != nil {
		s.logger.WithError(err).WithField("list_id", listID).Warn("load cards for reindexing")
		return
	}
	for _, card := range cards {
		s.indexCard(ctx, card.ID)
	}
}

// DeleteList removes the list and its cards, then closes the gap in the board.
func (s *Service) DeleteList(ctx context.Context, principal, listID string) error {
	if _, err := s.guard.AuthorizeList(ctx, listID, principal); err != nil {
		return translate(err, "list")
	}
	var cardIDs []string
	if s.search != nil {
		cards, err := s.store.ListCards(ctx, listID)
		if err != nil {
			return translate(err, "list")
		}
		for _, card := range cards {
			cardIDs = append(cardIDs, card.ID)
		}
	}
	if err := s.store.RemoveList(ctx, listID); err != nil {
		return translate(err, "list")
	}
	metrics.ObservePositionWrite("list", "remove")
	if s.search != nil {
		s.search.DeleteCards(cardIDs...)
	}
	return nil
}

// MoveList reorders a list inside its board and returns the board's lists in
// their new order. A target past the end lands in the last slot.
func (s *Service) MoveList(ctx context.Context, principal, listID string, input MoveListInput) (lists []store.List, err error) {
	ctx, span := s.startSpan(ctx, "Service.MoveList",
		attribute.String("list.id", listID),
		attribute.Int("move.requested", input.Position),
	)
	defer func() { endSpan(span, err) }()

	if err := s.validate(input); err != nil {
		metrics.ObserveMove("list", metrics.ResultRejected)
		return nil, err
	}
	access, err := s.guard.AuthorizeList(ctx, listID, principal)
	if err != nil {
		metrics.ObserveMove("list", metrics.ResultRejected)
		return nil, translate(err, "list")
	}

	boardID := access.Board.ID
	n, err := s.store.CountLists(ctx, boardID)
	if err != nil {
		metrics.ObserveMove("list", metrics.ResultError)
		return nil, translate(err, "list")
	}
	from := access.List.Position

	log := s.logger.WithField("list_id", listID).WithField("board_id", boardID)
	if position.Clamp(input.Position, n) == from {
		metrics.ObserveMove("list", metrics.ResultNoop)
		log.Debug("list move is a no-op")
	} else {
		moved, err := s.store.MoveList(ctx, store.ListMove{
			ListID:    listID,
			BoardID:   boardID,
			Requested: input.Position,
		})
		if err != nil {
			err = translate(err, "list")
			metrics.ObserveMove("list", moveFailure(err))
			return nil, err
		}
		span.SetAttributes(attribute.Int("move.target", moved.Position))
		metrics.ObserveMove("list", metrics.ResultMoved)
		metrics.ObservePositionWrite("list", "move")
		log.WithField("from", from).WithField("to", moved.Position).Info("list moved")
	}

	lists, err = s.store.ListLists(ctx, boardID)
	if err != nil {
		return nil, translate(err, "list")
	}
	return lists, nil
}

func moveFailure(err error) string {
	if de, ok := err.(*DomainError); ok {
		switch de.Kind {
		case KindConflict:
			return metrics.ResultConflict
		case KindStoreFailure:
			return metrics.ResultError
		}
	}
	return metrics.ResultRejected
}
