package app

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"taskboard/api/internal/export"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

const defaultBackgroundColor = "#0079bf"

func (s *Service) ListBoards(ctx context.Context, principal string) ([]store.Board, error) {
	boards, err := s.store.ListBoards(ctx, principal)
	if err != nil {
		return nil, translate(err, "board")
	}
	return boards, nil
}

func (s *Service) CreateBoard(ctx context.Context, principal string, input CreateBoardInput) (store.Board, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if err := s.validate(input); err != nil {
		return store.Board{}, err
	}
	color := input.BackgroundColor
	if color == "" {
		color = defaultBackgroundColor
	}
	board, err := s.store.InsertBoard(ctx, store.Board{
		ID:              util.NewID("brd"),
		OwnerID:         principal,
		Title:           input.Title,
		Description:     input.Description,
		BackgroundColor: color,
		IsPrivate:       input.IsPrivate,
	})
	if err != nil {
		return store.Board{}, translate(err, "board")
	}
	return board, nil
}

// GetBoard returns the board with its lists and cards. Boards owned by
// someone else read as missing.
func (s *Service) GetBoard(ctx context.Context, principal, boardID string) (store.BoardDetail, error) {
	detail, err := s.store.GetBoardDetail(ctx, boardID, principal)
	if err != nil {
		return store.BoardDetail{}, translate(err, "board")
	}
	return detail, nil
}

func (s *Service) UpdateBoard(ctx context.Context, principal, boardID string, input UpdateBoardInput) (store.Board, error) {
	input.Title = trimmed(input.Title)
	input.Description = trimmed(input.Description)
	if err := s.validate(input); err != nil {
		return store.Board{}, err
	}
	board, err := s.store.UpdateBoard(ctx, boardID, principal, store.BoardPatch{
		Title:           input.Title,
		Description:     input.Description,
		BackgroundColor: input.BackgroundColor,
		IsPrivate:       input.IsPrivate,
	})
	if err != nil {
		return store.Board{}, translate(err, "board")
	}
	return board, nil
}

// DeleteBoard removes the board together with its lists and cards.
func (s *Service) DeleteBoard(ctx context.Context, principal, boardID string) error {
	detail, err := s.store.GetBoardDetail(ctx, boardID, principal)
	if err != nil {
		return translate(err, "board")
	}
	deleted, err := s.store.DeleteBoard(ctx, boardID, principal)
	if err != nil {
		return translate(err, "board")
	}
	if !deleted {
		return notFound("board")
	}
	if s.search != nil {
		var ids []string
		for _, list := range detail.Lists {
			for _, card := range list.Cards {
				ids = append(ids, card.ID)
			}
		}
		s.search.DeleteCards(ids...)
	}
	return nil
}

func (s *Service) Search(ctx context.Context, principal, text, boardID string, limit, offset int) (search.Response, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return search.Response{Results: []search.Result{}}, nil
	}
	if boardID != "" {
		if _, err := s.store.GetOwnedBoard(ctx, boardID, principal); err != nil {
			return search.Response{}, translate(err, "board")
		}
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(ctx, search.Query{
		Text:    text,
		OwnerID: principal,
		BoardID: boardID,
		Limit:   limit,
		Offset:  offset,
	}), nil
}

func (s *Service) ExportBoard(ctx context.Context, principal, boardID, format string) (result *export.Result, err error) {
	ctx, span := s.startSpan(ctx, "Service.ExportBoard", attribute.String("board.id", boardID), attribute.String("export.format", format))
	defer func() { endSpan(span, err) }()

	parsed, parseErr := export.ParseFormat(format)
	if parseErr != nil {
		return nil, unsupportedFormat()
	}
	if s.exporter == nil {
		return nil, invalidOperation("Export is not available")
	}
	result, err = s.exporter.Export(ctx, export.Request{BoardID: boardID, OwnerID: principal, Format: parsed})
	if errors.Is(err, export.ErrUnsupportedFormat) {
		return nil, unsupportedFormat()
	}
	if err != nil {
		return nil, translate(err, "board")
	}
	return result, nil
}

func unsupportedFormat() *DomainError {
	return domainError(KindValidationFailed, "UNSUPPORTED_FORMAT", "Format must be json or markdown", nil)
}

func (s *Service) indexCard(ctx context.Context, cardID string) {
	if s.search == nil {
		return
	}
	card, err := s.store.GetSearchCard(ctx, cardID)
	if err != nil {
		s.logger.WithError(err).WithField("card_id", cardID).Warn("load card for indexing")
		return
	}
	s.search.IndexCard(search.CardRecord{
		ID:          card.ID,
		Title:       card.Title,
		Description: card.Description,
		ListID:      card.ListID,
		ListTitle:   card.ListTitle,
		BoardID:     card.BoardID,
		OwnerID:     card.OwnerID,
		IsCompleted: card.IsCompleted,
	})
}
