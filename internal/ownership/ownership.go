// Package ownership resolves an entity to the board that owns it and checks
// that board against the caller.
package ownership

import (
	"context"
	"errors"
	"fmt"

	"taskboard/api/internal/store"
)

var (
	// ErrNotFound reports a missing board, list or card.
	ErrNotFound = errors.New("not found")
	// ErrForbidden reports an entity on a board the caller does not own.
	ErrForbidden = errors.New("forbidden")
)

// NotFoundError names the link of the ownership chain that is missing. It
// matches ErrNotFound under errors.Is.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return e.Entity + ": not found"
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Reader is the slice of the store the guard needs.
type Reader interface {
	GetBoard(ctx context.Context, boardID string) (store.Board, error)
	GetList(ctx context.Context, listID string) (store.List, error)
	GetCard(ctx context.Context, cardID string) (store.Card, error)
}

// ListAccess is an authorized list together with its board.
type ListAccess struct {
	List  store.List
	Board store.Board
}

// CardAccess is an authorized card with the list and board above it.
type CardAccess struct {
	Card  store.Card
	List  store.List
	Board store.Board
}

// Guard checks that the caller owns the board an entity belongs to.
type Guard struct {
	reader Reader
}

// NewGuard returns a guard reading through reader.
func NewGuard(reader Reader) *Guard {
	return &Guard{reader: reader}
}

// Owns reports whether principal owns board.
func Owns(board store.Board, principal string) bool {
	return principal != "" && board.OwnerID == principal
}

// AuthorizeBoard loads the board and checks it belongs to principal.
func (g *Guard) AuthorizeBoard(ctx context.Context, boardID, principal string) (store.Board, error) {
	board, err := g.reader.GetBoard(ctx, boardID)
	if err != nil {
		return store.Board{}, lookupError("board", err)
	}
	if !Owns(board, principal) {
		return store.Board{}, ErrForbidden
	}
	return board, nil
}

// AuthorizeList resolves the list to its board and checks ownership.
func (g *Guard) AuthorizeList(ctx context.Context, listID, principal string) (ListAccess, error) {
	list, err := g.reader.GetList(ctx, listID)
	if err != nil {
		return ListAccess{}, lookupError("list", err)
	}
	board, err := g.reader.GetBoard(ctx, list.BoardID)
	if err != nil {
		return ListAccess{}, lookupError("board", err)
	}
	if !Owns(board, principal) {
		return ListAccess{}, ErrForbidden
	}
	return ListAccess{List: list, Board: board}, nil
}

// AuthorizeCard walks card -> list -> board. A broken link anywhere in the
// chain is reported as ErrNotFound.
func (g *Guard) AuthorizeCard(ctx context.Context, cardID, principal string) (CardAccess, error) {
	card, err := g.reader.GetCard(ctx, cardID)
	if err != nil {
		return CardAccess{}, lookupError("card", err)
	}
	access, err := g.AuthorizeList(ctx, card.ListID, principal)
	if err != nil {
		return CardAccess{}, err
	}
	return CardAccess{Card: card, List: access.List, Board: access.Board}, nil
}

func lookupError(kind string, err error) error {
	if store.IsNotFound(err) {
		return &NotFoundError{Entity: kind}
	}
	return fmt.Errorf("load %s: %w", kind, err)
}
