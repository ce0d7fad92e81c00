package app

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"taskboard/api/internal/position"
	"taskboard/api/internal/session"
	"taskboard/api/internal/store"
)

// memStore keeps boards, lists and cards in maps and plans moves the way the
// Postgres store does: from the rows it reads once the container is locked.
type memStore struct {
	mu     sync.Mutex
	users  map[string]store.User
	boards map[string]store.Board
	lists  map[string]store.List
	cards  map[string]store.Card
	writes int

	// beforeMove runs inside MoveCard/MoveList between the first read and
	// the locked re-read, standing in for a writer that committed first.
	beforeMove func(m *memStore)
	pingErr    error
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[string]store.User{},
		boards: map[string]store.Board{},
		lists:  map[string]store.List{},
		cards:  map[string]store.Card{},
	}
}

func noRows(what string) error {
	return fmt.Errorf("get %s: %w", what, sql.ErrNoRows)
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func (m *memStore) CreateUser(_ context.Context, user store.User) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return user, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == strings.ToLower(email) {
			return user, nil
		}
	}
	return store.User{}, noRows("user")
}

func (m *memStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return store.User{}, noRows("user")
	}
	return user, nil
}

func (m *memStore) ListBoards(_ context.Context, ownerID string) ([]store.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.Board{}
	for _, board := range m.boards {
		if board.OwnerID == ownerID {
			out = append(out, board)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetBoard(_ context.Context, id string) (store.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	board, ok := m.boards[id]
	if !ok {
		return store.Board{}, noRows("board")
	}
	return board, nil
}

func (m *memStore) GetOwnedBoard(_ context.Context, id, ownerID string) (store.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	board, ok := m.boards[id]
	if !ok || board.OwnerID != ownerID {
		return store.Board{}, noRows("board")
	}
	return board, nil
}

func (m *memStore) InsertBoard(_ context.Context, board store.Board) (store.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boards[board.ID] = board
	m.writes++
	return board, nil
}

func (m *memStore) UpdateBoard(_ context.Context, id, ownerID string, patch store.BoardPatch) (store.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	board, ok := m.boards[id]
	if !ok || board.OwnerID != ownerID {
		return store.Board{}, noRows("board")
	}
	if patch.Title != nil {
		board.Title = *patch.Title
	}
	if patch.Description != nil {
		board.Description = *patch.Description
	}
	if patch.BackgroundColor != nil {
		board.BackgroundColor = *patch.BackgroundColor
	}
	if patch.IsPrivate != nil {
		board.IsPrivate = *patch.IsPrivate
	}
	m.boards[id] = board
	m.writes++
	return board, nil
}

func (m *memStore) DeleteBoard(_ context.Context, id, ownerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	board, ok := m.boards[id]
	if !ok || board.OwnerID != ownerID {
		return false, nil
	}
	delete(m.boards, id)
	for listID, list := range m.lists {
		if list.BoardID == id {
			m.deleteListLocked(listID)
		}
	}
	m.writes++
	return true, nil
}

func (m *memStore) GetBoardDetail(_ context.Context, id, ownerID string) (store.BoardDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	board, ok := m.boards[id]
	if !ok || board.OwnerID != ownerID {
		return store.BoardDetail{}, noRows("board")
	}
	detail := store.BoardDetail{Board: board, Lists: []store.ListWithCards{}}
	for _, list := range m.sortedListsLocked(id) {
		detail.Lists = append(detail.Lists, store.ListWithCards{List: list, Cards: m.sortedCardsLocked(list.ID)})
	}
	return detail, nil
}

func (m *memStore) sortedListsLocked(boardID string) []store.List {
	out := []store.List{}
	for _, list := range m.lists {
		if list.BoardID == boardID {
			out = append(out, list)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (m *memStore) sortedCardsLocked(listID string) []store.Card {
	out := []store.Card{}
	for _, card := range m.cards {
		if card.ListID == listID {
			out = append(out, card)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (m *memStore) ListLists(_ context.Context, boardID string) ([]store.List, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedListsLocked(boardID), nil
}

func (m *memStore) GetList(_ context.Context, id string) (store.List, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list, ok := m.lists[id]
	if !ok {
		return store.List{}, noRows("list")
	}
	return list, nil
}

func (m *memStore) CountLists(_ context.Context, boardID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sortedListsLocked(boardID)), nil
}

func (m *memStore) applyListShiftsLocked(plan position.Plan, excludeID string) {
	for _, shift := range plan.Shifts {
		for id, list := range m.lists {
			if id == excludeID || list.BoardID != shift.Scope || !shift.Contains(list.Position) {
				continue
			}
			list.Position = shift.Apply(list.Position)
			m.lists[id] = list
		}
	}
}

func (m *memStore) applyCardShiftsLocked(plan position.Plan, excludeID string) {
	for _, shift := range plan.Shifts {
		for id, card := range m.cards {
			if id == excludeID || card.ListID != shift.Scope || !shift.Contains(card.Position) {
				continue
			}
			card.Position = shift.Apply(card.Position)
			m.cards[id] = card
		}
	}
}

func (m *memStore) AppendList(_ context.Context, list store.List, requested *int) (store.List, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan := position.Insert(list.BoardID, len(m.sortedListsLocked(list.BoardID)), requested)
	m.applyListShiftsLocked(plan, list.ID)
	list.Position = plan.Target
	list.CardCount = 0
	m.lists[list.ID] = list
	m.writes++
	return list, nil
}

func (m *memStore) UpdateList(_ context.Context, id string, patch store.ListPatch) (store.List, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list, ok := m.lists[id]
	if !ok {
		return store.List{}, noRows("list")
	}
	if patch.Title != nil {
		list.Title = *patch.Title
	}
	if patch.Description != nil {
		list.Description = *patch.Description
	}
	if patch.IsArchived != nil {
		list.IsArchived = *patch.IsArchived
	}
	m.lists[id] = list
	m.writes++
	return list, nil
}

func (m *memStore) deleteListLocked(id string) {
	for cardID, card := range m.cards {
		if card.ListID == id {
			delete(m.cards, cardID)
		}
	}
	delete(m.lists, id)
}

func (m *memStore) RemoveList(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list, ok := m.lists[id]
	if !ok {
		return noRows("list")
	}
	m.deleteListLocked(id)
	m.applyListShiftsLocked(position.Remove(list.BoardID, list.Position), id)
	m.writes++
	return nil
}

func (m *memStore) MoveList(_ context.Context, mv store.ListMove) (store.List, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beforeMove != nil {
		m.beforeMove(m)
	}
	list, ok := m.lists[mv.ListID]
	if !ok || list.BoardID != mv.BoardID {
		return store.List{}, noRows("list")
	}
	n := len(m.sortedListsLocked(mv.BoardID))
	plan := position.Move(mv.BoardID, list.Position, position.Clamp(mv.Requested, n))
	if plan.NoOp {
		return list, nil
	}
	m.applyListShiftsLocked(plan, mv.ListID)
	list.Position = plan.Target
	m.lists[mv.ListID] = list
	m.writes++
	return list, nil
}

func (m *memStore) ListCards(_ context.Context, listID string) ([]store.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedCardsLocked(listID), nil
}

func (m *memStore) GetCard(_ context.Context, id string) (store.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.cards[id]
	if !ok {
		return store.Card{}, noRows("card")
	}
	return card, nil
}

func (m *memStore) CountCards(_ context.Context, listID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sortedCardsLocked(listID)), nil
}

func (m *memStore) adjustCountLocked(listID string, delta int) {
	list := m.lists[listID]
	list.CardCount += delta
	m.lists[listID] = list
}

func (m *memStore) AppendCard(_ context.Context, card store.Card, requested *int) (store.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lists[card.ListID]; !ok {
		return store.Card{}, noRows("list")
	}
	plan := position.Insert(card.ListID, len(m.sortedCardsLocked(card.ListID)), requested)
	m.applyCardShiftsLocked(plan, card.ID)
	card.Position = plan.Target
	m.cards[card.ID] = card
	m.adjustCountLocked(card.ListID, 1)
	m.writes++
	return card, nil
}

func (m *memStore) UpdateCard(_ context.Context, id string, patch store.CardPatch) (store.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.cards[id]
	if !ok {
		return store.Card{}, noRows("card")
	}
	if patch.Title != nil {
		card.Title = *patch.Title
	}
	if patch.Description != nil {
		card.Description = *patch.Description
	}
	switch {
	case patch.ClearDueDate:
		card.DueDate = nil
	case patch.DueDate != nil:
		card.DueDate = patch.DueDate
	}
	m.cards[id] = card
	m.writes++
	return card, nil
}

func (m *memStore) ToggleCardCompleted(_ context.Context, id string) (store.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.cards[id]
	if !ok {
		return store.Card{}, noRows("card")
	}
	card.IsCompleted = !card.IsCompleted
	m.cards[id] = card
	m.writes++
	return card, nil
}

func (m *memStore) RemoveCard(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeCardLocked(id)
}

func (m *memStore) removeCardLocked(id string) error {
	card, ok := m.cards[id]
	if !ok {
		return noRows("card")
	}
	delete(m.cards, id)
	m.applyCardShiftsLocked(position.Remove(card.ListID, card.Position), id)
	m.adjustCountLocked(card.ListID, -1)
	m.writes++
	return nil
}

func (m *memStore) MoveCard(_ context.Context, mv store.CardMove) (store.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.cards[mv.CardID]
	if !ok {
		return store.Card{}, noRows("card")
	}
	fromListID := card.ListID
	if _, ok := m.lists[mv.ToListID]; !ok {
		return store.Card{}, noRows("list")
	}
	if m.beforeMove != nil {
		m.beforeMove(m)
	}
	card, ok = m.cards[mv.CardID]
	if !ok {
		return store.Card{}, noRows("card")
	}
	if card.ListID != fromListID {
		return store.Card{}, store.ErrStalePosition
	}
	crossList := mv.ToListID != card.ListID
	limit := len(m.sortedCardsLocked(mv.ToListID))
	if crossList {
		limit++
	}
	plan := position.CrossMove(card.ListID, card.Position, mv.ToListID, position.Clamp(mv.Requested, limit))
	if plan.NoOp {
		return card, nil
	}
	m.applyCardShiftsLocked(plan, mv.CardID)
	card.ListID = mv.ToListID
	card.Position = plan.Target
	m.cards[mv.CardID] = card
	if crossList {
		m.adjustCountLocked(fromListID, -1)
		m.adjustCountLocked(mv.ToListID, 1)
	}
	m.writes++
	return card, nil
}

func (m *memStore) GetSearchCard(_ context.Context, id string) (store.SearchCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.cards[id]
	if !ok {
		return store.SearchCard{}, noRows("card")
	}
	list := m.lists[card.ListID]
	board := m.boards[list.BoardID]
	return store.SearchCard{
		ID:          card.ID,
		Title:       card.Title,
		Description: card.Description,
		ListID:      list.ID,
		ListTitle:   list.Title,
		BoardID:     board.ID,
		OwnerID:     board.OwnerID,
		IsCompleted: card.IsCompleted,
	}, nil
}

func (m *memStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// memSessions is an in-process stand-in for the Redis session store.
type memSessions struct {
	mu      sync.Mutex
	refresh map[string]store.User
	revoked map[string]time.Time
}

func newMemSessions() *memSessions {
	return &memSessions{refresh: map[string]store.User{}, revoked: map[string]time.Time{}}
}

func (m *memSessions) SaveRefreshSession(_ context.Context, hash string, user store.User, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh[hash] = user
	return nil
}

func (m *memSessions) LookupRefreshSession(_ context.Context, hash string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.refresh[hash]
	if !ok {
		return store.User{}, session.ErrSessionNotFound
	}
	return user, nil
}

func (m *memSessions) RevokeRefreshSession(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refresh, hash)
	return nil
}

func (m *memSessions) RevokeAccessToken(_ context.Context, jti string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = expiresAt
	return nil
}

func (m *memSessions) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[jti]
	return ok, nil
}
