package app

import (
	"time"

	"taskboard/api/internal/store"
)

func presentSession(session Session) map[string]any {
	return map[string]any{
		"accessToken":  session.Token,
		"refreshToken": session.RefreshToken,
		"expiresAt":    session.ExpiresAt.Unix(),
		"user": map[string]any{
			"id":    session.UserID,
			"name":  session.UserName,
			"email": session.Email,
		},
	}
}

func presentUser(user store.User) map[string]any {
	return map[string]any{
		"id":        user.ID,
		"name":      user.Name,
		"email":     user.Email,
		"createdAt": user.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func presentBoard(board store.Board) map[string]any {
	return map[string]any{
		"id":              board.ID,
		"ownerId":         board.OwnerID,
		"title":           board.Title,
		"description":     board.Description,
		"backgroundColor": board.BackgroundColor,
		"isPrivate":       board.IsPrivate,
		"createdAt":       board.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":       board.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func presentBoards(boards []store.Board) []map[string]any {
	out := make([]map[string]any, 0, len(boards))
	for _, board := range boards {
		out = append(out, presentBoard(board))
	}
	return out
}

func presentBoardDetail(detail store.BoardDetail) map[string]any {
	payload := presentBoard(detail.Board)
	lists := make([]map[string]any, 0, len(detail.Lists))
	for _, list := range detail.Lists {
		item := presentList(list.List)
		item["cards"] = presentCards(list.Cards)
		lists = append(lists, item)
	}
	payload["lists"] = lists
	return payload
}

func presentList(list store.List) map[string]any {
	return map[string]any{
		"id":          list.ID,
		"boardId":     list.BoardID,
		"title":       list.Title,
		"description": list.Description,
		"position":    list.Position,
		"cardCount":   list.CardCount,
		"isArchived":  list.IsArchived,
		"createdAt":   list.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":   list.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func presentLists(lists []store.List) []map[string]any {
	out := make([]map[string]any, 0, len(lists))
	for _, list := range lists {
		out = append(out, presentList(list))
	}
	return out
}

func presentCard(card store.Card) map[string]any {
	var dueDate any
	if card.DueDate != nil {
		dueDate = card.DueDate.UTC().Format(time.RFC3339)
	}
	var createdBy any
	if card.CreatedBy != "" {
		createdBy = card.CreatedBy
	}
	return map[string]any{
		"id":          card.ID,
		"listId":      card.ListID,
		"title":       card.Title,
		"description": card.Description,
		"position":    card.Position,
		"isCompleted": card.IsCompleted,
		"dueDate":     dueDate,
		"createdBy":   createdBy,
		"createdAt":   card.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":   card.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func presentCards(cards []store.Card) []map[string]any {
	out := make([]map[string]any, 0, len(cards))
	for _, card := range cards {
		out = append(out, presentCard(card))
	}
	return out
}
