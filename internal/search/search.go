package search

import "context"

// Result is a single card hit returned to the caller.
type Result struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Snippet     string `json:"snippet"`
	ListID      string `json:"listId"`
	ListTitle   string `json:"listTitle"`
	BoardID     string `json:"boardId"`
	IsCompleted bool   `json:"isCompleted"`
}

// Query describes a search request. OwnerID is mandatory: results never
// cross into boards the caller does not own.
type Query struct {
	Text    string
	OwnerID string
	BoardID string
	Limit   int
	Offset  int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// CardRecord is the data we index for a card.
type CardRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ListID      string `json:"listId"`
	ListTitle   string `json:"listTitle"`
	BoardID     string `json:"boardId"`
	OwnerID     string `json:"ownerId"`
	IsCompleted bool   `json:"isCompleted"`
}

func normalizePage(q Query) (limit, offset int) {
	limit = q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset = q.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
