package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher over the generated cards.fts column.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy is always true: without Postgres nothing else works either.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search ranks matching cards on the owner's boards with ts_rank and builds
// snippets with ts_headline.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" || q.OwnerID == "" {
		return nil, 0, nil
	}
	limit, offset := normalizePage(q)

	where := "c.fts @@ plainto_tsquery('english', $1) AND b.owner_id = $2"
	args := []any{q.Text, q.OwnerID}
	if q.BoardID != "" {
		where += " AND l.board_id = $3"
		args = append(args, q.BoardID)
	}
	from := `
		FROM cards c
		JOIN lists l ON l.id = c.list_id
		JOIN boards b ON b.id = l.board_id
		WHERE ` + where

	var total int
	if err := p.db.QueryRowContext(ctx, "SELECT count(*)"+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT c.id, c.title,
			ts_headline('english', coalesce(c.description, ''), plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet,
			c.list_id, l.title, l.board_id, c.is_completed
		%s
		ORDER BY ts_rank(c.fts, plainto_tsquery('english', $1)) DESC, c.id
		LIMIT %d OFFSET %d`, from, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet, &r.ListID, &r.ListTitle, &r.BoardID, &r.IsCompleted); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every card for a full reindex.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]CardRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.description, c.list_id, l.title, l.board_id, b.owner_id, c.is_completed
		FROM cards c
		JOIN lists l ON l.id = c.list_id
		JOIN boards b ON b.id = l.board_id
	`)
	if err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}
	defer rows.Close()

	cards := make([]CardRecord, 0)
	for rows.Next() {
		var c CardRecord
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.ListID, &c.ListTitle, &c.BoardID, &c.OwnerID, &c.IsCompleted); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return cards, nil
}
