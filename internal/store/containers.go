package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"taskboard/api/internal/position"
)

// container describes one ordered child table and the parent that scopes it.
// Table and column names are fixed here, never taken from input.
type container struct {
	table        string
	parentColumn string
	parentTable  string
}

var (
	listsInBoard = container{table: "lists", parentColumn: "board_id", parentTable: "boards"}
	cardsInList  = container{table: "cards", parentColumn: "list_id", parentTable: "lists"}
)

// lockParents takes row locks on the given parent rows in ascending id order
// so that two writers touching the same pair of containers cannot deadlock.
// Every position write in this package starts here: holding the parent lock
// serializes all renumbering inside that container.
func (c container) lockParents(ctx context.Context, tx *sql.Tx, parentIDs ...string) error {
	ids := make([]string, 0, len(parentIDs))
	seen := make(map[string]struct{}, len(parentIDs))
	for _, id := range parentIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	query := fmt.Sprintf(`SELECT id FROM %s WHERE id = $1 FOR UPDATE`, c.parentTable)
	for _, id := range ids {
		var locked string
		if err := tx.QueryRowContext(ctx, query, id).Scan(&locked); err != nil {
			return fmt.Errorf("lock %s %s: %w", c.parentTable, id, err)
		}
	}
	return nil
}

func (c container) maxPosition(ctx context.Context, tx *sql.Tx, parentID string) (int, error) {
	query := fmt.Sprintf(`SELECT COALESCE(MAX(position), 0) FROM %s WHERE %s = $1`, c.table, c.parentColumn)
	var max int
	if err := tx.QueryRowContext(ctx, query, parentID).Scan(&max); err != nil {
		return 0, fmt.Errorf("max %s position: %w", c.table, err)
	}
	return max, nil
}

func (c container) count(ctx context.Context, tx *sql.Tx, parentID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, c.table, c.parentColumn)
	var n int
	if err := tx.QueryRowContext(ctx, query, parentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", c.table, err)
	}
	return n, nil
}

// shift is the range-update primitive: one statement moves every sibling in
// the range by the shift's delta. excludeID keeps the moving row out of it.
func (c container) shift(ctx context.Context, tx *sql.Tx, s position.Shift, excludeID string) error {
	query := fmt.Sprintf(
		`UPDATE %s SET position = position + $1, updated_at = NOW() WHERE %s = $2 AND position >= $3 AND id <> $4`,
		c.table, c.parentColumn,
	)
	args := []any{s.Delta, s.Scope, s.From, excludeID}
	if s.To != position.Unbounded {
		query += ` AND position <= $5`
		args = append(args, s.To)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("shift %s in %s: %w", c.table, s.Scope, err)
	}
	return nil
}

func (c container) applyShifts(ctx context.Context, tx *sql.Tx, plan position.Plan, excludeID string) error {
	for _, s := range plan.Shifts {
		if err := c.shift(ctx, tx, s, excludeID); err != nil {
			return err
		}
	}
	return nil
}

func adjustCardCount(ctx context.Context, tx *sql.Tx, listID string, delta int) error {
	_, err := tx.ExecContext(ctx, `UPDATE lists SET card_count = card_count + $2, updated_at = NOW() WHERE id = $1`, listID, delta)
	if err != nil {
		return fmt.Errorf("adjust card count for %s: %w", listID, err)
	}
	return nil
}
