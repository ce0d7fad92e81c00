package store

import (
	"context"
	"database/sql"
	"fmt"

	"taskboard/api/internal/position"
)

const listColumns = `id, board_id, title, description, position, card_count, is_archived, created_at, updated_at`

func scanList(row rowScanner) (List, error) {
	var l List
	err := row.Scan(&l.ID, &l.BoardID, &l.Title, &l.Description, &l.Position, &l.CardCount, &l.IsArchived, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func (s *PostgresStore) ListLists(ctx context.Context, boardID string) ([]List, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+listColumns+`
		FROM lists
		WHERE board_id = $1
		ORDER BY position ASC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()

	items := make([]List, 0)
	for rows.Next() {
		item, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lists: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetList(ctx context.Context, listID string) (List, error) {
	list, err := scanList(s.db.QueryRowContext(ctx, `SELECT `+listColumns+` FROM lists WHERE id = $1`, listID))
	if err != nil {
		return List{}, fmt.Errorf("get list: %w", err)
	}
	return list, nil
}

func (s *PostgresStore) CountLists(ctx context.Context, boardID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lists WHERE board_id = $1`, boardID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count lists: %w", err)
	}
	return n, nil
}

// AppendList inserts list into its board. With requested nil the list goes
// last; otherwise it takes the requested slot and later lists move down.
func (s *PostgresStore) AppendList(ctx context.Context, list List, requested *int) (List, error) {
	var created List
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := listsInBoard.lockParents(ctx, tx, list.BoardID); err != nil {
			return err
		}
		max, err := listsInBoard.maxPosition(ctx, tx, list.BoardID)
		if err != nil {
			return err
		}
		plan := position.Insert(list.BoardID, max, requested)
		if err := listsInBoard.applyShifts(ctx, tx, plan, list.ID); err != nil {
			return err
		}
		created, err = scanList(tx.QueryRowContext(ctx, `
			INSERT INTO lists (id, board_id, title, description, position, card_count, is_archived)
			VALUES ($1, $2, $3, $4, $5, 0, FALSE)
			RETURNING `+listColumns,
			list.ID, list.BoardID, list.Title, list.Description, plan.Target,
		))
		if err != nil {
			return fmt.Errorf("insert list: %w", err)
		}
		return nil
	})
	if err != nil {
		return List{}, err
	}
	return created, nil
}

func (s *PostgresStore) UpdateList(ctx context.Context, listID string, patch ListPatch) (List, error) {
	list, err := scanList(s.db.QueryRowContext(ctx, `
		UPDATE lists
		SET title = COALESCE($2, title),
			description = COALESCE($3, description),
			is_archived = COALESCE($4, is_archived),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+listColumns,
		listID, patch.Title, patch.Description, patch.IsArchived,
	))
	if err != nil {
		return List{}, fmt.Errorf("update list: %w", err)
	}
	return list, nil
}

// RemoveList deletes the list with its cards and closes the gap it leaves.
func (s *PostgresStore) RemoveList(ctx context.Context, listID string) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		var boardID string
		if err := tx.QueryRowContext(ctx, `SELECT board_id FROM lists WHERE id = $1`, listID).Scan(&boardID); err != nil {
			return fmt.Errorf("find list: %w", err)
		}
		if err := listsInBoard.lockParents(ctx, tx, boardID); err != nil {
			return err
		}
		var current int
		if err := tx.QueryRowContext(ctx, `SELECT position FROM lists WHERE id = $1`, listID).Scan(&current); err != nil {
			return fmt.Errorf("read list position: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM lists WHERE id = $1`, listID); err != nil {
			return fmt.Errorf("delete list: %w", err)
		}
		return listsInBoard.applyShifts(ctx, tx, position.Remove(boardID, current), listID)
	})
}

// MoveList reorders a list under the board lock. The slot is planned from the
// locked row and clamped to the board's current size.
func (s *PostgresStore) MoveList(ctx context.Context, mv ListMove) (List, error) {
	var moved List
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := listsInBoard.lockParents(ctx, tx, mv.BoardID); err != nil {
			return err
		}
		current, err := scanList(tx.QueryRowContext(ctx,
			`SELECT `+listColumns+` FROM lists WHERE id = $1 AND board_id = $2`, mv.ListID, mv.BoardID))
		if err != nil {
			return fmt.Errorf("read list: %w", err)
		}
		n, err := listsInBoard.count(ctx, tx, mv.BoardID)
		if err != nil {
			return err
		}
		plan := position.Move(mv.BoardID, current.Position, position.Clamp(mv.Requested, n))
		if plan.NoOp {
			moved = current
			return nil
		}
		if err := listsInBoard.applyShifts(ctx, tx, plan, mv.ListID); err != nil {
			return err
		}
		moved, err = scanList(tx.QueryRowContext(ctx, `
			UPDATE lists SET position = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING `+listColumns,
			mv.ListID, plan.Target,
		))
		if err != nil {
			return fmt.Errorf("update list position: %w", err)
		}
		return nil
	})
	if err != nil {
		return List{}, err
	}
	return moved, nil
}
