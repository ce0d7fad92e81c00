package store

import (
	"context"
	"database/sql"
	"fmt"

	"taskboard/api/internal/position"
)

const cardColumns = `id, list_id, title, description, position, is_completed, due_date, created_by, created_at, updated_at`

func scanCard(row rowScanner) (Card, error) {
	var (
		c         Card
		dueDate   sql.NullTime
		createdBy sql.NullString
	)
	err := row.Scan(&c.ID, &c.ListID, &c.Title, &c.Description, &c.Position, &c.IsCompleted, &dueDate, &createdBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Card{}, err
	}
	if dueDate.Valid {
		due := dueDate.Time
		c.DueDate = &due
	}
	c.CreatedBy = createdBy.String
	return c, nil
}

func (s *PostgresStore) ListCards(ctx context.Context, listID string) ([]Card, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards
		WHERE list_id = $1
		ORDER BY position ASC
	`, listID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	items := make([]Card, 0)
	for rows.Next() {
		item, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetCard(ctx context.Context, cardID string) (Card, error) {
	card, err := scanCard(s.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = $1`, cardID))
	if err != nil {
		return Card{}, fmt.Errorf("get card: %w", err)
	}
	return card, nil
}

func (s *PostgresStore) CountCards(ctx context.Context, listID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards WHERE list_id = $1`, listID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cards: %w", err)
	}
	return n, nil
}

// AppendCard inserts card into its list and bumps the list's card count in
// the same transaction.
func (s *PostgresStore) AppendCard(ctx context.Context, card Card, requested *int) (Card, error) {
	var created Card
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := cardsInList.lockParents(ctx, tx, card.ListID); err != nil {
			return err
		}
		max, err := cardsInList.maxPosition(ctx, tx, card.ListID)
		if err != nil {
			return err
		}
		plan := position.Insert(card.ListID, max, requested)
		if err := cardsInList.applyShifts(ctx, tx, plan, card.ID); err != nil {
			return err
		}
		var createdBy any
		if card.CreatedBy != "" {
			createdBy = card.CreatedBy
		}
		created, err = scanCard(tx.QueryRowContext(ctx, `
			INSERT INTO cards (id, list_id, title, description, position, is_completed, due_date, created_by)
			VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7)
			RETURNING `+cardColumns,
			card.ID, card.ListID, card.Title, card.Description, plan.Target, card.DueDate, createdBy,
		))
		if err != nil {
			return fmt.Errorf("insert card: %w", err)
		}
		return adjustCardCount(ctx, tx, card.ListID, 1)
	})
	if err != nil {
		return Card{}, err
	}
	return created, nil
}

func (s *PostgresStore) UpdateCard(ctx context.Context, cardID string, patch CardPatch) (Card, error) {
	card, err := scanCard(s.db.QueryRowContext(ctx, `
		UPDATE cards
		SET title = COALESCE($2, title),
			description = COALESCE($3, description),
			due_date = CASE WHEN $4 THEN NULL ELSE COALESCE($5, due_date) END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+cardColumns,
		cardID, patch.Title, patch.Description, patch.ClearDueDate, patch.DueDate,
	))
	if err != nil {
		return Card{}, fmt.Errorf("update card: %w", err)
	}
	return card, nil
}

func (s *PostgresStore) ToggleCardCompleted(ctx context.Context, cardID string) (Card, error) {
	card, err := scanCard(s.db.QueryRowContext(ctx, `
		UPDATE cards SET is_completed = NOT is_completed, updated_at = NOW()
		WHERE id = $1
		RETURNING `+cardColumns,
		cardID,
	))
	if err != nil {
		return Card{}, fmt.Errorf("toggle card: %w", err)
	}
	return card, nil
}

// RemoveCard deletes the card, closes its gap and decrements the list count.
// A card that changed lists between the first read and the lock is stale.
func (s *PostgresStore) RemoveCard(ctx context.Context, cardID string) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		var listID string
		if err := tx.QueryRowContext(ctx, `SELECT list_id FROM cards WHERE id = $1`, cardID).Scan(&listID); err != nil {
			return fmt.Errorf("find card: %w", err)
		}
		if err := cardsInList.lockParents(ctx, tx, listID); err != nil {
			return err
		}
		var (
			lockedListID string
			current      int
		)
		if err := tx.QueryRowContext(ctx, `SELECT list_id, position FROM cards WHERE id = $1`, cardID).Scan(&lockedListID, &current); err != nil {
			return fmt.Errorf("read card position: %w", err)
		}
		if lockedListID != listID {
			return ErrStalePosition
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, cardID); err != nil {
			return fmt.Errorf("delete card: %w", err)
		}
		if err := cardsInList.applyShifts(ctx, tx, position.Remove(listID, current), cardID); err != nil {
			return err
		}
		return adjustCardCount(ctx, tx, listID, -1)
	})
}

// MoveCard relocates a card while holding the locks on its current list and
// on the destination. The plan is built from the locked rows, so moves that
// queue behind other writers in the same lists still land densely. The target
// is clamped to [1, n] inside one list and [1, n+1] when arriving from another.
// A card that switched lists between the first read and the lock is stale.
func (s *PostgresStore) MoveCard(ctx context.Context, mv CardMove) (Card, error) {
	var moved Card
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var fromListID string
		if err := tx.QueryRowContext(ctx, `SELECT list_id FROM cards WHERE id = $1`, mv.CardID).Scan(&fromListID); err != nil {
			return fmt.Errorf("find card: %w", err)
		}
		if err := cardsInList.lockParents(ctx, tx, fromListID, mv.ToListID); err != nil {
			return err
		}
		current, err := scanCard(tx.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = $1`, mv.CardID))
		if err != nil {
			return fmt.Errorf("read card: %w", err)
		}
		if current.ListID != fromListID {
			return ErrStalePosition
		}

		crossList := mv.ToListID != current.ListID
		n, err := cardsInList.count(ctx, tx, mv.ToListID)
		if err != nil {
			return err
		}
		limit := n
		if crossList {
			limit = n + 1
		}
		plan := position.CrossMove(current.ListID, current.Position, mv.ToListID, position.Clamp(mv.Requested, limit))
		if plan.NoOp {
			moved = current
			return nil
		}

		if err := cardsInList.applyShifts(ctx, tx, plan, mv.CardID); err != nil {
			return err
		}
		moved, err = scanCard(tx.QueryRowContext(ctx, `
			UPDATE cards SET list_id = $2, position = $3, updated_at = NOW()
			WHERE id = $1
			RETURNING `+cardColumns,
			mv.CardID, mv.ToListID, plan.Target,
		))
		if err != nil {
			return fmt.Errorf("update card position: %w", err)
		}
		if !crossList {
			return nil
		}
		if err := adjustCardCount(ctx, tx, current.ListID, -1); err != nil {
			return err
		}
		return adjustCardCount(ctx, tx, mv.ToListID, 1)
	})
	if err != nil {
		return Card{}, err
	}
	return moved, nil
}

const searchCardColumns = `c.id, c.title, c.description, c.list_id, l.title, l.board_id, b.owner_id, c.is_completed`

func scanSearchCard(row rowScanner) (SearchCard, error) {
	var sc SearchCard
	err := row.Scan(&sc.ID, &sc.Title, &sc.Description, &sc.ListID, &sc.ListTitle, &sc.BoardID, &sc.OwnerID, &sc.IsCompleted)
	return sc, err
}

// GetSearchCard returns the card joined with the fields the search index needs.
func (s *PostgresStore) GetSearchCard(ctx context.Context, cardID string) (SearchCard, error) {
	card, err := scanSearchCard(s.db.QueryRowContext(ctx, `
		SELECT `+searchCardColumns+`
		FROM cards c
		JOIN lists l ON l.id = c.list_id
		JOIN boards b ON b.id = l.board_id
		WHERE c.id = $1
	`, cardID))
	if err != nil {
		return SearchCard{}, fmt.Errorf("get search card: %w", err)
	}
	return card, nil
}
