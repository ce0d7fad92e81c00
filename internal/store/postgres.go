package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, email, name, password_hash, created_at, updated_at`

func scanUser(row rowScanner) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	created, err := scanUser(s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		user.ID, strings.ToLower(user.Email), user.Name, user.PasswordHash,
	))
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email)))
	if err != nil {
		return User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

const boardColumns = `id, owner_id, title, description, background_color, is_private, created_at, updated_at`

func scanBoard(row rowScanner) (Board, error) {
	var b Board
	err := row.Scan(&b.ID, &b.OwnerID, &b.Title, &b.Description, &b.BackgroundColor, &b.IsPrivate, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// ListBoards returns the owner's boards, newest first.
func (s *PostgresStore) ListBoards(ctx context.Context, ownerID string) ([]Board, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+boardColumns+`
		FROM boards
		WHERE owner_id = $1
		ORDER BY created_at DESC, id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	items := make([]Board, 0)
	for rows.Next() {
		item, err := scanBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boards: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetBoard(ctx context.Context, boardID string) (Board, error) {
	board, err := scanBoard(s.db.QueryRowContext(ctx, `SELECT `+boardColumns+` FROM boards WHERE id = $1`, boardID))
	if err != nil {
		return Board{}, fmt.Errorf("get board: %w", err)
	}
	return board, nil
}

// GetOwnedBoard filters by owner in the query itself, so a foreign board is
// indistinguishable from a missing one.
func (s *PostgresStore) GetOwnedBoard(ctx context.Context, boardID, ownerID string) (Board, error) {
	board, err := scanBoard(s.db.QueryRowContext(ctx,
		`SELECT `+boardColumns+` FROM boards WHERE id = $1 AND owner_id = $2`, boardID, ownerID))
	if err != nil {
		return Board{}, fmt.Errorf("get owned board: %w", err)
	}
	return board, nil
}

func (s *PostgresStore) InsertBoard(ctx context.Context, board Board) (Board, error) {
	created, err := scanBoard(s.db.QueryRowContext(ctx, `
		INSERT INTO boards (id, owner_id, title, description, background_color, is_private)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+boardColumns,
		board.ID, board.OwnerID, board.Title, board.Description, board.BackgroundColor, board.IsPrivate,
	))
	if err != nil {
		return Board{}, fmt.Errorf("insert board: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) UpdateBoard(ctx context.Context, boardID, ownerID string, patch BoardPatch) (Board, error) {
	board, err := scanBoard(s.db.QueryRowContext(ctx, `
		UPDATE boards
		SET title = COALESCE($3, title),
			description = COALESCE($4, description),
			background_color = COALESCE($5, background_color),
			is_private = COALESCE($6, is_private),
			updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
		RETURNING `+boardColumns,
		boardID, ownerID, patch.Title, patch.Description, patch.BackgroundColor, patch.IsPrivate,
	))
	if err != nil {
		return Board{}, fmt.Errorf("update board: %w", err)
	}
	return board, nil
}

// DeleteBoard removes the board and, through the foreign keys, its lists and
// cards. It reports whether a row owned by ownerID existed.
func (s *PostgresStore) DeleteBoard(ctx context.Context, boardID, ownerID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM boards WHERE id = $1 AND owner_id = $2`, boardID, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete board: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete board rows affected: %w", err)
	}
	return affected > 0, nil
}

// GetBoardDetail loads the board with every list and card, each level ordered
// by position.
func (s *PostgresStore) GetBoardDetail(ctx context.Context, boardID, ownerID string) (BoardDetail, error) {
	board, err := s.GetOwnedBoard(ctx, boardID, ownerID)
	if err != nil {
		return BoardDetail{}, err
	}
	lists, err := s.ListLists(ctx, boardID)
	if err != nil {
		return BoardDetail{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixed("c", cardColumns)+`
		FROM cards c
		JOIN lists l ON l.id = c.list_id
		WHERE l.board_id = $1
		ORDER BY l.position ASC, c.position ASC
	`, boardID)
	if err != nil {
		return BoardDetail{}, fmt.Errorf("list board cards: %w", err)
	}
	defer rows.Close()

	byList := make(map[string][]Card, len(lists))
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return BoardDetail{}, fmt.Errorf("scan board card: %w", err)
		}
		byList[card.ListID] = append(byList[card.ListID], card)
	}
	if err := rows.Err(); err != nil {
		return BoardDetail{}, fmt.Errorf("iterate board cards: %w", err)
	}

	detail := BoardDetail{Board: board, Lists: make([]ListWithCards, 0, len(lists))}
	for _, list := range lists {
		cards := byList[list.ID]
		if cards == nil {
			cards = []Card{}
		}
		detail.Lists = append(detail.Lists, ListWithCards{List: list, Cards: cards})
	}
	return detail, nil
}

// prefixed qualifies a comma separated column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}
