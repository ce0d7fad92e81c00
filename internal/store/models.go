package store

import "time"

type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Board struct {
	ID              string
	OwnerID         string
	Title           string
	Description     string
	BackgroundColor string
	IsPrivate       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type List struct {
	ID          string
	BoardID     string
	Title       string
	Description string
	Position    int
	CardCount   int
	IsArchived  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Card struct {
	ID          string
	ListID      string
	Title       string
	Description string
	Position    int
	IsCompleted bool
	DueDate     *time.Time
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ListWithCards is a list together with its cards ordered by position.
type ListWithCards struct {
	List
	Cards []Card
}

// BoardDetail is the full board tree returned by the board detail read.
type BoardDetail struct {
	Board
	Lists []ListWithCards
}

// BoardPatch carries the optional fields of a board update.
type BoardPatch struct {
	Title           *string
	Description     *string
	BackgroundColor *string
	IsPrivate       *bool
}

// ListPatch carries the optional fields of a list update.
type ListPatch struct {
	Title       *string
	Description *string
	IsArchived  *bool
}

// CardPatch carries the optional fields of a card update. ClearDueDate wins
// over DueDate.
type CardPatch struct {
	Title        *string
	Description  *string
	DueDate      *time.Time
	ClearDueDate bool
}

// ListMove asks for a list to be reordered inside its board. Requested is
// clamped to the board's current size once the board is locked.
type ListMove struct {
	ListID    string
	BoardID   string
	Requested int
}

// CardMove asks for a card to land at Requested in ToListID, which may be the
// list it already sits in.
type CardMove struct {
	CardID    string
	ToListID  string
	Requested int
}

// SearchCard is the denormalized card record used by search indexing.
type SearchCard struct {
	ID          string
	Title       string
	Description string
	ListID      string
	ListTitle   string
	BoardID     string
	OwnerID     string
	IsCompleted bool
}
