// Package export renders board snapshots and optionally stores them in
// S3-compatible object storage.
package export

import (
	"errors"
	"time"
)

type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat maps a query value to a Format. An empty value means JSON.
func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Request contains parameters for an export operation
type Request struct {
	BoardID string
	OwnerID string
	Format  Format
}

// Result contains the export output. Key and URL are set only when the
// snapshot was written to object storage; Data is always populated.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
	Key      string
	URL      string
	Expires  time.Time
}

var ErrUnsupportedFormat = errors.New("unsupported export format")

// Snapshot is the serialized shape of an exported board.
type Snapshot struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	BackgroundColor string         `json:"backgroundColor"`
	ExportedAt      time.Time      `json:"exportedAt"`
	Lists           []SnapshotList `json:"lists"`
}

type SnapshotList struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Position    int            `json:"position"`
	IsArchived  bool           `json:"isArchived"`
	Cards       []SnapshotCard `json:"cards"`
}

type SnapshotCard struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Position    int        `json:"position"`
	IsCompleted bool       `json:"isCompleted"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}
