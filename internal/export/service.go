package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"taskboard/api/internal/store"
)

const linkExpiry = 15 * time.Minute

// DataStore defines the interface for data access
type DataStore interface {
	GetBoardDetail(ctx context.Context, boardID, ownerID string) (store.BoardDetail, error)
}

// Service provides board export functionality
type Service struct {
	store   DataStore
	objects ObjectStore
	logger  logrus.FieldLogger
	now     func() time.Time
}

// NewService creates a new export service. objects may be nil, in which case
// exports are only returned inline.
func NewService(store DataStore, objects ObjectStore, logger logrus.FieldLogger) *Service {
	return &Service{store: store, objects: objects, logger: logger, now: time.Now}
}

// Export renders the board in the requested format and, when object storage
// is configured, uploads it and attaches a presigned link. An upload failure
// is logged and the inline result is still returned.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	detail, err := s.store.GetBoardDetail(ctx, req.BoardID, req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("get board detail: %w", err)
	}
	snapshot := BuildSnapshot(detail, s.now())

	var result *Result
	switch req.Format {
	case FormatJSON, "":
		data, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal snapshot: %w", err)
		}
		result = &Result{Data: data, Filename: sanitizeFilename(detail.Title) + ".json", MimeType: "application/json"}
	case FormatMarkdown:
		text, err := RenderMarkdown(snapshot)
		if err != nil {
			return nil, fmt.Errorf("render markdown: %w", err)
		}
		result = &Result{Data: []byte(text), Filename: sanitizeFilename(detail.Title) + ".md", MimeType: "text/markdown; charset=utf-8"}
	default:
		return nil, ErrUnsupportedFormat
	}

	if s.objects == nil {
		return result, nil
	}

	key := fmt.Sprintf("boards/%s/%s-%s", detail.ID, snapshot.ExportedAt.UTC().Format("20060102T150405Z"), result.Filename)
	log := s.logger.WithFields(logrus.Fields{"board_id": detail.ID, "key": key})
	if err := s.objects.Put(ctx, key, result.Data, result.MimeType); err != nil {
		log.WithError(err).Warn("store export")
		return result, nil
	}
	link, err := s.objects.PresignGet(ctx, key, linkExpiry)
	if err != nil {
		log.WithError(err).Warn("presign export")
		return result, nil
	}
	result.Key = key
	result.URL = link
	result.Expires = snapshot.ExportedAt.Add(linkExpiry)
	log.Info("board exported")
	return result, nil
}

// BuildSnapshot converts a board tree into its export shape, keeping the
// position order the store returned.
func BuildSnapshot(detail store.BoardDetail, at time.Time) Snapshot {
	snapshot := Snapshot{
		ID:              detail.ID,
		Title:           detail.Title,
		Description:     detail.Description,
		BackgroundColor: detail.BackgroundColor,
		ExportedAt:      at.UTC(),
		Lists:           make([]SnapshotList, 0, len(detail.Lists)),
	}
	for _, list := range detail.Lists {
		sl := SnapshotList{
			ID:          list.ID,
			Title:       list.Title,
			Description: list.Description,
			Position:    list.Position,
			IsArchived:  list.IsArchived,
			Cards:       make([]SnapshotCard, 0, len(list.Cards)),
		}
		for _, card := range list.Cards {
			sl.Cards = append(sl.Cards, SnapshotCard{
				ID:          card.ID,
				Title:       card.Title,
				Description: card.Description,
				Position:    card.Position,
				IsCompleted: card.IsCompleted,
				DueDate:     card.DueDate,
			})
		}
		snapshot.Lists = append(snapshot.Lists, sl)
	}
	return snapshot
}
