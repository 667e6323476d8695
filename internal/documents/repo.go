package documents

import (
	"context"
	"time"
)

// Repo persists documents.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, userID, documentID string) (Document, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error)
	MarkExtracted(ctx context.Context, userID, documentID, extractedKey string, at time.Time) error
	UpdateIngest(ctx context.Context, userID, documentID string, upd IngestUpdate) error
}
