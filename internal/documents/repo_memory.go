package documents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Document // id -> document
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Document)}
}

// Create stores a new document.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[doc.ID] = doc
	return nil
}

// GetByID returns a document of the user.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.data[documentID]
	if !ok || doc.UserID != userID {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// ListByUser returns documents of the user, newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	docs := make([]Document, 0)
	for _, doc := range r.data {
		if doc.UserID == userID {
			docs = append(docs, doc)
		}
	}
	r.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	if offset < 0 {
		offset = 0
	}
	if offset >= len(docs) {
		return []Document{}, nil
	}
	end := len(docs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return docs[offset:end], nil
}

// MarkExtracted records where the extracted text was cached.
func (r *MemoryRepo) MarkExtracted(ctx context.Context, userID, documentID, extractedKey string, at time.Time) error {
	return r.update(ctx, userID, documentID, func(doc *Document) {
		doc.ExtractedTextKey = extractedKey
		doc.ExtractedAt = &at
		doc.UpdatedAt = at
	})
}

// UpdateIngest records an ingestion status change.
func (r *MemoryRepo) UpdateIngest(ctx context.Context, userID, documentID string, upd IngestUpdate) error {
	return r.update(ctx, userID, documentID, func(doc *Document) {
		doc.IngestStatus = upd.Status
		doc.IngestError = upd.Error
		if upd.RecordID != "" {
			doc.RecordID = upd.RecordID
		}
		doc.UpdatedAt = upd.At
	})
}

func (r *MemoryRepo) update(ctx context.Context, userID, documentID string, fn func(*Document)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[documentID]
	if !ok || doc.UserID != userID {
		return ErrNotFound
	}
	fn(&doc)
	r.data[documentID] = doc
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
