package documents

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const documentColumns = `id, user_id, file_name, content_type, size_bytes, storage_provider, storage_key, extracted_text_key, extracted_at, ingest_status, ingest_error, record_id, created_at, updated_at`

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    user_id,
    file_name,
    content_type,
    size_bytes,
    storage_provider,
    storage_key,
    ingest_status,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	provider := doc.StorageProvider
	if provider == "" {
		provider = "local"
	}
	status := doc.IngestStatus
	if status == "" {
		status = StatusUploaded
	}
	updatedAt := doc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = doc.CreatedAt
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.UserID,
		doc.FileName,
		doc.ContentType,
		doc.SizeBytes,
		provider,
		doc.StorageKey,
		string(status),
		doc.CreatedAt,
		updatedAt,
	)
	return err
}

// GetByID returns a document of the user.
func (r *PGRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	query := `
SELECT ` + documentColumns + `
FROM documents
WHERE user_id = $1 AND id = $2
LIMIT 1`
	return scanDocument(r.DB.QueryRowContext(ctx, query, userID, documentID))
}

// ListByUser returns documents of the user, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := `
SELECT ` + documentColumns + `
FROM documents
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// MarkExtracted records where the extracted text was cached.
func (r *PGRepo) MarkExtracted(ctx context.Context, userID, documentID, extractedKey string, at time.Time) error {
	const query = `
UPDATE documents
SET extracted_text_key = $1, extracted_at = $2, updated_at = $2
WHERE user_id = $3 AND id = $4`
	return r.exec(ctx, query, extractedKey, at, userID, documentID)
}

// UpdateIngest records an ingestion status change. An empty RecordID keeps
// the stored one.
func (r *PGRepo) UpdateIngest(ctx context.Context, userID, documentID string, upd IngestUpdate) error {
	const query = `
UPDATE documents
SET ingest_status = $1, ingest_error = NULLIF($2, ''), record_id = COALESCE(NULLIF($3, ''), record_id), updated_at = $4
WHERE user_id = $5 AND id = $6`
	return r.exec(ctx, query, string(upd.Status), upd.Error, upd.RecordID, upd.At, userID, documentID)
}

func (r *PGRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var status string
	var extractedKey, ingestError, recordID sql.NullString
	var extractedAt sql.NullTime
	err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.FileName,
		&doc.ContentType,
		&doc.SizeBytes,
		&doc.StorageProvider,
		&doc.StorageKey,
		&extractedKey,
		&extractedAt,
		&status,
		&ingestError,
		&recordID,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	doc.IngestStatus = IngestStatus(status)
	doc.ExtractedTextKey = extractedKey.String
	doc.IngestError = ingestError.String
	doc.RecordID = recordID.String
	if extractedAt.Valid {
		doc.ExtractedAt = &extractedAt.Time
	}
	return doc, nil
}

var _ Repo = (*PGRepo)(nil)
