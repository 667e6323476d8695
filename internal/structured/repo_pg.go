package structured

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

const recordColumns = `id, user_id, raw_content, parsed_data, content_hash, keywords, similar_documents, is_merged_document, superseded, superseded_by, superseded_at, created_at, updated_at`

// PGRepo implements Repo on Postgres. List-valued fields are JSONB and are
// passed to queries as JSON text.
type PGRepo struct {
	DB *sql.DB
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Create inserts a new record.
func (r *PGRepo) Create(ctx context.Context, rec ResumeRecord) error {
	return insertRecord(ctx, r.DB, rec)
}

// CreateMerged inserts merged and supersedes the ids in one transaction.
func (r *PGRepo) CreateMerged(ctx context.Context, merged ResumeRecord, supersededIDs []string, at time.Time) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = insertRecord(ctx, tx, merged); err != nil {
		return err
	}
	if err = markSuperseded(ctx, tx, merged.UserID, supersededIDs, merged.ID, at); err != nil {
		return err
	}
	return tx.Commit()
}

func insertRecord(ctx context.Context, ex execer, rec ResumeRecord) error {
	const query = `
INSERT INTO resume_records (
    id,
    user_id,
    raw_content,
    parsed_data,
    content_hash,
    keywords,
    similar_documents,
    is_merged_document,
    superseded,
    superseded_by,
    superseded_at,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4::jsonb, $5, $6::jsonb, $7::jsonb, $8, $9, $10, $11, $12, $13)`

	parsed, keywords, similar, err := encodeRecordJSON(rec)
	if err != nil {
		return err
	}
	var supersededBy sql.NullString
	if rec.SupersededBy != "" {
		supersededBy = sql.NullString{String: rec.SupersededBy, Valid: true}
	}
	var supersededAt sql.NullTime
	if rec.SupersededAt != nil {
		supersededAt = sql.NullTime{Time: *rec.SupersededAt, Valid: true}
	}

	_, err = ex.ExecContext(
		ctx,
		query,
		rec.ID,
		rec.UserID,
		rec.RawContent,
		parsed,
		rec.ContentHash,
		keywords,
		similar,
		rec.IsMergedDocument,
		rec.Superseded,
		supersededBy,
		supersededAt,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return translatePGError(err)
}

// GetByID returns a record of the user.
func (r *PGRepo) GetByID(ctx context.Context, userID, id string) (ResumeRecord, error) {
	query := `
SELECT ` + recordColumns + `
FROM resume_records
WHERE user_id = $1 AND id = $2
LIMIT 1`
	return scanRecord(r.DB.QueryRowContext(ctx, query, userID, id))
}

// FindActiveByHash returns the active record of the user with the hash.
func (r *PGRepo) FindActiveByHash(ctx context.Context, userID, contentHash string) (ResumeRecord, error) {
	query := `
SELECT ` + recordColumns + `
FROM resume_records
WHERE user_id = $1 AND content_hash = $2 AND NOT superseded
LIMIT 1`
	return scanRecord(r.DB.QueryRowContext(ctx, query, userID, contentHash))
}

// FindSimilar returns active records sharing a keyword with the query or
// containing the probe in their whitespace-collapsed lowercase content.
func (r *PGRepo) FindSimilar(ctx context.Context, q SimilarQuery) ([]ResumeRecord, error) {
	query := `
SELECT ` + recordColumns + `
FROM resume_records
WHERE user_id = $1
  AND NOT superseded
  AND id <> $2
  AND (
    keywords ?| ARRAY(SELECT jsonb_array_elements_text($3::jsonb))
    OR ($4 <> '' AND strpos(regexp_replace(lower(raw_content), '\s+', ' ', 'g'), $4) > 0)
  )
ORDER BY created_at DESC
LIMIT $5`

	keywords, err := json.Marshal(nonNil(q.Keywords))
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = candidateFetchLimit
	}
	rows, err := r.DB.QueryContext(ctx, query, q.UserID, q.ExcludeID, string(keywords), q.Probe, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// UpdateContent refreshes an active record in place.
func (r *PGRepo) UpdateContent(ctx context.Context, userID, id string, upd ContentUpdate) error {
	const query = `
UPDATE resume_records
SET raw_content = $1, parsed_data = $2::jsonb, keywords = $3::jsonb, updated_at = $4
WHERE user_id = $5 AND id = $6 AND NOT superseded`

	parsed, err := json.Marshal(upd.ParsedData.Normalized())
	if err != nil {
		return err
	}
	keywords, err := json.Marshal(nonNil(upd.Keywords))
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query, upd.RawContent, string(parsed), string(keywords), upd.UpdatedAt, userID, id)
	if err != nil {
		return translatePGError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkSuperseded flags the given records of the user as folded into supersededBy.
func (r *PGRepo) MarkSuperseded(ctx context.Context, userID string, ids []string, supersededBy string, at time.Time) error {
	return markSuperseded(ctx, r.DB, userID, ids, supersededBy, at)
}

func markSuperseded(ctx context.Context, ex execer, userID string, ids []string, supersededBy string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `
UPDATE resume_records
SET superseded = TRUE, superseded_by = $1, superseded_at = $2, updated_at = $2
WHERE user_id = $3 AND id IN (SELECT jsonb_array_elements_text($4::jsonb))`

	encoded, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, query, supersededBy, at, userID, string(encoded))
	return err
}

// ListByUser lists records of the user newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, opts ListOptions) ([]ResumeRecord, error) {
	opts = opts.normalized()
	query := `
SELECT ` + recordColumns + `
FROM resume_records
WHERE user_id = $1 AND ($2 OR NOT superseded)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`

	rows, err := r.DB.QueryContext(ctx, query, userID, opts.IncludeSuperseded, opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (ResumeRecord, error) {
	var rec ResumeRecord
	var parsed, keywords, similar []byte
	var supersededBy sql.NullString
	var supersededAt sql.NullTime
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.RawContent,
		&parsed,
		&rec.ContentHash,
		&keywords,
		&similar,
		&rec.IsMergedDocument,
		&rec.Superseded,
		&supersededBy,
		&supersededAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ResumeRecord{}, ErrNotFound
		}
		return ResumeRecord{}, err
	}
	if err := decodeRecordJSON(&rec, parsed, keywords, similar); err != nil {
		return ResumeRecord{}, err
	}
	if supersededBy.Valid {
		rec.SupersededBy = supersededBy.String
	}
	if supersededAt.Valid {
		rec.SupersededAt = &supersededAt.Time
	}
	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]ResumeRecord, error) {
	var out []ResumeRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func encodeRecordJSON(rec ResumeRecord) (parsed, keywords, similar string, err error) {
	p, err := json.Marshal(rec.ParsedData.Normalized())
	if err != nil {
		return "", "", "", fmt.Errorf("encode parsed data: %w", err)
	}
	k, err := json.Marshal(nonNil(rec.Keywords))
	if err != nil {
		return "", "", "", fmt.Errorf("encode keywords: %w", err)
	}
	s, err := json.Marshal(nonNil(rec.SimilarDocuments))
	if err != nil {
		return "", "", "", fmt.Errorf("encode similar documents: %w", err)
	}
	return string(p), string(k), string(s), nil
}

// decodeRecordJSON accepts payloads stored under any supported field naming.
func decodeRecordJSON(rec *ResumeRecord, parsed, keywords, similar []byte) error {
	if len(parsed) > 0 {
		if err := json.Unmarshal(parsed, &rec.ParsedData); err != nil {
			return fmt.Errorf("decode parsed data: %w", err)
		}
	}
	rec.ParsedData = rec.ParsedData.Normalized()
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &rec.Keywords); err != nil {
			return fmt.Errorf("decode keywords: %w", err)
		}
	}
	if len(similar) > 0 {
		if err := json.Unmarshal(similar, &rec.SimilarDocuments); err != nil {
			return fmt.Errorf("decode similar documents: %w", err)
		}
	}
	return nil
}

func translatePGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateContent, pgErr.ConstraintName)
	}
	return err
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

var _ Repo = (*PGRepo)(nil)
