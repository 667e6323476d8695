package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type documentRow struct {
	ID               string `gorm:"primaryKey"`
	UserID           string `gorm:"not null;index:idx_documents_user_created,priority:1"`
	FileName         string `gorm:"not null"`
	ContentType      string `gorm:"not null"`
	SizeBytes        int64  `gorm:"not null"`
	StorageProvider  string `gorm:"not null;default:local"`
	StorageKey       string `gorm:"not null"`
	ExtractedTextKey string
	ExtractedAt      *time.Time
	IngestStatus     string `gorm:"not null;default:uploaded"`
	IngestError      string
	RecordID         string
	CreatedAt        time.Time `gorm:"index:idx_documents_user_created,priority:2"`
	UpdatedAt        time.Time
}

func (documentRow) TableName() string {
	return "documents"
}

// GormRepo implements Repo through gorm, used with the SQLite record store.
type GormRepo struct {
	db *gorm.DB
}

// NewGormRepo migrates the documents table on db.
func NewGormRepo(db *gorm.DB) (*GormRepo, error) {
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("auto migrate documents: %w", err)
	}
	return &GormRepo{db: db}, nil
}

// Create inserts a new document.
func (r *GormRepo) Create(ctx context.Context, doc Document) error {
	row := toDocumentRow(doc)
	return r.db.WithContext(ctx).Create(&row).Error
}

// GetByID returns a document of the user.
func (r *GormRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	var row documentRow
	err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, documentID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return fromDocumentRow(row), nil
}

// ListByUser returns documents of the user, newest first.
func (r *GormRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	var rows []documentRow
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, fromDocumentRow(row))
	}
	return docs, nil
}

// MarkExtracted records where the extracted text was cached.
func (r *GormRepo) MarkExtracted(ctx context.Context, userID, documentID, extractedKey string, at time.Time) error {
	return r.update(ctx, userID, documentID, map[string]any{
		"extracted_text_key": extractedKey,
		"extracted_at":       at,
		"updated_at":         at,
	})
}

// UpdateIngest records an ingestion status change.
func (r *GormRepo) UpdateIngest(ctx context.Context, userID, documentID string, upd IngestUpdate) error {
	fields := map[string]any{
		"ingest_status": string(upd.Status),
		"ingest_error":  upd.Error,
		"updated_at":    upd.At,
	}
	if upd.RecordID != "" {
		fields["record_id"] = upd.RecordID
	}
	return r.update(ctx, userID, documentID, fields)
}

func (r *GormRepo) update(ctx context.Context, userID, documentID string, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&documentRow{}).
		Where("user_id = ? AND id = ?", userID, documentID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func toDocumentRow(doc Document) documentRow {
	status := doc.IngestStatus
	if status == "" {
		status = StatusUploaded
	}
	return documentRow{
		ID:               doc.ID,
		UserID:           doc.UserID,
		FileName:         doc.FileName,
		ContentType:      doc.ContentType,
		SizeBytes:        doc.SizeBytes,
		StorageProvider:  doc.StorageProvider,
		StorageKey:       doc.StorageKey,
		ExtractedTextKey: doc.ExtractedTextKey,
		ExtractedAt:      doc.ExtractedAt,
		IngestStatus:     string(status),
		IngestError:      doc.IngestError,
		RecordID:         doc.RecordID,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
}

func fromDocumentRow(row documentRow) Document {
	return Document{
		ID:               row.ID,
		UserID:           row.UserID,
		FileName:         row.FileName,
		ContentType:      row.ContentType,
		SizeBytes:        row.SizeBytes,
		StorageProvider:  row.StorageProvider,
		StorageKey:       row.StorageKey,
		ExtractedTextKey: row.ExtractedTextKey,
		ExtractedAt:      row.ExtractedAt,
		IngestStatus:     IngestStatus(row.IngestStatus),
		IngestError:      row.IngestError,
		RecordID:         row.RecordID,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

var _ Repo = (*GormRepo)(nil)
