package documents

import "time"

// IngestStatus tracks a document through extraction and ingestion.
type IngestStatus string

const (
	StatusUploaded   IngestStatus = "uploaded"
	StatusQueued     IngestStatus = "queued"
	StatusProcessing IngestStatus = "processing"
	StatusIngested   IngestStatus = "ingested"
	StatusFailed     IngestStatus = "failed"
)

// Document is an uploaded resume file owned by a user.
type Document struct {
	ID               string
	UserID           string
	FileName         string
	ContentType      string
	SizeBytes        int64
	StorageProvider  string
	StorageKey       string
	ExtractedTextKey string
	ExtractedAt      *time.Time
	IngestStatus     IngestStatus
	IngestError      string
	RecordID         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IngestUpdate records the outcome of a processing step.
type IngestUpdate struct {
	Status   IngestStatus
	RecordID string
	Error    string
	At       time.Time
}
