package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"resume-builder/internal/extract"
	"resume-builder/internal/queue"
	"resume-builder/internal/shared/metrics"
	"resume-builder/internal/shared/storage/object"
	"resume-builder/internal/shared/telemetry"
	"resume-builder/internal/structured"
)

// Ingester turns extracted resume text into a structured record.
type Ingester interface {
	Ingest(ctx context.Context, rawText, userID string) (structured.IngestResult, error)
}

// Service contains business logic for documents.
type Service struct {
	Store    object.Store
	Repo     Repo
	Ingester Ingester
	// Queue defers processing to the worker. A nil Queue processes uploads
	// inline.
	Queue           queue.Client
	StorageProvider string
	Now             func() time.Time
}

// UploadResult is returned by Upload. Ingest is nil when the document was
// queued.
type UploadResult struct {
	Document Document
	Queued   bool
	Ingest   *structured.IngestResult
}

// Upload saves the file to object storage, records the document and either
// queues it or ingests it before returning.
func (s *Service) Upload(ctx context.Context, userID, fileName string, r io.Reader) (UploadResult, error) {
	userID = strings.TrimSpace(userID)
	fileName = strings.TrimSpace(fileName)
	if userID == "" || fileName == "" {
		return UploadResult{}, ErrInvalidInput
	}

	contentType, body, err := object.Sniff(fileName, r)
	if err != nil {
		return UploadResult{}, err
	}
	if !extract.Supported(contentType, fileName) {
		return UploadResult{}, &extract.UnsupportedTypeError{MimeType: contentType}
	}

	stored, err := s.Store.Put(ctx, userID, fileName, body)
	if err != nil {
		if errors.Is(err, object.ErrInvalidFileName) {
			return UploadResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return UploadResult{}, err
	}

	now := s.now()
	doc := Document{
		ID:              uuid.NewString(),
		UserID:          userID,
		FileName:        fileName,
		ContentType:     stored.ContentType,
		SizeBytes:       stored.Size,
		StorageProvider: s.StorageProvider,
		StorageKey:      stored.Key,
		IngestStatus:    StatusUploaded,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return UploadResult{}, err
	}
	metrics.IncDocumentUploaded()

	if s.Queue != nil {
		return s.enqueue(ctx, doc)
	}

	doc, res, err := s.ProcessDocument(ctx, userID, doc.ID)
	if err != nil {
		return UploadResult{Document: doc}, err
	}
	return UploadResult{Document: doc, Ingest: &res}, nil
}

func (s *Service) enqueue(ctx context.Context, doc Document) (UploadResult, error) {
	msg := queue.NewMessage(doc.ID, doc.UserID, telemetry.RequestIDFrom(ctx), s.now())
	if err := s.Queue.Send(ctx, msg); err != nil {
		failed, _ := s.setStatus(ctx, doc, StatusFailed, "", "enqueue failed")
		return UploadResult{Document: failed}, fmt.Errorf("enqueue document: %w", err)
	}
	queued, err := s.setStatus(ctx, doc, StatusQueued, "", "")
	if err != nil {
		return UploadResult{}, err
	}
	telemetry.Info("document.queued", map[string]any{
		"document_id": doc.ID,
		"user_id":     doc.UserID,
		"request_id":  msg.RequestID,
	})
	return UploadResult{Document: queued, Queued: true}, nil
}

// ProcessDocument extracts the text of a stored document and ingests it.
// An already ingested document is returned unchanged.
func (s *Service) ProcessDocument(ctx context.Context, userID, documentID string) (Document, structured.IngestResult, error) {
	if s.Ingester == nil {
		return Document{}, structured.IngestResult{}, errors.New("ingester not configured")
	}
	doc, err := s.Repo.GetByID(ctx, userID, documentID)
	if err != nil {
		return Document{}, structured.IngestResult{}, err
	}
	if doc.IngestStatus == StatusIngested {
		return doc, structured.IngestResult{}, nil
	}

	doc, err = s.setStatus(ctx, doc, StatusProcessing, "", "")
	if err != nil {
		return Document{}, structured.IngestResult{}, err
	}

	start := time.Now()
	text, err := s.text(ctx, &doc)
	if err != nil {
		return s.fail(ctx, doc, "extract", err)
	}

	res, err := s.Ingester.Ingest(ctx, text, userID)
	if err != nil {
		return s.fail(ctx, doc, "ingest", err)
	}

	doc, err = s.setStatus(ctx, doc, StatusIngested, res.Record.ID, "")
	if err != nil {
		return Document{}, structured.IngestResult{}, err
	}
	telemetry.Info("document.ingested", map[string]any{
		"document_id": doc.ID,
		"user_id":     userID,
		"record_id":   res.Record.ID,
		"status":      string(res.Status),
		"request_id":  telemetry.RequestIDFrom(ctx),
		"duration_ms": metrics.SinceMillis(start),
	})
	return doc, res, nil
}

// Process handles one queued document message.
func (s *Service) Process(ctx context.Context, msg queue.Message) error {
	_, _, err := s.ProcessDocument(ctx, msg.UserID, msg.DocumentID)
	return err
}

// text returns the cached extraction when present, extracting otherwise.
func (s *Service) text(ctx context.Context, doc *Document) (string, error) {
	if doc.ExtractedTextKey != "" {
		rc, err := s.Store.Open(ctx, doc.ExtractedTextKey)
		if err == nil {
			defer rc.Close()
			raw, err := io.ReadAll(rc)
			if err == nil && strings.TrimSpace(string(raw)) != "" {
				return string(raw), nil
			}
		}
		telemetry.Warn("document.extracted_cache_miss", map[string]any{
			"document_id": doc.ID,
			"key":         doc.ExtractedTextKey,
		})
	}

	text, err := extract.ExtractText(ctx, s.Store, doc.StorageKey, doc.ContentType, doc.FileName)
	if err != nil {
		return "", err
	}
	key := object.ExtractedKey(doc.StorageKey)
	at := s.now()
	if err := s.Repo.MarkExtracted(ctx, doc.UserID, doc.ID, key, at); err != nil {
		return "", err
	}
	doc.ExtractedTextKey = key
	doc.ExtractedAt = &at
	return text, nil
}

func (s *Service) fail(ctx context.Context, doc Document, stage string, cause error) (Document, structured.IngestResult, error) {
	telemetry.Error("document.process_failed", map[string]any{
		"document_id": doc.ID,
		"user_id":     doc.UserID,
		"stage":       stage,
		"error":       cause.Error(),
		"request_id":  telemetry.RequestIDFrom(ctx),
	})
	failed, err := s.setStatus(ctx, doc, StatusFailed, "", cause.Error())
	if err != nil {
		telemetry.Error("document.status_update_failed", map[string]any{
			"document_id": doc.ID,
			"error":       err.Error(),
		})
		failed = doc
	}
	return failed, structured.IngestResult{}, fmt.Errorf("%s document %s: %w", stage, doc.ID, cause)
}

func (s *Service) setStatus(ctx context.Context, doc Document, status IngestStatus, recordID, msg string) (Document, error) {
	upd := IngestUpdate{Status: status, RecordID: recordID, Error: msg, At: s.now()}
	if err := s.Repo.UpdateIngest(ctx, doc.UserID, doc.ID, upd); err != nil {
		return doc, err
	}
	doc.IngestStatus = status
	doc.IngestError = msg
	if recordID != "" {
		doc.RecordID = recordID
	}
	doc.UpdatedAt = upd.At
	return doc, nil
}

// Get returns one document of the user.
func (s *Service) Get(ctx context.Context, userID, documentID string) (Document, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(documentID) == "" {
		return Document{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, userID, documentID)
}

// List returns documents of the user, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
