package structured

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"resume-builder/internal/llm"
	"resume-builder/internal/shared/metrics"
	"resume-builder/internal/shared/telemetry"
)

// Status is the outcome of an ingestion.
type Status string

const (
	StatusUpdated Status = "updated"
	StatusMerged  Status = "merged"
	StatusSaved   Status = "saved"
)

const (
	messageUpdated = "Resume updated with latest content"
	messageSaved   = "Resume saved"
)

func mergedMessage(n int) string {
	return fmt.Sprintf("Resume merged with %d similar document(s)", n)
}

// IngestResult is returned by Service.Ingest.
type IngestResult struct {
	Status      Status
	Message     string
	Data        StructuredRecord
	MergedCount int
	Record      ResumeRecord
}

// Tuning holds the pipeline heuristics.
type Tuning struct {
	Threshold     float64
	MaxCandidates int
	MaxKeywords   int
	AITimeout     time.Duration
}

// DefaultTuning returns the calibrated defaults.
func DefaultTuning() Tuning {
	return Tuning{
		Threshold:     0.3,
		MaxCandidates: 5,
		MaxKeywords:   MaxKeywords,
		AITimeout:     60 * time.Second,
	}
}

// Service coordinates extraction, duplicate detection and merging.
type Service struct {
	Repo        Repo
	Extractor   *Extractor
	Index       *SimilarityIndex
	Merger      *MergeEngine
	MaxKeywords int
	Now         func() time.Time
}

// NewService wires the pipeline around one repository and AI client.
// The same client serves extraction and merging.
func NewService(repo Repo, client llm.Client, tuning Tuning) *Service {
	def := DefaultTuning()
	if tuning.Threshold <= 0 || tuning.Threshold >= 1 {
		tuning.Threshold = def.Threshold
	}
	if tuning.MaxCandidates <= 0 {
		tuning.MaxCandidates = def.MaxCandidates
	}
	if tuning.MaxKeywords <= 0 {
		tuning.MaxKeywords = def.MaxKeywords
	}
	if tuning.AITimeout <= 0 {
		tuning.AITimeout = def.AITimeout
	}
	return &Service{
		Repo:      repo,
		Extractor: NewExtractor(client, tuning.AITimeout),
		Index: &SimilarityIndex{
			Repo:          repo,
			Threshold:     tuning.Threshold,
			MaxCandidates: tuning.MaxCandidates,
		},
		Merger: &MergeEngine{
			LLM:     client,
			Repo:    repo,
			Timeout: tuning.AITimeout,
		},
		MaxKeywords: tuning.MaxKeywords,
	}
}

// Ingest runs one submission through the pipeline. Only ErrInvalidInput
// and *PersistenceError escape; AI failures degrade silently.
func (s *Service) Ingest(ctx context.Context, rawText, userID string) (IngestResult, error) {
	start := time.Now()
	res, err := s.ingest(ctx, rawText, userID)
	if err != nil {
		if !errors.Is(err, ErrInvalidInput) {
			metrics.IncIngest("error")
			telemetry.Error("ingest.failed", map[string]any{
				"user_id": userID,
				"error":   err.Error(),
			})
		}
		return IngestResult{}, err
	}
	metrics.IncIngest(string(res.Status))
	metrics.ObserveIngestDurationMs(metrics.SinceMillis(start))
	telemetry.Info("ingest.complete", map[string]any{
		"user_id":      userID,
		"record_id":    res.Record.ID,
		"status":       string(res.Status),
		"merged_count": res.MergedCount,
		"duration_ms":  metrics.SinceMillis(start),
	})
	return res, nil
}

func (s *Service) ingest(ctx context.Context, rawText, userID string) (IngestResult, error) {
	content := strings.TrimSpace(rawText)
	userID = strings.TrimSpace(userID)
	if content == "" || userID == "" {
		return IngestResult{}, ErrMissingInput
	}

	parsed := s.Extractor.Extract(ctx, content).Normalized()

	normalized := Normalize(content)
	hash := Fingerprint(normalized)
	keywords := extractKeywords(normalized, s.MaxKeywords)

	existing, found, err := s.Index.FindExact(ctx, userID, hash)
	if err != nil {
		return IngestResult{}, persistenceError("find exact", err)
	}
	if found {
		return s.update(ctx, existing, content, parsed, keywords)
	}

	now := s.now()
	candidate := ResumeRecord{
		ID:               uuid.NewString(),
		UserID:           userID,
		RawContent:       content,
		ParsedData:       parsed,
		ContentHash:      hash,
		Keywords:         keywords,
		SimilarDocuments: []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	similar, err := s.Index.FindSimilar(ctx, userID, candidate.ID, keywords, SubstringProbe(content))
	if err != nil {
		return IngestResult{}, persistenceError("find similar", err)
	}

	if significant := s.Index.Significant(similar, keywords); len(significant) > 0 {
		merged, err := s.Merger.Merge(ctx, candidate, significant)
		if errors.Is(err, ErrDuplicateContent) {
			return s.recoverDuplicate(ctx, candidate)
		}
		if err != nil {
			return IngestResult{}, persistenceError("merge", err)
		}
		return IngestResult{
			Status:      StatusMerged,
			Message:     mergedMessage(len(significant)),
			Data:        merged.ParsedData,
			MergedCount: len(significant),
			Record:      merged,
		}, nil
	}

	if err := s.Repo.Create(ctx, candidate); err != nil {
		if errors.Is(err, ErrDuplicateContent) {
			return s.recoverDuplicate(ctx, candidate)
		}
		return IngestResult{}, persistenceError("create", err)
	}
	return IngestResult{
		Status:  StatusSaved,
		Message: messageSaved,
		Data:    candidate.ParsedData,
		Record:  candidate,
	}, nil
}

func (s *Service) update(ctx context.Context, existing ResumeRecord, content string, parsed StructuredRecord, keywords []string) (IngestResult, error) {
	upd := ContentUpdate{
		RawContent: content,
		ParsedData: parsed,
		Keywords:   keywords,
		UpdatedAt:  s.now(),
	}
	if err := s.Repo.UpdateContent(ctx, existing.UserID, existing.ID, upd); err != nil {
		return IngestResult{}, persistenceError("update content", err)
	}
	existing.RawContent = upd.RawContent
	existing.ParsedData = upd.ParsedData
	existing.Keywords = upd.Keywords
	existing.UpdatedAt = upd.UpdatedAt
	return IngestResult{
		Status:  StatusUpdated,
		Message: messageUpdated,
		Data:    existing.ParsedData,
		Record:  existing,
	}, nil
}

// recoverDuplicate handles a concurrent submission of the same content that
// won the insert: the losing write becomes an update of the winner.
func (s *Service) recoverDuplicate(ctx context.Context, candidate ResumeRecord) (IngestResult, error) {
	telemetry.Info("ingest.duplicate_race", map[string]any{
		"user_id":      candidate.UserID,
		"content_hash": candidate.ContentHash,
	})
	existing, found, err := s.Index.FindExact(ctx, candidate.UserID, candidate.ContentHash)
	if err != nil {
		return IngestResult{}, persistenceError("find exact", err)
	}
	if !found {
		return IngestResult{}, persistenceError("create", ErrDuplicateContent)
	}
	return s.update(ctx, existing, candidate.RawContent, candidate.ParsedData, candidate.Keywords)
}

// Get returns one record of the user, superseded or not.
func (s *Service) Get(ctx context.Context, userID, id string) (ResumeRecord, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(id) == "" {
		return ResumeRecord{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, userID, id)
}

// List returns the user's records, newest first.
func (s *Service) List(ctx context.Context, userID string, opts ListOptions) ([]ResumeRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByUser(ctx, userID, opts.normalized())
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
