package structured

import (
	"context"
	"time"

	"resume-builder/internal/llm"
	"resume-builder/internal/shared/metrics"
	"resume-builder/internal/shared/telemetry"
)

// MergeEngine folds a candidate and its similar records into one new record.
type MergeEngine struct {
	LLM     llm.Client
	Repo    Repo
	Timeout time.Duration
	Now     func() time.Time
}

// Merge persists a merged record built from candidate and similar and, in
// the same write, marks every record in similar as superseded by it. The merged payload
// comes from the AI capability; when that fails the candidate's own payload
// is kept. Only persistence errors are returned.
func (m *MergeEngine) Merge(ctx context.Context, candidate ResumeRecord, similar []ResumeRecord) (ResumeRecord, error) {
	ids := make([]string, 0, len(similar))
	for _, rec := range similar {
		ids = append(ids, rec.ID)
	}

	payload, err := m.consolidate(ctx, candidate, similar)
	if err != nil {
		telemetry.Warn("merge.degraded", map[string]any{
			"user_id":      candidate.UserID,
			"candidate_id": candidate.ID,
			"merged_from":  ids,
			"error":        err.Error(),
		})
		metrics.IncMergeDegraded()
		payload = candidate.ParsedData
	}

	now := m.now()
	merged := candidate
	merged.ParsedData = payload.Normalized()
	merged.SimilarDocuments = ids
	merged.IsMergedDocument = true
	merged.Superseded = false
	merged.SupersededBy = ""
	merged.SupersededAt = nil
	merged.CreatedAt = now
	merged.UpdatedAt = now

	if err := m.Repo.CreateMerged(ctx, merged, ids, now); err != nil {
		return ResumeRecord{}, err
	}
	return merged, nil
}

func (m *MergeEngine) consolidate(ctx context.Context, candidate ResumeRecord, similar []ResumeRecord) (StructuredRecord, error) {
	if m.LLM == nil {
		return StructuredRecord{}, llm.ErrNotImplemented
	}
	others := make([]StructuredRecord, 0, len(similar))
	for _, rec := range similar {
		others = append(others, rec.ParsedData)
	}
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = DefaultTuning().AITimeout
	}
	out, err := completeWithTimeout(ctx, m.LLM, timeout, buildMergePrompt(candidate.ParsedData, others))
	if err != nil {
		return StructuredRecord{}, err
	}
	return DecodePayload(out)
}

func (m *MergeEngine) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}
