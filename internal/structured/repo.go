package structured

import (
	"context"
	"time"
)

// SimilarQuery selects active records of a user that share at least one
// keyword with Keywords or whose normalized content contains Probe.
type SimilarQuery struct {
	UserID    string
	ExcludeID string
	Keywords  []string
	Probe     string
	Limit     int
}

// Repo persists resume records. Implementations must reject a second active
// record for the same (UserID, ContentHash) with ErrDuplicateContent.
type Repo interface {
	Create(ctx context.Context, rec ResumeRecord) error
	GetByID(ctx context.Context, userID, id string) (ResumeRecord, error)
	FindActiveByHash(ctx context.Context, userID, contentHash string) (ResumeRecord, error)
	FindSimilar(ctx context.Context, q SimilarQuery) ([]ResumeRecord, error)
	UpdateContent(ctx context.Context, userID, id string, upd ContentUpdate) error
	MarkSuperseded(ctx context.Context, userID string, ids []string, supersededBy string, at time.Time) error
	// CreateMerged stores merged and marks supersededIDs as folded into it.
	// Either both happen or neither does.
	CreateMerged(ctx context.Context, merged ResumeRecord, supersededIDs []string, at time.Time) error
	ListByUser(ctx context.Context, userID string, opts ListOptions) ([]ResumeRecord, error)
}

// distinct returns the unique values of list in first-seen order.
func distinct(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, v := range list {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
