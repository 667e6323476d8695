package structured

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo used in dev and tests.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]ResumeRecord // id -> record
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]ResumeRecord)}
}

// Create stores a new record, enforcing the active (user, hash) uniqueness.
func (r *MemoryRepo) Create(ctx context.Context, rec ResumeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(rec)
}

func (r *MemoryRepo) insertLocked(rec ResumeRecord) error {
	if _, ok := r.data[rec.ID]; ok {
		return ErrDuplicateContent
	}
	if !rec.Superseded {
		for _, existing := range r.data {
			if existing.UserID == rec.UserID && existing.ContentHash == rec.ContentHash && existing.Active() {
				return ErrDuplicateContent
			}
		}
	}
	r.data[rec.ID] = cloneRecord(rec)
	return nil
}

// CreateMerged inserts merged and supersedes the ids under one lock.
func (r *MemoryRepo) CreateMerged(ctx context.Context, merged ResumeRecord, supersededIDs []string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.insertLocked(merged); err != nil {
		return err
	}
	r.supersedeLocked(merged.UserID, supersededIDs, merged.ID, at)
	return nil
}

// GetByID returns a record of the user.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, id string) (ResumeRecord, error) {
	if err := ctx.Err(); err != nil {
		return ResumeRecord{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.data[id]
	if !ok || rec.UserID != userID {
		return ResumeRecord{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// FindActiveByHash returns the active record of the user with the hash.
func (r *MemoryRepo) FindActiveByHash(ctx context.Context, userID, contentHash string) (ResumeRecord, error) {
	if err := ctx.Err(); err != nil {
		return ResumeRecord{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.data {
		if rec.UserID == userID && rec.ContentHash == contentHash && rec.Active() {
			return cloneRecord(rec), nil
		}
	}
	return ResumeRecord{}, ErrNotFound
}

// FindSimilar returns active records matching any keyword or the probe,
// newest first.
func (r *MemoryRepo) FindSimilar(ctx context.Context, q SimilarQuery) ([]ResumeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[string]struct{}, len(q.Keywords))
	for _, k := range q.Keywords {
		want[k] = struct{}{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ResumeRecord
	for _, rec := range r.data {
		if rec.UserID != q.UserID || rec.ID == q.ExcludeID || !rec.Active() {
			continue
		}
		if sharesKeyword(rec.Keywords, want) || (q.Probe != "" && strings.Contains(Normalize(rec.RawContent), q.Probe)) {
			out = append(out, cloneRecord(rec))
		}
	}
	sortNewestFirst(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// UpdateContent refreshes an active record in place.
func (r *MemoryRepo) UpdateContent(ctx context.Context, userID, id string, upd ContentUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.data[id]
	if !ok || rec.UserID != userID || !rec.Active() {
		return ErrNotFound
	}
	rec.RawContent = upd.RawContent
	rec.ParsedData = upd.ParsedData.Normalized()
	rec.Keywords = append([]string(nil), upd.Keywords...)
	rec.UpdatedAt = upd.UpdatedAt
	r.data[id] = rec
	return nil
}

// MarkSuperseded flags the given records of the user as folded into supersededBy.
func (r *MemoryRepo) MarkSuperseded(ctx context.Context, userID string, ids []string, supersededBy string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.supersedeLocked(userID, ids, supersededBy, at)
	return nil
}

func (r *MemoryRepo) supersedeLocked(userID string, ids []string, supersededBy string, at time.Time) {
	for _, id := range ids {
		rec, ok := r.data[id]
		if !ok || rec.UserID != userID {
			continue
		}
		ts := at
		rec.Superseded = true
		rec.SupersededBy = supersededBy
		rec.SupersededAt = &ts
		rec.UpdatedAt = at
		r.data[id] = rec
	}
}

// ListByUser lists records of the user newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, opts ListOptions) ([]ResumeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.normalized()
	r.mu.RLock()
	var out []ResumeRecord
	for _, rec := range r.data {
		if rec.UserID != userID || (!opts.IncludeSuperseded && !rec.Active()) {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	r.mu.RUnlock()
	sortNewestFirst(out)
	if opts.Offset >= len(out) {
		return []ResumeRecord{}, nil
	}
	out = out[opts.Offset:]
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func sharesKeyword(keywords []string, want map[string]struct{}) bool {
	for _, k := range keywords {
		if _, ok := want[k]; ok {
			return true
		}
	}
	return false
}

func sortNewestFirst(recs []ResumeRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].ID > recs[j].ID
		}
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
}

func cloneRecord(rec ResumeRecord) ResumeRecord {
	rec.ParsedData = rec.ParsedData.Normalized()
	rec.Keywords = append([]string(nil), rec.Keywords...)
	rec.SimilarDocuments = append([]string(nil), rec.SimilarDocuments...)
	if rec.SupersededAt != nil {
		ts := *rec.SupersededAt
		rec.SupersededAt = &ts
	}
	return rec
}

var _ Repo = (*MemoryRepo)(nil)
