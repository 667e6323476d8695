package structured

import (
	"context"
	"errors"
	"sort"
)

// candidateFetchLimit bounds how many matching records are loaded for ranking.
const candidateFetchLimit = 50

// SimilarityIndex finds existing records that describe the same resume.
type SimilarityIndex struct {
	Repo          Repo
	Threshold     float64
	MaxCandidates int
}

// FindExact returns the active record of the user with the given hash.
func (s *SimilarityIndex) FindExact(ctx context.Context, userID, contentHash string) (ResumeRecord, bool, error) {
	rec, err := s.Repo.FindActiveByHash(ctx, userID, contentHash)
	if errors.Is(err, ErrNotFound) {
		return ResumeRecord{}, false, nil
	}
	if err != nil {
		return ResumeRecord{}, false, err
	}
	return rec, true, nil
}

// FindSimilar returns up to MaxCandidates active records of the user, other
// than excludeID, that share a keyword or contain the probe. Results are
// ordered by Score, then by recency.
func (s *SimilarityIndex) FindSimilar(ctx context.Context, userID, excludeID string, keywords []string, probe string) ([]ResumeRecord, error) {
	kws := distinct(keywords)
	if len(kws) == 0 && probe == "" {
		return nil, nil
	}
	found, err := s.Repo.FindSimilar(ctx, SimilarQuery{
		UserID:    userID,
		ExcludeID: excludeID,
		Keywords:  kws,
		Probe:     probe,
		Limit:     candidateFetchLimit,
	})
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64, len(found))
	for _, rec := range found {
		scores[rec.ID] = Score(rec, kws)
	}
	sort.SliceStable(found, func(i, j int) bool {
		si, sj := scores[found[i].ID], scores[found[j].ID]
		if si != sj {
			return si > sj
		}
		return found[i].CreatedAt.After(found[j].CreatedAt)
	})

	limit := s.MaxCandidates
	if limit <= 0 {
		limit = DefaultTuning().MaxCandidates
	}
	if len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

// Score is the share of the distinct keywords that also appear in the
// candidate's keywords, in [0,1]. An empty keyword list scores 0.
func Score(candidate ResumeRecord, keywords []string) float64 {
	kws := distinct(keywords)
	if len(kws) == 0 {
		return 0
	}
	have := make(map[string]struct{}, len(candidate.Keywords))
	for _, k := range candidate.Keywords {
		have[k] = struct{}{}
	}
	shared := 0
	for _, k := range kws {
		if _, ok := have[k]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(kws))
}

// IsSignificant reports whether a score clears the merge threshold. The
// comparison is strict: a score equal to the threshold does not merge.
func (s *SimilarityIndex) IsSignificant(score float64) bool {
	threshold := s.Threshold
	if threshold <= 0 {
		threshold = DefaultTuning().Threshold
	}
	return score > threshold
}

// Significant keeps the candidates whose score clears the threshold.
func (s *SimilarityIndex) Significant(candidates []ResumeRecord, keywords []string) []ResumeRecord {
	var out []ResumeRecord
	for _, c := range candidates {
		if s.IsSignificant(Score(c, keywords)) {
			out = append(out, c)
		}
	}
	return out
}
