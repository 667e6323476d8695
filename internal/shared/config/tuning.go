package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Tuning holds the heuristics of the structured-data pipeline.
type Tuning struct {
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	MaxCandidates       int           `yaml:"max_candidates"`
	MaxKeywords         int           `yaml:"max_keywords"`
	AITimeout           time.Duration `yaml:"ai_timeout"`
}

// DefaultTuning returns the values the merge heuristics were calibrated with.
func DefaultTuning() Tuning {
	return Tuning{
		SimilarityThreshold: 0.3,
		MaxCandidates:       5,
		MaxKeywords:         100,
		AITimeout:           60 * time.Second,
	}
}

// LoadTuning reads a YAML tuning file. An empty path yields the defaults.
// Fields missing from the file keep their default values.
func LoadTuning(path string) (Tuning, error) {
	tuning := DefaultTuning()
	if strings.TrimSpace(path) == "" {
		return tuning, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return tuning, fmt.Errorf("read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, &tuning); err != nil {
		return DefaultTuning(), fmt.Errorf("parse tuning file: %w", err)
	}
	if err := tuning.Validate(); err != nil {
		return DefaultTuning(), err
	}
	return tuning, nil
}

// Validate rejects values outside the ranges the pipeline supports.
func (t Tuning) Validate() error {
	if t.SimilarityThreshold <= 0 || t.SimilarityThreshold >= 1 {
		return fmt.Errorf("similarity_threshold must be in (0,1), got %v", t.SimilarityThreshold)
	}
	if t.MaxCandidates < 1 || t.MaxCandidates > 50 {
		return fmt.Errorf("max_candidates must be in [1,50], got %d", t.MaxCandidates)
	}
	if t.MaxKeywords < 1 {
		return fmt.Errorf("max_keywords must be positive, got %d", t.MaxKeywords)
	}
	if t.AITimeout <= 0 {
		return fmt.Errorf("ai_timeout must be positive, got %s", t.AITimeout)
	}
	return nil
}

func applyTuningEnv(t Tuning) Tuning {
	out := t
	out.SimilarityThreshold = getEnvFloat("SIMILARITY_THRESHOLD", t.SimilarityThreshold)
	out.MaxCandidates = getEnvInt("SIMILARITY_MAX_CANDIDATES", t.MaxCandidates)
	out.AITimeout = getEnvDuration("AI_TIMEOUT_SECONDS", t.AITimeout)
	if err := out.Validate(); err != nil {
		log.Printf("tuning env overrides ignored: %v", err)
		return t
	}
	return out
}
