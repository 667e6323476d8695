package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTuningDefaultsWithoutFile(t *testing.T) {
	tuning, err := LoadTuning("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTuning(), tuning)
}

func TestLoadTuningPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("similarity_threshold: 0.45\nai_timeout: 15s\n"), 0o644))

	tuning, err := LoadTuning(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.45, tuning.SimilarityThreshold, 1e-9)
	assert.Equal(t, 15*time.Second, tuning.AITimeout)
	assert.Equal(t, 5, tuning.MaxCandidates)
	assert.Equal(t, 100, tuning.MaxKeywords)
}

func TestLoadTuningRejectsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("similarity_threshold: 1.5\n"), 0o644))

	tuning, err := LoadTuning(path)
	require.Error(t, err)
	assert.Equal(t, DefaultTuning(), tuning)
}

func TestApplyTuningEnvOverrides(t *testing.T) {
	t.Setenv("SIMILARITY_THRESHOLD", "0.5")
	t.Setenv("SIMILARITY_MAX_CANDIDATES", "3")
	t.Setenv("AI_TIMEOUT_SECONDS", "20")

	got := applyTuningEnv(DefaultTuning())
	assert.InDelta(t, 0.5, got.SimilarityThreshold, 1e-9)
	assert.Equal(t, 3, got.MaxCandidates)
	assert.Equal(t, 20*time.Second, got.AITimeout)
}

func TestApplyTuningEnvIgnoresInvalid(t *testing.T) {
	t.Setenv("SIMILARITY_MAX_CANDIDATES", "0")

	got := applyTuningEnv(DefaultTuning())
	assert.Equal(t, DefaultTuning(), got)
}

func TestNormalizeStore(t *testing.T) {
	assert.Equal(t, "postgres", normalizeStore("", "postgres://x"))
	assert.Equal(t, "memory", normalizeStore("", ""))
	assert.Equal(t, "sqlite", normalizeStore("SQLite", "postgres://x"))
	assert.Equal(t, "postgres", normalizeStore("pg", ""))
}
