package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-builder/internal/llm"
	"resume-builder/internal/shared/config"
)

const resumeText = "Jane Doe\nSoftware Engineer at Acme Corporation\nSkills: Go, Kubernetes, Postgres\n"

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:             "dev",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		Store:           "memory",
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		LLMProvider:     "none",
		RateLimit:       config.RateLimit{IngestPerMinute: 600, IngestBurst: 50},
		Tuning:          config.DefaultTuning(),
	}
}

func buildApp(t *testing.T, cfg config.Config) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	app, err := Build(context.Background(), cfg, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func upload(t *testing.T, router http.Handler, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fw, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Guest-Id", "test-guest")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-Guest-Id", "test-guest")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestBuildMemoryUploadToRecords(t *testing.T) {
	app := buildApp(t, testConfig(t))
	assert.IsType(t, llm.PlaceholderClient{}, app.LLM)
	assert.Nil(t, app.Queue)

	w := upload(t, app.Router, "resume.txt", resumeText)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = get(app.Router, "/api/v1/structured-data")
	require.Equal(t, http.StatusOK, w.Code)
	var records []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	assert.Len(t, records, 1)

	w = get(app.Router, "/api/v1/health")
	assert.Equal(t, http.StatusOK, w.Code)
	w = get(app.Router, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "documents_uploaded_total")
}

func TestBuildSQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store = "sqlite"
	cfg.SQLitePath = filepath.Join(t.TempDir(), "resume.db")
	app := buildApp(t, cfg)
	require.NotNil(t, app.Gorm)

	w := upload(t, app.Router, "resume.txt", resumeText)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = get(app.Router, "/api/v1/documents")
	require.Equal(t, http.StatusOK, w.Code)
	var docs []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "ingested", docs[0]["status"])
}

func TestBuildFallsBackInDev(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLMProvider = "openai"
	cfg.Store = "postgres"
	cfg.DatabaseURL = ""
	app := buildApp(t, cfg)
	assert.Equal(t, "memory", app.Config.Store)
	assert.Equal(t, "none", app.Config.LLMProvider)
	assert.Nil(t, app.DB)
}

func TestBuildFailsInProduction(t *testing.T) {
	cfg := testConfig(t)
	cfg.Env = "production"
	cfg.LLMProvider = "openai"
	_, err := Build(context.Background(), cfg, Options{})
	assert.Error(t, err)
}

func TestStructuredTuningMapsConfig(t *testing.T) {
	got := structuredTuning(config.Tuning{SimilarityThreshold: 0.4, MaxCandidates: 3, MaxKeywords: 50, AITimeout: 5 * time.Second})
	assert.Equal(t, 0.4, got.Threshold)
	assert.Equal(t, 3, got.MaxCandidates)
	assert.Equal(t, 50, got.MaxKeywords)
	assert.Equal(t, 5*time.Second, got.AITimeout)
}
