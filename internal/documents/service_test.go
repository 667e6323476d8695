package documents

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-builder/internal/extract"
	"resume-builder/internal/llm"
	"resume-builder/internal/queue"
	"resume-builder/internal/shared/storage/object"
	"resume-builder/internal/shared/storage/object/local"
	"resume-builder/internal/shared/telemetry"
	"resume-builder/internal/structured"
)

const resumeText = "Jane Doe\nsoftware engineer at Acme Corporation\nSkills: Go, Kubernetes, Postgres\n"

type fakeIngester struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeIngester) Ingest(ctx context.Context, rawText, userID string) (structured.IngestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, rawText)
	if f.err != nil {
		return structured.IngestResult{}, f.err
	}
	return structured.IngestResult{
		Status:  structured.StatusSaved,
		Message: "Resume saved",
		Record:  structured.ResumeRecord{ID: "rec-1", UserID: userID, RawContent: rawText},
	}, nil
}

func (f *fakeIngester) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

type fakeQueue struct {
	sent []queue.Message
	err  error
}

func (q *fakeQueue) Send(ctx context.Context, msg queue.Message) error {
	if q.err != nil {
		return q.err
	}
	q.sent = append(q.sent, msg)
	return nil
}

func newService(t *testing.T, ing Ingester) (*Service, *MemoryRepo) {
	t.Helper()
	repo := NewMemoryRepo()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &Service{
		Store:           local.New(t.TempDir()),
		Repo:            repo,
		Ingester:        ing,
		StorageProvider: "local",
		Now:             func() time.Time { return fixed },
	}, repo
}

func TestUploadInlineIngests(t *testing.T) {
	ing := &fakeIngester{}
	svc, repo := newService(t, ing)
	ctx := context.Background()

	res, err := svc.Upload(ctx, "user-1", "resume.txt", strings.NewReader(resumeText))
	require.NoError(t, err)
	assert.False(t, res.Queued)
	require.NotNil(t, res.Ingest)
	assert.Equal(t, structured.StatusSaved, res.Ingest.Status)

	doc, err := repo.GetByID(ctx, "user-1", res.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusIngested, doc.IngestStatus)
	assert.Equal(t, "rec-1", doc.RecordID)
	assert.Equal(t, "local", doc.StorageProvider)
	assert.Equal(t, int64(len(resumeText)), doc.SizeBytes)
	assert.Equal(t, object.ExtractedKey(doc.StorageKey), doc.ExtractedTextKey)
	require.NotNil(t, doc.ExtractedAt)
	assert.Equal(t, []string{strings.TrimSpace(resumeText)}, ing.texts)

	rc, err := svc.Store.Open(ctx, doc.ExtractedTextKey)
	require.NoError(t, err)
	defer rc.Close()
	cached, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(resumeText), string(cached))
}

func TestUploadQueued(t *testing.T) {
	ing := &fakeIngester{}
	svc, repo := newService(t, ing)
	q := &fakeQueue{}
	svc.Queue = q
	ctx := telemetry.WithRequestID(context.Background(), "req-9")

	res, err := svc.Upload(ctx, "user-1", "resume.md", strings.NewReader(resumeText))
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.Nil(t, res.Ingest)
	assert.Equal(t, 0, ing.calls())

	require.Len(t, q.sent, 1)
	assert.Equal(t, res.Document.ID, q.sent[0].DocumentID)
	assert.Equal(t, "user-1", q.sent[0].UserID)
	assert.Equal(t, "req-9", q.sent[0].RequestID)

	doc, err := repo.GetByID(ctx, "user-1", res.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, doc.IngestStatus)

	require.NoError(t, svc.Process(ctx, q.sent[0]))
	doc, err = repo.GetByID(ctx, "user-1", res.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusIngested, doc.IngestStatus)
	assert.Equal(t, 1, ing.calls())
}

func TestUploadQueueFailureMarksFailed(t *testing.T) {
	svc, repo := newService(t, &fakeIngester{})
	svc.Queue = &fakeQueue{err: errors.New("broker down")}
	ctx := context.Background()

	res, err := svc.Upload(ctx, "user-1", "resume.txt", strings.NewReader(resumeText))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	doc, err := repo.GetByID(ctx, "user-1", res.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, doc.IngestStatus)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	svc, repo := newService(t, &fakeIngester{})
	ctx := context.Background()

	_, err := svc.Upload(ctx, "user-1", "photo.png", strings.NewReader("\x89PNG\r\n\x1a\nrest"))
	var unsupported *extract.UnsupportedTypeError
	require.ErrorAs(t, err, &unsupported)

	docs, err := repo.ListByUser(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestUploadValidatesInput(t *testing.T) {
	svc, _ := newService(t, &fakeIngester{})
	ctx := context.Background()

	_, err := svc.Upload(ctx, "", "resume.txt", strings.NewReader(resumeText))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Upload(ctx, "user-1", "  ", strings.NewReader(resumeText))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Upload(ctx, "user-1", "..", strings.NewReader(resumeText))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProcessFailureRecordsError(t *testing.T) {
	ing := &fakeIngester{err: &structured.PersistenceError{Op: "create", Err: errors.New("db gone")}}
	svc, repo := newService(t, ing)
	ctx := context.Background()

	res, err := svc.Upload(ctx, "user-1", "resume.txt", strings.NewReader(resumeText))
	require.Error(t, err)
	var perr *structured.PersistenceError
	assert.ErrorAs(t, err, &perr)

	doc, err := repo.GetByID(ctx, "user-1", res.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, doc.IngestStatus)
	assert.Contains(t, doc.IngestError, "db gone")
	assert.NotEmpty(t, doc.ExtractedTextKey)
}

func TestProcessEmptyTextFails(t *testing.T) {
	svc, repo := newService(t, &fakeIngester{})
	ctx := context.Background()

	res, err := svc.Upload(ctx, "user-1", "blank.txt", strings.NewReader("   \n  "))
	require.ErrorIs(t, err, extract.ErrNoText)

	doc, err := repo.GetByID(ctx, "user-1", res.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, doc.IngestStatus)
	assert.Empty(t, doc.ExtractedTextKey)
}

func TestProcessReusesCachedText(t *testing.T) {
	ing := &fakeIngester{err: errors.New("temporary")}
	svc, _ := newService(t, ing)
	ctx := context.Background()

	res, err := svc.Upload(ctx, "user-1", "resume.txt", strings.NewReader(resumeText))
	require.Error(t, err)

	// Replace the original so only the cached text can satisfy the retry.
	_, err = svc.Store.PutKey(ctx, res.Document.StorageKey, "text/plain", strings.NewReader("changed"))
	require.NoError(t, err)

	ing.err = nil
	doc, _, err := svc.ProcessDocument(ctx, "user-1", res.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusIngested, doc.IngestStatus)
	assert.Equal(t, strings.TrimSpace(resumeText), ing.texts[len(ing.texts)-1])
}

func TestProcessIngestedIsNoop(t *testing.T) {
	ing := &fakeIngester{}
	svc, _ := newService(t, ing)
	ctx := context.Background()

	res, err := svc.Upload(ctx, "user-1", "resume.txt", strings.NewReader(resumeText))
	require.NoError(t, err)

	doc, out, err := svc.ProcessDocument(ctx, "user-1", res.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusIngested, doc.IngestStatus)
	assert.Empty(t, out.Status)
	assert.Equal(t, 1, ing.calls())
}

func TestProcessOtherUsersDocument(t *testing.T) {
	svc, _ := newService(t, &fakeIngester{})
	ctx := context.Background()

	res, err := svc.Upload(ctx, "user-1", "resume.txt", strings.NewReader(resumeText))
	require.NoError(t, err)

	_, _, err = svc.ProcessDocument(ctx, "user-2", res.Document.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(ctx, "user-2", res.Document.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUploadThroughPipeline(t *testing.T) {
	tuning := structured.DefaultTuning()
	tuning.AITimeout = 2 * time.Second
	pipeline := structured.NewService(structured.NewMemoryRepo(), llm.PlaceholderClient{}, tuning)
	svc, _ := newService(t, pipeline)
	ctx := context.Background()

	first, err := svc.Upload(ctx, "user-1", "resume.txt", strings.NewReader(resumeText))
	require.NoError(t, err)
	require.NotNil(t, first.Ingest)
	assert.Equal(t, structured.StatusSaved, first.Ingest.Status)

	second, err := svc.Upload(ctx, "user-1", "copy.txt", strings.NewReader(resumeText))
	require.NoError(t, err)
	require.NotNil(t, second.Ingest)
	assert.Equal(t, structured.StatusUpdated, second.Ingest.Status)
	assert.Equal(t, first.Document.RecordID, second.Document.RecordID)
}
