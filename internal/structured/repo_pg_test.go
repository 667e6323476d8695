package structured

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pgRecordColumns = []string{
	"id", "user_id", "raw_content", "parsed_data", "content_hash", "keywords", "similar_documents",
	"is_merged_document", "superseded", "superseded_by", "superseded_at", "created_at", "updated_at",
}

func newPGRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreate(t *testing.T) {
	repo, mock := newPGRepo(t)
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	rec := ResumeRecord{
		ID:          "rec-1",
		UserID:      "u1",
		RawContent:  "Jane Doe",
		ParsedData:  StructuredRecord{Education: []Education{{Institute: "MIT"}}},
		ContentHash: "hash",
		Keywords:    []string{"jane", "doe"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO resume_records (")).
		WithArgs(
			"rec-1", "u1", "Jane Doe",
			`{"education":[{"institute":"MIT","location":"","degree":"","major":"","startDate":"","endDate":"","gpa":"","relevantCoursework":"","other":""}],"workExperience":[]}`,
			"hash", `["jane","doe"]`, `[]`,
			false, false, nil, nil, now, now,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoCreateUniqueViolation(t *testing.T) {
	repo, mock := newPGRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO resume_records (")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_resume_records_active_hash"})

	err := repo.Create(context.Background(), ResumeRecord{ID: "rec-1", UserID: "u1", ContentHash: "hash"})
	assert.ErrorIs(t, err, ErrDuplicateContent)
	assert.Contains(t, err.Error(), "idx_resume_records_active_hash")
}

func TestPGRepoCreateOtherErrorPassesThrough(t *testing.T) {
	repo, mock := newPGRepo(t)
	boom := errors.New("connection reset")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO resume_records (")).WillReturnError(boom)

	err := repo.Create(context.Background(), ResumeRecord{ID: "rec-1"})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrDuplicateContent)
}

func TestPGRepoFindActiveByHash(t *testing.T) {
	repo, mock := newPGRepo(t)
	created := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(pgRecordColumns).AddRow(
		"rec-1", "u1", "Jane Doe",
		[]byte(`{"Education":[{"Institute":"MIT"}],"work_experience":[{"job_title":"Engineer"}]}`),
		"hash", []byte(`["jane","doe"]`), []byte(`["old-1"]`),
		true, false, nil, nil, created, created,
	)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND content_hash = $2 AND NOT superseded")).
		WithArgs("u1", "hash").
		WillReturnRows(rows)

	rec, err := repo.FindActiveByHash(context.Background(), "u1", "hash")
	require.NoError(t, err)
	assert.Equal(t, "MIT", rec.ParsedData.Education[0].Institute)
	assert.Equal(t, "Engineer", rec.ParsedData.WorkExperience[0].JobTitle)
	assert.Equal(t, []string{"jane", "doe"}, rec.Keywords)
	assert.Equal(t, []string{"old-1"}, rec.SimilarDocuments)
	assert.True(t, rec.IsMergedDocument)
	assert.Nil(t, rec.SupersededAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoFindActiveByHashNotFound(t *testing.T) {
	repo, mock := newPGRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM resume_records")).
		WillReturnRows(sqlmock.NewRows(pgRecordColumns))

	_, err := repo.FindActiveByHash(context.Background(), "u1", "hash")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPGRepoFindSimilar(t *testing.T) {
	repo, mock := newPGRepo(t)
	created := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	superseded := created.Add(time.Hour)
	rows := sqlmock.NewRows(pgRecordColumns).
		AddRow("rec-2", "u1", "b", []byte(`{}`), "h2", []byte(`["golang"]`), []byte(`[]`), false, false, nil, nil, created, created).
		AddRow("rec-3", "u1", "c", []byte(`{}`), "h3", []byte(`["rust"]`), []byte(`[]`), false, false, "rec-9", superseded, created, created)
	mock.ExpectQuery(regexp.QuoteMeta("keywords ?| ARRAY(SELECT jsonb_array_elements_text($3::jsonb))")).
		WithArgs("u1", "rec-1", `["golang","rust"]`, "jane doe engineer", candidateFetchLimit).
		WillReturnRows(rows)

	got, err := repo.FindSimilar(context.Background(), SimilarQuery{
		UserID:    "u1",
		ExcludeID: "rec-1",
		Keywords:  []string{"golang", "rust"},
		Probe:     "jane doe engineer",
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Empty(t, got[0].ParsedData.Education)
	assert.NotNil(t, got[0].ParsedData.Education)
	assert.Equal(t, "rec-9", got[1].SupersededBy)
	require.NotNil(t, got[1].SupersededAt)
	assert.True(t, superseded.Equal(*got[1].SupersededAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoUpdateContent(t *testing.T) {
	repo, mock := newPGRepo(t)
	at := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE resume_records\nSET raw_content = $1")).
		WithArgs("new", `{"education":[],"workExperience":[]}`, `["kw1"]`, at, "u1", "rec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE resume_records\nSET raw_content = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateContent(context.Background(), "u1", "rec-1", ContentUpdate{
		RawContent: "new", Keywords: []string{"kw1"}, UpdatedAt: at,
	}))
	err := repo.UpdateContent(context.Background(), "u1", "rec-404", ContentUpdate{})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoMarkSuperseded(t *testing.T) {
	repo, mock := newPGRepo(t)
	at := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("SET superseded = TRUE")).
		WithArgs("rec-new", at, "u1", `["rec-1","rec-2"]`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.MarkSuperseded(context.Background(), "u1", []string{"rec-1", "rec-2"}, "rec-new", at))
	require.NoError(t, repo.MarkSuperseded(context.Background(), "u1", nil, "rec-new", at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoListByUser(t *testing.T) {
	repo, mock := newPGRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND ($2 OR NOT superseded)")).
		WithArgs("u1", true, 100, 0).
		WillReturnRows(sqlmock.NewRows(pgRecordColumns))

	got, err := repo.ListByUser(context.Background(), "u1", ListOptions{IncludeSuperseded: true, Limit: 500})
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoCreateMergedCommits(t *testing.T) {
	repo, mock := newPGRepo(t)
	at := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	merged := ResumeRecord{ID: "rec-new", UserID: "u1", ContentHash: "h", IsMergedDocument: true, CreatedAt: at, UpdatedAt: at}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO resume_records (")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET superseded = TRUE")).
		WithArgs("rec-new", at, "u1", `["rec-1"]`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateMerged(context.Background(), merged, []string{"rec-1"}, at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoCreateMergedRollsBackOnSupersedeFailure(t *testing.T) {
	repo, mock := newPGRepo(t)
	at := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	merged := ResumeRecord{ID: "rec-new", UserID: "u1", ContentHash: "h", IsMergedDocument: true, CreatedAt: at, UpdatedAt: at}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO resume_records (")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET superseded = TRUE")).
		WillReturnError(errors.New("store down"))
	mock.ExpectRollback()

	err := repo.CreateMerged(context.Background(), merged, []string{"rec-1"}, at)
	assert.EqualError(t, err, "store down")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoCreateMergedDuplicateRollsBack(t *testing.T) {
	repo, mock := newPGRepo(t)
	at := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO resume_records (")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_resume_records_active_hash"})
	mock.ExpectRollback()

	err := repo.CreateMerged(context.Background(), ResumeRecord{ID: "rec-new", UserID: "u1"}, []string{"rec-1"}, at)
	assert.ErrorIs(t, err, ErrDuplicateContent)
	require.NoError(t, mock.ExpectationsWereMet())
}
