//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/pagination"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/cloo-solutions/docqa/internal/testutil"
)

func setupPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pc.Terminate(context.Background()) })

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	t.Cleanup(pool.Close)
	return pool
}

func newTestDocument(name string) *domain.Document {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domain.NewDocument(uuid.NewString(), name, "uploaded_files/"+name, domain.FileTypePDF, 1024, "abc123", now)
}

func TestDocumentRepository_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewDocumentRepository(pool)

	doc := newTestDocument("report.pdf")
	require.NoError(t, repo.Upsert(ctx, doc))

	byID, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", byID.FileName)
	assert.Equal(t, domain.FileTypePDF, byID.FileType)
	assert.Equal(t, domain.DocumentStatusProcessing, byID.Status)
	assert.Empty(t, byID.Error)

	byName, err := repo.GetByFileName(ctx, "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byName.ID)
}

func TestDocumentRepository_UpsertSameFileNameKeepsID(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewDocumentRepository(pool)

	first := newTestDocument("report.pdf")
	require.NoError(t, repo.Upsert(ctx, first))
	require.NoError(t, repo.SetStatus(ctx, first.ID, domain.DocumentStatusFailed, 0, "embedding failed"))

	second := newTestDocument("report.pdf")
	second.SizeBytes = 2048
	second.SHA256 = "def456"
	require.NoError(t, repo.Upsert(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	got, err := repo.GetByFileName(ctx, "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(2048), got.SizeBytes)
	assert.Equal(t, "def456", got.SHA256)
	assert.Equal(t, domain.DocumentStatusProcessing, got.Status)
	assert.Empty(t, got.Error)

	docs, err := repo.List(ctx, nil, 0)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestDocumentRepository_SetStatus(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewDocumentRepository(pool)

	doc := newTestDocument("notes.pdf")
	require.NoError(t, repo.Upsert(ctx, doc))
	require.NoError(t, repo.SetStatus(ctx, doc.ID, domain.DocumentStatusIndexed, 7, ""))

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusIndexed, got.Status)
	assert.Equal(t, 7, got.ChunkCount)
	assert.True(t, !got.UpdatedAt.Before(doc.UpdatedAt))
}

func TestDocumentRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewDocumentRepository(pool)

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	_, err = repo.GetByFileName(ctx, "missing.pdf")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	err = repo.SetStatus(ctx, uuid.NewString(), domain.DocumentStatusIndexed, 1, "")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepository_ListEmpty(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)

	docs, err := NewDocumentRepository(pool).List(ctx, nil, 0)
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestDocumentRepository_ListKeyset(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewDocumentRepository(pool)

	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		require.NoError(t, repo.Upsert(ctx, newTestDocument(name)))
	}

	first, err := repo.List(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.False(t, first[0].UpdatedAt.Before(first[1].UpdatedAt))

	last := first[len(first)-1]
	rest, err := repo.List(ctx, &pagination.Cursor{ID: last.ID, UpdatedAt: last.UpdatedAt}, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)

	seen := map[string]bool{}
	for _, d := range append(first, rest...) {
		assert.False(t, seen[d.FileName], "duplicate %s", d.FileName)
		seen[d.FileName] = true
	}
	assert.Len(t, seen, 3)
}

func TestTxRunner_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	runner := NewTxRunner(pool)
	docs := NewDocumentRepository(pool)

	doc := newTestDocument("scan.png")
	doc.FileType = domain.FileTypeImage
	require.NoError(t, docs.Upsert(ctx, doc))

	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		if err := repos.Documents().SetStatus(ctx, doc.ID, domain.DocumentStatusFailed, 0, "boom"); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	got, err := docs.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusProcessing, got.Status)
}

func TestTxRunner_CommitsStatusAndJob(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	runner := NewTxRunner(pool)
	docs := NewDocumentRepository(pool)
	jobs := NewIngestJobRepository(pool)

	doc := newTestDocument("report.pdf")
	require.NoError(t, docs.Upsert(ctx, doc))

	job := domain.NewIngestJob(uuid.NewString(), doc.ID, doc.FileName, time.Now().UTC())
	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		if err := repos.Documents().SetStatus(ctx, doc.ID, domain.DocumentStatusFailed, 0, "embedding failed"); err != nil {
			return err
		}
		return repos.IngestJobs().Create(ctx, job)
	})
	require.NoError(t, err)

	got, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.DocumentID)
	assert.Equal(t, domain.IngestJobStatusPending, got.Status)
}

func TestQueryLogRepository_Create(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewQueryLogRepository(pool)

	require.NoError(t, repo.Create(ctx, service.QueryLogEntry{
		Query:      "what is in the report?",
		MatchCount: 3,
		TopScore:   0.91,
		DurationMs: 120,
		Outcome:    service.QueryOutcomeAnswered,
	}))

	var count int
	var outcome string
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*), MAX(outcome) FROM query_logs`).Scan(&count, &outcome))
	assert.Equal(t, 1, count)
	assert.Equal(t, service.QueryOutcomeAnswered, outcome)
}
