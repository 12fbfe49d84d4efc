//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docqa/internal/domain"
)

func createJob(ctx context.Context, t *testing.T, repo *IngestJobRepository, documentID string, status domain.IngestJobStatus, offset time.Duration) *domain.IngestJob {
	t.Helper()
	job := domain.NewIngestJob(uuid.NewString(), documentID, "report.pdf", time.Now().UTC().Add(offset).Truncate(time.Microsecond))
	job.Status = status
	require.NoError(t, repo.Create(ctx, job))
	return job
}

func TestIngestJobRepository_Create(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	doc := newTestDocument("report.pdf")
	require.NoError(t, NewDocumentRepository(pool).Upsert(ctx, doc))
	repo := NewIngestJobRepository(pool)

	job := createJob(ctx, t, repo, doc.ID, domain.IngestJobStatusPending, 0)

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.DocumentID)
	assert.Equal(t, "report.pdf", got.FileName)
	assert.Equal(t, int32(0), got.Retries)
	assert.Nil(t, got.ProcessedAt)
}

func TestIngestJobRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)

	_, err := NewIngestJobRepository(pool).GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrIngestJobNotFound)
}

func TestIngestJobRepository_ClaimPending(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	doc := newTestDocument("report.pdf")
	require.NoError(t, NewDocumentRepository(pool).Upsert(ctx, doc))
	repo := NewIngestJobRepository(pool)

	first := createJob(ctx, t, repo, doc.ID, domain.IngestJobStatusPending, 0)
	second := createJob(ctx, t, repo, doc.ID, domain.IngestJobStatusPending, time.Second)
	createJob(ctx, t, repo, doc.ID, domain.IngestJobStatusCompleted, 0)

	claimed, err := repo.ClaimPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, first.ID, claimed[0].ID)
	assert.Equal(t, domain.IngestJobStatusProcessing, claimed[0].Status)

	rest, err := repo.GetPendingJobs(ctx)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, second.ID, rest[0].ID)

	none, err := repo.GetPendingJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestIngestJobRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	doc := newTestDocument("report.pdf")
	require.NoError(t, NewDocumentRepository(pool).Upsert(ctx, doc))
	repo := NewIngestJobRepository(pool)

	job := createJob(ctx, t, repo, doc.ID, domain.IngestJobStatusProcessing, 0)

	require.NoError(t, repo.UpdateJobStatus(ctx, job.ID, domain.IngestJobStatusFailed, "embedding failed"))
	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestJobStatusFailed, got.Status)
	assert.Equal(t, "embedding failed", got.Error)
	assert.NotNil(t, got.ProcessedAt)

	require.NoError(t, repo.UpdateStatus(ctx, job.ID, domain.IngestJobStatusPending, ""))
	got, err = repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ProcessedAt)
	assert.Empty(t, got.Error)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, job.ID, "bogus", ""), domain.ErrInvalidIngestJobState)
	assert.ErrorIs(t, repo.UpdateStatus(ctx, uuid.NewString(), domain.IngestJobStatusCompleted, ""), ErrIngestJobNotFound)
}

func TestIngestJobRepository_IncrementRetries(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	doc := newTestDocument("report.pdf")
	require.NoError(t, NewDocumentRepository(pool).Upsert(ctx, doc))
	repo := NewIngestJobRepository(pool)

	job := createJob(ctx, t, repo, doc.ID, domain.IngestJobStatusPending, 0)
	require.NoError(t, repo.IncrementRetries(ctx, job.ID))
	require.NoError(t, repo.IncrementRetries(ctx, job.ID))

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), got.Retries)

	assert.ErrorIs(t, repo.IncrementRetries(ctx, uuid.NewString()), ErrIngestJobNotFound)
}
