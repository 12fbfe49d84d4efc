package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/telemetry"
)

const (
	// MaxRetries is the maximum number of retries for a failed job
	MaxRetries = 3
)

// IngestJobRepository defines the interface for ingest job persistence
type IngestJobRepository interface {
	// GetPendingJobs retrieves and claims pending ingest jobs
	GetPendingJobs(ctx context.Context) ([]*domain.IngestJob, error)

	UpdateJobStatus(ctx context.Context, jobID string, status domain.IngestJobStatus, errMsg string) error

	IncrementRetries(ctx context.Context, jobID string) error
}

// Reingester re-runs the ingestion pipeline on a stored document.
type Reingester interface {
	IngestStored(ctx context.Context, documentID string) error
}

// ReingestWorker retries ingestions that failed on an external service.
type ReingestWorker struct {
	repo    IngestJobRepository
	service Reingester
}

// NewReingestWorker creates a new ReingestWorker instance
func NewReingestWorker(repo IngestJobRepository, service Reingester) *ReingestWorker {
	return &ReingestWorker{
		repo:    repo,
		service: service,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *ReingestWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.GetPendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("reingest: processing %d pending jobs", len(jobs))

	for _, job := range jobs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("reingest: error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *ReingestWorker) processJob(ctx context.Context, job *domain.IngestJob) error {
	ctx, span := telemetry.StartTransaction(ctx, "ReingestWorker.processJob", "job.reingest", telemetry.SpanAttributes{
		FileName:   job.FileName,
		DocumentID: job.DocumentID,
		Operation:  "reingest",
	})
	defer span.End()
	telemetry.AddBreadcrumb(ctx, "reingest", fmt.Sprintf("job %s for %s", job.ID, job.FileName))

	log.Printf("reingest: job %s for document %s (%s)", job.ID, job.DocumentID, job.FileName)
	if err := w.service.IngestStored(ctx, job.DocumentID); err != nil {
		span.SetError(err)
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IngestJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("reingest: job %s completed", job.ID)
	return nil
}

// handleJobFailure handles a failed job with retry logic
func (w *ReingestWorker) handleJobFailure(ctx context.Context, job *domain.IngestJob, jobErr error) error {
	log.Printf("reingest: job %s failed: %v", job.ID, jobErr)

	if !retryable(jobErr) {
		errMsg := fmt.Sprintf("not retryable: %v", jobErr)
		if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IngestJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		log.Printf("reingest: job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		telemetry.CaptureMessage(ctx, fmt.Sprintf("reingest of %s gave up after %d attempts", job.FileName, MaxRetries))
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IngestJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("reingest: job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IngestJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}

// retryable reports whether another attempt could succeed. Missing
// documents, unreadable files and dimension mismatches will fail again.
func retryable(err error) bool {
	if errors.Is(err, domain.ErrDocumentNotFound) || errors.Is(err, domain.ErrFileNotFound) ||
		errors.Is(err, domain.ErrDimensionMismatch) {
		return false
	}
	var de *domain.DomainError
	if errors.As(err, &de) && de.Code == domain.ErrCodeExtraction {
		return false
	}
	return true
}
