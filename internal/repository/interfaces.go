package repository

import (
	"context"
	"time"

	"filepulse/internal/domain/file"
	"filepulse/internal/domain/job"

	"github.com/google/uuid"
)

// FileRepository is the durable metadata store for uploaded files.
type FileRepository interface {
	Create(ctx context.Context, rec *file.FileRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (file.FileRecord, error)
	// UpdateFields applies a partial column update to one record.
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	// List returns all records newest first, with the parsed payload omitted.
	List(ctx context.Context) ([]file.FileRecord, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// JobRepository is the durable backing table for the work queue.
type JobRepository interface {
	Create(ctx context.Context, j *job.Job) error
	// ClaimNext atomically claims the oldest runnable job of the given type,
	// flipping it PENDING -> PROCESSING. Returns ErrNotFound when no job is
	// runnable.
	ClaimNext(ctx context.Context, jobType string, now time.Time) (job.Job, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	// Release returns a claimed job to PENDING for redelivery at nextRunAt.
	Release(ctx context.Context, id uuid.UUID, attempts int, nextRunAt time.Time, lastError string) error
	MarkDead(ctx context.Context, id uuid.UUID, attempts int, lastError string) error
	// ReleaseStale requeues PROCESSING jobs whose claim is older than the
	// cutoff, covering consumers that crashed mid-job.
	ReleaseStale(ctx context.Context, jobType string, olderThan time.Duration) (int64, error)
}
