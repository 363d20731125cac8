package repository

import (
	"context"
	"errors"
	"time"

	"filepulse/internal/domain/job"
	filepulse_errors "filepulse/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresJobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &PostgresJobRepository{db: db}
}

func (r *PostgresJobRepository) Create(ctx context.Context, j *job.Job) error {
	res := r.db.WithContext(ctx).Create(j)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return filepulse_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresJobRepository) ClaimNext(ctx context.Context, jobType string, now time.Time) (job.Job, error) {
	var claimed job.Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("job_type = ? AND status = ? AND next_run_at <= ?", jobType, job.StatusPending, now).
			Order("next_run_at ASC").
			Clauses(lockForUpdateSkipLocked()).
			First(&claimed).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return filepulse_errors.ErrNotFound
			}
			return err
		}

		res := tx.Model(&job.Job{}).
			Where("id = ? AND status = ?", claimed.ID, job.StatusPending).
			Updates(map[string]interface{}{
				"status":     job.StatusProcessing,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the claim to a concurrent consumer.
			return filepulse_errors.ErrNotFound
		}
		claimed.Status = job.StatusProcessing
		return nil
	})
	if err != nil {
		return job.Job{}, err
	}
	return claimed, nil
}

func (r *PostgresJobRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	return r.updateStatus(ctx, id, map[string]interface{}{
		"status":     job.StatusCompleted,
		"updated_at": time.Now(),
	})
}

func (r *PostgresJobRepository) Release(ctx context.Context, id uuid.UUID, attempts int, nextRunAt time.Time, lastError string) error {
	return r.updateStatus(ctx, id, map[string]interface{}{
		"status":      job.StatusPending,
		"attempts":    attempts,
		"next_run_at": nextRunAt,
		"last_error":  lastError,
		"updated_at":  time.Now(),
	})
}

func (r *PostgresJobRepository) MarkDead(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	return r.updateStatus(ctx, id, map[string]interface{}{
		"status":     job.StatusDead,
		"attempts":   attempts,
		"last_error": lastError,
		"updated_at": time.Now(),
	})
}

func (r *PostgresJobRepository) ReleaseStale(ctx context.Context, jobType string, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := r.db.WithContext(ctx).
		Model(&job.Job{}).
		Where("job_type = ? AND status = ? AND updated_at < ?", jobType, job.StatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":      job.StatusPending,
			"next_run_at": time.Now(),
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *PostgresJobRepository) updateStatus(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&job.Job{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return filepulse_errors.ErrNotFound
	}
	return nil
}
