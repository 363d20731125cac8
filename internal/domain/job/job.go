package job

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusDead       = "DEAD"
)

// Job represents parse_jobs, the durable at-least-once work queue between
// the ingestion API and the worker. A job is claimed by flipping
// PENDING -> PROCESSING, released back to PENDING with a grown next_run_at
// on transient failure, and moved to DEAD once attempts reach max_attempts
// or the failure is permanent.
type Job struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	JobType     string    `gorm:"not null;index"`
	Payload     []byte    `gorm:"type:bytea"`
	Status      string    `gorm:"type:varchar(16);not null;default:'PENDING';index:idx_jobs_claim"`
	Attempts    int       `gorm:"not null;default:0"`
	MaxAttempts int       `gorm:"not null;default:1"`
	BackoffBase time.Duration
	NextRunAt   time.Time `gorm:"index:idx_jobs_claim"`
	LastError   string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"default:now()"`
	UpdatedAt   time.Time `gorm:"default:now()"`
}

func (Job) TableName() string {
	return "parse_jobs"
}

// NextDelay returns the redelivery delay after the given completed attempt
// count: base * 2^(attempt-1). The first delivery has no delay.
func NextDelay(base time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}
