package queue

import (
	"context"
	"encoding/json"
	"time"

	"filepulse/internal/domain/job"
	"filepulse/internal/repository"

	"github.com/google/uuid"
)

// JobTypeParse identifies parse jobs in the queue table.
const JobTypeParse = "parse-file"

// ParsePayload is the payload carried by a JobTypeParse job.
type ParsePayload struct {
	FileID uuid.UUID `json:"file_id"`
}

// Options configure admission of a single job.
type Options struct {
	MaxAttempts int
	BackoffBase time.Duration
}

// Enqueuer admits jobs to the durable queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload interface{}, opts Options) (uuid.UUID, error)
}

// Queue is the producer side of the work queue. Enqueue returns once the
// job row is durably admitted; delivery happens on the consumer's schedule.
type Queue struct {
	jobs repository.JobRepository
}

func New(jobs repository.JobRepository) *Queue {
	return &Queue{jobs: jobs}
}

func (q *Queue) Enqueue(ctx context.Context, jobType string, payload interface{}, opts Options) (uuid.UUID, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, err
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	j := job.Job{
		ID:          uuid.New(),
		JobType:     jobType,
		Payload:     body,
		Status:      job.StatusPending,
		MaxAttempts: opts.MaxAttempts,
		BackoffBase: opts.BackoffBase,
		NextRunAt:   time.Now(),
	}
	if err := q.jobs.Create(ctx, &j); err != nil {
		return uuid.Nil, err
	}
	return j.ID, nil
}
