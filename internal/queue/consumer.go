package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"filepulse/internal/domain/job"
	"filepulse/internal/repository"
	filepulse_errors "filepulse/pkg/errors"
	"filepulse/pkg/logger"
)

// ErrPermanent marks a failure retry cannot fix; the job goes straight to
// DEAD regardless of remaining attempts.
var ErrPermanent = errors.New("permanent job failure")

// Handler processes one delivered job payload.
type Handler func(ctx context.Context, payload []byte) error

// staleClaimAfter is how long a PROCESSING claim may sit before it is
// assumed orphaned by a crashed consumer and requeued.
const staleClaimAfter = 5 * time.Minute

// Consumer polls the queue table and dispatches claimed jobs to the
// handler with bounded concurrency. A job is delivered to exactly one
// concurrent consumer; failed attempts are redelivered with exponential
// backoff until max attempts, then dead-lettered.
type Consumer struct {
	jobs         repository.JobRepository
	jobType      string
	handler      Handler
	log          *logger.Logger
	pollInterval time.Duration
	concurrency  int
	wg           sync.WaitGroup
}

func NewConsumer(jobs repository.JobRepository, jobType string, handler Handler, log *logger.Logger, pollInterval time.Duration, concurrency int) *Consumer {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Consumer{
		jobs:         jobs,
		jobType:      jobType,
		handler:      handler,
		log:          log,
		pollInterval: pollInterval,
		concurrency:  concurrency,
	}
}

// Run blocks until ctx is cancelled and all in-flight jobs have finished.
func (c *Consumer) Run(ctx context.Context) {
	for i := 0; i < c.concurrency; i++ {
		c.wg.Add(1)
		go c.loop(ctx)
	}

	c.wg.Add(1)
	go c.reapLoop(ctx)

	c.wg.Wait()
}

func (c *Consumer) loop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain runnable jobs before going back to sleep.
			for c.processOne(ctx) {
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

func (c *Consumer) processOne(ctx context.Context) bool {
	j, err := c.jobs.ClaimNext(ctx, c.jobType, time.Now())
	if err != nil {
		if !errors.Is(err, filepulse_errors.ErrNotFound) && c.log != nil {
			c.log.Errorf("queue: claim failed: %s", err)
		}
		return false
	}

	c.dispatch(ctx, j)
	return true
}

func (c *Consumer) dispatch(ctx context.Context, j job.Job) {
	err := c.handler(ctx, j.Payload)
	attempts := j.Attempts + 1

	switch {
	case err == nil:
		if mErr := c.jobs.MarkCompleted(ctx, j.ID); mErr != nil && c.log != nil {
			c.log.Errorf("queue: job %s complete mark failed: %s", j.ID, mErr)
		}
	case errors.Is(err, ErrPermanent):
		if c.log != nil {
			c.log.Errorf("queue: job %s failed permanently: %s", j.ID, err)
		}
		_ = c.jobs.MarkDead(ctx, j.ID, attempts, err.Error())
	case attempts >= j.MaxAttempts:
		if c.log != nil {
			c.log.Errorf("queue: job %s exhausted %d attempts: %s", j.ID, attempts, err)
		}
		_ = c.jobs.MarkDead(ctx, j.ID, attempts, err.Error())
	default:
		delay := job.NextDelay(j.BackoffBase, attempts)
		if c.log != nil {
			c.log.Warnf("queue: job %s attempt %d failed, retrying in %s: %s", j.ID, attempts, delay, err)
		}
		_ = c.jobs.Release(ctx, j.ID, attempts, time.Now().Add(delay), err.Error())
	}
}

func (c *Consumer) reapLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(staleClaimAfter / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.jobs.ReleaseStale(ctx, c.jobType, staleClaimAfter)
			if err != nil && c.log != nil {
				c.log.Errorf("queue: stale claim reap failed: %s", err)
			}
			if n > 0 && c.log != nil {
				c.log.Warnf("queue: requeued %d stale claims", n)
			}
		}
	}
}
