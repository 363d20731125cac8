package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"filepulse/internal/domain/file"
	"filepulse/internal/parser"
	"filepulse/internal/queue"
	"filepulse/internal/repository"
	"filepulse/internal/services"
	"filepulse/internal/storage"
	filepulse_errors "filepulse/pkg/errors"
	"filepulse/pkg/logger"
)

// Worker consumes parse jobs: it loads the durable record, extracts
// structured content from the stored payload and reconciles both stores
// with the outcome. Parsing is a pure function of the stored bytes, so a
// redelivered job reprocesses safely.
type Worker struct {
	files    repository.FileRepository
	progress services.ProgressStore
	events   services.EventPublisher
	store    storage.Storage
	log      *logger.Logger
}

func New(files repository.FileRepository, progress services.ProgressStore, events services.EventPublisher, store storage.Storage, log *logger.Logger) *Worker {
	return &Worker{
		files:    files,
		progress: progress,
		events:   events,
		store:    store,
		log:      log,
	}
}

// HandleParseJob is the queue.Handler for queue.JobTypeParse.
func (w *Worker) HandleParseJob(ctx context.Context, payload []byte) error {
	var p queue.ParsePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("%w: decode payload: %v", queue.ErrPermanent, err)
	}

	rec, err := w.files.GetByID(ctx, p.FileID)
	if err != nil {
		if errors.Is(err, filepulse_errors.ErrNotFound) {
			// A queued job without its record is a consistency error, not a
			// transient fault; retrying cannot fix a missing precondition.
			return fmt.Errorf("%w: file record %s missing", queue.ErrPermanent, p.FileID)
		}
		return err
	}

	// Idempotent re-assertion, safe if the ingest side already set it.
	w.mirror(ctx, rec.ID.String(), file.StatusProcessing, 95, "")
	_ = w.files.UpdateFields(ctx, rec.ID, map[string]interface{}{
		"status":   file.StatusProcessing,
		"progress": 95,
	})

	body, err := w.store.Open(ctx, rec.Path)
	if err != nil {
		return fmt.Errorf("open payload %s: %w", rec.Path, err)
	}
	defer body.Close()

	result, parseErr := parser.Parse(rec.OriginalName, rec.MimeType, body)
	if parseErr != nil {
		if w.log != nil {
			w.log.Errorf("worker: parse of %s failed: %s", rec.ID, parseErr)
		}
		if err := w.files.UpdateFields(ctx, rec.ID, map[string]interface{}{
			"status":   file.StatusFailed,
			"progress": 100,
			"error":    parseErr.Error(),
		}); err != nil {
			return err
		}
		w.mirror(ctx, rec.ID.String(), file.StatusFailed, 100, parseErr.Error())
		w.publish(ctx, rec.ID.String(), file.StatusFailed)
		// The queue's attempt budget decides whether this is retried.
		return parseErr
	}

	parsed, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%w: encode result: %v", queue.ErrPermanent, err)
	}

	if err := w.files.UpdateFields(ctx, rec.ID, map[string]interface{}{
		"parsed":   file.JSONB(parsed),
		"status":   file.StatusReady,
		"progress": 100,
		"error":    "",
	}); err != nil {
		return err
	}
	w.mirror(ctx, rec.ID.String(), file.StatusReady, 100, "")
	w.publish(ctx, rec.ID.String(), file.StatusReady)

	if w.log != nil {
		w.log.Infof("worker: parsed %s (%s)", rec.ID, rec.MimeType)
	}
	return nil
}

// mirror copies status/progress to the ephemeral store, best effort.
func (w *Worker) mirror(ctx context.Context, fileID string, status file.Status, progress int, errMsg string) {
	fields := map[string]interface{}{
		"status":   string(status),
		"progress": progress,
	}
	if errMsg != "" {
		fields["error"] = errMsg
	}
	if err := w.progress.SetFields(ctx, fileID, fields); err != nil && w.log != nil {
		w.log.Warnf("worker: progress mirror for %s failed: %s", fileID, err)
	}
}

func (w *Worker) publish(ctx context.Context, fileID string, status file.Status) {
	if err := w.events.PublishProgress(ctx, fileID, string(status), 100); err != nil && w.log != nil {
		w.log.Warnf("worker: %s event for %s failed: %s", status, fileID, err)
	}
}
