package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"filepulse/internal/domain/file"
	"filepulse/internal/queue"
	"filepulse/internal/repository"
	"filepulse/internal/storage"
	filepulse_errors "filepulse/pkg/errors"
	"filepulse/pkg/logger"

	"github.com/google/uuid"
)

// IngestService receives upload byte streams, persists them to storage
// with live progress accounting, creates the durable record on completion
// and hands the file off to the parse queue.
type IngestService struct {
	files    repository.FileRepository
	progress ProgressStore
	events   EventPublisher
	store    storage.Storage
	queue    queue.Enqueuer
	log      *logger.Logger

	maxAttempts int
	backoffBase time.Duration
}

func NewIngestService(files repository.FileRepository, progress ProgressStore, events EventPublisher, store storage.Storage, q queue.Enqueuer, log *logger.Logger, maxAttempts int, backoffBase time.Duration) *IngestService {
	if maxAttempts <= 0 {
		maxAttempts = 2
	}
	if backoffBase <= 0 {
		backoffBase = 2 * time.Second
	}
	return &IngestService{
		files:       files,
		progress:    progress,
		events:      events,
		store:       store,
		queue:       q,
		log:         log,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
	}
}

type IngestResult struct {
	FileID uuid.UUID
	Status file.Status
}

// Ingest consumes the multipart stream and returns once the payload is
// fully written and the parse job admitted. It never waits for parsing.
func (s *IngestService) Ingest(ctx context.Context, contentLength int64, mr *multipart.Reader) (IngestResult, error) {
	id := uuid.New()

	if err := s.progress.Init(ctx, id.String(), contentLength); err != nil {
		return IngestResult{}, err
	}

	part, err := nextFilePart(mr)
	if err != nil {
		// Nothing was created beyond the progress entry; clean it up.
		_ = s.progress.Delete(ctx, id.String())
		return IngestResult{}, err
	}
	defer part.Close()

	filename := part.FileName()
	if filename == "" {
		filename = "unknown"
	}
	mimeType := part.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	tracker := s.trackProgress(id.String(), contentLength)
	reader := &countingReader{r: part, observe: tracker.observe}

	size, err := s.store.Save(ctx, id.String(), reader)
	tracker.stop()
	if err != nil {
		s.markIngestFailed(id.String(), "storage write failed: "+err.Error())
		return IngestResult{}, err
	}

	rec := &file.FileRecord{
		ID:           id,
		OriginalName: filename,
		MimeType:     mimeType,
		Size:         size,
		Path:         id.String(),
		Status:       file.StatusProcessing,
		Progress:     95,
	}
	if err := s.files.Create(ctx, rec); err != nil {
		s.markIngestFailed(id.String(), "metadata record create failed: "+err.Error())
		return IngestResult{}, err
	}

	// The final pre-transition update is applied synchronously; the
	// intermediate ones may have been coalesced away.
	if err := s.progress.SetFields(ctx, id.String(), map[string]interface{}{
		"status":        string(file.StatusProcessing),
		"progress":      95,
		"bytesReceived": size,
	}); err != nil && s.log != nil {
		s.log.Warnf("ingest: progress mirror for %s failed: %s", id, err)
	}
	if err := s.events.PublishProgress(ctx, id.String(), string(file.StatusProcessing), 95); err != nil && s.log != nil {
		s.log.Warnf("ingest: processing event for %s failed: %s", id, err)
	}

	_, err = s.queue.Enqueue(ctx, queue.JobTypeParse, queue.ParsePayload{FileID: id}, queue.Options{
		MaxAttempts: s.maxAttempts,
		BackoffBase: s.backoffBase,
	})
	if err != nil {
		s.markIngestFailed(id.String(), "parse job enqueue failed: "+err.Error())
		_ = s.files.UpdateFields(ctx, id, map[string]interface{}{
			"status": file.StatusFailed,
			"error":  "parse job enqueue failed: " + err.Error(),
		})
		return IngestResult{}, err
	}

	return IngestResult{FileID: id, Status: file.StatusProcessing}, nil
}

// nextFilePart skips non-file form fields until the file part arrives.
func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, filepulse_errors.ErrMissingFilePart
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", filepulse_errors.ErrInvalidInput, err)
		}
		if part.FileName() != "" {
			return part, nil
		}
	}
}

func (s *IngestService) markIngestFailed(fileID, msg string) {
	// The client connection may already be gone; use a fresh context so the
	// failure state still lands.
	err := s.progress.SetFields(context.Background(), fileID, map[string]interface{}{
		"status": string(file.StatusFailed),
		"error":  msg,
	})
	if err != nil && s.log != nil {
		s.log.Errorf("ingest: failed-state write for %s failed: %s", fileID, err)
	}
}

// UploadProgress computes the upload-phase percentage, capped at 90 to
// reserve headroom for the processing phase. Unknown content length reports
// 0 for the whole phase.
func UploadProgress(bytesReceived, contentLength int64) int {
	if contentLength <= 0 {
		return 0
	}
	pct := int(float64(bytesReceived) / float64(contentLength) * 90)
	if pct < 0 {
		return 0
	}
	if pct > 90 {
		return 90
	}
	return pct
}

// progressTracker coalesces byte-count updates so the write path never
// blocks on the progress store. Only the latest pending count survives a
// slow store; lost intermediate percentages are acceptable.
type progressTracker struct {
	updates chan int64
	done    chan struct{}
}

func (s *IngestService) trackProgress(fileID string, contentLength int64) *progressTracker {
	t := &progressTracker{
		updates: make(chan int64, 1),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		for n := range t.updates {
			err := s.progress.SetFields(context.Background(), fileID, map[string]interface{}{
				"bytesReceived": n,
				"progress":      UploadProgress(n, contentLength),
			})
			if err != nil && s.log != nil {
				s.log.Warnf("ingest: progress update for %s failed: %s", fileID, err)
			}
		}
	}()
	return t
}

// observe never blocks: if an update is already pending it is replaced.
func (t *progressTracker) observe(n int64) {
	for {
		select {
		case t.updates <- n:
			return
		default:
		}
		select {
		case <-t.updates:
		default:
		}
	}
}

// stop drains the pending update and waits for the store writer to finish.
func (t *progressTracker) stop() {
	close(t.updates)
	<-t.done
}

type countingReader struct {
	r       io.Reader
	n       int64
	observe func(int64)
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.n += int64(n)
		cr.observe(cr.n)
	}
	return n, err
}
