package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"filepulse/internal/domain/file"
	"filepulse/internal/repository"
	filepulse_errors "filepulse/pkg/errors"

	"github.com/google/uuid"
)

// Snapshot is the point-in-time progress view of one file.
type Snapshot struct {
	FileID   string `json:"file_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

// ProgressService is the single read path over the dual-store state: the
// ephemeral entry while it lives, the durable record once it has expired.
// Callers never reason about the two stores directly.
type ProgressService struct {
	files    repository.FileRepository
	progress ProgressStore
	interval time.Duration
}

func NewProgressService(files repository.FileRepository, progress ProgressStore, interval time.Duration) *ProgressService {
	if interval <= 0 {
		interval = 750 * time.Millisecond
	}
	return &ProgressService{
		files:    files,
		progress: progress,
		interval: interval,
	}
}

// Get returns the current snapshot, preferring the ephemeral store.
func (s *ProgressService) Get(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	fields, err := s.progress.GetAll(ctx, id.String())
	if err == nil && len(fields) > 0 {
		return snapshotFromFields(id.String(), fields), nil
	}

	rec, err := s.files.GetByID(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		FileID:   id.String(),
		Status:   string(rec.Status),
		Progress: rec.Progress,
	}, nil
}

// Stream samples the snapshot on a fixed interval and hands each sample to
// send, until the status turns terminal, send fails, or ctx is cancelled.
// Unknown identifiers keep the stream open; the entry may still appear.
func (s *ProgressService) Stream(ctx context.Context, id uuid.UUID, send func(Snapshot) error) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap, err := s.Get(ctx, id)
			if err != nil {
				if errors.Is(err, filepulse_errors.ErrNotFound) {
					continue
				}
				return err
			}
			if err := send(snap); err != nil {
				return nil
			}
			if file.Status(snap.Status).Terminal() {
				return nil
			}
		}
	}
}

func snapshotFromFields(id string, fields map[string]string) Snapshot {
	status := fields["status"]
	if status == "" {
		status = string(file.StatusUploading)
	}
	progress, _ := strconv.Atoi(fields["progress"])
	return Snapshot{
		FileID:   id,
		Status:   status,
		Progress: progress,
	}
}
