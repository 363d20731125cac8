package services

import (
	"context"

	"filepulse/internal/domain/file"
	"filepulse/internal/repository"
	"filepulse/internal/storage"
	filepulse_errors "filepulse/pkg/errors"
	"filepulse/pkg/logger"

	"github.com/google/uuid"
)

// FileService serves result retrieval, listing and deletion over the
// durable store.
type FileService struct {
	files    repository.FileRepository
	progress ProgressStore
	store    storage.Storage
	log      *logger.Logger
}

func NewFileService(files repository.FileRepository, progress ProgressStore, store storage.Storage, log *logger.Logger) *FileService {
	return &FileService{
		files:    files,
		progress: progress,
		store:    store,
		log:      log,
	}
}

// GetResult returns the record with its parsed payload. Records that have
// not reached ready yield ErrNotReady so callers can answer "in progress".
func (s *FileService) GetResult(ctx context.Context, id uuid.UUID) (file.FileRecord, error) {
	rec, err := s.files.GetByID(ctx, id)
	if err != nil {
		return file.FileRecord{}, err
	}
	if rec.Status != file.StatusReady {
		return file.FileRecord{}, filepulse_errors.ErrNotReady
	}
	return rec, nil
}

// List returns all records newest first, parsed payloads excluded.
func (s *FileService) List(ctx context.Context) ([]file.FileRecord, error) {
	return s.files.List(ctx)
}

// Delete removes the record, the stored payload and the ephemeral entry.
func (s *FileService) Delete(ctx context.Context, id uuid.UUID) error {
	rec, err := s.files.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, rec.Path); err != nil && s.log != nil {
		s.log.Warnf("delete: payload removal for %s failed: %s", id, err)
	}
	if err := s.files.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.progress.Delete(ctx, id.String()); err != nil && s.log != nil {
		s.log.Warnf("delete: progress entry removal for %s failed: %s", id, err)
	}
	return nil
}
