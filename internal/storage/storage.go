package storage

import (
	"context"
	"errors"
	"io"

	"filepulse/config"
)

// Storage persists uploaded payload bytes under an opaque key. Save streams
// the reader to completion; a failed Save must not leave a readable object
// behind the key.
type Storage interface {
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

var (
	ErrNotFound = errors.New("payload not found")
	ErrInvalid  = errors.New("invalid storage configuration")
)

// New creates a storage instance by configuration.
func New(ctx context.Context, cfg *config.Config) (Storage, error) {
	switch cfg.StorageBackend {
	case "s3":
		return NewS3Storage(ctx, S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Endpoint:  cfg.S3Endpoint,
		})
	case "local", "":
		return NewLocalStorage(cfg.UploadDir)
	default:
		return nil, ErrInvalid
	}
}
