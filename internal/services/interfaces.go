package services

import (
	"context"
)

// ProgressStore is the ephemeral, expiring view of upload/processing state.
// Implemented by redis.ProgressStore.
type ProgressStore interface {
	Init(ctx context.Context, fileID string, contentLength int64) error
	SetFields(ctx context.Context, fileID string, fields map[string]interface{}) error
	GetAll(ctx context.Context, fileID string) (map[string]string, error)
	Delete(ctx context.Context, fileID string) error
}

// EventPublisher pushes advisory phase-transition events.
// Implemented by redis.Publisher.
type EventPublisher interface {
	PublishProgress(ctx context.Context, fileID string, status string, progress int) error
}
