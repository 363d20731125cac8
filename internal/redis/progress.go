package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Progress key patterns:
// - upload:{file_id}         - hash with status/progress/bytesReceived/contentLength/error, TTL 6h
// - upload:{file_id}:events  - pub/sub channel for phase transitions

const (
	progressKeyPrefix = "upload:"
	eventsKeySuffix   = ":events"
)

// Hash field names for upload progress entries.
const (
	FieldStatus        = "status"
	FieldProgress      = "progress"
	FieldBytesReceived = "bytesReceived"
	FieldContentLength = "contentLength"
	FieldError         = "error"
)

// ProgressStore holds transient upload/processing state in Redis for a
// bounded window after creation. It is the low-latency read path for
// progress queries; the durable file record is the fallback authority.
type ProgressStore struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewProgressStore creates a new progress store
func NewProgressStore(client *goredis.Client, ttl time.Duration) *ProgressStore {
	if ttl == 0 {
		ttl = 6 * time.Hour
	}
	return &ProgressStore{
		client: client,
		ttl:    ttl,
	}
}

// Init creates the entry for a fresh upload and arms its expiry. The TTL is
// set once here; later field writes do not extend it, so abandoned uploads
// age out on schedule.
func (s *ProgressStore) Init(ctx context.Context, fileID string, contentLength int64) error {
	key := progressKeyPrefix + fileID

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		FieldStatus:        "uploading",
		FieldProgress:      0,
		FieldBytesReceived: 0,
		FieldContentLength: contentLength,
	})
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// SetFields applies a partial update to the entry without clobbering the
// other fields.
func (s *ProgressStore) SetFields(ctx context.Context, fileID string, fields map[string]interface{}) error {
	return s.client.HSet(ctx, progressKeyPrefix+fileID, fields).Err()
}

// GetAll returns every field of the entry, or an empty map when the entry
// has expired or never existed.
func (s *ProgressStore) GetAll(ctx context.Context, fileID string) (map[string]string, error) {
	return s.client.HGetAll(ctx, progressKeyPrefix+fileID).Result()
}

// Delete removes the entry.
func (s *ProgressStore) Delete(ctx context.Context, fileID string) error {
	return s.client.Del(ctx, progressKeyPrefix+fileID).Err()
}
