package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"filepulse/internal/domain/file"
	"filepulse/internal/queue"
	filepulse_errors "filepulse/pkg/errors"

	"github.com/google/uuid"
)

// memProgressStore is an in-memory stand-in for the Redis progress store.
type memProgressStore struct {
	mu      sync.Mutex
	entries map[string]map[string]string
	failSet bool
}

func newMemProgressStore() *memProgressStore {
	return &memProgressStore{entries: map[string]map[string]string{}}
}

func (s *memProgressStore) Init(ctx context.Context, fileID string, contentLength int64) error {
	return s.SetFields(ctx, fileID, map[string]interface{}{
		"status":        "uploading",
		"progress":      0,
		"bytesReceived": 0,
		"contentLength": contentLength,
	})
}

func (s *memProgressStore) SetFields(ctx context.Context, fileID string, fields map[string]interface{}) error {
	if s.failSet {
		return errors.New("store unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entries[fileID]
	if entry == nil {
		entry = map[string]string{}
		s.entries[fileID] = entry
	}
	for k, v := range fields {
		entry[k] = fmt.Sprintf("%v", v)
	}
	return nil
}

func (s *memProgressStore) GetAll(ctx context.Context, fileID string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	for k, v := range s.entries[fileID] {
		out[k] = v
	}
	return out, nil
}

func (s *memProgressStore) Delete(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, fileID)
	return nil
}

type publishedEvent struct {
	FileID   string
	Status   string
	Progress int
}

type memPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *memPublisher) PublishProgress(ctx context.Context, fileID string, status string, progress int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{FileID: fileID, Status: status, Progress: progress})
	return nil
}

type memFileRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]file.FileRecord
}

func newMemFileRepo() *memFileRepo {
	return &memFileRepo{records: map[uuid.UUID]file.FileRecord{}}
}

func (r *memFileRepo) Create(ctx context.Context, rec *file.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; ok {
		return filepulse_errors.ErrAlreadyExists
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	r.records[rec.ID] = *rec
	return nil
}

func (r *memFileRepo) GetByID(ctx context.Context, id uuid.UUID) (file.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return file.FileRecord{}, filepulse_errors.ErrNotFound
	}
	return rec, nil
}

func (r *memFileRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return filepulse_errors.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "status":
			rec.Status = file.Status(fmt.Sprintf("%v", v))
		case "progress":
			if p, ok := v.(int); ok {
				rec.Progress = p
			}
		case "error":
			rec.Error = fmt.Sprintf("%v", v)
		case "parsed":
			if b, ok := v.(file.JSONB); ok {
				rec.Parsed = b
			}
		}
	}
	rec.UpdatedAt = time.Now()
	r.records[id] = rec
	return nil
}

func (r *memFileRepo) List(ctx context.Context) ([]file.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]file.FileRecord, 0, len(r.records))
	for _, rec := range r.records {
		rec.Parsed = nil
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memFileRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return filepulse_errors.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

// memStorage keeps payloads in memory; failAfter forces a mid-stream
// write error once that many bytes have been read.
type memStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	failAfter int64
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}, failAfter: -1}
}

func (s *memStorage) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	var buf bytes.Buffer
	var limited io.Reader = r
	if s.failAfter >= 0 {
		limited = io.LimitReader(r, s.failAfter)
	}
	n, err := buf.ReadFrom(limited)
	if err != nil {
		return n, err
	}
	if s.failAfter >= 0 {
		return n, errors.New("disk full")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = buf.Bytes()
	return n, nil
}

func (s *memStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, filepulse_errors.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

type memQueue struct {
	mu      sync.Mutex
	jobs    []enqueuedJob
	failing bool
}

type enqueuedJob struct {
	JobType string
	Payload interface{}
	Opts    queue.Options
}

func (q *memQueue) Enqueue(ctx context.Context, jobType string, payload interface{}, opts queue.Options) (uuid.UUID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failing {
		return uuid.Nil, errors.New("queue unavailable")
	}
	q.jobs = append(q.jobs, enqueuedJob{JobType: jobType, Payload: payload, Opts: opts})
	return uuid.New(), nil
}
