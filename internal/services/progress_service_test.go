package services

import (
	"context"
	"testing"
	"time"

	"filepulse/internal/domain/file"
	filepulse_errors "filepulse/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressGetPrefersEphemeral(t *testing.T) {
	files := newMemFileRepo()
	progress := newMemProgressStore()
	svc := NewProgressService(files, progress, time.Millisecond)

	id := uuid.New()
	// durable record says ready, ephemeral entry says uploading at 40
	require.NoError(t, files.Create(context.Background(), &file.FileRecord{
		ID:       id,
		Status:   file.StatusReady,
		Progress: 100,
	}))
	require.NoError(t, progress.SetFields(context.Background(), id.String(), map[string]interface{}{
		"status":   "uploading",
		"progress": 40,
	}))

	snap, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "uploading", snap.Status)
	assert.Equal(t, 40, snap.Progress)
}

func TestProgressGetFallsBackToDurable(t *testing.T) {
	files := newMemFileRepo()
	progress := newMemProgressStore()
	svc := NewProgressService(files, progress, time.Millisecond)

	id := uuid.New()
	require.NoError(t, files.Create(context.Background(), &file.FileRecord{
		ID:       id,
		Status:   file.StatusReady,
		Progress: 100,
	}))

	snap, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, string(file.StatusReady), snap.Status)
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, id.String(), snap.FileID)
}

func TestProgressGetUnknown(t *testing.T) {
	svc := NewProgressService(newMemFileRepo(), newMemProgressStore(), time.Millisecond)

	_, err := svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, filepulse_errors.ErrNotFound)
}

func TestProgressGetDefaultsStatus(t *testing.T) {
	files := newMemFileRepo()
	progress := newMemProgressStore()
	svc := NewProgressService(files, progress, time.Millisecond)

	id := uuid.New()
	// entry exists but has no status field yet
	require.NoError(t, progress.SetFields(context.Background(), id.String(), map[string]interface{}{
		"bytesReceived": 10,
	}))

	snap, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, string(file.StatusUploading), snap.Status)
	assert.Equal(t, 0, snap.Progress)
}

func TestStreamStopsOnTerminalStatus(t *testing.T) {
	files := newMemFileRepo()
	progress := newMemProgressStore()
	svc := NewProgressService(files, progress, time.Millisecond)

	id := uuid.New()
	require.NoError(t, progress.SetFields(context.Background(), id.String(), map[string]interface{}{
		"status":   "processing",
		"progress": 95,
	}))

	var samples []Snapshot
	done := make(chan error, 1)
	go func() {
		done <- svc.Stream(context.Background(), id, func(s Snapshot) error {
			samples = append(samples, s)
			if len(samples) == 3 {
				// mark ready after a few samples
				_ = progress.SetFields(context.Background(), id.String(), map[string]interface{}{
					"status":   "ready",
					"progress": 100,
				})
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop after terminal status")
	}

	require.GreaterOrEqual(t, len(samples), 4)
	last := samples[len(samples)-1]
	assert.Equal(t, "ready", last.Status)
	assert.Equal(t, 100, last.Progress)
}

func TestStreamStopsOnContextCancel(t *testing.T) {
	svc := NewProgressService(newMemFileRepo(), newMemProgressStore(), time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		// unknown id: the stream keeps polling until cancelled
		done <- svc.Stream(ctx, uuid.New(), func(Snapshot) error { return nil })
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop after cancellation")
	}
}

func TestStreamStopsWhenSendFails(t *testing.T) {
	files := newMemFileRepo()
	progress := newMemProgressStore()
	svc := NewProgressService(files, progress, time.Millisecond)

	id := uuid.New()
	require.NoError(t, progress.SetFields(context.Background(), id.String(), map[string]interface{}{
		"status": "uploading",
	}))

	err := svc.Stream(context.Background(), id, func(Snapshot) error {
		return assert.AnError
	})
	// a failed send means the client is gone; not an error
	assert.NoError(t, err)
}
