package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"filepulse/config"
	"filepulse/internal/domain/file"
	"filepulse/internal/domain/job"
	"filepulse/internal/queue"
	"filepulse/internal/services"
	"filepulse/internal/storage"
	filepulse_errors "filepulse/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The handler tests run the real services over in-memory stores, exercising
// the full request path short of Postgres and Redis.

type stubFileRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]file.FileRecord
}

func newStubFileRepo() *stubFileRepo {
	return &stubFileRepo{records: map[uuid.UUID]file.FileRecord{}}
}

func (r *stubFileRepo) Create(ctx context.Context, rec *file.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	r.records[rec.ID] = *rec
	return nil
}

func (r *stubFileRepo) GetByID(ctx context.Context, id uuid.UUID) (file.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return file.FileRecord{}, filepulse_errors.ErrNotFound
	}
	return rec, nil
}

func (r *stubFileRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
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
	r.records[id] = rec
	return nil
}

func (r *stubFileRepo) List(ctx context.Context) ([]file.FileRecord, error) {
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

func (r *stubFileRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return filepulse_errors.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

type stubProgress struct {
	mu      sync.Mutex
	entries map[string]map[string]string
}

func newStubProgress() *stubProgress {
	return &stubProgress{entries: map[string]map[string]string{}}
}

func (p *stubProgress) Init(ctx context.Context, fileID string, contentLength int64) error {
	return p.SetFields(ctx, fileID, map[string]interface{}{"status": "uploading", "progress": 0})
}

func (p *stubProgress) SetFields(ctx context.Context, fileID string, fields map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry := p.entries[fileID]
	if entry == nil {
		entry = map[string]string{}
		p.entries[fileID] = entry
	}
	for k, v := range fields {
		entry[k] = fmt.Sprintf("%v", v)
	}
	return nil
}

func (p *stubProgress) GetAll(ctx context.Context, fileID string) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := map[string]string{}
	for k, v := range p.entries[fileID] {
		out[k] = v
	}
	return out, nil
}

func (p *stubProgress) Delete(ctx context.Context, fileID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, fileID)
	return nil
}

type stubPublisher struct{}

func (stubPublisher) PublishProgress(ctx context.Context, fileID, status string, progress int) error {
	return nil
}

type stubStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newStubStorage() *stubStorage {
	return &stubStorage{objects: map[string][]byte{}}
}

func (s *stubStorage) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	var buf bytes.Buffer
	n, err := buf.ReadFrom(r)
	if err != nil {
		return n, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = buf.Bytes()
	return n, nil
}

func (s *stubStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *stubStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

type stubQueue struct {
	mu   sync.Mutex
	jobs []job.Job
}

func (q *stubQueue) Enqueue(ctx context.Context, jobType string, payload interface{}, opts queue.Options) (uuid.UUID, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	j := job.Job{ID: uuid.New(), JobType: jobType, Payload: body}
	q.jobs = append(q.jobs, j)
	return j.ID, nil
}

type handlerFixture struct {
	router   *gin.Engine
	files    *stubFileRepo
	progress *stubProgress
	store    *stubStorage
	queue    *stubQueue
}

func newHandlerFixture() *handlerFixture {
	gin.SetMode(gin.TestMode)

	files := newStubFileRepo()
	progress := newStubProgress()
	store := newStubStorage()
	q := &stubQueue{}

	ingest := services.NewIngestService(files, progress, stubPublisher{}, store, q, nil, 2, time.Second)
	progressSvc := services.NewProgressService(files, progress, time.Millisecond)
	fileSvc := services.NewFileService(files, progress, store, nil)
	h := NewFileHandler(ingest, progressSvc, fileSvc)

	r := gin.New()
	r.POST("/v1/files", h.Upload)
	r.GET("/v1/files", h.List)
	r.GET("/v1/files/:id", h.Get)
	r.GET("/v1/files/:id/progress", h.Progress)
	r.DELETE("/v1/files/:id", h.Delete)

	return &handlerFixture{router: r, files: files, progress: progress, store: store, queue: q}
}

func multipartUpload(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/files", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeResponse(t *testing.T, body *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Bytes(), &out))
	return out
}

func TestUploadAccepted(t *testing.T) {
	f := newHandlerFixture()

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, multipartUpload(t, "data.csv", "a,b\n1,2\n"))

	require.Equal(t, http.StatusAccepted, w.Code)
	res := decodeResponse(t, w.Body)
	assert.Equal(t, true, res["success"])

	data := res["data"].(map[string]interface{})
	assert.Equal(t, "processing", data["status"])
	assert.NotEmpty(t, data["file_id"])

	id, err := uuid.Parse(data["file_id"].(string))
	require.NoError(t, err)
	rec, err := f.files.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, file.StatusProcessing, rec.Status)
	require.Len(t, f.queue.jobs, 1)
}

func TestUploadRejectsNonMultipart(t *testing.T) {
	f := newHandlerFixture()

	req := httptest.NewRequest(http.MethodPost, "/v1/files", bytes.NewBufferString(`{"not":"multipart"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	res := decodeResponse(t, w.Body)
	assert.Equal(t, "INVALID_REQUEST", res["code"])
}

func TestUploadRejectsMissingFilePart(t *testing.T) {
	f := newHandlerFixture()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/v1/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProgressEndpoint(t *testing.T) {
	f := newHandlerFixture()

	id := uuid.New()
	require.NoError(t, f.progress.SetFields(context.Background(), id.String(), map[string]interface{}{
		"status":   "uploading",
		"progress": 42,
	}))

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/files/"+id.String()+"/progress", nil))

	require.Equal(t, http.StatusOK, w.Code)
	res := decodeResponse(t, w.Body)
	data := res["data"].(map[string]interface{})
	assert.Equal(t, "uploading", data["status"])
	assert.Equal(t, float64(42), data["progress"])
}

func TestProgressUnknownID(t *testing.T) {
	f := newHandlerFixture()

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/files/"+uuid.NewString()+"/progress", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProgressInvalidID(t *testing.T) {
	f := newHandlerFixture()

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/files/not-a-uuid/progress", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetResultStates(t *testing.T) {
	f := newHandlerFixture()

	ready := uuid.New()
	require.NoError(t, f.files.Create(context.Background(), &file.FileRecord{
		ID:           ready,
		OriginalName: "data.csv",
		MimeType:     "text/csv",
		Status:       file.StatusReady,
		Progress:     100,
		Parsed:       file.JSONB(`{"type":"csv","rows":[{"a":"1"}]}`),
	}))
	processing := uuid.New()
	require.NoError(t, f.files.Create(context.Background(), &file.FileRecord{
		ID:     processing,
		Status: file.StatusProcessing,
	}))

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/files/"+ready.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeResponse(t, w.Body)
	data := res["data"].(map[string]interface{})
	assert.Equal(t, "data.csv", data["filename"])
	parsed := data["parsed"].(map[string]interface{})
	assert.Equal(t, "csv", parsed["type"])

	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/files/"+processing.String(), nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	res = decodeResponse(t, w.Body)
	assert.Equal(t, "NOT_READY", res["code"])

	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/files/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListFiles(t *testing.T) {
	f := newHandlerFixture()

	require.NoError(t, f.files.Create(context.Background(), &file.FileRecord{
		ID:           uuid.New(),
		OriginalName: "one.csv",
		Status:       file.StatusReady,
		Parsed:       file.JSONB(`{"type":"csv"}`),
	}))

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/files", nil))

	require.Equal(t, http.StatusOK, w.Code)
	res := decodeResponse(t, w.Body)
	data := res["data"].(map[string]interface{})
	files := data["files"].([]interface{})
	require.Len(t, files, 1)
	entry := files[0].(map[string]interface{})
	assert.Equal(t, "one.csv", entry["filename"])
	// listing never carries parsed payloads
	_, hasParsed := entry["parsed"]
	assert.False(t, hasParsed)
}

func TestDeleteFile(t *testing.T) {
	f := newHandlerFixture()

	id := uuid.New()
	require.NoError(t, f.files.Create(context.Background(), &file.FileRecord{
		ID:     id,
		Path:   id.String(),
		Status: file.StatusReady,
	}))
	_, err := f.store.Save(context.Background(), id.String(), bytes.NewReader([]byte("payload")))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/files/"+id.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)

	_, err = f.files.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, filepulse_errors.ErrNotFound)
	_, err = f.store.Open(context.Background(), id.String())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/files/"+id.String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func newLoginService() *services.AuthService {
	return services.NewAuthService(&config.Config{
		JWTSecret:      "test-secret",
		JWTExpiryHours: 1,
	})
}

func TestLoginIssuesToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	authSvc := newLoginService()
	h := NewAuthHandler(authSvc)

	r := gin.New()
	r.POST("/v1/auth/login", h.Login)

	body := bytes.NewBufferString(`{"username":"alice"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	res := decodeResponse(t, w.Body)
	data := res["data"].(map[string]interface{})
	token := data["token"].(string)
	require.NotEmpty(t, token)

	claims, err := authSvc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	// an empty body still yields a demo identity
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil))
	require.Equal(t, http.StatusOK, w.Code)
	res = decodeResponse(t, w.Body)
	data = res["data"].(map[string]interface{})
	claims, err = authSvc.ParseToken(data["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "demo", claims.Subject)
}
