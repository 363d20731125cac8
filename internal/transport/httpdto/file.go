package httpdto

import (
	"encoding/json"
	"time"

	"filepulse/internal/domain/file"
)

// UploadAcceptedResponse is returned by POST /v1/files once the stream is
// consumed and the parse job admitted.
type UploadAcceptedResponse struct {
	FileID  string `json:"file_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ProgressResponse is returned by GET /v1/files/:id/progress and streamed
// by GET /v1/files/:id/stream.
type ProgressResponse struct {
	FileID   string `json:"file_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

// FileResultResponse is returned by GET /v1/files/:id when the file is ready.
type FileResultResponse struct {
	FileID   string          `json:"file_id"`
	Filename string          `json:"filename"`
	MimeType string          `json:"mime_type"`
	Parsed   json.RawMessage `json:"parsed"`
}

// FileSummaryDTO represents one record in listing responses; the parsed
// payload is excluded.
type FileSummaryDTO struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	MimeType  string `json:"mime_type"`
	Size      int64  `json:"size"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	CreatedAt string `json:"created_at"`
}

// FromFileRecord converts a domain record to a summary DTO.
func FromFileRecord(rec file.FileRecord) FileSummaryDTO {
	return FileSummaryDTO{
		ID:        rec.ID.String(),
		Filename:  rec.OriginalName,
		MimeType:  rec.MimeType,
		Size:      rec.Size,
		Status:    string(rec.Status),
		Progress:  rec.Progress,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
	}
}

// FromFileRecordSlice converts a slice of domain records to summary DTOs.
func FromFileRecordSlice(recs []file.FileRecord) []FileSummaryDTO {
	dtos := make([]FileSummaryDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = FromFileRecord(rec)
	}
	return dtos
}
