package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"filepulse/internal/services"
	"filepulse/internal/transport/httpdto"
	filepulse_errors "filepulse/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type FileHandler struct {
	ingest   *services.IngestService
	progress *services.ProgressService
	files    *services.FileService
}

func NewFileHandler(ingest *services.IngestService, progress *services.ProgressService, files *services.FileService) *FileHandler {
	return &FileHandler{
		ingest:   ingest,
		progress: progress,
		files:    files,
	}
}

// Upload streams the multipart body to storage and answers as soon as the
// parse job is admitted, never waiting for parsing.
func (h *FileHandler) Upload(c *gin.Context) {
	mr, err := c.Request.MultipartReader()
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("multipart body required", "INVALID_REQUEST"))
		return
	}

	res, err := h.ingest.Ingest(c.Request.Context(), c.Request.ContentLength, mr)
	if err != nil {
		if errors.Is(err, filepulse_errors.ErrMissingFilePart) || errors.Is(err, filepulse_errors.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("no file part in request", "INVALID_REQUEST"))
			return
		}
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(err.Error(), "UPLOAD_FAILED"))
		return
	}

	c.JSON(http.StatusAccepted, httpdto.NewSuccessResponse(httpdto.UploadAcceptedResponse{
		FileID:  res.FileID.String(),
		Status:  string(res.Status),
		Message: "Upload received. Parsing has started.",
	}))
}

func (h *FileHandler) Progress(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid file id", "INVALID_REQUEST"))
		return
	}

	snap, err := h.progress.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, filepulse_errors.ErrNotFound) {
			c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("not found", "NOT_FOUND"))
			return
		}
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ProgressResponse{
		FileID:   snap.FileID,
		Status:   snap.Status,
		Progress: snap.Progress,
	}))
}

// Stream serves server-sent progress samples until the status turns
// terminal or the client disconnects.
func (h *FileHandler) Stream(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid file id", "INVALID_REQUEST"))
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	_ = h.progress.Stream(c.Request.Context(), id, func(snap services.Snapshot) error {
		payload, err := json.Marshal(httpdto.ProgressResponse{
			FileID:   snap.FileID,
			Status:   snap.Status,
			Progress: snap.Progress,
		})
		if err != nil {
			return err
		}
		if _, err := c.Writer.WriteString("data: " + string(payload) + "\n\n"); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})
}

func (h *FileHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid file id", "INVALID_REQUEST"))
		return
	}

	rec, err := h.files.GetResult(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, filepulse_errors.ErrNotFound):
			c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("not found", "NOT_FOUND"))
		case errors.Is(err, filepulse_errors.ErrNotReady):
			c.JSON(http.StatusAccepted, httpdto.NewErrorResponse("file upload or processing in progress, try again later", "NOT_READY"))
		default:
			c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		}
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FileResultResponse{
		FileID:   rec.ID.String(),
		Filename: rec.OriginalName,
		MimeType: rec.MimeType,
		Parsed:   json.RawMessage(rec.Parsed),
	}))
}

func (h *FileHandler) List(c *gin.Context) {
	recs, err := h.files.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"files": httpdto.FromFileRecordSlice(recs)}))
}

func (h *FileHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid file id", "INVALID_REQUEST"))
		return
	}

	if err := h.files.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, filepulse_errors.ErrNotFound) {
			c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("not found", "NOT_FOUND"))
			return
		}
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"file_id": id.String(), "message": "deleted"}))
}
