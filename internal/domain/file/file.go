package file

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an uploaded file.
type Status string

const (
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

// JSONB stores raw JSON in a jsonb column.
type JSONB json.RawMessage

func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
		return nil
	case string:
		*j = JSONB(v)
		return nil
	}
	return errors.New("jsonb: unsupported source type")
}

func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSONB) UnmarshalJSON(data []byte) error {
	*j = append((*j)[0:0], data...)
	return nil
}

// FileRecord represents file_records, the durable system-of-record for an
// uploaded file. A row exists only once the payload is fully written to
// storage; in-flight uploads live in the Redis progress store alone.
type FileRecord struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OriginalName string    `gorm:"not null" json:"original_name"`
	MimeType     string    `gorm:"not null" json:"mime_type"`
	Size         int64     `gorm:"not null;default:0" json:"size"`
	Path         string    `gorm:"not null" json:"path"`
	Status       Status    `gorm:"type:varchar(16);not null;default:'uploading';index" json:"status"`
	Progress     int       `gorm:"not null;default:0" json:"progress"`
	Parsed       JSONB     `gorm:"type:jsonb" json:"parsed,omitempty"`
	Error        string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt    time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt    time.Time `gorm:"default:now()" json:"updated_at"`
}

func (FileRecord) TableName() string {
	return "file_records"
}
