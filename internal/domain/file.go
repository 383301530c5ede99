package domain

import (
	"github.com/google/uuid"
	"time"
)

// File - запись метаданных, ссылающаяся на объект в хранилище.
// Объект существует ровно до тех пор, пока существует эта запись.
type File struct {
	UUID      uuid.UUID   `json:"uuid" db:"uuid"`
	Name      string      `json:"name" db:"name"`
	MIMEType  string      `json:"mime_type" db:"mime_type"`
	SizeBytes int64       `json:"size_bytes" db:"size_bytes"`
	ObjectKey string      `json:"object_key" db:"object_key"`
	Backend   BackendKind `json:"backend" db:"backend"`
	ETag      string      `json:"etag,omitempty" db:"etag"`
	OwnerID   string      `json:"owner_id" db:"owner_id"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// FileUploadResponse представляет ответ на загрузку файла
type FileUploadResponse struct {
	UUID      uuid.UUID   `json:"uuid"`
	Name      string      `json:"name"`
	MIMEType  string      `json:"mime_type"`
	SizeBytes int64       `json:"size_bytes"`
	ObjectKey string      `json:"object_key"`
	Backend   BackendKind `json:"backend"`
	OwnerID   string      `json:"owner_id"`
	CreatedAt time.Time   `json:"created_at"`
}
