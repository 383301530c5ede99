package domain

import "time"

// BackendKind определяет тип хранилища, в котором лежит объект
type BackendKind string

const (
	BackendLocal BackendKind = "LOCAL"
	BackendS3    BackendKind = "S3"
)

// StoredObject представляет один физический блоб в хранилище.
// Живет только пока на его ключ ссылается запись метаданных.
type StoredObject struct {
	Key         string      `json:"key"`
	Backend     BackendKind `json:"backend"`
	SizeBytes   int64       `json:"size_bytes"`
	ContentType string      `json:"content_type"`
	ETag        string      `json:"etag,omitempty"`
}

// AccessHandle - временный дескриптор доступа к объекту.
// Не сохраняется, вычисляется заново на каждый запрос.
// Для S3 заполняется URL, для локального хранилища - Token,
// который разрешается аутентифицированным маршрутом скачивания.
type AccessHandle struct {
	URL       string      `json:"url,omitempty"`
	Token     string      `json:"token,omitempty"`
	Backend   BackendKind `json:"backend"`
	ExpiresAt time.Time   `json:"expires_at"`
}
