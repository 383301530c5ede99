package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"nimbusdrive/internal/domain"
)

// Нормализованная таксономия ошибок хранилища. Конкретные бэкенды
// заворачивают свои транспортные ошибки в эти sentinel-ошибки,
// наружу они в сыром виде не выходят.
var (
	ErrNotFound             = errors.New("storage: object not found")
	ErrBackendUnavailable   = errors.New("storage: backend unavailable")
	ErrInvalidKey           = errors.New("storage: invalid object key")
	ErrSignedURLUnsupported = errors.New("storage: backend does not support signed urls")
)

// Object определяет интерфейс для читаемого объекта хранилища
type Object interface {
	io.ReadCloser
	ContentLength() int64
	ContentType() string
}

// object реализует интерфейс Object
type object struct {
	io.ReadCloser
	contentLength int64
	contentType   string
}

func (o *object) ContentLength() int64 {
	return o.contentLength
}

func (o *object) ContentType() string {
	return o.contentType
}

// PutResult - результат записи объекта
type PutResult struct {
	Key       string
	SizeBytes int64
	ETag      string
	Location  string
}

// ObjectInfo - метаданные объекта. Exists=false - нормальный
// результат, а не ошибка.
type ObjectInfo struct {
	Key          string
	SizeBytes    int64
	LastModified time.Time
	ContentType  string
	Exists       bool
}

// Backend определяет единый интерфейс для работы с хранилищем объектов.
// Реализации взаимозаменяемы: локальная файловая система или
// S3-совместимое хранилище. Выбор делается один раз при старте процесса.
type Backend interface {
	// Kind возвращает тип бэкенда, записываемый в метаданные рядом с ключом
	Kind() domain.BackendKind
	// Put записывает объект под ключом, создавая родительское
	// пространство имен при необходимости. Перезапись существующего
	// ключа допустима, но штатный поток загрузки ее не использует.
	Put(ctx context.Context, r io.Reader, key string, contentType string) (*PutResult, error)
	// GetStream возвращает поток байтов объекта. Отсутствующий ключ -
	// ErrNotFound, не пустой поток.
	GetStream(ctx context.Context, key string) (Object, error)
	// SignedURL возвращает временный URL на чтение объекта. Повторные
	// вызовы для одного ключа могут давать разные URL.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Delete удаляет объект. Отсутствие ключа - успех, чтобы удаление
	// оставалось идемпотентным при ретраях.
	Delete(ctx context.Context, key string) error
	// Stat проверяет существование объекта и возвращает его метаданные
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
	// Copy выполняет копирование на стороне хранилища
	Copy(ctx context.Context, srcKey, dstKey string) error
	// List перечисляет ключи под префиксом, не более limit штук
	List(ctx context.Context, prefix string, limit int) ([]string, error)
}
