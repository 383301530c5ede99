package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"nimbusdrive/internal/domain"
)

// LocalBackend хранит объекты на локальном диске под общим корнем.
// Ключи объектов отображаются в пути относительно корня; у локальных
// файлов нет собственного механизма подписи ссылок, поэтому SignedURL
// возвращает ErrSignedURLUnsupported, а временный доступ оформляет
// вызывающий слой.
type LocalBackend struct {
	root string
}

func NewLocalBackend(root string) (*LocalBackend, error) {
	if root == "" {
		return nil, fmt.Errorf("root path is required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}

	return &LocalBackend{root: abs}, nil
}

func (b *LocalBackend) Kind() domain.BackendKind {
	return domain.BackendLocal
}

// resolve превращает ключ в абсолютный путь, не выпуская его за корень
func (b *LocalBackend) resolve(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}

	p := filepath.Join(b.root, filepath.FromSlash(key))
	if p != b.root && !strings.HasPrefix(p, b.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}

	return p, nil
}

// Put записывает объект атомарно: сначала во временный файл,
// затем rename, чтобы прерванная загрузка не оставляла частичных блобов
func (b *LocalBackend) Put(ctx context.Context, r io.Reader, key string, contentType string) (*PutResult, error) {
	p, err := b.resolve(key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create object directory: %v", ErrBackendUnavailable, err)
	}

	tmp := p + ".tmp-" + uuid.NewString()
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create object file: %v", ErrBackendUnavailable, err)
	}

	size, err := io.Copy(f, contextReader{ctx: ctx, r: r})
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("%w: failed to flush object file: %v", ErrBackendUnavailable, cerr)
	}
	if err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("failed to write object: %w", err)
	}

	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("%w: failed to finalize object: %v", ErrBackendUnavailable, err)
	}

	return &PutResult{
		Key:       key,
		SizeBytes: size,
		Location:  p,
	}, nil
}

// GetStream открывает объект на чтение
func (b *LocalBackend) GetStream(ctx context.Context, key string) (Object, error) {
	p, err := b.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: failed to open object: %v", ErrBackendUnavailable, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: failed to stat object: %v", ErrBackendUnavailable, err)
	}

	return &object{
		ReadCloser:    f,
		contentLength: fi.Size(),
		contentType:   mime.TypeByExtension(filepath.Ext(p)),
	}, nil
}

// SignedURL не поддерживается локальным бэкендом: доступ оформляется
// маршрутом приложения поверх GetStream
func (b *LocalBackend) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "", ErrSignedURLUnsupported
}

// Delete удаляет объект; отсутствие файла считается успехом
func (b *LocalBackend) Delete(ctx context.Context, key string) error {
	p, err := b.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: failed to delete object: %v", ErrBackendUnavailable, err)
	}

	return nil
}

// Stat возвращает метаданные объекта
func (b *LocalBackend) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	p, err := b.resolve(key)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ObjectInfo{Key: key, Exists: false}, nil
		}
		return nil, fmt.Errorf("%w: failed to stat object: %v", ErrBackendUnavailable, err)
	}

	return &ObjectInfo{
		Key:          key,
		SizeBytes:    fi.Size(),
		LastModified: fi.ModTime(),
		ContentType:  mime.TypeByExtension(filepath.Ext(p)),
		Exists:       true,
	}, nil
}

// Copy копирует объект в пределах корня
func (b *LocalBackend) Copy(ctx context.Context, srcKey, dstKey string) error {
	src, err := b.GetStream(ctx, srcKey)
	if err != nil {
		return err
	}
	defer src.Close()

	_, err = b.Put(ctx, src, dstKey, src.ContentType())
	return err
}

// List перечисляет ключи под префиксом, не более limit штук
func (b *LocalBackend) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	start := filepath.Join(b.root, filepath.FromSlash(prefix))
	if fi, err := os.Stat(start); err != nil || !fi.IsDir() {
		start = filepath.Dir(start)
	}
	if _, err := os.Stat(start); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var keys []string
	errStop := errors.New("stop")

	err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(b.root, p)
		if err != nil {
			return err
		}

		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		keys = append(keys, key)
		if len(keys) >= limit {
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, fmt.Errorf("%w: failed to list objects: %v", ErrBackendUnavailable, err)
	}

	return keys, nil
}

// contextReader прерывает чтение, если контекст загрузки отменен
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
