package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/storage"
)

// Таблица тарифов с удобными для тестов числами
func testPlanTable() domain.PlanTable {
	return domain.PlanTable{
		domain.PlanFree: {
			Name:              domain.PlanFree,
			TotalStorageBytes: 1000,
			MaxUploadBytes:    100,
		},
		domain.PlanPro: {
			Name:              domain.PlanPro,
			TotalStorageBytes: 100000,
			MaxUploadBytes:    10000,
		},
		domain.PlanBusiness: {
			Name:              domain.PlanBusiness,
			TotalStorageBytes: 1000000,
			MaxUploadBytes:    100000,
		},
	}
}

type fakeSubscriptionStore struct {
	mu  sync.Mutex
	sub *domain.Subscription
	err error
}

func (s *fakeSubscriptionStore) GetByOwner(ctx context.Context, ownerID string) (*domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.sub, nil
}

func (s *fakeSubscriptionStore) Upsert(ctx context.Context, sub *domain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.UpdatedAt = time.Now()
	s.sub = sub
	return nil
}

type fakeQuotaStore struct {
	mu           sync.Mutex
	quotas       map[string]*domain.StorageQuota
	defaultLimit int64
	recomputed   map[string]int64
	adjustErr    error
}

func newFakeQuotaStore(defaultLimit int64) *fakeQuotaStore {
	return &fakeQuotaStore{
		quotas:       make(map[string]*domain.StorageQuota),
		defaultLimit: defaultLimit,
		recomputed:   make(map[string]int64),
	}
}

func (s *fakeQuotaStore) GetQuota(ctx context.Context, ownerID string) (*domain.StorageQuota, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	quota, ok := s.quotas[ownerID]
	if !ok {
		quota = &domain.StorageQuota{
			OwnerID:         ownerID,
			TotalBytesLimit: s.defaultLimit,
		}
		s.quotas[ownerID] = quota
	}

	copied := *quota
	return &copied, nil
}

func (s *fakeQuotaStore) UpdateUsedSpace(ctx context.Context, ownerID string, deltaBytes int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.adjustErr != nil {
		return s.adjustErr
	}

	quota, ok := s.quotas[ownerID]
	if !ok {
		return fmt.Errorf("quota not found for owner: %s", ownerID)
	}

	quota.UsedBytes += deltaBytes
	if quota.UsedBytes < 0 {
		quota.UsedBytes = 0
	}
	return nil
}

func (s *fakeQuotaStore) UpdateQuotaLimit(ctx context.Context, ownerID string, newLimit int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	quota, ok := s.quotas[ownerID]
	if !ok {
		return fmt.Errorf("quota not found for owner: %s", ownerID)
	}

	quota.TotalBytesLimit = newLimit
	return nil
}

func (s *fakeQuotaStore) CalculateAndUpdateUsedSpace(ctx context.Context, ownerID string) (*domain.ReconcileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	quota, ok := s.quotas[ownerID]
	if !ok {
		quota = &domain.StorageQuota{OwnerID: ownerID, TotalBytesLimit: s.defaultLimit}
		s.quotas[ownerID] = quota
	}

	previous := quota.UsedBytes
	recomputed := s.recomputed[ownerID]
	if recomputed < 0 {
		recomputed = 0
	}
	quota.UsedBytes = recomputed

	return &domain.ReconcileResult{
		OwnerID:         ownerID,
		PreviousBytes:   previous,
		RecomputedBytes: recomputed,
		DriftBytes:      recomputed - previous,
	}, nil
}

// setUsed напрямую выставляет счетчик, имитируя дрифт или порчу данных
func (s *fakeQuotaStore) setUsed(ownerID string, used int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	quota, ok := s.quotas[ownerID]
	if !ok {
		quota = &domain.StorageQuota{OwnerID: ownerID, TotalBytesLimit: s.defaultLimit}
		s.quotas[ownerID] = quota
	}
	quota.UsedBytes = used
}

func (s *fakeQuotaStore) used(ownerID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quota, ok := s.quotas[ownerID]; ok {
		return quota.UsedBytes
	}
	return 0
}

type fakeFileStore struct {
	mu        sync.Mutex
	files     map[uuid.UUID]*domain.File
	createErr error
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{files: make(map[uuid.UUID]*domain.File)}
}

func (s *fakeFileStore) Create(ctx context.Context, file *domain.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return s.createErr
	}

	file.CreatedAt = time.Now()
	file.UpdatedAt = file.CreatedAt
	s.files[file.UUID] = file
	return nil
}

func (s *fakeFileStore) GetByUUID(ctx context.Context, fileUUID uuid.UUID) (*domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, ok := s.files[fileUUID]
	if !ok {
		return nil, nil
	}
	copied := *file
	return &copied, nil
}

func (s *fakeFileStore) Delete(ctx context.Context, fileUUID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[fileUUID]; !ok {
		return fmt.Errorf("file not found: %s", fileUUID)
	}
	delete(s.files, fileUUID)
	return nil
}

func (s *fakeFileStore) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := make([]domain.File, 0)
	for _, file := range s.files {
		if file.OwnerID == ownerID && len(files) < limit {
			files = append(files, *file)
		}
	}
	return files, nil
}

type fakeObject struct {
	io.ReadCloser
	length      int64
	contentType string
}

func (o *fakeObject) ContentLength() int64 {
	return o.length
}

func (o *fakeObject) ContentType() string {
	return o.contentType
}

type fakeBackend struct {
	mu        sync.Mutex
	kind      domain.BackendKind
	objects   map[string][]byte
	deleted   []string
	signedURL string
	putErr    error
}

func newFakeBackend(kind domain.BackendKind) *fakeBackend {
	return &fakeBackend{
		kind:    kind,
		objects: make(map[string][]byte),
	}
}

func (b *fakeBackend) Kind() domain.BackendKind {
	return b.kind
}

func (b *fakeBackend) Put(ctx context.Context, r io.Reader, key string, contentType string) (*storage.PutResult, error) {
	if b.putErr != nil {
		return nil, b.putErr
	}

	// Как и боевые бэкенды, заворачиваем ошибку чтения с %w
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data

	return &storage.PutResult{
		Key:       key,
		SizeBytes: int64(len(data)),
		ETag:      fmt.Sprintf("etag-%d", len(data)),
	}, nil
}

func (b *fakeBackend) GetStream(ctx context.Context, key string) (storage.Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}

	return &fakeObject{
		ReadCloser: io.NopCloser(bytes.NewReader(data)),
		length:     int64(len(data)),
	}, nil
}

func (b *fakeBackend) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if b.kind != domain.BackendS3 {
		return "", storage.ErrSignedURLUnsupported
	}
	return b.signedURL, nil
}

func (b *fakeBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *fakeBackend) Stat(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.objects[key]
	if !ok {
		return &storage.ObjectInfo{Key: key, Exists: false}, nil
	}

	return &storage.ObjectInfo{
		Key:       key,
		SizeBytes: int64(len(data)),
		Exists:    true,
	}, nil
}

func (b *fakeBackend) Copy(ctx context.Context, srcKey, dstKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.objects[srcKey]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, srcKey)
	}
	b.objects[dstKey] = append([]byte(nil), data...)
	return nil
}

func (b *fakeBackend) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	keys := make([]string, 0)
	for key := range b.objects {
		if len(keys) >= limit {
			break
		}
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (b *fakeBackend) deletedKeys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deleted...)
}

func (b *fakeBackend) hasObject(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}
