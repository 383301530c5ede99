package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"

	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/storage"
)

// SizeUnknown передается как declaredSize, когда транспорт не может
// сообщить размер до начала стриминга (chunked-загрузка)
const SizeUnknown int64 = -1

// Определение пользовательских ошибок
var (
	ErrFileNotFound  = errors.New("file not found")
	ErrAccessDenied  = errors.New("access denied")
	errInvalidFile   = errors.New("invalid file")
	errStorageOp     = errors.New("storage operation failed")
	errDatabaseError = errors.New("database operation failed")
)

// FileStore - контракт хранилища метаданных файлов
type FileStore interface {
	Create(ctx context.Context, file *domain.File) error
	GetByUUID(ctx context.Context, fileUUID uuid.UUID) (*domain.File, error)
	Delete(ctx context.Context, fileUUID uuid.UUID) error
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.File, error)
}

// FileService связывает проверку квот, схему ключей и бэкенд хранилища
// в единый поток загрузки и удаления файлов
type FileService struct {
	fileRepo     FileStore
	backend      storage.Backend
	keys         *storage.KeyGenerator
	planService  *PlanService
	quotaService *StorageQuotaService
}

func NewFileService(
	fileRepo FileStore,
	backend storage.Backend,
	keys *storage.KeyGenerator,
	planService *PlanService,
	quotaService *StorageQuotaService,
) *FileService {
	return &FileService{
		fileRepo:     fileRepo,
		backend:      backend,
		keys:         keys,
		planService:  planService,
		quotaService: quotaService,
	}
}

// AcceptUpload принимает загрузку файла. Последовательность:
// проверка лимита на файл -> проверка остатка квоты -> стриминг в
// бэкенд со счетчиком байтов -> запись метаданных -> инкремент квоты.
// Отказ по размеру происходит до приема байтов, если размер известен,
// иначе передача обрывается в момент превышения лимита.
func (s *FileService) AcceptUpload(
	ctx context.Context,
	userID string,
	r io.Reader,
	declaredSize int64,
	originalName string,
	contentType string,
) (*domain.File, error) {
	if userID == "" || r == nil {
		return nil, fmt.Errorf("%w: missing required parameters", errInvalidFile)
	}

	limits, err := s.planService.ResolveLimits(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve limits: %w", err)
	}

	// Ранний отказ по заявленному размеру. Сравнения точные,
	// declaredSize == MaxUploadBytes проходит.
	if declaredSize > limits.MaxUploadBytes {
		return nil, &domain.QuotaViolation{
			Reason:     domain.ErrFileTooLarge,
			Plan:       limits.PlanName,
			LimitBytes: limits.MaxUploadBytes,
		}
	}

	quota, err := s.quotaService.GetQuota(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check available space: %w", err)
	}

	remaining := limits.StorageLimitBytes - quota.UsedBytes
	if remaining < 0 {
		remaining = 0
	}
	if declaredSize > remaining {
		return nil, &domain.QuotaViolation{
			Reason:     domain.ErrStorageQuotaExceeded,
			Plan:       limits.PlanName,
			LimitBytes: limits.StorageLimitBytes,
		}
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := s.keys.GenerateKey(userID, originalName)

	// Счетчик байтов обрывает передачу в момент превышения лимита,
	// не буферизуя весь оверсайз
	counted := &limitedUploadReader{
		r:    r,
		max:  limits.MaxUploadBytes,
		plan: limits.PlanName,
	}

	result, err := s.backend.Put(ctx, counted, key, contentType)
	if err != nil {
		var violation *domain.QuotaViolation
		if errors.As(err, &violation) {
			// Бэкенд мог успеть зафиксировать объект до ошибки чтения
			s.cleanupObject(ctx, key)
			return nil, violation
		}
		return nil, fmt.Errorf("%w: %v", errStorageOp, err)
	}

	// Для chunked-загрузок остаток квоты перепроверяется по
	// фактически принятому размеру
	if result.SizeBytes > remaining {
		s.cleanupObject(ctx, key)
		return nil, &domain.QuotaViolation{
			Reason:     domain.ErrStorageQuotaExceeded,
			Plan:       limits.PlanName,
			LimitBytes: limits.StorageLimitBytes,
		}
	}

	newFile := &domain.File{
		UUID:      uuid.New(),
		Name:      originalName,
		MIMEType:  contentType,
		SizeBytes: result.SizeBytes,
		ObjectKey: key,
		Backend:   s.backend.Kind(),
		ETag:      result.ETag,
		OwnerID:   userID,
	}

	if err := s.fileRepo.Create(ctx, newFile); err != nil {
		// Объект без записи метаданных - сирота: компенсирующее
		// удаление до возврата исходной ошибки, квота не тронута
		s.cleanupObject(ctx, key)
		return nil, fmt.Errorf("%w: %v", errDatabaseError, err)
	}

	// Инкремент ровно на принятый размер, не на заявленный
	if err := s.quotaService.AdjustUsedSpace(ctx, userID, result.SizeBytes); err != nil {
		if delErr := s.fileRepo.Delete(ctx, newFile.UUID); delErr != nil {
			log.Printf("[FileService] failed to delete file record after quota error: %v", delErr)
		}
		s.cleanupObject(ctx, key)
		return nil, fmt.Errorf("failed to account uploaded bytes: %w", err)
	}

	return newFile, nil
}

// GetFile возвращает метаданные файла с проверкой владельца
func (s *FileService) GetFile(ctx context.Context, fileUUID uuid.UUID, userID string) (*domain.File, error) {
	file, err := s.fileRepo.GetByUUID(ctx, fileUUID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDatabaseError, err)
	}
	if file == nil {
		return nil, ErrFileNotFound
	}
	if file.OwnerID != userID {
		return nil, ErrAccessDenied
	}

	return file, nil
}

// RemoveObject удаляет запись метаданных, объект в хранилище и
// уменьшает счетчик квоты. Удаление объекта идемпотентно, поэтому
// повторный вызов после частичного сбоя безопасен.
func (s *FileService) RemoveObject(ctx context.Context, fileUUID uuid.UUID, userID string) error {
	file, err := s.GetFile(ctx, fileUUID, userID)
	if err != nil {
		return err
	}

	if err := s.fileRepo.Delete(ctx, file.UUID); err != nil {
		return fmt.Errorf("%w: %v", errDatabaseError, err)
	}

	// Метаданные уже удалены; сбой удаления объекта оставляет сироту,
	// которую подчистит повторный запуск или пересчет
	if err := s.backend.Delete(ctx, file.ObjectKey); err != nil {
		log.Printf("[FileService] failed to delete object %s from storage: %v", file.ObjectKey, err)
	}

	if err := s.quotaService.AdjustUsedSpace(ctx, userID, -file.SizeBytes); err != nil {
		log.Printf("[FileService] failed to decrement quota for %s: %v", userID, err)
	}

	return nil
}

// ListFiles перечисляет файлы пользователя
func (s *FileService) ListFiles(ctx context.Context, userID string, limit int) ([]domain.File, error) {
	return s.fileRepo.ListByOwner(ctx, userID, limit)
}

// Backend возвращает активный бэкенд хранилища
func (s *FileService) Backend() storage.Backend {
	return s.backend
}

// cleanupObject - компенсирующее удаление, исход логируется,
// потому что сама компенсация тоже может отказать
func (s *FileService) cleanupObject(ctx context.Context, key string) {
	if err := s.backend.Delete(ctx, key); err != nil {
		log.Printf("[FileService] orphan cleanup failed for key %s: %v", key, err)
		return
	}
	log.Printf("[FileService] orphan object %s removed", key)
}

// limitedUploadReader считает принятые байты и обрывает чтение, как
// только нарастающий итог превышает лимит плана
type limitedUploadReader struct {
	r    io.Reader
	max  int64
	plan domain.PlanName
	read int64
}

func (lr *limitedUploadReader) Read(p []byte) (int, error) {
	n, err := lr.r.Read(p)
	if n > 0 {
		lr.read += int64(n)
		if lr.read > lr.max {
			return n, &domain.QuotaViolation{
				Reason:     domain.ErrFileTooLarge,
				Plan:       lr.plan,
				LimitBytes: lr.max,
			}
		}
	}
	return n, err
}
