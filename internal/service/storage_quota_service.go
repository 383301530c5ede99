package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"nimbusdrive/internal/domain"
)

// Бюджет на обращения к БД. Независим от долгого таймаута загрузок:
// квотные и метаданные запросы не должны висеть минутами.
const metadataTimeout = 5 * time.Second

// QuotaStore - контракт хранилища квот. Инкремент счетчика обязан
// быть атомарным на стороне хранилища.
type QuotaStore interface {
	GetQuota(ctx context.Context, ownerID string) (*domain.StorageQuota, error)
	UpdateUsedSpace(ctx context.Context, ownerID string, deltaBytes int64) error
	UpdateQuotaLimit(ctx context.Context, ownerID string, newLimit int64) error
	CalculateAndUpdateUsedSpace(ctx context.Context, ownerID string) (*domain.ReconcileResult, error)
}

// StorageQuotaService ведет учет занятого пространства по пользователям
type StorageQuotaService struct {
	quotaRepo QuotaStore
}

func NewStorageQuotaService(quotaRepo QuotaStore) *StorageQuotaService {
	return &StorageQuotaService{
		quotaRepo: quotaRepo,
	}
}

func (s *StorageQuotaService) GetQuota(ctx context.Context, ownerID string) (*domain.StorageQuota, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	return s.quotaRepo.GetQuota(ctx, ownerID)
}

func (s *StorageQuotaService) GetQuotaInfo(ctx context.Context, ownerID string) (*domain.QuotaInfo, error) {
	quota, err := s.quotaRepo.GetQuota(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}

	availableSpace := quota.TotalBytesLimit - quota.UsedBytes
	if availableSpace < 0 {
		availableSpace = 0
	}

	var usagePercent float64
	if quota.TotalBytesLimit > 0 {
		usagePercent = float64(quota.UsedBytes) / float64(quota.TotalBytesLimit) * 100
	}

	return &domain.QuotaInfo{
		TotalSpace:     quota.TotalBytesLimit,
		UsedSpace:      quota.UsedBytes,
		AvailableSpace: availableSpace,
		UsagePercent:   usagePercent,
	}, nil
}

// AdjustUsedSpace сдвигает счетчик занятого места на deltaBytes.
// Единственный разрешенный способ мутации счетчика вне пересчета.
func (s *StorageQuotaService) AdjustUsedSpace(ctx context.Context, ownerID string, deltaBytes int64) error {
	if deltaBytes == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	return s.quotaRepo.UpdateUsedSpace(ctx, ownerID, deltaBytes)
}

// Reconcile пересчитывает used_bytes по фактическим данным и
// фиксирует дрифт в логах для последующего расследования
func (s *StorageQuotaService) Reconcile(ctx context.Context, ownerID string) (*domain.ReconcileResult, error) {
	result, err := s.quotaRepo.CalculateAndUpdateUsedSpace(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile quota: %w", err)
	}

	if result.DriftBytes != 0 {
		log.Printf("[QuotaService] Обнаружен дрифт квоты пользователя %s: счетчик %d, фактически %d (дрифт %d байт)",
			ownerID, result.PreviousBytes, result.RecomputedBytes, result.DriftBytes)
	}

	return result, nil
}

func (s *StorageQuotaService) UpdateQuotaLimit(ctx context.Context, ownerID string, newLimit int64) error {
	if newLimit < 0 {
		return fmt.Errorf("new quota limit cannot be negative")
	}
	return s.quotaRepo.UpdateQuotaLimit(ctx, ownerID, newLimit)
}
