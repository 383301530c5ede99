package service

import (
	"context"
	"fmt"
	"log"

	"nimbusdrive/internal/domain"
)

// SubscriptionStore - контракт хранилища подписок
type SubscriptionStore interface {
	GetByOwner(ctx context.Context, ownerID string) (*domain.Subscription, error)
	Upsert(ctx context.Context, sub *domain.Subscription) error
}

// PlanService отвечает за политику квотирования: сопоставляет подписку
// пользователя с тарифным планом и его лимитами.
type PlanService struct {
	subscriptionRepo SubscriptionStore
	quotaService     *StorageQuotaService
	plans            domain.PlanTable
}

func NewPlanService(
	subscriptionRepo SubscriptionStore,
	quotaService *StorageQuotaService,
	plans domain.PlanTable,
) *PlanService {
	if plans == nil {
		plans = domain.DefaultPlanTable()
	}
	return &PlanService{
		subscriptionRepo: subscriptionRepo,
		quotaService:     quotaService,
		plans:            plans,
	}
}

// ResolveLimits возвращает действующие лимиты пользователя. Подписка
// перечитывается на каждый вызов: биллинг меняет ее асинхронно, и
// кешировать результат между запросами нельзя. Любое сомнительное
// состояние (нет подписки, отменена, просрочена, неизвестный план)
// закрывается лимитами FREE, никогда безлимитом.
func (s *PlanService) ResolveLimits(ctx context.Context, userID string) (domain.Limits, error) {
	sub, err := s.subscriptionRepo.GetByOwner(ctx, userID)
	if err != nil {
		return domain.Limits{}, fmt.Errorf("failed to get subscription: %w", err)
	}

	planName := domain.PlanFree
	if sub.IsActive() {
		planName = sub.Plan
	}

	plan := s.plans.Resolve(planName)

	return domain.Limits{
		StorageLimitBytes: plan.TotalStorageBytes,
		MaxUploadBytes:    plan.MaxUploadBytes,
		PlanName:          plan.Name,
	}, nil
}

// ApplyPlanChange применяет событие биллинга: обновляет запись подписки
// и синхронизирует денормализованный лимит в квоте пользователя
func (s *PlanService) ApplyPlanChange(ctx context.Context, userID string, planName domain.PlanName, status string) error {
	sub := &domain.Subscription{
		OwnerID: userID,
		Plan:    planName,
		Status:  status,
	}

	if err := s.subscriptionRepo.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}

	limits, err := s.ResolveLimits(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve limits after plan change: %w", err)
	}

	// Квота создается при первом обращении, если ее еще нет
	if _, err := s.quotaService.GetQuota(ctx, userID); err != nil {
		return fmt.Errorf("failed to ensure quota exists: %w", err)
	}

	if err := s.quotaService.UpdateQuotaLimit(ctx, userID, limits.StorageLimitBytes); err != nil {
		return fmt.Errorf("failed to sync quota limit: %w", err)
	}

	log.Printf("[PlanService] Применено изменение плана для %s: план %s, статус %s, лимит %d байт",
		userID, planName, status, limits.StorageLimitBytes)

	return nil
}

// Plans возвращает действующую таблицу тарифов
func (s *PlanService) Plans() domain.PlanTable {
	return s.plans
}
