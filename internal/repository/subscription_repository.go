package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"nimbusdrive/internal/domain"
)

type SubscriptionRepository struct {
	db *sqlx.DB
}

func NewSubscriptionRepository(db *sqlx.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// GetByOwner возвращает подписку пользователя или nil, если ее нет.
// Отсутствие подписки - нормальная ситуация (тариф FREE), не ошибка.
func (r *SubscriptionRepository) GetByOwner(ctx context.Context, ownerID string) (*domain.Subscription, error) {
	var sub domain.Subscription

	err := r.db.GetContext(ctx, &sub,
		`SELECT * FROM subscriptions WHERE owner_id = $1`,
		ownerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &sub, nil
}

// Upsert создает или обновляет запись о подписке по событию биллинга
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *domain.Subscription) error {
	query := `
        INSERT INTO subscriptions (owner_id, plan, status)
        VALUES ($1, $2, $3)
        ON CONFLICT (owner_id) DO UPDATE
        SET plan = EXCLUDED.plan,
            status = EXCLUDED.status,
            updated_at = CURRENT_TIMESTAMP
        RETURNING id, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		sub.OwnerID,
		sub.Plan,
		sub.Status,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
}
