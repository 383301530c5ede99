package domain

import "time"

const (
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
	SubscriptionPastDue  = "past_due"
)

// Subscription представляет запись о подписке пользователя.
// Обновляется биллингом через вебхук, читается при каждом расчете лимитов.
type Subscription struct {
	ID        int64     `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	Plan      PlanName  `json:"plan" db:"plan"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsActive сообщает, дает ли подписка право на платный тариф
func (s *Subscription) IsActive() bool {
	return s != nil && s.Status == SubscriptionActive
}
