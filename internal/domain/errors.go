package domain

import (
	"errors"
	"fmt"
)

// Детерминированные бизнес-ошибки квотирования. Возвращаются
// синхронно и никогда не ретраятся автоматически.
var (
	ErrFileTooLarge         = errors.New("file size exceeds plan upload limit")
	ErrStorageQuotaExceeded = errors.New("not enough storage space available")
)

// QuotaViolation несет структурированные детали отказа: имя плана и
// числовой порог, чтобы вызывающая сторона могла показать точное сообщение.
type QuotaViolation struct {
	Reason     error
	Plan       PlanName
	LimitBytes int64
}

func (v *QuotaViolation) Error() string {
	return fmt.Sprintf("%v: plan %s, limit %d bytes", v.Reason, v.Plan, v.LimitBytes)
}

func (v *QuotaViolation) Unwrap() error {
	return v.Reason
}
