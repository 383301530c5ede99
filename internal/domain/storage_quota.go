package domain

import "time"

// StorageQuota - состояние квоты пользователя. UsedBytes никогда не
// уходит в минус (клампится на уровне хранилища); превышение
// TotalBytesLimit возможно кратковременно при гонке двух загрузок,
// корректируется удалениями и переиспользуется при следующей проверке.
type StorageQuota struct {
	ID              int64     `json:"id" db:"id"`
	OwnerID         string    `json:"owner_id" db:"owner_id"`
	TotalBytesLimit int64     `json:"total_bytes_limit" db:"total_bytes_limit"`
	UsedBytes       int64     `json:"used_bytes" db:"used_bytes"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

type QuotaInfo struct {
	TotalSpace     int64   `json:"total_space"`
	UsedSpace      int64   `json:"used_space"`
	AvailableSpace int64   `json:"available_space"`
	UsagePercent   float64 `json:"usage_percent"`
}

// ReconcileResult - результат пересчета used_bytes по фактической
// сумме размеров файлов. Drift != 0 означает расхождение счетчика.
type ReconcileResult struct {
	OwnerID         string `json:"owner_id"`
	PreviousBytes   int64  `json:"previous_bytes"`
	RecomputedBytes int64  `json:"recomputed_bytes"`
	DriftBytes      int64  `json:"drift_bytes"`
}
