package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"nimbusdrive/internal/domain"
)

type StorageQuotaRepository struct {
	db           *sqlx.DB
	defaultLimit int64
}

// NewStorageQuotaRepository создает репозиторий квот. defaultLimit
// используется при автосоздании квоты для нового пользователя.
func NewStorageQuotaRepository(db *sqlx.DB, defaultLimit int64) *StorageQuotaRepository {
	return &StorageQuotaRepository{db: db, defaultLimit: defaultLimit}
}

func (r *StorageQuotaRepository) GetQuota(ctx context.Context, ownerID string) (*domain.StorageQuota, error) {
	var quota domain.StorageQuota

	err := r.db.GetContext(ctx, &quota,
		`SELECT * FROM storage_quotas WHERE owner_id = $1`,
		ownerID)

	if err != nil {
		// Если квота не найдена, создаем новую с дефолтным лимитом
		if err == sql.ErrNoRows {
			quota = domain.StorageQuota{
				OwnerID:         ownerID,
				TotalBytesLimit: r.defaultLimit,
				UsedBytes:       0,
			}

			err = r.Create(ctx, &quota)
			if err != nil {
				return nil, fmt.Errorf("failed to create quota: %w", err)
			}
			return &quota, nil
		}
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}

	return &quota, nil
}

func (r *StorageQuotaRepository) Create(ctx context.Context, quota *domain.StorageQuota) error {
	query := `
        INSERT INTO storage_quotas (owner_id, total_bytes_limit, used_bytes)
        VALUES ($1, $2, $3)
        ON CONFLICT (owner_id) DO UPDATE SET updated_at = CURRENT_TIMESTAMP
        RETURNING id, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		quota.OwnerID,
		quota.TotalBytesLimit,
		quota.UsedBytes,
	).Scan(&quota.ID, &quota.CreatedAt, &quota.UpdatedAt)
}

// UpdateUsedSpace атомарно сдвигает счетчик used_bytes. Инкремент
// выполняется самим хранилищем, без read-modify-write на этом уровне,
// поэтому конкурентные загрузки одного пользователя безопасны.
func (r *StorageQuotaRepository) UpdateUsedSpace(ctx context.Context, ownerID string, deltaBytes int64) error {
	query := `
        UPDATE storage_quotas
        SET used_bytes = GREATEST(0, used_bytes + $1),
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2`

	result, err := r.db.ExecContext(ctx, query, deltaBytes, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update used space: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("quota not found for owner: %s", ownerID)
	}

	return nil
}

func (r *StorageQuotaRepository) UpdateQuotaLimit(ctx context.Context, ownerID string, newLimit int64) error {
	query := `
        UPDATE storage_quotas
        SET total_bytes_limit = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2`

	result, err := r.db.ExecContext(ctx, query, newLimit, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update quota limit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("quota not found for owner: %s", ownerID)
	}

	return nil
}

// CalculateAndUpdateUsedSpace пересчитывает used_bytes по фактической
// сумме размеров файлов пользователя. Единственная операция, которой
// разрешено уменьшать счетчик без парного события удаления;
// отрицательные значения клампятся суммой, которая не бывает меньше нуля.
func (r *StorageQuotaRepository) CalculateAndUpdateUsedSpace(ctx context.Context, ownerID string) (*domain.ReconcileResult, error) {
	// Квота должна существовать до пересчета
	quota, err := r.GetQuota(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create quota: %w", err)
	}

	log.Printf("[QuotaRepository] Выполняем расчет используемого пространства для пользователя %s", ownerID)

	var recomputed int64
	query := `
        WITH total AS (
            SELECT COALESCE(SUM(size_bytes), 0) AS size
            FROM files
            WHERE owner_id = $1
        )
        UPDATE storage_quotas sq
        SET used_bytes = total.size,
            updated_at = CURRENT_TIMESTAMP
        FROM total
        WHERE sq.owner_id = $1
        RETURNING sq.used_bytes`

	if err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&recomputed); err != nil {
		log.Printf("[QuotaRepository] Ошибка при обновлении используемого пространства: %v", err)
		return nil, fmt.Errorf("failed to recalculate used space: %w", err)
	}

	log.Printf("[QuotaRepository] Пересчитано пространство для %s: было %d, стало %d байт",
		ownerID, quota.UsedBytes, recomputed)

	return &domain.ReconcileResult{
		OwnerID:         ownerID,
		PreviousBytes:   quota.UsedBytes,
		RecomputedBytes: recomputed,
		DriftBytes:      recomputed - quota.UsedBytes,
	}, nil
}

func (r *StorageQuotaRepository) Update(ctx context.Context, quota *domain.StorageQuota) error {
	query := `
        UPDATE storage_quotas
        SET used_bytes = $1,
            total_bytes_limit = $2,
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $3
        RETURNING id, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		quota.UsedBytes,
		quota.TotalBytesLimit,
		quota.OwnerID,
	).Scan(&quota.ID, &quota.CreatedAt, &quota.UpdatedAt)
}
