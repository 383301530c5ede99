package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"nimbusdrive/internal/domain"
)

type FileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, file *domain.File) error {
	query := `
        INSERT INTO files (uuid, name, mime_type, size_bytes, object_key, backend, etag, owner_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		file.UUID,
		file.Name,
		file.MIMEType,
		file.SizeBytes,
		file.ObjectKey,
		file.Backend,
		file.ETag,
		file.OwnerID,
	).Scan(&file.CreatedAt, &file.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create file record: %w", err)
	}

	return nil
}

func (r *FileRepository) GetByUUID(ctx context.Context, fileUUID uuid.UUID) (*domain.File, error) {
	var file domain.File

	err := r.db.GetContext(ctx, &file,
		`SELECT * FROM files WHERE uuid = $1`,
		fileUUID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	return &file, nil
}

// Delete удаляет запись метаданных. Удаление записи - событие,
// по которому вызывающая сторона убирает объект из хранилища и
// уменьшает счетчик квоты.
func (r *FileRepository) Delete(ctx context.Context, fileUUID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM files WHERE uuid = $1`,
		fileUUID)
	if err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("file not found: %s", fileUUID)
	}

	return nil
}

func (r *FileRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.File, error) {
	files := make([]domain.File, 0)

	err := r.db.SelectContext(ctx, &files,
		`SELECT * FROM files WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2`,
		ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return files, nil
}
