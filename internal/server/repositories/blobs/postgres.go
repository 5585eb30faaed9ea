package blobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/passport/internal/common"
	"github.com/dmitrijs2005/passport/internal/dbx"
	"github.com/dmitrijs2005/passport/internal/server/models"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.VaultBlob, error) {
	query := `SELECT user_id, storage_key, version, upload_status, updated_at FROM vault_blobs WHERE user_id = $1`
	b := &models.VaultBlob{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&b.UserID, &b.StorageKey, &b.Version, &b.UploadStatus, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return b, nil
}

func (r *PostgresRepository) BeginUpload(ctx context.Context, userID, storageKey string) (*models.VaultBlob, error) {
	query := `
		INSERT INTO vault_blobs (user_id, storage_key, version, upload_status)
		VALUES ($1, $2, 1, 'pending')
		ON CONFLICT (user_id)
		DO UPDATE SET storage_key = EXCLUDED.storage_key, version = vault_blobs.version + 1,
			upload_status = 'pending', updated_at = now()
		RETURNING user_id, storage_key, version, upload_status, updated_at
	`
	b := &models.VaultBlob{}
	err := r.db.QueryRowContext(ctx, query, userID, storageKey).Scan(&b.UserID, &b.StorageKey, &b.Version, &b.UploadStatus, &b.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return b, nil
}

func (r *PostgresRepository) MarkUploaded(ctx context.Context, userID string, version int64) error {
	query := `UPDATE vault_blobs SET upload_status = 'completed', updated_at = now() WHERE user_id = $1 AND version = $2`
	res, err := r.db.ExecContext(ctx, query, userID, version)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
