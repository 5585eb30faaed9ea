package apikeys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/passport/internal/common"
	"github.com/dmitrijs2005/passport/internal/dbx"
	"github.com/dmitrijs2005/passport/internal/server/models"
)

const columns = `id, user_id, name, prefix, key_hash, expires_at, last_used_at, revoked_at, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, k *models.APIKey) (*models.APIKey, error) {
	query := `
		INSERT INTO api_keys (user_id, name, prefix, key_hash, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, k.UserID, k.Name, k.Prefix, k.KeyHash, k.ExpiresAt).Scan(&k.ID, &k.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return k, nil
}

func (r *PostgresRepository) GetByPrefix(ctx context.Context, prefix string) (*models.APIKey, error) {
	return scanOne(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM api_keys WHERE prefix = $1`, prefix))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row scanner) (*models.APIKey, error) {
	k := &models.APIKey{}
	err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.Prefix, &k.KeyHash, &k.ExpiresAt, &k.LastUsedAt, &k.RevokedAt, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return k, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.APIKey, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+columns+` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.APIKey, 0)
	for rows.Next() {
		k, err := scanOne(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, userID, id string, now time.Time) error {
	query := `UPDATE api_keys SET revoked_at = $3 WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL`
	return r.execOne(ctx, query, id, userID, now)
}

func (r *PostgresRepository) TouchLastUsed(ctx context.Context, id string, now time.Time) error {
	return r.execOne(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, now)
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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
