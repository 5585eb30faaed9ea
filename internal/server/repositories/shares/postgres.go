// Package shares provides the PostgreSQL-backed shares repository.
package shares

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

const shareColumns = `s.id, s.password_id, p.name, s.owner_id, s.shared_by_id, s.shared_with_id, s.status,
		s.can_view, s.can_edit, s.can_share, s.created_at, s.accepted_at, s.revoked_at`

const shareFrom = ` FROM shared_passwords s JOIN passwords p ON p.id = s.password_id`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Share) (*models.Share, error) {
	query := `
		INSERT INTO shared_passwords (password_id, owner_id, shared_by_id, shared_with_id, status, can_view, can_edit, can_share)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	s.Status = models.SharePending
	err := r.db.QueryRowContext(ctx, query, s.PasswordID, s.OwnerID, s.SharedByID, s.SharedWithID, s.Status,
		s.CanView, s.CanEdit, s.CanShare).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Share, error) {
	query := `SELECT ` + shareColumns + shareFrom + ` WHERE s.id = $1`
	return scanShare(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) FindActive(ctx context.Context, passwordID, userID string) (*models.Share, error) {
	query := `SELECT ` + shareColumns + shareFrom + `
		WHERE s.password_id = $1 AND s.shared_with_id = $2 AND s.status <> 'revoked'`
	return scanShare(r.db.QueryRowContext(ctx, query, passwordID, userID))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanShare(row scanner) (*models.Share, error) {
	s := &models.Share{}
	err := row.Scan(&s.ID, &s.PasswordID, &s.PasswordName, &s.OwnerID, &s.SharedByID, &s.SharedWithID, &s.Status,
		&s.CanView, &s.CanEdit, &s.CanShare, &s.CreatedAt, &s.AcceptedAt, &s.RevokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) SetStatus(ctx context.Context, id string, from, to models.ShareStatus, at time.Time) error {
	query := `
		UPDATE shared_passwords SET status = $3,
			accepted_at = CASE WHEN $3 = 'accepted' THEN $4 ELSE accepted_at END,
			revoked_at = CASE WHEN $3 = 'revoked' THEN $4 ELSE revoked_at END
		WHERE id = $1 AND status = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, from, to, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrInvalidStateTransition
	}
	return nil
}

func (r *PostgresRepository) ListSharedBy(ctx context.Context, userID string) ([]*models.Share, error) {
	query := `SELECT ` + shareColumns + shareFrom + `
		WHERE s.shared_by_id = $1 AND NOT p.is_deleted
		ORDER BY s.created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *PostgresRepository) ListSharedWith(ctx context.Context, userID string) ([]*models.Share, error) {
	query := `SELECT ` + shareColumns + shareFrom + `
		WHERE s.shared_with_id = $1 AND s.status <> 'revoked' AND NOT p.is_deleted
		ORDER BY s.created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Share, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Share, 0)
	for rows.Next() {
		s, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
