// Package emergency provides the PostgreSQL-backed emergency access repository.
package emergency

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

const columns = `id, grantor_id, grantee_id, status, access_level, wait_hours,
		requested_at, available_at, granted_at, rejected_at, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, e *models.EmergencyAccess) (*models.EmergencyAccess, error) {
	query := `
		INSERT INTO emergency_access (grantor_id, grantee_id, status, access_level, wait_hours)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	e.Status = models.EmergencyPending
	err := r.db.QueryRowContext(ctx, query, e.GrantorID, e.GranteeID, e.Status, e.AccessLevel, e.WaitHours).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.EmergencyAccess, error) {
	return scanOne(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM emergency_access WHERE id = $1`, id))
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.EmergencyAccess, error) {
	return scanOne(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM emergency_access WHERE id = $1 FOR UPDATE`, id))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row scanner) (*models.EmergencyAccess, error) {
	e := &models.EmergencyAccess{}
	err := row.Scan(&e.ID, &e.GrantorID, &e.GranteeID, &e.Status, &e.AccessLevel, &e.WaitHours,
		&e.RequestedAt, &e.AvailableAt, &e.GrantedAt, &e.RejectedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) Transition(ctx context.Context, e *models.EmergencyAccess, from models.EmergencyStatus) error {
	query := `
		UPDATE emergency_access SET status = $3, requested_at = $4, available_at = $5,
			granted_at = $6, rejected_at = $7, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query, e.ID, from, e.Status, e.RequestedAt, e.AvailableAt, e.GrantedAt, e.RejectedAt).
		Scan(&e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrInvalidStateTransition
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM emergency_access WHERE id = $1`, id)
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

func (r *PostgresRepository) ListByGrantor(ctx context.Context, userID string) ([]*models.EmergencyAccess, error) {
	return r.list(ctx, `SELECT `+columns+` FROM emergency_access WHERE grantor_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *PostgresRepository) ListByGrantee(ctx context.Context, userID string) ([]*models.EmergencyAccess, error) {
	return r.list(ctx, `SELECT `+columns+` FROM emergency_access WHERE grantee_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *PostgresRepository) GrantElapsed(ctx context.Context, now time.Time) ([]*models.EmergencyAccess, error) {
	query := `
		UPDATE emergency_access SET status = 'granted', granted_at = $1, updated_at = now()
		WHERE status = 'requested' AND available_at <= $1
		RETURNING ` + columns
	return r.list(ctx, query, now)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.EmergencyAccess, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.EmergencyAccess, 0)
	for rows.Next() {
		e, err := scanOne(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
