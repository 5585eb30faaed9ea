// Package users provides the PostgreSQL-backed users repository.
package users

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

const userColumns = `id, email, username, password_hash, master_password_hash, vault_salt,
		totp_secret, totp_enabled, failed_login_attempts, locked_until, last_login_at, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (email, username, password_hash, master_password_hash, vault_salt)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.UserName, user.PasswordHash, user.MasterPasswordHash, user.VaultSalt).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Email, &u.UserName, &u.PasswordHash, &u.MasterPasswordHash, &u.VaultSalt,
		&u.TOTPSecret, &u.TOTPEnabled, &u.FailedLoginAttempts, &u.LockedUntil, &u.LastLoginAt,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) UpdateLoginState(ctx context.Context, id string, failedAttempts int, lockedUntil, lastLoginAt *time.Time) error {
	query :=
		`UPDATE users SET failed_login_attempts = $2, locked_until = $3,
		 last_login_at = COALESCE($4, last_login_at), updated_at = now()
		 WHERE id = $1`
	return r.execOne(ctx, query, id, failedAttempts, lockedUntil, lastLoginAt)
}

func (r *PostgresRepository) UpdateMasterPasswordHash(ctx context.Context, id string, hash string) error {
	query := `UPDATE users SET master_password_hash = $2, updated_at = now() WHERE id = $1`
	return r.execOne(ctx, query, id, hash)
}

func (r *PostgresRepository) UpdateTOTP(ctx context.Context, id string, secret *string, enabled bool) error {
	query := `UPDATE users SET totp_secret = $2, totp_enabled = $3, updated_at = now() WHERE id = $1`
	return r.execOne(ctx, query, id, secret, enabled)
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
