// Package passwords provides the PostgreSQL-backed vault record repository.
package passwords

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/passport/internal/common"
	"github.com/dmitrijs2005/passport/internal/dbx"
	"github.com/dmitrijs2005/passport/internal/server/models"
)

// isShared is derived from live share rows; there is no stored flag.
const isShared = `EXISTS (SELECT 1 FROM shared_passwords s WHERE s.password_id = p.id AND s.status <> 'revoked')`

const recordColumns = `p.id, p.user_id, p.name, p.type, p.folder, p.username, p.url, p.encrypted_password,
		p.details, p.notes, p.tags, p.custom_fields, p.password_strength, p.password_score,
		p.is_compromised, p.breach_count, p.auto_rotate, p.rotation_days, p.last_rotated_at, p.next_rotation_at,
		` + isShared + `, p.is_favorite, p.last_used_at, p.usage_count, p.is_deleted, p.deleted_at,
		p.created_at, p.updated_at`

const listColumns = `p.id, p.name, p.type, p.folder, p.username, p.url, p.password_strength,
		p.is_compromised, ` + isShared + `, p.is_favorite, p.updated_at`

const MaxListLimit = 1000

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.PasswordRecord) (*models.PasswordRecord, error) {
	query := `
		INSERT INTO passwords (user_id, name, type, folder, username, url, encrypted_password, details, notes,
			tags, custom_fields, password_strength, password_score, auto_rotate, rotation_days,
			last_rotated_at, next_rotation_at, is_favorite)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		rec.UserID, rec.Name, rec.Type, rec.Folder, rec.Username, rec.URL, rec.EncryptedPassword, rec.Details, rec.Notes,
		rec.Tags, rec.CustomFields, rec.PasswordStrength, rec.PasswordScore, rec.AutoRotate, rec.RotationDays,
		rec.LastRotatedAt, rec.NextRotationAt, rec.IsFavorite).
		Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.PasswordRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM passwords p WHERE p.id = $1 AND NOT p.is_deleted`
	return scanRecord(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.PasswordRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM passwords p WHERE p.id = $1 AND NOT p.is_deleted FOR UPDATE OF p`
	return scanRecord(r.db.QueryRowContext(ctx, query, id))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.PasswordRecord, error) {
	rec := &models.PasswordRecord{}
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Name, &rec.Type, &rec.Folder, &rec.Username, &rec.URL,
		&rec.EncryptedPassword, &rec.Details, &rec.Notes, &rec.Tags, &rec.CustomFields,
		&rec.PasswordStrength, &rec.PasswordScore, &rec.IsCompromised, &rec.BreachCount,
		&rec.AutoRotate, &rec.RotationDays, &rec.LastRotatedAt, &rec.NextRotationAt,
		&rec.IsShared, &rec.IsFavorite, &rec.LastUsedAt, &rec.UsageCount, &rec.IsDeleted, &rec.DeletedAt,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) List(ctx context.Context, userID string, f models.PasswordFilter) ([]*models.PasswordListItem, error) {
	var b strings.Builder
	args := []any{userID}
	arg := func(v any) int {
		args = append(args, v)
		return len(args)
	}

	b.WriteString(`SELECT ` + listColumns + ` FROM passwords p WHERE p.user_id = $1 AND NOT p.is_deleted`)
	if f.Search != "" {
		n := arg("%" + escapeLike(f.Search) + "%")
		fmt.Fprintf(&b, ` AND (p.name ILIKE $%d OR p.username ILIKE $%d OR p.url ILIKE $%d)`, n, n, n)
	}
	if f.Folder != "" {
		fmt.Fprintf(&b, ` AND p.folder = $%d`, arg(f.Folder))
	}
	if f.Type != "" {
		fmt.Fprintf(&b, ` AND p.type = $%d`, arg(f.Type))
	}
	if f.Favorite != nil {
		fmt.Fprintf(&b, ` AND p.is_favorite = $%d`, arg(*f.Favorite))
	}

	limit := f.Limit
	if limit <= 0 || limit > MaxListLimit {
		limit = 100
	}
	skip := max(f.Skip, 0)
	fmt.Fprintf(&b, ` ORDER BY p.updated_at DESC OFFSET $%d LIMIT $%d`, arg(skip), arg(limit))

	return r.queryList(ctx, b.String(), args...)
}

func (r *PostgresRepository) DueForRotation(ctx context.Context, userID string, now time.Time) ([]*models.PasswordListItem, error) {
	query := `SELECT ` + listColumns + ` FROM passwords p
		WHERE p.user_id = $1 AND NOT p.is_deleted AND p.auto_rotate AND p.next_rotation_at <= $2
		ORDER BY p.next_rotation_at`
	return r.queryList(ctx, query, userID, now)
}

func (r *PostgresRepository) queryList(ctx context.Context, query string, args ...any) ([]*models.PasswordListItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.PasswordListItem, 0)
	for rows.Next() {
		var it models.PasswordListItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Type, &it.Folder, &it.Username, &it.URL,
			&it.PasswordStrength, &it.IsCompromised, &it.IsShared, &it.IsFavorite, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, userID string) ([]*models.PasswordRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM passwords p WHERE p.user_id = $1 AND NOT p.is_deleted ORDER BY p.name`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.PasswordRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, rec *models.PasswordRecord) error {
	query := `
		UPDATE passwords SET name = $2, folder = $3, username = $4, url = $5, encrypted_password = $6,
			details = $7, notes = $8, tags = $9, custom_fields = $10, password_strength = $11,
			password_score = $12, is_compromised = $13, breach_count = $14, auto_rotate = $15,
			rotation_days = $16, last_rotated_at = $17, next_rotation_at = $18, is_favorite = $19,
			updated_at = now()
		WHERE id = $1 AND NOT is_deleted
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query, rec.ID,
		rec.Name, rec.Folder, rec.Username, rec.URL, rec.EncryptedPassword,
		rec.Details, rec.Notes, rec.Tags, rec.CustomFields, rec.PasswordStrength,
		rec.PasswordScore, rec.IsCompromised, rec.BreachCount, rec.AutoRotate,
		rec.RotationDays, rec.LastRotatedAt, rec.NextRotationAt, rec.IsFavorite).
		Scan(&rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) TouchUsage(ctx context.Context, id string, now time.Time) error {
	query := `UPDATE passwords SET usage_count = usage_count + 1, last_used_at = $2 WHERE id = $1 AND NOT is_deleted`
	return r.execOne(ctx, query, id, now)
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id string, now time.Time) error {
	query := `UPDATE passwords SET is_deleted = TRUE, deleted_at = $2, updated_at = $2 WHERE id = $1 AND NOT is_deleted`
	return r.execOne(ctx, query, id, now)
}

func (r *PostgresRepository) SetBreachStatus(ctx context.Context, id string, compromised bool, count int) error {
	query := `UPDATE passwords SET is_compromised = $2, breach_count = $3 WHERE id = $1 AND NOT is_deleted`
	return r.execOne(ctx, query, id, compromised, count)
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

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
