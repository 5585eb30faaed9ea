package history

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/passport/internal/dbx"
	"github.com/dmitrijs2005/passport/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, h *models.PasswordHistory) error {
	query := `
		INSERT INTO password_history (password_id, encrypted_password, password_strength, password_score)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, h.PasswordID, h.EncryptedPassword, h.PasswordStrength, h.PasswordScore).
		Scan(&h.ID, &h.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// List returns history newest first.
func (r *PostgresRepository) List(ctx context.Context, passwordID string) ([]*models.PasswordHistory, error) {
	query := `
		SELECT id, password_id, encrypted_password, password_strength, password_score, created_at
		FROM password_history
		WHERE password_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, passwordID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.PasswordHistory, 0)
	for rows.Next() {
		h := &models.PasswordHistory{}
		if err := rows.Scan(&h.ID, &h.PasswordID, &h.EncryptedPassword, &h.PasswordStrength, &h.PasswordScore, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
