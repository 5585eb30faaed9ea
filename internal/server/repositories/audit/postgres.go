package audit

import (
	"context"
	"encoding/json"
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

func (r *PostgresRepository) Create(ctx context.Context, e *models.AuditLog) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	if e.Details == nil {
		details = []byte("{}")
	}

	query := `
		INSERT INTO audit_logs (user_id, action, resource, success, ip_address, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowContext(ctx, query, e.UserID, e.Action, e.Resource, e.Success, e.IPAddress, details).
		Scan(&e.ID, &e.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, user_id, action, resource, success, ip_address, details, created_at
		FROM audit_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.AuditLog, 0)
	for rows.Next() {
		e := &models.AuditLog{}
		var details []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Resource, &e.Success, &e.IPAddress, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshal details: %w", err)
			}
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
