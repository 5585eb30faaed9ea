// Package audit declares the repository contract for the security audit log.
package audit

import (
	"context"

	"github.com/dmitrijs2005/passport/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error)
}
