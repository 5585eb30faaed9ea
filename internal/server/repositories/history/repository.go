// Package history declares the append-only password history repository.
package history

import (
	"context"

	"github.com/dmitrijs2005/passport/internal/server/models"
)

// Repository has no update or delete: history rows are immutable.
type Repository interface {
	Append(ctx context.Context, h *models.PasswordHistory) error
	List(ctx context.Context, passwordID string) ([]*models.PasswordHistory, error)
}
