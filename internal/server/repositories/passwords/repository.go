// Package passwords declares the repository contract for vault records.
// Rows carry ciphertext only; encryption happens in the service layer.
package passwords

import (
	"context"
	"time"

	"github.com/dmitrijs2005/passport/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, rec *models.PasswordRecord) (*models.PasswordRecord, error)
	// Get returns a non-deleted record regardless of owner; callers check access.
	Get(ctx context.Context, id string) (*models.PasswordRecord, error)
	// GetForUpdate is Get with a row lock, for use inside a transaction.
	GetForUpdate(ctx context.Context, id string) (*models.PasswordRecord, error)
	List(ctx context.Context, userID string, filter models.PasswordFilter) ([]*models.PasswordListItem, error)
	ListByOwner(ctx context.Context, userID string) ([]*models.PasswordRecord, error)
	Update(ctx context.Context, rec *models.PasswordRecord) error
	TouchUsage(ctx context.Context, id string, now time.Time) error
	SoftDelete(ctx context.Context, id string, now time.Time) error
	SetBreachStatus(ctx context.Context, id string, compromised bool, count int) error
	DueForRotation(ctx context.Context, userID string, now time.Time) ([]*models.PasswordListItem, error)
}
