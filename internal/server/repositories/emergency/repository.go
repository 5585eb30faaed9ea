// Package emergency declares the repository contract for emergency access grants.
package emergency

import (
	"context"
	"time"

	"github.com/dmitrijs2005/passport/internal/server/models"
)

type Repository interface {
	// Create inserts a pending grant. An existing non-rejected grant for the
	// same (grantor, grantee) pair yields common.ErrConflict.
	Create(ctx context.Context, e *models.EmergencyAccess) (*models.EmergencyAccess, error)
	Get(ctx context.Context, id string) (*models.EmergencyAccess, error)
	GetForUpdate(ctx context.Context, id string) (*models.EmergencyAccess, error)
	// Transition persists e's new state provided the row is still in from.
	Transition(ctx context.Context, e *models.EmergencyAccess, from models.EmergencyStatus) error
	Delete(ctx context.Context, id string) error
	ListByGrantor(ctx context.Context, userID string) ([]*models.EmergencyAccess, error)
	ListByGrantee(ctx context.Context, userID string) ([]*models.EmergencyAccess, error)
	// GrantElapsed promotes every requested grant whose available_at is at or
	// before now and returns the promoted rows.
	GrantElapsed(ctx context.Context, now time.Time) ([]*models.EmergencyAccess, error)
}
