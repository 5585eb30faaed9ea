// Package shares declares the repository contract for record shares.
package shares

import (
	"context"
	"time"

	"github.com/dmitrijs2005/passport/internal/server/models"
)

type Repository interface {
	// Create inserts a pending share. A second non-revoked share for the same
	// (password, grantee) pair yields common.ErrConflict.
	Create(ctx context.Context, s *models.Share) (*models.Share, error)
	Get(ctx context.Context, id string) (*models.Share, error)
	// FindActive returns the non-revoked share of passwordID held by userID.
	FindActive(ctx context.Context, passwordID, userID string) (*models.Share, error)
	// SetStatus moves a share from one status to another. A share that is no
	// longer in from yields common.ErrInvalidStateTransition.
	SetStatus(ctx context.Context, id string, from, to models.ShareStatus, at time.Time) error
	ListSharedBy(ctx context.Context, userID string) ([]*models.Share, error)
	ListSharedWith(ctx context.Context, userID string) ([]*models.Share, error)
}
