// Package apikeys declares the repository contract for user API keys.
package apikeys

import (
	"context"
	"time"

	"github.com/dmitrijs2005/passport/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, k *models.APIKey) (*models.APIKey, error)
	GetByPrefix(ctx context.Context, prefix string) (*models.APIKey, error)
	ListByUser(ctx context.Context, userID string) ([]*models.APIKey, error)
	// Revoke marks a key of userID revoked. Unknown or foreign keys yield
	// common.ErrorNotFound.
	Revoke(ctx context.Context, userID, id string, now time.Time) error
	TouchLastUsed(ctx context.Context, id string, now time.Time) error
}
