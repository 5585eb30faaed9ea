// Package users declares the repository contract for user accounts.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/passport/internal/server/models"
)

type Repository interface {
	// Create inserts a user. A taken email or username yields common.ErrConflict.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// UpdateLoginState persists the lockout counters and, on success, the login time.
	UpdateLoginState(ctx context.Context, id string, failedAttempts int, lockedUntil, lastLoginAt *time.Time) error
	UpdateMasterPasswordHash(ctx context.Context, id string, hash string) error
	UpdateTOTP(ctx context.Context, id string, secret *string, enabled bool) error
}
