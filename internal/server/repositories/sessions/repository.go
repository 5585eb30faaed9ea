// Package sessions declares the repository contract for server-stored
// refresh sessions.
package sessions

import (
	"context"

	"github.com/dmitrijs2005/passport/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking refresh sessions.
type Repository interface {
	// Create stores a new session; ID and CreatedAt are filled in.
	Create(ctx context.Context, s *models.Session) error

	// Find looks up a session by its opaque token. Absent tokens yield
	// common.ErrorNotFound.
	Find(ctx context.Context, token string) (*models.Session, error)

	// Delete removes a session by token. Deleting a missing token is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteForUser removes every session of a user.
	DeleteForUser(ctx context.Context, userID string) error
}
