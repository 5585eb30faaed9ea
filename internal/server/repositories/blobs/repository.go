// Package blobs declares the repository contract for the per-user
// client-encrypted vault blob pointer.
package blobs

import (
	"context"

	"github.com/dmitrijs2005/passport/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, userID string) (*models.VaultBlob, error)
	// BeginUpload points the user's blob at a new storage key with the next
	// version and pending status, returning the stored row.
	BeginUpload(ctx context.Context, userID, storageKey string) (*models.VaultBlob, error)
	// MarkUploaded completes the upload of version.
	MarkUploaded(ctx context.Context, userID string, version int64) error
}
