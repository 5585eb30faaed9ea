package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/passport/internal/common"
	"github.com/dmitrijs2005/passport/internal/logging"
	"github.com/dmitrijs2005/passport/internal/server/models"
	"github.com/dmitrijs2005/passport/internal/server/repositories/repomanager"
)

// SharingService grants other users access to single vault records.
//
// A share moves pending -> accepted | rejected, and any non-revoked share can
// be revoked by its creator or by the record owner. Revoked is terminal; a
// new share must be created to grant access again.
type SharingService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	vault       *VaultService
	audit       *AuditService
	logger      logging.Logger
	now         func() time.Time
}

func NewSharingService(db *sql.DB, m repomanager.RepositoryManager, vault *VaultService,
	audit *AuditService, l logging.Logger) *SharingService {
	return &SharingService{
		db:          db,
		repomanager: m,
		vault:       vault,
		audit:       audit,
		logger:      l.With("module", "sharing"),
		now:         time.Now,
	}
}

func shareResource(id string) string { return "share:" + id }

// Share grants granteeEmail access to a record. The actor must own the
// record or hold an accepted share on it with re-share rights, and can never
// hand out more than it holds.
func (s *SharingService) Share(ctx context.Context, actorID, passwordID, granteeEmail string, caps models.Capabilities) (*models.Share, error) {
	if !caps.CanView {
		return nil, fmt.Errorf("%w: a share must grant view access", common.ErrorValidation)
	}

	rec, err := s.repomanager.Passwords(s.db).Get(ctx, passwordID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != actorID {
		held, err := s.repomanager.Shares(s.db).FindActive(ctx, passwordID, actorID)
		if err != nil {
			return nil, err
		}
		if held.Status != models.ShareAccepted || !held.CanShare {
			return nil, common.ErrorNotFound
		}
		if !held.Capabilities.Covers(caps) {
			return nil, fmt.Errorf("%w: cannot grant more than your own access", common.ErrorForbidden)
		}
	}

	grantee, err := s.repomanager.Users(s.db).GetByEmail(ctx, normalizeEmail(granteeEmail))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("grantee: %w", err)
		}
		return nil, err
	}
	if grantee.ID == actorID || grantee.ID == rec.UserID {
		return nil, fmt.Errorf("%w: cannot share a record with its owner or yourself", common.ErrorValidation)
	}

	share, err := s.repomanager.Shares(s.db).Create(ctx, &models.Share{
		PasswordID:   passwordID,
		PasswordName: rec.Name,
		OwnerID:      rec.UserID,
		SharedByID:   actorID,
		SharedWithID: grantee.ID,
		Capabilities: caps,
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actorID, ActionShareCreated, shareResource(share.ID), true,
		map[string]any{"password_id": passwordID, "shared_with": grantee.ID})
	s.logger.Info(ctx, "share created", "share_id", share.ID, "password_id", passwordID)
	return share, nil
}

// granteeShare loads a share addressed to userID.
func (s *SharingService) granteeShare(ctx context.Context, userID, shareID string) (*models.Share, error) {
	share, err := s.repomanager.Shares(s.db).Get(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if share.SharedWithID != userID {
		return nil, common.ErrorNotFound
	}
	return share, nil
}

func (s *SharingService) respond(ctx context.Context, userID, shareID string, to models.ShareStatus, action string) (*models.Share, error) {
	share, err := s.granteeShare(ctx, userID, shareID)
	if err != nil {
		return nil, err
	}
	if share.Status != models.SharePending {
		return nil, common.ErrInvalidStateTransition
	}
	now := s.now()
	if err := s.repomanager.Shares(s.db).SetStatus(ctx, shareID, models.SharePending, to, now); err != nil {
		return nil, err
	}
	share.Status = to
	if to == models.ShareAccepted {
		share.AcceptedAt = &now
	}
	s.audit.Record(ctx, userID, action, shareResource(shareID), true, nil)
	return share, nil
}

// Accept is called by the grantee on a pending share.
func (s *SharingService) Accept(ctx context.Context, userID, shareID string) (*models.Share, error) {
	return s.respond(ctx, userID, shareID, models.ShareAccepted, ActionShareAccepted)
}

// Reject is called by the grantee on a pending share.
func (s *SharingService) Reject(ctx context.Context, userID, shareID string) (*models.Share, error) {
	return s.respond(ctx, userID, shareID, models.ShareRejected, ActionShareRejected)
}

// Revoke ends a share. Allowed for the user who created it and for the
// record owner, from any state but revoked.
func (s *SharingService) Revoke(ctx context.Context, userID, shareID string) (*models.Share, error) {
	share, err := s.repomanager.Shares(s.db).Get(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if share.SharedByID != userID && share.OwnerID != userID {
		return nil, common.ErrorNotFound
	}
	if share.Status == models.ShareRevoked {
		return nil, common.ErrInvalidStateTransition
	}
	now := s.now()
	if err := s.repomanager.Shares(s.db).SetStatus(ctx, shareID, share.Status, models.ShareRevoked, now); err != nil {
		return nil, err
	}
	share.Status = models.ShareRevoked
	share.RevokedAt = &now
	s.audit.Record(ctx, userID, ActionShareRevoked, shareResource(shareID), true, nil)
	s.logger.Info(ctx, "share revoked", "share_id", shareID)
	return share, nil
}

func (s *SharingService) ListSharedByMe(ctx context.Context, userID string) ([]*models.Share, error) {
	return s.repomanager.Shares(s.db).ListSharedBy(ctx, userID)
}

func (s *SharingService) ListSharedWithMe(ctx context.Context, userID string) ([]*models.Share, error) {
	return s.repomanager.Shares(s.db).ListSharedWith(ctx, userID)
}

// GetSharedItem decrypts the record behind an accepted share with view rights.
func (s *SharingService) GetSharedItem(ctx context.Context, userID, shareID string) (*models.Item, error) {
	share, err := s.granteeShare(ctx, userID, shareID)
	if err != nil {
		return nil, err
	}
	if share.Status != models.ShareAccepted || !share.CanView {
		return nil, fmt.Errorf("%w: share is not accepted", common.ErrorForbidden)
	}
	return s.vault.OpenShared(ctx, share.PasswordID)
}
