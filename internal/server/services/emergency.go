package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/passport/internal/common"
	"github.com/dmitrijs2005/passport/internal/dbx"
	"github.com/dmitrijs2005/passport/internal/logging"
	"github.com/dmitrijs2005/passport/internal/server/models"
	"github.com/dmitrijs2005/passport/internal/server/repositories/repomanager"
)

const (
	MinWaitHours = 1
	MaxWaitHours = 720
)

// Notifier tells a grantor that a contact asked for emergency access.
type Notifier interface {
	EmergencyRequested(ctx context.Context, e *models.EmergencyAccess)
}

// LogNotifier records requests in the server log.
type LogNotifier struct {
	Logger logging.Logger
}

func (n LogNotifier) EmergencyRequested(ctx context.Context, e *models.EmergencyAccess) {
	n.Logger.Info(ctx, "emergency access requested",
		"grant_id", e.ID, "grantor_id", e.GrantorID, "grantee_id", e.GranteeID, "available_at", e.AvailableAt)
}

// EmergencyVault is what a granted contact sees.
type EmergencyVault struct {
	Access *models.EmergencyAccess `json:"access"`
	Items  []*models.Item          `json:"items"`
}

// EmergencyService runs the emergency access protocol:
//
//	pending -> active -> requested -> granted | rejected
//
// The grantor activates, approves and rejects; the grantee requests. When
// autoGrant is on, a requested grant whose wait period has elapsed is
// granted without approval, both by Sweep and lazily on access.
type EmergencyService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	vault       *VaultService
	audit       *AuditService
	notifier    Notifier
	logger      logging.Logger
	autoGrant   bool
	now         func() time.Time
}

func NewEmergencyService(db *sql.DB, m repomanager.RepositoryManager, vault *VaultService,
	audit *AuditService, notifier Notifier, autoGrant bool, l logging.Logger) *EmergencyService {
	return &EmergencyService{
		db:          db,
		repomanager: m,
		vault:       vault,
		audit:       audit,
		notifier:    notifier,
		logger:      l.With("module", "emergency"),
		autoGrant:   autoGrant,
		now:         time.Now,
	}
}

func emergencyResource(id string) string { return "emergency:" + id }

// Create registers granteeEmail as a trusted contact of grantorID.
func (s *EmergencyService) Create(ctx context.Context, grantorID, granteeEmail string, waitHours int, level models.AccessLevel) (*models.EmergencyAccess, error) {
	if waitHours < MinWaitHours || waitHours > MaxWaitHours {
		return nil, fmt.Errorf("%w: wait_hours must be between %d and %d", common.ErrorValidation, MinWaitHours, MaxWaitHours)
	}
	if level == "" {
		level = models.AccessView
	}
	if level != models.AccessView && level != models.AccessTakeover {
		return nil, fmt.Errorf("%w: unknown access level %q", common.ErrorValidation, level)
	}

	grantee, err := s.repomanager.Users(s.db).GetByEmail(ctx, normalizeEmail(granteeEmail))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("grantee: %w", err)
		}
		return nil, err
	}
	if grantee.ID == grantorID {
		return nil, fmt.Errorf("%w: cannot grant emergency access to yourself", common.ErrorValidation)
	}

	e, err := s.repomanager.Emergency(s.db).Create(ctx, &models.EmergencyAccess{
		GrantorID:   grantorID,
		GranteeID:   grantee.ID,
		AccessLevel: level,
		WaitHours:   waitHours,
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, grantorID, ActionEmergencyCreated, emergencyResource(e.ID), true,
		map[string]any{"grantee_id": grantee.ID, "wait_hours": waitHours})
	return e, nil
}

type party int

const (
	asGrantor party = iota
	asGrantee
)

// transition moves a grant under a row lock. Only the given party may act,
// and only from the given status; step sets the new state.
func (s *EmergencyService) transition(ctx context.Context, actorID, id string, who party,
	from models.EmergencyStatus, step func(e *models.EmergencyAccess, now time.Time)) (*models.EmergencyAccess, error) {
	var out *models.EmergencyAccess
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Emergency(tx)
		e, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !involves(e, actorID, who) {
			return common.ErrorNotFound
		}
		if e.Status != from {
			return common.ErrInvalidStateTransition
		}
		step(e, s.now())
		if err := repo.Transition(ctx, e, from); err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

func involves(e *models.EmergencyAccess, userID string, who party) bool {
	if who == asGrantor {
		return e.GrantorID == userID
	}
	return e.GranteeID == userID
}

// Activate is the grantor confirming the relationship.
func (s *EmergencyService) Activate(ctx context.Context, grantorID, id string) (*models.EmergencyAccess, error) {
	e, err := s.transition(ctx, grantorID, id, asGrantor, models.EmergencyPending, func(e *models.EmergencyAccess, _ time.Time) {
		e.Status = models.EmergencyActive
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, grantorID, ActionEmergencyActivated, emergencyResource(id), true, nil)
	return e, nil
}

// Request is the grantee invoking an active grant. The wait period starts now.
func (s *EmergencyService) Request(ctx context.Context, granteeID, id string) (*models.EmergencyAccess, error) {
	e, err := s.transition(ctx, granteeID, id, asGrantee, models.EmergencyActive, func(e *models.EmergencyAccess, now time.Time) {
		available := now.Add(time.Duration(e.WaitHours) * time.Hour)
		e.Status = models.EmergencyRequested
		e.RequestedAt = &now
		e.AvailableAt = &available
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, granteeID, ActionEmergencyRequested, emergencyResource(id), true,
		map[string]any{"available_at": e.AvailableAt.UTC().Format(time.RFC3339)})
	s.notifier.EmergencyRequested(ctx, e)
	return e, nil
}

// Approve is the grantor releasing access before the wait period ends.
func (s *EmergencyService) Approve(ctx context.Context, grantorID, id string) (*models.EmergencyAccess, error) {
	e, err := s.transition(ctx, grantorID, id, asGrantor, models.EmergencyRequested, func(e *models.EmergencyAccess, now time.Time) {
		e.Status = models.EmergencyGranted
		e.GrantedAt = &now
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, grantorID, ActionEmergencyApproved, emergencyResource(id), true, nil)
	return e, nil
}

// Reject is the grantor refusing a request. Rejected is terminal.
func (s *EmergencyService) Reject(ctx context.Context, grantorID, id string) (*models.EmergencyAccess, error) {
	e, err := s.transition(ctx, grantorID, id, asGrantor, models.EmergencyRequested, func(e *models.EmergencyAccess, now time.Time) {
		e.Status = models.EmergencyRejected
		e.RejectedAt = &now
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, grantorID, ActionEmergencyRejected, emergencyResource(id), true, nil)
	return e, nil
}

// Revoke deletes a grant outright. A rejected grant is terminal and stays
// on record.
func (s *EmergencyService) Revoke(ctx context.Context, grantorID, id string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Emergency(tx)
		e, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if e.GrantorID != grantorID {
			return common.ErrorNotFound
		}
		if e.Status == models.EmergencyRejected {
			return common.ErrInvalidStateTransition
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.audit.Record(ctx, grantorID, ActionEmergencyRevoked, emergencyResource(id), true, nil)
	return nil
}

func (s *EmergencyService) ListAsGrantor(ctx context.Context, userID string) ([]*models.EmergencyAccess, error) {
	return s.repomanager.Emergency(s.db).ListByGrantor(ctx, userID)
}

func (s *EmergencyService) ListAsGrantee(ctx context.Context, userID string) ([]*models.EmergencyAccess, error) {
	return s.repomanager.Emergency(s.db).ListByGrantee(ctx, userID)
}

// elapsed reports whether a requested grant may be released without approval.
func (s *EmergencyService) elapsed(e *models.EmergencyAccess, now time.Time) bool {
	return s.autoGrant && e.Status == models.EmergencyRequested &&
		e.AvailableAt != nil && !now.Before(*e.AvailableAt)
}

// AccessVault returns the grantor's decrypted items to a granted contact.
func (s *EmergencyService) AccessVault(ctx context.Context, granteeID, id string) (*EmergencyVault, error) {
	e, err := s.repomanager.Emergency(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.GranteeID != granteeID {
		return nil, common.ErrorNotFound
	}
	if s.elapsed(e, s.now()) {
		e, err = s.transition(ctx, granteeID, id, asGrantee, models.EmergencyRequested, func(e *models.EmergencyAccess, now time.Time) {
			e.Status = models.EmergencyGranted
			e.GrantedAt = &now
		})
		if err != nil {
			return nil, err
		}
		s.audit.Record(ctx, e.GrantorID, ActionEmergencyAutoGranted, emergencyResource(id), true, nil)
	}
	if e.Status != models.EmergencyGranted {
		return nil, fmt.Errorf("%w: emergency access is %s", common.ErrorForbidden, e.Status)
	}

	items, err := s.vault.OwnerItems(ctx, e.GrantorID)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, granteeID, ActionEmergencyVaultRead, emergencyResource(id), true,
		map[string]any{"grantor_id": e.GrantorID, "items": len(items)})
	return &EmergencyVault{Access: e, Items: items}, nil
}

// Sweep grants every requested grant whose wait period has elapsed. It does
// nothing unless auto-grant is enabled.
func (s *EmergencyService) Sweep(ctx context.Context) (int, error) {
	if !s.autoGrant {
		return 0, nil
	}
	granted, err := s.repomanager.Emergency(s.db).GrantElapsed(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, e := range granted {
		s.audit.Record(ctx, e.GrantorID, ActionEmergencyAutoGranted, emergencyResource(e.ID), true,
			map[string]any{"grantee_id": e.GranteeID})
	}
	if len(granted) > 0 {
		s.logger.Info(ctx, "emergency grants released", "count", len(granted))
	}
	return len(granted), nil
}
