package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/passport/internal/logging"
	"github.com/dmitrijs2005/passport/internal/server/auth"
	"github.com/dmitrijs2005/passport/internal/server/models"
	"github.com/dmitrijs2005/passport/internal/server/repositories/repomanager"
)

// Audit actions.
const (
	ActionRegister             = "register"
	ActionLoginSuccess         = "login_success"
	ActionLoginFailed          = "login_failed"
	ActionLogout               = "logout"
	ActionVaultUnlock          = "vault_unlock"
	ActionMasterPasswordChange = "master_password_changed"
	ActionTOTPEnabled          = "mfa_enabled"
	ActionTOTPDisabled         = "mfa_disabled"
	ActionShareCreated         = "share_created"
	ActionShareAccepted        = "share_accepted"
	ActionShareRejected        = "share_rejected"
	ActionShareRevoked         = "share_revoked"
	ActionEmergencyCreated     = "emergency_created"
	ActionEmergencyActivated   = "emergency_activated"
	ActionEmergencyRequested   = "emergency_requested"
	ActionEmergencyApproved    = "emergency_approved"
	ActionEmergencyRejected    = "emergency_rejected"
	ActionEmergencyRevoked     = "emergency_revoked"
	ActionEmergencyAutoGranted = "emergency_auto_granted"
	ActionEmergencyVaultRead   = "emergency_vault_accessed"
	ActionAPIKeyCreated        = "api_key_created"
	ActionAPIKeyRevoked        = "api_key_revoked"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// AuditService writes and reads the audit trail. Writing never fails the
// calling operation: storage errors are logged and dropped.
type AuditService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewAuditService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger) *AuditService {
	return &AuditService{db: db, repomanager: m, logger: l.With("module", "audit")}
}

// Record stores one audit event. userID may be empty for events that do not
// resolve to an account. The client IP is taken from ctx.
func (s *AuditService) Record(ctx context.Context, userID, action, resource string, success bool, details map[string]any) {
	entry := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		Success:   success,
		IPAddress: auth.ClientInfoFromContext(ctx).IP,
		Details:   details,
	}
	if userID != "" {
		entry.UserID = &userID
	}
	if err := s.repomanager.Audit(s.db).Create(ctx, entry); err != nil {
		s.logger.Warn(ctx, "failed to write audit log", "action", action, "error", err)
	}
}

// List returns the newest audit events of userID.
func (s *AuditService) List(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error) {
	if limit <= 0 || limit > maxAuditLimit {
		limit = defaultAuditLimit
	}
	return s.repomanager.Audit(s.db).ListByUser(ctx, userID, limit)
}
