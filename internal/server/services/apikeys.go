package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/passport/internal/common"
	"github.com/dmitrijs2005/passport/internal/cryptox"
	"github.com/dmitrijs2005/passport/internal/logging"
	"github.com/dmitrijs2005/passport/internal/server/models"
	"github.com/dmitrijs2005/passport/internal/server/repositories/repomanager"
)

const (
	apiKeyScheme    = "pp"
	apiKeyPrefixLen = 4  // bytes, 8 hex chars
	apiKeySecretLen = 24 // bytes
	createAttempts  = 3
)

// NewAPIKey is returned once, at creation. Key is never stored.
type NewAPIKey struct {
	*models.APIKey
	Key string `json:"key"`
}

// APIKeyService issues and verifies API keys of the form pp_<prefix>_<secret>.
// The prefix is stored in clear for lookup; the full key only as an
// argon2id hash.
type APIKeyService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	audit       *AuditService
	logger      logging.Logger
	argon       cryptox.ArgonParams
	now         func() time.Time
}

func NewAPIKeyService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditService, l logging.Logger) *APIKeyService {
	return &APIKeyService{
		db:          db,
		repomanager: m,
		audit:       audit,
		logger:      l.With("module", "api_keys"),
		argon:       cryptox.DefaultArgon,
		now:         time.Now,
	}
}

func apiKeyResource(id string) string { return "api_key:" + id }

// Create issues a key for userID. A zero expiresIn means the key never expires.
func (s *APIKeyService) Create(ctx context.Context, userID, name string, expiresIn time.Duration) (*NewAPIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrorValidation)
	}
	if expiresIn < 0 {
		return nil, fmt.Errorf("%w: expiry must not be negative", common.ErrorValidation)
	}
	var expiresAt *time.Time
	if expiresIn > 0 {
		t := s.now().Add(expiresIn)
		expiresAt = &t
	}

	for range createAttempts {
		prefix, err := common.MakeRandHexString(apiKeyPrefixLen)
		if err != nil {
			return nil, common.ErrorInternal
		}
		secret, err := common.MakeRandHexString(apiKeySecretLen)
		if err != nil {
			return nil, common.ErrorInternal
		}
		key := apiKeyScheme + "_" + prefix + "_" + secret
		hash, err := cryptox.HashAPIKey(s.argon, key)
		if err != nil {
			return nil, common.ErrorInternal
		}

		k, err := s.repomanager.APIKeys(s.db).Create(ctx, &models.APIKey{
			UserID:    userID,
			Name:      name,
			Prefix:    prefix,
			KeyHash:   hash,
			ExpiresAt: expiresAt,
		})
		if errors.Is(err, common.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.audit.Record(ctx, userID, ActionAPIKeyCreated, apiKeyResource(k.ID), true, map[string]any{"name": name})
		return &NewAPIKey{APIKey: k, Key: key}, nil
	}
	return nil, common.ErrorInternal
}

// Authenticate resolves a presented key to its user. Any failure is
// reported as common.ErrorUnauthorized.
func (s *APIKeyService) Authenticate(ctx context.Context, key string) (string, error) {
	parts := strings.Split(key, "_")
	if len(parts) != 3 || parts[0] != apiKeyScheme || parts[1] == "" || parts[2] == "" {
		return "", common.ErrorUnauthorized
	}
	repo := s.repomanager.APIKeys(s.db)
	k, err := repo.GetByPrefix(ctx, parts[1])
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "api key lookup failed", "error", err)
		}
		return "", common.ErrorUnauthorized
	}
	ok, err := cryptox.VerifyAPIKey(key, k.KeyHash)
	if err != nil || !ok {
		return "", common.ErrorUnauthorized
	}
	now := s.now()
	if !k.Usable(now) {
		return "", common.ErrorUnauthorized
	}
	if err := repo.TouchLastUsed(ctx, k.ID, now); err != nil {
		s.logger.Warn(ctx, "failed to record api key use", "key_id", k.ID, "error", err)
	}
	return k.UserID, nil
}

func (s *APIKeyService) List(ctx context.Context, userID string) ([]*models.APIKey, error) {
	return s.repomanager.APIKeys(s.db).ListByUser(ctx, userID)
}

func (s *APIKeyService) Revoke(ctx context.Context, userID, id string) error {
	if err := s.repomanager.APIKeys(s.db).Revoke(ctx, userID, id, s.now()); err != nil {
		return err
	}
	s.audit.Record(ctx, userID, ActionAPIKeyRevoked, apiKeyResource(id), true, nil)
	return nil
}
