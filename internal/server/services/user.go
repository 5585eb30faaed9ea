// Package services contains server-side business logic. Services own
// transactions (dbx.WithTx) and talk to storage only through the
// repomanager, so the same code runs on *sql.DB or inside a transaction.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/passport/internal/common"
	"github.com/dmitrijs2005/passport/internal/cryptox"
	"github.com/dmitrijs2005/passport/internal/dbx"
	"github.com/dmitrijs2005/passport/internal/logging"
	"github.com/dmitrijs2005/passport/internal/passwords"
	"github.com/dmitrijs2005/passport/internal/server/auth"
	"github.com/dmitrijs2005/passport/internal/server/config"
	"github.com/dmitrijs2005/passport/internal/server/models"
	"github.com/dmitrijs2005/passport/internal/server/repositories/repomanager"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const resourceAuth = "authentication"

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TOTPSetup is returned once when a user starts enrolling an authenticator.
type TOTPSetup struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauth_url"`
}

var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// dummyHash is compared against on unknown emails so a miss costs the same
// bcrypt round as a wrong password.
var dummyHash = sync.OnceValue(func() string {
	h, _ := cryptox.HashSecret("passport-timing-equalizer")
	return h
})

// UserService provides account operations:
//   - Register, Login (with lockout and optional TOTP), RefreshToken, Logout
//   - UnlockVault and ChangeMasterPassword for the vault key
//   - SetupTOTP, EnableTOTP, DisableTOTP
type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	fields                       *cryptox.FieldEncryptor
	audit                        *AuditService
	logger                       logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	maxFailedLogins              int
	lockoutDuration              time.Duration
	totpIssuer                   string
	now                          func() time.Time
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config,
	fields *cryptox.FieldEncryptor, audit *AuditService, l logging.Logger) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		fields:                       fields,
		audit:                        audit,
		logger:                       l.With("module", "users"),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		maxFailedLogins:              cfg.MaxFailedLogins,
		lockoutDuration:              cfg.LockoutDuration,
		totpIssuer:                   cfg.TOTPIssuer,
		now:                          time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user. Both the login and the master password must meet
// the account password policy. The vault salt is generated here and never again.
func (s *UserService) Register(ctx context.Context, email, username, password, masterPassword string) (*models.User, error) {
	email = normalizeEmail(email)
	username = strings.TrimSpace(username)
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email", common.ErrorValidation)
	}
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", common.ErrorValidation)
	}
	if err := passwords.CheckPolicy(password); err != nil {
		return nil, err
	}
	if err := passwords.CheckPolicy(masterPassword); err != nil {
		return nil, fmt.Errorf("master %w", err)
	}
	if password == masterPassword {
		return nil, fmt.Errorf("%w: master password must differ from the login password", common.ErrorValidation)
	}

	loginHash, err := cryptox.HashSecret(password)
	if err != nil {
		return nil, common.ErrorInternal
	}
	masterHash, err := cryptox.HashSecret(masterPassword)
	if err != nil {
		return nil, common.ErrorInternal
	}
	salt, err := cryptox.NewVaultSalt()
	if err != nil {
		return nil, common.ErrorInternal
	}

	u, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Email:              email,
		UserName:           username,
		PasswordHash:       loginHash,
		MasterPasswordHash: masterHash,
		VaultSalt:          salt,
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	s.audit.Record(ctx, u.ID, ActionRegister, "user:"+u.ID, true, nil)
	return u, nil
}

// Login verifies credentials and, on success, issues a TokenPair. Every
// rejection is reported as common.ErrorUnauthorized; the audit trail keeps
// the actual reason.
func (s *UserService) Login(ctx context.Context, email, password, totpCode string) (*TokenPair, error) {
	now := s.now()
	email = normalizeEmail(email)

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			cryptox.CheckSecret(dummyHash(), password)
			s.audit.Record(ctx, "", ActionLoginFailed, resourceAuth, false,
				map[string]any{"email": email, "reason": "user_not_found"})
			return nil, common.ErrorUnauthorized
		}
		s.logger.Error(ctx, "login lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	if user.Locked(now) {
		s.audit.Record(ctx, user.ID, ActionLoginFailed, resourceAuth, false,
			map[string]any{"email": email, "reason": "account_locked"})
		return nil, common.ErrorUnauthorized
	}
	if !cryptox.CheckSecret(user.PasswordHash, password) {
		return nil, s.loginFailed(ctx, user, now, "invalid_password")
	}
	if user.TOTPEnabled {
		ok, err := s.checkTOTP(user, totpCode, now)
		if err != nil {
			s.logger.Error(ctx, "totp check failed", "user_id", user.ID, "error", err)
			return nil, common.ErrorInternal
		}
		if !ok {
			return nil, s.loginFailed(ctx, user, now, "invalid_mfa")
		}
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).UpdateLoginState(ctx, user.ID, 0, nil, &now); err != nil {
			return err
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, user.ID, tx)
		return genErr
	}); err != nil {
		s.logger.Error(ctx, "login failed to persist session", "user_id", user.ID, "error", err)
		return nil, common.ErrorInternal
	}

	s.audit.Record(ctx, user.ID, ActionLoginSuccess, resourceAuth, true, map[string]any{"email": email})
	s.logger.Info(ctx, "user authenticated", "user_id", user.ID)
	return pair, nil
}

// loginFailed bumps the failure counter and starts a lockout window once it
// reaches the limit. The counter restarts after a lockout.
func (s *UserService) loginFailed(ctx context.Context, user *models.User, now time.Time, reason string) error {
	attempts := user.FailedLoginAttempts + 1
	var lockedUntil *time.Time
	if s.maxFailedLogins > 0 && attempts >= s.maxFailedLogins {
		t := now.Add(s.lockoutDuration)
		lockedUntil = &t
		attempts = 0
	}
	if err := s.repomanager.Users(s.db).UpdateLoginState(ctx, user.ID, attempts, lockedUntil, nil); err != nil {
		s.logger.Error(ctx, "failed to update login state", "user_id", user.ID, "error", err)
	}
	details := map[string]any{"email": user.Email, "reason": reason}
	if lockedUntil != nil {
		details["locked_until"] = lockedUntil.UTC().Format(time.RFC3339)
		s.logger.Warn(ctx, "account locked", "user_id", user.ID, "until", *lockedUntil)
	}
	s.audit.Record(ctx, user.ID, ActionLoginFailed, resourceAuth, false, details)
	return common.ErrorUnauthorized
}

// RefreshToken validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. Expired tokens yield ErrRefreshTokenExpired.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	repo := s.repomanager.Sessions(s.db)

	session, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if session.ExpiresAt.Before(s.now()) {
		if err := repo.Delete(ctx, refreshToken); err != nil {
			s.logger.Warn(ctx, "failed to drop expired session", "error", err)
		}
		return nil, common.ErrRefreshTokenExpired
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Sessions(tx).Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, session.UserID, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout drops one session, or every session of the user when refreshToken
// is empty. A token that belongs to someone else is ignored.
func (s *UserService) Logout(ctx context.Context, userID, refreshToken string) error {
	repo := s.repomanager.Sessions(s.db)
	if refreshToken == "" {
		if err := repo.DeleteForUser(ctx, userID); err != nil {
			return err
		}
	} else {
		session, err := repo.Find(ctx, refreshToken)
		switch {
		case errors.Is(err, common.ErrorNotFound):
			return nil
		case err != nil:
			return err
		case session.UserID != userID:
			return nil
		}
		if err := repo.Delete(ctx, refreshToken); err != nil {
			return err
		}
	}
	s.audit.Record(ctx, userID, ActionLogout, resourceAuth, true, nil)
	return nil
}

// Me returns the caller's account.
func (s *UserService) Me(ctx context.Context, userID string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, userID)
}

// UnlockVault verifies the master password and derives the vault key. Both
// steps must succeed; a wrong master password yields common.ErrorUnauthorized.
func (s *UserService) UnlockVault(ctx context.Context, userID, masterPassword string) (cryptox.VaultKey, []byte, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return cryptox.VaultKey{}, nil, err
	}
	if !cryptox.CheckSecret(user.MasterPasswordHash, masterPassword) {
		s.audit.Record(ctx, userID, ActionVaultUnlock, "vault", false, map[string]any{"reason": "invalid_master_password"})
		return cryptox.VaultKey{}, nil, common.ErrorUnauthorized
	}
	key := cryptox.DeriveVaultKey(masterPassword, user.VaultSalt)
	s.audit.Record(ctx, userID, ActionVaultUnlock, "vault", true, nil)
	return key, user.VaultSalt, nil
}

// ChangeMasterPassword replaces the master password hash. The vault salt is
// left untouched; the client re-seals its vault blob under the new key.
func (s *UserService) ChangeMasterPassword(ctx context.Context, userID, current, next string) error {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !cryptox.CheckSecret(user.MasterPasswordHash, current) {
		s.audit.Record(ctx, userID, ActionMasterPasswordChange, "vault", false, nil)
		return common.ErrorUnauthorized
	}
	if err := passwords.CheckPolicy(next); err != nil {
		return err
	}
	hash, err := cryptox.HashSecret(next)
	if err != nil {
		return common.ErrorInternal
	}
	if err := repo.UpdateMasterPasswordHash(ctx, userID, hash); err != nil {
		return err
	}
	s.audit.Record(ctx, userID, ActionMasterPasswordChange, "vault", true, nil)
	return nil
}

// SetupTOTP generates a new authenticator secret and stores it encrypted but
// not yet enabled. EnableTOTP must confirm a code before logins require it.
func (s *UserService) SetupTOTP(ctx context.Context, userID string) (*TOTPSetup, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TOTPEnabled {
		return nil, fmt.Errorf("%w: two-factor authentication is already enabled", common.ErrConflict)
	}
	key, err := totp.Generate(totp.GenerateOpts{Issuer: s.totpIssuer, AccountName: user.Email})
	if err != nil {
		return nil, common.ErrorInternal
	}
	enc, err := s.fields.Encrypt(key.Secret())
	if err != nil {
		return nil, common.ErrorInternal
	}
	if err := repo.UpdateTOTP(ctx, userID, enc, false); err != nil {
		return nil, err
	}
	return &TOTPSetup{Secret: key.Secret(), URL: key.URL()}, nil
}

// EnableTOTP turns on two-factor login after the user proves possession of
// the secret from SetupTOTP.
func (s *UserService) EnableTOTP(ctx context.Context, userID, code string) error {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.TOTPSecret == nil {
		return fmt.Errorf("%w: two-factor authentication is not set up", common.ErrorValidation)
	}
	ok, err := s.checkTOTP(user, code, s.now())
	if err != nil {
		return err
	}
	if !ok {
		s.audit.Record(ctx, userID, ActionTOTPEnabled, resourceAuth, false, nil)
		return common.ErrorUnauthorized
	}
	if err := repo.UpdateTOTP(ctx, userID, user.TOTPSecret, true); err != nil {
		return err
	}
	s.audit.Record(ctx, userID, ActionTOTPEnabled, resourceAuth, true, nil)
	return nil
}

// DisableTOTP turns off two-factor login and forgets the secret.
func (s *UserService) DisableTOTP(ctx context.Context, userID, code string) error {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TOTPEnabled {
		return fmt.Errorf("%w: two-factor authentication is not enabled", common.ErrorValidation)
	}
	ok, err := s.checkTOTP(user, code, s.now())
	if err != nil {
		return err
	}
	if !ok {
		s.audit.Record(ctx, userID, ActionTOTPDisabled, resourceAuth, false, nil)
		return common.ErrorUnauthorized
	}
	if err := repo.UpdateTOTP(ctx, userID, nil, false); err != nil {
		return err
	}
	s.audit.Record(ctx, userID, ActionTOTPDisabled, resourceAuth, true, nil)
	return nil
}

// --- helpers below ---

func (s *UserService) checkTOTP(user *models.User, code string, now time.Time) (bool, error) {
	if code == "" || user.TOTPSecret == nil {
		return false, nil
	}
	secret, err := s.fields.Decrypt(user.TOTPSecret)
	if err != nil {
		return false, err
	}
	ok, err := totp.ValidateCustom(code, secret, now, totpOpts)
	if err != nil {
		// malformed codes are a plain mismatch
		return false, nil
	}
	return ok, nil
}

func (s *UserService) generateAccessToken(userID string) (string, error) {
	return auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
}

func (s *UserService) generateRefreshToken() (string, error) {
	return common.MakeRandHexString(32)
}

func (s *UserService) generateTokenPair(ctx context.Context, userID string, tx dbx.DBTX) (*TokenPair, error) {
	access, err := s.generateAccessToken(userID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := s.generateRefreshToken()
	if err != nil {
		return nil, common.ErrorInternal
	}
	ci := auth.ClientInfoFromContext(ctx)
	session := &models.Session{
		UserID:    userID,
		Token:     refresh,
		IPAddress: ci.IP,
		UserAgent: ci.UserAgent,
		ExpiresAt: s.now().Add(s.refreshTokenValidityDuration),
	}
	if err := s.repomanager.Sessions(tx).Create(ctx, session); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.accessTokenValidityDuration.Seconds()),
	}, nil
}
