// Package httpapi is the REST transport of the vault server. Every route
// lives under /api/v1 and speaks JSON; errors come back as {"detail": ...}.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/passport/internal/breach"
	"github.com/dmitrijs2005/passport/internal/cryptox"
	"github.com/dmitrijs2005/passport/internal/logging"
	"github.com/dmitrijs2005/passport/internal/passwords"
	"github.com/dmitrijs2005/passport/internal/server/models"
	"github.com/dmitrijs2005/passport/internal/server/services"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

const (
	shutdownTimeout = 10 * time.Second
	limiterTTL      = 10 * time.Minute
)

type Users interface {
	Register(ctx context.Context, email, username, password, masterPassword string) (*models.User, error)
	Login(ctx context.Context, email, password, totpCode string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, userID, refreshToken string) error
	Me(ctx context.Context, userID string) (*models.User, error)
	UnlockVault(ctx context.Context, userID, masterPassword string) (cryptox.VaultKey, []byte, error)
	ChangeMasterPassword(ctx context.Context, userID, current, next string) error
	SetupTOTP(ctx context.Context, userID string) (*services.TOTPSetup, error)
	EnableTOTP(ctx context.Context, userID, code string) error
	DisableTOTP(ctx context.Context, userID, code string) error
}

type Vault interface {
	Create(ctx context.Context, userID string, in services.ItemInput) (*models.Item, error)
	List(ctx context.Context, userID string, f models.PasswordFilter) ([]*models.PasswordListItem, error)
	Get(ctx context.Context, userID, id string) (*models.Item, error)
	Update(ctx context.Context, userID, id string, p services.ItemPatch) (*models.Item, error)
	Delete(ctx context.Context, userID, id string) error
	History(ctx context.Context, userID, id string) ([]*services.HistoryEntry, error)
	Rotate(ctx context.Context, userID, id string, opts passwords.Options) (*models.Item, error)
	DueForRotation(ctx context.Context, userID string) ([]*models.PasswordListItem, error)
	CheckBreach(ctx context.Context, userID, id string) (breach.Result, error)
	CheckPassword(ctx context.Context, password string) (breach.Result, error)
}

type Sharing interface {
	Share(ctx context.Context, actorID, passwordID, granteeEmail string, caps models.Capabilities) (*models.Share, error)
	Accept(ctx context.Context, userID, shareID string) (*models.Share, error)
	Reject(ctx context.Context, userID, shareID string) (*models.Share, error)
	Revoke(ctx context.Context, userID, shareID string) (*models.Share, error)
	ListSharedByMe(ctx context.Context, userID string) ([]*models.Share, error)
	ListSharedWithMe(ctx context.Context, userID string) ([]*models.Share, error)
	GetSharedItem(ctx context.Context, userID, shareID string) (*models.Item, error)
}

type Emergency interface {
	Create(ctx context.Context, grantorID, granteeEmail string, waitHours int, level models.AccessLevel) (*models.EmergencyAccess, error)
	Activate(ctx context.Context, grantorID, id string) (*models.EmergencyAccess, error)
	Request(ctx context.Context, granteeID, id string) (*models.EmergencyAccess, error)
	Approve(ctx context.Context, grantorID, id string) (*models.EmergencyAccess, error)
	Reject(ctx context.Context, grantorID, id string) (*models.EmergencyAccess, error)
	Revoke(ctx context.Context, grantorID, id string) error
	ListAsGrantor(ctx context.Context, userID string) ([]*models.EmergencyAccess, error)
	ListAsGrantee(ctx context.Context, userID string) ([]*models.EmergencyAccess, error)
	AccessVault(ctx context.Context, granteeID, id string) (*services.EmergencyVault, error)
}

type APIKeys interface {
	Create(ctx context.Context, userID, name string, expiresIn time.Duration) (*services.NewAPIKey, error)
	Authenticate(ctx context.Context, key string) (string, error)
	List(ctx context.Context, userID string) ([]*models.APIKey, error)
	Revoke(ctx context.Context, userID, id string) error
}

type VaultBlobs interface {
	UploadURL(ctx context.Context, userID string) (*models.BlobUploadTask, error)
	ConfirmUpload(ctx context.Context, userID string, version int64) error
	DownloadURL(ctx context.Context, userID string) (*services.BlobDownload, error)
}

type AuditTrail interface {
	List(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error)
}

// Deps are the services behind the REST API.
type Deps struct {
	Users     Users
	Vault     Vault
	Sharing   Sharing
	Emergency Emergency
	APIKeys   APIKeys
	Blobs     VaultBlobs
	Audit     AuditTrail
}

// Options tune the transport.
type Options struct {
	JWTSecret     string
	AuthRateLimit float64 // requests per second per client IP on /auth
	AuthRateBurst int
}

type Server struct {
	address   string
	deps      Deps
	logger    logging.Logger
	jwtSecret []byte
	limiter   *multiLimiter
}

func NewServer(address string, deps Deps, opts Options, l logging.Logger) *Server {
	s := &Server{
		address:   address,
		deps:      deps,
		logger:    l.With("module", "http_server"),
		jwtSecret: []byte(opts.JWTSecret),
	}
	if opts.AuthRateLimit > 0 {
		burst := opts.AuthRateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = newMultiLimiter(rate.Limit(opts.AuthRateLimit), burst, limiterTTL)
	}
	return s
}

// Handler returns the full route tree.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.withClientInfo, s.logRequests)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	pub := api.PathPrefix("/auth").Subrouter()
	if s.limiter != nil {
		pub.Use(s.limiter.middleware)
	}
	pub.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	pub.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	pub.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	pub.Handle("/logout", s.authenticate(http.HandlerFunc(s.handleLogout))).Methods(http.MethodPost)

	priv := api.NewRoute().Subrouter()
	priv.Use(s.authenticate)

	priv.HandleFunc("/users/me", s.handleMe).Methods(http.MethodGet)
	priv.HandleFunc("/users/me/unlock", s.handleUnlock).Methods(http.MethodPost)
	priv.HandleFunc("/users/me/master-password", s.handleChangeMaster).Methods(http.MethodPost)
	priv.HandleFunc("/users/me/totp/setup", s.handleTOTPSetup).Methods(http.MethodPost)
	priv.HandleFunc("/users/me/totp/enable", s.handleTOTPEnable).Methods(http.MethodPost)
	priv.HandleFunc("/users/me/totp/disable", s.handleTOTPDisable).Methods(http.MethodPost)
	priv.HandleFunc("/users/me/audit", s.handleAudit).Methods(http.MethodGet)

	// static paths are registered before /passwords/{id}
	priv.HandleFunc("/passwords/generate", s.handleGenerate).Methods(http.MethodPost)
	priv.HandleFunc("/passwords/analyze", s.handleAnalyze).Methods(http.MethodPost)
	priv.HandleFunc("/passwords/check-breach", s.handleCheckPassword).Methods(http.MethodPost)
	priv.HandleFunc("/passwords/rotation-due", s.handleRotationDue).Methods(http.MethodGet)
	priv.HandleFunc("/passwords", s.handleCreateItem).Methods(http.MethodPost)
	priv.HandleFunc("/passwords", s.handleListItems).Methods(http.MethodGet)
	priv.HandleFunc("/passwords/{id}", s.handleGetItem).Methods(http.MethodGet)
	priv.HandleFunc("/passwords/{id}", s.handleUpdateItem).Methods(http.MethodPut)
	priv.HandleFunc("/passwords/{id}", s.handleDeleteItem).Methods(http.MethodDelete)
	priv.HandleFunc("/passwords/{id}/history", s.handleHistory).Methods(http.MethodGet)
	priv.HandleFunc("/passwords/{id}/check-breach", s.handleCheckItem).Methods(http.MethodPost)
	priv.HandleFunc("/passwords/{id}/rotate", s.handleRotate).Methods(http.MethodPost)

	priv.HandleFunc("/sharing", s.handleShare).Methods(http.MethodPost)
	priv.HandleFunc("/sharing/by-me", s.handleSharedByMe).Methods(http.MethodGet)
	priv.HandleFunc("/sharing/with-me", s.handleSharedWithMe).Methods(http.MethodGet)
	priv.HandleFunc("/sharing/{id}/accept", s.shareStep(s.deps.Sharing.Accept)).Methods(http.MethodPost)
	priv.HandleFunc("/sharing/{id}/reject", s.shareStep(s.deps.Sharing.Reject)).Methods(http.MethodPost)
	priv.HandleFunc("/sharing/{id}/revoke", s.shareStep(s.deps.Sharing.Revoke)).Methods(http.MethodPost)
	priv.HandleFunc("/sharing/{id}/item", s.handleSharedItem).Methods(http.MethodGet)

	priv.HandleFunc("/emergency", s.handleCreateEmergency).Methods(http.MethodPost)
	priv.HandleFunc("/emergency/granted-by-me", s.handleGrantedByMe).Methods(http.MethodGet)
	priv.HandleFunc("/emergency/granted-to-me", s.handleGrantedToMe).Methods(http.MethodGet)
	priv.HandleFunc("/emergency/{id}/activate", s.emergencyStep(s.deps.Emergency.Activate)).Methods(http.MethodPost)
	priv.HandleFunc("/emergency/{id}/request", s.emergencyStep(s.deps.Emergency.Request)).Methods(http.MethodPost)
	priv.HandleFunc("/emergency/{id}/approve", s.emergencyStep(s.deps.Emergency.Approve)).Methods(http.MethodPost)
	priv.HandleFunc("/emergency/{id}/reject", s.emergencyStep(s.deps.Emergency.Reject)).Methods(http.MethodPost)
	priv.HandleFunc("/emergency/{id}", s.handleRevokeEmergency).Methods(http.MethodDelete)
	priv.HandleFunc("/emergency/{id}/vault", s.handleEmergencyVault).Methods(http.MethodGet)

	priv.HandleFunc("/api-keys", s.handleCreateAPIKey).Methods(http.MethodPost)
	priv.HandleFunc("/api-keys", s.handleListAPIKeys).Methods(http.MethodGet)
	priv.HandleFunc("/api-keys/{id}", s.handleRevokeAPIKey).Methods(http.MethodDelete)

	priv.HandleFunc("/vault-blob/upload-url", s.handleUploadURL).Methods(http.MethodPost)
	priv.HandleFunc("/vault-blob/confirm", s.handleConfirmUpload).Methods(http.MethodPost)
	priv.HandleFunc("/vault-blob/download-url", s.handleDownloadURL).Methods(http.MethodGet)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// fail writes err as a JSON error. 5xx causes are logged, never returned.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, detail := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeDetail(w, code, detail)
}
