// Package server wires the vault server together: configuration, the
// Postgres store and its migrations, the services, the REST and gRPC
// transports and the background emergency sweep.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/passport/internal/breach"
	"github.com/dmitrijs2005/passport/internal/cryptox"
	"github.com/dmitrijs2005/passport/internal/logging"
	"github.com/dmitrijs2005/passport/internal/platform"
	"github.com/dmitrijs2005/passport/internal/server/config"
	"github.com/dmitrijs2005/passport/internal/server/httpapi"
	"github.com/dmitrijs2005/passport/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/passport/internal/server/services"

	gs "github.com/dmitrijs2005/passport/internal/server/grpc"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// Sweeper releases emergency grants whose wait period has elapsed.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	deps      httpapi.Deps
	emergency Sweeper
}

// newFieldEncryptor prefers the explicit field key and falls back to one
// derived from the master key.
func newFieldEncryptor(c *config.Config) (*cryptox.FieldEncryptor, error) {
	key := c.FieldEncryptionKey
	if key == "" {
		derived, err := cryptox.FieldKeyFromMaster(c.MasterKey)
		if err != nil {
			return nil, err
		}
		key = derived
	}
	return cryptox.NewFieldEncryptor(key)
}

func NewApp(c *config.Config) (*App, error) {

	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	if err := platform.DisableCoreDumps(); err != nil {
		logger.Warn(context.Background(), "could not disable core dumps", "error", err)
	}

	fields, err := newFieldEncryptor(c)
	if err != nil {
		return nil, fmt.Errorf("field encryption: %w", err)
	}

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	checker := breach.NewChecker(c.HIBPBaseURL, c.HIBPAPIKey, c.HIBPTimeout, logger)
	audit := services.NewAuditService(db, rm, logger)
	vault := services.NewVaultService(db, rm, fields, checker, logger)
	emergency := services.NewEmergencyService(db, rm, vault, audit,
		services.LogNotifier{Logger: logger}, c.EmergencyAutoGrant, logger)

	deps := httpapi.Deps{
		Users:     services.NewUserService(db, rm, c, fields, audit, logger),
		Vault:     vault,
		Sharing:   services.NewSharingService(db, rm, vault, audit, logger),
		Emergency: emergency,
		APIKeys:   services.NewAPIKeyService(db, rm, audit, logger),
		Blobs:     services.NewVaultBlobService(db, rm, c),
		Audit:     audit,
	}

	return &App{config: c, logger: logger, db: db, deps: deps, emergency: emergency}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.deps, httpapi.Options{
		JWTSecret:     app.config.SecretKey,
		AuthRateLimit: app.config.AuthRateLimit,
		AuthRateBurst: app.config.AuthRateBurst,
	}, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.db)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// runSweeper calls Sweep every interval until ctx is done. Errors are logged
// and the loop keeps going.
func runSweeper(ctx context.Context, s Sweeper, interval time.Duration, l logging.Logger) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				l.Error(ctx, "emergency sweep failed", "error", err)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		if app.config.EmergencyAutoGrant {
			runSweeper(ctx, app.emergency, app.config.EmergencySweepInterval, app.logger)
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
