// Package runtime assembles the service: configuration, logging, the
// connection manager, the store-backed services, the RPC dispatcher and
// the HTTP stack, plus the lifecycle around them.
package runtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/plusmaps/atlas/internal/api/httpserver"
	"github.com/plusmaps/atlas/internal/app/httpapi"
	"github.com/plusmaps/atlas/internal/app/services/catalog"
	"github.com/plusmaps/atlas/internal/app/services/gate"
	"github.com/plusmaps/atlas/internal/app/storage/postgres"
	"github.com/plusmaps/atlas/internal/app/system"
	"github.com/plusmaps/atlas/internal/config"
	"github.com/plusmaps/atlas/internal/logging"
	"github.com/plusmaps/atlas/internal/middleware"
	"github.com/plusmaps/atlas/internal/platform/database"
	"github.com/plusmaps/atlas/internal/platform/migrations"
	"github.com/plusmaps/atlas/internal/rpc"
	"github.com/plusmaps/atlas/pkg/logger"
)

// Application wires core dependencies and manages the server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	db         *database.Manager
	manager    *system.Manager
	limiter    *middleware.RateLimiter
	httpServer *httpserver.Server
	migrate    bool
}

// LoadConfig resolves the service configuration.
func LoadConfig() (*config.Config, error) {
	return config.Load()
}

// NewApplication constructs the full wiring from cfg. When applyMigrations
// is set, Run brings the schema up to date before serving.
func NewApplication(cfg *config.Config, applyMigrations bool) (*Application, error) {
	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database configuration is required (dsn)")
	}
	db := database.NewManager(cfg.Database, log)

	store := postgres.New(db, log)
	catalogSvc := catalog.New(store, log)
	gateSvc := gate.New(store, log)

	dispatcher := rpc.NewDispatcher(gateSvc, log)
	if err := httpapi.RegisterMethods(dispatcher, catalogSvc); err != nil {
		return nil, fmt.Errorf("register methods: %w", err)
	}

	accessLog := logging.New(log)
	var handler http.Handler = httpapi.NewHandler(dispatcher, db, log)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, accessLog)
		handler = limiter.Handler(handler)
	}
	handler = middleware.NewCORSMiddleware(cfg.CORS.Origins()).Handler(handler)
	handler = middleware.NewTracingMiddleware(accessLog).Handler(handler)

	manager := system.NewManager()
	keepalive := database.NewKeepalive(db, time.Duration(cfg.Database.Keepalive)*time.Second, log)
	if err := manager.Register(keepalive); err != nil {
		return nil, fmt.Errorf("register keepalive: %w", err)
	}

	return &Application{
		cfg:        cfg,
		log:        log,
		db:         db,
		manager:    manager,
		limiter:    limiter,
		httpServer: httpserver.New(cfg.Server, log, handler),
		migrate:    applyMigrations,
	}, nil
}

// Log exposes the application logger for the entrypoint.
func (a *Application) Log() *logger.Logger { return a.log }

// Run connects to the database, applies migrations when requested, starts
// the background services and serves HTTP until ctx is cancelled or the
// server fails.
func (a *Application) Run(ctx context.Context) error {
	retryDelay := time.Duration(a.cfg.Database.ConnectRetryDelay) * time.Second
	if err := a.db.Ensure(ctx, a.cfg.Database.ConnectRetries, retryDelay); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}

	if a.migrate {
		if err := migrations.Apply(a.cfg.Database.DSN, a.log); err != nil {
			return err
		}
	}

	if err := a.manager.Start(ctx); err != nil {
		return err
	}
	if a.limiter != nil {
		a.limiter.StartCleanup(ctx, time.Minute)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr())
		if err := a.httpServer.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown drains the HTTP server, stops background services and releases
// the database handle.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := a.manager.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("error stopping background services")
	}
	if err := a.db.Close(); err != nil {
		a.log.WithError(err).Warn("error closing database connection")
	}
	return nil
}
