package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/mailsig/internal/signature/graph"
	httpapi "github.com/aussiebroadwan/mailsig/internal/signature/http"
	"github.com/aussiebroadwan/mailsig/internal/signature/metrics"
	"github.com/aussiebroadwan/mailsig/internal/signature/security"
	"github.com/aussiebroadwan/mailsig/internal/signature/service"
	"github.com/aussiebroadwan/mailsig/internal/signature/store"
	"github.com/aussiebroadwan/mailsig/internal/signature/store/drivers/sqlite"
	"github.com/aussiebroadwan/mailsig/pkg/cryptox"
	"github.com/aussiebroadwan/mailsig/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the signature service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db        store.Store
	registry  *prometheus.Registry
	collector *metrics.Collector

	sessions     *service.SessionStore
	admin        *service.AdminService
	profiles     *service.ProfileService
	directory    *service.DirectoryService
	assignments  *service.AssignmentService
	render       *service.RenderService
	housekeeping *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialised and any
// bootstrap admin account created.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "signature-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(app.cfg.PepperFile)

	db, err := OpenStore(app.cfg)
	if err != nil {
		return nil, err
	}
	app.db = db
	app.logger.Info("database migrations applied successfully")

	app.initMetrics()

	provider, err := NewDirectoryProvider(app.cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initServices(provider)

	ctx := slogx.WithContext(context.Background(), app.logger)
	created, err := app.admin.EnsureBootstrapAdmin(ctx, cfg.BootstrapAdminUsername, cfg.BootstrapAdminPassword)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to create bootstrap admin: %w", err)
	}
	if created {
		app.logger.Info("bootstrap admin created", "username", cfg.BootstrapAdminUsername)
	}

	app.initHTTP()

	return app, nil
}

// Handler exposes the fully wired router, mainly for tests.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeping.Start()

	app.logger.Info("signature service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"tls", app.cfg.TLSEnabled(),
		"directory", app.cfg.DirectoryConfigured(),
	)

	serverErrors := make(chan error, 1)
	go func() {
		if app.cfg.TLSEnabled() {
			serverErrors <- app.server.ListenAndServeTLS(app.cfg.TLSCertFile, app.cfg.TLSKeyFile)
			return
		}
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.housekeeping.Stop()
		_ = app.db.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down signature service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeping.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("signature service stopped")
	return nil
}

// OpenStore opens the database named by cfg and applies migrations.
func OpenStore(cfg Config) (*sqlite.Store, error) {
	db, err := sqlite.NewStore(sqlite.DSN(cfg.DatabaseFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return db, nil
}

// NewDirectoryProvider returns a Graph client, or nil when no credentials are
// configured.
func NewDirectoryProvider(cfg Config, logger *slog.Logger) (service.DirectoryProvider, error) {
	if !cfg.DirectoryConfigured() {
		logger.Warn("directory credentials not configured, sync disabled")
		return nil, nil
	}

	client, err := graph.NewClient(graph.Config{
		TenantID:          cfg.TenantID,
		ClientID:          cfg.ClientID,
		ClientSecret:      cfg.ClientSecret,
		BaseURL:           cfg.GraphBaseURL,
		LoginURL:          cfg.GraphLoginURL,
		Logger:            logger,
		RequestsPerSecond: cfg.GraphRequestsPerS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize directory client: %w", err)
	}
	return client, nil
}

func (app *Application) initMetrics() {
	if !app.cfg.MetricsEnabled {
		return
	}
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.collector = metrics.NewCollector(app.registry)
}

// recorder avoids handing the services a typed nil when metrics are off.
func (app *Application) recorder() metrics.Recorder {
	if app.collector == nil {
		return nil
	}
	return app.collector
}

func (app *Application) initServices(provider service.DirectoryProvider) {
	sanitizer := security.NewSanitizer()
	rec := app.recorder()

	app.sessions = service.NewSessionStore(app.db, app.cfg.SessionTTL, rec)
	app.admin = service.NewAdminService(app.db, app.sessions)
	app.profiles = service.NewProfileService(app.db, sanitizer)
	app.directory = service.NewDirectoryService(app.db, provider, app.cfg.SyncLimit, rec)
	app.assignments = service.NewAssignmentService(app.db, sanitizer)
	app.render = service.NewRenderService(app.db, rec)

	var directory *service.DirectoryService
	if provider != nil {
		directory = app.directory
	}
	app.housekeeping = service.NewHousekeepingService(
		app.sessions,
		directory,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.SyncInterval,
	)
}

func (app *Application) initHTTP() {
	var gatherer prometheus.Gatherer
	if app.registry != nil {
		gatherer = app.registry
	}

	router := httpapi.NewRouter(BuildVersion, app.db, app.logger, app.collector, gatherer)

	router.Sessions = app.sessions
	router.Admin = app.admin
	router.Profiles = app.profiles
	router.Directory = app.directory
	router.Assignments = app.assignments
	router.Render = app.render
	router.CookieSecure = app.cfg.CookieSecure
	router.DirectoryConfigured = app.cfg.DirectoryConfigured()
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
