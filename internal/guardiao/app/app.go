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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/adrisa007/guardiao/internal/guardiao/audit"
	httpapi "github.com/adrisa007/guardiao/internal/guardiao/http"
	"github.com/adrisa007/guardiao/internal/guardiao/metrics"
	"github.com/adrisa007/guardiao/internal/guardiao/notify"
	"github.com/adrisa007/guardiao/internal/guardiao/refresh"
	"github.com/adrisa007/guardiao/internal/guardiao/service"
	"github.com/adrisa007/guardiao/internal/guardiao/store"
	"github.com/adrisa007/guardiao/internal/guardiao/store/drivers/sqlite"
	"github.com/adrisa007/guardiao/pkg/cryptox"
	"github.com/adrisa007/guardiao/pkg/jwtx"
	"github.com/adrisa007/guardiao/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application wires the guardiao API together.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	redis    *redis.Client
	signer   jwtx.Signer
	verifier jwtx.Verifier
	registry refresh.Registry
	notifier notify.Notifier
	recorder *audit.Recorder

	promRegistry *prometheus.Registry
	collector    *metrics.Collector

	tokenService        *service.TokenService
	authService         *service.AuthService
	mfaService          *service.MFAService
	consentService      *service.ConsentService
	catalogService      *service.CatalogService
	dsarService         *service.DSARService
	auditLogService     *service.AuditLogService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application with all dependencies initialized.
// Background workers are not running until Run.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "guardiao",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	signer, verifier, err := InitAuthKeys(cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.signer, app.verifier = signer, verifier

	if err := app.initRefreshRegistry(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initNotifier(); err != nil {
		app.closeBackends()
		return nil, err
	}

	app.initMetrics()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler exposes the fully wired router.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.startWorkers()

	app.logger.Info("guardiao starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.stopWorkers()
			app.closeBackends()
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

// Shutdown drains in-flight requests, flushes pending audit records and
// closes the backends.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down guardiao...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.stopWorkers()

	if err := app.closeBackends(); err != nil {
		return err
	}

	app.logger.Info("guardiao stopped")
	return nil
}

func (app *Application) startWorkers() {
	app.recorder.Start()
	app.housekeepingService.Start()
}

func (app *Application) stopWorkers() {
	app.housekeepingService.Stop()
	app.recorder.Stop()
	if n := app.recorder.Dropped(); n > 0 {
		app.logger.Warn("audit records dropped during run", "count", n)
	}
}

func (app *Application) closeBackends() error {
	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
			errs = append(errs, err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// initDatabase opens the sqlite file and applies migrations.
func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile)
	return nil
}

func (app *Application) initRefreshRegistry() error {
	switch app.cfg.RefreshStore {
	case "memory":
		app.registry = refresh.NewMemoryRegistry()
		app.logger.Warn("refresh tokens kept in memory; sessions end on restart")
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
			DB:       app.cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("failed to connect to redis at %s: %w", app.cfg.RedisAddr, err)
		}
		app.redis = client
		app.registry = refresh.NewRedisRegistry(client)
	default:
		app.registry = refresh.NewSQLRegistry(app.db)
	}
	app.logger.Info("refresh token registry ready", "backend", app.cfg.RefreshStore)
	return nil
}

func (app *Application) initNotifier() error {
	if app.cfg.NotifyDriver != "smtp" {
		app.notifier = notify.LogNotifier{Logger: app.logger}
		return nil
	}
	n, err := notify.NewSMTPNotifier(notify.SMTPConfig{
		Addr:     app.cfg.SMTPAddr,
		Username: app.cfg.SMTPUsername,
		Password: app.cfg.SMTPPassword,
		From:     app.cfg.SMTPFrom,
	})
	if err != nil {
		return fmt.Errorf("failed to configure smtp notifier: %w", err)
	}
	app.notifier = n
	return nil
}

// initMetrics builds the audit recorder and, when enabled, the prometheus
// registry that observes it.
func (app *Application) initMetrics() {
	app.recorder = audit.NewStoreRecorder(app.db, app.logger, app.cfg.AuditBufferSize)

	if !app.cfg.MetricsEnabled {
		return
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.collector = metrics.NewCollector(reg)
	metrics.RegisterAuditQueue(reg, app.recorder.Dropped, app.recorder.Failed, app.recorder.QueueLen)
	app.promRegistry = reg
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	var mc metrics.MetricsCollector = metrics.Nop{}
	if app.collector != nil {
		mc = app.collector
	}

	app.tokenService = &service.TokenService{
		Signer:     app.signer,
		Registry:   app.registry,
		Users:      app.db.Users(),
		Metrics:    mc,
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
	}
	app.authService = &service.AuthService{
		Store:          app.db,
		Hasher:         cryptox.NewHasher(app.cfg.BcryptCost, app.cfg.HashConcurrency),
		Tokens:         app.tokenService,
		Audit:          app.recorder,
		Metrics:        mc,
		TermValidity:   app.cfg.TermValidity,
		BootstrapToken: app.cfg.BootstrapToken,
	}
	app.mfaService = &service.MFAService{
		Store:    app.db,
		Audit:    app.recorder,
		Notifier: app.notifier,
		Metrics:  mc,
		Issuer:   app.cfg.MFAIssuer,
	}
	app.consentService = &service.ConsentService{
		Store:   app.db,
		Audit:   app.recorder,
		Metrics: mc,
	}
	app.catalogService = &service.CatalogService{Store: app.db}
	app.dsarService = &service.DSARService{
		Store:          app.db,
		Audit:          app.recorder,
		Notifier:       app.notifier,
		Metrics:        mc,
		DPOEmail:       app.cfg.DPOEmail,
		AttachmentsDir: app.cfg.AttachmentsDir,
	}
	app.auditLogService = &service.AuditLogService{Store: app.db}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.registry,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.signer,
		app.verifier,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.AuthService = app.authService
	router.MFAService = app.mfaService
	router.ConsentService = app.consentService
	router.CatalogService = app.catalogService
	router.DSARService = app.dsarService
	router.AuditLogService = app.auditLogService
	router.CookieSecure = app.cfg.CookieSecure
	router.RefreshTTL = app.cfg.RefreshTTL
	if app.collector != nil {
		router.Metrics = app.collector
		router.Gatherer = app.promRegistry
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
