// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/starford/kadisync/internal/api"
	"github.com/starford/kadisync/internal/index"
	"github.com/starford/kadisync/internal/kadi"
	"github.com/starford/kadisync/internal/settings"
	"github.com/starford/kadisync/internal/sse"
	"github.com/starford/kadisync/internal/storage"
	"github.com/starford/kadisync/internal/syncengine"
	"github.com/starford/kadisync/internal/vault"
)

// App is the sync engine wired to its vault, ledger, settings and remote client.
type App struct {
	Config   *Config
	Logger   *slog.Logger
	Store    *storage.FS
	Vault    *vault.Vault
	DB       *index.DB
	Settings *settings.Store
	Kadi     *kadi.Provider
	Engine   *syncengine.Engine

	closers []io.Closer
}

// Open initializes logging, storage, the ledger and the engine.
func Open(opts ...Option) (*App, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config
	a := &App{Config: cfg}

	// Initialize structured JSON logger. The level drops to debug while the
	// debugMode setting is on.
	level := new(slog.LevelVar)
	level.Set(cfg.App.LogLevel)
	out := app.logOutput
	if cfg.App.LogFile != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.App.LogFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		a.closers = append(a.closers, rotated)
		out = io.MultiWriter(out, rotated)
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	a.Logger = logger

	logger.Info("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("settings_path", cfg.Settings.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		a.Close()
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	a.Store = store
	a.Vault = vault.New(store, cfg.Vault.Name)

	// Initialize SQLite ledger.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init index: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db)

	// Settings and the remote client built from them.
	st, err := settings.Open(cfg.Settings.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init settings: %w", err)
	}
	a.Settings = st
	applyDebug := func(s settings.Settings) {
		if s.DebugMode {
			level.Set(slog.LevelDebug)
		} else {
			level.Set(cfg.App.LogLevel)
		}
	}
	applyDebug(st.Get())

	a.Kadi = kadi.NewProvider(st.Get().ClientOptions())
	st.OnChange(func(s settings.Settings) {
		a.Kadi.Reconfigure(s.ClientOptions())
		applyDebug(s)
		logger.Info("settings saved", slog.Bool("configured", s.Configured()))
	})

	engineOpts := []syncengine.Option{
		syncengine.WithLogger(logger),
		syncengine.WithObserver(db),
	}
	if app.notifier != nil {
		engineOpts = append(engineOpts, syncengine.WithNotifier(app.notifier))
	}
	for _, r := range app.reporters {
		engineOpts = append(engineOpts, syncengine.WithReporter(r))
	}
	a.Engine = syncengine.New(a.Vault, syncengine.ProviderSource(a.Kadi), st, engineOpts...)

	// Bring the ledger up to date with the vault.
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	return a, nil
}

// Close releases the ledger and the log file.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Run starts the HTTP server, the vault watcher and auto-sync.
func Run(ctx context.Context, opts ...Option) error {
	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	a, err := Open(append(opts, WithReporter(broker))...)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.Config
	logger := a.Logger

	// Build API handler and router.
	h := api.NewHandler(a.Engine, a.Vault, a.DB, a.Settings)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := a.DB.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	autoSync := syncengine.NewAutoSync(a.Engine, syncengine.DefaultAutoSyncDelay)
	g.Go(func() error {
		return autoSync.Run(gCtx)
	})

	// Start file watcher; every change reaches the browsers and auto-sync.
	g.Go(func() error {
		return index.Watch(gCtx, a.DB, a.Store, logger, func(kind, path string) {
			broker.PublishNoteEvent(kind, path)
			autoSync.Saved(kind, path)
		})
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher and auto-sync stop with the
// HTTP server.
var errShutdown = errors.New("shutdown")
