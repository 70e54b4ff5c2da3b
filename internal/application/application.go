package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/bundlecfg/internal/api"
	"github.com/eugenenazirov/bundlecfg/internal/buildconfig"
	"github.com/eugenenazirov/bundlecfg/internal/config"
	"github.com/eugenenazirov/bundlecfg/internal/storage"
	"github.com/eugenenazirov/bundlecfg/internal/watch"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	cfg      config.Config
	resolver *buildconfig.Resolver
	storage  *storage.MemoryStorage
	watcher  *watch.Watcher
	handler  *api.Handler
	router   http.Handler
	logger   *zap.Logger
	server   *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	resolver := buildconfig.NewResolver(
		buildconfig.WithLogger(logger),
		buildconfig.WithUnknownFieldPolicy(cfg.UnknownFields),
	)
	store := storage.NewMemoryStorage()

	app := &App{
		cfg:      cfg,
		resolver: resolver,
		storage:  store,
		logger:   logger,
	}

	if cfg.ConfigFile != "" {
		w, err := watch.New(watch.Config{
			FilePath: cfg.ConfigFile,
			Debounce: cfg.WatchDebounce,
		}, app.apply, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create config watcher: %w", err)
		}
		app.watcher = w
	}

	app.handler = api.NewHandler(resolver, store, cfg.WorkingDirectory)
	app.router = api.NewRouter(app.handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)
	app.server = NewServer(cfg, app.router)

	return app, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Load resolves the initial build configuration. With a config file the
// watcher takes over and keeps the snapshot current; without one the empty
// document is resolved once.
func (a *App) Load(ctx context.Context) error {
	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			return fmt.Errorf("load %s: %w", a.cfg.ConfigFile, err)
		}
		return nil
	}
	return a.apply(nil, watch.Fingerprint(nil))
}

// Start loads the configuration and starts the HTTP server in a goroutine.
func (a *App) Start(ctx context.Context) error {
	if err := a.Load(ctx); err != nil {
		return err
	}

	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Close stops watching the configuration document.
func (a *App) Close() error {
	if a.watcher == nil {
		return nil
	}
	return a.watcher.Stop()
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Storage exposes the active configuration to in-process build stages.
func (a *App) Storage() storage.Storage {
	return a.storage
}

// apply resolves a document and swaps it in as the active configuration.
func (a *App) apply(data []byte, fingerprint string) error {
	cfg, err := a.resolver.ResolveBytes(data, a.cfg.WorkingDirectory)
	if err != nil {
		return err
	}
	snap := a.storage.Store(cfg, fingerprint)
	a.logger.Info("build configuration active",
		zap.Uint64("revision", snap.Revision),
		zap.Stringer("mode", cfg.Mode),
		zap.String("root_directory", cfg.RootDirectory),
	)
	return nil
}
