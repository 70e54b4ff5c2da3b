package application

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/bundlecfg/internal/buildconfig"
	"github.com/eugenenazirov/bundlecfg/internal/config"
)

func TestNewInitializesDependencies(t *testing.T) {
	cfg := baseTestConfig(":8085")
	app, err := New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if app.server == nil || app.router == nil || app.handler == nil || app.resolver == nil {
		t.Fatalf("expected server, router, handler and resolver to be initialized")
	}
	if app.watcher != nil {
		t.Fatalf("expected no watcher without a config file")
	}
	if app.Server() != app.server {
		t.Fatalf("Server accessor did not return underlying instance")
	}
	if app.resolver.Policy() != buildconfig.UnknownFieldsWarn {
		t.Fatalf("expected resolver to use configured policy, got %q", app.resolver.Policy())
	}
}

func TestNewServerAppliesConfig(t *testing.T) {
	cfg := baseTestConfig("9090")
	handler := http.NewServeMux()

	server := NewServer(cfg, handler)
	if server.Addr != ":9090" {
		t.Fatalf("expected address :9090, got %s", server.Addr)
	}
	if server.Handler != handler {
		t.Fatalf("expected handler to be applied")
	}
	if server.ReadHeaderTimeout != cfg.ReadHeaderTimeout ||
		server.WriteTimeout != cfg.WriteTimeout ||
		server.IdleTimeout != cfg.IdleTimeout {
		t.Fatalf("server timeouts do not match configuration")
	}
}

func TestLoadWithoutConfigFileResolvesDefaults(t *testing.T) {
	cfg := baseTestConfig(":0")
	app, err := New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if err := app.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	snap, err := app.Storage().Current()
	if err != nil {
		t.Fatalf("Current returned error: %v", err)
	}
	if snap.Config.RootDirectory != cfg.WorkingDirectory || snap.Config.Mode != buildconfig.ModeDevelopment {
		t.Fatalf("unexpected defaults: %+v", snap.Config)
	}

	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /api/config, got %d", rec.Code)
	}
}

func TestLoadWithConfigFileHotReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundler.yaml")
	if err := os.WriteFile(path, []byte("mode: development\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := baseTestConfig(":0")
	cfg.ConfigFile = path
	app, err := New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := app.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	snap, err := app.Storage().Current()
	if err != nil || snap.Config.Mode != buildconfig.ModeDevelopment {
		t.Fatalf("unexpected initial snapshot: %+v, %v", snap, err)
	}

	// An invalid revision must leave the previous snapshot active.
	if err := os.WriteFile(path, []byte("mode: staging\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if snap, _ := app.Storage().Current(); snap.Revision != 1 {
		t.Fatalf("invalid document should not be applied, got revision %d", snap.Revision)
	}

	if err := os.WriteFile(path, []byte("mode: production\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		snap, _ := app.Storage().Current()
		if snap.Config.Mode == buildconfig.ModeProduction {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected production mode after reload")
}

func TestLoadRejectsInvalidInitialDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundler.yaml")
	if err := os.WriteFile(path, []byte("mode: staging\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := baseTestConfig(":0")
	cfg.ConfigFile = path
	app, err := New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	err = app.Load(context.Background())
	if !errors.Is(err, buildconfig.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func baseTestConfig(port string) config.Config {
	return config.Config{
		WorkingDirectory:     "/work/project",
		Port:                 port,
		ShutdownGracePeriod:  50 * time.Millisecond,
		ReadHeaderTimeout:    20 * time.Millisecond,
		WriteTimeout:         30 * time.Millisecond,
		IdleTimeout:          40 * time.Millisecond,
		EnableRequestLogging: false,
		RateLimitRPS:         0,
		RateLimitBurst:       0,
		WatchDebounce:        20 * time.Millisecond,
		UnknownFields:        buildconfig.UnknownFieldsWarn,
		LogLevel:             "info",
	}
}
