package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/eugenenazirov/bundlecfg/internal/buildconfig"
)

const (
	defaultPort           = "8080"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
	defaultWatchDebounce  = 250 * time.Millisecond
	defaultLogLevel       = "info"
)

// Config aggregates shell settings resolved from multiple sources.
// Precedence: CLI flags > Environment variables > Defaults
type Config struct {
	ConfigFile           string
	WorkingDirectory     string
	Port                 string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
	WatchDebounce        time.Duration
	UnknownFields        buildconfig.UnknownFieldPolicy
	LogLevel             string
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile       *string
	WorkingDirectory *string
	Port             *string
	RateLimitRPS     *float64
	RateLimitBurst   *int
	WatchDebounce    *time.Duration
	UnknownFields    *string
	LogLevel         *string
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > Environment variables > Defaults.
// The working directory is read from the process exactly once, and only when
// neither a flag nor a default supplies it.
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	if overrides != nil {
		if err := applyCLIOverrides(&cfg, overrides); err != nil {
			return Config{}, err
		}
	}

	if cfg.WorkingDirectory == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("read working directory: %w", err)
		}
		cfg.WorkingDirectory = wd
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		WatchDebounce:        defaultWatchDebounce,
		UnknownFields:        buildconfig.UnknownFieldsReject,
		LogLevel:             defaultLogLevel,
	}
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) error {
	if path := strings.TrimSpace(os.Getenv("BUNDLECFG_CONFIG")); path != "" {
		cfg.ConfigFile = path
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Port = port
	}

	if rps := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("BUNDLECFG_WATCH_DEBOUNCE")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parse BUNDLECFG_WATCH_DEBOUNCE: %w", err)
		}
		cfg.WatchDebounce = d
	}

	if policy := strings.TrimSpace(os.Getenv("BUNDLECFG_UNKNOWN_FIELDS")); policy != "" {
		cfg.UnknownFields = buildconfig.UnknownFieldPolicy(policy)
	}

	if level := strings.TrimSpace(os.Getenv("BUNDLECFG_LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}

	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) error {
	if overrides.ConfigFile != nil && *overrides.ConfigFile != "" {
		cfg.ConfigFile = *overrides.ConfigFile
	}

	if overrides.WorkingDirectory != nil && *overrides.WorkingDirectory != "" {
		abs, err := filepath.Abs(*overrides.WorkingDirectory)
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
		cfg.WorkingDirectory = abs
	}

	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	if overrides.WatchDebounce != nil && *overrides.WatchDebounce != 0 {
		cfg.WatchDebounce = *overrides.WatchDebounce
	}

	if overrides.UnknownFields != nil && *overrides.UnknownFields != "" {
		cfg.UnknownFields = buildconfig.UnknownFieldPolicy(*overrides.UnknownFields)
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	return nil
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("port cannot be empty")
	}
	if cfg.RateLimitRPS < 0 || cfg.RateLimitBurst < 0 {
		return errors.New("rate limit values cannot be negative")
	}
	if cfg.WatchDebounce <= 0 {
		return fmt.Errorf("watch debounce must be positive, got %s", cfg.WatchDebounce)
	}
	if _, err := buildconfig.ParseUnknownFieldPolicy(string(cfg.UnknownFields)); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if !filepath.IsAbs(cfg.WorkingDirectory) {
		return fmt.Errorf("working directory must be absolute, got %q", cfg.WorkingDirectory)
	}
	return nil
}
