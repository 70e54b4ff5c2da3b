package api

import (
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultResolveRPS   = 25
	defaultResolveBurst = 50
)

// RouterOption configures the behaviour of NewRouter.
type RouterOption func(*routerConfig)

// WithLogging controls whether access logs are emitted.
func WithLogging(enabled bool) RouterOption {
	return func(cfg *routerConfig) {
		cfg.enableLogging = enabled
	}
}

// WithRateLimit sets the token bucket guarding POST /api/resolve. A zero rate
// or burst disables it. Reads of the active configuration are never limited.
func WithRateLimit(ratePerSecond float64, burst int) RouterOption {
	return func(cfg *routerConfig) {
		if ratePerSecond <= 0 || burst <= 0 {
			cfg.resolveLimiter = nil
			return
		}
		cfg.resolveLimiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
}

// WithRateLimiter replaces the resolve limiter (primarily for tests).
func WithRateLimiter(limiter rateLimiter) RouterOption {
	return func(cfg *routerConfig) {
		cfg.resolveLimiter = limiter
	}
}

type routerConfig struct {
	enableLogging  bool
	resolveLimiter rateLimiter
}

// NewRouter creates the inspection API router.
//
// Every response carries X-Request-ID and, once a configuration is active,
// X-Config-Revision. Access log lines record the active revision and
// fingerprint together with how a rejected document was classified.
func NewRouter(handler *Handler, logger *zap.Logger, opts ...RouterOption) http.Handler {
	cfg := routerConfig{
		enableLogging:  true,
		resolveLimiter: rate.NewLimiter(defaultResolveRPS, defaultResolveBurst),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handler.handleHealth)
	mux.HandleFunc("GET /api/config", handler.handleGetConfig)
	mux.Handle("POST /api/resolve", limitResolves(cfg.resolveLimiter, http.HandlerFunc(handler.handleResolve)))

	var root http.Handler = mux
	root = stampRevision(handler.storage, root)
	root = recoverPanics(logger, root)
	if cfg.enableLogging {
		root = logRequests(logger, handler.storage, root)
	}
	return withRequestID(root)
}
