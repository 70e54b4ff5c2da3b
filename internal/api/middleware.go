package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/bundlecfg/internal/storage"
)

type contextKey string

const (
	requestIDContextKey contextKey = "requestID"
	outcomeContextKey   contextKey = "outcome"
)

// Outcomes recorded for rejected requests.
const (
	outcomeUnknownField = "unknown_field"
	outcomeMalformed    = "malformed_config"
	outcomeInvalid      = "invalid_config"
	outcomeTooLarge     = "document_too_large"
	outcomeNotLoaded    = "not_loaded"
	outcomeRateLimited  = "rate_limited"
)

type rateLimiter interface {
	Allow() bool
}

// outcome is filled in by handlers and read back by logRequests.
type outcome struct {
	value string
}

func markOutcome(ctx context.Context, value string) {
	if o, ok := ctx.Value(outcomeContextKey).(*outcome); ok {
		o.value = value
	}
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(contextWithRequestID(r.Context(), id)))
	})
}

// stampRevision tells clients which configuration revision answered them, so
// a reload between two calls is visible.
func stampRevision(store storage.Storage, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if snap, err := store.Current(); err == nil {
			w.Header().Set("X-Config-Revision", strconv.FormatUint(snap.Revision, 10))
		}
		next.ServeHTTP(w, r)
	})
}

func logRequests(logger *zap.Logger, store storage.Storage, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var result outcome
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), outcomeContextKey, &result)))

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", requestIDFromContext(r.Context())),
		}
		if snap, err := store.Current(); err == nil {
			fields = append(fields,
				zap.Uint64("config_revision", snap.Revision),
				zap.String("config_fingerprint", snap.Fingerprint),
			)
		}
		if result.value != "" {
			fields = append(fields, zap.String("outcome", result.value))
		}

		if rec.status >= http.StatusBadRequest {
			logger.Warn("request rejected", fields...)
			return
		}
		logger.Info("request completed", fields...)
	})
}

func recoverPanics(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered",
					zap.Any("error", rec),
					zap.String("path", r.URL.Path),
					zap.String("request_id", requestIDFromContext(r.Context())),
				)
				writeError(w, http.StatusInternalServerError, "Internal error", "unexpected server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// limitResolves throttles ad-hoc resolution; a nil limiter disables it.
func limitResolves(limiter rateLimiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			markOutcome(r.Context(), outcomeRateLimited)
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "Too many requests", "resolve rate limit exceeded, please retry shortly")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func newRequestID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return hex.EncodeToString(buf)
}

func contextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
