package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/eugenenazirov/bundlecfg/internal/buildconfig"
	"github.com/eugenenazirov/bundlecfg/internal/storage"
)

// maxDocumentBytes caps POST /api/resolve bodies.
const maxDocumentBytes = 1 << 20

// Handler wires the resolver and the active configuration into HTTP handlers.
type Handler struct {
	resolver         *buildconfig.Resolver
	storage          storage.Storage
	workingDirectory string

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// NewHandler constructs a Handler. Documents posted to /api/resolve are
// resolved against workingDirectory.
func NewHandler(resolver *buildconfig.Resolver, store storage.Storage, workingDirectory string, opts ...HandlerOption) *Handler {
	h := &Handler{
		resolver:         resolver,
		storage:          store,
		workingDirectory: workingDirectory,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	snap, err := h.storage.Current()
	if err != nil {
		if errors.Is(err, storage.ErrNotLoaded) {
			markOutcome(r.Context(), outcomeNotLoaded)
			writeError(w, http.StatusServiceUnavailable, "Not loaded", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}

	resp := configResponse{
		Revision:    snap.Revision,
		Fingerprint: snap.Fingerprint,
		LoadedAt:    snap.LoadedAt,
		Config:      buildconfig.ToDocument(snap.Config),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			markOutcome(r.Context(), outcomeTooLarge)
			writeError(w, http.StatusRequestEntityTooLarge, "Document too large", err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to read request body")
		return
	}

	cfg, err := h.resolver.ResolveBytes(data, h.workingDirectory)
	if err != nil {
		writeResolveError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resolveResponse{Config: buildconfig.ToDocument(cfg)})
}

func writeResolveError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, buildconfig.ErrUnknownField):
		markOutcome(r.Context(), outcomeUnknownField)
		writeError(w, http.StatusBadRequest, "Unknown field", err.Error(),
			"remove the field or run the server with --unknown-fields=warn")
	case errors.Is(err, buildconfig.ErrMalformedConfig):
		markOutcome(r.Context(), outcomeMalformed)
		writeError(w, http.StatusBadRequest, "Malformed config", err.Error())
	case errors.Is(err, buildconfig.ErrInvalidConfig):
		markOutcome(r.Context(), outcomeInvalid)
		writeError(w, http.StatusUnprocessableEntity, "Invalid config", err.Error())
	default:
		writeInternalError(w, err)
	}
}

type configResponse struct {
	Revision    uint64               `json:"revision"`
	Fingerprint string               `json:"fingerprint"`
	LoadedAt    time.Time            `json:"loadedAt"`
	Config      buildconfig.Document `json:"config"`
}

type resolveResponse struct {
	Config buildconfig.Document `json:"config"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
