// Package api is the HTTP surface of the mirror: level data endpoints, the
// viewer websocket, Prometheus metrics and the viewer's static files.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/spc-dev/spc/pkg/level"
	"github.com/spc-dev/spc/pkg/state"
)

// LevelStore reads and writes the payload embedded in the active level.
// Implementations run the calls on the host's turn.
type LevelStore interface {
	// LevelLoaded reports whether a level is being played or edited.
	LevelLoaded(ctx context.Context) (bool, error)

	// ReadLevelData returns state.ErrNoLevel without a level and
	// level.ErrNoPayload when the level carries no payload.
	ReadLevelData(ctx context.Context) (*level.Data, error)

	// WriteLevelData embeds d into the active level.
	WriteLevelData(ctx context.Context, d *level.Data) error
}

// Options wires the optional parts of the router. Nil handlers leave their
// routes unregistered.
type Options struct {
	// WebSocket serves viewer connections at /ws.
	WebSocket http.Handler

	// Metrics serves /metrics.
	Metrics http.Handler

	// Static serves every other GET path.
	Static http.Handler

	// Middleware is applied after the built-in stack, in order.
	Middleware []func(http.Handler) http.Handler

	// MaxBodyBytes bounds POST bodies. Default 8 MiB.
	MaxBodyBytes int64

	Logger *slog.Logger
}

const defaultMaxBodyBytes = 8 << 20

// NewRouter builds the chi router.
func NewRouter(store LevelStore, opts Options) chi.Router {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{
		store:   store,
		maxBody: opts.MaxBodyBytes,
		logger:  logger.With("component", "api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(CORS)
	for _, mw := range opts.Middleware {
		r.Use(mw)
	}

	r.Route("/api/leveldata", func(r chi.Router) {
		r.Get("/get", h.getLevelData)
		r.Post("/load", h.loadLevelData)
	})

	if opts.WebSocket != nil {
		r.Handle("/ws", opts.WebSocket)
	}
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}
	if opts.Static != nil {
		r.Handle("/*", opts.Static)
	}
	return r
}

type handlers struct {
	store   LevelStore
	maxBody int64
	logger  *slog.Logger
}

func (h *handlers) getLevelData(w http.ResponseWriter, r *http.Request) {
	d, err := h.store.ReadLevelData(r.Context())
	switch {
	case errors.Is(err, state.ErrNoLevel):
		writeError(w, http.StatusNotFound, "No level loaded")
		return
	case errors.Is(err, level.ErrNoPayload):
		writeError(w, http.StatusNotFound, "No level data found")
		return
	case err != nil:
		h.logger.Warn("read level data failed", "error", err,
			"request_id", middleware.GetReqID(r.Context()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handlers) loadLevelData(w http.ResponseWriter, r *http.Request) {
	loaded, err := h.store.LevelLoaded(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !loaded {
		writeError(w, http.StatusNotFound, "No level loaded")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse level data: %v", err))
		return
	}
	d, err := level.Unmarshal(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse level data: %v", err))
		return
	}

	err = h.store.WriteLevelData(r.Context(), d)
	switch {
	case errors.Is(err, state.ErrNoLevel):
		writeError(w, http.StatusNotFound, "No level loaded")
		return
	case err != nil:
		h.logger.Warn("write level data failed", "error", err,
			"request_id", middleware.GetReqID(r.Context()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if d.IsEmpty() {
		h.logger.Info("level data cleared")
	} else {
		h.logger.Info("level data loaded", "segments", d.Spline.Length(),
			"object_models", len(d.ObjectModels))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "Level data loaded successfully"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
