package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	appI18n "github.com/adiatmad/xlsformbuilderku/internal/i18n"
	"github.com/adiatmad/xlsformbuilderku/internal/metrics"
	"github.com/adiatmad/xlsformbuilderku/internal/model"
	"github.com/adiatmad/xlsformbuilderku/internal/session"
)

const defaultMaxBody = 1 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	sessions *session.Manager
	metrics  *metrics.Metrics
	config   model.BuilderConfig
}

// New creates a new Handler.
func New(mgr *session.Manager, cfg model.BuilderConfig) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBody
	}
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}
	return &Handler{sessions: mgr, metrics: mgr.Metrics(), config: cfg}
}

// Router returns the complete HTTP handler, mounted under the configured
// base path.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(h.config.Lang))

	basePath := strings.TrimRight(h.config.BasePath, "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if basePath == "" {
		h.Routes(r)
		return r
	}
	r.Route(basePath, h.Routes)
	return r
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Post("/sessions", h.handleCreateSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Use(h.sessionCtx)
		r.Get("/", h.handleGetSession)
		r.Delete("/", h.handleDeleteSession)

		r.Get("/questions", h.handleListQuestions)
		r.Post("/questions", h.handleAddQuestion)
		r.Get("/questions/{index}", h.handleGetQuestion)
		r.Put("/questions/{index}", h.handleUpdateQuestion)
		r.Delete("/questions/{index}", h.handleRemoveQuestion)
		r.Post("/questions/{index}/move", h.handleMoveQuestion)
		r.Put("/order", h.handleReorder)

		r.Get("/choices/{list}", h.handleGetChoices)
		r.Post("/choices", h.handleAddChoice)
		r.Put("/choices/{list}", h.handleReplaceChoices)

		r.Put("/settings", h.handleSetSettings)

		r.Post("/preview", h.handlePreview)
		r.Get("/export.xlsx", h.handleExportXLSX)
		r.Get("/export.json", h.handleExportJSON)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": h.sessions.Len()})
}

type sessionKey struct{}

// sessionCtx resolves {sessionID} and stores the session in the request context.
func (h *Handler) sessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, s)))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	return r.Context().Value(sessionKey{}).(*session.Session)
}

// badRequest marks errors caused by an unreadable request.
type badRequest struct{ err error }

func (e *badRequest) Error() string { return e.err.Error() }
func (e *badRequest) Unwrap() error { return e.err }

// decode reads a JSON body into v, rejecting unknown fields.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &badRequest{err}
	}
	return nil
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes))
	if err != nil {
		return nil, &badRequest{err}
	}
	return data, nil
}

func indexParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &model.ValidationError{Field: "index", Value: raw, Reason: "is not a number"}
	}
	return i, nil
}

func statusFor(err error) int {
	var (
		ve *model.ValidationError
		ie *model.IndexError
		ee *model.ExportError
		br *badRequest
	)
	switch {
	case errors.As(err, &br), errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &ie), errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &ee):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func errorMessage(ctx context.Context, err error) string {
	var br *badRequest
	switch {
	case errors.Is(err, session.ErrNotFound):
		return appI18n.T(ctx, "ErrNotFound")
	case errors.As(err, &br):
		return appI18n.Td(ctx, "ErrBadRequest", map[string]any{"Detail": br.err.Error()})
	}
	return appI18n.Error(ctx, err)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		slog.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": errorMessage(r.Context(), err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
