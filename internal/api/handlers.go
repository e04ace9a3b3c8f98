package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kdimtricp/paintestimator/internal/database"
	"github.com/kdimtricp/paintestimator/internal/models"
	"github.com/kdimtricp/paintestimator/internal/present"
	"github.com/kdimtricp/paintestimator/internal/storage"
	"github.com/kdimtricp/paintestimator/internal/transport"
	"github.com/kdimtricp/paintestimator/internal/view"
)

// EstimateLister reads submission history.
type EstimateLister interface {
	ListRecent(ctx context.Context, mode models.Mode, limit int) ([]database.Estimate, error)
	GetByID(ctx context.Context, id string) (*database.Estimate, error)
}

type HealthChecker interface {
	Health(ctx context.Context) (*transport.HealthStatus, error)
}

type App struct {
	Views         *view.Manager
	History       EstimateLister
	Backend       HealthChecker
	Storage       storage.Storage
	MaxUploadSize int64
	Logger        *zap.Logger
}

func (app *App) logger() *zap.Logger {
	if app.Logger == nil {
		return zap.NewNop()
	}
	return app.Logger
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func (app *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if app.Backend == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unconfigured"})
		return
	}
	status, err := app.Backend.Health(r.Context())
	if err != nil {
		app.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (app *App) ListEstimatesHandler(w http.ResponseWriter, r *http.Request) {
	if app.History == nil {
		writeJSON(w, http.StatusOK, []database.Estimate{})
		return
	}

	var mode models.Mode
	if m := r.URL.Query().Get("mode"); m != "" {
		parsed, err := models.ParseMode(m)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mode = parsed
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	estimates, err := app.History.ListRecent(r.Context(), mode, limit)
	if err != nil {
		app.logger().Error("failed to list estimates", zap.Error(err))
		http.Error(w, "Error loading estimates", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, estimates)
}

func (app *App) GetEstimateHandler(w http.ResponseWriter, r *http.Request) {
	if app.History == nil {
		http.Error(w, "Estimate not found", http.StatusNotFound)
		return
	}

	estimate, err := app.History.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, database.ErrEstimateNotFound) {
			http.Error(w, "Estimate not found", http.StatusNotFound)
			return
		}
		app.logger().Error("failed to load estimate", zap.Error(err))
		http.Error(w, "Error loading estimate", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, estimate)
}

// wantsHTML reports whether the caller is an htmx fragment request or
// otherwise prefers HTML over JSON.
func wantsHTML(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return true
	}
	if r.URL.Query().Get("format") == "html" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	var herr *transport.HTTPError
	var nerr *transport.NetworkError
	switch {
	case errors.Is(err, view.ErrSubmitInFlight):
		return http.StatusConflict
	case errors.Is(err, view.ErrClosed):
		return http.StatusGone
	case errors.Is(err, view.ErrFileIndex):
		return http.StatusNotFound
	case errors.Is(err, view.ErrNoFiles), errors.Is(err, view.ErrTooManyFiles):
		return http.StatusBadRequest
	case errors.As(err, &herr):
		return http.StatusBadGateway
	case errors.As(err, &nerr):
		return http.StatusGatewayTimeout
	}
	if view.NoticeFor(err).Class == view.ClassValidation {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (app *App) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	notice := view.NoticeFor(err)
	switch {
	case errors.Is(err, view.ErrNoFiles), errors.Is(err, view.ErrTooManyFiles),
		errors.Is(err, view.ErrFileIndex), errors.Is(err, view.ErrClosed):
		notice = view.Notice{Class: view.ClassValidation, Message: capitalize(err.Error())}
	}

	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		present.Notice(w, notice.Class, notice.Message)
		return
	}
	writeJSON(w, status, map[string]interface{}{"error": notice})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
