package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(app.logger()))
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)
	r.Get("/health", app.HealthHandler)
	r.Get("/estimates", app.ListEstimatesHandler)
	r.Get("/estimates/{id}", app.GetEstimateHandler)

	r.Route("/views", func(r chi.Router) {
		r.Post("/", app.CreateViewHandler)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.GetViewHandler)
			r.Delete("/", app.DeleteViewHandler)
			r.Post("/reset", app.ResetViewHandler)
			r.Put("/fields", app.SetFieldsHandler)
			r.Post("/files", app.AddFilesHandler)
			r.Delete("/files", app.ClearFilesHandler)
			r.Get("/files/{index}", app.FileHandler)
			r.Delete("/files/{index}", app.RemoveFileHandler)
			r.Get("/files/{index}/preview", app.PreviewHandler)
			r.Delete("/notice", app.DismissNoticeHandler)
			r.Post("/submit", app.SubmitHandler)
			r.Get("/result", app.ResultHandler)
			r.Get("/events", app.EventsHandler)
		})
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
