// Package http wires the scheduler's HTTP surface.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rotaforge/scheduler/internal/http/handler"
	mw "github.com/rotaforge/scheduler/internal/http/middleware"
)

// NewRouter creates and configures the chi router with all middleware and
// routes. The status endpoints stay open; triggering and history require
// the API key.
func NewRouter(server *handler.Server, auth *mw.Auth, maxBodyBytes int64) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			slog.ErrorContext(r.Context(), "failed to write health check response", "error", err)
		}
	})

	r.Get("/scheduler/status", server.Status)

	r.Group(func(r chi.Router) {
		r.Use(auth.Validate)
		r.Use(mw.MaxBodyBytes(maxBodyBytes))

		r.Post("/scheduler/run", server.TriggerRun)
		r.Get("/scheduler/runs", server.ListRuns)
	})

	return r
}
