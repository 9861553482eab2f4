package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/login", apiHandler.LoginHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Post("/extract", apiHandler.ExtractHandler)
			r.Post("/ingest", apiHandler.IngestHandler)

			r.Get("/tasks", apiHandler.ListTasksHandler)
			r.Get("/tasks/{taskID}", apiHandler.GetTaskHandler)
			r.Patch("/tasks/{taskID}", apiHandler.UpdateTaskHandler)
			r.Delete("/tasks/{taskID}", apiHandler.DeleteTaskHandler)
			r.Post("/prioritize", apiHandler.PrioritizeHandler)
			r.Get("/sources", apiHandler.ListSourcesHandler)
			r.Get("/stats", apiHandler.StatsHandler)

			r.Post("/breakdown", apiHandler.BreakdownHandler)
			r.Post("/breakdown/save", apiHandler.SaveBreakdownHandler)

			r.Post("/context", apiHandler.AddContextHandler)
			r.Get("/context/search", apiHandler.SearchContextHandler)
			r.Delete("/context", apiHandler.ResetContextHandler)
		})
	})

	return r
}
