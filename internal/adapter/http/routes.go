package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router. ws may
// be nil when the observer stream is disabled.
func MountRoutes(r chi.Router, h *Handlers, ws http.Handler) {
	r.Get("/health", h.Health)

	if ws != nil {
		r.Handle("/ws", ws)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Pipelines
		r.Post("/pipelines", h.StartPipeline)
		r.Get("/pipelines", h.ListPipelines)
		r.Get("/pipelines/{id}", h.GetPipeline)

		// Goal routing
		r.Post("/goals/route", h.RouteGoal)

		// Tasks
		r.Get("/tasks", h.ListTasks)
		r.Get("/tasks/{id}", h.GetTask)

		// Agents
		r.Get("/agents", h.ListAgents)
		r.Get("/agents/{id}", h.GetAgent)
		r.Post("/agents/{id}/stop", h.StopAgent)

		// Convoys
		r.Get("/convoys", h.ListConvoys)
		r.Get("/convoys/{id}", h.GetConvoy)
		r.Get("/convoys/{id}/progress", h.GetConvoyProgress)

		// Repository handles
		r.Get("/repos", h.ListRepos)
	})
}
