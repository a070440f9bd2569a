/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Prometheus request counters and latency
  5. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/schemes/*      Scheme configuration
  /api/records/*      Uploaded performance records
  /api/evaluate       Ad-hoc evaluation
  /api/managers/*     Manager batch views
  /api/logs/*         Message and login logs
  /api/scenarios/*    Demo scenarios
  /metrics            Prometheus scrape endpoint
  /healthz            Liveness

SECURITY NOTE:
  No authentication middleware. All endpoints are public.
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultAllowedOrigins are used when no origins are configured.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}
	if h.Metrics == nil {
		h.Metrics = NewMetrics()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(h.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/schemes", func(r chi.Router) {
			r.Get("/", h.ListSchemes)
			r.Post("/", h.CreateScheme)
			r.Get("/{id}", h.GetScheme)
			r.Delete("/{id}", h.DeleteScheme)
		})

		r.Route("/records", func(r chi.Router) {
			r.Post("/upload", h.UploadRecords)
			r.Get("/{key}", h.GetRecord)
			r.Get("/{key}/evaluation", h.GetRecordEvaluation)
		})

		r.Post("/evaluate", h.Evaluate)
		r.Get("/managers/{code}/agents", h.ManagerAgents)
		r.Get("/view", h.GetView)
		r.Put("/view", h.SaveView)
		r.Get("/evaluations/runs", h.ListEvaluationRuns)

		r.Route("/logs", func(r chi.Router) {
			r.Post("/messages", h.LogMessage)
			r.Get("/messages", h.MessagesForCustomer)
			r.Get("/messages/summary", h.MessageSummary)
			r.Post("/logins", h.LogLogin)
			r.Get("/logins/summary", h.LoginSummary)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
