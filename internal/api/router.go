package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus scrape endpoint
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system", s.handleSystemMetrics)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Get("/info", s.handleGetDeviceInfo)
				r.Get("/energy", s.handleGetEnergy)
				r.Get("/energy/history", s.handleGetEnergyHistory)
				r.Put("/power", s.handleSetPower)
				r.Put("/mode", s.handleSetMode)
				r.Post("/control", s.handleSendControl)
			})
		})

		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleSessionStatus)
			r.Post("/reconnect", s.handleSessionReconnect)
		})

		r.Get(s.wsPath(), s.handleWebSocket)
	})

	return r
}

// wsPath returns the configured WebSocket route, relative to /api/v1.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   s.version,
		"connected": s.controller.IsConnected(),
		"session":   s.controller.Status().State.String(),
	})
}
