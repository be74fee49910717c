// Package web provides the HTTP API for recording and analyzing health
// measurements.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/circadian/internal/config"
	"github.com/JonMunkholm/circadian/internal/service"
	mw "github.com/JonMunkholm/circadian/internal/web/middleware"
)

// Server is the HTTP server for the tracker.
type Server struct {
	service *service.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a Server serving svc.
func NewServer(svc *service.Service, cfg *config.Config) *Server {
	s := &Server{
		service: svc,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(s.cfg.Security.RequireAPIKey, s.cfg.Security.APIKeys))

		// Single entries
		r.Post("/validate", s.handleValidate)
		r.Post("/entries", s.handleAddEntry)
		r.Get("/entries", s.handleListEntries)
		r.Patch("/entries/{pos}", s.handleUpdateEntry)
		r.Delete("/entries/{pos}", s.handleDeleteEntry)
		r.Delete("/entries", s.handleClear)

		// Persons
		r.Get("/persons", s.handleListPersons)
		r.Get("/persons/{personID}/entries", s.handlePersonEntries)
		r.Delete("/persons/{personID}", s.handleDeletePerson)

		// Analysis
		r.Get("/stats", s.handleStats)
		r.Get("/patterns", s.handlePatterns)
		r.Get("/patterns/hourly", s.handleHourlyPattern)
		r.Get("/patterns/weekday", s.handleWeekdayPattern)
		r.Get("/insights", s.handleInsights)

		// Files
		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)
		r.Post("/import/validate", s.handleValidateImport)
		r.Post("/backup", s.handleBackup)
		r.Post("/warehouse/sync", s.handleWarehouseSync)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are only logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
