package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/switchyardhq/switchyard/internal/cache"
	"github.com/switchyardhq/switchyard/internal/intake"
	"github.com/switchyardhq/switchyard/internal/store"
)

// Server is the HTTP RPC surface for switchyard.
type Server struct {
	store      *store.Store
	cache      *cache.Cache
	intake     *intake.Processor
	httpServer *http.Server
	router     chi.Router
}

// New creates a new Server.
func New(s *store.Store, c *cache.Cache, p *intake.Processor, bindAddr string) *Server {
	srv := &Server{store: s, cache: c, intake: p}
	srv.router = srv.buildRouter()
	srv.httpServer = &http.Server{
		Addr:    bindAddr,
		Handler: srv.router,
	}
	return srv
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(structuredLogger)
	r.Use(tracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Tickets
		r.Post("/tickets", s.handleCreateTicket)
		r.Get("/tickets/{id}", s.handleGetTicket)
		r.Post("/tickets/{id}/claim", s.handleClaim)
		r.Post("/tickets/{id}/handoff", s.handleHandoff)

		// Direct assignment (guarded for pilot techs)
		r.Post("/assign/add", s.handleAssignAdd)
		r.Post("/assign/remove", s.handleAssignRemove)
		r.Post("/assign/remove_multiple", s.handleAssignRemoveMultiple)
		r.Post("/assign/close_all", s.handleAssignCloseAll)

		// Inbound mail intake
		r.Post("/ingest", s.handleIngest)
		r.Get("/ingest/status", s.handleIngestStatus)
		r.Post("/confirm", s.handleConfirm)

		// Demo/seed data
		r.Post("/seed/users", s.handleSeedUsers)
		r.Post("/seed/locations", s.handleSeedLocations)
		r.Post("/seed/customers", s.handleSeedCustomers)
	})

	r.Get("/healthz", s.handleHealthz)

	return r
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	slog.Info("HTTP server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// JSON response helpers

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, code string) {
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// Middleware

func structuredLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Switchyard-User")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
