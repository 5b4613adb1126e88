package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
	"kimchi/internal/config"
	"kimchi/internal/metrics"
	"kimchi/internal/model"
)

// Refresher is the part of the refresh engine the HTTP surface needs.
type Refresher interface {
	Refresh(ctx context.Context) (model.CycleState, error)
	Snapshot() model.CycleState
}

// Server exposes the current snapshot, the manual refresh trigger and the push hub.
type Server struct {
	logger  *slog.Logger
	engine  Refresher
	hub     *Hub
	limiter *rate.Limiter
	router  *mux.Router
}

// NewServer creates a Server and registers its routes.
func NewServer(logger *slog.Logger, engine Refresher, hub *Hub, cfg config.ServerConfig) *Server {
	limit := rate.Inf
	if cfg.RefreshRate > 0 {
		limit = rate.Limit(cfg.RefreshRate)
	}
	burst := cfg.RefreshBurst
	if burst < 1 {
		burst = 1
	}

	s := &Server{
		logger:  logger,
		engine:  engine,
		hub:     hub,
		limiter: rate.NewLimiter(limit, burst),
		router:  mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.route("/healthz", s.handleHealth, http.MethodGet)
	s.route("/api/v1/premium", s.handleGetPremium, http.MethodGet)
	s.route("/api/v1/refresh", s.handleRefresh, http.MethodPost)
	s.route("/ws", s.handleWS, http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
}

func (s *Server) route(path string, h http.HandlerFunc, methods ...string) {
	s.router.Handle(path, metrics.InstrumentHandler(path, h)).Methods(methods...)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetPremium(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NewStateView(s.engine.Snapshot()))
}

// handleRefresh joins or starts a cycle and answers with its result.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many refresh requests"})
		return
	}

	state, err := s.engine.Refresh(r.Context())
	if err != nil {
		s.logger.Debug("Refresh request ended before the cycle", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, NewStateView(state))
		return
	}
	writeJSON(w, http.StatusOK, NewStateView(state))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, s.engine.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
