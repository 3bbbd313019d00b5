// Package server exposes a read-only HTTP view of a running campaign:
// campaign state, per-workflow states and the execution plan.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/campman/pkg/model"
)

// StatusSource is the campaign view the server reports. The bookkeeper
// implements it.
type StatusSource interface {
	SessionID() string
	State() model.CampaignState
	Plan() *model.Plan
	WorkflowStates() map[string]model.WorkflowState
}

// Server is the campaign status server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	source    StatusSource
	startTime time.Time
}

// New creates a Server observing the given campaign.
func New(source StatusSource, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		source:    source,
		startTime: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/plan", s.handlePlan)
	})
}
