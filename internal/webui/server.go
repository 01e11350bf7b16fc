// Package webui serves a read-only HTTP/SSE observation surface over the
// daemon's durable collections and event bus: session/approval/question
// listings and a live event stream, for a dashboard to poll or subscribe
// to. It never mutates state — every write path already belongs to
// internal/hostcmd, reached through the CLI or the control socket.
package webui

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/daemonctl/daemonctl/internal/corectx"
	"github.com/daemonctl/daemonctl/internal/session"
	"github.com/daemonctl/daemonctl/internal/store"
	"github.com/daemonctl/daemonctl/pkg/types"
)

// Config holds webui server configuration.
type Config struct {
	Port         int
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sane defaults; WriteTimeout is left at zero since
// the event-stream handlers hold their connection open indefinitely.
func DefaultConfig() Config {
	return Config{
		Port:        4096,
		EnableCORS:  true,
		ReadTimeout: 30 * time.Second,
	}
}

// Dependencies collects the read-only views this surface exposes.
type Dependencies struct {
	Bus       *corectx.Bus
	Manager   *session.Manager
	Templates *store.Collection[*types.Template]
	Groups    *store.Collection[*types.Group]
	Approvals *store.Collection[*types.Approval]
	Questions *store.Collection[*types.Question]
}

// Server is the webui HTTP server.
type Server struct {
	config  Config
	deps    *Dependencies
	router  *chi.Mux
	httpSrv *http.Server
}

// New builds a Server and wires its routes.
func New(cfg Config, deps *Dependencies) *Server {
	s := &Server{config: cfg, deps: deps, router: chi.NewRouter()}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)
	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET"},
			AllowedHeaders: []string{"Accept", "X-Request-ID"},
			MaxAge:         300,
		}))
	}
}

// Start serves until the process is killed or Shutdown is called; it
// blocks, so callers run it in its own goroutine the way a ticking
// agentloop.Loop does.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router exposes the chi router for tests.
func (s *Server) Router() *chi.Mux { return s.router }
