package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cuemby/scbackend/pkg/events"
	"github.com/cuemby/scbackend/pkg/log"
	"github.com/cuemby/scbackend/pkg/storage"
	"github.com/cuemby/scbackend/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes int64 = 1 << 20

// Instances is the part of the registry the API drives.
type Instances interface {
	AddInstance(id string) error
	RemoveInstance(id string) error
	TriggerExternal(id string, ev events.Event) error
	List() []types.InstanceInfo
	Get(id string) (types.InstanceInfo, error)
	Has(id string) bool
}

// Server serves the project and runner HTTP API
type Server struct {
	store     storage.Store
	instances Instances
	logger    zerolog.Logger
	router    chi.Router
}

// NewServer creates a new API server
func NewServer(store storage.Store, instances Instances) *Server {
	s := &Server{
		store:     store,
		instances: instances,
		logger:    log.WithComponent("api"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler for all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))
	r.Use(s.instrument)

	registerHealthRoutes(r)

	r.Route("/api", func(r chi.Router) {
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.listProjects)
			r.Post("/", s.createProject)
			r.Get("/{id}", s.getProject)
			r.Put("/{id}", s.updateProject)
			r.Delete("/{id}", s.deleteProject)
			r.Post("/{id}/run", s.runProject)
			r.Post("/{id}/stop", s.stopProject)
		})
		r.Route("/runners", func(r chi.Router) {
			r.Get("/", s.listRunners)
			r.Get("/{id}", s.getRunner)
			r.Post("/{id}", s.addRunner)
			r.Delete("/{id}", s.removeRunner)
			r.Post("/{id}/trigger", s.triggerRunner)
		})
	})

	// Legacy paths kept for existing dashboards.
	r.Get("/projects", s.listProjects)
	r.Get("/project/{id}", s.getProject)
	r.Get("/runners", s.listRunners)
	r.Get("/runner/add/{id}", s.legacyAddRunner)
	r.Get("/runner/remove/{id}", s.legacyRemoveRunner)
	r.Post("/runner/{id}/trigger", s.triggerRunner)

	return r
}

// ListenAndServe serves the API on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves the API on ln until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("HTTP API listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown API server: %w", err)
	}
	s.logger.Info().Msg("HTTP API stopped")
	return nil
}
