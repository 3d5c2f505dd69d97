// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It decides:
//   - which URL patterns map to which handler functions
//   - what middleware runs on every request
//   - how the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config
//	   ├─→ sqlstore.DB ───────────┬─→ ProjectService ─→ ProjectHandler
//	   └─→ github.Client ─────────┘
//	       sqlstore.DB ───────────→ RankingService ─→ RankingHandler
//	       sqlstore.DB ───────────→ HealthHandler
//
// All dependencies are wired here in New, the "composition root". Nothing
// below this package constructs its own collaborators.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/github-scraper/internal/config"
	"github.com/sakif/github-scraper/internal/github"
	"github.com/sakif/github-scraper/internal/handler"
	"github.com/sakif/github-scraper/internal/middleware"
	"github.com/sakif/github-scraper/internal/repository/sqlstore"
	"github.com/sakif/github-scraper/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database pool. Run closes it after the HTTP server
// has drained, so no in-flight request loses its connection mid-query.
type Server struct {
	router http.Handler
	config config.Config
	logger *slog.Logger
	db     *sqlstore.DB
}

// Handlers groups everything the router mounts.
type Handlers struct {
	Projects *handler.ProjectHandler
	Ranking  *handler.RankingHandler
	Health   *handler.HealthHandler
}

// New opens the database (running migrations), builds the GitHub client and
// the services, and mounts the routes.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	// === DATABASE ===
	db, err := sqlstore.New(ctx, sqlstore.Options{
		DSN:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// === REMOTE SOURCE ===
	gh, err := github.NewClient(github.Config{
		BaseURL:   cfg.GitHubAPIURL,
		Timeout:   cfg.GitHubTimeout,
		UserAgent: "github-scraper",
	}, logger.With(slog.String("component", "github")))
	if err != nil {
		db.Close() // Clean up DB if the client cannot be built
		return nil, fmt.Errorf("creating github client: %w", err)
	}

	// === SERVICES AND HANDLERS ===
	svcLogger := logger.With(slog.String("component", "service"))
	projects := service.NewProjectService(db, gh, svcLogger)
	ranking := service.NewRankingService(db, svcLogger)

	h := Handlers{
		Projects: handler.NewProjectHandler(projects, logger),
		Ranking:  handler.NewRankingHandler(ranking, logger),
		Health:   handler.NewHealthHandler(db, logger),
	}

	logger.Info("database ready",
		slog.String("dialect", string(db.Dialect())),
	)

	return &Server{
		router: NewRouter(h, cfg.CORSOrigins, logger),
		config: cfg,
		logger: logger,
		db:     db,
	}, nil
}

// NewRouter configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET /healthz                    → store ping
//	GET /users/{username}/projects  → cached or fetched projects
//	GET /users/recent/{n}           → n most recently cached users
//	GET /projects/most-starred/{n}  → n most starred cached projects
//
// chi prefers the static "recent" segment over {username}, so
// /users/recent/5 always reaches the ranking handler.
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID  assigns a unique ID to each request (for tracing)
//  2. RealIP     extracts the client IP from proxy headers
//  3. Logger     logs each request with timing info and the request ID
//  4. Recoverer  turns a panic into a 500 instead of a crash
//  5. CORS       answers preflight requests
func NewRouter(h Handlers, corsOrigins []string, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.NotFound(handler.RouteNotFound(logger))
	r.MethodNotAllowed(handler.MethodNotAllowed(logger))

	r.Get("/healthz", h.Health.HandleHealth)

	r.Route("/users", func(r chi.Router) {
		r.Get("/recent/{n}", h.Ranking.HandleRecentUsers)
		r.Get("/{username}/projects", h.Projects.HandleUserProjects)
	})
	r.Get("/projects/most-starred/{n}", h.Ranking.HandleMostStarred)

	return r
}

// Handler exposes the router, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database pool. Run calls it on the way out; callers
// that never Run (tests) call it themselves.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start runs the server until SIGINT or SIGTERM.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database pool
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()

	// A cache miss can spend the whole GitHub timeout before writing a byte,
	// so the write deadline must outlast it.
	writeTimeout := 15 * time.Second
	if need := s.config.GitHubTimeout + 5*time.Second; need > writeTimeout {
		writeTimeout = need
	}

	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("github", s.config.GitHubAPIURL),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutdown signal received", slog.String("cause", context.Cause(ctx).Error()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	}
}
