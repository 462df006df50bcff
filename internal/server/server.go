// File: internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/planpilot-cli/api/schemas"
	"github.com/xkilldash9x/planpilot-cli/internal/config"
	"github.com/xkilldash9x/planpilot-cli/internal/store"
)

// RunLauncher executes a plan and returns its report. The runner satisfies
// it.
type RunLauncher interface {
	Run(ctx context.Context, plan *schemas.Plan) (*schemas.ExecutionReport, error)
}

// RunHistory retrieves stored run records. Nil means persistence is
// disabled.
type RunHistory interface {
	GetRun(ctx context.Context, runID string) (*store.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]store.RunRecord, error)
}

// Server hosts the HTTP launch endpoint: it forwards plan documents to the
// runner and returns rendered execution reports verbatim.
type Server struct {
	cfg      config.ServerConfig
	logger   *zap.Logger
	launcher RunLauncher
	history  RunHistory
}

// New creates the HTTP server facade. history may be nil.
func New(cfg config.ServerConfig, launcher RunLauncher, history RunHistory, logger *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger.Named("server"),
		launcher: launcher,
		history:  history,
	}
}

// Routes assembles the chi router with the standard middleware stack.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.apiKeyMiddleware)
		r.With(s.rateLimitMiddleware()).Post("/launch", s.handleLaunch)
		r.Get("/runs/{runID}", s.handleGetRun)
		r.Get("/runs", s.handleListRuns)
	})

	return r
}

// Start runs the HTTP server until ctx is canceled, then shuts it down
// within the configured grace period. The listener is capped at
// cfg.MaxConns concurrent connections.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	if s.cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConns)
	}

	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("HTTP server listening.", zap.String("addr", ln.Addr().String()))

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()

		grace := s.cfg.ShutdownGrace
		if grace <= 0 {
			grace = 15 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()

		s.logger.Info("Shutting down HTTP server.")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
