// Package server exposes the block catalog, code generation, sandboxed
// execution and snapshot storage over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/pyblocks/internal/codegen"
	"github.com/leapstack-labs/pyblocks/internal/definitions"
	"github.com/leapstack-labs/pyblocks/internal/sandbox"
	"github.com/leapstack-labs/pyblocks/internal/server/notifier"
	"github.com/leapstack-labs/pyblocks/internal/state"
	"golang.org/x/sync/errgroup"
)

// Server is the HTTP API server.
type Server struct {
	defs      *definitions.Store
	snapshots *state.SQLiteStore
	runner    *sandbox.Runner
	genOpts   codegen.Options
	version   string
	port      int
	watch     bool
	logger    *slog.Logger
	notifier  *notifier.Notifier
}

// Config holds configuration for the server.
type Config struct {
	Definitions *definitions.Store
	Snapshots   *state.SQLiteStore // optional; snapshot routes answer 503 without it
	Runner      *sandbox.Runner
	Generator   codegen.Options
	Version     string
	Port        int
	Watch       bool
	Logger      *slog.Logger
}

// NewServer creates a new server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	runner := cfg.Runner
	if runner == nil {
		runner = sandbox.New(sandbox.Options{Logger: logger})
	}
	genOpts := cfg.Generator
	if genOpts.Logger == nil {
		genOpts.Logger = logger
	}

	s := &Server{
		defs:      cfg.Definitions,
		snapshots: cfg.Snapshots,
		runner:    runner,
		genOpts:   genOpts,
		version:   cfg.Version,
		port:      cfg.Port,
		watch:     cfg.Watch,
		logger:    logger,
		notifier:  notifier.New(),
	}
	s.defs.OnReload(func(c *definitions.Catalog) {
		s.logger.Info("block definitions reloaded",
			slog.Int("blocks", c.Len()),
			slog.Uint64("generation", c.Generation()))
		s.notifier.Broadcast(notifier.Event{Type: "definitions", Generation: c.Generation()})
	})
	return s
}

// Notifier returns the server's notifier for SSE updates.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// Handler returns the router with all routes and middleware installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)
	s.SetupRoutes(r)
	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting API server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch {
		eg.Go(func() error {
			return s.defs.Watch(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
