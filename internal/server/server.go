// Package server exposes the analyzer over HTTP.
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
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/sqltrace/internal/state"
	"github.com/leapstack-labs/sqltrace/pkg/sqltrace"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultAddr              = ":5000"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultMaxBodyBytes      = 1 << 20
	shutdownTimeout          = 5 * time.Second
)

// Config holds configuration for the HTTP server.
type Config struct {
	Analyzer          *sqltrace.Analyzer
	Store             state.Store // optional; enables persistence and the /runs routes
	Addr              string
	ReadHeaderTimeout time.Duration
	MaxBodyBytes      int64
	Logger            *slog.Logger
}

// Server serves analysis requests.
type Server struct {
	analyzer          *sqltrace.Analyzer
	store             state.Store
	addr              string
	readHeaderTimeout time.Duration
	maxBodyBytes      int64
	logger            *slog.Logger
	notifier          *Notifier
}

// New creates a server, filling zero Config fields with defaults.
func New(cfg Config) *Server {
	s := &Server{
		analyzer:          cfg.Analyzer,
		store:             cfg.Store,
		addr:              cfg.Addr,
		readHeaderTimeout: cfg.ReadHeaderTimeout,
		maxBodyBytes:      cfg.MaxBodyBytes,
		logger:            cfg.Logger,
		notifier:          NewNotifier(),
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.analyzer == nil {
		s.analyzer = sqltrace.New(sqltrace.WithLogger(s.logger))
	}
	if s.addr == "" {
		s.addr = DefaultAddr
	}
	if s.readHeaderTimeout <= 0 {
		s.readHeaderTimeout = DefaultReadHeaderTimeout
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = DefaultMaxBodyBytes
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		requestLogger(s.logger),
		middleware.Recoverer,
		middleware.Compress(5),
	)
	s.routes(r)
	return r
}

// Notifier returns the notifier pinged after every persisted analysis.
func (s *Server) Notifier() *Notifier {
	return s.notifier
}

// Serve listens on the configured address and blocks until ctx is
// cancelled or the server fails.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln and shuts down gracefully when ctx ends.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting server", "addr", ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: s.readHeaderTimeout,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// requestLogger logs one record per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
