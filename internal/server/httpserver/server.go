// Package httpserver serves the wsnapd HTTP API.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/AgenciaV10/wsnap/internal/infra/certwatch"
)

// Server wraps http.Server with optional hot-reloaded TLS.
type Server struct {
	httpServer *http.Server
	certs      *certwatch.Watcher
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithTLS serves HTTPS with certificates from w.
func WithTLS(w *certwatch.Watcher) Option {
	return func(s *Server) {
		s.certs = w
	}
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a new HTTP server.
func New(addr string, handler http.Handler, opts ...Option) *Server {
	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.certs != nil {
		s.httpServer.TLSConfig = s.certs.TLSConfig()
	}
	s.httpServer.ErrorLog = slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn)
	return s
}

// ListenAndServe listens on the configured address and serves until
// Shutdown. It returns nil after a graceful shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln, using TLS when configured.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http server listening", "addr", ln.Addr().String(), "tls", s.certs != nil)

	var err error
	if s.certs != nil {
		err = s.httpServer.ServeTLS(ln, "", "")
	} else {
		err = s.httpServer.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server and stops the certificate
// watcher.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.certs != nil {
		s.certs.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}
