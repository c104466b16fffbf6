package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultShutdownTimeout bounds how long Run waits for in-flight requests.
const DefaultShutdownTimeout = 10 * time.Second

// Server binds the configured port and serves the application handler.
type Server struct {
	log             *zap.Logger
	httpServer      *http.Server
	shutdownTimeout time.Duration

	serveErr chan error
	started  atomic.Bool
	once     sync.Once
}

// ErrAlreadyStarted is returned when Start or Run is called a second time.
var ErrAlreadyStarted = errors.New("server already started")

// New returns a server for handler on port. An empty port lets the
// operating system pick one.
func New(handler http.Handler, port string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if port == "" {
		port = "0"
	}
	return &Server{
		log:             log,
		httpServer:      &http.Server{Addr: ":" + port, Handler: handler},
		shutdownTimeout: DefaultShutdownTimeout,
		serveErr:        make(chan error, 1),
	}
}

// WithShutdownTimeout overrides DefaultShutdownTimeout.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// Start binds the listener and serves in the background. A bind failure,
// such as the port already being in use, is returned to the caller.
// A server starts at most once; later calls return ErrAlreadyStarted.
func (s *Server) Start() (net.Addr, error) {
	if !s.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", s.httpServer.Addr, err)
	}

	port := ln.Addr().(*net.TCPAddr).Port
	s.log.Info(fmt.Sprintf("Server is running on port %d.", port), zap.Int("port", port))

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.serveErr <- err
		}
		close(s.serveErr)
	}()

	return ln.Addr(), nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		s.log.Info("Gracefully shutting down HTTP server...")
		err = s.httpServer.Shutdown(ctx)
	})
	return err
}

// Run starts the server and blocks until ctx is cancelled or serving fails,
// then shuts down.
func (s *Server) Run(ctx context.Context) error {
	if _, err := s.Start(); err != nil {
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-s.serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return serveErr
}
