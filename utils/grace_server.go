package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	DEFAULT_READ_TIMEOUT     = 60 * time.Second
	DEFAULT_WRITE_TIMEOUT    = DEFAULT_READ_TIMEOUT
	DEFAULT_SHUTDOWN_TIMEOUT = 30 * time.Second
)

// Server wraps http.Server with context-driven graceful shutdown.
type Server struct {
	*http.Server

	shutdownTimeout time.Duration
	log             *zap.Logger
}

// NewServer creates a Server with timeouts and handler. onShutdown hooks run when
// shutdown starts; use them to close hijacked connections such as websockets,
// which http.Server.Shutdown does not track.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration, log *zap.Logger, onShutdown ...func()) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	srv := &Server{
		Server: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		shutdownTimeout: DEFAULT_SHUTDOWN_TIMEOUT,
		log:             log,
	}
	for _, fn := range onShutdown {
		srv.RegisterOnShutdown(fn)
	}
	return srv
}

// Run listens on Addr and serves until ctx is cancelled, then shuts down gracefully.
func (srv *Server) Run(ctx context.Context) error {
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("net.Listen error: %w", err)
	}
	return srv.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled.
func (srv *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() { errc <- srv.Server.Serve(ln) }()
	srv.log.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	srv.log.Info("graceful shutting down HTTP server")
	sctx, cancel := context.WithTimeout(context.Background(), srv.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		srv.log.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}
	<-errc
	srv.log.Info("HTTP server shutdown success")
	return nil
}

// GraceServer serves handler on addr until ctx is cancelled.
func GraceServer(ctx context.Context, addr string, handler http.Handler, log *zap.Logger, onShutdown ...func()) error {
	return NewServer(addr, handler, DEFAULT_READ_TIMEOUT, DEFAULT_WRITE_TIMEOUT, log, onShutdown...).Run(ctx)
}
