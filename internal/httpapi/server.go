// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
)

// Server serves the API on a TCP listener.
type Server struct {
	addr       string
	handler    http.Handler
	listener   net.Listener
	httpServer *http.Server
	logger     *slog.Logger
	running    atomic.Bool
}

// NewServer creates an API server for handler.
// A nil logger selects slog.Default.
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{addr: addr, handler: handler, logger: logger}
}

// Start begins serving. The returned channel receives a serve error, if any,
// and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("HTTP_ALREADY_RUNNING").Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("HTTP_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}
	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
