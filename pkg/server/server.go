// Package server provides the HTTP server shared by the ingest and query
// services: a gin engine with the standard middleware chain, health probes,
// and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/cortex-x/pkg/middleware"
	serveropts "github.com/kart-io/cortex-x/pkg/options/server"
	"github.com/kart-io/cortex-x/pkg/response"
)

// ReadyCheck reports whether the service is ready to accept traffic.
type ReadyCheck func(ctx context.Context) error

// Server is the HTTP server.
type Server struct {
	name       string
	opts       *serveropts.Options
	engine     *gin.Engine
	server     *http.Server
	readyCheck ReadyCheck
}

// New creates a server with the standard middleware chain and health probes.
func New(name string, opts *serveropts.Options) *Server {
	gin.SetMode(opts.Mode)

	engine := gin.New()
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
	)

	s := &Server{
		name:   name,
		opts:   opts,
		engine: engine,
	}

	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/readyz", s.handleReadyz)
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, response.Response{
			Code:    http.StatusNotFound,
			Message: "route not found",
		})
	})

	return s
}

// Engine returns the gin engine for route registration.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// SetReadyCheck installs the readiness probe callback.
func (s *Server) SetReadyCheck(check ReadyCheck) {
	s.readyCheck = check
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": s.name})
}

func (s *Server) handleReadyz(c *gin.Context) {
	if s.readyCheck != nil {
		if err := s.readyCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Run starts the server and blocks until the context is cancelled or the
// listener fails, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "service", s.name, "addr", s.opts.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Infow("shutting down HTTP server", "service", s.name, "timeout", s.opts.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}
