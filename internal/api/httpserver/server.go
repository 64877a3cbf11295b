// Package httpserver wraps the standard library HTTP server with the
// application's configuration and logging.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/plusmaps/atlas/internal/config"
	"github.com/plusmaps/atlas/pkg/logger"
)

// Server owns the listener lifecycle.
type Server struct {
	cfg config.ServerConfig
	log *logger.Logger
	srv *http.Server
}

// New builds a server around the provided handler.
func New(cfg config.ServerConfig, log *logger.Logger, handler http.Handler) *Server {
	if log == nil {
		log = logger.NewDefault("httpserver")
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: handler,
	}
	if cfg.ReadTimeout > 0 {
		srv.ReadTimeout = time.Duration(cfg.ReadTimeout) * time.Second
	}
	if cfg.WriteTimeout > 0 {
		srv.WriteTimeout = time.Duration(cfg.WriteTimeout) * time.Second
	}
	if cfg.IdleTimeout > 0 {
		srv.IdleTimeout = time.Duration(cfg.IdleTimeout) * time.Second
	}

	return &Server{cfg: cfg, log: log, srv: srv}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Start blocks serving requests until the listener closes.
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.srv.Shutdown(ctx)
}
