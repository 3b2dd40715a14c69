// Package server owns the HTTP front-end: routing, origin checking and
// the response middleware chain.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/imago/internal/common"
	"github.com/ternarybob/imago/internal/handlers"
	"github.com/ternarybob/imago/internal/interfaces"
)

// Server manages the HTTP server and routes
type Server struct {
	config *common.Config
	logger arbor.ILogger
	router *http.ServeMux
	server *http.Server
}

// New creates a new HTTP server for the given scrape service.
func New(config *common.Config, scraper interfaces.ScrapeService, logger arbor.ILogger) *Server {
	s := &Server{
		config: config,
		logger: logger,
	}

	s.router = s.setupRoutes(scraper)

	s.server = &http.Server{
		Addr:         config.ListenOn,
		Handler:      s.withMiddleware(s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info().
		Str("address", s.config.ListenOn).
		Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Server) setupRoutes(scraper interfaces.ScrapeService) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/images/scrape", handlers.NewScrapeHandler(s.config, scraper, s.logger))
	return mux
}
