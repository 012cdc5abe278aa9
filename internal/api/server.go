package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/indrav/forecourt/internal/config"
	"github.com/indrav/forecourt/internal/lifecycle"
	"github.com/indrav/forecourt/internal/metrics"
)

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	service    *lifecycle.Service
	config     *config.APIConfig
	logger     *slog.Logger
	startTime  time.Time
	allowedIPs []*net.IPNet
}

// NewServer creates a new API server
func NewServer(service *lifecycle.Service, cfg *config.APIConfig, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		service:   service,
		config:    cfg,
		logger:    logger,
		startTime: time.Now(),
	}

	s.parseAllowedIPs()
	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(metrics.HTTPMiddleware)
	s.router.Use(middleware.Recoverer)

	// Health check (no auth required)
	s.router.Get("/health", s.handleHealth)

	// API v1 routes (auth required)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.ipFilterMiddleware)
		r.Use(s.authMiddleware)

		r.Post("/domains/connect", s.handleConnect)
		r.Post("/domains/{id}/verify", s.handleVerify)
		r.Delete("/domains/{id}", s.handleRemove)
		r.Get("/domains/{id}/checks", s.handleChecks)
		r.Get("/domains/status", s.handleStatus)
		r.Get("/dns/instructions", s.handleInstructions)
	})
}

// parseAllowedIPs parses the configured IP allowlist
func (s *Server) parseAllowedIPs() {
	for _, ipStr := range s.config.AllowedIPs {
		ipStr = strings.TrimSpace(ipStr)
		if ipStr == "" {
			continue
		}

		if strings.Contains(ipStr, "/") {
			_, ipNet, err := net.ParseCIDR(ipStr)
			if err != nil {
				s.logger.Warn("invalid CIDR in allowed_ips", "cidr", ipStr, "error", err)
				continue
			}
			s.allowedIPs = append(s.allowedIPs, ipNet)
			continue
		}

		ip := net.ParseIP(ipStr)
		if ip == nil {
			s.logger.Warn("invalid IP in allowed_ips", "ip", ipStr)
			continue
		}
		mask := net.CIDRMask(128, 128)
		if ip.To4() != nil {
			mask = net.CIDRMask(32, 32)
		}
		s.allowedIPs = append(s.allowedIPs, &net.IPNet{IP: ip, Mask: mask})
	}
}

// Router returns the configured router, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.Info("starting HTTP API server", "addr", s.config.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
