// Package http provides the HTTP server adapter for the application
// layer. This is a thin adapter that translates HTTP requests to
// application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veckopay/verification/internal/application/service"
	"github.com/veckopay/verification/internal/repository"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config              ServerConfig
	httpServer          *http.Server
	router              *gin.Engine
	batchService        service.BatchService
	verificationService service.VerificationService
	auditRepo           *repository.AuditRepository
	logger              Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	batchService service.BatchService,
	verificationService service.VerificationService,
	auditRepo *repository.AuditRepository,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config:              config,
		router:              router,
		batchService:        batchService,
		verificationService: verificationService,
		auditRepo:           auditRepo,
		logger:              logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.batchService, s.verificationService, s.auditRepo, s.logger)

	// Health check
	s.router.GET("/health", handlers.HealthCheck)

	api := s.router.Group("/api/v1")
	{
		// Batches
		api.POST("/batches", handlers.CreateBatch)
		api.GET("/batches", handlers.ListUrgentBatches)
		api.GET("/batches/:id", handlers.GetBatch)
		api.POST("/batches/:id/release", handlers.ReleaseBatch)
		api.POST("/batches/:id/sessions", handlers.CreateSession)

		// Sessions
		api.POST("/sessions/:id/start", handlers.StartSession)
		api.POST("/sessions/:id/verify", handlers.VerifyTransaction)
		api.POST("/sessions/:id/auto-verify", handlers.AutoVerifyTransaction)
		api.POST("/sessions/:id/supersede", handlers.SupersedeResult)
		api.POST("/sessions/:id/pause", handlers.PauseSession)
		api.POST("/sessions/:id/resume", handlers.ResumeSession)
		api.POST("/sessions/:id/complete", handlers.CompleteSession)
		api.POST("/sessions/:id/cancel", handlers.CancelSession)
		api.GET("/sessions/:id/progress", handlers.SessionProgress)
		api.GET("/sessions/:id/analytics", handlers.SessionAnalytics)
		api.GET("/sessions/:id/patterns", handlers.SessionPatterns)
		api.GET("/sessions/:id/audit", handlers.SessionAuditTrail)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
