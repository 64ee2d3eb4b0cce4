// Package api provides the HTTP bridge to a masaar node
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/masaar/masaar-node/pkg/network"
)

// Server represents the HTTP API server of a node
type Server struct {
	node       *network.Node
	router     *gin.Engine
	addr       string
	httpServer *http.Server
	gatherer   prometheus.Gatherer
	limiter    *RateLimiter
	config     *Config
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	EnableCORS   bool
	RateLimit    int // Requests per minute per client IP
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		EnableCORS:   true,
		RateLimit:    100,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// NewServer creates a new HTTP API server. gatherer backs /metrics; nil
// uses the default Prometheus registry.
func NewServer(node *network.Node, config *Config, gatherer prometheus.Gatherer) (*Server, error) {
	if node == nil {
		return nil, fmt.Errorf("api server requires a node")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		node:     node,
		router:   gin.New(),
		addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		gatherer: gatherer,
		limiter:  NewRateLimiter(config.RateLimit),
		config:   config,
	}

	server.setupMiddleware(config)
	server.setupRoutes()

	return server, nil
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(config *Config) {
	if config.EnableCORS {
		s.router.Use(CORSMiddleware())
	}

	s.router.Use(RateLimitMiddleware(s.limiter))
	s.router.Use(LoggingMiddleware())
	s.router.Use(gin.Recovery())
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		node := v1.Group("/node")
		{
			node.GET("/id", s.handleGetID)
			node.PUT("/id", s.handleSetID)
			node.GET("/stats", s.handleNodeStats)
		}

		messages := v1.Group("/messages")
		{
			messages.POST("/hello", s.handleHello)
			messages.POST("/data", s.handleData)
			messages.POST("/ack", s.handleAck)
			messages.POST("/nack", s.handleNack)
		}

		v1.POST("/incoming", s.handleIncoming)

		v1.GET("/reliability/pending", s.handlePending)
	}

	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
}

// Handler returns the HTTP handler serving the API
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🌐 HTTP API server starting on %s...", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	return s.Stop()
}

// Stop shuts the HTTP server down gracefully. It is a no-op before Start.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	log.Println("🛑 Shutting down HTTP API server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
