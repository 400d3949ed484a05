package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ksred/index-migrator/internal/config"
	"github.com/ksred/index-migrator/internal/database"
	"github.com/ksred/index-migrator/internal/migrate"
	"github.com/ksred/index-migrator/internal/store"
)

// Server exposes the migrator's admin surface: record inspection, progress
// stats, manual job triggers and prometheus metrics.
type Server struct {
	router      *gin.Engine
	config      *config.Config
	db          *database.Database
	recordStore *store.RecordStore
	discovery   *migrate.DiscoveryJob
	migration   *migrate.MigrationJob
	logger      zerolog.Logger
	httpServer  *http.Server
}

// NewServer creates a new admin API server
func NewServer(
	cfg *config.Config,
	db *database.Database,
	recordStore *store.RecordStore,
	discovery *migrate.DiscoveryJob,
	migration *migrate.MigrationJob,
	gatherer prometheus.Gatherer,
	logger zerolog.Logger,
) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	if len(cfg.HTTP.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.HTTP.AllowOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-API-Key"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "Content-Type"}
	corsConfig.MaxAge = 12 * time.Hour

	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		config:      cfg,
		db:          db,
		recordStore: recordStore,
		discovery:   discovery,
		migration:   migration,
		logger:      logger,
	}

	server.setupRoutes(gatherer)

	return server, nil
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	// Health check and metrics are unauthenticated
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// API v1
	v1 := s.router.Group("/api/v1")
	v1.Use(s.apiKeyMiddleware())
	{
		records := v1.Group("/records")
		{
			records.GET("", s.listRecordsHandler)
			records.GET("/stats", s.recordStatsHandler)
		}

		jobs := v1.Group("/jobs")
		{
			jobs.POST("/discovery", s.runDiscoveryHandler)
			jobs.POST("/migration", s.runMigrationHandler)
		}
	}
}

// Start begins serving on the configured port
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	s.logger.Info().Str("address", addr).Msg("Starting HTTP server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router returns the underlying gin engine (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// LoggerMiddleware logs each HTTP request with structured fields
func LoggerMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		clientIP := c.ClientIP()
		method := c.Request.Method
		statusCode := c.Writer.Status()
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		if raw != "" {
			path = path + "?" + raw
		}

		logger.Info().
			Str("client_ip", clientIP).
			Str("method", method).
			Str("path", path).
			Int("status", statusCode).
			Dur("latency", latency).
			Str("error", errorMessage).
			Msg("HTTP request")
	}
}
