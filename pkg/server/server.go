package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"jobradar/pkg/aggregate"
	"jobradar/pkg/export"
	"jobradar/pkg/recommend"
	"jobradar/pkg/registry"
	"jobradar/pkg/storage"
)

// Server exposes the aggregated postings over HTTP.
type Server struct {
	store       *storage.Store
	registry    *registry.Registry
	pipeline    *aggregate.Pipeline
	recommender *recommend.Recommender
	exporter    *export.Exporter
	logger      *logrus.Logger
	http        *http.Server
}

// New wires the API over the given components and builds the router.
func New(addr string, allowedOrigins []string, store *storage.Store, reg *registry.Registry, pipeline *aggregate.Pipeline, exporter *export.Exporter, logger *logrus.Logger) *Server {
	s := &Server{
		store:       store,
		registry:    reg,
		pipeline:    pipeline,
		recommender: recommend.NewRecommender(store),
		exporter:    exporter,
		logger:      logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}
	router.Use(cors.New(corsConfig))

	api := router.Group("/api/v1")
	{
		api.GET("/health", s.handleHealth)

		api.GET("/jobs", s.handleSearchJobs)
		api.GET("/jobs/stats", s.handleJobStats)
		api.GET("/jobs/:id", s.handleGetJob)

		api.GET("/sources", s.handleListSources)

		api.POST("/aggregate", s.handleTriggerAggregation)
		api.GET("/aggregate/last", s.handleLastAggregation)

		api.GET("/users/:id/bookmarks", s.handleListBookmarks)
		api.POST("/users/:id/bookmarks/:jobId", s.handleAddBookmark)
		api.DELETE("/users/:id/bookmarks/:jobId", s.handleRemoveBookmark)

		api.GET("/users/:id/searches", s.handleListSavedSearches)
		api.POST("/users/:id/searches", s.handleCreateSavedSearch)
		api.DELETE("/users/:id/searches/:searchId", s.handleDeleteSavedSearch)

		api.POST("/recommendations", s.handleRecommendations)

		api.GET("/export", s.handleExport)
	}

	s.http = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler returns the underlying HTTP handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Infof("HTTP server listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}
