// Package api exposes StreamProvider lifecycle and stream creation over
// HTTP, mirroring the teacher's internal/api pause/resume handler shape
// (gin.New() + Recovery + a small logging middleware + permissive CORS)
// but scoped to streamcore's four operations instead of a movie/show
// library.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Registry is the subset of the application the API needs: lookup and
// creation of StreamProviders by infohash. Kept as an interface so the
// API package does not import the engine adapter directly.
type Registry interface {
	// Provider returns the provider for infohash, or ok=false if none is
	// registered.
	Provider(infohash string) (provider ProviderHandle, ok bool)
	// OpenMagnet resolves a magnet URI into a new provider, registers it
	// under its infohash, and returns it.
	OpenMagnet(ctx *gin.Context, magnetURI string) (ProviderHandle, error)
}

// Server is the control-plane HTTP API.
type Server struct {
	router   *gin.Engine
	registry Registry
}

// NewServer creates a new control API server.
func NewServer(registry Registry) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:   gin.New(),
		registry: registry,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())

	s.router.Use(func(c *gin.Context) {
		c.Next()
		slog.Info("api request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	})

	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})
}

func (s *Server) setupRoutes() {
	streams := s.router.Group("/streams")

	streams.POST("/open", s.openMagnet)

	streams.POST("/:infohash/start", s.start)
	streams.POST("/:infohash/pause", s.pause)
	streams.POST("/:infohash/resume", s.resume)
	streams.POST("/:infohash/stop", s.stop)
	streams.GET("/:infohash/status", s.status)

	streams.POST("/:infohash/files/create", s.createStream)
	streams.GET("/:infohash/files/http", s.createHTTPStream)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
