// Package httpapi provides the HTTP control API of the player.
package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/osa030/tunebox/internal/app/session"
	"github.com/osa030/tunebox/internal/infra/config"
	"github.com/osa030/tunebox/internal/infra/metrics"
)

// Server routes API requests to the session manager.
type Server struct {
	cfg      *config.Config
	manager  *session.Manager
	tokens   *TokenIssuer
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	router   *gin.Engine
}

// New creates the API server. Metrics are served from gatherer.
func New(cfg *config.Config, manager *session.Manager, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	if zerolog.GlobalLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		cfg:      cfg,
		manager:  manager,
		tokens:   NewTokenIssuer(cfg.Auth.JWTSecret, cfg.TokenTTL()),
		metrics:  m,
		gatherer: gatherer,
		router:   gin.New(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}

	s.router.Use(gin.Recovery(), RequestLogger(s.metrics), cors.New(corsConfig))
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "tunebox"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/auth/signup", s.signup)
		v1.POST("/auth/login", s.login)

		protected := v1.Group("/")
		protected.Use(s.RequireAuth())
		{
			protected.POST("/auth/logout", s.logout)
			protected.GET("/auth/me", s.me)

			player := protected.Group("/")
			player.Use(s.requireSession())
			{
				player.GET("/events", s.events)
				player.GET("/player", s.status)
				player.POST("/player/toggle", s.toggle)
				player.POST("/player/next", s.next)
				player.POST("/player/previous", s.previous)
				player.POST("/player/select", s.selectTrack)
				player.POST("/player/activate", s.activate)
				player.POST("/player/seek", s.seek)

				player.GET("/playlist", s.playlist)

				player.GET("/favorites", s.favorites)
				player.PUT("/favorites/:id", s.addFavorite)
				player.DELETE("/favorites/:id", s.removeFavorite)
			}
		}
	}
}

// requireSession ensures the token belongs to the user of the open session.
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := s.manager.CurrentUser()
		if err != nil || u.Email != c.GetString(contextKeyEmail) {
			s.abortWithError(c, session.ErrNoSession)
			return
		}
		c.Next()
	}
}
