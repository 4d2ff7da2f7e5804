// Package gateway is the single entry point in front of the likes and
// comments services: it validates sessions, injects identity headers and
// proxies to instances discovered in Consul.
package gateway

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"gallery/internal/session"
)

const (
	LikesService    = "likes-service"
	CommentsService = "comments-service"
	ActivityService = "activity-service"
	apiPrefix       = "/api"
)

type Config struct {
	AllowedOrigins []string
	// AllowAnonymousReads lets signed-out visitors read counts and comments.
	AllowAnonymousReads bool
}

func SetupRouter(resolver Resolver, sessions session.Manager, logger *slog.Logger, cfg Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(logger))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	proxy := NewProxyHandler(resolver, logger)
	r.GET("/health", proxy.Health)

	api := r.Group(apiPrefix)
	api.Use(SessionAuthMiddleware(sessions, logger, cfg.AllowAnonymousReads))
	{
		likes := api.Group("/likes")
		likes.Any("", proxy.Proxy(LikesService, apiPrefix))
		likes.Any("/*path", proxy.Proxy(LikesService, apiPrefix))

		comments := api.Group("/comments")
		comments.Any("", proxy.Proxy(CommentsService, apiPrefix))
		comments.Any("/*path", proxy.Proxy(CommentsService, apiPrefix))

		api.GET("/trending", proxy.Proxy(ActivityService, apiPrefix))
	}

	return r
}
