package comments

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

func SetupRouter(svc Service, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	h := NewHandler(svc, logger)

	r.GET("/health", h.Health)

	g := r.Group("/comments")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.DELETE("/:id", h.Delete)

	return r
}
