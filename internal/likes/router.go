package likes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

func SetupRouter(svc Service, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	h := NewHandler(svc, logger)

	// Health
	r.GET("/health", h.Health)

	// Likes
	g := r.Group("/likes")
	g.GET("/status", h.Status)
	g.POST("", h.Toggle)

	return r
}
