package activity

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultTopN = 20
	maxTopN     = 100
)

// Pinger reports whether the board backend is reachable
type Pinger func(ctx context.Context) error

type Handler struct {
	board  Board
	ping   Pinger
	logger *slog.Logger
}

func NewHandler(board Board, ping Pinger, logger *slog.Logger) *Handler {
	return &Handler{board: board, ping: ping, logger: logger}
}

// GET /trending?limit=N
func (h *Handler) Trending(c *gin.Context) {
	n := defaultTopN
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "limit must be a positive integer"})
			return
		}
		n = min(v, maxTopN)
	}

	items, err := h.board.Top(c.Request.Context(), n)
	if err != nil {
		h.logger.Error("Trending read failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load trending items"})
		return
	}
	c.JSON(http.StatusOK, TrendingResponse{Success: true, Items: items})
}

// GET /health
func (h *Handler) Health(c *gin.Context) {
	if h.ping != nil {
		if err := h.ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": ServiceName,
				"error":   err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": ServiceName,
	})
}

func SetupRouter(board Board, ping Pinger, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	h := NewHandler(board, ping, logger)

	r.GET("/health", h.Health)
	r.GET("/trending", h.Trending)

	return r
}
