package likes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc    Service
	logger *slog.Logger
}

func NewHandler(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// callerID prefers the identity injected by the gateway. A body user id that
// disagrees with it is rejected.
func callerID(c *gin.Context, bodyUserID string) (string, bool) {
	header := c.GetHeader("X-User-ID")
	if header == "" {
		return bodyUserID, true
	}
	if bodyUserID != "" && bodyUserID != header {
		return "", false
	}
	return header, true
}

// GET /likes/status?itemId=&userId=
func (h *Handler) Status(c *gin.Context) {
	itemID := c.Query("itemId")
	if itemID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "itemId is required"})
		return
	}
	// Per-user state only for the authenticated caller; an anonymous
	// ?userId= gets the count alone.
	userID := c.GetHeader("X-User-ID")
	if q := c.Query("userId"); userID != "" && q != "" && q != userID {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "user mismatch"})
		return
	}

	st, err := h.svc.Status(c.Request.Context(), itemID, userID)
	if err != nil {
		h.logger.Error("Failed to load like status", "item_id", itemID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load like status"})
		return
	}
	c.JSON(http.StatusOK, StatusResponse{Success: true, IsLiked: st.Liked, LikesCount: st.Count})
}

// POST /likes  {itemId, userId, isLiked, displayName}
func (h *Handler) Toggle(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
		return
	}
	userID, ok := callerID(c, req.UserID)
	if !ok {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "user mismatch"})
		return
	}
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	name := req.DisplayName
	if name == "" {
		name = c.GetHeader("X-User-Name")
	}

	st, err := h.svc.Toggle(c.Request.Context(), ToggleInput{
		ItemID:         req.ItemID,
		UserID:         userID,
		DisplayName:    name,
		CurrentlyLiked: req.IsLiked,
	})
	if errors.Is(err, ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("Failed to toggle like", "item_id", req.ItemID, "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to toggle like"})
		return
	}
	c.JSON(http.StatusOK, StatusResponse{Success: true, IsLiked: st.Liked, LikesCount: st.Count})
}

// GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "likes-service",
	})
}
