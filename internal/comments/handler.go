package comments

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

// callerID prefers the gateway-injected identity over the body one
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

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, ErrorResponse{Success: false, Error: msg})
}

// GET /comments?itemId=
func (h *Handler) List(c *gin.Context) {
	itemID := c.Query("itemId")
	if itemID == "" {
		fail(c, http.StatusBadRequest, "itemId is required")
		return
	}

	list, err := h.svc.List(c.Request.Context(), itemID)
	if err != nil {
		h.logger.Error("Failed to list comments", "item_id", itemID, "error", err)
		fail(c, http.StatusInternalServerError, "failed to list comments")
		return
	}
	c.JSON(http.StatusOK, ListResponse{Success: true, Data: list})
}

// POST /comments  {itemId, userId, displayName, text}
func (h *Handler) Create(c *gin.Context) {
	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	userID, ok := callerID(c, req.UserID)
	if !ok {
		fail(c, http.StatusForbidden, "user mismatch")
		return
	}
	name := req.DisplayName
	if name == "" {
		name = c.GetHeader("X-User-Name")
	}

	created, err := h.svc.Create(c.Request.Context(), CreateInput{
		ItemID:      req.ItemID,
		UserID:      userID,
		DisplayName: name,
		Text:        req.Text,
	})
	if errors.Is(err, ErrInvalidInput) {
		fail(c, http.StatusBadRequest, "comment text, itemId and userId are required")
		return
	}
	if err != nil {
		h.logger.Error("Failed to create comment", "item_id", req.ItemID, "user_id", userID, "error", err)
		fail(c, http.StatusInternalServerError, "failed to create comment")
		return
	}
	c.JSON(http.StatusCreated, ListResponse{Success: true, Data: []Comment{*created}})
}

// DELETE /comments/:id  {userId}
func (h *Handler) Delete(c *gin.Context) {
	var req DeleteCommentRequest
	// Body is optional when the gateway supplies the identity
	_ = c.ShouldBindJSON(&req)

	userID, ok := callerID(c, req.UserID)
	if !ok {
		fail(c, http.StatusForbidden, "user mismatch")
		return
	}
	if userID == "" {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := c.Param("id")
	err := h.svc.Delete(c.Request.Context(), id, userID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.Is(err, ErrCommentNotFound):
		fail(c, http.StatusNotFound, "comment not found")
	case errors.Is(err, ErrForbidden):
		fail(c, http.StatusForbidden, "you can only delete your own comments")
	case errors.Is(err, ErrInvalidInput):
		fail(c, http.StatusBadRequest, "userId is required")
	default:
		h.logger.Error("Failed to delete comment", "comment_id", id, "user_id", userID, "error", err)
		fail(c, http.StatusInternalServerError, "failed to delete comment")
	}
}

// GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "comments-service",
	})
}
