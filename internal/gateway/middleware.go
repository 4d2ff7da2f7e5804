package gateway

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gallery/internal/session"
)

// Identity headers read by the likes and comments services
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserName  = "X-User-Name"
	HeaderRequestID = "X-Request-ID"
)

// SessionAuthMiddleware resolves the session cookie into identity headers.
// Client-supplied identity headers are always dropped. When allowAnonymousReads
// is set, GET and HEAD requests without a usable session pass through
// unauthenticated; everything else gets 401.
func SessionAuthMiddleware(sessions session.Manager, logger *slog.Logger, allowAnonymousReads bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Header.Del(HeaderUserID)
		c.Request.Header.Del(HeaderUserName)

		anonymousOK := allowAnonymousReads &&
			(c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead)

		sessionID, err := c.Cookie(session.CookieName)
		if err != nil || sessionID == "" {
			if anonymousOK {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "unauthorized: no session cookie",
			})
			return
		}

		sess, err := sessions.Get(c.Request.Context(), sessionID)
		if err != nil {
			rejected := errors.Is(err, session.ErrSessionNotFound) ||
				errors.Is(err, session.ErrSessionExpired) ||
				errors.Is(err, session.ErrInvalidSession)
			if !rejected {
				logger.Error("Session store unavailable",
					"error", err,
					"request_id", c.GetString("request_id"),
				)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"success": false,
					"error":   "session store unavailable",
				})
				return
			}
			logger.Warn("Invalid session",
				"error", err.Error(),
				"request_id", c.GetString("request_id"),
			)
			if anonymousOK {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "unauthorized: invalid session",
			})
			return
		}

		c.Set("user_id", sess.UserID)
		c.Request.Header.Set(HeaderUserID, sess.UserID)
		if sess.DisplayName != "" {
			c.Set("display_name", sess.DisplayName)
			c.Request.Header.Set(HeaderUserName, sess.DisplayName)
		}

		c.Next()
	}
}

// RequestIDMiddleware keeps an incoming X-Request-ID or generates one, and
// forwards it upstream.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Request.Header.Set(HeaderRequestID, requestID)
		c.Writer.Header().Set(HeaderRequestID, requestID)
		c.Next()
	}
}

// LoggingMiddleware logs every request with level by status class
func LoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"response_size", c.Writer.Size(),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			attrs = append(attrs, "query", q)
		}
		if userID, ok := c.Get("user_id"); ok {
			attrs = append(attrs, "user_id", userID)
		}
		if upstream, ok := c.Get("upstream_service"); ok {
			attrs = append(attrs, "upstream_service", upstream)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		switch {
		case status >= 500:
			logger.Error("Request failed - server error", attrs...)
		case status >= 400:
			logger.Warn("Request failed - client error", attrs...)
		default:
			logger.Info("Request completed", attrs...)
		}
	}
}
