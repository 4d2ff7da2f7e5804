package gateway

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"gallery/internal/consul"
)

// Resolver picks an upstream instance for a service name
type Resolver interface {
	Resolve(service string) (consul.Instance, error)
}

type ProxyHandler struct {
	resolver  Resolver
	logger    *slog.Logger
	transport http.RoundTripper
}

func NewProxyHandler(resolver Resolver, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		resolver: resolver,
		logger:   logger,
		transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConnsPerHost:   32,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: 15 * time.Second,
		},
	}
}

// Proxy forwards to serviceName with stripPrefix removed from the path, so
// /api/likes/status is served as /likes/status upstream.
func (h *ProxyHandler) Proxy(serviceName, stripPrefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		instance, err := h.resolver.Resolve(serviceName)
		if err != nil {
			h.logger.Error("Failed to resolve upstream",
				"service", serviceName,
				"error", err,
				"request_id", c.GetString("request_id"),
			)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error":   fmt.Sprintf("service %s unavailable", serviceName),
			})
			return
		}

		target, err := url.Parse(instance.BaseURL())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   "internal server error",
			})
			return
		}
		c.Set("upstream_service", serviceName)

		proxy := &httputil.ReverseProxy{
			Transport: h.transport,
			Rewrite: func(pr *httputil.ProxyRequest) {
				pr.SetURL(target)
				pr.Out.URL.Path = stripPath(pr.In.URL.Path, stripPrefix)
				pr.Out.URL.RawPath = ""
				pr.Out.Host = target.Host
				pr.SetXForwarded()
			},
			ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
				h.logger.Error("Proxy error",
					"service", serviceName,
					"upstream", target.Host,
					"error", err,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(`{"success":false,"error":"bad gateway"}`))
			},
		}
		proxy.ServeHTTP(c.Writer, c.Request)
	}
}

func stripPath(path, prefix string) string {
	if prefix == "" {
		return path
	}
	p := strings.TrimPrefix(path, prefix)
	if p == "" || p[0] != '/' {
		p = "/" + p
	}
	return p
}

func (h *ProxyHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "api-gateway",
	})
}
