package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallery/internal/consul"
	"gallery/internal/session"
)

type mockSessionManager struct {
	getFunc func(ctx context.Context, sessionID string) (*session.Session, error)
}

func (m *mockSessionManager) Get(ctx context.Context, sessionID string) (*session.Session, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, sessionID)
	}
	return nil, session.ErrSessionNotFound
}

func (m *mockSessionManager) Create(ctx context.Context, userID, displayName string, ttl time.Duration) (*session.Session, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSessionManager) Refresh(ctx context.Context, sessionID string, ttl time.Duration) error {
	return nil
}

func (m *mockSessionManager) Delete(ctx context.Context, sessionID string) error {
	return nil
}

type staticResolver map[string]consul.Instance

func (s staticResolver) Resolve(service string) (consul.Instance, error) {
	inst, ok := s[service]
	if !ok {
		return consul.Instance{}, consul.ErrNoInstances
	}
	return inst, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validSessions() *mockSessionManager {
	return &mockSessionManager{
		getFunc: func(ctx context.Context, sessionID string) (*session.Session, error) {
			if sessionID != "good" {
				return nil, session.ErrSessionNotFound
			}
			return &session.Session{
				ID:          sessionID,
				UserID:      "user_alex",
				DisplayName: "Alex",
				ExpiresAt:   time.Now().Add(time.Hour),
			}, nil
		},
	}
}

// echoUpstream reports what the upstream saw
func echoUpstream(t *testing.T) consul.Instance {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"path":       r.URL.Path,
			"query":      r.URL.RawQuery,
			"user_id":    r.Header.Get(HeaderUserID),
			"user_name":  r.Header.Get(HeaderUserName),
			"request_id": r.Header.Get(HeaderRequestID),
		})
	}))
	t.Cleanup(srv.Close)
	return instanceFor(t, srv.URL)
}

func instanceFor(t *testing.T, raw string) consul.Instance {
	u, err := url.Parse(raw)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return consul.Instance{Address: host, Port: port}
}

func newTestGateway(t *testing.T, resolver Resolver, sessions session.Manager, anonymousReads bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetupRouter(resolver, sessions, discardLogger(), Config{AllowAnonymousReads: anonymousReads})
}

// closeNotifyRecorder satisfies http.CloseNotifier, which gin's writer
// asserts on when ReverseProxy sees a request context that never ends.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
}

func (closeNotifyRecorder) CloseNotify() <-chan bool {
	return make(chan bool)
}

func serve(h http.Handler, w *httptest.ResponseRecorder, req *http.Request) {
	h.ServeHTTP(closeNotifyRecorder{w}, req)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	var out map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

func TestGateway_ProxiesWithIdentityAndStrippedPrefix(t *testing.T) {
	up := echoUpstream(t)
	r := newTestGateway(t, staticResolver{LikesService: up}, validSessions(), false)

	req := httptest.NewRequest(http.MethodGet, "/api/likes/status?itemId=img-1", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "good"})
	req.Header.Set(HeaderRequestID, "req-42")
	w := httptest.NewRecorder()
	serve(r, w, req)

	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	assert.Equal(t, "/likes/status", got["path"])
	assert.Equal(t, "itemId=img-1", got["query"])
	assert.Equal(t, "user_alex", got["user_id"])
	assert.Equal(t, "Alex", got["user_name"])
	assert.Equal(t, "req-42", got["request_id"])
	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
}

func TestGateway_GroupRootIsProxied(t *testing.T) {
	up := echoUpstream(t)
	r := newTestGateway(t, staticResolver{CommentsService: up}, validSessions(), false)

	req := httptest.NewRequest(http.MethodPost, "/api/comments", strings.NewReader(`{}`))
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "good"})
	w := httptest.NewRecorder()
	serve(r, w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/comments", decode(t, w)["path"])
}

func TestGateway_TrendingIsPublicWhenAnonymousReadsAllowed(t *testing.T) {
	up := echoUpstream(t)
	r := newTestGateway(t, staticResolver{ActivityService: up}, validSessions(), true)

	w := httptest.NewRecorder()
	serve(r, w, httptest.NewRequest(http.MethodGet, "/api/trending?limit=5", nil))

	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	assert.Equal(t, "/trending", got["path"])
	assert.Equal(t, "limit=5", got["query"])
}

func TestGateway_SpoofedIdentityHeadersDropped(t *testing.T) {
	up := echoUpstream(t)
	r := newTestGateway(t, staticResolver{CommentsService: up}, validSessions(), true)

	req := httptest.NewRequest(http.MethodGet, "/api/comments?itemId=img-1", nil)
	req.Header.Set(HeaderUserID, "someone_else")
	req.Header.Set(HeaderUserName, "Mallory")
	w := httptest.NewRecorder()
	serve(r, w, req)

	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	assert.Empty(t, got["user_id"])
	assert.Empty(t, got["user_name"])
}

func TestGateway_WritesRequireSession(t *testing.T) {
	up := echoUpstream(t)
	r := newTestGateway(t, staticResolver{LikesService: up}, validSessions(), true)

	req := httptest.NewRequest(http.MethodPost, "/api/likes", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	serve(r, w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/likes", strings.NewReader(`{}`))
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "stale"})
	w = httptest.NewRecorder()
	serve(r, w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGateway_ReadsRequireSessionWhenAnonymousDisabled(t *testing.T) {
	up := echoUpstream(t)
	r := newTestGateway(t, staticResolver{LikesService: up}, validSessions(), false)

	req := httptest.NewRequest(http.MethodGet, "/api/likes/status?itemId=x", nil)
	w := httptest.NewRecorder()
	serve(r, w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGateway_SessionStoreFailureIs503(t *testing.T) {
	sessions := &mockSessionManager{
		getFunc: func(ctx context.Context, sessionID string) (*session.Session, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}
	r := newTestGateway(t, staticResolver{}, sessions, true)

	req := httptest.NewRequest(http.MethodGet, "/api/likes/status", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "any"})
	w := httptest.NewRecorder()
	serve(r, w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGateway_UnknownServiceIs503(t *testing.T) {
	r := newTestGateway(t, staticResolver{}, validSessions(), false)

	req := httptest.NewRequest(http.MethodGet, "/api/likes/status", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "good"})
	w := httptest.NewRecorder()
	serve(r, w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGateway_UpstreamDownIs502(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	dead := instanceFor(t, srv.URL)
	srv.Close()
	r := newTestGateway(t, staticResolver{LikesService: dead}, validSessions(), false)

	req := httptest.NewRequest(http.MethodGet, "/api/likes/status", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "good"})
	w := httptest.NewRecorder()
	serve(r, w, req)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "bad gateway")
}

func TestGateway_CORSPreflight(t *testing.T) {
	r := newTestGateway(t, staticResolver{}, validSessions(), false)

	req := httptest.NewRequest(http.MethodOptions, "/api/likes", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	serve(r, w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestGateway_Health(t *testing.T) {
	r := newTestGateway(t, staticResolver{}, validSessions(), false)

	w := httptest.NewRecorder()
	serve(r, w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "api-gateway")
}

func TestStripPath(t *testing.T) {
	assert.Equal(t, "/likes/status", stripPath("/api/likes/status", "/api"))
	assert.Equal(t, "/", stripPath("/api", "/api"))
	assert.Equal(t, "/likes", stripPath("/likes", ""))
}
