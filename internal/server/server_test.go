package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("TEST_SERVICE_PORT", "9090")
	t.Setenv("SERVER_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := ConfigFromEnv("TEST_SERVICE_PORT", 8080)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
}

func TestConfigFromEnv_InvalidPort(t *testing.T) {
	t.Setenv("TEST_SERVICE_PORT", "70000")
	_, err := ConfigFromEnv("TEST_SERVICE_PORT", 8080)
	assert.Error(t, err)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	srv := New(Config{ShutdownTimeout: time.Second}, handler, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServe_ReturnsListenerError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	srv := New(Config{}, http.NotFoundHandler(), discardLogger())
	err = srv.Serve(context.Background(), ln)
	assert.Error(t, err)
}
