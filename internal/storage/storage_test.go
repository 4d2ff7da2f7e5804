package storage

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Endpoint:       "minio:9000",
		PublicEndpoint: "localhost:9000",
		AccessKey:      "minio",
		SecretKey:      "minio123",
		Bucket:         "generated",
		Region:         "us-east-1",
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("S3_ENDPOINT", "minio:9000")
	t.Setenv("S3_ACCESS_KEY", "minio")
	t.Setenv("S3_SECRET_KEY", "minio123")
	t.Setenv("S3_BUCKET_NAME", "generated")
	t.Setenv("S3_PUBLIC_ENDPOINT", "")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "minio:9000", cfg.PublicEndpoint)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.False(t, cfg.UseSSL)
}

func TestConfigFromEnv_MissingVars(t *testing.T) {
	t.Setenv("S3_ENDPOINT", "")
	t.Setenv("S3_ACCESS_KEY", "")
	t.Setenv("S3_SECRET_KEY", "x")
	t.Setenv("S3_BUCKET_NAME", "b")

	_, err := ConfigFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_ENDPOINT")
}

func TestEndpointURL(t *testing.T) {
	cfg := Config{}
	assert.Equal(t, "http://minio:9000", cfg.endpointURL("minio:9000"))
	cfg.UseSSL = true
	assert.Equal(t, "https://s3.example.com", cfg.endpointURL("s3.example.com"))
	assert.Equal(t, "http://already", cfg.endpointURL("http://already"))
}

func TestPresignedDownloadUsesPublicEndpoint(t *testing.T) {
	svc, err := New(context.Background(), testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	raw, err := svc.GeneratePresignedDownloadURL(context.Background(), "predictions/p1.png", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/generated/predictions/p1.png", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
}

func TestKeyAndTTLValidation(t *testing.T) {
	svc, err := New(context.Background(), testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, err = svc.GeneratePresignedDownloadURL(context.Background(), "", time.Minute)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = svc.GeneratePresignedDownloadURL(context.Background(), "k", 0)
	assert.Error(t, err)

	err = svc.Upload(context.Background(), "", strings.NewReader("x"), 1, "image/png")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
