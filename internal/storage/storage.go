// Package storage archives generated images in an S3-compatible bucket
// (MinIO in development) and hands out presigned download links.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"gallery/internal/config"
)

var ErrInvalidKey = errors.New("object key cannot be empty")

// Service is what the generation archiver needs from object storage
type Service interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	GeneratePresignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	EnsureBucketExists(ctx context.Context) error
	Health(ctx context.Context) error
}

type Config struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	Region         string
	UseSSL         bool
}

// ConfigFromEnv reads the S3_* variables. PublicEndpoint defaults to
// Endpoint.
func ConfigFromEnv() (Config, error) {
	if err := config.ValidateEnv([]string{"S3_ENDPOINT", "S3_ACCESS_KEY", "S3_SECRET_KEY", "S3_BUCKET_NAME"}); err != nil {
		return Config{}, err
	}
	cfg := Config{
		Endpoint:       config.GetEnvOrDefault("S3_ENDPOINT", ""),
		PublicEndpoint: config.GetEnvOrDefault("S3_PUBLIC_ENDPOINT", ""),
		AccessKey:      config.GetEnvOrDefault("S3_ACCESS_KEY", ""),
		SecretKey:      config.GetEnvOrDefault("S3_SECRET_KEY", ""),
		Bucket:         config.GetEnvOrDefault("S3_BUCKET_NAME", ""),
		Region:         config.GetEnvOrDefault("S3_REGION", "us-east-1"),
		UseSSL:         config.GetEnvBool("S3_USE_SSL", false),
	}
	if cfg.PublicEndpoint == "" {
		cfg.PublicEndpoint = cfg.Endpoint
	}
	return cfg, nil
}

func (c Config) endpointURL(host string) string {
	if strings.Contains(host, "://") {
		return host
	}
	if c.UseSSL {
		return "https://" + host
	}
	return "http://" + host
}

type service struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	logger    *slog.Logger
}

func New(ctx context.Context, cfg Config, logger *slog.Logger) (Service, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := newClient(awsCfg, cfg.endpointURL(cfg.Endpoint))

	// Presigned links are handed to browsers, so they are signed against the
	// public host.
	presignClient := client
	if cfg.PublicEndpoint != "" && cfg.PublicEndpoint != cfg.Endpoint {
		presignClient = newClient(awsCfg, cfg.endpointURL(cfg.PublicEndpoint))
	}

	logger.Info("Object storage configured",
		"endpoint", cfg.Endpoint,
		"public_endpoint", cfg.PublicEndpoint,
		"bucket", cfg.Bucket,
	)

	return &service{
		client:    client,
		presigner: s3.NewPresignClient(presignClient),
		bucket:    cfg.Bucket,
		logger:    logger,
	}, nil
}

// newClient uses path-style addressing, which MinIO requires
func newClient(awsCfg aws.Config, endpoint string) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
}

func (s *service) EnsureBucketExists(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err == nil {
		return nil
	}
	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("Created bucket", "bucket", s.bucket)
	return nil
}

func (s *service) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if key == "" {
		return ErrInvalidKey
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (s *service) GeneratePresignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive")
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign download for %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *service) Health(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("storage health check failed: %w", err)
	}
	return nil
}
