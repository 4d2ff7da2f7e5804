package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gallery/internal/config"
)

type ClientConfig struct {
	BaseURL string
	Token   string
	// Version is the model version the API runs for every prediction.
	Version string
	Timeout time.Duration
}

// ClientConfigFromEnv reads PREDICTION_API_URL, PREDICTION_API_TOKEN and
// PREDICTION_MODEL_VERSION.
func ClientConfigFromEnv() (ClientConfig, error) {
	if err := config.ValidateEnv([]string{"PREDICTION_API_TOKEN", "PREDICTION_MODEL_VERSION"}); err != nil {
		return ClientConfig{}, err
	}
	return ClientConfig{
		BaseURL: config.GetEnvOrDefault("PREDICTION_API_URL", "https://api.replicate.com/v1"),
		Token:   config.GetEnvOrDefault("PREDICTION_API_TOKEN", ""),
		Version: config.GetEnvOrDefault("PREDICTION_MODEL_VERSION", ""),
		Timeout: config.GetEnvDuration("PREDICTION_HTTP_TIMEOUT", 30*time.Second),
	}, nil
}

// APIError is a non-2xx answer from the prediction API
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("prediction api: status %d: %s", e.Status, e.Detail)
}

// Temporary is true for rate limiting and server-side failures
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

type Client struct {
	cfg  ClientConfig
	http *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: timeout}}
}

func (c *Client) Create(ctx context.Context, in CreateInput) (*Prediction, error) {
	in.Prompt = strings.TrimSpace(in.Prompt)
	if in.Prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}
	body, err := json.Marshal(map[string]any{
		"version": c.cfg.Version,
		"input":   in,
	})
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, "/predictions", body)
}

func (c *Client) Get(ctx context.Context, id string) (*Prediction, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: prediction id is required", ErrInvalidInput)
	}
	return c.do(ctx, http.MethodGet, "/predictions/"+id, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*Prediction, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prediction api %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read prediction response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var problem struct {
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(raw, &problem)
		if problem.Detail == "" {
			problem.Detail = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Status: resp.StatusCode, Detail: problem.Detail}
	}

	var p Prediction
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode prediction: %w", err)
	}
	return &p, nil
}
