package generation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"gallery/internal/storage"
)

const maxImageBytes = 25 << 20

type Archived struct {
	PredictionID string
	Key          string
	URL          string
	ContentType  string
	Size         int64
}

// Archiver copies the first output image of a prediction into object storage.
// Hosted outputs expire, so the presigned link is what gets shared.
type Archiver struct {
	store   storage.Service
	http    *http.Client
	linkTTL time.Duration
	logger  *slog.Logger
}

func NewArchiver(store storage.Service, linkTTL time.Duration, logger *slog.Logger) *Archiver {
	if linkTTL <= 0 {
		linkTTL = 24 * time.Hour
	}
	return &Archiver{
		store:   store,
		http:    &http.Client{Timeout: 60 * time.Second},
		linkTTL: linkTTL,
		logger:  logger,
	}
}

func (a *Archiver) Archive(ctx context.Context, p *Prediction) (Archived, error) {
	if p == nil || len(p.Output) == 0 || p.Output[0] == "" {
		return Archived{}, ErrNoOutput
	}
	src := p.Output[0]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return Archived{}, fmt.Errorf("output url %q: %w", src, err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return Archived{}, fmt.Errorf("download output: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Archived{}, fmt.Errorf("download output: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return Archived{}, fmt.Errorf("download output: %w", err)
	}
	if len(data) > maxImageBytes {
		return Archived{}, fmt.Errorf("output image exceeds %d bytes", maxImageBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mt
	} else {
		contentType = http.DetectContentType(data)
	}
	key := objectKey(p.ID, src, contentType)

	if err := a.store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return Archived{}, err
	}
	link, err := a.store.GeneratePresignedDownloadURL(ctx, key, a.linkTTL)
	if err != nil {
		return Archived{}, err
	}

	a.logger.Info("Prediction archived",
		"prediction_id", p.ID,
		"key", key,
		"size", len(data),
		"content_type", contentType,
	)
	return Archived{
		PredictionID: p.ID,
		Key:          key,
		URL:          link,
		ContentType:  contentType,
		Size:         int64(len(data)),
	}, nil
}

// objectKey is predictions/<id><ext>, ext taken from the source URL or the
// content type
func objectKey(id, src, contentType string) string {
	ext := strings.ToLower(path.Ext(strings.SplitN(src, "?", 2)[0]))
	if ext == "" || len(ext) > 5 {
		ext = ""
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	return "predictions/" + id + ext
}
