package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Getter reads the current state of a prediction
type Getter interface {
	Get(ctx context.Context, id string) (*Prediction, error)
}

type PollConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Deadline bounds the whole wait, including in-flight requests.
	Deadline time.Duration
}

func DefaultPollConfig() PollConfig {
	return PollConfig{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Deadline:        2 * time.Minute,
	}
}

type Poller struct {
	getter Getter
	cfg    PollConfig
	logger *slog.Logger
}

func NewPoller(getter Getter, cfg PollConfig, logger *slog.Logger) *Poller {
	d := DefaultPollConfig()
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = d.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = d.MaxInterval
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = d.Deadline
	}
	return &Poller{getter: getter, cfg: cfg, logger: logger}
}

var errNotReady = errors.New("prediction still running")

// Wait polls until the prediction reaches a terminal status. Failed and
// canceled predictions, and non-temporary API errors, stop polling at once.
func (p *Poller) Wait(ctx context.Context, id string) (*Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Deadline)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialInterval
	b.MaxInterval = p.cfg.MaxInterval
	b.MaxElapsedTime = 0 // the context deadline stops us

	var last *Prediction
	op := func() error {
		pred, err := p.getter.Get(ctx, id)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && !apiErr.Temporary() {
				return backoff.Permanent(err)
			}
			return err
		}
		last = pred
		switch pred.Status {
		case StatusSucceeded:
			return nil
		case StatusFailed:
			return backoff.Permanent(&FailedError{ID: id, Reason: pred.Error})
		case StatusCanceled:
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrCanceled, id))
		}
		return errNotReady
	}

	notify := func(err error, wait time.Duration) {
		if errors.Is(err, errNotReady) {
			p.logger.Debug("Prediction pending", "prediction_id", id, "status", last.Status, "next_poll", wait)
			return
		}
		p.logger.Warn("Prediction poll failed, retrying", "prediction_id", id, "error", err, "next_poll", wait)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	switch {
	case err == nil:
		return last, nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errNotReady):
		return last, fmt.Errorf("%w: %s after %s", ErrTimeout, id, p.cfg.Deadline)
	}
	return last, err
}
