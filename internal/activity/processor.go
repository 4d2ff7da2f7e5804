package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"gallery/internal/kafka"
)

// Outcome tells the consumer what to do with the offset of a message
type Outcome int

const (
	// OutcomeCommit: applied, duplicate or unusable; move past it.
	OutcomeCommit Outcome = iota
	// OutcomeRetry: a dependency is down; redeliver the same message.
	OutcomeRetry
	// OutcomeDeadLetter: retries exhausted; park it on the DLQ and move on.
	OutcomeDeadLetter
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCommit:
		return "commit"
	case OutcomeRetry:
		return "retry"
	case OutcomeDeadLetter:
		return "dead_letter"
	}
	return "unknown"
}

type Processor struct {
	board      Board
	dedup      Deduper
	maxRetries uint64
	interval   time.Duration
	logger     *slog.Logger
}

type ProcessorOption func(*Processor)

// WithRetry sets how often applying an event is retried before it is dead
// lettered, and the first backoff interval.
func WithRetry(maxRetries uint64, interval time.Duration) ProcessorOption {
	return func(p *Processor) {
		p.maxRetries = maxRetries
		p.interval = interval
	}
}

func NewProcessor(board Board, dedup Deduper, logger *slog.Logger, opts ...ProcessorOption) *Processor {
	p := &Processor{
		board:      board,
		dedup:      dedup,
		maxRetries: 3,
		interval:   time.Second,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process applies one raw engagement event to the board
func (p *Processor) Process(ctx context.Context, value []byte) (Outcome, error) {
	var ev kafka.EngagementEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		p.logger.Error("Failed to parse engagement event", "error", err, "raw_value", string(value))
		return OutcomeCommit, nil
	}
	if ev.ID == "" || ev.ItemID == "" {
		p.logger.Error("Engagement event missing id", "type", ev.Type, "item_id", ev.ItemID)
		return OutcomeCommit, nil
	}
	delta, ok := Weight(ev.Type)
	if !ok {
		p.logger.Debug("Ignoring engagement event", "event_id", ev.ID, "type", ev.Type)
		return OutcomeCommit, nil
	}

	seen, err := p.dedup.Seen(ctx, ev.ID)
	if err != nil {
		return OutcomeRetry, err
	}
	if seen {
		p.logger.Warn("Duplicate engagement event, skipping", "event_id", ev.ID, "type", ev.Type)
		return OutcomeCommit, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.interval
	attempt := 0
	err = backoff.RetryNotify(func() error {
		attempt++
		return p.board.Add(ctx, ev.ItemID, delta)
	}, backoff.WithContext(backoff.WithMaxRetries(b, p.maxRetries), ctx), func(err error, wait time.Duration) {
		p.logger.Warn("Failed to apply engagement event, will retry",
			"event_id", ev.ID,
			"attempt", attempt,
			"next_attempt", wait,
			"error", err)
	})
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeRetry, ctx.Err()
		}
		return OutcomeDeadLetter, fmt.Errorf("apply event %s after %d attempts: %w", ev.ID, attempt, err)
	}

	first, err := p.dedup.Mark(ctx, ev.ID)
	if err != nil {
		// already applied; a redelivery would double count, so log and move on
		p.logger.Error("Failed to mark engagement event", "event_id", ev.ID, "error", err)
		return OutcomeCommit, nil
	}
	if !first {
		p.logger.Warn("Engagement event applied by another consumer too", "event_id", ev.ID)
	}

	p.logger.Info("Engagement event applied",
		"event_id", ev.ID,
		"type", ev.Type,
		"item_id", ev.ItemID,
		"delta", delta)
	return OutcomeCommit, nil
}
