package kafka

import (
	"context"
	"log/slog"
	"time"
)

// Engagement event types
const (
	EventLikeAdded      = "like.added"
	EventLikeRemoved    = "like.removed"
	EventCommentCreated = "comment.created"
	EventCommentDeleted = "comment.deleted"
)

// EngagementEvent is the JSON payload published for every confirmed like or
// comment mutation. Downstream consumers (notifications, feed ranking) key on ItemID.
type EngagementEvent struct {
	// ID is unique per event; consumers dedupe on it.
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	ItemID      string    `json:"item_id"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	CommentID   string    `json:"comment_id,omitempty"`
	LikesCount  *int64    `json:"likes_count,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher publishes engagement events. Implementations must not block the
// request path for long; failures are logged by callers, never surfaced to clients.
type Publisher interface {
	Publish(ctx context.Context, event EngagementEvent) error
}

// NopPublisher drops events. Used when Kafka is not configured.
type NopPublisher struct {
	Logger *slog.Logger
}

func (p NopPublisher) Publish(_ context.Context, event EngagementEvent) error {
	if p.Logger != nil {
		p.Logger.Debug("Engagement event dropped (kafka disabled)", "type", event.Type, "item_id", event.ItemID)
	}
	return nil
}
