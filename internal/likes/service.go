package likes

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gallery/internal/kafka"

	"github.com/google/uuid"
)

var ErrInvalidInput = errors.New("invalid input")

type Service interface {
	Status(ctx context.Context, itemID, userID string) (Status, error)
	Toggle(ctx context.Context, in ToggleInput) (Status, error)
}

type service struct {
	repo   Repository
	events kafka.Publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, events kafka.Publisher, logger *slog.Logger) Service {
	return &service{repo: repo, events: events, logger: logger, now: time.Now}
}

func (s *service) Status(ctx context.Context, itemID, userID string) (Status, error) {
	if strings.TrimSpace(itemID) == "" {
		return Status{}, ErrInvalidInput
	}
	cnt, err := s.repo.Count(ctx, itemID)
	if err != nil {
		return Status{}, err
	}
	st := Status{Count: cnt}
	// Anonymous viewers get the count only
	if userID != "" {
		if st.Liked, err = s.repo.Exists(ctx, itemID, userID); err != nil {
			return Status{}, err
		}
	}
	return st, nil
}

// Toggle flips the caller's like. The returned Liked is always the state the
// caller asked for; the count is read back after the write.
func (s *service) Toggle(ctx context.Context, in ToggleInput) (Status, error) {
	if strings.TrimSpace(in.ItemID) == "" || strings.TrimSpace(in.UserID) == "" {
		return Status{}, ErrInvalidInput
	}

	var (
		changed bool
		err     error
		evType  string
	)
	if in.CurrentlyLiked {
		evType = kafka.EventLikeRemoved
		changed, err = s.repo.Delete(ctx, in.ItemID, in.UserID)
	} else {
		evType = kafka.EventLikeAdded
		changed, err = s.repo.Insert(ctx, &Like{
			ID:        uuid.New().String(),
			ItemID:    in.ItemID,
			UserID:    in.UserID,
			UserName:  in.DisplayName,
			CreatedAt: s.now(),
		})
	}
	if err != nil {
		return Status{}, err
	}

	cnt, err := s.repo.Count(ctx, in.ItemID)
	if err != nil {
		return Status{}, err
	}

	if changed {
		s.publish(ctx, kafka.EngagementEvent{
			Type:        evType,
			ItemID:      in.ItemID,
			UserID:      in.UserID,
			DisplayName: in.DisplayName,
			LikesCount:  &cnt,
			OccurredAt:  s.now(),
		})
	}

	return Status{Count: cnt, Liked: !in.CurrentlyLiked}, nil
}

func (s *service) publish(ctx context.Context, ev kafka.EngagementEvent) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn("Failed to publish engagement event",
			"type", ev.Type,
			"item_id", ev.ItemID,
			"error", err)
	}
}
