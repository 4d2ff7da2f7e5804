package comments

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gallery/internal/kafka"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrCommentNotFound = errors.New("comment not found")
	ErrForbidden       = errors.New("not the comment owner")
)

type Service interface {
	List(ctx context.Context, itemID string) ([]Comment, error)
	Create(ctx context.Context, in CreateInput) (*Comment, error)
	Delete(ctx context.Context, commentID, userID string) error
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

func (s *service) List(ctx context.Context, itemID string) ([]Comment, error) {
	if strings.TrimSpace(itemID) == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByItem(ctx, itemID, PageSize)
}

func (s *service) Create(ctx context.Context, in CreateInput) (*Comment, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" || strings.TrimSpace(in.ItemID) == "" || strings.TrimSpace(in.UserID) == "" {
		return nil, ErrInvalidInput
	}

	c := &Comment{
		ID:        uuid.New().String(),
		ItemID:    in.ItemID,
		UserID:    in.UserID,
		UserName:  in.DisplayName,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.publish(ctx, kafka.EngagementEvent{
		Type:        kafka.EventCommentCreated,
		ItemID:      c.ItemID,
		UserID:      c.UserID,
		DisplayName: c.UserName,
		CommentID:   c.ID,
		OccurredAt:  c.CreatedAt,
	})
	return c, nil
}

// Delete removes a comment owned by userID. Ownership is checked here, not
// trusted from the client.
func (s *service) Delete(ctx context.Context, commentID, userID string) error {
	if userID == "" {
		return ErrInvalidInput
	}
	if _, err := uuid.Parse(commentID); err != nil {
		return ErrCommentNotFound
	}

	existing, err := s.repo.Get(ctx, commentID)
	if err != nil {
		return err
	}
	if existing.UserID != userID {
		return ErrForbidden
	}

	deleted, err := s.repo.Delete(ctx, commentID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		// Lost a race with another delete
		return ErrCommentNotFound
	}

	s.publish(ctx, kafka.EngagementEvent{
		Type:       kafka.EventCommentDeleted,
		ItemID:     existing.ItemID,
		UserID:     userID,
		CommentID:  commentID,
		OccurredAt: s.now().UTC(),
	})
	return nil
}

func (s *service) publish(ctx context.Context, ev kafka.EngagementEvent) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn("Failed to publish engagement event",
			"type", ev.Type,
			"item_id", ev.ItemID,
			"comment_id", ev.CommentID,
			"error", err)
	}
}
