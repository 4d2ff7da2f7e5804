// Package session reads and writes gateway sessions in Redis.
//
// Sessions are created by whatever fronts the identity provider (a webhook or
// the engage CLI for local development); the gateway only reads and refreshes
// them.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrInvalidSession  = errors.New("invalid session")
)

const keyPrefix = "session:"

// CookieName is the cookie the gateway reads the session id from
const CookieName = "session_id"

type Manager interface {
	Create(ctx context.Context, userID, displayName string, ttl time.Duration) (*Session, error)
	Get(ctx context.Context, sessionID string) (*Session, error)
	Refresh(ctx context.Context, sessionID string, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
}

type manager struct {
	store Store
	now   func() time.Time
}

type Option func(*manager)

func WithClock(now func() time.Time) Option {
	return func(m *manager) { m.now = now }
}

func NewManager(store Store, opts ...Option) Manager {
	m := &manager{store: store, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func key(sessionID string) string { return keyPrefix + sessionID }

func (m *manager) Create(ctx context.Context, userID, displayName string, ttl time.Duration) (*Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidSession)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", ErrInvalidSession)
	}

	now := m.now().UTC()
	s := &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		DisplayName: strings.TrimSpace(displayName),
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := m.store.Set(ctx, key(s.ID), string(data), ttl); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return s, nil
}

// Get returns ErrSessionNotFound, ErrSessionExpired or ErrInvalidSession for
// sessions that should be rejected; any other error is a store failure.
func (m *manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	data, err := m.store.Get(ctx, key(sessionID))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(data), &s); err != nil || s.UserID == "" {
		return nil, ErrInvalidSession
	}

	if s.Expired(m.now()) {
		_ = m.store.Delete(ctx, key(sessionID))
		return nil, ErrSessionExpired
	}
	return &s, nil
}

// Refresh extends a live session by ttl from now.
func (m *manager) Refresh(ctx context.Context, sessionID string, ttl time.Duration) error {
	s, err := m.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	s.ExpiresAt = m.now().UTC().Add(ttl)
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := m.store.Set(ctx, key(sessionID), string(data), ttl); err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}
	return nil
}

func (m *manager) Delete(ctx context.Context, sessionID string) error {
	return m.store.Delete(ctx, key(sessionID))
}
