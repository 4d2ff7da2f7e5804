package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is an in-process Store for tests
type memoryStore struct {
	mu     sync.Mutex
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *memoryStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

func (s *memoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", s.getErr
	}
	v, ok := s.data[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memoryStore) Ping(ctx context.Context) error { return nil }
func (s *memoryStore) Close() error                   { return nil }

func TestManager_CreateAndGet(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mgr := NewManager(store, WithClock(func() time.Time { return now }))

	s, err := mgr.Create(context.Background(), " user_abc ", "Alex", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "user_abc", s.UserID)
	assert.Equal(t, now.Add(time.Hour), s.ExpiresAt)
	assert.Equal(t, time.Hour, store.ttls["session:"+s.ID])

	got, err := mgr.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alex", got.DisplayName)
	assert.Equal(t, "user_abc", got.UserID)
}

func TestManager_CreateValidates(t *testing.T) {
	mgr := NewManager(newMemoryStore())

	_, err := mgr.Create(context.Background(), "", "Alex", time.Hour)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = mgr.Create(context.Background(), "u1", "Alex", 0)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestManager_GetErrors(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mgr := NewManager(store, WithClock(func() time.Time { return now }))

	_, err := mgr.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = mgr.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	store.data["session:bad"] = "{not json"
	_, err = mgr.Get(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidSession)

	store.data["session:old"] = `{"id":"old","user_id":"u1","expires_at":"2024-02-01T00:00:00Z"}`
	_, err = mgr.Get(context.Background(), "old")
	assert.ErrorIs(t, err, ErrSessionExpired)
	_, stillThere := store.data["session:old"]
	assert.False(t, stillThere, "expired session is deleted")

	store.getErr = errors.New("connection refused")
	_, err = mgr.Get(context.Background(), "any")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_RefreshAndDelete(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mgr := NewManager(store, WithClock(func() time.Time { return now }))

	s, err := mgr.Create(context.Background(), "u1", "", time.Minute)
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	require.NoError(t, mgr.Refresh(context.Background(), s.ID, time.Hour))
	got, err := mgr.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), got.ExpiresAt)

	require.NoError(t, mgr.Delete(context.Background(), s.ID))
	_, err = mgr.Get(context.Background(), s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.ErrorIs(t, mgr.Refresh(context.Background(), "missing", time.Hour), ErrSessionNotFound)
}
