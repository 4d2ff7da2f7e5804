package consul

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDiscoverer struct {
	calls int
	list  []Instance
	err   error
}

func (f *fakeDiscoverer) Healthy(service string) ([]Instance, error) {
	f.calls++
	return f.list, f.err
}

func TestRegistrationFromEnv(t *testing.T) {
	t.Setenv("LIKES_SERVICE_HOST", "likes-1")
	t.Setenv("LIKES_SERVICE_PORT", "8084")

	r, err := RegistrationFromEnv("likes-service", "LIKES", 9000, "likes")
	require.NoError(t, err)
	assert.Equal(t, "likes-service-likes-1-8084", r.ID())

	reg := r.agentRegistration()
	assert.Equal(t, "likes-1", reg.Address)
	assert.Equal(t, 8084, reg.Port)
	require.NotNil(t, reg.Check)
	assert.Equal(t, "http://likes-1:8084/health", reg.Check.HTTP)
	assert.Equal(t, "1m", reg.Check.DeregisterCriticalServiceAfter)
}

func TestRegistrationFromEnv_InvalidPort(t *testing.T) {
	t.Setenv("COMMENTS_SERVICE_PORT", "http")
	_, err := RegistrationFromEnv("comments-service", "COMMENTS", 8085)
	assert.Error(t, err)
}

func TestRegistration_NoHealthCheck(t *testing.T) {
	reg := Registration{Name: "x", Host: "h", Port: 1}.agentRegistration()
	assert.Nil(t, reg.Check)
}

func TestResolver_CachesWithinTTL(t *testing.T) {
	d := &fakeDiscoverer{list: []Instance{{Address: "10.0.0.1", Port: 8084}}}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewResolver(d, 5*time.Second)
	r.now = func() time.Time { return now }

	inst, err := r.Resolve("likes-service")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.1:8084", inst.BaseURL())

	_, _ = r.Resolve("likes-service")
	assert.Equal(t, 1, d.calls)

	now = now.Add(5 * time.Second)
	_, _ = r.Resolve("likes-service")
	assert.Equal(t, 2, d.calls)
}

func TestResolver_FallsBackToLastKnownList(t *testing.T) {
	d := &fakeDiscoverer{list: []Instance{{Address: "10.0.0.1", Port: 8084}}}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewResolver(d, time.Second)
	r.now = func() time.Time { return now }

	_, err := r.Resolve("likes-service")
	require.NoError(t, err)

	d.err = errors.New("agent unreachable")
	now = now.Add(time.Minute)
	inst, err := r.Resolve("likes-service")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", inst.Address)
}

func TestResolver_NoInstances(t *testing.T) {
	d := &fakeDiscoverer{}
	r := NewResolver(d, time.Second)

	_, err := r.Resolve("comments-service")
	assert.ErrorIs(t, err, ErrNoInstances)

	d.err = errors.New("agent unreachable")
	_, err = r.Resolve("comments-service")
	assert.EqualError(t, err, "agent unreachable")
}
