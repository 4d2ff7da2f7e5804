package consul

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

var ErrNoInstances = errors.New("no healthy instances")

type Instance struct {
	ID      string
	Name    string
	Address string
	Port    int
}

func (i Instance) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", i.Address, i.Port)
}

// Discoverer lists healthy instances of a service
type Discoverer interface {
	Healthy(service string) ([]Instance, error)
}

// Healthy queries the agent for passing instances only.
func (c *Client) Healthy(service string) ([]Instance, error) {
	entries, _, err := c.api.Health().Service(service, "", true, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to discover %s: %w", service, err)
	}
	out := make([]Instance, 0, len(entries))
	for _, e := range entries {
		addr := e.Service.Address
		if addr == "" {
			addr = e.Node.Address
		}
		out = append(out, Instance{
			ID:      e.Service.ID,
			Name:    e.Service.Service,
			Address: addr,
			Port:    e.Service.Port,
		})
	}
	return out, nil
}

// Resolver picks a random healthy instance, caching the instance list for ttl
// so the gateway does not query Consul on every request. A failed lookup
// falls back to the last known list.
type Resolver struct {
	d   Discoverer
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	cache map[string]cachedInstances
}

type cachedInstances struct {
	list      []Instance
	fetchedAt time.Time
}

func NewResolver(d Discoverer, ttl time.Duration) *Resolver {
	return &Resolver{d: d, ttl: ttl, now: time.Now, cache: make(map[string]cachedInstances)}
}

func (r *Resolver) Resolve(service string) (Instance, error) {
	r.mu.Lock()
	cached, ok := r.cache[service]
	r.mu.Unlock()

	list := cached.list
	if !ok || r.now().Sub(cached.fetchedAt) >= r.ttl {
		fresh, err := r.d.Healthy(service)
		switch {
		case err == nil && len(fresh) > 0:
			list = fresh
			r.mu.Lock()
			r.cache[service] = cachedInstances{list: fresh, fetchedAt: r.now()}
			r.mu.Unlock()
		case err == nil:
			list = nil
			r.mu.Lock()
			delete(r.cache, service)
			r.mu.Unlock()
		case len(list) == 0:
			return Instance{}, err
		}
	}

	if len(list) == 0 {
		return Instance{}, fmt.Errorf("%w for %s", ErrNoInstances, service)
	}
	return list[rand.IntN(len(list))], nil
}
