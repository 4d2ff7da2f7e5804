package consul

import (
	"fmt"
	"strconv"

	consulapi "github.com/hashicorp/consul/api"

	"gallery/internal/config"
)

// Registration describes one service instance
type Registration struct {
	Name string
	Host string
	Port int
	Tags []string
	// HealthPath is polled over HTTP by the agent; empty disables the check.
	HealthPath      string
	CheckInterval   string
	CheckTimeout    string
	DeregisterAfter string
}

// ID is stable per name/host/port so a restarted instance replaces its old
// registration.
func (r Registration) ID() string {
	return fmt.Sprintf("%s-%s-%d", r.Name, r.Host, r.Port)
}

// RegistrationFromEnv builds a registration from <PREFIX>_SERVICE_HOST and
// <PREFIX>_SERVICE_PORT, e.g. LIKES_SERVICE_HOST.
func RegistrationFromEnv(name, envPrefix string, defaultPort int, tags ...string) (Registration, error) {
	portStr := config.GetEnvOrDefault(envPrefix+"_SERVICE_PORT", strconv.Itoa(defaultPort))
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Registration{}, fmt.Errorf("invalid %s_SERVICE_PORT %q", envPrefix, portStr)
	}
	return Registration{
		Name:            name,
		Host:            config.GetEnvOrDefault(envPrefix+"_SERVICE_HOST", name),
		Port:            port,
		Tags:            tags,
		HealthPath:      "/health",
		CheckInterval:   config.GetEnvOrDefault("CONSUL_CHECK_INTERVAL", "10s"),
		CheckTimeout:    "3s",
		DeregisterAfter: "1m",
	}, nil
}

func (r Registration) agentRegistration() *consulapi.AgentServiceRegistration {
	reg := &consulapi.AgentServiceRegistration{
		ID:      r.ID(),
		Name:    r.Name,
		Address: r.Host,
		Port:    r.Port,
		Tags:    r.Tags,
	}
	if r.HealthPath != "" {
		reg.Check = &consulapi.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d%s", r.Host, r.Port, r.HealthPath),
			Interval:                       r.CheckInterval,
			Timeout:                        r.CheckTimeout,
			DeregisterCriticalServiceAfter: r.DeregisterAfter,
		}
	}
	return reg
}

// Register replaces any previous registration with the same ID.
func (c *Client) Register(r Registration) (string, error) {
	id := r.ID()
	_ = c.api.Agent().ServiceDeregister(id)
	if err := c.api.Agent().ServiceRegister(r.agentRegistration()); err != nil {
		return "", fmt.Errorf("failed to register %s: %w", id, err)
	}
	return id, nil
}

func (c *Client) Deregister(serviceID string) error {
	if err := c.api.Agent().ServiceDeregister(serviceID); err != nil {
		return fmt.Errorf("failed to deregister %s: %w", serviceID, err)
	}
	return nil
}
