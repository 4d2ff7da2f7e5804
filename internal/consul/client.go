// Package consul registers services with a Consul agent and resolves healthy
// instances for the gateway.
package consul

import (
	"fmt"

	consulapi "github.com/hashicorp/consul/api"

	"gallery/internal/config"
)

type Client struct {
	api *consulapi.Client
}

type Config struct {
	Addr  string
	Token string
}

// ConfigFromEnv reads CONSUL_HTTP_ADDR and CONSUL_HTTP_TOKEN
func ConfigFromEnv() Config {
	return Config{
		Addr:  config.GetEnvOrDefault("CONSUL_HTTP_ADDR", "localhost:8500"),
		Token: config.GetEnvOrDefault("CONSUL_HTTP_TOKEN", ""),
	}
}

func NewClient(cfg Config) (*Client, error) {
	apiCfg := consulapi.DefaultConfig()
	apiCfg.Address = cfg.Addr
	if cfg.Token != "" {
		apiCfg.Token = cfg.Token
	}

	client, err := consulapi.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("consul client for %s: %w", cfg.Addr, err)
	}
	return &Client{api: client}, nil
}
