package kafka

import (
	"errors"
	"os"
	"strings"
)

// ErrNotConfigured is returned by LoadConfig when KAFKA_BROKERS is empty.
// Services treat it as "publish nothing" rather than a startup failure.
var ErrNotConfigured = errors.New("kafka: KAFKA_BROKERS not set")

// Config holds Kafka configuration
type Config struct {
	Brokers           string
	EngagementTopic   string
	EnableIdempotence bool
	Acks              string
}

// LoadConfig loads Kafka configuration from environment variables
func LoadConfig() (*Config, error) {
	brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
	if brokers == "" {
		return nil, ErrNotConfigured
	}

	topic := os.Getenv("KAFKA_TOPIC_ENGAGEMENT")
	if topic == "" {
		topic = "engagement-events"
	}

	return &Config{
		Brokers:           brokers,
		EngagementTopic:   topic,
		EnableIdempotence: true,
		Acks:              "all",
	}, nil
}

// GetBrokersList returns brokers as a slice
func (c *Config) GetBrokersList() []string {
	parts := strings.Split(c.Brokers, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
