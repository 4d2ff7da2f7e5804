package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/google/uuid"
)

// Producer wraps Kafka producer with helper methods
type Producer struct {
	producer *kafka.Producer
	config   *Config
	logger   *slog.Logger
}

// NewProducer creates a new idempotent Kafka producer
func NewProducer(config *Config, logger *slog.Logger) (*Producer, error) {
	producerConfig := &kafka.ConfigMap{
		"bootstrap.servers":                     config.Brokers,
		"enable.idempotence":                    config.EnableIdempotence,
		"acks":                                  config.Acks,
		"max.in.flight.requests.per.connection": 5, // Required for idempotence
		"retries":                               2147483647,
	}

	p, err := kafka.NewProducer(producerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	producer := &Producer{
		producer: p,
		config:   config,
		logger:   logger,
	}

	go producer.handleDeliveryReports()

	logger.Info("Kafka producer initialized",
		"brokers", config.Brokers,
		"topic", config.EngagementTopic,
		"idempotence", config.EnableIdempotence)

	return producer, nil
}

// Publish enqueues an engagement event keyed by item id, so all events for
// one item land on the same partition in order. Delivery is reported asynchronously.
func (p *Producer) Publish(ctx context.Context, event EngagementEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := encodeEvent(p.config.EngagementTopic, event)
	if err != nil {
		return err
	}

	if err := p.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	p.logger.Debug("Engagement event published",
		"topic", p.config.EngagementTopic,
		"type", event.Type,
		"item_id", event.ItemID)

	return nil
}

func encodeEvent(topic string, event EngagementEvent) (*kafka.Message, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(event.ItemID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}, nil
}

// handleDeliveryReports processes asynchronous delivery reports
func (p *Producer) handleDeliveryReports() {
	for e := range p.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				p.logger.Error("Delivery failed",
					"topic", *ev.TopicPartition.Topic,
					"error", ev.TopicPartition.Error)
			} else {
				p.logger.Debug("Message delivered",
					"topic", *ev.TopicPartition.Topic,
					"partition", ev.TopicPartition.Partition,
					"offset", ev.TopicPartition.Offset)
			}
		case kafka.Error:
			p.logger.Warn("Kafka client error", "error", ev.Error(), "code", ev.Code().String())
		}
	}
}

// Close flushes outstanding messages (10 second budget) and closes the producer
func (p *Producer) Close() {
	p.logger.Info("Closing Kafka producer...")

	if remaining := p.producer.Flush(10000); remaining > 0 {
		p.logger.Error("Some messages were not delivered", "count", remaining)
	}

	p.producer.Close()
	p.logger.Info("Kafka producer closed")
}

// NewPublisherFromEnv returns a Producer when KAFKA_BROKERS is set and a
// NopPublisher otherwise. The returned close func is always safe to call.
func NewPublisherFromEnv(logger *slog.Logger) (Publisher, func(), error) {
	cfg, err := LoadConfig()
	if err == ErrNotConfigured {
		logger.Warn("KAFKA_BROKERS not set, engagement events disabled")
		return NopPublisher{Logger: logger}, func() {}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	p, err := NewProducer(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}
