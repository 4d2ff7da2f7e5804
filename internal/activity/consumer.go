package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"gallery/internal/config"
)

type ConsumerConfig struct {
	Brokers       string
	Topic         string
	DLQTopic      string
	ConsumerGroup string
	// RetryPause is how long to wait before redelivering after OutcomeRetry.
	RetryPause time.Duration
}

// ConsumerConfigFromEnv reads KAFKA_BROKERS, KAFKA_TOPIC_ENGAGEMENT,
// KAFKA_TOPIC_ENGAGEMENT_DLQ and KAFKA_CONSUMER_GROUP.
func ConsumerConfigFromEnv() (ConsumerConfig, error) {
	if err := config.ValidateEnv([]string{"KAFKA_BROKERS"}); err != nil {
		return ConsumerConfig{}, err
	}
	return ConsumerConfig{
		Brokers:       config.GetEnvOrDefault("KAFKA_BROKERS", ""),
		Topic:         config.GetEnvOrDefault("KAFKA_TOPIC_ENGAGEMENT", "engagement-events"),
		DLQTopic:      config.GetEnvOrDefault("KAFKA_TOPIC_ENGAGEMENT_DLQ", "engagement-events-dlq"),
		ConsumerGroup: config.GetEnvOrDefault("KAFKA_CONSUMER_GROUP", "activity-service-group"),
		RetryPause:    config.GetEnvDuration("ACTIVITY_RETRY_PAUSE", 2*time.Second),
	}, nil
}

// Consumer reads engagement events with manual offset commits
type Consumer struct {
	consumer    *kafka.Consumer
	dlqProducer *kafka.Producer
	processor   *Processor
	config      ConsumerConfig
	logger      *slog.Logger
}

func NewConsumer(cfg ConsumerConfig, processor *Processor, logger *slog.Logger) (*Consumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Brokers,
		"group.id":           cfg.ConsumerGroup,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	dlq, err := kafka.NewProducer(&kafka.ConfigMap{"bootstrap.servers": cfg.Brokers})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create DLQ producer: %w", err)
	}

	logger.Info("Kafka consumer initialized",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"group", cfg.ConsumerGroup)

	return &Consumer{
		consumer:    c,
		dlqProducer: dlq,
		processor:   processor,
		config:      cfg,
		logger:      logger,
	}, nil
}

// Start consumes until ctx is done
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.consumer.Subscribe(c.config.Topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic: %w", err)
	}
	c.logger.Info("Starting to consume engagement events", "topic", c.config.Topic)

	for ctx.Err() == nil {
		msg, err := c.consumer.ReadMessage(time.Second)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			c.logger.Error("Error reading message", "error", err)
			continue
		}
		c.handle(ctx, msg)
	}
	c.logger.Info("Consumer shutting down")
	return nil
}

func (c *Consumer) handle(ctx context.Context, msg *kafka.Message) {
	outcome, err := c.processor.Process(ctx, msg.Value)
	switch outcome {
	case OutcomeRetry:
		c.logger.Warn("Engagement event deferred",
			"partition", msg.TopicPartition.Partition,
			"offset", msg.TopicPartition.Offset,
			"error", err)
		// rewind so the same message is read again
		if err := c.consumer.Seek(msg.TopicPartition, 0); err != nil {
			c.logger.Error("Failed to rewind partition", "error", err)
		}
		select {
		case <-ctx.Done():
		case <-time.After(c.config.RetryPause):
		}
		return
	case OutcomeDeadLetter:
		c.sendToDLQ(msg, err)
	}
	c.commit(msg)
}

func (c *Consumer) sendToDLQ(msg *kafka.Message, processingErr error) {
	payload, err := json.Marshal(map[string]any{
		"original_event": json.RawMessage(msg.Value),
		"error":          processingErr.Error(),
		"failed_at":      time.Now().UTC(),
		"consumer_group": c.config.ConsumerGroup,
	})
	if err != nil {
		c.logger.Error("Failed to marshal DLQ event", "error", err)
		return
	}
	err = c.dlqProducer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &c.config.DLQTopic, Partition: kafka.PartitionAny},
		Key:            msg.Key,
		Value:          payload,
	}, nil)
	if err != nil {
		c.logger.Error("Failed to send to DLQ", "error", err)
		return
	}
	c.logger.Warn("Engagement event sent to DLQ", "dlq_topic", c.config.DLQTopic, "error", processingErr)
}

func (c *Consumer) commit(msg *kafka.Message) {
	if _, err := c.consumer.CommitMessage(msg); err != nil {
		c.logger.Error("Failed to commit offset",
			"partition", msg.TopicPartition.Partition,
			"offset", msg.TopicPartition.Offset,
			"error", err)
	}
}

func (c *Consumer) Close() {
	c.logger.Info("Closing Kafka consumer")
	c.dlqProducer.Flush(5000)
	c.dlqProducer.Close()
	if err := c.consumer.Close(); err != nil {
		c.logger.Error("Kafka consumer close failed", "error", err)
	}
	c.logger.Info("Kafka consumer closed")
}
