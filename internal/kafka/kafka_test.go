package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	_, err := LoadConfig()
	assert.ErrorIs(t, err, ErrNotConfigured)

	t.Setenv("KAFKA_BROKERS", "b1:9092, b2:9092,")
	t.Setenv("KAFKA_TOPIC_ENGAGEMENT", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "engagement-events", cfg.EngagementTopic)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.GetBrokersList())
	assert.True(t, cfg.EnableIdempotence)
	assert.Equal(t, "all", cfg.Acks)
}

func TestEncodeEvent(t *testing.T) {
	count := int64(3)
	ev := EngagementEvent{
		Type:       EventLikeAdded,
		ItemID:     "img-7",
		UserID:     "user_1",
		LikesCount: &count,
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	msg, err := encodeEvent("engagement-events", ev)
	require.NoError(t, err)
	assert.Equal(t, "img-7", string(msg.Key))
	assert.Equal(t, "engagement-events", *msg.TopicPartition.Topic)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, EventLikeAdded, string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "like.added", decoded["type"])
	assert.EqualValues(t, 3, decoded["likes_count"])
	assert.NotContains(t, decoded, "comment_id")
	assert.NotEmpty(t, decoded["id"])

	ev.ID = "evt-1"
	msg, err = encodeEvent("engagement-events", ev)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "evt-1", decoded["id"])
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), EngagementEvent{Type: EventCommentCreated}))
}
