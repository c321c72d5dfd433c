package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
)

func TestProducer_Publish(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var body map[string]string
		if err := json.Unmarshal(val, &body); err != nil {
			return err
		}
		if body["order_id"] != "so-1" {
			t.Errorf("unexpected body: %s", val)
		}
		return nil
	})

	producer := WrapSyncProducer(mockProducer)
	err := producer.PublishJSON(context.Background(), TopicOrderEvents, "so-1", map[string]string{"order_id": "so-1"}, nil)
	require.NoError(t, err)
	require.NoError(t, mockProducer.Close())
}

func TestProducer_PublishError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := WrapSyncProducer(mockProducer)
	err := producer.Publish(context.Background(), TopicOrderEvents, "so-1", []byte(`{}`), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, mockProducer.Close())
}

func TestProducer_PublishCancelledContext(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := WrapSyncProducer(mockProducer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := producer.Publish(ctx, TopicOrderEvents, "so-1", []byte(`{}`), nil)
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, mockProducer.Close())
}

func TestOutboxPublisher_PublishEnvelope(t *testing.T) {
	publishedAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var env Envelope
		if err := json.Unmarshal(val, &env); err != nil {
			return err
		}
		assert.Equal(t, "outbox-1", env.ID)
		assert.Equal(t, domain.AggregateServiceOrder, env.AggregateType)
		assert.Equal(t, "so-123", env.AggregateID)
		assert.Equal(t, domain.EventOrderStatusChanged, env.EventType)
		assert.JSONEq(t, `{"status":"completed"}`, string(env.Payload))
		assert.True(t, env.PublishedAt.Equal(publishedAt))
		return nil
	})

	publisher := NewOutboxPublisher(WrapSyncProducer(mockProducer), "")
	publisher.now = func() time.Time { return publishedAt }
	assert.Equal(t, TopicOrderEvents, publisher.Topic())

	err := publisher.Publish(context.Background(), domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: domain.AggregateServiceOrder,
		AggregateID:   "so-123",
		EventType:     domain.EventOrderStatusChanged,
		Payload:       []byte(`{"status":"completed"}`),
	})
	require.NoError(t, err)
	require.NoError(t, mockProducer.Close())
}

func TestOutboxPublisher_PublishProducerError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewOutboxPublisher(WrapSyncProducer(mockProducer), TopicDeadLetterQueue)
	err := publisher.Publish(context.Background(), domain.OutboxMessage{ID: "outbox-2", AggregateID: "so-2"})
	require.Error(t, err)
	require.NoError(t, mockProducer.Close())
}

func TestOutboxPublisher_PublishNilProducer(t *testing.T) {
	publisher := NewOutboxPublisher(nil, TopicOrderEvents)
	assert.Error(t, publisher.Publish(context.Background(), domain.OutboxMessage{ID: "outbox-3"}))
}

func TestNewEnvelope_EmptyPayload(t *testing.T) {
	env := NewEnvelope(domain.OutboxMessage{ID: "x"}, time.Now())
	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"payload":null`)
}
