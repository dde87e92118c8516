package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cimillas/perishable-market/internal/domain"
	"github.com/cimillas/perishable-market/internal/obs"
)

func TestKafkaPublisher_PublishesJSON(t *testing.T) {
	producer := mocks.NewAsyncProducer(t, nil)
	producer.ExpectInputWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got domain.OrderEvent
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.Type != domain.EventOrderStatusChanged || got.OrderID != "order-1" || got.Status != domain.StatusAccepted {
			return fmt.Errorf("unexpected event %+v", got)
		}
		return nil
	})

	pub := newKafkaPublisher(producer, "orders", obs.Discard())
	err := pub.Publish(context.Background(), domain.OrderEvent{
		Type:       domain.EventOrderStatusChanged,
		OrderID:    "order-1",
		From:       domain.StatusPending,
		Status:     domain.StatusAccepted,
		OccurredAt: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, pub.Close())
}

func TestKafkaPublisher_LogsDeliveryFailures(t *testing.T) {
	producer := mocks.NewAsyncProducer(t, nil)
	producer.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	var buf bytes.Buffer
	pub := newKafkaPublisher(producer, "orders", obs.New(slog.LevelInfo, &buf))

	require.NoError(t, pub.Publish(context.Background(), domain.OrderEvent{Type: domain.EventOrderCreated, OrderID: "order-2"}))
	require.NoError(t, pub.Close())

	assert.Contains(t, buf.String(), "kafka_publish_failed")
}

func TestKafkaPublisher_RespectsContext(t *testing.T) {
	producer := &blockedProducer{AsyncProducer: mocks.NewAsyncProducer(t, nil)}
	pub := newKafkaPublisher(producer, "orders", obs.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pub.Publish(ctx, domain.OrderEvent{Type: domain.EventOrderCreated, OrderID: "order-3"})
	assert.True(t, errors.Is(err, context.Canceled))
	require.NoError(t, pub.Close())
}

// blockedProducer never accepts input.
type blockedProducer struct {
	*mocks.AsyncProducer
}

func (blockedProducer) Input() chan<- *sarama.ProducerMessage {
	return make(chan *sarama.ProducerMessage)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	pub := NewLogPublisher(obs.New(slog.LevelInfo, &buf))

	require.NoError(t, pub.Publish(context.Background(), domain.OrderEvent{
		Type:     domain.EventOrderStatusChanged,
		OrderID:  "order-4",
		Status:   domain.StatusPending,
		Reverted: true,
	}))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "order_event", line["msg"])
	assert.Equal(t, "order-4", line["order_id"])
	assert.Equal(t, true, line["reverted"])
}
