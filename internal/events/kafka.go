package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/cimillas/perishable-market/internal/domain"
)

// KafkaPublisher writes order events to a single topic, keyed by order id so
// every change of one order lands on the same partition in commit order.
type KafkaPublisher struct {
	producer sarama.AsyncProducer
	topic    string
	logger   *slog.Logger
	done     sync.WaitGroup
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Flush.Frequency = 500 * time.Millisecond
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("start kafka producer: %w", err)
	}
	return newKafkaPublisher(producer, topic, logger), nil
}

func newKafkaPublisher(producer sarama.AsyncProducer, topic string, logger *slog.Logger) *KafkaPublisher {
	p := &KafkaPublisher{producer: producer, topic: topic, logger: logger}
	p.done.Add(1)
	go func() {
		defer p.done.Done()
		for perr := range producer.Errors() {
			p.logger.Error("kafka_publish_failed", "topic", p.topic, "error", perr.Err)
		}
	}()
	return p
}

func (p *KafkaPublisher) Publish(ctx context.Context, event domain.OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.OrderID),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}
	select {
	case p.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes buffered messages and stops the error drain.
func (p *KafkaPublisher) Close() error {
	p.producer.AsyncClose()
	p.done.Wait()
	return nil
}
