package notify

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"vigil/internal/config"
)

// KafkaPublisher publishes alerts to a Kafka topic named after the channel.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a Kafka-backed alert publisher. Writes are
// synchronous; an alert is low-volume and the caller wants the failure.
func NewKafkaPublisher(cfg config.KafkaConfig, channel string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        channel,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: cfg.GetWriteTimeout(),
		Async:        false,
	}
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

func (p *KafkaPublisher) Publish(ctx context.Context, subject, message string) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Value: []byte(message),
		Headers: []kafka.Header{
			{Key: "subject", Value: []byte(subject)},
		},
		Time: time.Now(),
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
