// Package kafka publica los eventos del historial en un topic de Kafka,
// particionados por paciente.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Writer es el subconjunto de *kafka.Writer que usamos (fake en tests).
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	w       Writer
	timeout time.Duration
}

func NewPublisher(brokers []string, topic string) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // mismo paciente, misma partición
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newPublisher(w)
}

func newPublisher(w Writer) *Publisher {
	return &Publisher{w: w, timeout: 5 * time.Second}
}

func (p *Publisher) Publish(ctx context.Context, key string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: payload}); err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.w.Close()
}
