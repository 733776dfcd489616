package bus

import "context"

// Publisher emite eventos de dominio hacia afuera (Kafka en prod, noop en dev).
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
	Close() error
}
