// Package noop descarta los eventos (dev sin Kafka).
package noop

import "context"

type Publisher struct{}

func (Publisher) Publish(ctx context.Context, key string, payload []byte) error { return nil }

func (Publisher) Close() error { return nil }
