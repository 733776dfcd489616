// Package memory implementa dedup.Claimer en proceso (una sola réplica).
package memory

import (
	"context"
	"sync"
	"time"
)

type Claimer struct {
	mu   sync.Mutex
	keys map[string]time.Time // key -> vencimiento
	now  func() time.Time
}

func NewClaimer() *Claimer {
	return &Claimer{keys: make(map[string]time.Time), now: time.Now}
}

func (c *Claimer) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	// limpieza perezosa
	for k, exp := range c.keys {
		if !exp.After(now) {
			delete(c.keys, k)
		}
	}

	if _, ok := c.keys[key]; ok {
		return false, nil
	}
	c.keys[key] = now.Add(ttl)
	return true, nil
}
