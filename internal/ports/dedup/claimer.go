package dedup

import (
	"context"
	"time"
)

// Claimer reserva una clave por ttl. Devuelve true solo para el primero que la reclama.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
