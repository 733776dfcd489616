package memory

import (
	"context"
	"testing"
	"time"
)

func TestClaim_OncePerTTL(t *testing.T) {
	c := NewClaimer()
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := c.Claim(ctx, "k", time.Minute); !ok {
		t.Fatalf("first claim should win")
	}
	if ok, _ := c.Claim(ctx, "k", time.Minute); ok {
		t.Fatalf("second claim should lose")
	}
	if ok, _ := c.Claim(ctx, "other", time.Minute); !ok {
		t.Fatalf("different key should win")
	}

	now = now.Add(time.Minute)
	if ok, _ := c.Claim(ctx, "k", time.Minute); !ok {
		t.Fatalf("claim should be free after ttl")
	}
}
