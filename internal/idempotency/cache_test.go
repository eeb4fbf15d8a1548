package idempotency

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

type cachedResult struct {
	Status string `json:"status"`
}

func TestCache_NilRedisFailsOpen(t *testing.T) {
	c := New(nil, zerolog.Nop())

	var out cachedResult
	if c.Lookup(context.Background(), "job-1", &out) {
		t.Fatalf("expected a miss when redis is unavailable")
	}

	// Store must not panic when there is nothing to store into.
	c.Store(context.Background(), "job-1", cachedResult{Status: "ready"})
}
