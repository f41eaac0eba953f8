package search

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// gate serializes all requests to one provider. The mutex is held across
// the whole HTTP exchange so at most one request is in flight, and the
// limiter enforces the minimum gap between consecutive dispatches required
// by the provider's usage policy. Both providers get their own gate; they
// never share one.
type gate struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

func newGate(minInterval time.Duration) *gate {
	if minInterval <= 0 {
		minInterval = time.Millisecond
	}
	return &gate{limiter: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// do runs fn once the caller holds the gate and the cadence allows it.
func (g *gate) do(ctx context.Context, fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	return fn()
}
