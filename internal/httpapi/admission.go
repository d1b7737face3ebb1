package httpapi

import (
	"context"
	"time"
)

// gate serializes generation: the adapter holds exactly one engine instance
// and presents no reentrancy guarantees, so at most one request generates at
// a time. Waiters are bounded by queueTimeout and rejected with 429.
type gate struct {
	slot chan struct{}
}

func newGate() *gate {
	return &gate{slot: make(chan struct{}, 1)}
}

// acquire reserves the generation slot. Returns a release func to be
// deferred, or a busyError if the slot stays occupied past the queue timeout.
func (g *gate) acquire(ctx context.Context) (func(), error) {
	// Fast path: respect an already-canceled context.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timer := time.NewTimer(queueTimeout)
	defer timer.Stop()
	select {
	case g.slot <- struct{}{}:
		return func() { <-g.slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		IncrementBackpressure("queue_timeout")
		return nil, busyError{}
	}
}
