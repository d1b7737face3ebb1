package httpapi

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGateSerializes(t *testing.T) {
	SetQueueTimeout(50 * time.Millisecond)
	t.Cleanup(func() { SetQueueTimeout(0) })

	g := newGate()
	release, err := g.acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if _, err := g.acquire(context.Background()); err == nil {
		t.Fatalf("expected busy error while slot held")
	} else if !errors.As(err, &busyError{}) {
		t.Fatalf("expected busyError, got %v", err)
	}

	release()
	release2, err := g.acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	release2()
}

func TestGateRespectsCanceledContext(t *testing.T) {
	g := newGate()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
