// File: internal/infra/worker/pool_test.go
package worker

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func TestPool(t *testing.T) {
	t.Run("executes submitted tasks", func(t *testing.T) {
		p := NewPool(2, 0, time.Millisecond, testLogger())
		p.Start(context.Background())
		defer p.Stop()

		done := make(chan struct{})
		err := p.Submit(func(ctx context.Context) error {
			close(done)
			return nil
		})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("task never ran")
		}
	})

	t.Run("retries failed tasks up to the limit", func(t *testing.T) {
		p := NewPool(1, 2, time.Millisecond, testLogger())
		p.Start(context.Background())
		defer p.Stop()

		var attempts int32
		done := make(chan struct{})
		_ = p.Submit(func(ctx context.Context) error {
			if atomic.AddInt32(&attempts, 1) == 3 {
				close(done)
				return nil
			}
			return errors.New("transient")
		})
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("task retried %d times, want 3 attempts", atomic.LoadInt32(&attempts))
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		p := NewPool(1, 1, time.Millisecond, testLogger())
		p.Start(context.Background())

		var attempts int32
		_ = p.Submit(func(ctx context.Context) error {
			atomic.AddInt32(&attempts, 1)
			return errors.New("permanent")
		})
		time.Sleep(100 * time.Millisecond)
		p.Stop()

		if got := atomic.LoadInt32(&attempts); got != 2 {
			t.Errorf("attempts = %d, want 2 (initial + one retry)", got)
		}
	})

	t.Run("saturated queue drops instead of blocking", func(t *testing.T) {
		p := NewPool(1, 0, time.Millisecond, testLogger())
		// Not started: nothing drains the queue.
		block := func(ctx context.Context) error { return nil }
		var dropped bool
		for i := 0; i < 10; i++ {
			if err := p.Submit(block); err != nil {
				dropped = true
				break
			}
		}
		if !dropped {
			t.Fatal("expected Submit to fail once the queue is full")
		}
	})

	t.Run("nil task rejected", func(t *testing.T) {
		p := NewPool(1, 0, time.Millisecond, testLogger())
		if err := p.Submit(nil); err == nil {
			t.Fatal("expected an error for a nil task")
		}
	})
}
