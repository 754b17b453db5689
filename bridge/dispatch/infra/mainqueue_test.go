package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"http-bridge/bridge/dispatch/domain"
)

func TestMainQueue_UpdateRunsOnCallerGoroutine(t *testing.T) {
	q := NewMainQueue()

	if q.OnLoop() {
		t.Fatalf("expected OnLoop false outside a drain")
	}

	var onLoop []bool
	for i := 0; i < 3; i++ {
		_ = q.Post(func() { onLoop = append(onLoop, q.OnLoop()) })
	}

	if n := q.Update(); n != 3 {
		t.Fatalf("expected 3 tasks, got %d", n)
	}
	for i, ok := range onLoop {
		if !ok {
			t.Fatalf("expected task %d to run on the consumer goroutine", i)
		}
	}
	if n := q.Update(); n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}
}

func TestMainQueue_OnLoopFalseFromOtherGoroutine(t *testing.T) {
	q := NewMainQueue()

	other := make(chan bool)
	release := make(chan struct{})
	_ = q.Post(func() {
		go func() { other <- q.OnLoop() }()
		<-release
	})

	go q.Update()

	select {
	case v := <-other:
		if v {
			t.Fatalf("expected OnLoop false on a non-consumer goroutine")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout")
	}
	close(release)
}

func TestMainQueue_RunDrainsAndCloses(t *testing.T) {
	q := NewMainQueue()

	ctx, cancel := context.WithCancel(context.Background())
	exited := make(chan struct{})
	go func() {
		_ = q.Run(ctx)
		close(exited)
	}()

	ran := make(chan bool, 1)
	_ = q.Post(func() { ran <- q.OnLoop() })
	select {
	case v := <-ran:
		if !v {
			t.Fatalf("expected task to see OnLoop true")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for Run to drain")
	}

	cancel()
	<-exited
	if err := q.Post(func() {}); !errors.Is(err, domain.ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}
