package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoRunsTask(t *testing.T) {
	p := New(2)
	defer p.Close()

	var ran atomic.Bool
	err := p.Do(context.Background(), func() error {
		ran.Store(true)
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !ran.Load() {
		t.Error("task did not run")
	}
}

func TestDoPropagatesError(t *testing.T) {
	p := New(1)
	defer p.Close()

	want := errors.New("boom")
	err := p.Do(context.Background(), func() error { return want })
	if !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestDoRespectsContext(t *testing.T) {
	p := New(1)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Do(ctx, func() error {
		time.Sleep(500 * time.Millisecond)
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestCloseWaitsAndRejects(t *testing.T) {
	p := New(2)

	var count atomic.Int32
	for i := 0; i < 5; i++ {
		if err := p.Submit(context.Background(), func() { count.Add(1) }); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	p.Close()

	if count.Load() != 5 {
		t.Errorf("expected 5 tasks to finish before Close returned, got %d", count.Load())
	}
	if err := p.Submit(context.Background(), func() {}); err == nil {
		t.Error("expected error from Submit after Close")
	}
}
