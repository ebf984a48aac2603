package workerpool

import (
	"context"
	"fmt"
	"sync"
)

// Pool runs blocking calls on a fixed number of workers so that callers
// holding a dialog session never stall on synchronous clients.
type Pool struct {
	tasks chan func()
	wg    sync.WaitGroup

	// mu guards closed; senders hold the read lock for the duration of
	// the send so Close never races a channel send.
	mu     sync.RWMutex
	closed bool
}

func New(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{tasks: make(chan func(), workers*4)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

// Do runs fn on a worker and waits for its result, honouring ctx while
// queued and while running.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if err := p.enqueue(ctx, func() { done <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit queues fn without waiting for it to complete.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	return p.enqueue(ctx, fn)
}

func (p *Pool) enqueue(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("worker pool is closed")
	}
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and waits for in-flight tasks.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}
