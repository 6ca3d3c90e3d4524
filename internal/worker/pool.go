// Package worker provides a bounded pool for offloading blocking calls so
// request goroutines stay responsive to cancellation.
package worker

import (
	"context"
	"fmt"

	"github.com/panjf2000/ants/v2"
)

// Pool wraps a fixed-size ants pool with a submit-and-await API.
type Pool struct {
	pool *ants.Pool
}

// NewPool creates a pool with the given number of workers.
func NewPool(size int) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}
	p, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Pool{pool: p}, nil
}

// Do runs fn on a pool worker and waits for it to finish or for ctx to end.
// When ctx ends first the worker keeps running to completion, but its result
// is discarded and the context error is returned.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if err := p.pool.Submit(func() {
		done <- fn()
	}); err != nil {
		return fmt.Errorf("submit to worker pool: %w", err)
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports the number of busy workers.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Release stops the pool. Pending Do calls return submit errors afterwards.
func (p *Pool) Release() {
	p.pool.Release()
}
