// Package workerpool bounds how many blocking calls to external services run
// at once, so a burst of ingestions cannot starve queries of embedding or
// model capacity.
package workerpool

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// New returns a pool running at most size calls concurrently. size <= 0 means 1.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

func (p *Pool) Size() int { return p.size }

// Do runs fn once a slot is free. A nil pool runs fn directly.
func Do[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	if p == nil {
		return fn(ctx)
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to acquire worker: %w", err)
	}
	defer p.sem.Release(1)
	return fn(ctx)
}
