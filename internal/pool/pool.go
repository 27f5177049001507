// Package pool provides the fixed-size worker pool a coherence run owns for
// its lifetime.
package pool

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"groupcoh/domain/core"
)

// Task is one unit of chunked work.
type Task func(ctx context.Context) error

// Pool runs batches of tasks with at most Size of them in flight. Every Run
// blocks until the whole batch finishes; the first failure cancels the rest
// of the batch and is returned.
type Pool struct {
	size int

	mu     sync.Mutex
	closed bool
	active sync.WaitGroup
}

// New creates a pool. A size below one means runtime.NumCPU().
func New(size int) *Pool {
	if size < 1 {
		size = runtime.NumCPU()
	}
	return &Pool{size: size}
}

// Size returns the maximum number of concurrent tasks.
func (p *Pool) Size() int { return p.size }

// Run executes tasks and waits for all of them.
func (p *Pool) Run(ctx context.Context, tasks []Task) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return core.ErrPoolClosed
	}
	p.active.Add(1)
	p.mu.Unlock()
	defer p.active.Done()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.size)

	for i, task := range tasks {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("task %d panicked: %v\n%s", i, r, debug.Stack())
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			return task(gctx)
		})
	}
	return g.Wait()
}

// Close marks the pool closed and waits for running batches to drain.
// It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.active.Wait()
}
