// Package worker provides a generic, semaphore-bounded task dispatcher.
// Adapted from the teacher's internal/worker/pool.go (context.WithCancel +
// sync.WaitGroup Start/Stop idiom, numWorkers concurrency), generalized from
// a job-queue-coupled worker loop into a bare dispatcher any caller can feed
// arbitrary tasks into (SPEC_FULL.md §5's "counting semaphore of capacity
// 32").
package worker

import (
	"context"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/webfrontier/internal/common"
)

// Pool bounds concurrent execution of dispatched tasks to a fixed capacity.
type Pool struct {
	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger arbor.ILogger
}

// NewPool creates a Pool with the given concurrency, deriving a cancellable
// context from parent.
func NewPool(parent context.Context, concurrency int, logger arbor.ILogger) *Pool {
	ctx, cancel := context.WithCancel(parent)
	return &Pool{
		sem:    make(chan struct{}, concurrency),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Context returns the pool's derived context; cancelling the parent (or
// calling Stop) cancels it.
func (p *Pool) Context() context.Context {
	return p.ctx
}

// Dispatch blocks until a concurrency slot is free or the pool is cancelled,
// then runs fn in a panic-safe goroutine (common.SafeGoWithContext) so one
// task's panic never takes down the pool. Returns false without running fn if
// the pool was already cancelled.
func (p *Pool) Dispatch(name string, fn func(ctx context.Context)) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case p.sem <- struct{}{}:
	case <-p.ctx.Done():
		return false
	}

	p.wg.Add(1)
	common.SafeGoWithContext(context.Background(), p.logger, name, func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		fn(p.ctx)
	})
	return true
}

// Wait blocks until every dispatched task has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Stop cancels the pool's context and waits for in-flight tasks to finish.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}
