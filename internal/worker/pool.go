// Package worker runs background jobs, primarily triage runs kicked off
// by ticket creation, on a bounded pool so a burst of tickets cannot
// exhaust the process.
package worker

import (
	"context"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

// Pool executes submitted tasks on at most size goroutines.
type Pool struct {
	logger *zap.Logger
	sem    chan struct{}
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool constructs a pool with the given concurrency limit.
func NewPool(size int, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		logger: logger,
		sem:    make(chan struct{}, size),
	}
}

// Submit schedules task for execution. It blocks while the pool is at
// capacity and reports false after Drain has been called. Panics inside
// the task are logged, never propagated.
func (p *Pool) Submit(ctx context.Context, name string, task func(context.Context)) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		p.wg.Done()
		return false
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("background task panicked",
					zap.String("task", name),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
			}
			<-p.sem
			p.wg.Done()
		}()
		task(ctx)
	}()
	return true
}

// Drain stops accepting work and waits for in-flight tasks to finish.
func (p *Pool) Drain() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
