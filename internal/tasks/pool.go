// SPDX-License-Identifier: EPL-2.0

// Package tasks runs fire-and-forget work off the caller's goroutine.
// Failures and panics never reach the caller, they are handed to an error
// hook instead.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"
)

var ErrClosed = errors.New("tasks: pool closed")

// PanicError is reported when a task panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", p.Value)
}

// ErrorFunc receives the name and error of a failed task.
type ErrorFunc func(name string, err error)

// Pool runs tasks concurrently, at most workers at a time.
type Pool struct {
	sem    *semaphore.Weighted
	onErr  ErrorFunc
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

func NewPool(workers int, onErr ErrorFunc) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		sem:    semaphore.NewWeighted(int64(max(workers, 1))),
		onErr:  onErr,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Go schedules fn and returns immediately. Tasks scheduled after Close are
// rejected with ErrClosed.
func (p *Pool) Go(name string, fn func(ctx context.Context) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()

		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			return
		}
		defer p.sem.Release(1)
		if p.ctx.Err() != nil {
			return
		}

		p.run(name, fn)
	}()
	return nil
}

func (p *Pool) run(name string, fn func(ctx context.Context) error) {
	err := safeCall(p.ctx, fn)
	if err != nil && p.onErr != nil && !errors.Is(err, context.Canceled) {
		p.onErr(name, err)
	}
}

func safeCall(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}

// Wait blocks until every scheduled task has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Close cancels queued tasks and waits for running ones to return.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}
