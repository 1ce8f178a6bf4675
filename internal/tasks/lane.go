// SPDX-License-Identifier: EPL-2.0

package tasks

import (
	"context"
	"sync"
)

type job struct {
	name string
	fn   func(ctx context.Context) error
}

// Lane runs tasks one at a time in submission order on a single goroutine.
type Lane struct {
	onErr  ErrorFunc
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	queue   []job
	running bool
	closed  bool
	idle    *sync.Cond
}

func NewLane(onErr ErrorFunc) *Lane {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Lane{
		onErr:  onErr,
		ctx:    ctx,
		cancel: cancel,
	}
	l.idle = sync.NewCond(&l.mu)
	return l
}

// Go appends fn to the lane and returns immediately.
func (l *Lane) Go(name string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	l.queue = append(l.queue, job{name: name, fn: fn})
	if !l.running {
		l.running = true
		go l.drain()
	}
	return nil
}

func (l *Lane) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 || l.ctx.Err() != nil {
			l.queue = nil
			l.running = false
			l.idle.Broadcast()
			l.mu.Unlock()
			return
		}
		j := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()

		err := safeCall(l.ctx, j.fn)
		if err != nil && l.onErr != nil && l.ctx.Err() == nil {
			l.onErr(j.name, err)
		}
	}
}

// Wait blocks until the lane has no queued or running task.
func (l *Lane) Wait() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.running {
		l.idle.Wait()
	}
}

// Close drops queued tasks and waits for the running one to return.
func (l *Lane) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	l.cancel()
	l.Wait()
}
