// SPDX-License-Identifier: EPL-2.0

// Package events provides a small publish-subscribe bus for asynchronous
// notifications.
package events

import (
	"sync"

	"github.com/google/uuid"
)

const subBufferSize = 16

// Bus is a non-blocking publish-subscribe bus. Subscribers that are slow to
// consume have events dropped rather than blocking publishers.
type Bus[T any] struct {
	mu      sync.Mutex
	subs    map[string]chan T
	dropped uint64
}

func NewBus[T any]() *Bus[T] {
	return &Bus[T]{
		subs: make(map[string]chan T),
	}
}

// Subscribe registers a new subscriber and returns its ID together with the
// channel events are delivered on. Call Unsubscribe when done.
func (b *Bus[T]) Subscribe() (string, <-chan T) {
	id := uuid.NewString()

	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, subBufferSize)
	b.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscription and closes its channel. Unknown IDs are
// ignored.
func (b *Bus[T]) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers ev to every subscriber without blocking.
func (b *Bus[T]) Publish(ev T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped++
		}
	}
}

// Close unsubscribes everyone.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *Bus[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped reports how many deliveries were skipped because a subscriber
// was full.
func (b *Bus[T]) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
