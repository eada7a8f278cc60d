package bus

import (
	"context"
	"sync"
)

// Mailbox is an unbounded FIFO queue with a blocking receive. Send never
// blocks, so a publisher is never held up by a slow consumer.
type Mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{}
	done   chan struct{}
}

func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Send enqueues item. It returns false once the mailbox is closed.
func (mb *Mailbox[T]) Send(item T) bool {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return false
	}
	mb.items = append(mb.items, item)
	mb.mu.Unlock()

	select {
	case mb.ready <- struct{}{}:
	default:
	}
	return true
}

// Receive blocks until an item is available, the mailbox is closed, or ctx
// is done.
func (mb *Mailbox[T]) Receive(ctx context.Context) (T, error) {
	for {
		item, ok, closed := mb.pop()
		if ok {
			return item, nil
		}
		if closed {
			var zero T
			return zero, ErrMailboxClosed
		}

		select {
		case <-mb.ready:
		case <-mb.done:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Close discards queued items and wakes any blocked receiver. Close is
// idempotent.
func (mb *Mailbox[T]) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.closed {
		return
	}
	mb.closed = true
	mb.items = nil
	close(mb.done)
}

func (mb *Mailbox[T]) Len() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.items)
}

func (mb *Mailbox[T]) pop() (item T, ok bool, closed bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.closed {
		return item, false, true
	}
	if len(mb.items) == 0 {
		return item, false, false
	}

	item = mb.items[0]
	var zero T
	mb.items[0] = zero
	mb.items = mb.items[1:]
	if len(mb.items) == 0 {
		mb.items = nil
	}
	return item, true, false
}
