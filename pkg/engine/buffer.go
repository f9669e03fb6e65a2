package engine

import (
	"sync"
	"sync/atomic"
)

// RingBuffer is a fixed-size circular buffer for log entries.
// Any number of writers may Push concurrently; only a single reader (the
// pipeline worker) may Pop.
type RingBuffer struct {
	pushMu sync.Mutex
	data   [][]byte
	head   atomic.Uint64
	tail   atomic.Uint64
	mask   uint64
	size   uint64

	// ready is signalled on every push so an idle reader can block
	// instead of polling.
	ready chan struct{}

	dropped atomic.Uint64
}

// NewRingBuffer creates a ring buffer with the specified size (must be power of 2).
func NewRingBuffer(size uint64) (*RingBuffer, error) {
	if size == 0 || (size&(size-1)) != 0 {
		return nil, ErrBufferSize
	}
	return &RingBuffer{
		data:  make([][]byte, size),
		mask:  size - 1,
		size:  size,
		ready: make(chan struct{}, 1),
	}, nil
}

// Push adds an item to the buffer.
// If the buffer is full, it drops the item and returns ErrBufferFull.
func (rb *RingBuffer) Push(item []byte) error {
	rb.pushMu.Lock()
	defer rb.pushMu.Unlock()

	head := rb.head.Load()
	tail := rb.tail.Load()

	if head-tail >= rb.size {
		rb.dropped.Add(1)
		return ErrBufferFull
	}

	rb.data[head&rb.mask] = item
	rb.head.Store(head + 1)

	select {
	case rb.ready <- struct{}{}:
	default:
	}
	return nil
}

// Pop removes an item from the buffer.
// Returns nil if empty.
func (rb *RingBuffer) Pop() []byte {
	tail := rb.tail.Load()
	head := rb.head.Load()

	if tail == head {
		return nil
	}

	item := rb.data[tail&rb.mask]
	rb.data[tail&rb.mask] = nil
	rb.tail.Store(tail + 1)
	return item
}

// Ready is signalled after pushes. A receive does not guarantee that Pop
// returns an item.
func (rb *RingBuffer) Ready() <-chan struct{} {
	return rb.ready
}

// DroppedCount returns the number of dropped events.
func (rb *RingBuffer) DroppedCount() uint64 {
	return rb.dropped.Load()
}

// Usage returns the number of items currently in the buffer.
func (rb *RingBuffer) Usage() uint64 {
	// tail first: it never passes a later read of head.
	tail := rb.tail.Load()
	return rb.head.Load() - tail
}

// Capacity returns the total size of the buffer.
func (rb *RingBuffer) Capacity() uint64 {
	return rb.size
}
