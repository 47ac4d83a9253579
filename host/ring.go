package host

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// DefaultRingSize is the frame ring capacity used unless overridden.
const DefaultRingSize = 8

// ErrRingClosed is returned by Next once the ring is closed and drained.
var ErrRingClosed = errors.New("host: frame ring closed")

// FrameRing is a bounded single-producer single-consumer queue of completed
// frames, synchronized by its index pair alone: the producer stores tail only
// after the slot is written, the consumer stores head only after the slot is
// read, and each index is written by exactly one goroutine. The mutex and
// condition variable guard nothing but the empty-buffer wait in Next.
//
// The producer never blocks: pushing into a full ring drops the new frame,
// so a slow consumer costs frames, not receiver throughput. One slot stays
// open to tell full from empty, so a ring of size N retains N-1 frames.
type FrameRing struct {
	slots []*Frame
	mask  uint32

	// head is advanced only by the consumer, tail only by the producer.
	head atomic.Uint32
	tail atomic.Uint32

	closed atomic.Bool

	mu   sync.Mutex
	cond *sync.Cond
}

// NewFrameRing creates a ring holding up to size frames. Size is rounded up
// to a power of two so indexes wrap with a mask.
func NewFrameRing(size int) *FrameRing {
	if size < 1 {
		size = DefaultRingSize
	}

	n := 2
	for n < size {
		n <<= 1
	}

	r := &FrameRing{slots: make([]*Frame, n), mask: uint32(n - 1)}
	r.cond = sync.NewCond(&r.mu)

	return r
}

// Cap returns the ring capacity.
func (r *FrameRing) Cap() int { return len(r.slots) }

// Len returns the number of frames waiting to be consumed.
func (r *FrameRing) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Push offers a frame to the consumer. It reports false when the ring is
// full or closed and the frame was dropped. Only the producer may call Push.
func (r *FrameRing) Push(f *Frame) bool {
	if r.closed.Load() {
		return false
	}

	tail := r.tail.Load()
	if tail-r.head.Load() == uint32(len(r.slots)-1) {
		return false
	}

	r.slots[tail&r.mask] = f
	// Publishes the slot write: the consumer reads the slot only after
	// loading the advanced tail.
	r.tail.Store(tail + 1)

	r.mu.Lock()
	r.cond.Signal()
	r.mu.Unlock()

	return true
}

// TryNext returns the oldest waiting frame, or nil when the ring is empty.
// Only the consumer may call TryNext.
func (r *FrameRing) TryNext() *Frame {
	head := r.head.Load()
	if head == r.tail.Load() {
		return nil
	}

	f := r.slots[head&r.mask]
	r.slots[head&r.mask] = nil
	// Returns the slot to the producer.
	r.head.Store(head + 1)

	return f
}

// Next blocks until a frame is available, the context is canceled, or the
// ring is closed and drained. Only the consumer may call Next.
func (r *FrameRing) Next(ctx context.Context) (*Frame, error) {
	// Wake the cond wait when the context fires. AfterFunc keeps the wait
	// cancelable without polling.
	stop := context.AfterFunc(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.cond.Broadcast()
	})
	defer stop()

	for {
		if f := r.TryNext(); f != nil {
			return f, nil
		}

		if r.closed.Load() {
			// A frame pushed just before Close must still drain.
			if f := r.TryNext(); f != nil {
				return f, nil
			}

			return nil, ErrRingClosed
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r.mu.Lock()
		// Recheck under the lock: a push that landed after TryNext signals
		// before this wait starts, and would otherwise be missed.
		if r.Len() == 0 && !r.closed.Load() && ctx.Err() == nil {
			r.cond.Wait()
		}
		r.mu.Unlock()
	}
}

// Close wakes all waiters. Frames already in the ring remain consumable.
func (r *FrameRing) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}

	r.mu.Lock()
	r.cond.Broadcast()
	r.mu.Unlock()
}
