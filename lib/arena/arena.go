// Package arena provides a fixed-capacity slot allocator addressed by
// generation-checked handles. Memory is allocated once at construction time,
// Alloc and Free are O(1) and never block.
//
// An Arena is not safe for concurrent use; callers serialize access with
// their own lock.
package arena

import (
	"errors"
	"sync/atomic"
)

var (
	ErrStaleHandle = errors.New("stale or invalid arena handle")
)

// epochs numbers arenas so a handle never resolves in an arena other than
// the one that issued it.
var epochs atomic.Uint32

// Handle addresses one slot of an Arena. The zero Handle is never valid.
type Handle struct {
	epoch uint32
	index uint32
	gen   uint32
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h.gen == 0
}

// Index returns the slot index of the handle.
func (h Handle) Index() int {
	return int(h.index)
}

type slot[T any] struct {
	gen  uint32
	used bool
	val  T
}

type Arena[T any] struct {
	epoch uint32
	slots []slot[T]
	free  []uint32
}

func New[T any](capacity int) *Arena[T] {
	a := &Arena[T]{
		epoch: epochs.Add(1),
		slots: make([]slot[T], capacity),
		free:  make([]uint32, 0, capacity),
	}

	// hand out low indexes first
	for i := capacity - 1; i >= 0; i-- {
		a.free = append(a.free, uint32(i))
	}

	return a
}

// Alloc takes a zeroed slot from the free list. ok is false when the arena
// is exhausted.
func (a *Arena[T]) Alloc() (Handle, *T, bool) {
	n := len(a.free)
	if n == 0 {
		return Handle{}, nil, false
	}

	idx := a.free[n-1]
	a.free = a.free[:n-1]

	s := &a.slots[idx]
	s.gen++
	if s.gen == 0 {
		// skip the zero generation on wraparound
		s.gen = 1
	}
	s.used = true

	var zero T
	s.val = zero

	return Handle{epoch: a.epoch, index: idx, gen: s.gen}, &s.val, true
}

// Get resolves h to its slot value. ok is false for freed or stale handles.
func (a *Arena[T]) Get(h Handle) (*T, bool) {
	s, ok := a.slot(h)
	if !ok {
		return nil, false
	}

	return &s.val, true
}

// Free returns the slot addressed by h to the free list.
func (a *Arena[T]) Free(h Handle) error {
	s, ok := a.slot(h)
	if !ok {
		return ErrStaleHandle
	}

	var zero T
	s.val = zero
	s.used = false
	a.free = append(a.free, h.index)

	return nil
}

func (a *Arena[T]) slot(h Handle) (*slot[T], bool) {
	if h.IsZero() || h.epoch != a.epoch || int(h.index) >= len(a.slots) {
		return nil, false
	}

	s := &a.slots[h.index]
	if !s.used || s.gen != h.gen {
		return nil, false
	}

	return s, true
}

// Cap returns the total number of slots.
func (a *Arena[T]) Cap() int {
	return len(a.slots)
}

// Available returns the number of free slots.
func (a *Arena[T]) Available() int {
	return len(a.free)
}

// InUse returns the number of allocated slots.
func (a *Arena[T]) InUse() int {
	return len(a.slots) - len(a.free)
}
