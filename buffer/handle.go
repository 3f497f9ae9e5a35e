package buffer

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Deleter releases the memory an externally supplied region occupies. It
// is called exactly once, after the handle's liveness flag has already
// flipped false.
type Deleter func(virtAddr []byte)

// Handle carries ownership of one externally supplied region into a
// pool and guarantees its Deleter runs exactly once. Move-only in the
// original; in Go that contract becomes "call Close at most once and
// stop using the Handle afterwards" — there is no copy constructor to
// forbid.
//
// Grounded on BufferHandle.hpp/.cpp: virt+phys address, size, deleter,
// and a shared "alive" flag exposed to observers as a Tracker that does
// not extend the handle's lifetime, the same shape as the original's
// weak_ptr<bool> over a shared_ptr<bool>.
type Handle struct {
	virt     []byte
	physAddr uint64
	deleter  Deleter

	alive  *atomic.Bool
	closed sync.Once
}

// NewHandle constructs a Handle over an externally supplied region. A
// nil deleter means the region is never automatically released.
func NewHandle(virt []byte, physAddr uint64, deleter Deleter) *Handle {
	alive := &atomic.Bool{}
	alive.Store(true)
	return &Handle{
		virt:     virt,
		physAddr: physAddr,
		deleter:  deleter,
		alive:    alive,
	}
}

// VirtualAddress returns the handle's virtual address.
func (h *Handle) VirtualAddress() []byte { return h.virt }

// PhysicalAddress returns the handle's physical address, 0 if unknown.
func (h *Handle) PhysicalAddress() uint64 { return h.physAddr }

// Size returns the handle's region size in bytes.
func (h *Handle) Size() int { return len(h.virt) }

// IsValid reports whether the handle still refers to a live region.
func (h *Handle) IsValid() bool { return h.virt != nil && h.alive.Load() }

// Tracker returns a weak observer of this handle's liveness flag. A
// Tracker holds only the small shared flag, never the handle or its
// memory, so retaining one does not keep the region's memory reachable.
func (h *Handle) Tracker() *Tracker { return &Tracker{alive: h.alive} }

// Close flips the liveness flag false, then runs the deleter (if any).
// A panic raised by the deleter is caught and logged; the flag is
// already false by the time the deleter runs, so any observer sees "do
// not use" from the moment Close begins. Safe to call more than once;
// only the first call has effect.
func (h *Handle) Close() {
	h.closed.Do(func() {
		h.alive.Store(false)
		if h.deleter == nil {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				slog.Warn("buffer: handle deleter panicked", "recover", r)
			}
		}()
		h.deleter(h.virt)
	})
}

// Tracker is a weak reference to a Handle's liveness flag: observers can
// ask "is the region this flag guards still alive" without extending the
// handle's lifetime or being able to reach its memory. Mirrors
// std::weak_ptr<bool>::lock() semantics: once the handle's flag has
// flipped false, Alive permanently reports false.
type Tracker struct {
	alive *atomic.Bool
}

// Alive reports whether the tracked handle is still live. Either a
// concurrent Close mid-flight or one already completed is observed as
// false — the spec only requires that "do not use" be visible, not a
// precise race ordering.
func (t *Tracker) Alive() bool {
	if t == nil || t.alive == nil {
		return false
	}
	return t.alive.Load()
}
