package schedule

import (
	"github.com/go-git/gopack/pack/delta"
	"github.com/go-git/gopack/pack/object"
)

// Window is the fixed-size ring of recently-visited objects that the
// delta search scans backward through for a source to delta against
// (spec.md §4.3). Slots are addressed by a rotating index rather than a
// FIFO head/tail, because the search promotes the winning source to the
// front of the ring by rotating slots in place (libgit2's find_deltas)
// — an operation a generic push/pop queue does not expose, so the ring
// is a plain slice rather than a borrowed container type.
type Window struct {
	slots []delta.Unpacked
	idx   uint32
	count uint32
}

// NewWindow allocates a ring holding up to size candidate objects.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{slots: make([]delta.Unpacked, size)}
}

// Len returns the window's fixed capacity.
func (w *Window) Len() int { return len(w.slots) }

// Count returns the number of slots currently occupied.
func (w *Window) Count() int { return int(w.count) }

// Current returns the slot the next Insert will overwrite.
func (w *Window) Current() *delta.Unpacked { return &w.slots[w.idx] }

// At returns the slot j positions after the current one, wrapping
// around the ring; j must be in [1, Len()-1]. At(Len()-1) is the slot
// filled just before the current one, At(1) the oldest.
func (w *Window) At(j int) *delta.Unpacked {
	n := len(w.slots)
	other := int(w.idx) + j
	if other >= n {
		other -= n
	}
	return &w.slots[other]
}

// Insert frees the current slot's payload (returning bytes reclaimed)
// and binds it to e, ready for the caller to run delta search against
// the rest of the ring.
func (w *Window) Insert(e *object.Entry) int64 {
	freed := w.slots[w.idx].Free()
	w.slots[w.idx].Entry = e
	return freed
}

// Evict frees and clears the slot at the tail of the ring, shrinking
// Count by one. Used when window_memory_limit forces the window to
// give up slots early.
func (w *Window) Evict() int64 {
	n := uint32(len(w.slots))
	tail := (w.idx + n - w.count) % n
	freed := w.slots[tail].Free()
	w.count--
	return freed
}

// Advance moves the ring forward by one slot after a candidate has been
// processed, growing Count until the ring is full.
func (w *Window) Advance() {
	if w.count+1 < uint32(len(w.slots)) {
		w.count++
	}
	w.idx++
	if w.idx >= uint32(len(w.slots)) {
		w.idx = 0
	}
}

// PromoteToFront rotates the slot at offset best (as returned by At,
// i.e. a ring index already resolved via At's wrap-around) to sit
// immediately after the slot Insert just filled, preserving the
// relative order of everything else. This keeps a winning delta base
// in the window longer, since it is the first candidate the next
// search will try (libgit2 find_deltas).
func (w *Window) PromoteToFront(best int) {
	n := uint32(len(w.slots))
	swap := w.slots[best]
	dist := (n + w.idx - uint32(best)) % n
	dst := uint32(best)
	for dist > 0 {
		src := (dst + 1) % n
		w.slots[dst] = w.slots[src]
		dst = src
		dist--
	}
	w.slots[dst] = swap
}
