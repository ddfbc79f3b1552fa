// Package object implements the deduplicated table of objects slated for
// a pack: the Entry record and the Registry that owns it.
package object

import "github.com/go-git/go-git/v5/plumbing"

// ID identifies an object. Reused from go-git's own plumbing package
// rather than reinvented — it is exactly the "opaque fixed-width byte
// string" of spec.md §3.
type ID = plumbing.Hash

// Entry is one registered object: spec.md §3 "Pack object entry".
type Entry struct {
	ID   ID
	Type plumbing.ObjectType
	Size int64

	// NameHash is the 32-bit locality hint computed from the name this
	// object was inserted under. See NameHash below for the contract.
	NameHash uint32

	// DeltaBase is the entry this one is encoded against, or nil when
	// stored in full.
	DeltaBase *Entry
	// DeltaSize is the byte length of the chosen delta. Undefined when
	// DeltaBase is nil.
	DeltaSize int64
	// DeltaBytes caches the uncompressed delta payload. The scheduler
	// does not compress it; the writer deflates it as it streams the
	// record.
	DeltaBytes []byte
	// ZDeltaSize is the compressed length of DeltaBytes when they are
	// held compressed. No stage of this module compresses cached
	// deltas, so it stays zero.
	ZDeltaSize int64

	// DeltaChild/DeltaSibling form the delta forest built by the
	// write-order planner: DeltaChild is this entry's first child (an
	// entry whose DeltaBase points here), DeltaSibling chains to the
	// next child of the same parent in original recency order. Both are
	// reset and rebuilt on every planning pass.
	DeltaChild   *Entry
	DeltaSibling *Entry

	// Transient planner/writer flags (spec.md §3).
	Tagged     bool
	Filled     bool
	Recursing  bool
	Written    bool
	NoTryDelta bool

	// seq is the original insertion order, used as the final sort
	// tie-break (newest first) and by the write-order planner's
	// "forward insertion order" passes.
	seq int
}

// Seq returns the entry's original insertion order.
func (e *Entry) Seq() int { return e.seq }

// HasDelta reports whether the entry is currently encoded as a delta.
func (e *Entry) HasDelta() bool { return e.DeltaBase != nil }

// DropCachedDelta releases any cached delta bytes, returning the number
// of bytes freed so callers can keep a cache-size counter in sync.
func (e *Entry) DropCachedDelta() int64 {
	if e.DeltaBytes == nil {
		return 0
	}
	freed := e.DeltaSize
	if e.ZDeltaSize != 0 {
		freed = e.ZDeltaSize
	}
	e.DeltaBytes = nil
	e.ZDeltaSize = 0
	return freed
}
