// Package schedule implements the delta search schedule: the sort that
// groups similar objects together, the sliding window that bounds how
// many candidate sources are held in memory at once, and the
// single-threaded and work-stealing multi-threaded drivers that run the
// delta engine over a sorted object list (spec.md §4.3).
package schedule

import (
	"sort"

	"github.com/go-git/gopack/pack/object"
)

// minDeltaSize is the smallest object size worth attempting to delta at
// all; below it the two-byte minimum copy overhead always loses to
// storing the object in full.
const minDeltaSize = 50

// Candidates returns the subset of entries eligible for delta search
// (size >= minDeltaSize, NoTryDelta unset), sorted so that objects
// likely to compress well against each other land next to one another
// in the list: by type, then by name-hash locality, then by
// descending size, then newest-inserted-first as a final tie-break.
// Ported from libgit2's type_size_sort.
func Candidates(entries []*object.Entry) []*object.Entry {
	out := make([]*object.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Size < minDeltaSize || e.NoTryDelta {
			continue
		}
		out = append(out, e)
	}

	// Seq() fully orders any remaining tie, so a plain unstable sort is
	// correct here and avoids SliceStable's extra allocation/merge cost.
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Type != b.Type {
			return a.Type > b.Type
		}
		if a.NameHash != b.NameHash {
			return a.NameHash > b.NameHash
		}
		if a.Size != b.Size {
			return a.Size > b.Size
		}
		return a.Seq() > b.Seq()
	})
	return out
}
