package schedule

import (
	"github.com/go-git/gopack/pack/delta"
	"github.com/go-git/gopack/pack/object"
	"github.com/go-git/gopack/pack/odb"
)

// checkDeltaLimit returns the deepest delta chain hanging off e,
// counting from n. Used to keep an object that already has dependents
// from being pushed past the overall depth budget once those
// dependents are re-encoded against it. Ported from libgit2's
// check_delta_limit; in a single Plan/Run pass DeltaChild is always nil
// here (the write-order planner populates it afterwards), so this is a
// no-op safeguard kept for a scheduler that runs a second pass over
// entries a prior Plan already linked.
func checkDeltaLimit(e *object.Entry, n int) int {
	m := n
	for child := e.DeltaChild; child != nil; child = child.DeltaSibling {
		if c := checkDeltaLimit(child, n+1); c > m {
			m = c
		}
	}
	return m
}

// Run performs single-threaded delta search over candidates, the order
// Candidates returns them in, sliding window across them and evicting
// slots once memLimit is exceeded. Ported from libgit2's find_deltas;
// the original's opportunistic mid-search compression of cached deltas
// is deferred to the writer here (SPEC_FULL.md Open Question 5), since
// zlib compression belongs next to the one place that needs the
// compressed bytes at all.
func Run(db odb.Database, candidates []*object.Entry, window *Window, maxDepth int, cache *delta.Cache, memLimit int64) error {
	var memUsage int64
	for _, po := range candidates {
		if err := runOne(db, po, window, maxDepth, &memUsage, cache, memLimit); err != nil {
			return err
		}
	}
	return nil
}

// runOne inserts po into window and runs one find_deltas iteration
// against it, the body of Run's loop extracted so a threaded worker can
// drive its own window one entry at a time while still threading a
// single memUsage accumulator across every entry it processes — the
// window_memory_limit eviction needs to see load from every object
// still resident in the worker's window, not just the one Run call
// that happened to insert it.
func runOne(db odb.Database, po *object.Entry, window *Window, maxDepth int, memUsage *int64, cache *delta.Cache, memLimit int64) error {
	*memUsage -= window.Insert(po)

	for window.Count() > 1 && memLimit > 0 && *memUsage > memLimit {
		*memUsage -= window.Evict()
	}

	depth := maxDepth
	if po.DeltaChild != nil {
		depth -= checkDeltaLimit(po, 0)
		if depth <= 0 {
			window.Advance()
			return nil
		}
	}

	n := window.Current()
	bestBase := -1
	for j := window.Len() - 1; j > 0; j-- {
		m := window.At(j)
		if m.Entry == nil {
			break
		}

		ret, err := delta.TryDelta(db, n, m, depth, memUsage, cache)
		if err != nil {
			return err
		}
		if ret < 0 {
			break
		}
		if ret > 0 {
			bestBase = j
		}
	}

	if po.HasDelta() && depth <= n.Depth {
		// Already delta'd at the depth ceiling: leave idx where it is
		// so the very next Insert reclaims this slot immediately,
		// rather than keeping a maxed-out object around at the cost
		// of evicting an older, still-useful base (libgit2's
		// find_deltas does not advance its idx in this case either).
		return nil
	}

	if po.HasDelta() && bestBase > 0 {
		window.PromoteToFront(resolveRingIndex(window, bestBase))
	}

	window.Advance()
	return nil
}

// resolveRingIndex turns an At() offset (relative to the window's
// current position) into the absolute ring index PromoteToFront needs.
func resolveRingIndex(w *Window, j int) int {
	n := w.Len()
	other := int(w.idx) + j
	if other >= n {
		other -= n
	}
	return other
}
