// Package writeorder computes the order objects are emitted into a
// pack stream: deltas must follow their base, and grouping whole delta
// families together keeps a streaming reader's working set small
// (spec.md §4.4). Ported from libgit2's compute_write_order.
package writeorder

import (
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/go-git/gopack/pack/object"
	"github.com/go-git/gopack/pack/odb"
	"github.com/go-git/gopack/pack/perr"
)

// Plan returns entries in write order: first every entry before the
// first tagged one, in original registration order; then the tagged
// tips; then the remaining commits and tags; then the remaining trees;
// then everything left, each as a whole delta family walked in
// pre-order from its root. The untagged prefix is emitted as registered,
// so there a delta can come before its base; Writer.WriteOne writes a
// base first when it reaches such a delta.
func Plan(entries []*object.Entry, tagTips odb.TagEnumerator) ([]*object.Entry, error) {
	for _, e := range entries {
		e.Tagged = false
		e.Filled = false
		e.DeltaChild = nil
		e.DeltaSibling = nil
	}

	// Build the delta forest in reverse insertion order so that, once
	// reversed back by the singly-linked prepend below, each parent's
	// children chain in original recency order.
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.DeltaBase == nil {
			continue
		}
		e.DeltaSibling = e.DeltaBase.DeltaChild
		e.DeltaBase.DeltaChild = e
	}

	if tagTips != nil {
		byID := make(map[object.ID]*object.Entry, len(entries))
		for _, e := range entries {
			byID[e.ID] = e
		}
		if err := tagTips.ForEach(func(name string, target object.ID) error {
			if e, ok := byID[target]; ok {
				e.Tagged = true
			}
			return nil
		}); err != nil {
			return nil, perr.Wrap(perr.Unknown, err).AddDetails("enumerating tag tips")
		}
	}

	wo := make([]*object.Entry, 0, len(entries))

	// Original recency order up to the first tagged tip.
	lastUntagged := 0
	for lastUntagged < len(entries) && !entries[lastUntagged].Tagged {
		appendOnce(&wo, entries[lastUntagged])
		lastUntagged++
	}

	// Then every tagged tip.
	for i := lastUntagged; i < len(entries); i++ {
		if entries[i].Tagged {
			appendOnce(&wo, entries[i])
		}
	}

	// Then remaining commits and tags.
	for i := lastUntagged; i < len(entries); i++ {
		if entries[i].Type == plumbing.CommitObject || entries[i].Type == plumbing.TagObject {
			appendOnce(&wo, entries[i])
		}
	}

	// Then remaining trees.
	for i := lastUntagged; i < len(entries); i++ {
		if entries[i].Type == plumbing.TreeObject {
			appendOnce(&wo, entries[i])
		}
	}

	// Finally everything left, each as a whole delta family.
	for i := lastUntagged; i < len(entries); i++ {
		if !entries[i].Filled {
			addFamily(&wo, entries[i])
		}
	}

	if len(wo) != len(entries) {
		return nil, perr.New(perr.InvalidObject, "write order planner dropped entries").
			AddDetails("want %d have %d", len(entries), len(wo))
	}
	return wo, nil
}

// addFamily finds the root of po's delta chain and emits the whole
// family rooted there.
func addFamily(wo *[]*object.Entry, po *object.Entry) {
	root := po
	for root.DeltaBase != nil {
		root = root.DeltaBase
	}
	addDescendants(wo, root)
}

// addDescendants walks a delta family depth-first: a node, then all of
// its siblings at the same level, recursing into the leftmost child
// subtree before backtracking — an iterative pre-order walk that
// mirrors the parent/sibling/child pointer-chasing of the original C
// so a base entry is always appended before anything delta-encoded
// against it.
func addDescendants(wo *[]*object.Entry, po *object.Entry) {
	addToOrder := true
	for po != nil {
		if addToOrder {
			appendOnce(wo, po)
			for s := po.DeltaSibling; s != nil; s = s.DeltaSibling {
				appendOnce(wo, s)
			}
		}

		if po.DeltaChild != nil {
			addToOrder = true
			po = po.DeltaChild
			continue
		}

		addToOrder = false
		if po.DeltaSibling != nil {
			po = po.DeltaSibling
			continue
		}

		po = po.DeltaBase
		for po != nil && po.DeltaSibling == nil {
			po = po.DeltaBase
		}
		if po == nil {
			return
		}
		po = po.DeltaSibling
	}
}

func appendOnce(wo *[]*object.Entry, e *object.Entry) {
	if e.Filled {
		return
	}
	*wo = append(*wo, e)
	e.Filled = true
}
