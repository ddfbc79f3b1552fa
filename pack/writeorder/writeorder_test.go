package writeorder

import (
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/require"

	"github.com/go-git/gopack/pack/object"
)

type fakeTags struct {
	tips map[string]plumbing.Hash
}

func (f *fakeTags) ForEach(fn func(name string, target plumbing.Hash) error) error {
	for name, id := range f.tips {
		if err := fn(name, id); err != nil {
			return err
		}
	}
	return nil
}

func idFor(b byte) plumbing.Hash {
	var h plumbing.Hash
	h[0] = b
	return h
}

func TestPlanVisitsEveryEntryExactlyOnce(t *testing.T) {
	base := &object.Entry{ID: idFor(1), Type: plumbing.BlobObject}
	child := &object.Entry{ID: idFor(2), Type: plumbing.BlobObject, DeltaBase: base}

	// The planner groups by recency/tag/type, not strictly by delta
	// dependency: a delta's base can still land after it in the
	// returned order here (pack/write's WriteOne recurses to the base
	// at write time regardless of position, the way libgit2's
	// write_one does). Plan's own contract is only full coverage with
	// no duplicates.
	entries := []*object.Entry{child, base}

	wo, err := Plan(entries, nil)
	require.NoError(t, err)
	require.ElementsMatch(t, entries, wo)
}

func TestPlanPutsTaggedTipsBeforeUntaggedRest(t *testing.T) {
	a := &object.Entry{ID: idFor(1), Type: plumbing.CommitObject}
	b := &object.Entry{ID: idFor(2), Type: plumbing.CommitObject}
	c := &object.Entry{ID: idFor(3), Type: plumbing.CommitObject}

	entries := []*object.Entry{a, b, c}
	tags := &fakeTags{tips: map[string]plumbing.Hash{"v1": b.ID}}

	wo, err := Plan(entries, tags)
	require.NoError(t, err)
	require.Len(t, wo, 3)
	require.Same(t, a, wo[0])
	require.Same(t, b, wo[1])
	require.Same(t, c, wo[2])
}

func TestPlanKeepsRegistrationOrderWithoutTags(t *testing.T) {
	blob := &object.Entry{ID: idFor(1), Type: plumbing.BlobObject}
	tree := &object.Entry{ID: idFor(2), Type: plumbing.TreeObject}
	commit := &object.Entry{ID: idFor(3), Type: plumbing.CommitObject}

	// Registration order is the reverse of the type-grouping order.
	// Nothing is tagged, so the whole list is the untagged prefix and
	// the type-grouping passes never see it.
	entries := []*object.Entry{blob, tree, commit}

	wo, err := Plan(entries, nil)
	require.NoError(t, err)
	require.Len(t, wo, 3)
	// With no tags, every entry is emitted in the first
	// "original recency order" pass untouched by type grouping.
	require.Same(t, blob, wo[0])
	require.Same(t, tree, wo[1])
	require.Same(t, commit, wo[2])
}

func TestPlanFamilyStaysContiguous(t *testing.T) {
	root := &object.Entry{ID: idFor(1), Type: plumbing.BlobObject, Tagged: true}
	childA := &object.Entry{ID: idFor(2), Type: plumbing.BlobObject, DeltaBase: root}
	childB := &object.Entry{ID: idFor(3), Type: plumbing.BlobObject, DeltaBase: root}
	unrelated := &object.Entry{ID: idFor(4), Type: plumbing.BlobObject}

	entries := []*object.Entry{unrelated, root, childA, childB}
	tags := &fakeTags{tips: map[string]plumbing.Hash{"v1": root.ID}}

	wo, err := Plan(entries, tags)
	require.NoError(t, err)
	require.Len(t, wo, 4)

	// root comes before its children, and the children follow it
	// directly, in registration order.
	idx := func(e *object.Entry) int {
		for i, x := range wo {
			if x == e {
				return i
			}
		}
		return -1
	}
	require.Less(t, idx(root), idx(childA))
	require.Less(t, idx(root), idx(childB))
	require.Equal(t, idx(root)+1, idx(childA))
	require.Equal(t, idx(childA)+1, idx(childB))
}
