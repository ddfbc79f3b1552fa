package schedule

import (
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/require"

	"github.com/go-git/gopack/pack/object"
)

func TestCandidatesDropsSmallAndNoTryDelta(t *testing.T) {
	entries := []*object.Entry{
		{Type: plumbing.BlobObject, Size: 10},
		{Type: plumbing.BlobObject, Size: 1000, NoTryDelta: true},
		{Type: plumbing.BlobObject, Size: 1000},
	}

	out := Candidates(entries)
	require.Len(t, out, 1)
	require.Same(t, entries[2], out[0])
}

func TestCandidatesOrdersByTypeThenNameHashThenSize(t *testing.T) {
	blobSmall := &object.Entry{Type: plumbing.BlobObject, Size: 100, NameHash: 1}
	blobBig := &object.Entry{Type: plumbing.BlobObject, Size: 5000, NameHash: 1}
	tree := &object.Entry{Type: plumbing.TreeObject, Size: 200, NameHash: 1}

	// Blob (type 3) sorts ahead of Tree (type 2); within the same type,
	// larger objects sort first.
	out := Candidates([]*object.Entry{blobSmall, blobBig, tree})
	require.Equal(t, []*object.Entry{blobBig, blobSmall, tree}, out)
}
