package memory

import (
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/require"
)

func TestStorePutIsContentAddressedAndIdempotent(t *testing.T) {
	s := NewStore()
	data := []byte("hello")

	id1 := s.Put(plumbing.BlobObject, data)
	id2 := s.Put(plumbing.BlobObject, data)
	require.Equal(t, id1, id2)

	typ, got, err := s.ReadObject(id1)
	require.NoError(t, err)
	require.Equal(t, plumbing.BlobObject, typ)
	require.Equal(t, data, got)
}

func TestStoreReadUnknownObjectErrors(t *testing.T) {
	s := NewStore()
	_, _, err := s.ReadObject(plumbing.ZeroHash)
	require.Error(t, err)
}

func TestStoreForEachEnumeratesTags(t *testing.T) {
	s := NewStore()
	target := s.Put(plumbing.CommitObject, []byte("commit body"))
	s.PutTag("v1.0.0", target)

	seen := map[string]plumbing.Hash{}
	require.NoError(t, s.ForEach(func(name string, t plumbing.Hash) error {
		seen[name] = t
		return nil
	}))
	require.Equal(t, target, seen["v1.0.0"])
}

// buildTree stores a single-level tree object with the given entries
// and returns its hash, mirroring git's binary tree wire format.
func buildTree(t *testing.T, s *Store, entries []treeEntry) plumbing.Hash {
	t.Helper()
	var buf []byte
	for _, e := range entries {
		mode := "100644"
		if e.isDir {
			mode = "40000"
		}
		buf = append(buf, []byte(mode)...)
		buf = append(buf, ' ')
		buf = append(buf, []byte(e.name)...)
		buf = append(buf, 0)
		buf = append(buf, e.hash[:]...)
	}
	return s.Put(plumbing.TreeObject, buf)
}

func TestWalkVisitsNestedTreesPreOrder(t *testing.T) {
	s := NewStore()

	blobA := s.Put(plumbing.BlobObject, []byte("a contents"))
	blobB := s.Put(plumbing.BlobObject, []byte("b contents"))

	subtree := buildTree(t, s, []treeEntry{{name: "b.txt", hash: blobB}})
	root := buildTree(t, s, []treeEntry{
		{name: "a.txt", hash: blobA},
		{name: "sub", hash: subtree, isDir: true},
	})

	var paths []string
	require.NoError(t, s.Walk(root, func(path string, id plumbing.Hash) error {
		paths = append(paths, path)
		return nil
	}))

	require.Equal(t, []string{"a.txt", "sub", "sub/b.txt"}, paths)
}

func TestWalkRejectsNonTreeRoot(t *testing.T) {
	s := NewStore()
	blob := s.Put(plumbing.BlobObject, []byte("not a tree"))
	err := s.Walk(blob, func(string, plumbing.Hash) error { return nil })
	require.Error(t, err)
}
