package pack

import (
	"bytes"
	"testing"

	"github.com/go-git/go-git/v5"
	fixtures "github.com/go-git/go-git-fixtures/v4"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/stretchr/testify/require"

	"github.com/go-git/gopack/pack/odb/memory"
)

// TestFixtureRoundTripProducesValidPack drives the whole pipeline
// against one of go-git's own canned fixture repositories: the same
// commits/trees/blobs the teacher's own tests use are packed here via
// pack/odb/memory and pack.Session.
func TestFixtureRoundTripProducesValidPack(t *testing.T) {
	defer fixtures.Clean()

	fs := fixtures.Basic().One().DotGit()

	store, err := memory.LoadFixture(fs)
	require.NoError(t, err)

	st := filesystem.NewStorage(fs, cache.NewObjectLRUDefault())
	repo, err := git.Open(st, nil)
	require.NoError(t, err)

	head, err := repo.Head()
	require.NoError(t, err)

	commit, err := object.GetCommit(st, head.Hash())
	require.NoError(t, err)

	s, err := NewSession(store, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.InsertTree(commit.TreeHash))

	var buf bytes.Buffer
	digest, err := s.WriteBuf(&buf)
	require.NoError(t, err)

	out := buf.Bytes()
	require.Equal(t, "PACK", string(out[:4]))
	require.Equal(t, digest[:], out[len(out)-20:])
}
