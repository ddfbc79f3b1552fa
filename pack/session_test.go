package pack

import (
	"bytes"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/require"

	"github.com/go-git/gopack/pack/odb/memory"
)

func TestSessionWriteBufProducesValidPackStream(t *testing.T) {
	store := memory.NewStore()

	blobA := store.Put(plumbing.BlobObject, bytes.Repeat([]byte("a"), 200))
	blobB := store.Put(plumbing.BlobObject, append(bytes.Repeat([]byte("a"), 200), []byte("tail")...))

	s, err := NewSession(store, nil)
	require.NoError(t, err)

	require.NoError(t, s.Insert(blobA, "a.txt"))
	require.NoError(t, s.Insert(blobB, "b.txt"))

	var buf bytes.Buffer
	digest, err := s.WriteBuf(&buf)
	require.NoError(t, err)
	require.NotEqual(t, plumbing.ZeroHash, digest)

	out := buf.Bytes()
	require.Equal(t, "PACK", string(out[:4]))
	require.Equal(t, digest[:], out[len(out)-20:])
}

func TestSessionPrepareIsIdempotentWithoutNewInserts(t *testing.T) {
	store := memory.NewStore()
	blob := store.Put(plumbing.BlobObject, []byte("only object"))

	s, err := NewSession(store, nil)
	require.NoError(t, err)
	require.NoError(t, s.Insert(blob, "only.txt"))

	var first, second bytes.Buffer
	d1, err := s.WriteBuf(&first)
	require.NoError(t, err)
	d2, err := s.WriteBuf(&second)
	require.NoError(t, err)

	require.Equal(t, d1, d2)
	require.Equal(t, first.Bytes(), second.Bytes())
}

func TestSessionWriteAtomicallyRenamesIntoPlace(t *testing.T) {
	store := memory.NewStore()
	blob := store.Put(plumbing.BlobObject, []byte("file sink object"))

	s, err := NewSession(store, nil)
	require.NoError(t, err)
	require.NoError(t, s.Insert(blob, "f.txt"))

	fs := memfs.New()
	digest, err := s.Write(nil, fs, "out.pack")
	require.NoError(t, err)
	require.NotEqual(t, plumbing.ZeroHash, digest)

	f, err := fs.Open("out.pack")
	require.NoError(t, err)
	defer f.Close()

	var got bytes.Buffer
	_, err = got.ReadFrom(f)
	require.NoError(t, err)
	require.Equal(t, "PACK", got.String()[:4])
}
