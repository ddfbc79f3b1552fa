// Package memory implements pack/odb's Database, TreeWalker, and
// TagEnumerator contracts over an in-process map, for tests and the
// cmd/gopack demo where a real on-disk object database is overkill.
package memory

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/go-git/gopack/pack/perr"
)

type record struct {
	typ  plumbing.ObjectType
	data []byte
}

// Store is a thread-safe, in-memory object database keyed by content
// hash. It implements pack/odb.Database, pack/odb.TreeWalker, and
// pack/odb.TagEnumerator directly so a Session can be driven end to
// end without an on-disk repository.
type Store struct {
	mu      sync.RWMutex
	objects map[plumbing.Hash]record
	tags    map[string]plumbing.Hash
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		objects: make(map[plumbing.Hash]record),
		tags:    make(map[string]plumbing.Hash),
	}
}

// Put computes data's hash, stores it under that key, and returns the
// hash. Storing the same content twice is a no-op beyond the redundant
// hash computation.
func (s *Store) Put(typ plumbing.ObjectType, data []byte) plumbing.Hash {
	id := plumbing.ComputeHash(typ, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[id]; !ok {
		cp := make([]byte, len(data))
		copy(cp, data)
		s.objects[id] = record{typ: typ, data: cp}
	}
	return id
}

// PutTag records name as pointing directly at target, for later
// enumeration by ForEach. Annotated tag objects are not modeled
// separately; name resolves straight to the hash it marks.
func (s *Store) PutTag(name string, target plumbing.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[name] = target
}

// ReadHeader implements pack/odb.Database.
func (s *Store) ReadHeader(id plumbing.Hash) (plumbing.ObjectType, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.objects[id]
	if !ok {
		return plumbing.InvalidObject, 0, perr.New(perr.InvalidObject, fmt.Sprintf("unknown object %s", id))
	}
	return r.typ, int64(len(r.data)), nil
}

// ReadObject implements pack/odb.Database.
func (s *Store) ReadObject(id plumbing.Hash) (plumbing.ObjectType, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.objects[id]
	if !ok {
		return plumbing.InvalidObject, nil, perr.New(perr.InvalidObject, fmt.Sprintf("unknown object %s", id))
	}
	return r.typ, r.data, nil
}

// ForEach implements pack/odb.TagEnumerator.
func (s *Store) ForEach(fn func(name string, target plumbing.Hash) error) error {
	s.mu.RLock()
	tags := make(map[string]plumbing.Hash, len(s.tags))
	for k, v := range s.tags {
		tags[k] = v
	}
	s.mu.RUnlock()

	for name, target := range tags {
		if err := fn(name, target); err != nil {
			return err
		}
	}
	return nil
}

// Walk implements pack/odb.TreeWalker: a pre-order walk of root's
// entries, decoding git's tree wire format directly (mode SP name NUL
// 20-byte hash, repeated), the same shape plumbing/object.Tree.Decode
// parses.
func (s *Store) Walk(root plumbing.Hash, fn func(path string, id plumbing.Hash) error) error {
	return s.walk(root, "", fn)
}

func (s *Store) walk(id plumbing.Hash, prefix string, fn func(path string, id plumbing.Hash) error) error {
	typ, data, err := s.ReadObject(id)
	if err != nil {
		return err
	}
	if typ != plumbing.TreeObject {
		return perr.New(perr.InvalidObject, fmt.Sprintf("%s is not a tree", id)).AddDetails("got type %s", typ)
	}

	entries, err := decodeTreeEntries(data)
	if err != nil {
		return perr.Wrap(perr.InvalidObject, err).AddDetails("decoding tree %s", id)
	}

	for _, e := range entries {
		path := e.name
		if prefix != "" {
			path = prefix + "/" + e.name
		}
		if err := fn(path, e.hash); err != nil {
			return err
		}
		if e.isDir {
			if err := s.walk(e.hash, path, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

const dirMode = 0o40000

type treeEntry struct {
	name  string
	hash  plumbing.Hash
	isDir bool
}

func decodeTreeEntries(data []byte) ([]treeEntry, error) {
	var entries []treeEntry
	for len(data) > 0 {
		sp := bytes.IndexByte(data, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("malformed tree entry: missing mode separator")
		}
		mode, err := strconv.ParseInt(string(data[:sp]), 8, 32)
		if err != nil {
			return nil, fmt.Errorf("malformed tree entry mode: %w", err)
		}
		data = data[sp+1:]

		nul := bytes.IndexByte(data, 0)
		if nul < 0 {
			return nil, fmt.Errorf("malformed tree entry: missing name terminator")
		}
		name := string(data[:nul])
		data = data[nul+1:]

		if len(data) < 20 {
			return nil, fmt.Errorf("malformed tree entry: truncated hash")
		}
		var hash plumbing.Hash
		copy(hash[:], data[:20])
		data = data[20:]

		entries = append(entries, treeEntry{name: name, hash: hash, isDir: mode == dirMode})
	}
	return entries, nil
}

// LoadFixture opens the git database rooted at dotGit (a fixture's
// DotGit() filesystem, or any bare .git directory) and copies every
// commit, tree, blob, tag object, and tag reference into a fresh
// Store. Grounded on go-git's own filesystem-storage + fixtures
// pattern (storage/filesystem.NewStorage over a fixture's DotGit()).
func LoadFixture(dotGit billy.Filesystem) (*Store, error) {
	st := filesystem.NewStorage(dotGit, cache.NewObjectLRUDefault())
	repo, err := git.Open(st, nil)
	if err != nil {
		return nil, perr.Wrap(perr.ConfigRead, err).AddDetails("opening fixture database")
	}

	s := NewStore()
	for _, typ := range []plumbing.ObjectType{
		plumbing.CommitObject, plumbing.TreeObject, plumbing.BlobObject, plumbing.TagObject,
	} {
		iter, err := repo.Storer.IterEncodedObjects(typ)
		if err != nil {
			return nil, perr.Wrap(perr.ConfigRead, err).AddDetails("iterating %s objects", typ)
		}
		err = iter.ForEach(func(o plumbing.EncodedObject) error {
			r, err := o.Reader()
			if err != nil {
				return err
			}
			defer r.Close()
			buf := make([]byte, o.Size())
			if _, err := io.ReadFull(r, buf); err != nil {
				return err
			}
			s.objects[o.Hash()] = record{typ: o.Type(), data: buf}
			return nil
		})
		if err != nil {
			return nil, perr.Wrap(perr.ConfigRead, err).AddDetails("reading %s objects", typ)
		}
	}

	tagRefs, err := repo.Tags()
	if err != nil {
		return nil, perr.Wrap(perr.ConfigRead, err).AddDetails("listing tag refs")
	}
	err = tagRefs.ForEach(func(ref *plumbing.Reference) error {
		s.tags[ref.Name().Short()] = ref.Hash()
		return nil
	})
	if err != nil {
		return nil, perr.Wrap(perr.ConfigRead, err).AddDetails("enumerating tags")
	}

	return s, nil
}
