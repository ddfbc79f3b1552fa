package object

import (
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/go-git/gopack/pack/odb"
	"github.com/go-git/gopack/pack/perr"
)

// Registry is the deduplicated table of objects slated for a pack,
// keyed by identifier (spec.md §3/§4.1).
//
// Entries are held behind stable *Entry pointers so that regrowing the
// backing slice never invalidates a pointer another entry's DeltaBase,
// DeltaChild, or DeltaSibling holds — unlike the C array-of-structs this
// is ported from, no rehash is needed on regrowth (see SPEC_FULL.md,
// Open Question 1 for the related delta-forest decision).
type Registry struct {
	byID map[ID]*Entry
	list []*Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[ID]*Entry)}
}

// Len returns the number of registered entries.
func (r *Registry) Len() int { return len(r.list) }

// Get looks up an entry by identifier.
func (r *Registry) Get(id ID) (*Entry, bool) {
	e, ok := r.byID[id]
	return e, ok
}

// All returns every entry, in original insertion order. The returned
// slice must not be mutated or retained across further inserts.
func (r *Registry) All() []*Entry { return r.list }

// Insert registers id under the given locality-hint name. A no-op if id
// is already present. Reads the object's type and size from db.
func (r *Registry) Insert(db odb.Database, id ID, name string) error {
	if _, ok := r.byID[id]; ok {
		return nil
	}

	typ, size, err := db.ReadHeader(id)
	if err != nil {
		return perr.Wrap(perr.InvalidObject, err).
			AddDetails("reading header for %s", id)
	}

	e := &Entry{
		ID:       id,
		Type:     typ,
		Size:     size,
		NameHash: NameHash(name),
		seq:      len(r.list),
	}
	r.list = append(r.list, e)
	r.byID[id] = e
	return nil
}

// InsertTree registers root and then pre-order walks it via walker,
// inserting every entry under the path concatenated from the root (the
// locality hint that drives delta search).
func (r *Registry) InsertTree(db odb.Database, walker odb.TreeWalker, root ID) error {
	if err := r.Insert(db, root, ""); err != nil {
		return err
	}

	return walker.Walk(root, func(path string, id ID) error {
		return r.Insert(db, id, path)
	})
}

// MarkNoTryDelta sets NoTryDelta on every entry whose size exceeds
// threshold. A threshold of 0 disables the check (no entry is marked).
// Grounded on pack-objects.c's get_object_details; supplements spec.md's
// boundary-behavior mention of big_file_threshold (SPEC_FULL.md,
// "Supplemented features" #1).
func MarkNoTryDelta(entries []*Entry, threshold uint64) {
	if threshold == 0 {
		return
	}
	for _, e := range entries {
		if uint64(e.Size) > threshold {
			e.NoTryDelta = true
		}
	}
}

// BaseTypes are the four object kinds a registered entry may have.
var BaseTypes = [...]plumbing.ObjectType{
	plumbing.CommitObject,
	plumbing.TreeObject,
	plumbing.BlobObject,
	plumbing.TagObject,
}
