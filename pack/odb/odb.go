// Package odb defines the external-collaborator contracts this module
// builds against: the object database, tree walking, and tag enumeration.
// Nothing in this package implements object storage, reachability, or
// tag peeling — those are out of scope (see spec.md Non-goals); pack/odb
// only names the shapes the rest of the module needs.
package odb

import "github.com/go-git/go-git/v5/plumbing"

// Database reads object payloads by identifier. Implementations are
// assumed thread-safe for concurrent reads (spec.md §5).
type Database interface {
	// ReadHeader returns an object's type and uncompressed size without
	// reading its full payload.
	ReadHeader(id plumbing.Hash) (typ plumbing.ObjectType, size int64, err error)
	// ReadObject returns an object's type and full uncompressed payload.
	ReadObject(id plumbing.Hash) (typ plumbing.ObjectType, data []byte, err error)
}

// TreeWalker pre-order walks a tree, invoking fn with the path from the
// root (slash-joined, no leading slash) and the identifier of each entry,
// including nested trees and the root's direct children.
type TreeWalker interface {
	Walk(root plumbing.Hash, fn func(path string, id plumbing.Hash) error) error
}

// TagEnumerator enumerates every tag in the repository, invoking fn with
// the tag name and the hash it directly points at. Annotated tags are
// not peeled to their underlying commit (spec.md §9 "Peeling tags" is
// preserved verbatim).
type TagEnumerator interface {
	ForEach(fn func(name string, target plumbing.Hash) error) error
}
