// Package pack ties the object registry, delta scheduler, write-order
// planner, and streaming writer together behind a single session
// handle, the way go-git's own Repository/Remote types front their
// subsystems.
package pack

import (
	"bytes"
	"context"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing"
	gitconfig "github.com/go-git/go-git/v5/plumbing/format/config"

	"github.com/go-git/gopack/pack/config"
	"github.com/go-git/gopack/pack/delta"
	"github.com/go-git/gopack/pack/object"
	"github.com/go-git/gopack/pack/odb"
	"github.com/go-git/gopack/pack/schedule"
	"github.com/go-git/gopack/pack/sink"
	"github.com/go-git/gopack/pack/write"
	"github.com/go-git/gopack/pack/writeorder"
)

const (
	defaultWindow   = 11
	defaultMaxDepth = 50
)

// Options configures a Session beyond what gitconfig supplies.
type Options struct {
	Threads           int
	Window            int
	MaxDepth          int
	DeltaCacheSize    uint64
	DeltaCacheLimit   uint64
	BigFileThreshold  uint64
	WindowMemoryLimit uint64
}

// Option mutates Options during NewSession.
type Option func(*Options)

// WithThreads sets the worker count used by prepare's delta search.
func WithThreads(n int) Option { return func(o *Options) { o.Threads = n } }

// WithWindow overrides the sliding-window size (default 11).
func WithWindow(n int) Option { return func(o *Options) { o.Window = n } }

// WithMaxDepth overrides the maximum delta chain depth (default 50).
func WithMaxDepth(n int) Option { return func(o *Options) { o.MaxDepth = n } }

// Session is a single pack build: a registry of objects to include, the
// database they're read from, and the resources (worker threads,
// caches) prepare allocates to encode them. Not safe for concurrent use
// by multiple goroutines calling mutating methods simultaneously.
type Session struct {
	db       odb.Database
	opts     Options
	registry *object.Registry
	cache    *delta.Cache

	dirty   bool
	ordered []*object.Entry
}

// NewSession builds a Session reading objects from db. cfg supplies the
// pack.* tunables (see package config); any opts passed here override
// the values read from cfg.
func NewSession(db odb.Database, cfg *gitconfig.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = gitconfig.New()
	}

	loaded, err := config.Load(cfg, nil)
	if err != nil {
		return nil, err
	}

	o := Options{
		Threads:           1,
		Window:            defaultWindow,
		MaxDepth:          defaultMaxDepth,
		DeltaCacheSize:    loaded.DeltaCacheSize,
		DeltaCacheLimit:   loaded.DeltaCacheLimit,
		BigFileThreshold:  loaded.BigFileThreshold,
		WindowMemoryLimit: loaded.WindowMemory,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Session{
		db:       db,
		opts:     o,
		registry: object.NewRegistry(),
		cache:    delta.NewCache(o.DeltaCacheSize, o.DeltaCacheLimit, o.BigFileThreshold),
	}, nil
}

// SetThreads changes the worker count used by the next prepare.
func (s *Session) SetThreads(n int) { s.opts.Threads = n }

// Insert registers id under the given locality-hint name.
func (s *Session) Insert(id plumbing.Hash, name string) error {
	if err := s.registry.Insert(s.db, id, name); err != nil {
		return err
	}
	s.dirty = true
	return nil
}

// InsertTree registers root and every object reachable from it, walked
// via s.db if it also implements odb.TreeWalker.
func (s *Session) InsertTree(root plumbing.Hash) error {
	walker, ok := s.db.(odb.TreeWalker)
	if !ok {
		return s.Insert(root, "")
	}
	if err := s.registry.InsertTree(s.db, walker, root); err != nil {
		return err
	}
	s.dirty = true
	return nil
}

// Send streams the prepared pack to t.
func (s *Session) Send(ctx context.Context, t sink.Transport) (plumbing.Hash, error) {
	if err := s.prepare(); err != nil {
		return plumbing.ZeroHash, err
	}
	return s.stream(sink.NewNetworkSink(ctx, t))
}

// WriteBuf appends the prepared pack to w.
func (s *Session) WriteBuf(w *bytes.Buffer) (plumbing.Hash, error) {
	if err := s.prepare(); err != nil {
		return plumbing.ZeroHash, err
	}
	return s.stream(sink.NewBufferSink(w))
}

// Write streams the prepared pack to path, renamed into place
// atomically on success.
func (s *Session) Write(ctx context.Context, fs billy.Filesystem, path string) (plumbing.Hash, error) {
	if err := s.prepare(); err != nil {
		return plumbing.ZeroHash, err
	}

	fileSink, err := sink.NewFileSinkFS(fs, path)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	digest, err := s.stream(fileSink)
	if err != nil {
		fileSink.Abort()
		return plumbing.ZeroHash, err
	}
	if err := fileSink.Commit(); err != nil {
		return plumbing.ZeroHash, err
	}
	return digest, nil
}

// Close releases the registry's backing storage. A Session must not be
// used after Close.
func (s *Session) Close() error {
	s.registry = nil
	s.ordered = nil
	return nil
}

// prepare runs delta search and write-order planning over every
// registered object, idempotently: a no-op once no inserts have
// happened since the last prepare.
func (s *Session) prepare() error {
	if !s.dirty {
		return nil
	}

	entries := s.registry.All()
	object.MarkNoTryDelta(entries, s.opts.BigFileThreshold)

	candidates := schedule.Candidates(entries)
	if err := s.runSchedule(candidates); err != nil {
		return err
	}

	tagTips, _ := s.db.(odb.TagEnumerator)
	ordered, err := writeorder.Plan(entries, tagTips)
	if err != nil {
		return err
	}

	s.ordered = ordered
	s.dirty = false
	return nil
}

func (s *Session) runSchedule(candidates []*object.Entry) error {
	opts := schedule.ParallelOptions{
		Threads:  s.opts.Threads,
		Window:   s.opts.Window,
		MaxDepth: s.opts.MaxDepth,
		MemLimit: int64(s.opts.WindowMemoryLimit),
	}
	return schedule.RunParallel(s.db, candidates, opts, s.cache)
}

// stream serializes s.ordered to dst via pack/write. Each call writes a
// complete, independent stream, so Written/Recursing (left set from
// any prior Send/WriteBuf/Write) are cleared first.
func (s *Session) stream(dst sink.Sink) (plumbing.Hash, error) {
	for _, e := range s.ordered {
		e.Written = false
		e.Recursing = false
	}

	w, err := write.NewWriter(dst, uint32(len(s.ordered)))
	if err != nil {
		return plumbing.ZeroHash, err
	}

	for _, e := range s.ordered {
		if e.Written {
			continue
		}
		if err := w.WriteOne(e, s.db); err != nil {
			return plumbing.ZeroHash, err
		}
	}

	return w.Finish()
}
