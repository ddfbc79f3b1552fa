package sink

import (
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/go-git/gopack/pack/perr"
)

// FileSink writes a pack stream to a temp file beside the target path,
// renaming it into place only once the whole stream has been written
// without error (spec.md §4.5, TESTABLE PROPERTY S6: no partial file is
// ever left at target on failure).
type FileSink struct {
	fs       billy.Filesystem
	tmp      billy.File
	target   string
	finished bool
}

// NewFileSink opens a temp file in the same directory as target (a
// plain OS path) so the final rename is same-filesystem and atomic.
func NewFileSink(target string) (*FileSink, error) {
	dir := filepath.Dir(target)
	return NewFileSinkFS(osfs.New(dir), filepath.Base(target))
}

// NewFileSinkFS is NewFileSink over a caller-supplied billy.Filesystem,
// for callers (e.g. (*pack.Session).Write) that already have one
// rooted at the destination directory.
func NewFileSinkFS(fs billy.Filesystem, target string) (*FileSink, error) {
	tmp, err := fs.TempFile("", "pack-*.tmp")
	if err != nil {
		return nil, perr.Wrap(perr.SinkFailure, err).AddDetails("creating temp file for %s", target)
	}

	return &FileSink{fs: fs, tmp: tmp, target: target}, nil
}

func (s *FileSink) Write(p []byte) (int, error) {
	n, err := s.tmp.Write(p)
	if err != nil {
		s.abort()
		return n, perr.Wrap(perr.SinkFailure, err).AddDetails("writing to %s", s.tmp.Name())
	}
	return n, nil
}

// Commit closes the temp file and renames it into place. Must be
// called exactly once, after every Write has succeeded.
func (s *FileSink) Commit() error {
	if err := s.tmp.Close(); err != nil {
		s.abort()
		return perr.Wrap(perr.SinkFailure, err).AddDetails("closing temp file %s", s.tmp.Name())
	}
	if err := s.fs.Rename(s.tmp.Name(), s.target); err != nil {
		_ = s.fs.Remove(s.tmp.Name())
		return perr.Wrap(perr.SinkFailure, err).AddDetails("renaming %s to %s", s.tmp.Name(), s.target)
	}
	s.finished = true
	return nil
}

// Abort discards the temp file. Safe to call after a failed Write;
// a no-op once Commit has succeeded.
func (s *FileSink) Abort() {
	if !s.finished {
		s.abort()
	}
}

func (s *FileSink) abort() {
	_ = s.tmp.Close()
	_ = s.fs.Remove(s.tmp.Name())
}
