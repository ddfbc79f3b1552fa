// Package write implements the streaming pack writer: the final stage
// that walks the planned write order and emits a valid pack stream to
// a sink (spec.md §4.5, §6).
package write

import (
	"compress/zlib"
	"crypto/sha1"
	"hash"
	"io"
	"sync"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/go-git/gopack/pack/delta"
	"github.com/go-git/gopack/pack/object"
	"github.com/go-git/gopack/pack/odb"
	"github.com/go-git/gopack/pack/perr"
	"github.com/go-git/gopack/pack/sink"
)

// zlibWriterPool reuses *zlib.Writer instances across entries within
// and across Writer lifetimes, mirroring go-git's
// utils/sync/zlib.go GetZlibWriter/PutZlibWriter pattern so a
// multi-gigabyte pack doesn't churn one zlib.Writer allocation per
// object.
var zlibWriterPool = sync.Pool{
	New: func() any { return zlib.NewWriter(nil) },
}

func getZlibWriter(w io.Writer) *zlib.Writer {
	zw := zlibWriterPool.Get().(*zlib.Writer)
	zw.Reset(w)
	return zw
}

func putZlibWriter(zw *zlib.Writer) {
	zlibWriterPool.Put(zw)
}

// Writer streams a sequence of entries to a sink as a pack stream,
// tracking a rolling SHA-1 of everything written so Finish can append
// the trailing digest.
type Writer struct {
	sink   sink.Sink
	hasher hash.Hash
	mw     io.Writer
	count  uint32
}

// NewWriter starts a pack stream of count objects to s, writing the
// 12-byte header immediately.
func NewWriter(s sink.Sink, count uint32) (*Writer, error) {
	h := sha1.New()
	mw := io.MultiWriter(s, h)

	w := &Writer{sink: s, hasher: h, mw: mw, count: count}
	if _, err := mw.Write(Header{Version: version, Count: count}.encode()); err != nil {
		return nil, perr.Wrap(perr.SinkFailure, err).AddDetails("writing pack header")
	}
	return w, nil
}

// WriteOne writes e (and, transitively, any not-yet-written delta base
// it depends on) to the stream. Ported from libgit2's write_one: a
// Recursing object that is asked to write itself again indicates a
// cycle in the delta graph, in which case the delta is abandoned and
// the object is written in full instead, rather than failing the
// whole pack.
func (w *Writer) WriteOne(e *object.Entry, db odb.Database) error {
	_, err := w.writeOne(e, db)
	return err
}

// writeOneStatus mirrors libgit2's enum write_one_status.
type writeOneStatus int

const (
	statusWritten writeOneStatus = iota
	statusSkip
	statusRecursive
)

func (w *Writer) writeOne(e *object.Entry, db odb.Database) (writeOneStatus, error) {
	if e.Recursing {
		return statusRecursive, nil
	}
	if e.Written {
		return statusSkip, nil
	}

	if e.DeltaBase != nil {
		e.Recursing = true
		status, err := w.writeOne(e.DeltaBase, db)
		e.Recursing = false
		if err != nil {
			return 0, err
		}
		if status == statusRecursive {
			// Our base depends on us; storing this as a delta would
			// create a cycle. Fall back to a full object.
			e.DeltaBase = nil
		}
	}

	e.Written = true
	if err := w.writeObject(e, db); err != nil {
		return 0, err
	}
	return statusWritten, nil
}

func (w *Writer) writeObject(e *object.Entry, db odb.Database) error {
	var payload []byte
	var wireType plumbing.ObjectType
	var wireSize int64

	if e.DeltaBase != nil {
		wireType = plumbing.REFDeltaObject
		wireSize = e.DeltaSize
		if e.DeltaBytes != nil {
			payload = e.DeltaBytes
		} else {
			// The scheduler found this delta worth keeping but not worth
			// caching (delta_cacheable said no): re-encode it now rather
			// than pay for holding every delta's bytes in memory between
			// search and write. Ported from libgit2's write_object,
			// which takes the same "create delta when writing the pack"
			// path for uncached deltas.
			encoded, err := reencodeDelta(db, e)
			if err != nil {
				return err
			}
			payload = encoded
		}
	} else {
		typ, data, err := db.ReadObject(e.ID)
		if err != nil {
			return perr.Wrap(perr.InvalidObject, err).AddDetails("reading object %s for write", e.ID)
		}
		payload = data
		wireType = typ
		wireSize = int64(len(data))
	}

	if _, err := w.mw.Write(encodeObjectHeader(wireType, wireSize)); err != nil {
		return perr.Wrap(perr.SinkFailure, err).AddDetails("writing header for %s", e.ID)
	}

	if wireType == plumbing.REFDeltaObject {
		if _, err := w.mw.Write(e.DeltaBase.ID[:]); err != nil {
			return perr.Wrap(perr.SinkFailure, err).AddDetails("writing delta base reference for %s", e.ID)
		}
	}

	zw := getZlibWriter(w.mw)
	_, werr := zw.Write(payload)
	cerr := zw.Close()
	putZlibWriter(zw)
	if werr != nil {
		return perr.Wrap(perr.SinkFailure, werr).AddDetails("compressing payload for %s", e.ID)
	}
	if cerr != nil {
		return perr.Wrap(perr.SinkFailure, cerr).AddDetails("flushing compressed payload for %s", e.ID)
	}

	return nil
}

// reencodeDelta rebuilds e's delta payload against its base from
// scratch, at the exact size the scheduler already settled on: the
// greedy encoder is deterministic, so re-running it over the same
// bytes with a budget no smaller than the original reproduces the
// identical byte sequence.
func reencodeDelta(db odb.Database, e *object.Entry) ([]byte, error) {
	target, err := readFull(db, e.ID, e.Size)
	if err != nil {
		return nil, err
	}
	base, err := readFull(db, e.DeltaBase.ID, e.DeltaBase.Size)
	if err != nil {
		return nil, err
	}

	idx := delta.NewIndex(base)
	encoded, err := delta.Encode(idx, base, target, int(e.DeltaSize))
	if err != nil {
		return nil, perr.Wrap(perr.CorruptDelta, err).
			AddDetails("%s: re-encoding at write time no longer reproduces the cached delta size", e.ID)
	}
	if int64(len(encoded)) != e.DeltaSize {
		return nil, perr.New(perr.CorruptDelta, "rebuilt delta size differs from recorded size").
			AddDetails("%s: want %d have %d", e.ID, e.DeltaSize, len(encoded))
	}
	return encoded, nil
}

func readFull(db odb.Database, id object.ID, size int64) ([]byte, error) {
	_, data, err := db.ReadObject(id)
	if err != nil {
		return nil, perr.Wrap(perr.InvalidObject, err).AddDetails("reading base object %s", id)
	}
	if int64(len(data)) != size {
		return nil, perr.New(perr.InvalidObject, "inconsistent base object length").
			AddDetails("%s: want %d have %d", id, size, len(data))
	}
	return data, nil
}

// Finish appends the trailing 20-byte digest over everything written
// so far and returns it.
func (w *Writer) Finish() (plumbing.Hash, error) {
	var sum plumbing.Hash
	copy(sum[:], w.hasher.Sum(nil))

	if _, err := w.sink.Write(sum[:]); err != nil {
		return plumbing.ZeroHash, perr.Wrap(perr.SinkFailure, err).AddDetails("writing trailing digest")
	}
	return sum, nil
}
