// Package sink implements the streaming destinations a pack stream can
// be written to (spec.md §4.5): an in-memory buffer, a regular file
// (written atomically), and a network transport.
package sink

import (
	"bytes"
	"context"
)

// Sink is anywhere a pack stream's bytes can be written, in order,
// without seeking back.
type Sink interface {
	Write(p []byte) (int, error)
}

// BufferSink accumulates a pack stream in memory. Used by
// (*pack.Session).WriteBuf and by tests that want to inspect the
// finished stream directly.
type BufferSink struct {
	buf *bytes.Buffer
}

// NewBufferSink wraps buf, or a fresh buffer if buf is nil.
func NewBufferSink(buf *bytes.Buffer) *BufferSink {
	if buf == nil {
		buf = new(bytes.Buffer)
	}
	return &BufferSink{buf: buf}
}

func (s *BufferSink) Write(p []byte) (int, error) { return s.buf.Write(p) }

// Bytes returns the accumulated stream.
func (s *BufferSink) Bytes() []byte { return s.buf.Bytes() }

// Transport sends already-framed pack bytes to a remote peer. Unlike
// Sink, SendPackData takes a context so a caller can cancel a
// long-running network write (spec.md §7 SinkFailure must be a clean,
// caller-observable error, not a goroutine stuck mid-write).
type Transport interface {
	SendPackData(ctx context.Context, p []byte) error
}

// transportSink adapts a Transport to the plain Sink interface the
// Writer expects, binding the context once at construction.
type transportSink struct {
	ctx context.Context
	t   Transport
}

// NewNetworkSink adapts t to a Sink bound to ctx.
func NewNetworkSink(ctx context.Context, t Transport) Sink {
	return &transportSink{ctx: ctx, t: t}
}

func (s *transportSink) Write(p []byte) (int, error) {
	if err := s.t.SendPackData(s.ctx, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
