package delta

import (
	"errors"
	"fmt"
)

// maxCopyLen is the largest length a single copy opcode can express
// (spec.md §6 wire format; identical to go-git's diff_delta.go).
const maxCopyLen = 0xffff

// maxInsertLen is the largest run a single insert opcode can carry; a
// longer literal run is chunked.
const maxInsertLen = 127

// ErrBudgetExceeded is returned by Encode when the delta would exceed
// the caller's maxSize budget. It is not a fatal error: spec.md §4.2
// treats an over-budget delta the same as "no delta found".
var ErrBudgetExceeded = errors.New("delta: size budget exceeded")

// Encode produces a git-wire delta transforming base into target, using
// idx (an index built over base) to find copies. It returns
// ErrBudgetExceeded if the encoded size would exceed maxSize before the
// whole of target has been consumed.
func Encode(idx *Index, base, target []byte, maxSize int) ([]byte, error) {
	out := make([]byte, 0, maxSize)
	out = appendVarInt(out, len(base))
	out = appendVarInt(out, len(target))

	pos := 0
	pendingStart := 0
	flush := func(until int) error {
		for pendingStart < until {
			n := until - pendingStart
			if n > maxInsertLen {
				n = maxInsertLen
			}
			out = append(out, byte(n))
			out = append(out, target[pendingStart:pendingStart+n]...)
			pendingStart += n
			if len(out) > maxSize {
				return ErrBudgetExceeded
			}
		}
		return nil
	}

	for pos < len(target) {
		srcOff, length, ok := idx.FindMatch(target, pos)
		if !ok || length < blockSize {
			pos++
			continue
		}

		if err := flush(pos); err != nil {
			return nil, err
		}

		remaining := length
		for remaining > 0 {
			n := remaining
			if n > maxCopyLen {
				n = maxCopyLen
			}
			out = append(out, encodeCopyOperation(srcOff, n)...)
			srcOff += n
			remaining -= n
			if len(out) > maxSize {
				return nil, ErrBudgetExceeded
			}
		}

		pos += length
		pendingStart = pos
	}

	if err := flush(len(target)); err != nil {
		return nil, err
	}

	if len(out) > maxSize {
		return nil, ErrBudgetExceeded
	}
	return out, nil
}

func appendVarInt(out []byte, n int) []byte {
	for n >= 0x80 {
		out = append(out, byte(n&0x7f)|0x80)
		n >>= 7
	}
	return append(out, byte(n))
}

func readVarInt(b []byte) (n, consumed int) {
	shift := uint(0)
	for {
		c := b[consumed]
		n |= int(c&0x7f) << shift
		consumed++
		if c&0x80 == 0 {
			return n, consumed
		}
		shift += 7
	}
}

// encodeCopyOperation encodes a single copy(offset, length) instruction.
// Carried over from go-git's plumbing/format/packfile/diff_delta.go,
// which is already bit-exact to the git wire format spec.md §6 requires.
func encodeCopyOperation(offset, length int) []byte {
	code := 0x80
	var opcodes []byte

	if offset&0xff != 0 {
		opcodes = append(opcodes, byte(offset&0xff))
		code |= 0x01
	}
	if offset&0xff00 != 0 {
		opcodes = append(opcodes, byte((offset&0xff00)>>8))
		code |= 0x02
	}
	if offset&0xff0000 != 0 {
		opcodes = append(opcodes, byte((offset&0xff0000)>>16))
		code |= 0x04
	}
	if offset&0xff000000 != 0 {
		opcodes = append(opcodes, byte((offset&0xff000000)>>24))
		code |= 0x08
	}
	if length&0xff != 0 {
		opcodes = append(opcodes, byte(length&0xff))
		code |= 0x10
	}
	if length&0xff00 != 0 {
		opcodes = append(opcodes, byte((length&0xff00)>>8))
		code |= 0x20
	}
	if length&0xff0000 != 0 {
		opcodes = append(opcodes, byte((length&0xff0000)>>16))
		code |= 0x40
	}

	return append([]byte{byte(code)}, opcodes...)
}

// Decode applies a git-wire delta to base, reconstructing the target
// bytes. Used by round-trip tests; the writer's write-time rebuild
// re-runs Encode and does not call Decode. Ported from go-git's
// patch_delta.go.
func Decode(base, delta []byte) ([]byte, error) {
	baseLen, n := readVarInt(delta)
	delta = delta[n:]
	if baseLen != len(base) {
		return nil, fmt.Errorf("delta: base size mismatch: want %d, have %d", baseLen, len(base))
	}

	targetLen, n := readVarInt(delta)
	delta = delta[n:]

	out := make([]byte, 0, targetLen)
	for len(delta) > 0 {
		op := delta[0]
		delta = delta[1:]

		if op&0x80 != 0 {
			var offset, length int
			if op&0x01 != 0 {
				offset |= int(delta[0])
				delta = delta[1:]
			}
			if op&0x02 != 0 {
				offset |= int(delta[0]) << 8
				delta = delta[1:]
			}
			if op&0x04 != 0 {
				offset |= int(delta[0]) << 16
				delta = delta[1:]
			}
			if op&0x08 != 0 {
				offset |= int(delta[0]) << 24
				delta = delta[1:]
			}
			if op&0x10 != 0 {
				length |= int(delta[0])
				delta = delta[1:]
			}
			if op&0x20 != 0 {
				length |= int(delta[0]) << 8
				delta = delta[1:]
			}
			if op&0x40 != 0 {
				length |= int(delta[0]) << 16
				delta = delta[1:]
			}
			if length == 0 {
				length = 0x10000
			}
			if offset+length > len(base) {
				return nil, fmt.Errorf("delta: copy out of range")
			}
			out = append(out, base[offset:offset+length]...)
		} else if op != 0 {
			n := int(op)
			if n > len(delta) {
				return nil, fmt.Errorf("delta: insert out of range")
			}
			out = append(out, delta[:n]...)
			delta = delta[n:]
		} else {
			return nil, fmt.Errorf("delta: invalid opcode 0")
		}
	}

	if len(out) != targetLen {
		return nil, fmt.Errorf("delta: target size mismatch: want %d, have %d", targetLen, len(out))
	}
	return out, nil
}
