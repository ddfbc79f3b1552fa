package write

import "github.com/go-git/go-git/v5/plumbing"

// signature is the 4-byte magic every pack stream opens with.
var signature = [4]byte{'P', 'A', 'C', 'K'}

// version is the only pack format version this module produces.
const version = uint32(2)

const (
	firstLengthBits = uint8(4)
	lengthBits      = uint8(7)
	maskFirstLength = 0x0f
	maskContinue    = 0x80
	maskLength      = uint8(0x7f)
)

// Header is the fixed-size preamble of a pack stream: signature,
// version, and object count (spec.md §6).
type Header struct {
	Version uint32
	Count   uint32
}

// encode returns the 12-byte wire form of h.
func (h Header) encode() []byte {
	out := make([]byte, 0, 12)
	out = append(out, signature[:]...)
	out = appendBE32(out, h.Version)
	out = appendBE32(out, h.Count)
	return out
}

func appendBE32(out []byte, v uint32) []byte {
	return append(out, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// encodeObjectHeader returns the variable-length object header for an
// object of the given type and inflated size: a 3-bit type plus 4-bit
// size in the first byte, continuation bytes carrying 7 more size bits
// each. Bit-exact to the wire format regardless of which plumbing
// generation copied it around (grounded on
// plumbing/format/packfile/encoder.go's entryHead and the
// firstLengthBits/maskContinue constants from that package's
// common.go, which have not changed across go-git's history).
func encodeObjectHeader(typ plumbing.ObjectType, size int64) []byte {
	t := int64(typ)
	c := (t << firstLengthBits) | (size & maskFirstLength)
	size >>= firstLengthBits

	var out []byte
	for size != 0 {
		out = append(out, byte(c)|maskContinue)
		c = size & int64(maskLength)
		size >>= lengthBits
	}
	return append(out, byte(c))
}
