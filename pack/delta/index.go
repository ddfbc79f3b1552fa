// Package delta implements the per-target/source delta search (the
// engine, spec.md §4.2) and the binary delta codec used to produce and
// apply the encoded records.
package delta

// blockSize is the length of the byte run the index hashes at each
// source offset. Shorter blocks find more matches at the cost of a
// bigger index; 16 mirrors the smallest copy worth the two-byte
// minimum copy-opcode overhead.
const blockSize = 16

// maxCandidates bounds how many same-hash offsets FindMatch inspects before
// settling for the longest it has found. Without this cap a
// pathological all-zero source would make every lookup O(n).
const maxCandidates = 64

// Index is a precomputed rolling-hash lookup table over a source
// object's bytes, built once per source and reused by every target
// compared against it within a worker's window (spec.md §4.2).
type Index struct {
	source  []byte
	buckets map[uint32][]int
}

// NewIndex builds an Index over source. Building is O(len(source)).
func NewIndex(source []byte) *Index {
	idx := &Index{source: source}
	if len(source) < blockSize {
		return idx
	}

	idx.buckets = make(map[uint32][]int, len(source)/blockSize+1)
	for i := 0; i+blockSize <= len(source); i++ {
		h := blockHash(source[i : i+blockSize])
		idx.buckets[h] = append(idx.buckets[h], i)
	}
	return idx
}

// Size estimates the index's memory footprint, for the engine's
// mem_usage accounting.
func (idx *Index) Size() int {
	if idx == nil {
		return 0
	}
	n := 0
	for _, offs := range idx.buckets {
		n += len(offs) * 8
	}
	return n
}

// FindMatch returns the longest run of bytes starting at target[from]
// that also appears somewhere in the indexed source, anchored so the
// match begins exactly at target[from] (the encoder only ever needs to
// extend a copy forward from its current scan position). ok is false if
// no run of at least blockSize bytes was found.
func (idx *Index) FindMatch(target []byte, from int) (srcOffset, length int, ok bool) {
	if idx == nil || idx.buckets == nil || from+blockSize > len(target) {
		return 0, 0, false
	}

	h := blockHash(target[from : from+blockSize])
	candidates := idx.buckets[h]
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	best, bestLen := -1, 0
	for _, c := range candidates {
		// Verify the hash hit: block hashes can collide.
		if !bytesEqual(idx.source[c:c+blockSize], target[from:from+blockSize]) {
			continue
		}

		end := c + blockSize
		tend := from + blockSize
		for end < len(idx.source) && tend < len(target) && idx.source[end] == target[tend] {
			end++
			tend++
		}

		if n := end - c; n > bestLen {
			bestLen = n
			best = c
		}
	}

	if best < 0 {
		return 0, 0, false
	}
	return best, bestLen, true
}

func blockHash(b []byte) uint32 {
	var h uint32
	for _, c := range b {
		h = h*131 + uint32(c)
	}
	return h
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
