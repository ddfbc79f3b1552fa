package object

// NameHash computes the 32-bit locality hint spec.md §4.1 describes: a
// sortable number built from the last sixteen non-whitespace bytes of
// name, weighted so the final character dominates. An empty name hashes
// to 0.
//
// The scheduler relies on NameHash being stable and on equal adjacent
// hashes marking a "same path" boundary — do not change the folding rule
// without checking schedule.Sort and schedule.RunParallel's
// same-NameHash run tracking.
func NameHash(name string) uint32 {
	var hash uint32
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isSpace(c) {
			continue
		}
		hash = (hash >> 2) + (uint32(c) << 24)
	}
	return hash
}

// isSpace matches the ASCII whitespace libgit2's git__isspace recognizes:
// space, \t, \n, \v, \f, \r.
func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	default:
		return false
	}
}
