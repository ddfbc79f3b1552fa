package object

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNameHashEmpty(t *testing.T) {
	require.Equal(t, uint32(0), NameHash(""))
}

func TestNameHashIgnoresWhitespace(t *testing.T) {
	require.Equal(t, NameHash("foo.c"), NameHash("f o o . c"))
	require.Equal(t, NameHash("a/b/c.go"), NameHash("a/b/c.go\t"))
}

func TestNameHashDependsOnlyOnLastSixteenNonWhitespaceBytes(t *testing.T) {
	// Prepending unrelated bytes before the last 16 non-whitespace bytes
	// must not change the hash (spec.md TESTABLE PROPERTY 8).
	suffix := "0123456789abcdef"
	require.Equal(t, NameHash(suffix), NameHash("xyz/"+suffix))
	require.Equal(t, NameHash(suffix), NameHash("a/completely/different/prefix/"+suffix))
}

func TestNameHashRecognizesAllWhitespaceForms(t *testing.T) {
	plain := NameHash("abc")
	for _, ws := range []string{" ", "\t", "\n", "\v", "\f", "\r"} {
		require.Equal(t, plain, NameHash("a"+ws+"b"+ws+"c"), "whitespace %q should be skipped", ws)
	}
}
