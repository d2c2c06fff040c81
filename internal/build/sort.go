package build

import (
	"bytes"
	"sort"
)

// sortRowsByKey performs the stable sort spec.md §4.3 calls for on the
// integer two-column and integer INCLUDE paths: since every supported key
// encoding (sign-flipped integers, zero-padded text) is order-preserving
// under plain byte comparison, a single bytes.Compare-driven sort covers
// both cases without needing a type-aware comparator here. The general
// case (an arbitrary caller-supplied comparator) is the caller's
// responsibility per spec.md §6 and never reaches this function.
func sortRowsByKey(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		return bytes.Compare(rows[i].Key, rows[j].Key) < 0
	})
}
