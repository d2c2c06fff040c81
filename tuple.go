package smol

import (
	"fmt"

	"github.com/asah/smol-sub000/internal/page"
)

// RowSource is the build-input callable from spec.md §6: it streams
// (keyValues, includeValues) rows to yield, stopping early if yield returns
// false. All values must be non-null and fixed-width; the caller owns
// sorting except for the integer two-column and integer INCLUDE paths,
// which the builder sorts internally (spec.md §4.3).
type RowSource func(yield func(keyValues []any, includeValues []any) bool)

// BoundStrategy is a scan-key comparison strategy (spec.md §6).
type BoundStrategy int

const (
	LT BoundStrategy = iota
	LE
	EQ
	GE
	GT
)

// Bound is one scan-key predicate: `(attribute_index, strategy,
// comparison_value)`. The core recognizes bounds only on the leading key
// (attribute 0) and an equality filter on the second key (attribute 1);
// anything else is a recheck the caller must enforce itself.
type Bound struct {
	AttrIndex int
	Strategy  BoundStrategy
	Value     any
}

// ScanKeys is the set of bound predicates passed to NewScan.
type ScanKeys struct {
	Bounds []Bound
}

// ScanOptions controls a single scan's behavior.
type ScanOptions struct {
	Backward bool
}

// Tuple is the reusable output buffer a scan writes into on each Next
// call: the raw key bytes (K1‖K2 for a two-column index) plus one raw
// byte slice per INCLUDE column, mirroring spec.md §6's fixed tuple
// layout without requiring callers to know its internal alignment.
type Tuple struct {
	Key     []byte
	Include [][]byte
}

// DecodeKey decodes the tuple's raw key bytes into typed Go values, one
// per key attribute in schema order.
func (t *Tuple) DecodeKey(schema Schema) ([]any, error) {
	out := make([]any, len(schema.KeyAttrs))
	off := 0
	for i, a := range schema.KeyAttrs {
		v, err := page.DecodeAttr(a.Kind, t.Key[off:off+a.Width])
		if err != nil {
			return nil, fmt.Errorf("smol: decode key attr %d: %w", i, err)
		}
		out[i] = v
		off += a.Width
	}
	return out, nil
}

// DecodeInclude decodes the tuple's raw INCLUDE bytes into typed Go
// values, one per INCLUDE column in schema order.
func (t *Tuple) DecodeInclude(schema Schema) ([]any, error) {
	out := make([]any, len(schema.Include))
	for i, a := range schema.Include {
		v, err := page.DecodeAttr(a.Kind, t.Include[i])
		if err != nil {
			return nil, fmt.Errorf("smol: decode include attr %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
