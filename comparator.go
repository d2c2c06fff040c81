package smol

import (
	"bytes"

	"golang.org/x/text/collate"
)

// Comparator is the capability spec.md §9 calls for: the core is generic
// over a 3-way comparator and fast-path specializes for integer widths
// and C-locale bytes. Exposed as an interface (a function-object
// capability), not hard-coded, per the design note.
type Comparator interface {
	// Compare returns <0, 0, or >0 as a is less than, equal to, or
	// greater than b.
	Compare(a, b []byte) int
}

// CompareFunc adapts a plain function to the Comparator interface.
type CompareFunc func(a, b []byte) int

func (f CompareFunc) Compare(a, b []byte) int { return f(a, b) }

// ByteComparator is the "C-locale bytes" fast path: raw bytes.Compare.
// Text keys are stored zero-padded (spec.md §3); zero-padding plus byte
// comparison gives correct short-string ordering as long as no key byte
// is itself 0x00 — text columns reject embedded NUL at build time
// (EncodeAttr) to preserve this.
func ByteComparator() Comparator {
	return CompareFunc(bytes.Compare)
}

// IntComparator returns the fast-path comparator for fixed-width signed
// integers stored via EncodeAttr's sign-flip encoding: unsigned byte
// comparison of the stored representation equals signed integer
// comparison, so this is just bytes.Compare over the width-bounded slice:
// both operands are cut to their first width bytes, so each must be at
// least width bytes long. A nil operand means "unbounded" (spec.md §8:
// unbounded scans never fail), not a zero-width key, and is never sliced:
// nil compares equal to nil and less than any concrete key, on either
// side.
func IntComparator(width int) Comparator {
	return CompareFunc(func(a, b []byte) int {
		if a == nil || b == nil {
			switch {
			case a == nil && b == nil:
				return 0
			case a == nil:
				return -1
			default:
				return 1
			}
		}
		return bytes.Compare(a[:width], b[:width])
	})
}

// CollatingComparator wraps a golang.org/x/text/collate.Collator for
// locale-aware text comparators beyond C-locale, giving spec.md §3's
// collation_oid metapage field a real consumer. Selected by the schema's
// Collation field at Open time; 0 means ByteComparator.
func CollatingComparator(c *collate.Collator) Comparator {
	return CompareFunc(func(a, b []byte) int {
		return c.Compare(trimPad(a), trimPad(b))
	})
}

// trimPad strips the zero padding text keys are stored with, so a
// collator never sees trailing NUL bytes as part of the string.
func trimPad(b []byte) []byte {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return b[:n]
}

// comparatorForSchema resolves the comparator to use for the leading key,
// given the schema and an optional caller-supplied collator (used only
// when Collation != 0 and the leading key is text).
func comparatorForSchema(s Schema, collator *collate.Collator) Comparator {
	lead := s.KeyAttrs[0]
	if lead.Kind == KindText && s.Collation != 0 && collator != nil {
		return CollatingComparator(collator)
	}
	// For a two-column key, comparison is lexicographic on (k1,k2)
	// (spec.md Invariant 5). Since both columns use an order-preserving
	// fixed-width encoding, a byte compare over the full concatenated
	// key already implements that — no per-column dispatch needed. Scan
	// bounds carry only k1's bytes, so operands of unequal length are
	// compared over the shorter one: a bound ties with every key whose k1
	// equals it.
	if len(s.KeyAttrs) == 2 {
		full := IntComparator(s.KeyWidth())
		return CompareFunc(func(a, b []byte) int {
			if a == nil || b == nil || len(a) == len(b) {
				return full.Compare(a, b)
			}
			n := min(len(a), len(b))
			return bytes.Compare(a[:n], b[:n])
		})
	}
	if lead.Kind == KindText {
		return ByteComparator()
	}
	return IntComparator(s.KeyWidth())
}
