package zonemap

import "hash/maphash"

// bloomHashes is the number of bits set per distinct key, using the
// Kirsch-Mitzenmacher double-hashing trick to derive k hash functions
// from two independent ones. With a 64-bit filter this keeps the false
// positive rate reasonable without needing k independent hash families.
const bloomHashes = 2

// BloomBuilder accumulates a 64-bit Bloom filter across a leaf's distinct
// keys during build. No ecosystem Bloom-filter library appears anywhere
// in the example corpus, and a 64-bit filter is too small for most of
// them regardless (they target millions of bits); hash/maphash is used
// instead (see DESIGN.md).
type BloomBuilder struct {
	seed1, seed2 maphash.Seed
	bits         uint64
}

// NewBloomBuilder creates a builder with fresh per-build seeds. Seeds
// never need to be stable across builds or processes: the filter is
// purely a pruning hint recomputed whenever an index is rebuilt.
func NewBloomBuilder() *BloomBuilder {
	return &BloomBuilder{seed1: maphash.MakeSeed(), seed2: maphash.MakeSeed()}
}

// Add folds key into the filter.
func (b *BloomBuilder) Add(key []byte) {
	h1 := maphash.Bytes(b.seed1, key)
	h2 := maphash.Bytes(b.seed2, key)
	for i := uint64(0); i < bloomHashes; i++ {
		bit := (h1 + i*h2) % 64
		b.bits |= 1 << bit
	}
}

// Bits returns the accumulated 64-bit filter.
func (b *BloomBuilder) Bits() uint64 { return b.bits }

// MayContain reports whether key could be a member of a filter built by
// BloomBuilder with the same seeds. Exposed for testing the builder;
// scans never probe the bloom filter (it's a future-extension pruning
// hint per spec.md §4.5, not wired into scan correctness).
func (b *BloomBuilder) MayContain(key []byte) bool {
	h1 := maphash.Bytes(b.seed1, key)
	h2 := maphash.Bytes(b.seed2, key)
	for i := uint64(0); i < bloomHashes; i++ {
		bit := (h1 + i*h2) % 64
		if b.bits&(1<<bit) == 0 {
			return false
		}
	}
	return true
}
