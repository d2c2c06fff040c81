// Package zonemap implements the per-subtree advisory statistics
// described in spec.md §4.5: min/max key, row count, an approximate
// distinct count, and a 64-bit Bloom filter, aggregated bottom-up from
// leaves to the root. Zone maps are never consulted for correctness —
// only for pruning hints and observability (spec.md §4.5, §9).
package zonemap

import "encoding/binary"

// MinMaxLen is the width of the truncated min/max key stored in a zone
// map: the first 4 bytes of the key, or the full value for keys ≤4 bytes
// (spec.md §3: "pruning hints only, not used for correctness decisions").
const MinMaxLen = 4

// EncodedSize is the fixed on-disk size of a ZoneMap entry.
const EncodedSize = MinMaxLen + MinMaxLen + 4 + 2 + 8 + 2

// ZoneMap is the statistics attached to one internal-page entry.
type ZoneMap struct {
	MinKey        [MinMaxLen]byte
	MaxKey        [MinMaxLen]byte
	RowCount      uint32
	DistinctCount uint16 // saturating at aggregation
	Bloom         uint64
}

// TruncateKey copies up to MinMaxLen leading bytes of a key into the
// fixed-size array used for zone-map min/max comparisons.
func TruncateKey(key []byte) [MinMaxLen]byte {
	var out [MinMaxLen]byte
	n := len(key)
	if n > MinMaxLen {
		n = MinMaxLen
	}
	copy(out[:n], key[:n])
	return out
}

// Marshal encodes z into buf, which must be at least EncodedSize bytes.
func (z ZoneMap) Marshal(buf []byte) {
	copy(buf[0:4], z.MinKey[:])
	copy(buf[4:8], z.MaxKey[:])
	binary.LittleEndian.PutUint32(buf[8:12], z.RowCount)
	binary.LittleEndian.PutUint16(buf[12:14], z.DistinctCount)
	binary.LittleEndian.PutUint64(buf[14:22], z.Bloom)
	buf[22], buf[23] = 0, 0 // padding
}

// Unmarshal decodes a ZoneMap from buf.
func Unmarshal(buf []byte) ZoneMap {
	var z ZoneMap
	copy(z.MinKey[:], buf[0:4])
	copy(z.MaxKey[:], buf[4:8])
	z.RowCount = binary.LittleEndian.Uint32(buf[8:12])
	z.DistinctCount = binary.LittleEndian.Uint16(buf[12:14])
	z.Bloom = binary.LittleEndian.Uint64(buf[14:22])
	return z
}

// minBytes/maxBytes compare truncated zone-map key bytes lexicographically.
// This is intentionally simpler than the full key comparator: truncated
// min/max are pruning hints only (spec.md §3), never used to decide
// correctness, so a byte-lexicographic compare is an acceptable
// approximation even for integer keys stored big-endian-of-sign-flipped.
func minBytes(a, b [MinMaxLen]byte) [MinMaxLen]byte {
	for i := 0; i < MinMaxLen; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return a
			}
			return b
		}
	}
	return a
}

func maxBytes(a, b [MinMaxLen]byte) [MinMaxLen]byte {
	for i := 0; i < MinMaxLen; i++ {
		if a[i] != b[i] {
			if a[i] > b[i] {
				return a
			}
			return b
		}
	}
	return a
}

// Aggregate combines the zone maps of a node's children into its own,
// per spec.md §3: minkey = min(children.minkey), maxkey = max, row_count
// = sum, distinct_count = saturating sum, bloom = OR.
func Aggregate(children []ZoneMap) ZoneMap {
	if len(children) == 0 {
		return ZoneMap{}
	}
	agg := children[0]
	for _, c := range children[1:] {
		agg.MinKey = minBytes(agg.MinKey, c.MinKey)
		agg.MaxKey = maxBytes(agg.MaxKey, c.MaxKey)
		agg.RowCount += c.RowCount
		sum := uint32(agg.DistinctCount) + uint32(c.DistinctCount)
		if sum > 0xFFFF {
			agg.DistinctCount = 0xFFFF
		} else {
			agg.DistinctCount = uint16(sum)
		}
		agg.Bloom |= c.Bloom
	}
	return agg
}

// FromLeaf builds a ZoneMap summarizing one leaf's rows.
func FromLeaf(minKey, maxKey []byte, rowCount int, distinctCount int, bloom uint64) ZoneMap {
	dc := distinctCount
	if dc > 0xFFFF {
		dc = 0xFFFF
	}
	return ZoneMap{
		MinKey:        TruncateKey(minKey),
		MaxKey:        TruncateKey(maxKey),
		RowCount:      uint32(rowCount),
		DistinctCount: uint16(dc),
		Bloom:         bloom,
	}
}
