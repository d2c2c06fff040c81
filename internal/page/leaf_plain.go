package page

import "encoding/binary"

// PlainSize returns the exact byte count a Plain payload for n rows would
// occupy, given the key width and INCLUDE column widths. Used by the
// builder to decide whether a candidate page fits before packing it.
func PlainSize(n int, keyWidth int, incWidths []int) int {
	return 2 + n*keyWidth + n*sumWidths(incWidths)
}

// PackPlain produces a Plain leaf payload: `[u16 n][key0..key_{n-1}]`
// followed by each INCLUDE column's values packed tightly, column by
// column (spec.md §3). keys[i] must be exactly keyWidth bytes; incCols[c]
// holds n values of incWidths[c] bytes each.
func PackPlain(keys [][]byte, incCols [][][]byte, keyWidth int, incWidths []int) []byte {
	n := len(keys)
	out := make([]byte, PlainSize(n, keyWidth, incWidths))
	binary.LittleEndian.PutUint16(out[0:2], uint16(n))
	off := 2
	for _, k := range keys {
		copy(out[off:off+keyWidth], k)
		off += keyWidth
	}
	for c, w := range incWidths {
		col := incCols[c]
		for _, v := range col {
			copy(out[off:off+w], v)
			off += w
		}
	}
	return out
}
