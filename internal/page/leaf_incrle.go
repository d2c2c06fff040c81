package page

import (
	"encoding/binary"
	"fmt"
)

// IncRun is one run of equal keys sharing a single INCLUDE tuple
// (spec.md Invariant 6: INCLUDE values must be byte-identical within a
// run for this format to be valid).
type IncRun struct {
	Key   []byte
	Count uint16
	Inc   [][]byte // one value per INCLUDE column, widths per incWidths
}

// IncRLESize returns the exact byte count an Include-RLE payload would
// occupy for nruns runs, given the key width and total INCLUDE width.
func IncRLESize(nruns int, keyWidth int, incTotalWidth int) int {
	return 6 + nruns*(keyWidth+2+incTotalWidth)
}

// PackIncludeRLE produces a `tag=0x8003` leaf payload: one stored key,
// count, and INCLUDE tuple per run.
func PackIncludeRLE(runs []IncRun, keyWidth int, incWidths []int) ([]byte, error) {
	if len(runs) > MaxRunsPerPage {
		return nil, fmt.Errorf("page: PackIncludeRLE: %d runs exceeds cap %d", len(runs), MaxRunsPerPage)
	}
	n := 0
	for _, r := range runs {
		n += int(r.Count)
	}
	if n > MaxRowsPerPage {
		return nil, fmt.Errorf("page: PackIncludeRLE: %d rows exceeds cap %d", n, MaxRowsPerPage)
	}
	incTotal := sumWidths(incWidths)
	out := make([]byte, IncRLESize(len(runs), keyWidth, incTotal))
	binary.LittleEndian.PutUint16(out[0:2], TagIncRLE)
	binary.LittleEndian.PutUint16(out[2:4], uint16(n))
	binary.LittleEndian.PutUint16(out[4:6], uint16(len(runs)))
	off := 6
	for _, r := range runs {
		copy(out[off:off+keyWidth], r.Key)
		binary.LittleEndian.PutUint16(out[off+keyWidth:off+keyWidth+2], r.Count)
		incOff := off + keyWidth + 2
		for c, w := range incWidths {
			copy(out[incOff:incOff+w], r.Inc[c])
			incOff += w
		}
		off += keyWidth + 2 + incTotal
	}
	return out, nil
}
