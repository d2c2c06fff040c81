package page

import (
	"encoding/binary"
	"fmt"
)

// Run is one run of equal keys, as fed to the Key-RLE packers.
type Run struct {
	Key   []byte
	Count uint16
}

// MaxRowsPerPage and MaxRunsPerPage are the conservative caps spec.md §4.3
// imposes to avoid overflow in scan-loop counters (both fields are u16).
const (
	MaxRowsPerPage = 32000
	MaxRunsPerPage = 0xFFFF
)

func totalCount(runs []Run) int {
	n := 0
	for _, r := range runs {
		n += int(r.Count)
	}
	return n
}

// KeyRLESize returns the exact byte count a Key-RLE payload of the given
// version would occupy for nruns runs of keyWidth-byte keys.
func KeyRLESize(nruns int, keyWidth int, version int) int {
	header := 6
	if version == 2 {
		header = 7
	}
	return header + nruns*(keyWidth+2)
}

// PackKeyRLEv1 produces a `tag=0x8001` leaf payload: one stored key per
// run plus its count, no cross-page continuation tracking.
func PackKeyRLEv1(runs []Run, keyWidth int) ([]byte, error) {
	if len(runs) > MaxRunsPerPage {
		return nil, fmt.Errorf("page: PackKeyRLEv1: %d runs exceeds cap %d", len(runs), MaxRunsPerPage)
	}
	n := totalCount(runs)
	if n > MaxRowsPerPage {
		return nil, fmt.Errorf("page: PackKeyRLEv1: %d rows exceeds cap %d", n, MaxRowsPerPage)
	}
	out := make([]byte, KeyRLESize(len(runs), keyWidth, 1))
	binary.LittleEndian.PutUint16(out[0:2], TagKeyRLEv1)
	binary.LittleEndian.PutUint16(out[2:4], uint16(n))
	binary.LittleEndian.PutUint16(out[4:6], uint16(len(runs)))
	off := 6
	for _, r := range runs {
		copy(out[off:off+keyWidth], r.Key)
		binary.LittleEndian.PutUint16(out[off+keyWidth:off+keyWidth+2], r.Count)
		off += keyWidth + 2
	}
	return out, nil
}

// PackKeyRLEv2 produces a `tag=0x8002` leaf payload. continuesPrev is true
// iff the first run's key equals the previous page's last emitted key
// (spec.md Invariant 4); it lets a forward scan fold across the page
// boundary without re-reading the prior leaf's last key.
func PackKeyRLEv2(runs []Run, keyWidth int, continuesPrev bool) ([]byte, error) {
	if len(runs) > MaxRunsPerPage {
		return nil, fmt.Errorf("page: PackKeyRLEv2: %d runs exceeds cap %d", len(runs), MaxRunsPerPage)
	}
	n := totalCount(runs)
	if n > MaxRowsPerPage {
		return nil, fmt.Errorf("page: PackKeyRLEv2: %d rows exceeds cap %d", n, MaxRowsPerPage)
	}
	out := make([]byte, KeyRLESize(len(runs), keyWidth, 2))
	binary.LittleEndian.PutUint16(out[0:2], TagKeyRLEv2)
	binary.LittleEndian.PutUint16(out[2:4], uint16(n))
	binary.LittleEndian.PutUint16(out[4:6], uint16(len(runs)))
	if continuesPrev {
		out[6] = 1
	}
	off := 7
	for _, r := range runs {
		copy(out[off:off+keyWidth], r.Key)
		binary.LittleEndian.PutUint16(out[off+keyWidth:off+keyWidth+2], r.Count)
		off += keyWidth + 2
	}
	return out, nil
}

// RunCount returns the number of runs in the RLE content at content[4:6],
// valid for any of the three RLE formats.
func RunCount(content []byte) int {
	return int(binary.LittleEndian.Uint16(content[4:6]))
}
