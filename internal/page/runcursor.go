package page

import (
	"encoding/binary"
	"fmt"
)

// RunCursor is the scan-owned RLE-run cache spec.md §4.4 requires:
// {run_idx, accumulated_count_before_run, last_offset_in_run, key_pointer}.
// Sequential access (the normal scan pattern) lands either in the cached
// run again or in its immediate forward/backward neighbor; both cases
// resolve in O(1) via a direct, fixed-stride array access instead of
// LeafKeyPtr's O(runs) walk from the start. A cold lookup (a non-adjacent
// jump, or the cursor having just been Reset) still walks from run 0.
type RunCursor struct {
	valid             bool
	runIdx            int
	accumulatedBefore int // accumulated_count_before_run
	lastOffsetInRun   int // accumulated_count_before_run + this run's count
	keyPointer        []byte
}

// Reset invalidates the cursor. Callers must reset on every leaf change
// (the run array belongs to a different page) and on Rescan.
func (c *RunCursor) Reset() { *c = RunCursor{} }

func runCountAt(content []byte, rh runHeader, r int, keyWidth int) (int, error) {
	runOff := rh.runsStart + r*rh.runStride
	if runOff+rh.runStride > len(content) {
		return 0, fmt.Errorf("page: run %d exceeds content bounds (nitems/run-structure mismatch)", r)
	}
	return int(binary.LittleEndian.Uint16(content[runOff+keyWidth : runOff+keyWidth+2])), nil
}

func (c *RunCursor) loadRun(content []byte, rh runHeader, r int, accBefore int, keyWidth int) error {
	runOff := rh.runsStart + r*rh.runStride
	cnt, err := runCountAt(content, rh, r, keyWidth)
	if err != nil {
		return err
	}
	c.valid = true
	c.runIdx = r
	c.accumulatedBefore = accBefore
	c.lastOffsetInRun = accBefore + cnt
	c.keyPointer = content[runOff : runOff+keyWidth]
	return nil
}

// LeafKeyPtrCursor is LeafKeyPtr threaded through a RunCursor. Plain
// leaves bypass the cursor entirely — LeafKeyPtr is already O(1) for
// them by direct indexing.
func LeafKeyPtrCursor(content []byte, idx int, keyWidth int, incWidths []int, cur *RunCursor) ([]byte, error) {
	if idx < 1 {
		return nil, fmt.Errorf("page: LeafKeyPtrCursor: idx %d out of range", idx)
	}
	n := int(LeafNItems(content))
	if idx > n {
		return nil, fmt.Errorf("page: LeafKeyPtrCursor: idx %d exceeds nitems %d", idx, n)
	}
	if formatOf(content) == FormatPlain {
		off := 2 + (idx-1)*keyWidth
		return content[off : off+keyWidth], nil
	}
	incTotal := sumWidths(incWidths)
	rh := readRunHeader(content, keyWidth, incTotal)

	if cur.valid && idx >= cur.accumulatedBefore+1 && idx <= cur.lastOffsetInRun {
		return cur.keyPointer, nil
	}
	if cur.valid && idx == cur.lastOffsetInRun+1 && cur.runIdx+1 < int(rh.nruns) {
		if err := cur.loadRun(content, rh, cur.runIdx+1, cur.lastOffsetInRun, keyWidth); err != nil {
			return nil, err
		}
		return cur.keyPointer, nil
	}
	if cur.valid && idx == cur.accumulatedBefore && cur.runIdx-1 >= 0 {
		prevIdx := cur.runIdx - 1
		prevCount, err := runCountAt(content, rh, prevIdx, keyWidth)
		if err != nil {
			return nil, err
		}
		if err := cur.loadRun(content, rh, prevIdx, cur.accumulatedBefore-prevCount, keyWidth); err != nil {
			return nil, err
		}
		return cur.keyPointer, nil
	}

	// Cold path: a jump, the first lookup after Open/Rescan, or a leaf
	// change. Walk runs from the start, same as LeafKeyPtr, and prime
	// the cursor for whichever direction the caller steps next.
	before := 0
	for r := 0; r < int(rh.nruns); r++ {
		cnt, err := runCountAt(content, rh, r, keyWidth)
		if err != nil {
			return nil, err
		}
		if idx <= before+cnt {
			if err := cur.loadRun(content, rh, r, before, keyWidth); err != nil {
				return nil, err
			}
			return cur.keyPointer, nil
		}
		before += cnt
	}
	return nil, fmt.Errorf("page: LeafKeyPtrCursor: idx %d not covered by any run (nitems %d, runs summed %d)", idx, n, before)
}

// LeafIncludePtrCursor is LeafIncludePtr threaded through a RunCursor
// already positioned by a preceding LeafKeyPtrCursor call for the same
// idx — Include-RLE's INCLUDE block sits at a fixed offset within the
// same run entry, so once the run is known no further walk is needed.
func LeafIncludePtrCursor(content []byte, idx int, keyWidth int, incWidths []int, col int, cur *RunCursor) ([]byte, error) {
	if col < 0 || col >= len(incWidths) {
		return nil, fmt.Errorf("page: LeafIncludePtrCursor: column %d out of range", col)
	}
	n := int(LeafNItems(content))
	if idx < 1 || idx > n {
		return nil, fmt.Errorf("page: LeafIncludePtrCursor: idx %d out of range", idx)
	}
	colOff := sumWidths(incWidths[:col])
	width := incWidths[col]
	switch formatOf(content) {
	case FormatPlain:
		blockStart := 2 + n*keyWidth
		colStart := blockStart + colOff*n
		off := colStart + (idx-1)*width
		return content[off : off+width], nil
	case FormatIncRLE:
		if !cur.valid || idx < cur.accumulatedBefore+1 || idx > cur.lastOffsetInRun {
			// The cursor wasn't positioned for this idx (e.g. called
			// without a preceding key lookup) — fall back to a full walk
			// rather than returning a pointer into the wrong run.
			return LeafIncludePtr(content, idx, keyWidth, incWidths, col)
		}
		incTotal := sumWidths(incWidths)
		rh := readRunHeader(content, keyWidth, incTotal)
		runOff := rh.runsStart + cur.runIdx*rh.runStride
		incBlock := runOff + keyWidth + 2
		off := incBlock + colOff
		return content[off : off+width], nil
	default:
		return nil, fmt.Errorf("page: LeafIncludePtrCursor: format %s carries no INCLUDE data", formatOf(content))
	}
}
