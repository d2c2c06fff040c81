// Package page implements the SMOL page codec (C1): encoding and random
// access for leaf payloads (plain, Key-RLE v1/v2, Include-RLE) and the
// fixed-stride internal directory page format, plus the fixed-width
// attribute codec used to turn typed build-input values into stored bytes.
//
// All functions here operate on a page's logical *content* — the bytes
// after the pager's 32-byte physical header and, for leaves, before the
// sibling-link trailer — never on the physical block directly.
package page

import (
	"encoding/binary"
	"fmt"

	"github.com/asah/smol-sub000/internal/pager"
)

// Leaf payload tags. Plain pages encode their item count directly as the
// first u16 (always < 0x8000); the three RLE variants use a reserved tag
// above that range, per spec.md §9 ("sum-types instead of tagged pages").
const (
	TagKeyRLEv1 uint16 = 0x8001
	TagKeyRLEv2 uint16 = 0x8002
	TagIncRLE   uint16 = 0x8003

	maxPlainN = 0x7FFF
)

// LeafFormat identifies which of the four payload variants a leaf uses.
type LeafFormat int

const (
	FormatPlain LeafFormat = iota
	FormatKeyRLEv1
	FormatKeyRLEv2
	FormatIncRLE
)

func (f LeafFormat) String() string {
	switch f {
	case FormatPlain:
		return "Plain"
	case FormatKeyRLEv1:
		return "KeyRLEv1"
	case FormatKeyRLEv2:
		return "KeyRLEv2"
	case FormatIncRLE:
		return "IncRLE"
	default:
		return "Unknown"
	}
}

// LeafTrailerSize is the size of the page-end opaque area on a leaf page,
// holding the doubly-linked sibling pointers (spec.md §6, "page files").
// Internal pages carry no trailer: only leaves are threaded into a
// sibling chain.
const LeafTrailerSize = 8

// LeafContent returns the portion of a leaf's logical payload usable for
// key/INCLUDE data, i.e. everything before the sibling-link trailer.
func LeafContent(payload []byte) []byte {
	return payload[:len(payload)-LeafTrailerSize]
}

// SetLeafLinks writes the rightlink/leftlink sibling pointers into the
// trailer of a leaf payload.
func SetLeafLinks(payload []byte, right, left pager.PageID) {
	t := payload[len(payload)-LeafTrailerSize:]
	binary.LittleEndian.PutUint32(t[0:4], uint32(right))
	binary.LittleEndian.PutUint32(t[4:8], uint32(left))
}

// GetLeafLinks reads the rightlink/leftlink sibling pointers from a leaf
// payload's trailer.
func GetLeafLinks(payload []byte) (right, left pager.PageID) {
	t := payload[len(payload)-LeafTrailerSize:]
	return pager.PageID(binary.LittleEndian.Uint32(t[0:4])), pager.PageID(binary.LittleEndian.Uint32(t[4:8]))
}

// formatOf inspects the tag word of a leaf's content to determine its
// payload variant.
func formatOf(content []byte) LeafFormat {
	tag := binary.LittleEndian.Uint16(content[0:2])
	switch tag {
	case TagKeyRLEv1:
		return FormatKeyRLEv1
	case TagKeyRLEv2:
		return FormatKeyRLEv2
	case TagIncRLE:
		return FormatIncRLE
	default:
		return FormatPlain
	}
}

// LeafFormatOf reports which payload variant a leaf's content uses, for
// diagnostics (cmd/smolinspect) that want to report format mix across a
// built index without decoding every row.
func LeafFormatOf(content []byte) LeafFormat {
	return formatOf(content)
}

// LeafNItems reads the logical item count (not run count) out of a leaf's
// content, regardless of payload variant.
func LeafNItems(content []byte) uint16 {
	switch formatOf(content) {
	case FormatPlain:
		return binary.LittleEndian.Uint16(content[0:2])
	default:
		return binary.LittleEndian.Uint16(content[2:4])
	}
}

// runHeader describes the fixed portion preceding the run array in each
// RLE variant, and the per-run stride.
type runHeader struct {
	nruns         uint16
	runsStart     int
	runStride     int
	continuesByte bool
	continues     bool
}

func readRunHeader(content []byte, keyWidth int, incTotalWidth int) runHeader {
	format := formatOf(content)
	nruns := binary.LittleEndian.Uint16(content[4:6])
	switch format {
	case FormatKeyRLEv1:
		return runHeader{nruns: nruns, runsStart: 6, runStride: keyWidth + 2}
	case FormatKeyRLEv2:
		cont := content[6] == 1
		return runHeader{nruns: nruns, runsStart: 7, runStride: keyWidth + 2, continuesByte: true, continues: cont}
	case FormatIncRLE:
		return runHeader{nruns: nruns, runsStart: 6, runStride: keyWidth + 2 + incTotalWidth}
	default:
		panic("page: readRunHeader called on a plain leaf")
	}
}

// RunContinues reports whether a Key-RLE v2 leaf's first run is a
// continuation of the previous leaf's last run (spec.md Invariant 4).
// Only meaningful when the content is FormatKeyRLEv2.
func RunContinues(content []byte) bool {
	if formatOf(content) != FormatKeyRLEv2 {
		return false
	}
	return content[6] == 1
}

// LeafKeyPtr returns a pointer to the idx-th key (1-based) in a leaf's
// content. For RLE variants this walks runs summing counts until idx
// falls inside a run — O(runs); callers doing sequential access should
// use a run cache (see internal/scan) to amortize this to O(1).
func LeafKeyPtr(content []byte, idx int, keyWidth int, incWidths []int) ([]byte, error) {
	if idx < 1 {
		return nil, fmt.Errorf("page: LeafKeyPtr: idx %d out of range", idx)
	}
	n := int(LeafNItems(content))
	if idx > n {
		return nil, fmt.Errorf("page: LeafKeyPtr: idx %d exceeds nitems %d", idx, n)
	}
	format := formatOf(content)
	if format == FormatPlain {
		off := 2 + (idx-1)*keyWidth
		return content[off : off+keyWidth], nil
	}
	incTotal := sumWidths(incWidths)
	rh := readRunHeader(content, keyWidth, incTotal)
	before := 0
	for r := 0; r < int(rh.nruns); r++ {
		runOff := rh.runsStart + r*rh.runStride
		if runOff+rh.runStride > len(content) {
			return nil, fmt.Errorf("page: LeafKeyPtr: run %d exceeds content bounds (nitems/run-structure mismatch)", r)
		}
		cnt := int(binary.LittleEndian.Uint16(content[runOff+keyWidth : runOff+keyWidth+2]))
		if idx <= before+cnt {
			return content[runOff : runOff+keyWidth], nil
		}
		before += cnt
	}
	return nil, fmt.Errorf("page: LeafKeyPtr: idx %d not covered by any run (nitems %d, runs summed %d)", idx, n, before)
}

// LeafIncludePtr returns a pointer to the col-th INCLUDE value (0-based)
// for the idx-th key (1-based). Only Plain and Include-RLE payloads carry
// INCLUDE data; calling this on a bare Key-RLE leaf is a programming
// error (the builder never emits Key-RLE for a schema with INCLUDE
// columns).
func LeafIncludePtr(content []byte, idx int, keyWidth int, incWidths []int, col int) ([]byte, error) {
	if col < 0 || col >= len(incWidths) {
		return nil, fmt.Errorf("page: LeafIncludePtr: column %d out of range", col)
	}
	n := int(LeafNItems(content))
	if idx < 1 || idx > n {
		return nil, fmt.Errorf("page: LeafIncludePtr: idx %d out of range", idx)
	}
	format := formatOf(content)
	colOff := sumWidths(incWidths[:col])
	width := incWidths[col]
	switch format {
	case FormatPlain:
		blockStart := 2 + n*keyWidth
		colStart := blockStart + colOff*n
		off := colStart + (idx-1)*width
		return content[off : off+width], nil
	case FormatIncRLE:
		incTotal := sumWidths(incWidths)
		rh := readRunHeader(content, keyWidth, incTotal)
		before := 0
		for r := 0; r < int(rh.nruns); r++ {
			runOff := rh.runsStart + r*rh.runStride
			cnt := int(binary.LittleEndian.Uint16(content[runOff+keyWidth : runOff+keyWidth+2]))
			if idx <= before+cnt {
				incBlock := runOff + keyWidth + 2
				off := incBlock + colOff
				return content[off : off+width], nil
			}
			before += cnt
		}
		return nil, fmt.Errorf("page: LeafIncludePtr: idx %d not covered by any run", idx)
	default:
		return nil, fmt.Errorf("page: LeafIncludePtr: format %s carries no INCLUDE data", format)
	}
}

// PageFirstKey and PageLastKey are convenience wrappers over LeafKeyPtr.
func PageFirstKey(content []byte, keyWidth int, incWidths []int) ([]byte, error) {
	return LeafKeyPtr(content, 1, keyWidth, incWidths)
}

func PageLastKey(content []byte, keyWidth int, incWidths []int) ([]byte, error) {
	n := int(LeafNItems(content))
	if n == 0 {
		return nil, fmt.Errorf("page: PageLastKey: empty leaf")
	}
	return LeafKeyPtr(content, n, keyWidth, incWidths)
}

func sumWidths(ws []int) int {
	t := 0
	for _, w := range ws {
		t += w
	}
	return t
}
