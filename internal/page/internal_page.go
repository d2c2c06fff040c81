package page

import (
	"encoding/binary"
	"fmt"

	"github.com/asah/smol-sub000/internal/pager"
	"github.com/asah/smol-sub000/internal/zonemap"
)

// InternalEntry is one `{highkey, child-page, zone-map}` entry in a
// directory page (spec.md §3, "Internal page"). Unlike the teacher's
// variable-length slotted records, SMOL entries are fixed-stride: every
// index has a single fixed key width, so there is no need for a slot
// directory indirection layer.
type InternalEntry struct {
	HighKey []byte
	Child   pager.PageID
	Zone    zonemap.ZoneMap
}

// InternalEntrySize returns the fixed on-disk size of one entry for the
// given key width.
func InternalEntrySize(keyWidth int) int {
	return keyWidth + 4 + zonemap.EncodedSize
}

// InternalCapacity returns how many entries of keyWidth fit in a content
// area of the given length (after the 2-byte entry-count header).
func InternalCapacity(contentLen int, keyWidth int) int {
	avail := contentLen - 2
	if avail <= 0 {
		return 0
	}
	return avail / InternalEntrySize(keyWidth)
}

// InternalSize returns the exact byte count an internal page payload with
// n entries of keyWidth occupies.
func InternalSize(n int, keyWidth int) int {
	return 2 + n*InternalEntrySize(keyWidth)
}

// PackInternal serializes entries into an internal-page content buffer.
func PackInternal(entries []InternalEntry, keyWidth int) []byte {
	out := make([]byte, InternalSize(len(entries), keyWidth))
	binary.LittleEndian.PutUint16(out[0:2], uint16(len(entries)))
	stride := InternalEntrySize(keyWidth)
	off := 2
	for _, e := range entries {
		copy(out[off:off+keyWidth], e.HighKey)
		binary.LittleEndian.PutUint32(out[off+keyWidth:off+keyWidth+4], uint32(e.Child))
		e.Zone.Marshal(out[off+keyWidth+4 : off+stride])
		off += stride
	}
	return out
}

// InternalNEntries reads the entry count out of an internal page's content.
func InternalNEntries(content []byte) int {
	return int(binary.LittleEndian.Uint16(content[0:2]))
}

// InternalEntryAt returns the idx-th entry (0-based) of an internal page.
func InternalEntryAt(content []byte, idx int, keyWidth int) (InternalEntry, error) {
	n := InternalNEntries(content)
	if idx < 0 || idx >= n {
		return InternalEntry{}, fmt.Errorf("page: InternalEntryAt: idx %d out of range [0,%d)", idx, n)
	}
	stride := InternalEntrySize(keyWidth)
	off := 2 + idx*stride
	e := InternalEntry{
		HighKey: content[off : off+keyWidth],
		Child:   pager.PageID(binary.LittleEndian.Uint32(content[off+keyWidth : off+keyWidth+4])),
		Zone:    zonemap.Unmarshal(content[off+keyWidth+4 : off+stride]),
	}
	return e, nil
}

// FindChildIndex implements spec.md §3's directory-descent rule: "the
// leftmost entry whose highkey ≥ probe key; if none, the rightmost
// child." Binary search uses cmp exclusively — no fast-path assumption
// about key representation (spec.md §4.2).
func FindChildIndex(content []byte, keyWidth int, probe []byte, cmp func(a, b []byte) int) (int, error) {
	n := InternalNEntries(content)
	if n == 0 {
		return -1, fmt.Errorf("page: FindChildIndex: empty internal page")
	}
	lo, hi := 0, n-1
	best := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		e, err := InternalEntryAt(content, mid, keyWidth)
		if err != nil {
			return -1, err
		}
		if cmp(e.HighKey, probe) >= 0 {
			best = mid
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	if best == -1 {
		return n - 1, nil // rightmost child fallback
	}
	return best, nil
}
