// Package scan implements the SMOL scan state machine (C4): positioning
// over a built index's leaf chain, advancing forward or backward across
// page boundaries, applying range bounds and an optional per-row filter,
// and the parallel leaf-claim coordinator (C6) used by multi-worker scans
// (spec.md §4.4, §4.6).
package scan

import (
	"fmt"

	"github.com/asah/smol-sub000/internal/page"
	"github.com/asah/smol-sub000/internal/pager"
	"github.com/asah/smol-sub000/internal/tree"
)

// Tuple is one decoded row position: the raw stored key bytes and, for
// each configured INCLUDE column, its raw stored bytes. Callers decode
// these into typed values with page.DecodeAttr.
type Tuple struct {
	Key     []byte
	Include [][]byte
}

// KeyFilter is an extra per-row predicate evaluated against the stored key
// bytes, used for equality on trailing key columns within a range on a
// leading column (e.g. "col1 BETWEEN x AND y AND col2 = z", where col2
// alone doesn't define a contiguous byte range). Returning false skips the
// row without ending the scan.
type KeyFilter func(key []byte) bool

// Scan walks a range of an index's leaf chain in either direction. It
// holds no more state than its current position plus the precomputed
// start/end boundary positions, so Rescan can reposition it cheaply.
type Scan struct {
	Nav       *tree.Navigator
	KeyWidth  int
	IncWidths []int

	Lower, Upper               []byte
	LowerExclusive, UpperExclusive bool
	Backward                   bool
	Filter                     KeyFilter

	// Coordinator, when non-nil, makes this a parallel worker: instead of
	// following sibling links on its own, the scan claims whole leaves
	// from the shared coordinator one at a time (spec.md §4.6). Lower,
	// Upper, Backward are ignored in this mode — parallel scans cover the
	// whole index and are inherently unordered across workers.
	Coordinator *Coordinator

	inited    bool
	exhausted bool

	leaf    pager.PageID
	buf     []byte
	content []byte
	nitems  int
	offset  int // next (forward) or current (backward) 1-based index to read
	runCur  page.RunCursor

	startLeaf   pager.PageID
	startOffset int
	endLeaf     pager.PageID
	endOffset   int

	pagesScanned int
}

// Open positions the scan at its starting row. It must be called before
// the first Next.
func (s *Scan) Open() error {
	if s.Coordinator != nil {
		return s.openParallel()
	}
	startLeaf, startOffset, err := s.Nav.FindStartPosition(s.Lower, s.LowerExclusive)
	if err != nil {
		return err
	}
	endLeaf, endOffset, err := s.Nav.FindEndPosition(s.Upper, s.UpperExclusive)
	if err != nil {
		return err
	}
	s.startLeaf, s.startOffset = startLeaf, startOffset
	s.endLeaf, s.endOffset = endLeaf, endOffset
	s.inited = true

	if startLeaf == pager.InvalidPageID {
		s.exhausted = true
		return nil
	}
	if s.Backward {
		leaf, offset, err := s.stepBack(endLeaf, endOffset)
		if err != nil {
			return err
		}
		if leaf == pager.InvalidPageID {
			s.exhausted = true
			return nil
		}
		return s.loadLeaf(leaf, offset)
	}
	return s.loadLeaf(startLeaf, startOffset)
}

// openParallel claims this scan's first leaf from the shared coordinator
// and positions at its first item; the scan then owns that whole leaf.
func (s *Scan) openParallel() error {
	s.inited = true
	leaf, err := s.Coordinator.Claim()
	if err != nil {
		return err
	}
	if leaf == pager.InvalidPageID {
		s.exhausted = true
		return nil
	}
	return s.loadLeaf(leaf, 1)
}

func (s *Scan) loadLeaf(leaf pager.PageID, offset int) error {
	buf, err := s.Nav.Pager.ReadPage(leaf)
	if err != nil {
		return err
	}
	if s.leaf != pager.InvalidPageID && s.leaf != leaf {
		s.Nav.Pager.UnpinPage(s.leaf)
	}
	s.leaf = leaf
	s.buf = buf
	s.content = page.LeafContent(buf[pager.PageHeaderSize:])
	s.nitems = int(page.LeafNItems(s.content))
	s.offset = offset
	s.runCur.Reset()
	s.pagesScanned++
	return nil
}

// Next advances the scan and reports whether a row is available. The
// returned Tuple is only valid until the next call to Next or Close.
func (s *Scan) Next() (Tuple, bool, error) {
	if !s.inited {
		return Tuple{}, false, fmt.Errorf("scan: Next called before Open")
	}
	if s.exhausted {
		return Tuple{}, false, nil
	}
	if s.Coordinator != nil {
		return s.nextParallel()
	}
	if s.Backward {
		return s.nextBackward()
	}
	return s.nextForward()
}

func (s *Scan) nextForward() (Tuple, bool, error) {
	for {
		if s.leaf == pager.InvalidPageID {
			s.exhausted = true
			return Tuple{}, false, nil
		}
		if s.leaf == s.endLeaf && s.offset >= s.endOffset {
			s.exhausted = true
			return Tuple{}, false, nil
		}
		if s.offset > s.nitems {
			right, _ := page.GetLeafLinks(s.buf)
			if right == pager.InvalidPageID {
				s.exhausted = true
				return Tuple{}, false, nil
			}
			if err := s.loadLeaf(right, 1); err != nil {
				return Tuple{}, false, err
			}
			continue
		}
		t, ok, err := s.readRow(s.offset)
		if err != nil {
			return Tuple{}, false, err
		}
		s.offset++
		if !ok {
			continue
		}
		return t, true, nil
	}
}

func (s *Scan) nextBackward() (Tuple, bool, error) {
	for {
		if s.leaf == pager.InvalidPageID {
			s.exhausted = true
			return Tuple{}, false, nil
		}
		if s.leaf == s.startLeaf && s.offset < s.startOffset {
			s.exhausted = true
			return Tuple{}, false, nil
		}
		if s.offset < 1 {
			_, left := page.GetLeafLinks(s.buf)
			if left == pager.InvalidPageID {
				s.exhausted = true
				return Tuple{}, false, nil
			}
			buf, err := s.Nav.Pager.ReadPage(left)
			if err != nil {
				return Tuple{}, false, err
			}
			content := page.LeafContent(buf[pager.PageHeaderSize:])
			n := int(page.LeafNItems(content))
			s.Nav.Pager.UnpinPage(left)
			if err := s.loadLeaf(left, n); err != nil {
				return Tuple{}, false, err
			}
			continue
		}
		t, ok, err := s.readRow(s.offset)
		if err != nil {
			return Tuple{}, false, err
		}
		s.offset--
		if !ok {
			continue
		}
		return t, true, nil
	}
}

// nextParallel exhausts the currently-claimed leaf, then claims the next
// one from the coordinator, until the coordinator reports the index is
// fully claimed.
func (s *Scan) nextParallel() (Tuple, bool, error) {
	for {
		if s.offset > s.nitems {
			leaf, err := s.Coordinator.Claim()
			if err != nil {
				return Tuple{}, false, err
			}
			if leaf == pager.InvalidPageID {
				s.exhausted = true
				return Tuple{}, false, nil
			}
			if err := s.loadLeaf(leaf, 1); err != nil {
				return Tuple{}, false, err
			}
			continue
		}
		t, ok, err := s.readRow(s.offset)
		if err != nil {
			return Tuple{}, false, err
		}
		s.offset++
		if !ok {
			continue
		}
		return t, true, nil
	}
}

// readRow decodes row idx and applies the filter, reporting ok=false
// (with no error) when the filter rejects the row. Key and INCLUDE
// lookups go through s.runCur (spec.md §4.4's RLE-run cache), so
// sequential forward or backward access — the normal scan pattern —
// resolves in O(1) instead of LeafKeyPtr's O(runs) walk from the start.
func (s *Scan) readRow(idx int) (Tuple, bool, error) {
	key, err := page.LeafKeyPtrCursor(s.content, idx, s.KeyWidth, s.IncWidths, &s.runCur)
	if err != nil {
		return Tuple{}, false, err
	}
	if s.Filter != nil && !s.Filter(key) {
		return Tuple{}, false, nil
	}
	t := Tuple{Key: append([]byte(nil), key...)}
	if len(s.IncWidths) > 0 {
		t.Include = make([][]byte, len(s.IncWidths))
		for c := range s.IncWidths {
			v, err := page.LeafIncludePtrCursor(s.content, idx, s.KeyWidth, s.IncWidths, c, &s.runCur)
			if err != nil {
				return Tuple{}, false, err
			}
			t.Include[c] = append([]byte(nil), v...)
		}
	}
	return t, true, nil
}

// stepBack returns the position of the item immediately preceding the
// exclusive position (leaf, offset) — the "last qualifying item" when
// (leaf, offset) is the exclusive end of a forward range, used to seed a
// backward scan. Returns pager.InvalidPageID if no item precedes it.
func (s *Scan) stepBack(leaf pager.PageID, offset int) (pager.PageID, int, error) {
	for {
		if leaf == pager.InvalidPageID {
			return pager.InvalidPageID, 0, nil
		}
		if offset > 1 {
			return leaf, offset - 1, nil
		}
		buf, err := s.Nav.Pager.ReadPage(leaf)
		if err != nil {
			return pager.InvalidPageID, 0, err
		}
		_, left := page.GetLeafLinks(buf)
		s.Nav.Pager.UnpinPage(leaf)
		if left == pager.InvalidPageID {
			return pager.InvalidPageID, 0, nil
		}
		lbuf, err := s.Nav.Pager.ReadPage(left)
		if err != nil {
			return pager.InvalidPageID, 0, err
		}
		lcontent := page.LeafContent(lbuf[pager.PageHeaderSize:])
		n := int(page.LeafNItems(lcontent))
		s.Nav.Pager.UnpinPage(left)
		leaf, offset = left, n+1
	}
}

// Rescan repositions the scan to a new bound set without reallocating it,
// per spec.md §4.4's rescan behavior for correlated lookups.
func (s *Scan) Rescan(lower, upper []byte, lowerExclusive, upperExclusive bool) error {
	if s.leaf != pager.InvalidPageID {
		s.Nav.Pager.UnpinPage(s.leaf)
		s.leaf = pager.InvalidPageID
	}
	s.Lower, s.Upper = lower, upper
	s.LowerExclusive, s.UpperExclusive = lowerExclusive, upperExclusive
	s.inited = false
	s.exhausted = false
	return s.Open()
}

// PagesScanned reports how many leaf pages this scan has visited so far,
// the signal a caller can use to decide when to step up prefetch depth
// from its initial slow start (spec.md §4.4).
func (s *Scan) PagesScanned() int {
	return s.pagesScanned
}

// Close releases the scan's pinned page, if any.
func (s *Scan) Close() error {
	if s.leaf != pager.InvalidPageID {
		s.Nav.Pager.UnpinPage(s.leaf)
		s.leaf = pager.InvalidPageID
	}
	s.exhausted = true
	return nil
}
