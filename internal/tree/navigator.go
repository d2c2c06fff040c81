// Package tree implements the SMOL tree navigator (C2): descending the
// internal-page directory from the root to the leaf holding a given key
// bound, and locating the rightmost leaf. Binary search at every level
// goes through an injected comparator — no fast-path assumption about key
// representation (spec.md §4.2).
package tree

import (
	"github.com/asah/smol-sub000/internal/page"
	"github.com/asah/smol-sub000/internal/pager"
)

// CompareFunc is a 3-way comparator over raw stored key bytes.
type CompareFunc func(a, b []byte) int

// Navigator descends a built index's directory. It holds no state beyond
// its inputs: every call re-reads the path from the root, per spec.md §9
// ("Directory descent recomputes the path as needed").
type Navigator struct {
	Pager     *pager.Pager
	Meta      pager.Metapage
	KeyWidth  int
	IncWidths []int
	Cmp       CompareFunc
}

// height0 reports whether the index is empty (no root committed).
func (n *Navigator) height0() bool {
	return n.Meta.Height == 0 || n.Meta.RootBlkno == pager.InvalidPageID
}

// FindFirstLeaf descends from the root, at each internal level taking the
// leftmost child whose highkey ≥ bound (or the rightmost child if none),
// and returns the leaf block that contains the first key ≥ bound or, if
// none, the rightmost leaf. Returns pager.InvalidPageID on an empty index.
func (n *Navigator) FindFirstLeaf(bound []byte) (pager.PageID, error) {
	if n.height0() {
		return pager.InvalidPageID, nil
	}
	id := n.Meta.RootBlkno
	for level := uint32(0); level < n.Meta.Height-1; level++ {
		buf, err := n.Pager.ReadPage(id)
		if err != nil {
			return pager.InvalidPageID, err
		}
		content := buf[pager.PageHeaderSize:]
		idx, err := page.FindChildIndex(content, n.KeyWidth, bound, n.Cmp)
		n.Pager.UnpinPage(id)
		if err != nil {
			return pager.InvalidPageID, err
		}
		e, err := page.InternalEntryAt(content, idx, n.KeyWidth)
		if err != nil {
			return pager.InvalidPageID, err
		}
		id = e.Child
	}
	return id, nil
}

// RightmostLeaf follows the last entry at each level from the root.
func (n *Navigator) RightmostLeaf() (pager.PageID, error) {
	if n.height0() {
		return pager.InvalidPageID, nil
	}
	id := n.Meta.RootBlkno
	for level := uint32(0); level < n.Meta.Height-1; level++ {
		buf, err := n.Pager.ReadPage(id)
		if err != nil {
			return pager.InvalidPageID, err
		}
		content := buf[pager.PageHeaderSize:]
		cnt := page.InternalNEntries(content)
		e, err := page.InternalEntryAt(content, cnt-1, n.KeyWidth)
		n.Pager.UnpinPage(id)
		if err != nil {
			return pager.InvalidPageID, err
		}
		id = e.Child
	}
	return id, nil
}

// LeftmostLeaf follows the first entry at each level from the root.
func (n *Navigator) LeftmostLeaf() (pager.PageID, error) {
	if n.height0() {
		return pager.InvalidPageID, nil
	}
	id := n.Meta.RootBlkno
	for level := uint32(0); level < n.Meta.Height-1; level++ {
		buf, err := n.Pager.ReadPage(id)
		if err != nil {
			return pager.InvalidPageID, err
		}
		content := buf[pager.PageHeaderSize:]
		e, err := page.InternalEntryAt(content, 0, n.KeyWidth)
		n.Pager.UnpinPage(id)
		if err != nil {
			return pager.InvalidPageID, err
		}
		id = e.Child
	}
	return id, nil
}

// FindStartPosition descends to the leaf holding the first key satisfying
// the lower bound and returns the 1-based, inclusive offset of that key —
// the mirror image of FindEndPosition. A nil lowerBound means unbounded:
// the scan starts at the leftmost leaf's first item. When exclusive is
// true the bound is a strict "greater than" (so an exact match is
// skipped); otherwise it is "greater than or equal".
//
// If no key in the starting leaf satisfies the bound, the search
// continues into the right sibling, matching FindEndPosition's symmetric
// handling of a leaf that is exhausted before any key qualifies.
func (n *Navigator) FindStartPosition(lowerBound []byte, exclusive bool) (pager.PageID, int, error) {
	if n.height0() {
		return pager.InvalidPageID, 0, nil
	}
	var leafID pager.PageID
	var err error
	if lowerBound == nil {
		leafID, err = n.LeftmostLeaf()
	} else {
		leafID, err = n.FindFirstLeaf(lowerBound)
	}
	if err != nil {
		return pager.InvalidPageID, 0, err
	}
	if lowerBound == nil {
		return leafID, 1, nil
	}
	for {
		buf, err := n.Pager.ReadPage(leafID)
		if err != nil {
			return pager.InvalidPageID, 0, err
		}
		content := page.LeafContent(buf[pager.PageHeaderSize:])
		// "first key >= bound" is the same search as "first key exceeding
		// bound" with the strictness inverted: GE wants c>=0 to count as a
		// hit (firstExceeding's strict=true case), GT wants c>0 (its
		// strict=false case).
		offset, err := n.firstExceeding(content, lowerBound, !exclusive)
		nitems := int(page.LeafNItems(content))
		right, _ := page.GetLeafLinks(buf)
		n.Pager.UnpinPage(leafID)
		if err != nil {
			return pager.InvalidPageID, 0, err
		}
		if offset <= nitems {
			return leafID, offset, nil
		}
		if right == pager.InvalidPageID {
			return leafID, nitems + 1, nil
		}
		leafID = right
	}
}

// FindEndPosition descends to the leaf for upperBound, then binary
// searches within the leaf for the first key exceeding the bound (or
// meeting it, when strict is true). If every key in that leaf satisfies
// the bound, it follows sibling links forward, searching each leaf the
// same way, until a leaf holds a key past the bound. The returned offset
// is exclusive: it is the 1-based index of the first item that must NOT
// be emitted, or nitems+1 if every leaf up to the rightmost qualifies.
func (n *Navigator) FindEndPosition(upperBound []byte, strict bool) (pager.PageID, int, error) {
	if n.height0() {
		return pager.InvalidPageID, 0, nil
	}
	if upperBound == nil {
		// Unbounded above: the end position is one past the last item of
		// the rightmost leaf, mirroring FindStartPosition's nil-lowerBound
		// branch (spec.md §8: unbounded scans never fail).
		leafID, err := n.RightmostLeaf()
		if err != nil {
			return pager.InvalidPageID, 0, err
		}
		buf, err := n.Pager.ReadPage(leafID)
		if err != nil {
			return pager.InvalidPageID, 0, err
		}
		nitems := int(page.LeafNItems(page.LeafContent(buf[pager.PageHeaderSize:])))
		n.Pager.UnpinPage(leafID)
		return leafID, nitems + 1, nil
	}
	leafID, err := n.FindFirstLeaf(upperBound)
	if err != nil {
		return pager.InvalidPageID, 0, err
	}
	for {
		buf, err := n.Pager.ReadPage(leafID)
		if err != nil {
			return pager.InvalidPageID, 0, err
		}
		content := page.LeafContent(buf[pager.PageHeaderSize:])
		offset, err := n.firstExceeding(content, upperBound, strict)
		nitems := int(page.LeafNItems(content))
		right, _ := page.GetLeafLinks(buf)
		n.Pager.UnpinPage(leafID)
		if err != nil {
			return pager.InvalidPageID, 0, err
		}
		if offset <= nitems {
			return leafID, offset, nil
		}
		// Every key in this leaf satisfies the bound; check the sibling.
		if right == pager.InvalidPageID {
			return leafID, nitems + 1, nil
		}
		leafID = right
	}
}

// firstExceeding returns the 1-based index of the first key in content
// that exceeds upperBound (or, when strict, that is ≥ upperBound), or
// nitems+1 if none does.
func (n *Navigator) firstExceeding(content []byte, upperBound []byte, strict bool) (int, error) {
	nitems := int(page.LeafNItems(content))
	lo, hi := 1, nitems
	result := nitems + 1
	for lo <= hi {
		mid := (lo + hi) / 2
		k, err := page.LeafKeyPtr(content, mid, n.KeyWidth, n.IncWidths)
		if err != nil {
			return 0, err
		}
		c := n.Cmp(k, upperBound)
		exceeds := c > 0
		if strict {
			exceeds = c >= 0
		}
		if exceeds {
			result = mid
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	return result, nil
}
