package scan

import (
	"sync/atomic"

	"github.com/asah/smol-sub000/internal/page"
	"github.com/asah/smol-sub000/internal/pager"
	"github.com/asah/smol-sub000/internal/tree"
)

// exhausted is a sentinel distinct from the uninitialized value 0: real
// leaf page IDs never collide with either, since block 0 is always the
// metapage (spec.md §4.6).
const exhausted uint32 = 0xFFFFFFFF

// Coordinator hands out leaf pages to concurrent worker scans one at a
// time via a single CAS-guarded cursor, so N workers partition the whole
// index without any worker needing to know N or its own index up front
// (spec.md §4.6). curr holds the next leaf to hand out: Claim reads it
// (computing the leftmost leaf when curr is still uninitialized), CASes in
// that leaf's rightlink, and returns the leaf it read; it retries on CAS
// failure.
type Coordinator struct {
	curr atomic.Uint32
	nav  *tree.Navigator
}

// NewCoordinator returns a coordinator that will hand out every leaf of
// nav's index, starting from the leftmost, in leaf-chain order.
func NewCoordinator(nav *tree.Navigator) *Coordinator {
	return &Coordinator{nav: nav}
}

// Claim atomically reserves the next unclaimed leaf for the caller.
// Returns pager.InvalidPageID once every leaf has been claimed.
func (c *Coordinator) Claim() (pager.PageID, error) {
	for {
		old := c.curr.Load()
		if old == exhausted {
			return pager.InvalidPageID, nil
		}
		var candidate pager.PageID
		if old == 0 {
			start, err := c.nav.LeftmostLeaf()
			if err != nil {
				return pager.InvalidPageID, err
			}
			if start == pager.InvalidPageID {
				c.curr.Store(exhausted)
				return pager.InvalidPageID, nil
			}
			candidate = start
		} else {
			candidate = pager.PageID(old)
		}

		right, err := c.rightlinkOf(candidate)
		if err != nil {
			return pager.InvalidPageID, err
		}
		next := uint32(right)
		if right == pager.InvalidPageID {
			next = exhausted
		}
		if c.curr.CompareAndSwap(old, next) {
			return candidate, nil
		}
		// Lost the race to another worker; reload and retry.
	}
}

func (c *Coordinator) rightlinkOf(id pager.PageID) (pager.PageID, error) {
	buf, err := c.nav.Pager.ReadPage(id)
	if err != nil {
		return pager.InvalidPageID, err
	}
	right, _ := page.GetLeafLinks(buf)
	c.nav.Pager.UnpinPage(id)
	return right, nil
}
