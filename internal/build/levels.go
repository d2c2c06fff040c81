package build

import (
	"github.com/asah/smol-sub000/internal/page"
	"github.com/asah/smol-sub000/internal/pager"
	"github.com/asah/smol-sub000/internal/zonemap"
)

// levelItem is one not-yet-written entry destined for the next internal
// level up: the highkey of its subtree, the child page already on disk,
// and that subtree's aggregated zone map.
type levelItem struct {
	highKey []byte
	child   pager.PageID
	zone    zonemap.ZoneMap
}

// buildInternalLevels builds directory levels bottom-up over the leaves
// until exactly one page remains (the root), per spec.md §4.3. A
// single-leaf index needs no directory at all: the leaf itself is the
// root, and height is 1.
func buildInternalLevels(p *pager.Pager, cfg Config, leafIDs []pager.PageID, leafZones []zonemap.ZoneMap) (pager.PageID, uint32, error) {
	items := make([]levelItem, len(leafIDs))
	for i, id := range leafIDs {
		buf, err := p.ReadPage(id)
		if err != nil {
			return pager.InvalidPageID, 0, err
		}
		content := page.LeafContent(buf[pager.PageHeaderSize:])
		last, err := page.PageLastKey(content, cfg.KeyWidth, cfg.IncludeWidths)
		p.UnpinPage(id)
		if err != nil {
			return pager.InvalidPageID, 0, err
		}
		z := zonemap.ZoneMap{}
		if cfg.BuildZoneMaps {
			z = leafZones[i]
		}
		items[i] = levelItem{highKey: append([]byte(nil), last...), child: id, zone: z}
	}

	height := uint32(1)
	avail := cfg.PageSize - pager.PageHeaderSize
	capacity := page.InternalCapacity(avail, cfg.KeyWidth)
	if capacity < 1 {
		return pager.InvalidPageID, 0, errCapacity
	}

	for len(items) > 1 {
		var next []levelItem
		for start := 0; start < len(items); start += capacity {
			end := start + capacity
			if end > len(items) {
				end = len(items)
			}
			chunk := items[start:end]
			entries := make([]page.InternalEntry, len(chunk))
			zones := make([]zonemap.ZoneMap, len(chunk))
			for i, it := range chunk {
				entries[i] = page.InternalEntry{HighKey: it.highKey, Child: it.child, Zone: it.zone}
				zones[i] = it.zone
			}
			content := page.PackInternal(entries, cfg.KeyWidth)
			buf := pager.NewPage(cfg.PageSize, pager.PageTypeInternal, 0, pager.FlagInternal)
			copy(buf[pager.PageHeaderSize:], content)
			id, err := p.AppendPage(buf)
			if err != nil {
				return pager.InvalidPageID, 0, err
			}
			h := pager.UnmarshalHeader(buf)
			h.ID = id
			pager.MarshalHeader(&h, buf)
			pager.SetPageCRC(buf)
			if err := p.RewritePage(id, buf); err != nil {
				return pager.InvalidPageID, 0, err
			}
			agg := zonemap.Aggregate(zones)
			next = append(next, levelItem{highKey: chunk[len(chunk)-1].highKey, child: id, zone: agg})
		}
		items = next
		height++
	}

	return items[0].child, height, nil
}
