package build

import (
	"bytes"
	"fmt"

	"github.com/asah/smol-sub000/internal/page"
	"github.com/asah/smol-sub000/internal/pager"
	"github.com/asah/smol-sub000/internal/zonemap"
)

// run is a builder-local run of equal (key[, include-tuple]) rows,
// accumulated incrementally while deciding how many rows fit on a leaf.
type run struct {
	key     []byte
	include [][]byte
	count   int
}

func sameRun(r run, key []byte, include [][]byte) bool {
	if !bytes.Equal(r.key, key) {
		return false
	}
	for i := range include {
		if !bytes.Equal(r.include[i], include[i]) {
			return false
		}
	}
	return true
}

// packAndWriteLeaves walks rows, greedily filling each leaf to the
// largest row count that still fits the page budget under the cheapest
// valid format, and appends the resulting pages. Sibling links are
// patched afterward in a second pass (spec.md §4.3: "set rightlink of
// previous leaf to current... two locked page writes, not simultaneously
// held").
func packAndWriteLeaves(p *pager.Pager, cfg Config, rows []Row) ([]pager.PageID, []zonemap.ZoneMap, error) {
	avail := leafContentBudget(cfg.PageSize)
	hasInclude := len(cfg.IncludeWidths) > 0
	incTotal := sumInts(cfg.IncludeWidths)
	version := cfg.KeyRLEVersion
	if version == 0 {
		version = 2
	}

	var leafIDs []pager.PageID
	var leafZones []zonemap.ZoneMap
	var prevLastKey []byte // for Key-RLE v2 continuation tracking

	i := 0
	for i < len(rows) {
		batch, runs, plainSize, rleSize, nruns := fitBatch(rows[i:], cfg, avail, hasInclude)
		if batch == 0 {
			return nil, nil, fmt.Errorf("row at index %d exceeds page capacity: %w", i, errCapacity)
		}
		useRLE := rleSize > 0 && rleSize < plainSize && rleSize <= avail &&
			float64(nruns)/float64(batch) < cfg.RLEUniquenessThreshold

		var content []byte
		var err error
		batchRows := rows[i : i+batch]
		continuesPrev := false
		if useRLE {
			if hasInclude {
				content, err = page.PackIncludeRLE(toIncRuns(runs), cfg.KeyWidth, cfg.IncludeWidths)
			} else {
				continuesPrev = prevLastKey != nil && bytes.Equal(runs[0].key, prevLastKey)
				if version == 1 {
					content, err = page.PackKeyRLEv1(toRuns(runs), cfg.KeyWidth)
				} else {
					content, err = page.PackKeyRLEv2(toRuns(runs), cfg.KeyWidth, continuesPrev)
				}
			}
		} else {
			keys := make([][]byte, batch)
			var incCols [][][]byte
			if hasInclude {
				incCols = make([][][]byte, len(cfg.IncludeWidths))
				for c := range incCols {
					incCols[c] = make([][]byte, batch)
				}
			}
			for j, r := range batchRows {
				keys[j] = r.Key
				for c := range cfg.IncludeWidths {
					incCols[c][j] = r.Include[c]
				}
			}
			content = page.PackPlain(keys, incCols, cfg.KeyWidth, cfg.IncludeWidths)
		}
		if err != nil {
			return nil, nil, err
		}
		if len(content) > avail {
			return nil, nil, fmt.Errorf("packed leaf of %d bytes exceeds available %d: %w", len(content), avail, errCapacity)
		}

		buf := pager.NewPage(cfg.PageSize, pager.PageTypeLeaf, 0, pager.FlagLeaf)
		copy(buf[pager.PageHeaderSize:], content)
		id, err := p.AppendPage(buf)
		if err != nil {
			return nil, nil, err
		}
		// The page was appended with a placeholder PageID (0) in its
		// physical header; patch it in place before anyone reads it back,
		// rather than round-tripping through ReadPage (which verifies the
		// CRC the placeholder write doesn't yet satisfy).
		h := pager.UnmarshalHeader(buf)
		h.ID = id
		pager.MarshalHeader(&h, buf)
		pager.SetPageCRC(buf)
		if err := p.RewritePage(id, buf); err != nil {
			return nil, nil, err
		}
		leafIDs = append(leafIDs, id)

		if cfg.BuildZoneMaps {
			leafZones = append(leafZones, zoneMapForBatch(batchRows, runs))
		} else {
			leafZones = append(leafZones, zonemap.ZoneMap{})
		}

		prevLastKey = batchRows[len(batchRows)-1].Key
		_ = incTotal
		i += batch
	}

	if err := linkSiblings(p, cfg, leafIDs); err != nil {
		return nil, nil, err
	}
	return leafIDs, leafZones, nil
}

// fitBatch grows a candidate batch of rows from the front of remaining
// one row at a time, recomputing both Plain and (when applicable) RLE
// candidate sizes, and stops at the largest batch that still fits the
// page budget and the row/run caps. A batch grows past the Plain budget
// only while its RLE form fits and is below the uniqueness threshold.
// Returns the batch size, its run-compressed form, and the final
// candidate sizes (rleSize is the Include-RLE size when INCLUDE columns
// are present and the Key-RLE size otherwise; both sizes are 0 only for
// an empty batch).
func fitBatch(remaining []Row, cfg Config, avail int, hasInclude bool) (batch int, runs []run, plainSize, rleSize, nruns int) {
	version := cfg.KeyRLEVersion
	if version == 0 {
		version = 2
	}
	incTotal := sumInts(cfg.IncludeWidths)

	n := 0
	for n < len(remaining) && n < page.MaxRowsPerPage {
		row := remaining[n]
		candidateRuns := runs
		if len(candidateRuns) > 0 && sameRun(candidateRuns[len(candidateRuns)-1], row.Key, row.Include) {
			candidateRuns[len(candidateRuns)-1].count++
		} else {
			if len(candidateRuns) >= page.MaxRunsPerPage {
				break
			}
			candidateRuns = append(candidateRuns, run{key: row.Key, include: row.Include, count: 1})
		}

		candidatePlainSize := page.PlainSize(n+1, cfg.KeyWidth, cfg.IncludeWidths)
		var candidateRLESize int
		if hasInclude {
			candidateRLESize = page.IncRLESize(len(candidateRuns), cfg.KeyWidth, incTotal)
		} else {
			candidateRLESize = page.KeyRLESize(len(candidateRuns), cfg.KeyWidth, version)
		}

		rleUsable := candidateRLESize <= avail && candidateRLESize < candidatePlainSize &&
			float64(len(candidateRuns))/float64(n+1) < cfg.RLEUniquenessThreshold
		if candidatePlainSize > avail && !rleUsable {
			if len(candidateRuns) == len(runs) {
				runs[len(runs)-1].count-- // undo the tentative same-run increment
			}
			break
		}
		runs = candidateRuns
		n++
		plainSize = candidatePlainSize
		rleSize = candidateRLESize
		nruns = len(runs)
	}
	return n, runs, plainSize, rleSize, nruns
}

func toRuns(rs []run) []page.Run {
	out := make([]page.Run, len(rs))
	for i, r := range rs {
		out[i] = page.Run{Key: r.key, Count: uint16(r.count)}
	}
	return out
}

func toIncRuns(rs []run) []page.IncRun {
	out := make([]page.IncRun, len(rs))
	for i, r := range rs {
		out[i] = page.IncRun{Key: r.key, Count: uint16(r.count), Inc: r.include}
	}
	return out
}

func zoneMapForBatch(rows []Row, runs []run) zonemap.ZoneMap {
	bloom := zonemap.NewBloomBuilder()
	for _, r := range runs {
		bloom.Add(r.key)
	}
	return zonemap.FromLeaf(rows[0].Key, rows[len(rows)-1].Key, len(rows), len(runs), bloom.Bits())
}

func sumInts(ws []int) int {
	t := 0
	for _, w := range ws {
		t += w
	}
	return t
}

// linkSiblings patches rightlink/leftlink on every leaf in a second pass:
// the builder needs to know each leaf's successor before it can set the
// predecessor's rightlink, so links are written after all leaves exist
// (spec.md §4.3, §5: sibling-link updates touch two pages sequentially,
// never simultaneously).
func linkSiblings(p *pager.Pager, cfg Config, leafIDs []pager.PageID) error {
	for i, id := range leafIDs {
		var right, left pager.PageID = pager.InvalidPageID, pager.InvalidPageID
		if i+1 < len(leafIDs) {
			right = leafIDs[i+1]
		}
		if i > 0 {
			left = leafIDs[i-1]
		}
		buf, err := p.ReadPage(id)
		if err != nil {
			return err
		}
		fresh := append([]byte(nil), buf...)
		p.UnpinPage(id)
		h := pager.UnmarshalHeader(fresh)
		h.ID = id
		pager.MarshalHeader(&h, fresh)
		page.SetLeafLinks(fresh, right, left)
		pager.SetPageCRC(fresh)
		if err := p.RewritePage(id, fresh); err != nil {
			return err
		}
	}
	return nil
}
