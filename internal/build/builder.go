// Package build implements the SMOL builder (C3): turning a sorted
// key (+ optional INCLUDE) stream into leaves, internal levels, and a
// committed metapage. It operates purely on pre-encoded byte slices and
// widths — the root smol package is responsible for turning typed values
// into bytes via internal/page.EncodeAttr before calling here, which
// keeps this package decoupled from the attribute-kind taxonomy.
package build

import (
	"fmt"

	"github.com/asah/smol-sub000/internal/page"
	"github.com/asah/smol-sub000/internal/pager"
)

// Row is one pre-encoded input row: a key and, if the schema has INCLUDE
// columns, one raw byte slice per column.
type Row struct {
	Key     []byte
	Include [][]byte
}

// Config bundles the builder's knobs, mirroring the Tunables spec.md §6
// lists plus the physical shape of the schema.
type Config struct {
	KeyWidth      int
	IncludeWidths []int
	PageSize      int

	RLEUniquenessThreshold float64
	KeyRLEVersion          int // 0 = auto (picks 2), 1, or 2
	BuildZoneMaps          bool

	// SortRows requests an internal stable sort by key bytes before
	// packing, used for the integer two-column and integer INCLUDE
	// paths spec.md §4.3 calls out; for the general case the caller
	// already supplies a sorted stream and this should be false.
	SortRows bool

	Logger *pager.Logger
}

// Result summarizes a completed build.
type Result struct {
	RootBlkno pager.PageID
	Height    uint32
	RowCount  int
}

// Build streams rows into leaves via the page codec, links siblings,
// builds internal levels bottom-up with aggregated zone maps, and commits
// the metapage. rows must already be sorted by key unless cfg.SortRows.
func Build(p *pager.Pager, cfg Config, rows []Row) (Result, error) {
	if cfg.PageSize == 0 {
		cfg.PageSize = p.PageSize()
	}
	if len(rows) == 0 {
		// Empty input: height=0, no pages beyond the (already reserved)
		// metapage block. spec.md §8 boundary behavior.
		return Result{RootBlkno: pager.InvalidPageID, Height: 0, RowCount: 0}, nil
	}
	if cfg.SortRows {
		sortRowsByKey(rows)
	}
	if err := validateCapacity(cfg); err != nil {
		return Result{}, err
	}

	leafIDs, leafZones, err := packAndWriteLeaves(p, cfg, rows)
	if err != nil {
		return Result{}, err
	}
	cfg.Logger.Debugf("build: wrote %d leaves for %d rows", len(leafIDs), len(rows))

	rootID, height, err := buildInternalLevels(p, cfg, leafIDs, leafZones)
	if err != nil {
		return Result{}, err
	}
	cfg.Logger.Debugf("build: root=%d height=%d", rootID, height)

	return Result{RootBlkno: rootID, Height: height, RowCount: len(rows)}, nil
}

func validateCapacity(cfg Config) error {
	avail := leafContentBudget(cfg.PageSize)
	minRowSize := cfg.KeyWidth
	if minRowSize > avail-2 {
		return fmt.Errorf("row width %d exceeds page capacity %d: %w", cfg.KeyWidth, avail, errCapacity)
	}
	return nil
}

func leafContentBudget(pageSize int) int {
	return pageSize - pager.PageHeaderSize - page.LeafTrailerSize
}

// errCapacity is a local sentinel; the root package maps it onto
// smol.ErrCapacity so internal/build never imports the root package.
var errCapacity = fmt.Errorf("row exceeds page payload capacity")

// ErrCapacity exposes the sentinel for callers (the root smol package)
// to match with errors.Is without creating an import cycle.
var ErrCapacity = errCapacity
