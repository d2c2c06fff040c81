// Package smol implements SMOL, a read-only, space-efficient ordered
// index engine for fixed-width and short-text keys. An index is built
// once from a sorted or sortable row source, persisted to a single file,
// and thereafter only ever scanned — there is no insert, update, or
// delete path (spec.md §1, §7 ErrUnsupported).
package smol

import (
	"errors"
	"fmt"

	"golang.org/x/text/collate"

	"github.com/asah/smol-sub000/internal/build"
	"github.com/asah/smol-sub000/internal/pager"
	"github.com/asah/smol-sub000/internal/scan"
	"github.com/asah/smol-sub000/internal/tree"
)

// Index is a built SMOL index opened for scanning. All methods are safe
// for concurrent use by multiple goroutines, as required for parallel
// scans over a single shared file handle (spec.md §4.6).
type Index struct {
	p      *pager.Pager
	schema Schema
	nav    tree.Navigator
	cmp    Comparator
	meta   pager.Metapage
	tun    Tunables
}

// OpenOptions carries caller-supplied extensions Open cannot derive from
// the file alone.
type OpenOptions struct {
	// Collator resolves collation_oid-based text comparison when the
	// schema's Collation is non-zero. Required only for collated text
	// keys; ignored otherwise.
	Collator *collate.Collator
}

// Build constructs a new index file at path from rows, according to
// schema and tun, and returns it opened for scanning.
func Build(path string, schema Schema, tun Tunables, rows RowSource, opts OpenOptions) (*Index, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if err := tun.Validate(); err != nil {
		return nil, err
	}

	buildRows, err := encodeRows(schema, rows)
	if err != nil {
		return nil, err
	}

	intKeys := true
	for _, a := range schema.KeyAttrs {
		if a.Kind == KindText {
			intKeys = false
		}
	}
	eligible := intKeys && build.ParallelBuildEligible(len(schema.KeyAttrs), len(schema.Include))
	cfg := build.Config{
		KeyWidth:               schema.KeyWidth(),
		IncludeWidths:          schema.IncludeWidths(),
		PageSize:               pager.DefaultPageSize,
		RLEUniquenessThreshold: tun.RLEUniquenessThreshold,
		KeyRLEVersion:          rleVersionCode(tun.KeyRLEVersion),
		BuildZoneMaps:          tun.BuildZoneMaps,
		Logger:                 pager.NewLogger(tun.DebugLog, nil),
	}
	if eligible && len(buildRows) > 4096 {
		buildRows = build.ParallelSort(buildRows, parallelWorkers(tun))
		cfg.SortRows = false
	} else {
		cfg.SortRows = intKeys && (len(schema.KeyAttrs) == 2 || len(schema.Include) > 0)
	}

	p, err := pager.Create(path, cfg.PageSize)
	if err != nil {
		return nil, fmt.Errorf("smol: create %s: %w", path, err)
	}

	res, err := build.Build(p, cfg, buildRows)
	if err != nil {
		p.Close()
		if errors.Is(err, build.ErrCapacity) {
			return nil, fmt.Errorf("%w: %v", ErrCapacity, err)
		}
		return nil, fmt.Errorf("smol: build: %w", err)
	}

	meta := pager.Metapage{
		Version:                 pager.FormatVersion,
		NKeyAtts:                uint8(len(schema.KeyAttrs)),
		RootBlkno:               res.RootBlkno,
		Height:                  res.Height,
		IncCount:                uint8(len(schema.Include)),
		CollationOID:            schema.Collation,
		ZoneMapsEnabled:         tun.BuildZoneMaps,
		PageSize:                uint32(cfg.PageSize),
		BuildID:                 pager.NewBuildID(),
		RLEUniquenessThreshold:  tun.RLEUniquenessThreshold,
		KeyRLEVersion:           uint8(cfg.KeyRLEVersion),
	}
	meta.KeyLen1 = uint16(schema.KeyAttrs[0].Width)
	if len(schema.KeyAttrs) == 2 {
		meta.KeyLen2 = uint16(schema.KeyAttrs[1].Width)
	}
	for i, w := range schema.IncludeWidths() {
		meta.IncLen[i] = uint16(w)
	}
	if res.Height > 1 {
		// A single-leaf index has no internal directory at all: RootBlkno
		// names the leaf itself, and DirectoryBlkno stays the zero value
		// (pager.InvalidPageID) to say so.
		meta.DirectoryBlkno = res.RootBlkno
	}
	if err := p.CommitMetapage(meta); err != nil {
		p.Close()
		return nil, fmt.Errorf("smol: commit metapage: %w", err)
	}

	return newIndex(p, schema, meta, tun, opts)
}

// Open opens an existing index file. schema must describe the same shape
// the file was built with; Open cross-checks key/INCLUDE widths against
// the metapage and returns ErrFormatViolation on mismatch, since SMOL's
// on-disk format stores widths but not attribute kinds (the host catalog
// is the source of truth for types, matching spec.md §3's metapage field
// list).
func Open(path string, schema Schema, opts OpenOptions) (*Index, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	p, err := pager.Open(path)
	if err != nil {
		return nil, fmt.Errorf("smol: open %s: %w", path, err)
	}
	meta, ok := p.Metapage()
	if !ok {
		p.Close()
		return nil, fmt.Errorf("%w: no metapage committed", ErrFormatViolation)
	}
	if int(meta.NKeyAtts) != len(schema.KeyAttrs) || int(meta.KeyLen1) != schema.KeyAttrs[0].Width {
		p.Close()
		return nil, fmt.Errorf("%w: schema key shape does not match file", ErrFormatViolation)
	}
	if len(schema.KeyAttrs) == 2 && int(meta.KeyLen2) != schema.KeyAttrs[1].Width {
		p.Close()
		return nil, fmt.Errorf("%w: schema second key width does not match file", ErrFormatViolation)
	}
	if int(meta.IncCount) != len(schema.Include) {
		p.Close()
		return nil, fmt.Errorf("%w: schema INCLUDE column count does not match file", ErrFormatViolation)
	}
	return newIndex(p, schema, meta, DefaultTunables(), opts)
}

func newIndex(p *pager.Pager, schema Schema, meta pager.Metapage, tun Tunables, opts OpenOptions) (*Index, error) {
	cmp := comparatorForSchema(schema, opts.Collator)
	ix := &Index{
		p:      p,
		schema: schema,
		meta:   meta,
		tun:    tun,
		cmp:    cmp,
		nav: tree.Navigator{
			Pager:     p,
			Meta:      meta,
			KeyWidth:  schema.KeyWidth(),
			IncWidths: schema.IncludeWidths(),
			Cmp:       cmp.Compare,
		},
	}
	return ix, nil
}

// Close releases the index's underlying file handle. Any Scan obtained
// from this index must be closed first.
func (ix *Index) Close() error {
	return ix.p.Close()
}

// Schema returns the schema this index was opened or built with.
func (ix *Index) Schema() Schema { return ix.schema }

// RowCount is not tracked in the metapage directly; callers needing an
// exact count should scan and count, or consult zone map row_count sums
// via cmd/smolinspect. Height reports the tree's height (0 for an empty
// index, 1 for a single leaf with no directory).
func (ix *Index) Height() uint32 { return ix.meta.Height }

// Scan wraps an internal/scan.Scan with schema-aware bound encoding and
// tuple decoding.
type Scan struct {
	inner  *scan.Scan
	schema Schema
}

// NewScan opens a scan over bounds. The leading key attribute's bound(s)
// define the scanned range; an equality bound on the second key attribute
// (two-column schemas only) becomes a per-row filter, per Bound's doc.
func (ix *Index) NewScan(bounds ScanKeys, opts ScanOptions) (*Scan, error) {
	lower, lowerExcl, upper, upperExcl, err := ix.encodeRangeBounds(bounds)
	if err != nil {
		return nil, err
	}
	filter, err := ix.encodeEqualityFilter(bounds)
	if err != nil {
		return nil, err
	}
	s := &scan.Scan{
		Nav:            &ix.nav,
		KeyWidth:       ix.schema.KeyWidth(),
		IncWidths:      ix.schema.IncludeWidths(),
		Lower:          lower,
		LowerExclusive: lowerExcl,
		Upper:          upper,
		UpperExclusive: upperExcl,
		Backward:       opts.Backward,
		Filter:         filter,
	}
	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("smol: open scan: %w", err)
	}
	return &Scan{inner: s, schema: ix.schema}, nil
}

// NewParallelScan returns `workers` scans sharing one claim coordinator,
// each covering a disjoint subset of leaves (spec.md §4.6). Bounds are
// not supported for parallel scans — they cover the whole index.
func (ix *Index) NewParallelScan(workers int) ([]*Scan, error) {
	if workers < 1 {
		return nil, fmt.Errorf("%w: workers must be ≥1, got %d", ErrInputInvalid, workers)
	}
	coord := scan.NewCoordinator(&ix.nav)
	out := make([]*Scan, workers)
	for i := 0; i < workers; i++ {
		s := &scan.Scan{
			Nav:         &ix.nav,
			KeyWidth:    ix.schema.KeyWidth(),
			IncWidths:   ix.schema.IncludeWidths(),
			Coordinator: coord,
		}
		if err := s.Open(); err != nil {
			for _, prior := range out[:i] {
				if prior != nil {
					prior.Close()
				}
			}
			return nil, fmt.Errorf("smol: open parallel scan worker %d: %w", i, err)
		}
		out[i] = &Scan{inner: s, schema: ix.schema}
	}
	return out, nil
}

// Next advances the scan and decodes the next row into tuple. Returns
// false (with no error) once the scan is exhausted.
func (s *Scan) Next(tuple *Tuple) (bool, error) {
	t, ok, err := s.inner.Next()
	if err != nil {
		return false, fmt.Errorf("smol: scan: %w", err)
	}
	if !ok {
		return false, nil
	}
	tuple.Key = t.Key
	tuple.Include = t.Include
	return true, nil
}

// Close releases the scan's pinned page.
func (s *Scan) Close() error {
	return s.inner.Close()
}

// Rescan repositions the scan to a new bound set without reallocating it,
// for correlated lookups that reuse one scan across many probe keys.
func (s *Scan) Rescan(bounds ScanKeys) error {
	lower, lowerExcl, upper, upperExcl, err := encodeRangeBoundsForSchema(s.schema, bounds)
	if err != nil {
		return err
	}
	return s.inner.Rescan(lower, upper, lowerExcl, upperExcl)
}

func rleVersionCode(v KeyRLEVersion) int {
	switch v {
	case RLEVersionV1:
		return 1
	case RLEVersionV2, RLEVersionAuto, "":
		return 2
	default:
		return 2
	}
}

func parallelWorkers(tun Tunables) int {
	if tun.ParallelClaimBatch > 1 {
		return tun.ParallelClaimBatch
	}
	return 4
}
