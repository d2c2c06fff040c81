package build

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/asah/smol-sub000/internal/page"
	"github.com/asah/smol-sub000/internal/pager"
)

func i32(v int32) []byte {
	b, _ := page.EncodeAttr(page.KindInt32, 4, v)
	return b
}

func newTestPager(t *testing.T) *pager.Pager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "build.smol")
	p, err := pager.Create(path, pager.DefaultPageSize)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func baseConfig() Config {
	return Config{
		KeyWidth:               4,
		PageSize:               pager.DefaultPageSize,
		RLEUniquenessThreshold: 0.5,
		KeyRLEVersion:          2,
		BuildZoneMaps:          true,
	}
}

func TestBuildSmallAscendingInts(t *testing.T) {
	p := newTestPager(t)
	var rows []Row
	for i := int32(1); i <= 10; i++ {
		rows = append(rows, Row{Key: i32(i)})
	}
	res, err := Build(p, baseConfig(), rows)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.Height != 1 {
		t.Fatalf("expected height 1 for a single leaf, got %d", res.Height)
	}
	if res.RowCount != 10 {
		t.Fatalf("expected 10 rows, got %d", res.RowCount)
	}

	buf, err := p.ReadPage(res.RootBlkno)
	if err != nil {
		t.Fatalf("ReadPage root: %v", err)
	}
	content := page.LeafContent(buf[pager.PageHeaderSize:])
	defer p.UnpinPage(res.RootBlkno)
	if int(page.LeafNItems(content)) != 10 {
		t.Fatalf("expected 10 items in the single leaf, got %d", page.LeafNItems(content))
	}
	first, _ := page.PageFirstKey(content, 4, nil)
	last, _ := page.PageLastKey(content, 4, nil)
	if !bytes.Equal(first, i32(1)) || !bytes.Equal(last, i32(10)) {
		t.Fatalf("first/last key mismatch")
	}
}

func TestBuildEmptyInput(t *testing.T) {
	p := newTestPager(t)
	res, err := Build(p, baseConfig(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.Height != 0 {
		t.Fatalf("expected height 0 for empty input, got %d", res.Height)
	}
}

func TestBuildAllDuplicatesUsesRLE(t *testing.T) {
	p := newTestPager(t)
	var rows []Row
	for i := 0; i < 1000; i++ {
		rows = append(rows, Row{Key: i32(42)})
	}
	res, err := Build(p, baseConfig(), rows)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	buf, err := p.ReadPage(res.RootBlkno)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	defer p.UnpinPage(res.RootBlkno)
	content := page.LeafContent(buf[pager.PageHeaderSize:])
	if page.RunCount(content) != 1 {
		t.Fatalf("expected a single run for all-duplicate input, got %d runs", page.RunCount(content))
	}
	if int(page.LeafNItems(content)) != 1000 {
		t.Fatalf("expected 1000 logical items, got %d", page.LeafNItems(content))
	}
}

func TestBuildWithIncludeColumnsRoundTrips(t *testing.T) {
	p := newTestPager(t)
	cfg := baseConfig()
	cfg.IncludeWidths = []int{1, 2, 4, 8, 16}

	var rows []Row
	for i := int32(0); i < 50; i++ {
		inc := make([][]byte, len(cfg.IncludeWidths))
		for c, w := range cfg.IncludeWidths {
			v := make([]byte, w)
			v[0] = byte(i)
			inc[c] = v
		}
		rows = append(rows, Row{Key: i32(i), Include: inc})
	}
	res, err := Build(p, cfg, rows)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	buf, err := p.ReadPage(res.RootBlkno)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	defer p.UnpinPage(res.RootBlkno)
	content := page.LeafContent(buf[pager.PageHeaderSize:])
	for i := 1; i <= 50; i++ {
		for c, w := range cfg.IncludeWidths {
			got, err := page.LeafIncludePtr(content, i, 4, cfg.IncludeWidths, c)
			if err != nil {
				t.Fatalf("LeafIncludePtr(%d,%d): %v", i, c, err)
			}
			want := make([]byte, w)
			want[0] = byte(i - 1)
			if !bytes.Equal(got, want) {
				t.Fatalf("row %d col %d: got %v want %v", i, c, got, want)
			}
		}
	}
}

func TestBuildMultiLeafLinksSiblings(t *testing.T) {
	p := newTestPager(t)
	cfg := baseConfig()
	cfg.RLEUniquenessThreshold = 0 // force Plain, to grow many leaves quickly

	var rows []Row
	for i := int32(0); i < 5000; i++ {
		rows = append(rows, Row{Key: i32(i)})
	}
	res, err := Build(p, cfg, rows)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.Height < 2 {
		t.Fatalf("expected a multi-level tree for 5000 rows, got height %d", res.Height)
	}

	// Walk the leaf chain from the leftmost leaf and verify monotonic,
	// contiguous, fully-linked traversal covers all rows exactly once.
	nav := leftmostLeaf(t, p, res)
	count := 0
	var lastKey []byte
	id := nav
	for id != pager.InvalidPageID {
		buf, err := p.ReadPage(id)
		if err != nil {
			t.Fatalf("ReadPage(%d): %v", id, err)
		}
		content := page.LeafContent(buf[pager.PageHeaderSize:])
		n := int(page.LeafNItems(content))
		for i := 1; i <= n; i++ {
			key, err := page.LeafKeyPtr(content, i, 4, nil)
			if err != nil {
				t.Fatalf("LeafKeyPtr: %v", err)
			}
			if lastKey != nil && bytes.Compare(lastKey, key) > 0 {
				t.Fatalf("keys not non-decreasing across sibling chain")
			}
			lastKey = append([]byte(nil), key...)
			count++
		}
		right, _ := page.GetLeafLinks(buf)
		p.UnpinPage(id)
		id = right
	}
	if count != 5000 {
		t.Fatalf("sibling-chain walk visited %d rows, want 5000", count)
	}
}

// leftmostLeaf walks the root's leftmost child chain down to a leaf.
func leftmostLeaf(t *testing.T, p *pager.Pager, res Result) pager.PageID {
	t.Helper()
	id := res.RootBlkno
	for level := uint32(0); level < res.Height-1; level++ {
		buf, err := p.ReadPage(id)
		if err != nil {
			t.Fatalf("ReadPage(%d): %v", id, err)
		}
		content := buf[pager.PageHeaderSize:]
		e, err := page.InternalEntryAt(content, 0, 4)
		p.UnpinPage(id)
		if err != nil {
			t.Fatalf("InternalEntryAt: %v", err)
		}
		id = e.Child
	}
	return id
}
