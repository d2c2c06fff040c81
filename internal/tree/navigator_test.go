package tree

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/asah/smol-sub000/internal/page"
	"github.com/asah/smol-sub000/internal/pager"
)

func k(v int32) []byte {
	b, _ := page.EncodeAttr(page.KindInt32, 4, v)
	return b
}

// buildFixture writes a tiny 3-leaf, height-2 tree: leaves hold
// {1,2} {3,4} {5,6}, with one internal root page above them.
func buildFixture(t *testing.T) (*pager.Pager, pager.Metapage) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.smol")
	p, err := pager.Create(path, pager.DefaultPageSize)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { p.Close() })

	leafKeys := [][]int32{{1, 2}, {3, 4}, {5, 6}}
	var ids []pager.PageID
	for _, ks := range leafKeys {
		keys := make([][]byte, len(ks))
		for i, v := range ks {
			keys[i] = k(v)
		}
		buf := pager.NewPage(pager.DefaultPageSize, pager.PageTypeLeaf, 0, pager.FlagLeaf)
		content := page.PackPlain(keys, nil, 4, nil)
		copy(buf[pager.PageHeaderSize:], content)
		id, err := p.AppendPage(buf)
		if err != nil {
			t.Fatalf("AppendPage: %v", err)
		}
		h := pager.UnmarshalHeader(buf)
		h.ID = id
		pager.MarshalHeader(&h, buf)
		pager.SetPageCRC(buf)
		if err := p.RewritePage(id, buf); err != nil {
			t.Fatalf("RewritePage: %v", err)
		}
		ids = append(ids, id)
	}
	// Patch physical header IDs and sibling links, recomputing CRC.
	for i, id := range ids {
		buf, err := p.ReadPage(id)
		if err != nil {
			t.Fatalf("ReadPage: %v", err)
		}
		fresh := append([]byte(nil), buf...)
		h := pager.UnmarshalHeader(fresh)
		h.ID = id
		pager.MarshalHeader(&h, fresh)
		var right, left pager.PageID = pager.InvalidPageID, pager.InvalidPageID
		if i+1 < len(ids) {
			right = ids[i+1]
		}
		if i > 0 {
			left = ids[i-1]
		}
		page.SetLeafLinks(fresh, right, left)
		pager.SetPageCRC(fresh)
		if err := p.RewritePage(id, fresh); err != nil {
			t.Fatalf("RewritePage: %v", err)
		}
		p.UnpinPage(id)
	}

	entries := []page.InternalEntry{
		{HighKey: k(2), Child: ids[0]},
		{HighKey: k(4), Child: ids[1]},
		{HighKey: k(6), Child: ids[2]},
	}
	rootBuf := pager.NewPage(pager.DefaultPageSize, pager.PageTypeInternal, 0, pager.FlagInternal)
	content := page.PackInternal(entries, 4)
	copy(rootBuf[pager.PageHeaderSize:], content)
	pager.SetPageCRC(rootBuf)
	rootID, err := p.AppendPage(rootBuf)
	if err != nil {
		t.Fatalf("AppendPage root: %v", err)
	}
	h := pager.UnmarshalHeader(rootBuf)
	h.ID = rootID
	pager.MarshalHeader(&h, rootBuf)
	pager.SetPageCRC(rootBuf)
	if err := p.RewritePage(rootID, rootBuf); err != nil {
		t.Fatalf("RewritePage root: %v", err)
	}

	meta := pager.Metapage{
		NKeyAtts:  1,
		KeyLen1:   4,
		RootBlkno: rootID,
		Height:    2,
	}
	if err := p.CommitMetapage(meta); err != nil {
		t.Fatalf("CommitMetapage: %v", err)
	}
	got, _ := p.Metapage()
	return p, got
}

func newNavigator(p *pager.Pager, meta pager.Metapage) *Navigator {
	return &Navigator{
		Pager:    p,
		Meta:     meta,
		KeyWidth: 4,
		Cmp:      bytes.Compare,
	}
}

func TestFindFirstLeaf(t *testing.T) {
	p, meta := buildFixture(t)
	nav := newNavigator(p, meta)

	leafID, err := nav.FindFirstLeaf(k(3))
	if err != nil {
		t.Fatalf("FindFirstLeaf: %v", err)
	}
	buf, _ := p.ReadPage(leafID)
	first, _ := page.PageFirstKey(page.LeafContent(buf[pager.PageHeaderSize:]), 4, nil)
	p.UnpinPage(leafID)
	if !bytes.Equal(first, k(3)) {
		t.Fatalf("expected leaf starting at key 3, got first key %v", first)
	}
}

func TestFindFirstLeafBeyondAllKeysReturnsRightmost(t *testing.T) {
	p, meta := buildFixture(t)
	nav := newNavigator(p, meta)

	leafID, err := nav.FindFirstLeaf(k(999))
	if err != nil {
		t.Fatalf("FindFirstLeaf: %v", err)
	}
	rightmost, err := nav.RightmostLeaf()
	if err != nil {
		t.Fatalf("RightmostLeaf: %v", err)
	}
	if leafID != rightmost {
		t.Fatalf("expected rightmost-leaf fallback, got %d want %d", leafID, rightmost)
	}
}

func TestFindEndPositionExclusive(t *testing.T) {
	p, meta := buildFixture(t)
	nav := newNavigator(p, meta)

	leafID, offset, err := nav.FindEndPosition(k(4), false)
	if err != nil {
		t.Fatalf("FindEndPosition: %v", err)
	}
	buf, _ := p.ReadPage(leafID)
	content := page.LeafContent(buf[pager.PageHeaderSize:])
	p.UnpinPage(leafID)
	if offset <= int(page.LeafNItems(content)) {
		got, _ := page.LeafKeyPtr(content, offset, 4, nil)
		if bytes.Compare(got, k(4)) <= 0 {
			t.Fatalf("end position %d should exceed bound 4, got key %v", offset, got)
		}
	}
}
