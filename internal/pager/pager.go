package pager

import (
	"container/list"
	"fmt"
	"os"
	"sync"
)

// frame is one slot in the buffer pool: a cached page buffer plus a pin
// count. Pages with pin==0 are eligible for eviction; pinned pages never
// leave the pool while a scan holds a reference.
type frame struct {
	id    PageID
	buf   []byte
	pin   int
	elem  *list.Element // position in the pool's LRU list
}

// BufferPoolConfig bounds how many unpinned pages the pool keeps cached.
type BufferPoolConfig struct {
	Capacity int // number of frames; 0 uses DefaultPoolCapacity
}

const DefaultPoolCapacity = 256

// pool is a capacity-bounded LRU cache of page frames, keyed by PageID.
// Unlike a mutating storage engine's pool, frames here are never marked
// dirty — every page is written once (AppendPage/RewritePage) and never
// touched again, so eviction never needs a writeback.
type pool struct {
	mu       sync.Mutex
	capacity int
	frames   map[PageID]*frame
	lru      *list.List // front = most recently used
}

func newPool(cfg BufferPoolConfig) *pool {
	cap := cfg.Capacity
	if cap <= 0 {
		cap = DefaultPoolCapacity
	}
	return &pool{
		capacity: cap,
		frames:   make(map[PageID]*frame),
		lru:      list.New(),
	}
}

func (p *pool) get(id PageID) (*frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.frames[id]
	if ok {
		p.lru.MoveToFront(f.elem)
	}
	return f, ok
}

// put inserts a freshly read page, pinning it once for the caller, and
// evicts the least-recently-used unpinned frame if the pool is over
// capacity.
func (p *pool) put(id PageID, buf []byte) *frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f, ok := p.frames[id]; ok {
		f.pin++
		p.lru.MoveToFront(f.elem)
		return f
	}
	f := &frame{id: id, buf: buf, pin: 1}
	f.elem = p.lru.PushFront(f)
	p.frames[id] = f
	p.evictLocked()
	return f
}

func (p *pool) pinAgain(f *frame) {
	p.mu.Lock()
	f.pin++
	p.lru.MoveToFront(f.elem)
	p.mu.Unlock()
}

func (p *pool) unpin(id PageID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.frames[id]
	if !ok || f.pin == 0 {
		return
	}
	f.pin--
	p.evictLocked()
}

// evictLocked drops least-recently-used unpinned frames until the pool is
// back within capacity. Caller must hold p.mu.
func (p *pool) evictLocked() {
	for len(p.frames) > p.capacity {
		var victim *list.Element
		for e := p.lru.Back(); e != nil; e = e.Prev() {
			if e.Value.(*frame).pin == 0 {
				victim = e
				break
			}
		}
		if victim == nil {
			return // every cached frame is pinned; over capacity is tolerated
		}
		f := victim.Value.(*frame)
		p.lru.Remove(victim)
		delete(p.frames, f.id)
	}
}

// Pager owns the page file: sequential append at build time, pooled
// pinned reads at scan time, and the metapage that anchors the tree.
// There is no write-ahead log, free-list, or dirty-page tracking — pages
// are immutable once written (see DESIGN.md for what was dropped from
// the mutable storage engine this package is adapted from).
type Pager struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	pageSize int
	nextID   PageID // next PageID to assign on AppendPage
	pool     *pool
	meta     Metapage
	hasMeta  bool
}

// Create makes a new, empty page file and reserves block 0 for the
// metapage (written later via CommitMetapage).
func Create(path string, pageSize int) (*Pager, error) {
	if pageSize < MinPageSize || pageSize > MaxPageSize {
		return nil, fmt.Errorf("pager: page size %d out of range [%d,%d]", pageSize, MinPageSize, MaxPageSize)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("pager: create %s: %w", path, err)
	}
	p := &Pager{
		file:     f,
		path:     path,
		pageSize: pageSize,
		nextID:   1, // block 0 reserved for metapage
		pool:     newPool(BufferPoolConfig{}),
	}
	// Reserve block 0 on disk now so file offsets line up; the real
	// metapage content is written by CommitMetapage at the end of build.
	placeholder := NewPage(pageSize, PageTypeMetapage, InvalidPageID, 0)
	if _, err := p.file.WriteAt(placeholder, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("pager: reserve metapage block: %w", err)
	}
	return p, nil
}

// Open opens an existing page file, validating magic/version and loading
// the metapage. A mismatch is a Format-violation (spec.md §7).
func Open(path string) (*Pager, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("pager: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pager: stat %s: %w", path, err)
	}
	// Read block 0 with a conservative default size first to learn the
	// file's real page size from the metapage payload.
	probe := make([]byte, DefaultPageSize)
	if _, err := f.ReadAt(probe, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("pager: read metapage: %w", err)
	}
	if err := VerifyPageCRC(probe); err != nil {
		f.Close()
		return nil, fmt.Errorf("pager: %w", err)
	}
	meta, err := UnmarshalMetapage(Payload(probe))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pager: %w", err)
	}
	pageSize := int(meta.PageSize)
	if pageSize < MinPageSize || pageSize > MaxPageSize {
		f.Close()
		return nil, fmt.Errorf("pager: metapage declares invalid page size %d", pageSize)
	}
	if info.Size()%int64(pageSize) != 0 {
		f.Close()
		return nil, fmt.Errorf("pager: file size %d not a multiple of page size %d", info.Size(), pageSize)
	}
	p := &Pager{
		file:     f,
		path:     path,
		pageSize: pageSize,
		nextID:   PageID(info.Size() / int64(pageSize)),
		pool:     newPool(BufferPoolConfig{}),
		meta:     meta,
		hasMeta:  true,
	}
	return p, nil
}

// PageSize returns the page size in effect for this file.
func (p *Pager) PageSize() int { return p.pageSize }

// Path returns the underlying file path.
func (p *Pager) Path() string { return p.path }

// Metapage returns the loaded metapage. Valid only after Open (or after
// CommitMetapage during a build in progress).
func (p *Pager) Metapage() (Metapage, bool) { return p.meta, p.hasMeta }

// PageCount returns the number of blocks in the file, including block 0
// (the metapage).
func (p *Pager) PageCount() PageID { return p.nextID }

// AppendPage extends the file by one block and assigns the next
// sequential PageID. Build-time only: the builder is single-pass and
// never revisits a page once appended, except through RewritePage to
// patch sibling links.
func (p *Pager) AppendPage(payload []byte) (PageID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(payload) != p.pageSize {
		return InvalidPageID, fmt.Errorf("pager: payload size %d != page size %d", len(payload), p.pageSize)
	}
	id := p.nextID
	off := int64(id) * int64(p.pageSize)
	if _, err := p.file.WriteAt(payload, off); err != nil {
		return InvalidPageID, fmt.Errorf("pager: append page %d: %w", id, err)
	}
	p.nextID++
	return id, nil
}

// RewritePage overwrites an already-appended page in place, and refreshes
// the pooled copy of the page if one is cached. Used to set a leaf's
// rightlink once its successor is known, and to patch the page IDs of
// leaves and internal pages; the metapage is written by CommitMetapage.
// Never used post-build.
func (p *Pager) RewritePage(id PageID, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(payload) != p.pageSize {
		return fmt.Errorf("pager: payload size %d != page size %d", len(payload), p.pageSize)
	}
	off := int64(id) * int64(p.pageSize)
	if _, err := p.file.WriteAt(payload, off); err != nil {
		return fmt.Errorf("pager: rewrite page %d: %w", id, err)
	}
	if f, ok := p.pool.get(id); ok {
		copy(f.buf, payload)
	}
	return nil
}

// ReadPage returns a pinned, pooled buffer for id. The caller must call
// UnpinPage exactly once when done. Pages are shared read-only across
// concurrent scans; no lock is taken beyond the pin count.
func (p *Pager) ReadPage(id PageID) ([]byte, error) {
	if f, ok := p.pool.get(id); ok {
		p.pool.pinAgain(f)
		return f.buf, nil
	}
	buf := make([]byte, p.pageSize)
	off := int64(id) * int64(p.pageSize)
	p.mu.Lock()
	_, err := p.file.ReadAt(buf, off)
	p.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("pager: read page %d: %w", id, err)
	}
	if err := VerifyPageCRC(buf); err != nil {
		return nil, fmt.Errorf("pager: %w", err)
	}
	f := p.pool.put(id, buf)
	return f.buf, nil
}

// UnpinPage releases one pin on id, previously acquired by ReadPage.
func (p *Pager) UnpinPage(id PageID) { p.pool.unpin(id) }

// CommitMetapage writes block 0 last, fsyncing before and after, matching
// spec.md Invariant 7 (root_blkno/height are the last fields written) and
// §5's memory-fence-before-commit guarantee.
func (p *Pager) CommitMetapage(meta Metapage) error {
	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("pager: pre-commit sync: %w", err)
	}
	meta.PageSize = uint32(p.pageSize)
	meta.Version = FormatVersion
	page := NewPage(p.pageSize, PageTypeMetapage, InvalidPageID, 0)
	if err := MarshalMetapage(&meta, Payload(page)); err != nil {
		return fmt.Errorf("pager: encode metapage: %w", err)
	}
	SetPageCRC(page)
	p.mu.Lock()
	_, err := p.file.WriteAt(page, 0)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("pager: write metapage: %w", err)
	}
	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("pager: post-commit sync: %w", err)
	}
	p.meta = meta
	p.hasMeta = true
	return nil
}

// Close closes the underlying file. Safe to call once.
func (p *Pager) Close() error {
	return p.file.Close()
}
