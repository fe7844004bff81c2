package pager

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"slices"

	"arbordb/internal/base"
	"arbordb/internal/cache"
)

var errNotWritable = errors.New("pager: page allocation outside a writable operation")

// Store is the page I/O backend used by the pager.
type Store interface {
	ReadPage(id base.PageID, buf []byte) error
	WritePage(id base.PageID, buf []byte) error
	ReadHeader(buf []byte) error
	Size() (int64, error)
	Sync() error
}

// Config holds pager settings that are not persisted in the file.
type Config struct {
	CacheSize int  // Pages kept in the LRU
	SyncOff   bool // Skip fsync on Flush
}

// Pager owns every page buffer of an open database. It hands out cached
// buffers, allocates and frees page numbers, and writes dirty pages back on
// eviction and flush. It is the only component that talks to the Store.
//
// Work is bracketed by Begin and Commit/Rollback. During a writable
// operation every page handed out is pinned and a before-image is kept, so
// the operation can be undone in place and no page it touched reaches the
// file until it commits.
type Pager struct {
	store    Store
	cache    *cache.Cache
	pageSize int
	syncOff  bool

	meta      base.Meta
	metaDirty bool
	numPages  base.PageID
	freelist  *Freelist

	dirty   map[base.PageID]struct{}
	spilled map[base.PageID]base.Page // Held outside the LRU: pinned pages it evicted, failed write-backs

	// Current operation
	writable       bool
	working        map[base.PageID]base.Page
	before         map[base.PageID]base.Page // nil image: allocated by this operation
	allocated      []base.PageID
	freed          []base.PageID
	savedMeta      base.Meta
	savedMetaDirty bool
	evictErr       error
}

func newPager(store Store, pageSize int, cfg Config) (*Pager, error) {
	p := &Pager{
		store:    store,
		pageSize: pageSize,
		syncOff:  cfg.SyncOff,
		freelist: NewFreelist(),
		dirty:    make(map[base.PageID]struct{}),
		spilled:  make(map[base.PageID]base.Page),
		working:  make(map[base.PageID]base.Page),
		before:   make(map[base.PageID]base.Page),
	}
	c, err := cache.New(cfg.CacheSize, p.evict)
	if err != nil {
		return nil, err
	}
	p.cache = c
	return p, nil
}

// Create initializes an empty database described by meta. Nothing is written
// until the first Flush.
func Create(store Store, meta base.Meta, cfg Config) (*Pager, error) {
	p, err := newPager(store, int(meta.PageSize), cfg)
	if err != nil {
		return nil, err
	}
	p.meta = meta
	p.metaDirty = true
	p.numPages = 1 // header page
	return p, nil
}

// Open loads and validates the header of an existing database and its
// freelist chain.
func Open(store Store, cfg Config) (*Pager, error) {
	buf := make([]byte, base.MetaSize)
	if err := store.ReadHeader(buf); err != nil {
		return nil, err
	}
	meta := base.DecodeMeta(buf)
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	size, err := store.Size()
	if err != nil {
		return nil, err
	}
	pageSize := int64(meta.PageSize)
	if size%pageSize != 0 {
		return nil, fmt.Errorf("%w: file length %d is not a multiple of page size %d",
			base.ErrCorruption, size, pageSize)
	}
	if size/pageSize > math.MaxUint32 {
		return nil, fmt.Errorf("%w: file too large", base.ErrCorruption)
	}

	p, err := newPager(store, int(pageSize), cfg)
	if err != nil {
		return nil, err
	}
	p.meta = meta
	p.numPages = base.PageID(size / pageSize)
	if meta.Root == 0 || meta.Root >= p.numPages {
		return nil, fmt.Errorf("%w: root page %d outside file of %d pages",
			base.ErrCorruption, meta.Root, p.numPages)
	}
	if err := p.loadFreelist(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pager) loadFreelist() error {
	buf := make(base.Page, p.pageSize)
	id := p.meta.FreeHead
	for i := uint32(0); i < p.meta.FreeCount; i++ {
		if id == 0 || id >= p.numPages || p.freelist.Has(id) {
			return fmt.Errorf("%w: bad freelist entry %d", base.ErrCorruption, id)
		}
		if err := p.store.ReadPage(id, buf); err != nil {
			return err
		}
		if buf.Type() != base.NodeFree {
			return fmt.Errorf("%w: freelist page %d is a %s node", base.ErrCorruption, id, buf.Type())
		}
		p.freelist.Free(id)
		id = buf.NextFree()
	}
	if id != 0 {
		return fmt.Errorf("%w: freelist longer than %d pages", base.ErrCorruption, p.meta.FreeCount)
	}
	p.freelist.markClean()
	return nil
}

// evict is the LRU callback. Pinned pages stay in memory; dirty pages are
// written back.
func (p *Pager) evict(id base.PageID, page base.Page) {
	if _, pinned := p.working[id]; pinned {
		p.spilled[id] = page
		return
	}
	if _, dirty := p.dirty[id]; !dirty {
		return
	}
	if err := p.store.WritePage(id, page); err != nil {
		p.spilled[id] = page
		p.evictErr = errors.Join(p.evictErr, err)
		return
	}
	delete(p.dirty, id)
}

// Begin starts an operation. Only writable operations may allocate, free,
// or change the root.
func (p *Pager) Begin(writable bool) {
	p.writable = writable
	p.evictErr = nil
	if writable {
		p.savedMeta = p.meta
		p.savedMetaDirty = p.metaDirty
	}
}

// Get returns the cached buffer of page id, reading it from the file on
// first access. Page 0, pages past the end and free pages are faults.
func (p *Pager) Get(id base.PageID) (base.Page, error) {
	if id == 0 || id >= p.numPages || p.freelist.Has(id) {
		return nil, fmt.Errorf("%w: page %d of %d", base.ErrPageFault, id, p.numPages)
	}
	if page, ok := p.working[id]; ok {
		return page, nil
	}

	page, ok := p.spilled[id]
	if !ok {
		page, ok = p.cache.Get(id)
	}
	if !ok {
		page = make(base.Page, p.pageSize)
		if err := p.store.ReadPage(id, page); err != nil {
			return nil, err
		}
		p.cache.Put(id, page)
	}

	if p.writable {
		p.working[id] = page
		if _, seen := p.before[id]; !seen {
			p.before[id] = bytes.Clone(page)
		}
	}
	return page, nil
}

// Allocate returns a zeroed page, reusing the lowest free page number when
// one exists and growing the file otherwise.
func (p *Pager) Allocate() (base.PageID, base.Page, error) {
	if !p.writable {
		return 0, nil, errNotWritable
	}
	id, ok := p.freelist.Allocate()
	if !ok {
		if p.numPages == math.MaxUint32 {
			return 0, nil, fmt.Errorf("%w: page numbers exhausted", base.ErrIO)
		}
		id = p.numPages
		p.numPages++
	}

	page := make(base.Page, p.pageSize)
	p.working[id] = page
	p.before[id] = nil
	p.allocated = append(p.allocated, id)
	p.cache.Put(id, page)
	return id, page, nil
}

// Free returns page id to the freelist when the operation commits.
func (p *Pager) Free(id base.PageID) error {
	if !p.writable {
		return errNotWritable
	}
	if id == 0 || id >= p.numPages {
		return fmt.Errorf("%w: free page %d of %d", base.ErrPageFault, id, p.numPages)
	}
	p.freed = append(p.freed, id)
	return nil
}

// Root returns the root page number recorded in the header.
func (p *Pager) Root() base.PageID {
	return p.meta.Root
}

// SetRoot records a new root page number.
func (p *Pager) SetRoot(id base.PageID) {
	p.meta.Root = id
	p.metaDirty = true
}

// Meta returns a copy of the file header.
func (p *Pager) Meta() base.Meta {
	return p.meta
}

// Commit ends the current operation. Changed pages become dirty and are
// unpinned. If writing back an evicted page failed at any point during the
// operation, the operation is undone and the write error is returned.
func (p *Pager) Commit() error {
	if !p.writable {
		p.end()
		return nil
	}

	for id, image := range p.before {
		if image == nil || !bytes.Equal(image, p.working[id]) {
			p.dirty[id] = struct{}{}
		}
	}
	p.unpin()

	if p.evictErr != nil {
		err := p.evictErr
		p.restore()
		p.end()
		return err
	}

	for _, id := range p.freed {
		delete(p.dirty, id)
		delete(p.spilled, id)
		p.cache.Remove(id)
		p.freelist.Free(id)
	}
	p.end()
	return nil
}

// Rollback undoes every change of the current operation.
func (p *Pager) Rollback() {
	if p.writable {
		p.unpin()
		p.restore()
	}
	p.end()
}

// unpin hands pinned and spilled pages back to the LRU. Evictions triggered
// here may write back older pages; op pages stay pinned until end.
func (p *Pager) unpin() {
	pending := make(map[base.PageID]base.Page, len(p.working)+len(p.spilled))
	for id, page := range p.spilled {
		pending[id] = page
	}
	for id, page := range p.working {
		pending[id] = page
	}
	clear(p.spilled)
	for id, page := range pending {
		p.cache.Put(id, page)
	}
}

func (p *Pager) restore() {
	for id, image := range p.before {
		if image != nil {
			copy(p.working[id], image)
		}
	}
	for _, id := range p.allocated {
		delete(p.dirty, id)
		delete(p.spilled, id)
		p.cache.Remove(id)
		p.freelist.Free(id)
	}
	p.meta = p.savedMeta
	p.metaDirty = p.savedMetaDirty
}

func (p *Pager) end() {
	p.writable = false
	clear(p.working)
	clear(p.before)
	p.allocated = p.allocated[:0]
	p.freed = p.freed[:0]
}

func (p *Pager) lookup(id base.PageID) (base.Page, bool) {
	if page, ok := p.working[id]; ok {
		return page, true
	}
	if page, ok := p.spilled[id]; ok {
		return page, true
	}
	return p.cache.Peek(id)
}

// FlushPage writes page id back if it is dirty.
func (p *Pager) FlushPage(id base.PageID) error {
	if _, dirty := p.dirty[id]; !dirty {
		return nil
	}
	page, ok := p.lookup(id)
	if !ok {
		return fmt.Errorf("%w: dirty page %d is not resident", base.ErrCorruption, id)
	}
	if err := p.store.WritePage(id, page); err != nil {
		return err
	}
	delete(p.dirty, id)
	return nil
}

// Flush writes every dirty page, the freelist chain and the header, then
// syncs the file unless sync is off.
func (p *Pager) Flush() error {
	ids := make([]base.PageID, 0, len(p.dirty))
	for id := range p.dirty {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if err := p.FlushPage(id); err != nil {
			return err
		}
	}

	if p.freelist.Dirty() {
		if err := p.writeFreelist(); err != nil {
			return err
		}
	}

	if p.metaDirty {
		buf := make([]byte, p.pageSize)
		p.meta.Encode(buf)
		if err := p.store.WritePage(0, buf); err != nil {
			return err
		}
		p.metaDirty = false
	}

	if p.syncOff {
		return nil
	}
	return p.store.Sync()
}

// Close flushes everything and drops the cache. The pager must not be used
// afterwards.
func (p *Pager) Close() error {
	if err := p.Flush(); err != nil {
		return err
	}
	p.cache.Purge()
	clear(p.spilled)
	return nil
}

func (p *Pager) writeFreelist() error {
	ids := p.freelist.IDs()
	buf := make(base.Page, p.pageSize)
	for i, id := range ids {
		var next base.PageID
		if i+1 < len(ids) {
			next = ids[i+1]
		}
		buf.InitFree(next)
		if err := p.store.WritePage(id, buf); err != nil {
			return err
		}
	}

	p.meta.FreeHead = 0
	if len(ids) > 0 {
		p.meta.FreeHead = ids[0]
	}
	p.meta.FreeCount = uint32(len(ids))
	p.metaDirty = true
	p.freelist.markClean()
	return nil
}

// Stats holds pager statistics
type Stats struct {
	Pages      int
	FreePages  int
	DirtyPages int
	Cached     int
	Cache      cache.Stats
}

func (p *Pager) Stats() Stats {
	return Stats{
		Pages:      int(p.numPages),
		FreePages:  p.freelist.Len(),
		DirtyPages: len(p.dirty),
		Cached:     p.cache.Size(),
		Cache:      p.cache.Stats(),
	}
}

// NumPages returns the number of pages in the file, header included.
func (p *Pager) NumPages() int {
	return int(p.numPages)
}

// PageSize returns the size of every page in bytes.
func (p *Pager) PageSize() int {
	return p.pageSize
}
