package pager

import (
	"github.com/google/btree"

	"arbordb/internal/base"
)

// Freelist tracks page numbers vacated by merges and root collapses so they
// can be handed out again before the file grows. Pages are reused lowest
// first. On disk the list is a chain threaded through the free pages
// themselves, headed by the file header.
type Freelist struct {
	ids   *btree.BTreeG[base.PageID]
	dirty bool
}

func NewFreelist() *Freelist {
	return &Freelist{ids: btree.NewOrderedG[base.PageID](32)}
}

// Allocate returns the lowest free page ID, or false if none available.
func (f *Freelist) Allocate() (base.PageID, bool) {
	id, ok := f.ids.DeleteMin()
	if ok {
		f.dirty = true
	}
	return id, ok
}

// Free adds a page ID to the free list
func (f *Freelist) Free(id base.PageID) {
	f.ids.ReplaceOrInsert(id)
	f.dirty = true
}

func (f *Freelist) Has(id base.PageID) bool {
	return f.ids.Has(id)
}

func (f *Freelist) Len() int {
	return f.ids.Len()
}

// IDs returns the free page IDs in ascending order.
func (f *Freelist) IDs() []base.PageID {
	ids := make([]base.PageID, 0, f.ids.Len())
	f.ids.Ascend(func(id base.PageID) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// Dirty reports whether the list changed since it was last persisted.
func (f *Freelist) Dirty() bool {
	return f.dirty
}

func (f *Freelist) markClean() {
	f.dirty = false
}
