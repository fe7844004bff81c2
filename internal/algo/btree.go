// Package algo contains algorithms used for traversing and editing b+ tree
// nodes in place.
package algo

import (
	"sort"

	"arbordb/internal/base"
)

const searchThreshold = 32

// SearchInternal returns the index of the child to follow for key: the first
// separator >= key, or NumKeys for the right child. Equal keys route left
// because a separator is the largest key of its left subtree.
func SearchInternal(p base.Page, key uint32) int {
	n := p.NumKeys()
	if n < searchThreshold {
		i := 0
		for i < n && p.InternalKey(i) < key {
			i++
		}
		return i
	}
	return sort.Search(n, func(i int) bool {
		return p.InternalKey(i) >= key
	})
}

// SearchLeaf returns the index of the first cell whose key is >= key. That
// is the slot of key if present, otherwise its insertion position.
func SearchLeaf(l base.Layout, p base.Page, key uint32) int {
	n := p.NumCells()
	if n < searchThreshold {
		i := 0
		for i < n && l.LeafKey(p, i) < key {
			i++
		}
		return i
	}
	return sort.Search(n, func(i int) bool {
		return l.LeafKey(p, i) >= key
	})
}

// ChildIndex returns the position of child in internal node p, or -1.
func ChildIndex(p base.Page, child base.PageID) int {
	n := p.NumKeys()
	for i := 0; i <= n; i++ {
		if p.InternalChild(i) == child {
			return i
		}
	}
	return -1
}

// LeafSplitPoint returns how many of the capacity+1 cells stay in the lower
// leaf when a full leaf splits.
func LeafSplitPoint(capacity int) int {
	return (capacity + 2) / 2
}

// InternalSplitPoint returns how many of the capacity+1 keys stay in the
// lower node when a full internal node splits. The key at this index is
// promoted to the parent.
func InternalSplitPoint(capacity int) int {
	return capacity / 2
}

// InsertLeafCell shifts cells [i, n) right by one and writes key and record
// at i. The caller guarantees spare capacity.
func InsertLeafCell(l base.Layout, p base.Page, i int, key uint32, record []byte) {
	n := p.NumCells()
	if i < n {
		copy(l.LeafCells(p, i+1, n+1), l.LeafCells(p, i, n))
	}
	l.SetLeafKey(p, i, key)
	copy(l.LeafValue(p, i), record)
	p.SetNumCells(n + 1)
}

// RemoveLeafCell removes cell i and shifts the remaining cells left.
func RemoveLeafCell(l base.Layout, p base.Page, i int) {
	n := p.NumCells()
	if i < n-1 {
		copy(l.LeafCells(p, i, n-1), l.LeafCells(p, i+1, n))
	}
	clear(l.LeafCell(p, n-1))
	p.SetNumCells(n - 1)
}

// InsertInternalEntry shifts entries [i, n) right by one and writes the
// (child, key) pair at i. The right child is untouched.
func InsertInternalEntry(p base.Page, i int, child base.PageID, key uint32) {
	n := p.NumKeys()
	if i < n {
		copy(p.InternalEntries(i+1, n+1), p.InternalEntries(i, n))
	}
	p.SetNumKeys(n + 1)
	p.SetInternalChild(i, child)
	p.SetInternalKey(i, key)
}

// RemoveInternalEntry removes entry i (child i and key i) and shifts the
// remaining entries left. i must be below NumKeys.
func RemoveInternalEntry(p base.Page, i int) {
	n := p.NumKeys()
	if i < n-1 {
		copy(p.InternalEntries(i, n-1), p.InternalEntries(i+1, n))
	}
	clear(p.InternalEntries(n-1, n))
	p.SetNumKeys(n - 1)
}

// RemoveSeparator removes key k together with the child to its right,
// keeping child k in place. This is the parent edit after two siblings at
// positions k and k+1 merge into the page at k.
func RemoveSeparator(p base.Page, k int) {
	n := p.NumKeys()
	if k == n-1 {
		p.SetRightChild(p.InternalChild(k))
		RemoveInternalEntry(p, k)
		return
	}
	p.SetInternalKey(k, p.InternalKey(k+1))
	RemoveInternalEntry(p, k+1)
}
