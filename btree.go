package arbordb

import (
	"fmt"

	"arbordb/internal/algo"
	"arbordb/internal/base"
	"arbordb/internal/pager"
)

// maxDepth bounds descents so a corrupted file with a child cycle fails
// instead of looping.
const maxDepth = 64

// btree implements the B+ tree over pager pages. Every method runs inside a
// pager operation opened by the DB.
type btree struct {
	pager  *pager.Pager
	layout base.Layout
	logger Logger
}

// position addresses one cell of a leaf. endOfTable is set once the position
// moved past the last cell of the last leaf.
type position struct {
	page       base.PageID
	cell       int
	endOfTable bool
}

func (t *btree) root() base.PageID {
	return t.pager.Root()
}

func (t *btree) setRoot(id base.PageID) {
	t.pager.SetRoot(id)
}

// node loads a page and checks that it holds a node within capacity.
func (t *btree) node(id base.PageID) (base.Page, error) {
	p, err := t.pager.Get(id)
	if err != nil {
		return nil, err
	}
	switch p.Type() {
	case base.NodeLeaf, base.NodeInternal:
	default:
		return nil, fmt.Errorf("%w: page %d is a %s page", ErrCorruption, id, p.Type())
	}
	if n, c := p.Count(), t.layout.MaxCount(p); n > c {
		return nil, fmt.Errorf("%w: %s page %d holds %d entries, capacity %d",
			ErrCapacityInvariant, p.Type(), id, n, c)
	}
	return p, nil
}

// find descends from the root to the leaf that holds key or would hold it.
// The returned position is the cell of key, or its insertion slot.
func (t *btree) find(key uint32) (position, bool, error) {
	id := t.root()
	for depth := 0; depth < maxDepth; depth++ {
		n, err := t.node(id)
		if err != nil {
			return position{}, false, err
		}
		if !n.IsLeaf() {
			id = n.InternalChild(algo.SearchInternal(n, key))
			continue
		}

		i := algo.SearchLeaf(t.layout, n, key)
		found := i < n.NumCells() && t.layout.LeafKey(n, i) == key
		pos := position{
			page:       id,
			cell:       i,
			endOfTable: i >= n.NumCells() && n.NextLeaf() == 0,
		}
		return pos, found, nil
	}
	return position{}, false, fmt.Errorf("%w: tree deeper than %d levels", ErrCorruption, maxDepth)
}

// leftmostLeaf follows child 0 from the root down to a leaf.
func (t *btree) leftmostLeaf() (base.PageID, error) {
	id := t.root()
	for depth := 0; depth < maxDepth; depth++ {
		n, err := t.node(id)
		if err != nil {
			return 0, err
		}
		if n.IsLeaf() {
			return id, nil
		}
		id = n.InternalChild(0)
	}
	return 0, fmt.Errorf("%w: tree deeper than %d levels", ErrCorruption, maxDepth)
}

// first returns the position of the smallest key.
func (t *btree) first() (position, error) {
	id, err := t.leftmostLeaf()
	if err != nil {
		return position{}, err
	}
	pos := position{page: id}
	return pos, t.settle(&pos)
}

// advance moves pos to the next cell in key order.
func (t *btree) advance(pos *position) error {
	if pos.endOfTable {
		return nil
	}
	pos.cell++
	return t.settle(pos)
}

// settle moves a position that points past the end of its leaf to the
// first cell of the next non-empty leaf, or marks the end of the table.
func (t *btree) settle(pos *position) error {
	n, err := t.node(pos.page)
	if err != nil {
		return err
	}
	for pos.cell >= n.NumCells() {
		next := n.NextLeaf()
		if next == 0 {
			pos.endOfTable = true
			return nil
		}
		if n, err = t.node(next); err != nil {
			return err
		}
		pos.page, pos.cell = next, 0
	}
	return nil
}

// cell returns the key and record at pos. The record aliases the page.
func (t *btree) cell(pos position) (uint32, []byte, error) {
	n, err := t.node(pos.page)
	if err != nil {
		return 0, nil, err
	}
	if !n.IsLeaf() || pos.cell >= n.NumCells() {
		return 0, nil, fmt.Errorf("%w: no cell %d on page %d", ErrCorruption, pos.cell, pos.page)
	}
	return t.layout.LeafKey(n, pos.cell), t.layout.LeafValue(n, pos.cell), nil
}

// maxKey returns the largest key in the subtree rooted at id. ok is false
// only for an empty root leaf.
func (t *btree) maxKey(id base.PageID) (uint32, bool, error) {
	for depth := 0; depth < maxDepth; depth++ {
		n, err := t.node(id)
		if err != nil {
			return 0, false, err
		}
		if n.IsLeaf() {
			if n.NumCells() == 0 {
				return 0, false, nil
			}
			return t.layout.LeafKey(n, n.NumCells()-1), true, nil
		}
		id = n.RightChild()
	}
	return 0, false, fmt.Errorf("%w: tree deeper than %d levels", ErrCorruption, maxDepth)
}

func (t *btree) get(key uint32) ([]byte, error) {
	pos, found, err := t.find(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrKeyNotFound
	}
	_, rec, err := t.cell(pos)
	return rec, err
}

func (t *btree) insert(key uint32, record []byte) error {
	pos, found, err := t.find(key)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: %d", ErrDuplicateKey, key)
	}

	leaf, err := t.node(pos.page)
	if err != nil {
		return err
	}
	if leaf.NumCells() < t.layout.LeafMaxCells {
		algo.InsertLeafCell(t.layout, leaf, pos.cell, key, record)
		return nil
	}
	return t.splitLeafAndInsert(pos, leaf, key, record)
}

// update overwrites the record of an existing key in place.
func (t *btree) update(key uint32, record []byte) error {
	pos, found, err := t.find(key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %d", ErrKeyNotFound, key)
	}
	_, rec, err := t.cell(pos)
	if err != nil {
		return err
	}
	copy(rec, record)
	return nil
}

// splitLeafAndInsert distributes the cells of a full leaf plus the new cell
// over the old page and a new right sibling, then links the sibling into
// the parent.
func (t *btree) splitLeafAndInsert(pos position, old base.Page, key uint32, record []byte) error {
	l := t.layout
	capacity := l.LeafMaxCells

	// Scratch leaf with room for one extra cell.
	scratch := make(base.Page, base.LeafHeaderSize+(capacity+1)*l.LeafCellSize)
	copy(scratch, old[:base.LeafHeaderSize+capacity*l.LeafCellSize])
	algo.InsertLeafCell(l, scratch, pos.cell, key, record)

	newID, sibling, err := t.pager.Allocate()
	if err != nil {
		return err
	}
	sibling.InitLeaf()
	sibling.SetParent(old.Parent())

	lower := algo.LeafSplitPoint(capacity)
	upper := capacity + 1 - lower

	clear(l.LeafCells(old, 0, capacity))
	copy(l.LeafCells(old, 0, lower), l.LeafCells(scratch, 0, lower))
	old.SetNumCells(lower)
	copy(l.LeafCells(sibling, 0, upper), l.LeafCells(scratch, lower, capacity+1))
	sibling.SetNumCells(upper)

	sibling.SetNextLeaf(old.NextLeaf())
	old.SetNextLeaf(newID)

	return t.insertIntoParent(pos.page, l.LeafKey(old, lower-1), newID)
}

// insertIntoParent links right, the new upper sibling of left, into left's
// parent under the separator leftMax. A full parent splits in turn, so the
// loop climbs until a parent has room or the root itself splits.
func (t *btree) insertIntoParent(leftID base.PageID, leftMax uint32, rightID base.PageID) error {
	for {
		left, err := t.node(leftID)
		if err != nil {
			return err
		}
		right, err := t.node(rightID)
		if err != nil {
			return err
		}
		if left.IsRoot() {
			return t.growRoot(leftID, left, leftMax, rightID, right)
		}

		parentID := left.Parent()
		parent, err := t.node(parentID)
		if err != nil {
			return err
		}
		ci := algo.ChildIndex(parent, leftID)
		if ci < 0 {
			return fmt.Errorf("%w: page %d is not a child of its parent %d", ErrCorruption, leftID, parentID)
		}
		right.SetParent(parentID)

		if parent.NumKeys() < t.layout.InternalMaxKeys {
			linkChild(parent, ci, leftID, leftMax, rightID)
			return nil
		}

		promoted, newID, err := t.splitInternal(parent, ci, leftID, leftMax, rightID)
		if err != nil {
			return err
		}
		leftID, leftMax, rightID = parentID, promoted, newID
	}
}

// linkChild records that the child at index ci now holds keys up to leftMax
// and that right follows it.
func linkChild(p base.Page, ci int, leftID base.PageID, leftMax uint32, rightID base.PageID) {
	algo.InsertInternalEntry(p, ci, leftID, leftMax)
	p.SetInternalChild(ci+1, rightID)
}

// splitInternal links the new child into a full internal node and splits the
// result. The old page keeps the lower keys, the key at the split point is
// promoted and returned, and a new page receives the upper keys.
func (t *btree) splitInternal(p base.Page, ci int, leftID base.PageID, leftMax uint32, rightID base.PageID) (uint32, base.PageID, error) {
	capacity := t.layout.InternalMaxKeys

	scratch := make(base.Page, base.InternalHeaderSize+(capacity+1)*base.InternalCellSize)
	copy(scratch, p[:base.InternalHeaderSize+capacity*base.InternalCellSize])
	linkChild(scratch, ci, leftID, leftMax, rightID)

	newID, sibling, err := t.pager.Allocate()
	if err != nil {
		return 0, 0, err
	}
	sibling.InitInternal()
	sibling.SetParent(p.Parent())

	total := capacity + 1
	m := algo.InternalSplitPoint(capacity)
	promoted := scratch.InternalKey(m)

	n := total - m - 1
	copy(sibling.InternalEntries(0, n), scratch.InternalEntries(m+1, total))
	sibling.SetNumKeys(n)
	sibling.SetRightChild(scratch.RightChild())

	clear(p.InternalEntries(0, capacity))
	copy(p.InternalEntries(0, m), scratch.InternalEntries(0, m))
	p.SetNumKeys(m)
	p.SetRightChild(scratch.InternalChild(m))

	for i := 0; i <= n; i++ {
		if err := t.reparent(sibling.InternalChild(i), newID); err != nil {
			return 0, 0, err
		}
	}
	return promoted, newID, nil
}

// growRoot puts a new internal root above the old root and its new sibling.
func (t *btree) growRoot(leftID base.PageID, left base.Page, leftMax uint32, rightID base.PageID, right base.Page) error {
	rootID, root, err := t.pager.Allocate()
	if err != nil {
		return err
	}
	root.InitInternal()
	root.SetRoot(true)
	root.SetNumKeys(1)
	root.SetInternalChild(0, leftID)
	root.SetInternalKey(0, leftMax)
	root.SetRightChild(rightID)

	left.SetRoot(false)
	left.SetParent(rootID)
	right.SetRoot(false)
	right.SetParent(rootID)
	t.setRoot(rootID)

	t.logger.Info("root split", "old_root", leftID, "new_root", rootID, "separator", leftMax)
	return nil
}

func (t *btree) reparent(child, parent base.PageID) error {
	n, err := t.node(child)
	if err != nil {
		return err
	}
	n.SetParent(parent)
	return nil
}
