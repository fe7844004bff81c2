package arbordb

import (
	"fmt"

	"arbordb/internal/algo"
	"arbordb/internal/base"
)

func (t *btree) delete(key uint32) error {
	pos, found, err := t.find(key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %d", ErrKeyNotFound, key)
	}

	leaf, err := t.node(pos.page)
	if err != nil {
		return err
	}
	algo.RemoveLeafCell(t.layout, leaf, pos.cell)

	// Removing the largest key changes the separator that bounds this leaf.
	if n := leaf.NumCells(); pos.cell == n && n > 0 {
		if err := t.updateSeparator(pos.page, t.layout.LeafKey(leaf, n-1)); err != nil {
			return err
		}
	}
	return t.rebalance(pos.page)
}

// updateSeparator rewrites the ancestor key that names the maximum of the
// subtree at id. Rightmost children have no key of their own, so the walk
// climbs until it finds a parent where the subtree hangs off a keyed entry.
func (t *btree) updateSeparator(id base.PageID, newMax uint32) error {
	for depth := 0; depth < maxDepth; depth++ {
		n, err := t.node(id)
		if err != nil {
			return err
		}
		if n.IsRoot() {
			return nil
		}
		parentID := n.Parent()
		parent, err := t.node(parentID)
		if err != nil {
			return err
		}
		i, err := t.childIndex(parent, parentID, id)
		if err != nil {
			return err
		}
		if i < parent.NumKeys() {
			parent.SetInternalKey(i, newMax)
			return nil
		}
		id = parentID
	}
	return fmt.Errorf("%w: tree deeper than %d levels", ErrCorruption, maxDepth)
}

func (t *btree) childIndex(parent base.Page, parentID, child base.PageID) (int, error) {
	i := algo.ChildIndex(parent, child)
	if i < 0 {
		return 0, fmt.Errorf("%w: page %d is not a child of its parent %d", ErrCorruption, child, parentID)
	}
	return i, nil
}

// rebalance restores the minimum fill of the node at id after a removal.
// An underfull node borrows from a sibling that can spare an entry and
// merges with it otherwise, which removes a key from the parent and may
// leave the parent underfull in turn.
func (t *btree) rebalance(id base.PageID) error {
	for depth := 0; depth < maxDepth; depth++ {
		n, err := t.node(id)
		if err != nil {
			return err
		}
		if n.IsRoot() {
			if !n.IsLeaf() && n.NumKeys() == 0 {
				return t.collapseRoot(id, n)
			}
			return nil
		}
		minimum := t.layout.MinCount(n)
		if n.Count() >= minimum {
			return nil
		}

		parentID := n.Parent()
		parent, err := t.node(parentID)
		if err != nil {
			return err
		}
		i, err := t.childIndex(parent, parentID, id)
		if err != nil {
			return err
		}

		switch {
		case i > 0:
			leftID := parent.InternalChild(i - 1)
			left, err := t.node(leftID)
			if err != nil {
				return err
			}
			if left.Count() > minimum {
				return t.borrowFromLeft(parent, i, left, n, id)
			}
			if err := t.merge(parent, i-1, leftID, left, id, n); err != nil {
				return err
			}
		case parent.NumKeys() > 0:
			rightID := parent.InternalChild(1)
			right, err := t.node(rightID)
			if err != nil {
				return err
			}
			if right.Count() > minimum {
				return t.borrowFromRight(parent, i, n, id, right)
			}
			if err := t.merge(parent, i, id, n, rightID, right); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: internal page %d has no keys", ErrCorruption, parentID)
		}
		id = parentID
	}
	return fmt.Errorf("%w: tree deeper than %d levels", ErrCorruption, maxDepth)
}

// borrowFromLeft moves the last entry of left to the front of n, the child
// at index i, and lowers the separator between them.
func (t *btree) borrowFromLeft(parent base.Page, i int, left, n base.Page, id base.PageID) error {
	l := t.layout
	if n.IsLeaf() {
		last := left.NumCells() - 1
		algo.InsertLeafCell(l, n, 0, l.LeafKey(left, last), l.LeafValue(left, last))
		algo.RemoveLeafCell(l, left, last)
		parent.SetInternalKey(i-1, l.LeafKey(left, last-1))
		return nil
	}

	// The left node's right child moves over under the old separator, and
	// the left node's last key becomes the new separator.
	last := left.NumKeys() - 1
	moved := left.RightChild()
	algo.InsertInternalEntry(n, 0, moved, parent.InternalKey(i-1))
	parent.SetInternalKey(i-1, left.InternalKey(last))
	left.SetRightChild(left.InternalChild(last))
	algo.RemoveInternalEntry(left, last)
	return t.reparent(moved, id)
}

// borrowFromRight moves the first entry of right to the end of n, the child
// at index i, and raises the separator between them.
func (t *btree) borrowFromRight(parent base.Page, i int, n base.Page, id base.PageID, right base.Page) error {
	l := t.layout
	if n.IsLeaf() {
		algo.InsertLeafCell(l, n, n.NumCells(), l.LeafKey(right, 0), l.LeafValue(right, 0))
		algo.RemoveLeafCell(l, right, 0)
		parent.SetInternalKey(i, l.LeafKey(n, n.NumCells()-1))
		return nil
	}

	// n's right child gets the old separator as its key, the right node's
	// first child becomes n's right child and its first key moves up.
	moved := right.InternalChild(0)
	algo.InsertInternalEntry(n, n.NumKeys(), n.RightChild(), parent.InternalKey(i))
	n.SetRightChild(moved)
	parent.SetInternalKey(i, right.InternalKey(0))
	algo.RemoveInternalEntry(right, 0)
	return t.reparent(moved, id)
}

// merge appends the node at k+1 to the node at k, frees the right page and
// drops the separator at k from the parent.
func (t *btree) merge(parent base.Page, k int, leftID base.PageID, left base.Page, rightID base.PageID, right base.Page) error {
	l := t.layout
	if left.IsLeaf() {
		ln, rn := left.NumCells(), right.NumCells()
		copy(l.LeafCells(left, ln, ln+rn), l.LeafCells(right, 0, rn))
		left.SetNumCells(ln + rn)
		left.SetNextLeaf(right.NextLeaf())
	} else {
		ln, rn := left.NumKeys(), right.NumKeys()
		algo.InsertInternalEntry(left, ln, left.RightChild(), parent.InternalKey(k))
		copy(left.InternalEntries(ln+1, ln+1+rn), right.InternalEntries(0, rn))
		left.SetNumKeys(ln + 1 + rn)
		left.SetRightChild(right.RightChild())
		for i := ln + 1; i <= ln+1+rn; i++ {
			if err := t.reparent(left.InternalChild(i), leftID); err != nil {
				return err
			}
		}
	}

	algo.RemoveSeparator(parent, k)
	return t.pager.Free(rightID)
}

// collapseRoot replaces an internal root that lost its last key with its
// only child.
func (t *btree) collapseRoot(id base.PageID, root base.Page) error {
	childID := root.RightChild()
	child, err := t.node(childID)
	if err != nil {
		return err
	}
	child.SetRoot(true)
	child.SetParent(0)
	t.setRoot(childID)
	if err := t.pager.Free(id); err != nil {
		return err
	}
	t.logger.Info("root collapse", "old_root", id, "new_root", childID)
	return nil
}
