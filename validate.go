package arbordb

import (
	"fmt"

	"arbordb/internal/base"
)

// Validate walks the whole tree and checks its structure: key order and
// bounds, separators equal to the maximum of their subtree, equal leaf
// depth, root and parent references, fill bounds and the leaf chain.
func (d *DB) Validate() error {
	return d.view(func(t *btree) error {
		return t.validate()
	})
}

type checker struct {
	t         *btree
	leafDepth int
	leaves    []base.PageID
}

// bounds restricts the keys of a subtree to (lo, hi]. A nil bound is open.
type bounds struct {
	lo, hi *uint32
}

func (b bounds) contains(key uint32) bool {
	return (b.lo == nil || key > *b.lo) && (b.hi == nil || key <= *b.hi)
}

func (t *btree) validate() error {
	rootID := t.root()
	root, err := t.node(rootID)
	if err != nil {
		return err
	}
	if !root.IsRoot() || root.Parent() != 0 {
		return fmt.Errorf("%w: root page %d is not marked as root", ErrCorruption, rootID)
	}
	if !root.IsLeaf() && root.NumKeys() == 0 {
		return fmt.Errorf("%w: internal root %d has no keys", ErrCapacityInvariant, rootID)
	}

	c := &checker{t: t, leafDepth: -1}
	if _, _, err := c.check(rootID, 0, bounds{}); err != nil {
		return err
	}
	return c.checkChain()
}

// check validates the subtree at id and returns its largest key.
func (c *checker) check(id base.PageID, depth int, b bounds) (uint32, bool, error) {
	if depth >= maxDepth {
		return 0, false, fmt.Errorf("%w: tree deeper than %d levels", ErrCorruption, maxDepth)
	}
	l := c.t.layout
	n, err := c.t.node(id)
	if err != nil {
		return 0, false, err
	}
	if depth > 0 {
		if n.IsRoot() {
			return 0, false, fmt.Errorf("%w: non-root page %d is marked as root", ErrCorruption, id)
		}
		if minimum := l.MinCount(n); n.Count() < minimum {
			return 0, false, fmt.Errorf("%w: %s page %d holds %d entries, minimum %d",
				ErrCapacityInvariant, n.Type(), id, n.Count(), minimum)
		}
	}

	if n.IsLeaf() {
		if c.leafDepth < 0 {
			c.leafDepth = depth
		} else if depth != c.leafDepth {
			return 0, false, fmt.Errorf("%w: leaf %d at depth %d, want %d", ErrCorruption, id, depth, c.leafDepth)
		}
		c.leaves = append(c.leaves, id)

		count := n.NumCells()
		for i := 0; i < count; i++ {
			key := l.LeafKey(n, i)
			if i > 0 && key <= l.LeafKey(n, i-1) {
				return 0, false, fmt.Errorf("%w: leaf %d keys out of order at cell %d", ErrCorruption, id, i)
			}
			if !b.contains(key) {
				return 0, false, fmt.Errorf("%w: leaf %d key %d outside its parent range", ErrCorruption, id, key)
			}
		}
		if count == 0 {
			return 0, false, nil
		}
		return l.LeafKey(n, count-1), true, nil
	}

	keys := n.NumKeys()
	for i := 0; i <= keys; i++ {
		child := n.InternalChild(i)
		cn, err := c.t.node(child)
		if err != nil {
			return 0, false, err
		}
		if cn.Parent() != id {
			return 0, false, fmt.Errorf("%w: page %d has parent %d, want %d", ErrCorruption, child, cn.Parent(), id)
		}

		cb := b
		if i > 0 {
			lo := n.InternalKey(i - 1)
			cb.lo = &lo
		}
		if i < keys {
			hi := n.InternalKey(i)
			if i > 0 && hi <= *cb.lo {
				return 0, false, fmt.Errorf("%w: internal %d keys out of order at %d", ErrCorruption, id, i)
			}
			if !b.contains(hi) {
				return 0, false, fmt.Errorf("%w: internal %d key %d outside its parent range", ErrCorruption, id, hi)
			}
			cb.hi = &hi
		}

		childMax, ok, err := c.check(child, depth+1, cb)
		if err != nil {
			return 0, false, err
		}
		if i == keys {
			return childMax, ok, nil
		}
		if !ok || childMax != n.InternalKey(i) {
			return 0, false, fmt.Errorf("%w: internal %d separator %d does not match child %d maximum %d",
				ErrCorruption, id, n.InternalKey(i), child, childMax)
		}
	}
	return 0, false, nil
}

// checkChain follows the next-leaf links from the leftmost leaf and expects
// exactly the leaves found by the tree walk, in the same order.
func (c *checker) checkChain() error {
	id := c.leaves[0]
	for i := 0; id != 0; i++ {
		if i >= len(c.leaves) || c.leaves[i] != id {
			return fmt.Errorf("%w: leaf chain diverges from tree order at leaf %d", ErrCorruption, id)
		}
		n, err := c.t.node(id)
		if err != nil {
			return err
		}
		id = n.NextLeaf()
		if id == 0 && i != len(c.leaves)-1 {
			return fmt.Errorf("%w: leaf chain ends after %d of %d leaves", ErrCorruption, i+1, len(c.leaves))
		}
	}
	return nil
}
