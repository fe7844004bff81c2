package arbordb

import (
	"fmt"
	"io"
	"strings"

	"arbordb/internal/base"
)

// Dump writes the tree structure to w, one line per node and key:
//
//	- internal (page 3, size 1)
//	  - leaf (page 1, size 2)
//	    - 1
//	    - 2
//	  - key 2
//	  - leaf (page 2, size 2)
//	    - 3
//	    - 4
func (d *DB) Dump(w io.Writer) error {
	return d.view(func(t *btree) error {
		return t.dump(w, t.root(), 0)
	})
}

func (t *btree) dump(w io.Writer, id base.PageID, depth int) error {
	if depth >= maxDepth {
		return fmt.Errorf("%w: tree deeper than %d levels", ErrCorruption, maxDepth)
	}
	n, err := t.node(id)
	if err != nil {
		return err
	}
	indent := strings.Repeat("  ", depth)

	if n.IsLeaf() {
		if _, err := fmt.Fprintf(w, "%s- leaf (page %d, size %d)\n", indent, id, n.NumCells()); err != nil {
			return err
		}
		for i := 0; i < n.NumCells(); i++ {
			if _, err := fmt.Fprintf(w, "%s  - %d\n", indent, t.layout.LeafKey(n, i)); err != nil {
				return err
			}
		}
		return nil
	}

	keys := n.NumKeys()
	if _, err := fmt.Fprintf(w, "%s- internal (page %d, size %d)\n", indent, id, keys); err != nil {
		return err
	}
	for i := 0; i <= keys; i++ {
		if err := t.dump(w, n.InternalChild(i), depth+1); err != nil {
			return err
		}
		if i < keys {
			if _, err := fmt.Fprintf(w, "%s  - key %d\n", indent, n.InternalKey(i)); err != nil {
				return err
			}
		}
	}
	return nil
}
