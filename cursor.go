package arbordb

import "bytes"

// Cursor provides ordered iteration over keys. It holds a copy of the
// current record, so it stays readable after the DB lock is released. Any
// mutation of the database after the cursor was positioned makes Next fail
// with ErrCursorStale.
type Cursor struct {
	db      *DB
	pos     position
	version uint64 // DB version the position belongs to
	key     uint32
	value   []byte
	valid   bool
}

// First returns a cursor positioned at the smallest key. The cursor is not
// valid if the database is empty.
func (d *DB) First() (*Cursor, error) {
	c := &Cursor{db: d}
	err := d.view(func(t *btree) error {
		pos, err := t.first()
		if err != nil {
			return err
		}
		return c.load(t, pos)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Seek returns a cursor positioned at key, or at the next larger key if key
// is absent. The cursor is not valid if no such key exists.
func (d *DB) Seek(key uint32) (*Cursor, error) {
	c := &Cursor{db: d}
	err := d.view(func(t *btree) error {
		pos, _, err := t.find(key)
		if err != nil {
			return err
		}
		if err := t.settle(&pos); err != nil {
			return err
		}
		return c.load(t, pos)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// load captures the cell at pos. Called with the DB lock held.
func (c *Cursor) load(t *btree, pos position) error {
	c.pos = pos
	c.version = c.db.version
	c.valid = false
	c.key, c.value = 0, nil
	if pos.endOfTable {
		return nil
	}

	key, rec, err := t.cell(pos)
	if err != nil {
		return err
	}
	c.key = key
	c.value = bytes.Clone(rec)
	c.valid = true
	return nil
}

// Next moves the cursor to the following key. Past the last key the cursor
// becomes invalid and Next keeps returning nil.
func (c *Cursor) Next() error {
	if !c.valid {
		return nil
	}
	return c.db.view(func(t *btree) error {
		if c.version != c.db.version {
			c.valid = false
			return ErrCursorStale
		}
		pos := c.pos
		if err := t.advance(&pos); err != nil {
			return err
		}
		return c.load(t, pos)
	})
}

// Valid reports whether the cursor is positioned at a key.
func (c *Cursor) Valid() bool {
	return c.valid
}

func (c *Cursor) Key() uint32 {
	return c.key
}

// Value returns the record at the cursor. The slice belongs to the cursor
// and is replaced on Next.
func (c *Cursor) Value() []byte {
	return c.value
}
