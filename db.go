package arbordb

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"arbordb/internal/base"
	"arbordb/internal/pager"
	"arbordb/internal/storage"
)

// Layout reports the page and node geometry of an open database.
type Layout = base.Layout

// DB is a single-file B+ tree mapping uint32 keys to fixed-size records.
//
// One mutex serializes every operation, reads included, because reads fault
// pages into the shared page cache. Each operation runs in one pager
// operation: a failed mutation is rolled back in memory and leaves no trace.
// Changes reach the file when evicted from the cache, on Flush and on Close.
type DB struct {
	mu      sync.Mutex
	path    string
	store   *storage.Storage
	pager   *pager.Pager
	tree    *btree
	logger  Logger
	version uint64 // Bumped by every successful mutation
	closed  bool
}

// Open opens the database file at path, creating it if it does not exist.
// A new file needs WithRecordSize. An existing file keeps the geometry in
// its header and must be opened with the same record size, or without one.
func Open(path string, options ...Option) (*DB, error) {
	opts := DefaultOptions()
	for _, opt := range options {
		opt(&opts)
	}

	store, err := storage.Open(path)
	if err != nil {
		return nil, err
	}
	size, err := store.Size()
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	cfg := pager.Config{
		CacheSize: opts.cacheSize,
		SyncOff:   opts.syncMode == SyncOff,
	}

	d := &DB{
		path:   path,
		store:  store,
		logger: opts.logger,
	}
	if size == 0 {
		err = d.create(opts, cfg)
	} else {
		err = d.load(opts, cfg)
	}
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	d.logger.Info("opened database",
		"path", path,
		"created", size == 0,
		"pages", d.pager.NumPages(),
		"root", d.pager.Root(),
		"record_size", d.tree.layout.RecordSize)
	return d, nil
}

// create writes the header and an empty root leaf to a new file.
func (d *DB) create(opts Options, cfg pager.Config) error {
	if opts.recordSize <= 0 {
		return ErrRecordSizeZero
	}
	layout, err := base.NewLayout(opts.pageSize, opts.recordSize, opts.maxLeafCells, opts.maxInternalKeys)
	if err != nil {
		return err
	}
	p, err := pager.Create(d.store, base.NewMeta(layout), cfg)
	if err != nil {
		return err
	}
	d.pager = p
	d.tree = &btree{pager: p, layout: layout, logger: d.logger}

	p.Begin(true)
	id, root, err := p.Allocate()
	if err != nil {
		p.Rollback()
		return err
	}
	root.InitLeaf()
	root.SetRoot(true)
	d.tree.setRoot(id)
	if err := p.Commit(); err != nil {
		return err
	}
	return p.Flush()
}

func (d *DB) load(opts Options, cfg pager.Config) error {
	p, err := pager.Open(d.store, cfg)
	if err != nil {
		return err
	}
	meta := p.Meta()
	layout, err := meta.Layout()
	if err != nil {
		return err
	}
	if opts.recordSize != 0 && opts.recordSize != layout.RecordSize {
		return fmt.Errorf("%w: file stores %d byte records, opened with %d",
			ErrRecordSize, layout.RecordSize, opts.recordSize)
	}
	d.pager = p
	d.tree = &btree{pager: p, layout: layout, logger: d.logger}
	return nil
}

// view runs fn in a read-only pager operation.
func (d *DB) view(fn func(t *btree) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDatabaseClosed
	}
	d.pager.Begin(false)
	err := fn(d.tree)
	d.pager.Rollback()
	return err
}

// update runs fn in a writable pager operation. Any error undoes every page
// change fn made.
func (d *DB) update(fn func(t *btree) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDatabaseClosed
	}
	d.pager.Begin(true)
	if err := fn(d.tree); err != nil {
		d.pager.Rollback()
		if !errors.Is(err, ErrDuplicateKey) && !errors.Is(err, ErrKeyNotFound) {
			d.logger.Warn("operation rolled back", "error", err)
		}
		return err
	}
	if err := d.pager.Commit(); err != nil {
		d.logger.Error("page write-back failed, operation rolled back", "error", err)
		return err
	}
	d.version++
	return nil
}

func (d *DB) checkRecord(record []byte) error {
	if n := d.tree.layout.RecordSize; len(record) != n {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrRecordSize, len(record), n)
	}
	return nil
}

// Get returns a copy of the record stored under key.
func (d *DB) Get(key uint32) ([]byte, error) {
	var result []byte
	err := d.view(func(t *btree) error {
		rec, err := t.get(key)
		if err != nil {
			return err
		}
		result = bytes.Clone(rec)
		return nil
	})
	return result, err
}

// Insert adds a new key. It fails with ErrDuplicateKey if key exists, in
// which case the database is unchanged.
func (d *DB) Insert(key uint32, record []byte) error {
	if err := d.checkRecord(record); err != nil {
		return err
	}
	return d.update(func(t *btree) error {
		return t.insert(key, record)
	})
}

// Update replaces the record of an existing key.
func (d *DB) Update(key uint32, record []byte) error {
	if err := d.checkRecord(record); err != nil {
		return err
	}
	return d.update(func(t *btree) error {
		return t.update(key, record)
	})
}

// Delete removes key. It fails with ErrKeyNotFound if key is absent, in
// which case the database is unchanged.
func (d *DB) Delete(key uint32) error {
	return d.update(func(t *btree) error {
		return t.delete(key)
	})
}

// Scan calls fn for every key in ascending order. The record slice is only
// valid during the call, and fn must not call back into the DB. Returning
// ErrStopScan ends the scan without error; any other error is returned.
func (d *DB) Scan(fn func(key uint32, record []byte) error) error {
	return d.view(func(t *btree) error {
		pos, err := t.first()
		if err != nil {
			return err
		}
		return t.walk(pos, func(key uint32, record []byte) (bool, error) {
			return true, fn(key, record)
		})
	})
}

// Range calls fn for every key in [start, end] in ascending order, with the
// same rules as Scan.
func (d *DB) Range(start, end uint32, fn func(key uint32, record []byte) error) error {
	if start > end {
		return nil
	}
	return d.view(func(t *btree) error {
		pos, _, err := t.find(start)
		if err != nil {
			return err
		}
		if err := t.settle(&pos); err != nil {
			return err
		}
		return t.walk(pos, func(key uint32, record []byte) (bool, error) {
			if key > end {
				return false, nil
			}
			return true, fn(key, record)
		})
	})
}

// walk follows the leaf chain from pos until visit returns false or an
// error. ErrStopScan is swallowed.
func (t *btree) walk(pos position, visit func(key uint32, record []byte) (bool, error)) error {
	for !pos.endOfTable {
		key, rec, err := t.cell(pos)
		if err != nil {
			return err
		}
		more, err := visit(key, rec)
		if errors.Is(err, ErrStopScan) {
			return nil
		}
		if err != nil || !more {
			return err
		}
		if err := t.advance(&pos); err != nil {
			return err
		}
	}
	return nil
}

// Layout returns the geometry of the open file.
func (d *DB) Layout() Layout {
	return d.tree.layout
}

// Path returns the file the database was opened from.
func (d *DB) Path() string {
	return d.path
}

// Flush writes every modified page and the header to the file and syncs it
// unless sync is off.
func (d *DB) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDatabaseClosed
	}
	return d.pager.Flush()
}

// Close flushes the database and releases the file. Calling Close more than
// once is a no-op.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	flushErr := d.pager.Close()
	if flushErr != nil {
		d.logger.Error("flush on close failed", "path", d.path, "error", flushErr)
	}
	closeErr := d.store.Close()
	d.logger.Info("closed database", "path", d.path, "pages", d.pager.NumPages())
	return errors.Join(flushErr, closeErr)
}
