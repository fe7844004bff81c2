package arbordb

import (
	"bytes"
	"slices"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
)

// Table is a typed view of a database whose records are encoded by a Codec.
// With WithRecordCache it keeps recently read records in memory. The cache
// holds encoded copies, so every Find decodes a fresh value.
type Table[R any] struct {
	db    *DB
	codec Codec[R]

	// mu orders record cache fills against invalidations: lookups fill
	// under the read lock, mutations invalidate under the write lock.
	mu    sync.RWMutex
	cache *ristretto.Cache[uint32, []byte]
}

// OpenTable opens the database at path with the record size of codec.
func OpenTable[R any](path string, codec Codec[R], options ...Option) (*Table[R], error) {
	opts := DefaultOptions()
	for _, opt := range options {
		opt(&opts)
	}

	db, err := Open(path, append(slices.Clip(options), WithRecordSize(codec.Size()))...)
	if err != nil {
		return nil, err
	}

	t := &Table[R]{db: db, codec: codec}
	if n := int64(opts.recordCacheSize); n > 0 {
		// Every entry costs 1, so MaxCost is a record count.
		t.cache, err = ristretto.NewCache(&ristretto.Config[uint32, []byte]{
			NumCounters:        n * 10,
			MaxCost:            n,
			BufferItems:        64,
			IgnoreInternalCost: true,
			Metrics:            true,
		})
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return t, nil
}

// DB returns the underlying database.
func (t *Table[R]) DB() *DB {
	return t.db
}

func (t *Table[R]) encode(rec R) ([]byte, error) {
	buf := make([]byte, t.codec.Size())
	if err := t.codec.Encode(rec, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (t *Table[R]) Insert(key uint32, rec R) error {
	buf, err := t.encode(rec)
	if err != nil {
		return err
	}
	return t.db.Insert(key, buf)
}

// Find returns the record stored under key.
func (t *Table[R]) Find(key uint32) (R, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.cache != nil {
		if buf, ok := t.cache.Get(key); ok {
			return t.codec.Decode(buf)
		}
	}

	var zero R
	buf, err := t.db.Get(key)
	if err != nil {
		return zero, err
	}
	rec, err := t.codec.Decode(buf)
	if err != nil {
		return zero, err
	}
	if t.cache != nil {
		t.cache.Set(key, bytes.Clone(buf), 1)
	}
	return rec, nil
}

func (t *Table[R]) Update(key uint32, rec R) error {
	buf, err := t.encode(rec)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.invalidate(key)
	return t.db.Update(key, buf)
}

func (t *Table[R]) Delete(key uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.invalidate(key)
	return t.db.Delete(key)
}

// invalidate drops key from the record cache. Sets are applied
// asynchronously, so the buffers are drained to keep an earlier fill from
// landing after the delete.
func (t *Table[R]) invalidate(key uint32) {
	if t.cache == nil {
		return
	}
	t.cache.Del(key)
	t.cache.Wait()
}

// Scan decodes every record in key order. See DB.Scan for the callback
// rules.
func (t *Table[R]) Scan(fn func(key uint32, rec R) error) error {
	return t.db.Scan(t.decoding(fn))
}

// Range decodes every record with a key in [start, end].
func (t *Table[R]) Range(start, end uint32, fn func(key uint32, rec R) error) error {
	return t.db.Range(start, end, t.decoding(fn))
}

func (t *Table[R]) decoding(fn func(key uint32, rec R) error) func(uint32, []byte) error {
	return func(key uint32, record []byte) error {
		rec, err := t.codec.Decode(record)
		if err != nil {
			return err
		}
		return fn(key, rec)
	}
}

// Close releases the record cache and closes the database.
func (t *Table[R]) Close() error {
	if t.cache != nil {
		t.cache.Close()
	}
	return t.db.Close()
}
