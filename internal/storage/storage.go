package storage

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"arbordb/internal/base"
)

// ErrLocked is returned when another handle holds the database file lock.
var ErrLocked = errors.New("database file is locked by another process")

// Storage reads and writes whole pages of a single file. The page size is
// the length of the buffer passed to each call.
type Storage struct {
	file *os.File

	// Stats counters
	reads   atomic.Uint64
	writes  atomic.Uint64
	read    atomic.Uint64
	written atomic.Uint64
}

// Open opens or creates the file at path and takes an exclusive lock on it.
func Open(path string) (*Storage, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", base.ErrIO, err)
	}
	if err := lockFile(file); err != nil {
		_ = file.Close()
		return nil, err
	}
	return &Storage{file: file}, nil
}

// ReadPage fills buf with page id.
func (s *Storage) ReadPage(id base.PageID, buf []byte) error {
	offset := int64(id) * int64(len(buf))

	s.reads.Add(1)
	n, err := s.file.ReadAt(buf, offset)
	s.read.Add(uint64(n))
	if n != len(buf) {
		if err == nil {
			err = fmt.Errorf("short read: got %d bytes, expected %d", n, len(buf))
		}
		return fmt.Errorf("%w: read page %d: %v", base.ErrIO, id, err)
	}
	return nil
}

// WritePage writes buf as page id.
func (s *Storage) WritePage(id base.PageID, buf []byte) error {
	offset := int64(id) * int64(len(buf))

	s.writes.Add(1)
	n, err := s.file.WriteAt(buf, offset)
	s.written.Add(uint64(n))
	if err != nil {
		return fmt.Errorf("%w: write page %d: %v", base.ErrIO, id, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: short write: wrote %d bytes, expected %d", base.ErrIO, n, len(buf))
	}
	return nil
}

// ReadHeader reads the first len(buf) bytes of the file.
func (s *Storage) ReadHeader(buf []byte) error {
	n, err := s.file.ReadAt(buf, 0)
	s.reads.Add(1)
	s.read.Add(uint64(n))
	if n != len(buf) {
		return fmt.Errorf("%w: read header: %v", base.ErrIO, err)
	}
	return nil
}

// Sync flushes written pages to stable storage
func (s *Storage) Sync() error {
	if err := syncFile(s.file); err != nil {
		return fmt.Errorf("%w: sync: %v", base.ErrIO, err)
	}
	return nil
}

// Size returns the file length in bytes.
func (s *Storage) Size() (int64, error) {
	info, err := s.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", base.ErrIO, err)
	}
	return info.Size(), nil
}

// Close releases the lock and closes the file
func (s *Storage) Close() error {
	unlockErr := unlockFile(s.file)
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", base.ErrIO, err)
	}
	return unlockErr
}

// Stats holds I/O statistics
type Stats struct {
	Reads   uint64
	Writes  uint64
	Read    uint64
	Written uint64
}

// Stats returns I/O statistics
func (s *Storage) Stats() Stats {
	return Stats{
		Reads:   s.reads.Load(),
		Writes:  s.writes.Load(),
		Read:    s.read.Load(),
		Written: s.written.Load(),
	}
}
