package base

import "errors"

var (
	ErrIO                 = errors.New("i/o error")
	ErrPageFault          = errors.New("page fault: page not allocated")
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrKeyNotFound        = errors.New("key not found")
	ErrCapacityInvariant  = errors.New("node capacity invariant violated")
	ErrCorruption         = errors.New("database file is corrupted")
	ErrInvalidMagicNumber = errors.New("invalid magic number")
	ErrInvalidVersion     = errors.New("invalid format version")
	ErrInvalidPageSize    = errors.New("invalid page size")
	ErrInvalidChecksum    = errors.New("invalid checksum")
	ErrRecordSize         = errors.New("record size does not match database")
	ErrRecordTooLarge     = errors.New("record too large for page size")
	ErrInvalidCapacity    = errors.New("invalid node capacity")
)
