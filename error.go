package arbordb

import (
	"errors"

	"arbordb/internal/base"
	"arbordb/internal/storage"
)

//goland:noinspection GoUnusedGlobalVariable
var (
	ErrDatabaseClosed = errors.New("database is closed")
	ErrCursorStale    = errors.New("cursor invalidated by a later mutation")
	ErrRecordSizeZero = errors.New("record size must be set when creating a database")

	// ErrStopScan may be returned by a scan callback to end the scan early
	// without error.
	ErrStopScan = errors.New("stop scan")

	ErrDatabaseLocked = storage.ErrLocked

	ErrIO                 = base.ErrIO
	ErrPageFault          = base.ErrPageFault
	ErrDuplicateKey       = base.ErrDuplicateKey
	ErrKeyNotFound        = base.ErrKeyNotFound
	ErrCapacityInvariant  = base.ErrCapacityInvariant
	ErrCorruption         = base.ErrCorruption
	ErrInvalidMagicNumber = base.ErrInvalidMagicNumber
	ErrInvalidVersion     = base.ErrInvalidVersion
	ErrInvalidPageSize    = base.ErrInvalidPageSize
	ErrInvalidChecksum    = base.ErrInvalidChecksum
	ErrRecordSize         = base.ErrRecordSize
	ErrRecordTooLarge     = base.ErrRecordTooLarge
	ErrInvalidCapacity    = base.ErrInvalidCapacity
)
