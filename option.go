package arbordb

import "arbordb/internal/base"

// SyncMode controls whether Flush and Close fsync the database file
type SyncMode int

const (
	// SyncOnFlush fsyncs after every Flush and on Close.
	SyncOnFlush SyncMode = iota

	// SyncOff never fsyncs (testing/bulk loads only). Data written back by
	// the page cache may be lost on power failure.
	SyncOff
)

const (
	// DefaultCacheSize is the number of pages kept in memory.
	DefaultCacheSize = 100
)

// Options configures database behavior.
type Options struct {
	recordSize      int      // Fixed record length; required when creating a file.
	pageSize        int      // Page size for new files; existing files keep theirs.
	maxLeafCells    int      // Upper bound on leaf cells for new files, 0 derives it from the page size.
	maxInternalKeys int      // Upper bound on internal keys for new files, 0 derives it from the page size.
	cacheSize       int      // Pages held by the page cache.
	recordCacheSize int      // Decoded records cached by a Table, 0 disables the cache.
	syncMode        SyncMode // When to fsync.
	logger          Logger
}

// DefaultOptions returns safe default configuration.
//
//goland:noinspection GoUnusedExportedFunction
func DefaultOptions() Options {
	return Options{
		pageSize:  base.DefaultPageSize,
		cacheSize: DefaultCacheSize,
		syncMode:  SyncOnFlush,
		logger:    DiscardLogger{},
	}
}

// Option configures database options using the functional options pattern.
type Option func(*Options)

// WithRecordSize sets the fixed record length. It is required when the file
// does not exist yet and must match the stored length otherwise.
//
//goland:noinspection GoUnusedExportedFunction
func WithRecordSize(n int) Option {
	return func(opts *Options) {
		opts.recordSize = n
	}
}

// WithPageSize sets the page size of a new database file. It must be a power
// of two between 128 and 65536 bytes. Existing files keep their page size.
//
//goland:noinspection GoUnusedExportedFunction
func WithPageSize(n int) Option {
	return func(opts *Options) {
		opts.pageSize = n
	}
}

// WithMaxLeafCells caps the number of cells per leaf of a new database file
// below what the page size allows. Useful to exercise splits with few keys.
//
//goland:noinspection GoUnusedExportedFunction
func WithMaxLeafCells(n int) Option {
	return func(opts *Options) {
		opts.maxLeafCells = n
	}
}

// WithMaxInternalKeys caps the number of keys per internal node of a new
// database file. Odd values are rounded down.
//
//goland:noinspection GoUnusedExportedFunction
func WithMaxInternalKeys(n int) Option {
	return func(opts *Options) {
		opts.maxInternalKeys = n
	}
}

// WithCacheSize sets how many pages the page cache holds. Dirty pages are
// written back when evicted.
//
//goland:noinspection GoUnusedExportedFunction
func WithCacheSize(pages int) Option {
	return func(opts *Options) {
		opts.cacheSize = pages
	}
}

// WithRecordCache enables a cache of up to n records in a Table.
//
//goland:noinspection GoUnusedExportedFunction
func WithRecordCache(n int) Option {
	return func(opts *Options) {
		opts.recordCacheSize = n
	}
}

// WithSyncOff disables fsync entirely.
// Only use for testing or bulk loads where data can be reconstructed.
//
//goland:noinspection GoUnusedExportedFunction
func WithSyncOff() Option {
	return func(opts *Options) {
		opts.syncMode = SyncOff
	}
}

// WithLogger sets the logger for engine events.
//
//goland:noinspection GoUnusedExportedFunction
func WithLogger(logger Logger) Option {
	return func(opts *Options) {
		if logger != nil {
			opts.logger = logger
		}
	}
}
