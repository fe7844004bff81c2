package arbordb

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRequiresRecordSize(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.db")
	_, err := Open(path)
	assert.ErrorIs(t, err, ErrRecordSizeZero)
}

func TestOpenInvalidOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		options []Option
		wantErr error
	}{
		{name: "page size not a power of two", options: []Option{WithRecordSize(8), WithPageSize(1000)}, wantErr: ErrInvalidPageSize},
		{name: "page size too small", options: []Option{WithRecordSize(8), WithPageSize(64)}, wantErr: ErrInvalidPageSize},
		{name: "record too large", options: []Option{WithRecordSize(2000)}, wantErr: ErrRecordTooLarge},
		{name: "leaf capacity too small", options: []Option{WithRecordSize(8), WithMaxLeafCells(2)}, wantErr: ErrInvalidCapacity},
		{name: "internal capacity too small", options: []Option{WithRecordSize(8), WithMaxInternalKeys(1)}, wantErr: ErrInvalidCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "test.db")
			_, err := Open(path, tt.options...)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPersistence(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, WithRecordSize(testRecordSize), WithCacheSize(16))
	require.NoError(t, err)

	const n = 2000
	for k := uint32(0); k < n; k++ {
		require.NoError(t, db.Insert(k*3, record(k*3)))
	}
	for k := uint32(0); k < n; k += 2 {
		require.NoError(t, db.Delete(k*3))
	}
	require.NoError(t, db.Close())
	assert.ErrorIs(t, db.Insert(1, record(1)), ErrDatabaseClosed)
	assert.NoError(t, db.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size()%4096)

	// The header supplies the record size on reopen.
	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, testRecordSize, db.Layout().RecordSize)
	require.NoError(t, db.Validate())
	for k := uint32(0); k < n; k++ {
		got, err := db.Get(k * 3)
		if k%2 == 0 {
			assert.ErrorIs(t, err, ErrKeyNotFound)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, record(k*3), got)
	}
}

func TestReopenKeepsLayout(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, WithRecordSize(16), WithPageSize(512), WithMaxLeafCells(5))
	require.NoError(t, err)
	want := db.Layout()
	require.NoError(t, db.Close())

	db, err = Open(path, WithRecordSize(16), WithPageSize(4096), WithMaxLeafCells(10))
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, want, db.Layout())
	assert.Equal(t, 5, db.Layout().LeafMaxCells)
	assert.Equal(t, 512, db.Layout().PageSize)
}

func TestReopenRecordSizeMismatch(t *testing.T) {
	t.Parallel()

	_, path := setup(t)

	// setup still holds the lock, so use a copy of the file.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	other := filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, os.WriteFile(other, data, 0600))

	_, err = Open(other, WithRecordSize(testRecordSize+1))
	assert.ErrorIs(t, err, ErrRecordSize)
}

func TestOpenLocked(t *testing.T) {
	t.Parallel()

	_, path := setup(t)
	_, err := Open(path, WithRecordSize(testRecordSize))
	assert.ErrorIs(t, err, ErrDatabaseLocked)
}

func TestOpenCorruptHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		corrupt func(data []byte) []byte
		wantErr error
	}{
		{
			name:    "magic",
			corrupt: func(data []byte) []byte { copy(data, "XXXX"); return data },
			wantErr: ErrInvalidMagicNumber,
		},
		{
			name:    "version",
			corrupt: func(data []byte) []byte { data[4] = 9; return data },
			wantErr: ErrInvalidVersion,
		},
		{
			name:    "checksum",
			corrupt: func(data []byte) []byte { data[24]++; return data },
			wantErr: ErrInvalidChecksum,
		},
		{
			name:    "truncated page",
			corrupt: func(data []byte) []byte { return data[:len(data)-1] },
			wantErr: ErrCorruption,
		},
		{
			name:    "short header",
			corrupt: func(data []byte) []byte { return data[:16] },
			wantErr: ErrIO,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "test.db")
			db, err := Open(path, WithRecordSize(testRecordSize))
			require.NoError(t, err)
			require.NoError(t, db.Insert(1, record(1)))
			require.NoError(t, db.Close())

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path, tt.corrupt(data), 0600))

			_, err = Open(path)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOpenCapacityViolation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		keys    []uint32
		page    int64
		count   uint32
		wantGet error
	}{
		{name: "leaf above capacity", keys: []uint32{1, 2, 3}, page: 1, count: 9, wantGet: ErrCapacityInvariant},
		{name: "leaf below minimum", keys: []uint32{1, 2, 3, 4}, page: 2, count: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "test.db")
			db, err := Open(path,
				WithRecordSize(testRecordSize),
				WithMaxLeafCells(3),
				WithMaxInternalKeys(2))
			require.NoError(t, err)
			insertKeys(t, db, tt.keys...)
			pageSize := int64(db.Layout().PageSize)
			require.NoError(t, db.Close())

			f, err := os.OpenFile(path, os.O_RDWR, 0)
			require.NoError(t, err)
			var count [4]byte
			binary.LittleEndian.PutUint32(count[:], tt.count)
			_, err = f.WriteAt(count[:], tt.page*pageSize+6)
			require.NoError(t, err)
			require.NoError(t, f.Close())

			db, err = Open(path)
			require.NoError(t, err)
			defer db.Close()

			_, err = db.Get(1)
			if tt.wantGet != nil {
				assert.ErrorIs(t, err, tt.wantGet)
			} else {
				assert.NoError(t, err)
			}
			assert.ErrorIs(t, db.Validate(), ErrCapacityInvariant)
		})
	}
}

func TestRecordSizeChecked(t *testing.T) {
	t.Parallel()

	db, _ := setup(t)
	assert.ErrorIs(t, db.Insert(1, make([]byte, testRecordSize-1)), ErrRecordSize)
	assert.ErrorIs(t, db.Update(1, make([]byte, testRecordSize+1)), ErrRecordSize)
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	db := setupSmall(t)
	insertKeys(t, db, 1, 2, 3, 4, 5)
	before := dump(t, db)

	require.NoError(t, db.Update(4, record(400)))
	got, err := db.Get(4)
	require.NoError(t, err)
	assert.Equal(t, record(400), got)

	// Updates never move cells.
	assert.Equal(t, before, dump(t, db))
}

func TestGetReturnsCopy(t *testing.T) {
	t.Parallel()

	db, _ := setup(t)
	insertKeys(t, db, 1)

	got, err := db.Get(1)
	require.NoError(t, err)
	got[0] ^= 0xff

	again, err := db.Get(1)
	require.NoError(t, err)
	assert.Equal(t, record(1), again)
}

func TestZeroBytesRoundTrip(t *testing.T) {
	t.Parallel()

	db, _ := setup(t)
	rec := []byte{0, 0, 7, 0, 0, 0, 0, 0}
	require.NoError(t, db.Insert(5, rec))

	got, err := db.Get(5)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestScan(t *testing.T) {
	t.Parallel()

	db := setupSmall(t)
	insertKeys(t, db, 9, 3, 7, 1, 5, 8, 2, 6, 4)

	var keys []uint32
	err := db.Scan(func(key uint32, rec []byte) error {
		assert.Equal(t, record(key), rec)
		keys = append(keys, key)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 3, 4, 5, 6, 7, 8, 9}, keys)

	keys = nil
	err = db.Scan(func(key uint32, _ []byte) error {
		keys = append(keys, key)
		if key == 3 {
			return ErrStopScan
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 3}, keys)

	errBoom := errors.New("boom")
	err = db.Scan(func(uint32, []byte) error { return errBoom })
	assert.ErrorIs(t, err, errBoom)
}

func TestRange(t *testing.T) {
	t.Parallel()

	db := setupSmall(t)
	for k := uint32(10); k <= 100; k += 10 {
		insertKeys(t, db, k)
	}

	tests := []struct {
		name       string
		start, end uint32
		want       []uint32
	}{
		{name: "exact bounds", start: 20, end: 50, want: []uint32{20, 30, 40, 50}},
		{name: "bounds between keys", start: 25, end: 55, want: []uint32{30, 40, 50}},
		{name: "single key", start: 70, end: 70, want: []uint32{70}},
		{name: "before first", start: 0, end: 15, want: []uint32{10}},
		{name: "after last", start: 101, end: 500, want: nil},
		{name: "empty gap", start: 61, end: 69, want: nil},
		{name: "inverted", start: 50, end: 20, want: nil},
		{name: "everything", start: 0, end: ^uint32(0), want: []uint32{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []uint32
			err := db.Range(tt.start, tt.end, func(key uint32, _ []byte) error {
				got = append(got, key)
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlushWritesEverything(t *testing.T) {
	t.Parallel()

	db, path := setup(t)
	insertKeys(t, db, 1, 2, 3)
	require.NoError(t, db.Flush())

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.DirtyPages)
	assert.Positive(t, stats.Writes)
	assert.Equal(t, 2, stats.Pages)
	assert.Contains(t, stats.String(), "pages=2")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2*4096), info.Size())
}

func TestClosedDatabase(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, WithRecordSize(testRecordSize))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = db.Get(1)
	assert.ErrorIs(t, err, ErrDatabaseClosed)
	assert.ErrorIs(t, db.Delete(1), ErrDatabaseClosed)
	assert.ErrorIs(t, db.Flush(), ErrDatabaseClosed)
	assert.ErrorIs(t, db.Validate(), ErrDatabaseClosed)
	_, err = db.First()
	assert.ErrorIs(t, err, ErrDatabaseClosed)
}

type recordingLogger struct {
	messages []string
}

func (l *recordingLogger) Error(msg string, _ ...any) { l.messages = append(l.messages, msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.messages = append(l.messages, msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.messages = append(l.messages, msg) }

func TestLogging(t *testing.T) {
	t.Parallel()

	logger := &recordingLogger{}
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path,
		WithRecordSize(testRecordSize),
		WithMaxLeafCells(3),
		WithMaxInternalKeys(2),
		WithLogger(logger))
	require.NoError(t, err)

	insertKeys(t, db, 1, 2, 3, 4)
	require.ErrorIs(t, db.Insert(1, record(1)), ErrDuplicateKey)
	require.NoError(t, db.Delete(4))
	require.NoError(t, db.Close())

	assert.Equal(t, []string{"opened database", "root split", "root collapse", "closed database"}, logger.messages)
}
