package arbordb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, c *Cursor) []uint32 {
	t.Helper()
	var keys []uint32
	for c.Valid() {
		assert.Equal(t, record(c.Key()), c.Value())
		keys = append(keys, c.Key())
		require.NoError(t, c.Next())
	}
	return keys
}

func TestCursorFirst(t *testing.T) {
	t.Parallel()

	db := setupSmall(t)
	insertKeys(t, db, 5, 1, 4, 2, 3, 7, 6)

	c, err := db.First()
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 3, 4, 5, 6, 7}, collect(t, c))

	// Next past the end stays invalid.
	require.NoError(t, c.Next())
	assert.False(t, c.Valid())
}

func TestCursorSeek(t *testing.T) {
	t.Parallel()

	db := setupSmall(t)
	insertKeys(t, db, 10, 20, 30, 40, 50, 60)

	tests := []struct {
		name string
		key  uint32
		want []uint32
	}{
		{name: "exact", key: 30, want: []uint32{30, 40, 50, 60}},
		{name: "between keys", key: 31, want: []uint32{40, 50, 60}},
		{name: "just above separator", key: 21, want: []uint32{30, 40, 50, 60}},
		{name: "before first", key: 0, want: []uint32{10, 20, 30, 40, 50, 60}},
		{name: "past last", key: 61, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := db.Seek(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, collect(t, c))
		})
	}
}

func TestCursorStale(t *testing.T) {
	t.Parallel()

	db, _ := setup(t)
	insertKeys(t, db, 1, 2, 3)

	c, err := db.First()
	require.NoError(t, err)
	require.True(t, c.Valid())

	insertKeys(t, db, 4)
	assert.ErrorIs(t, c.Next(), ErrCursorStale)
	assert.False(t, c.Valid())

	// Failed mutations do not invalidate cursors.
	c, err = db.First()
	require.NoError(t, err)
	assert.ErrorIs(t, db.Insert(1, record(1)), ErrDuplicateKey)
	require.NoError(t, c.Next())
	assert.Equal(t, uint32(2), c.Key())
}
