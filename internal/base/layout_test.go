package base

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLayout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		pageSize    int
		recordSize  int
		maxLeaf     int
		maxInternal int
		want        Layout
		wantErr     error
	}{
		{
			name:       "reference row sizing",
			pageSize:   4096,
			recordSize: 291,
			want: Layout{
				PageSize: 4096, RecordSize: 291, LeafCellSize: 295,
				LeafMaxCells: 13, LeafMinCells: 7,
				InternalMaxKeys: 510, InternalMinKeys: 255,
			},
		},
		{
			name:        "lowered capacities",
			pageSize:    4096,
			recordSize:  8,
			maxLeaf:     3,
			maxInternal: 4,
			want: Layout{
				PageSize: 4096, RecordSize: 8, LeafCellSize: 12,
				LeafMaxCells: 3, LeafMinCells: 2,
				InternalMaxKeys: 4, InternalMinKeys: 2,
			},
		},
		{
			name:        "odd internal capacity rounds down",
			pageSize:    4096,
			recordSize:  8,
			maxInternal: 5,
			want: Layout{
				PageSize: 4096, RecordSize: 8, LeafCellSize: 12,
				LeafMaxCells: 340, LeafMinCells: 170,
				InternalMaxKeys: 4, InternalMinKeys: 2,
			},
		},
		{
			name:       "small page",
			pageSize:   128,
			recordSize: 4,
			want: Layout{
				PageSize: 128, RecordSize: 4, LeafCellSize: 8,
				LeafMaxCells: 14, LeafMinCells: 7,
				InternalMaxKeys: 14, InternalMinKeys: 7,
			},
		},
		{name: "page size not power of two", pageSize: 4000, recordSize: 8, wantErr: ErrInvalidPageSize},
		{name: "page size too small", pageSize: 64, recordSize: 8, wantErr: ErrInvalidPageSize},
		{name: "zero record size", pageSize: 4096, recordSize: 0, wantErr: ErrRecordSize},
		{name: "record too large", pageSize: 4096, recordSize: 2000, wantErr: ErrRecordTooLarge},
		{name: "leaf capacity too small", pageSize: 4096, recordSize: 8, maxLeaf: 2, wantErr: ErrInvalidCapacity},
		{name: "leaf capacity above page", pageSize: 128, recordSize: 4, maxLeaf: 15, wantErr: ErrInvalidCapacity},
		{name: "internal capacity too small", pageSize: 4096, recordSize: 8, maxInternal: 1, wantErr: ErrInvalidCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewLayout(tt.pageSize, tt.recordSize, tt.maxLeaf, tt.maxInternal)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLayoutCounts(t *testing.T) {
	t.Parallel()

	l, err := NewLayout(4096, 8, 3, 4)
	require.NoError(t, err)

	p := make(Page, l.PageSize)
	p.InitLeaf()
	assert.Equal(t, 3, l.MaxCount(p))
	assert.Equal(t, 2, l.MinCount(p))

	p.InitInternal()
	assert.Equal(t, 4, l.MaxCount(p))
	assert.Equal(t, 2, l.MinCount(p))
}
