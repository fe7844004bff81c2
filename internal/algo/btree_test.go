package algo

import (
	"testing"

	"arbordb/internal/base"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLayout(t *testing.T) base.Layout {
	t.Helper()
	l, err := base.NewLayout(4096, 4, 0, 0)
	require.NoError(t, err)
	return l
}

func makeLeaf(l base.Layout, keys ...uint32) base.Page {
	p := make(base.Page, l.PageSize)
	p.InitLeaf()
	for i, k := range keys {
		l.SetLeafKey(p, i, k)
		copy(l.LeafValue(p, i), []byte{byte(k), 0, 0, byte(k)})
	}
	p.SetNumCells(len(keys))
	return p
}

// makeInternal builds a node with children 100, 101, ... and the given keys.
func makeInternal(keys ...uint32) base.Page {
	p := make(base.Page, 4096)
	p.InitInternal()
	p.SetNumKeys(len(keys))
	for i, k := range keys {
		p.SetInternalChild(i, base.PageID(100+i))
		p.SetInternalKey(i, k)
	}
	p.SetRightChild(base.PageID(100 + len(keys)))
	return p
}

func leafKeys(l base.Layout, p base.Page) []uint32 {
	keys := make([]uint32, p.NumCells())
	for i := range keys {
		keys[i] = l.LeafKey(p, i)
	}
	return keys
}

func internalState(p base.Page) ([]uint32, []base.PageID) {
	keys := make([]uint32, p.NumKeys())
	children := make([]base.PageID, p.NumKeys()+1)
	for i := range keys {
		keys[i] = p.InternalKey(i)
	}
	for i := range children {
		children[i] = p.InternalChild(i)
	}
	return keys, children
}

func TestSearchInternal(t *testing.T) {
	t.Parallel()

	many := make([]uint32, 100)
	for i := range many {
		many[i] = uint32(i*10 + 10)
	}

	tests := []struct {
		name string
		node base.Page
		key  uint32
		want int
	}{
		{name: "no keys", node: makeInternal(), key: 5, want: 0},
		{name: "less than first", node: makeInternal(10, 20), key: 5, want: 0},
		{name: "equal first routes left", node: makeInternal(10, 20), key: 10, want: 0},
		{name: "between", node: makeInternal(10, 20), key: 15, want: 1},
		{name: "equal last routes left", node: makeInternal(10, 20), key: 20, want: 1},
		{name: "greater than all", node: makeInternal(10, 20), key: 21, want: 2},
		{name: "binary equal", node: makeInternal(many...), key: 500, want: 49},
		{name: "binary between", node: makeInternal(many...), key: 505, want: 50},
		{name: "binary beyond", node: makeInternal(many...), key: 5000, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SearchInternal(tt.node, tt.key))
		})
	}
}

func TestSearchLeaf(t *testing.T) {
	t.Parallel()

	l := testLayout(t)
	many := make([]uint32, 64)
	for i := range many {
		many[i] = uint32(i * 2)
	}

	tests := []struct {
		name string
		keys []uint32
		key  uint32
		want int
	}{
		{name: "empty", keys: nil, key: 1, want: 0},
		{name: "found", keys: []uint32{1, 3, 5}, key: 3, want: 1},
		{name: "insert before", keys: []uint32{1, 3, 5}, key: 0, want: 0},
		{name: "insert middle", keys: []uint32{1, 3, 5}, key: 4, want: 2},
		{name: "insert end", keys: []uint32{1, 3, 5}, key: 9, want: 3},
		{name: "binary found", keys: many, key: 40, want: 20},
		{name: "binary missing", keys: many, key: 41, want: 21},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := makeLeaf(l, tt.keys...)
			assert.Equal(t, tt.want, SearchLeaf(l, p, tt.key))
		})
	}
}

func TestChildIndex(t *testing.T) {
	t.Parallel()

	p := makeInternal(10, 20)
	assert.Equal(t, 0, ChildIndex(p, 100))
	assert.Equal(t, 2, ChildIndex(p, 102))
	assert.Equal(t, -1, ChildIndex(p, 7))
}

func TestSplitPoints(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2, LeafSplitPoint(3))
	assert.Equal(t, 3, LeafSplitPoint(4))
	assert.Equal(t, 7, LeafSplitPoint(13))
	assert.Equal(t, 2, InternalSplitPoint(4))
	assert.Equal(t, 255, InternalSplitPoint(510))
}

func TestLeafCellEdits(t *testing.T) {
	t.Parallel()

	l := testLayout(t)
	p := makeLeaf(l, 10, 30)

	InsertLeafCell(l, p, 1, 20, []byte{20, 0, 0, 20})
	assert.Equal(t, []uint32{10, 20, 30}, leafKeys(l, p))
	assert.Equal(t, []byte{30, 0, 0, 30}, []byte(l.LeafValue(p, 2)))

	InsertLeafCell(l, p, 0, 5, []byte{5, 0, 0, 5})
	InsertLeafCell(l, p, 4, 40, []byte{40, 0, 0, 40})
	assert.Equal(t, []uint32{5, 10, 20, 30, 40}, leafKeys(l, p))

	RemoveLeafCell(l, p, 0)
	RemoveLeafCell(l, p, 3)
	assert.Equal(t, []uint32{10, 20, 30}, leafKeys(l, p))
	assert.Equal(t, []byte{20, 0, 0, 20}, []byte(l.LeafValue(p, 1)))
}

func TestInternalEntryEdits(t *testing.T) {
	t.Parallel()

	p := makeInternal(10, 30)
	InsertInternalEntry(p, 1, 7, 20)
	keys, children := internalState(p)
	assert.Equal(t, []uint32{10, 20, 30}, keys)
	assert.Equal(t, []base.PageID{100, 7, 101, 102}, children)

	RemoveInternalEntry(p, 0)
	keys, children = internalState(p)
	assert.Equal(t, []uint32{20, 30}, keys)
	assert.Equal(t, []base.PageID{7, 101, 102}, children)
}

func TestRemoveSeparator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		k            int
		wantKeys     []uint32
		wantChildren []base.PageID
	}{
		{name: "first", k: 0, wantKeys: []uint32{20, 30}, wantChildren: []base.PageID{100, 102, 103}},
		{name: "middle", k: 1, wantKeys: []uint32{10, 30}, wantChildren: []base.PageID{100, 101, 103}},
		{name: "last", k: 2, wantKeys: []uint32{10, 20}, wantChildren: []base.PageID{100, 101, 102}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := makeInternal(10, 20, 30)
			RemoveSeparator(p, tt.k)
			keys, children := internalState(p)
			assert.Equal(t, tt.wantKeys, keys)
			assert.Equal(t, tt.wantChildren, children)
		})
	}
}
