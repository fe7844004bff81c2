package base

import "encoding/binary"

const (
	DefaultPageSize = 4096
	MinPageSize     = 128
	MaxPageSize     = 65536

	KeySize   = 4
	ChildSize = 4

	// Common node header
	NodeTypeOffset   = 0
	IsRootOffset     = 1
	ParentOffset     = 2
	CommonHeaderSize = 6

	// Leaf header
	LeafNumCellsOffset = CommonHeaderSize
	LeafNextLeafOffset = LeafNumCellsOffset + 4
	LeafHeaderSize     = LeafNextLeafOffset + 4

	// Internal header
	InternalNumKeysOffset    = CommonHeaderSize
	InternalRightChildOffset = InternalNumKeysOffset + 4
	InternalHeaderSize       = InternalRightChildOffset + 4
	InternalCellSize         = ChildSize + KeySize

	// Freed pages reuse the parent slot for the next free page.
	FreeNextOffset = ParentOffset
)

// Both node variants share a 14 byte header so the cell area starts at the
// same offset regardless of type.
var _ [LeafHeaderSize - InternalHeaderSize]struct{}
var _ [InternalHeaderSize - LeafHeaderSize]struct{}

type NodeType uint8

const (
	NodeInternal NodeType = 0
	NodeLeaf     NodeType = 1
	NodeFree     NodeType = 2
)

func (t NodeType) String() string {
	switch t {
	case NodeInternal:
		return "internal"
	case NodeLeaf:
		return "leaf"
	case NodeFree:
		return "free"
	default:
		return "unknown"
	}
}

// PageID is a zero-based page number. Page 0 holds the file header, so a
// node reference of 0 always means "none".
type PageID uint32

// Page is one fixed-size block of the database file.
//
// LEAF NODE LAYOUT:
// ┌───────────────────────────────────────────────────────────────┐
// │ type(1) | is_root(1) | parent(4) | num_cells(4) | next(4)     │
// ├───────────────────────────────────────────────────────────────┤
// │ cell[0]: key(4) | record(R)                                   │
// │ cell[1]: key(4) | record(R)                                   │
// │ ...                                                           │
// └───────────────────────────────────────────────────────────────┘
//
// INTERNAL NODE LAYOUT:
// ┌───────────────────────────────────────────────────────────────┐
// │ type(1) | is_root(1) | parent(4) | num_keys(4) | right(4)     │
// ├───────────────────────────────────────────────────────────────┤
// │ entry[0]: child(4) | key(4)                                   │
// │ entry[1]: child(4) | key(4)                                   │
// │ ...                                                           │
// └───────────────────────────────────────────────────────────────┘
//
// key[i] is the largest key reachable through child[i]. Keys greater than
// key[num_keys-1] live under the right child.
type Page []byte

func (p Page) u32(off int) uint32 {
	return binary.LittleEndian.Uint32(p[off : off+4])
}

func (p Page) putU32(off int, v uint32) {
	binary.LittleEndian.PutUint32(p[off:off+4], v)
}

func (p Page) Type() NodeType {
	return NodeType(p[NodeTypeOffset])
}

func (p Page) SetType(t NodeType) {
	p[NodeTypeOffset] = byte(t)
}

func (p Page) IsLeaf() bool {
	return p.Type() == NodeLeaf
}

func (p Page) IsRoot() bool {
	return p[IsRootOffset] != 0
}

func (p Page) SetRoot(root bool) {
	if root {
		p[IsRootOffset] = 1
	} else {
		p[IsRootOffset] = 0
	}
}

func (p Page) Parent() PageID {
	return PageID(p.u32(ParentOffset))
}

func (p Page) SetParent(id PageID) {
	p.putU32(ParentOffset, uint32(id))
}

func (p Page) NumCells() int {
	return int(p.u32(LeafNumCellsOffset))
}

func (p Page) SetNumCells(n int) {
	p.putU32(LeafNumCellsOffset, uint32(n))
}

func (p Page) NextLeaf() PageID {
	return PageID(p.u32(LeafNextLeafOffset))
}

func (p Page) SetNextLeaf(id PageID) {
	p.putU32(LeafNextLeafOffset, uint32(id))
}

func (p Page) NumKeys() int {
	return int(p.u32(InternalNumKeysOffset))
}

func (p Page) SetNumKeys(n int) {
	p.putU32(InternalNumKeysOffset, uint32(n))
}

func (p Page) RightChild() PageID {
	return PageID(p.u32(InternalRightChildOffset))
}

func (p Page) SetRightChild(id PageID) {
	p.putU32(InternalRightChildOffset, uint32(id))
}

// Count returns the number of cells of a leaf or keys of an internal node.
func (p Page) Count() int {
	if p.IsLeaf() {
		return p.NumCells()
	}
	return p.NumKeys()
}

func internalEntryOffset(i int) int {
	return InternalHeaderSize + i*InternalCellSize
}

// InternalChild returns child i. Index NumKeys addresses the right child.
func (p Page) InternalChild(i int) PageID {
	if i == p.NumKeys() {
		return p.RightChild()
	}
	return PageID(p.u32(internalEntryOffset(i)))
}

// SetInternalChild sets child i. Index NumKeys addresses the right child.
func (p Page) SetInternalChild(i int, id PageID) {
	if i == p.NumKeys() {
		p.SetRightChild(id)
		return
	}
	p.putU32(internalEntryOffset(i), uint32(id))
}

func (p Page) InternalKey(i int) uint32 {
	return p.u32(internalEntryOffset(i) + ChildSize)
}

func (p Page) SetInternalKey(i int, key uint32) {
	p.putU32(internalEntryOffset(i)+ChildSize, key)
}

// InternalEntries returns the raw [child|key] entry bytes in [from, to).
func (p Page) InternalEntries(from, to int) []byte {
	return p[internalEntryOffset(from):internalEntryOffset(to)]
}

// InitLeaf clears the page and formats it as an empty leaf.
func (p Page) InitLeaf() {
	clear(p)
	p.SetType(NodeLeaf)
}

// InitInternal clears the page and formats it as an internal node with no keys.
func (p Page) InitInternal() {
	clear(p)
	p.SetType(NodeInternal)
}

// InitFree formats a page that has been returned to the freelist.
func (p Page) InitFree(next PageID) {
	clear(p)
	p.SetType(NodeFree)
	p.putU32(FreeNextOffset, uint32(next))
}

// NextFree returns the next page of the freelist chain.
func (p Page) NextFree() PageID {
	return PageID(p.u32(FreeNextOffset))
}
