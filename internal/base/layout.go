package base

import "fmt"

const (
	MinLeafCells    = 3
	MinInternalKeys = 2
)

// Layout holds the node capacities derived from the page size and record
// size. It is computed once when a database is opened.
type Layout struct {
	PageSize        int
	RecordSize      int
	LeafCellSize    int
	LeafMaxCells    int
	LeafMinCells    int
	InternalMaxKeys int
	InternalMinKeys int
}

// NewLayout derives capacities for the given page and record size. A
// non-zero maxLeaf or maxInternal lowers the derived capacity. The internal
// capacity is rounded down to an even number of keys.
func NewLayout(pageSize, recordSize, maxLeaf, maxInternal int) (Layout, error) {
	if err := ValidatePageSize(pageSize); err != nil {
		return Layout{}, err
	}
	if recordSize <= 0 {
		return Layout{}, fmt.Errorf("%w: %d", ErrRecordSize, recordSize)
	}

	l := Layout{
		PageSize:     pageSize,
		RecordSize:   recordSize,
		LeafCellSize: KeySize + recordSize,
	}
	l.LeafMaxCells = (pageSize - LeafHeaderSize) / l.LeafCellSize
	if l.LeafMaxCells < MinLeafCells {
		return Layout{}, fmt.Errorf("%w: %d byte records fit %d per %d byte page",
			ErrRecordTooLarge, recordSize, l.LeafMaxCells, pageSize)
	}
	if maxLeaf > 0 {
		if maxLeaf < MinLeafCells || maxLeaf > l.LeafMaxCells {
			return Layout{}, fmt.Errorf("%w: leaf capacity %d not in [%d, %d]",
				ErrInvalidCapacity, maxLeaf, MinLeafCells, l.LeafMaxCells)
		}
		l.LeafMaxCells = maxLeaf
	}

	l.InternalMaxKeys = (pageSize - InternalHeaderSize) / InternalCellSize
	if maxInternal > 0 {
		if maxInternal < MinInternalKeys || maxInternal > l.InternalMaxKeys {
			return Layout{}, fmt.Errorf("%w: internal capacity %d not in [%d, %d]",
				ErrInvalidCapacity, maxInternal, MinInternalKeys, l.InternalMaxKeys)
		}
		l.InternalMaxKeys = maxInternal
	}
	l.InternalMaxKeys &^= 1

	l.LeafMinCells = (l.LeafMaxCells + 1) / 2
	l.InternalMinKeys = l.InternalMaxKeys / 2
	return l, nil
}

// ValidatePageSize reports whether n is a supported power-of-two page size.
func ValidatePageSize(n int) error {
	if n < MinPageSize || n > MaxPageSize || n&(n-1) != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, n)
	}
	return nil
}

func (l Layout) leafCellOffset(i int) int {
	return LeafHeaderSize + i*l.LeafCellSize
}

// LeafCell returns the raw bytes of cell i: key followed by record.
func (l Layout) LeafCell(p Page, i int) []byte {
	off := l.leafCellOffset(i)
	return p[off : off+l.LeafCellSize]
}

// LeafCells returns the raw bytes of cells in [from, to).
func (l Layout) LeafCells(p Page, from, to int) []byte {
	return p[l.leafCellOffset(from):l.leafCellOffset(to)]
}

func (l Layout) LeafKey(p Page, i int) uint32 {
	return p.u32(l.leafCellOffset(i))
}

func (l Layout) SetLeafKey(p Page, i int, key uint32) {
	p.putU32(l.leafCellOffset(i), key)
}

// LeafValue returns the record bytes of cell i. The slice aliases the page.
func (l Layout) LeafValue(p Page, i int) []byte {
	off := l.leafCellOffset(i) + KeySize
	return p[off : off+l.RecordSize]
}

// MaxCount returns the capacity of the node held in p.
func (l Layout) MaxCount(p Page) int {
	if p.IsLeaf() {
		return l.LeafMaxCells
	}
	return l.InternalMaxKeys
}

// MinCount returns the minimum fill of a non-root node held in p.
func (l Layout) MinCount(p Page) int {
	if p.IsLeaf() {
		return l.LeafMinCells
	}
	return l.InternalMinKeys
}
