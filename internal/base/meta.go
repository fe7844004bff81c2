package base

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

const (
	// MagicNumber identifies the file format ("ARBR" in little-endian)
	MagicNumber uint32 = 0x52425241

	FormatVersion uint16 = 1

	MetaSize = 44
)

// Meta is the file header stored at the start of page 0.
// Layout: [Magic: 4][Version: 2][Reserved: 2][PageSize: 4][RecordSize: 4]
// [LeafMaxCells: 4][InternalMaxKeys: 4][Root: 4][FreeHead: 4][FreeCount: 4]
// [Checksum: 8]
type Meta struct {
	Magic           uint32
	Version         uint16
	PageSize        uint32
	RecordSize      uint32
	LeafMaxCells    uint32
	InternalMaxKeys uint32
	Root            PageID
	FreeHead        PageID
	FreeCount       uint32
	Checksum        uint64
}

// NewMeta returns a header describing layout l with no root yet.
func NewMeta(l Layout) Meta {
	return Meta{
		Magic:           MagicNumber,
		Version:         FormatVersion,
		PageSize:        uint32(l.PageSize),
		RecordSize:      uint32(l.RecordSize),
		LeafMaxCells:    uint32(l.LeafMaxCells),
		InternalMaxKeys: uint32(l.InternalMaxKeys),
	}
}

func (m *Meta) encodeFields(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], m.Magic)
	binary.LittleEndian.PutUint16(buf[4:], m.Version)
	binary.LittleEndian.PutUint16(buf[6:], 0)
	binary.LittleEndian.PutUint32(buf[8:], m.PageSize)
	binary.LittleEndian.PutUint32(buf[12:], m.RecordSize)
	binary.LittleEndian.PutUint32(buf[16:], m.LeafMaxCells)
	binary.LittleEndian.PutUint32(buf[20:], m.InternalMaxKeys)
	binary.LittleEndian.PutUint32(buf[24:], uint32(m.Root))
	binary.LittleEndian.PutUint32(buf[28:], uint32(m.FreeHead))
	binary.LittleEndian.PutUint32(buf[32:], m.FreeCount)
}

// CalculateChecksum computes the xxhash of every field except Checksum.
func (m *Meta) CalculateChecksum() uint64 {
	var buf [MetaSize - 8]byte
	m.encodeFields(buf[:])
	return xxhash.Sum64(buf[:])
}

// Encode writes the header with a fresh checksum into buf.
func (m *Meta) Encode(buf []byte) {
	m.Checksum = m.CalculateChecksum()
	m.encodeFields(buf)
	binary.LittleEndian.PutUint64(buf[MetaSize-8:], m.Checksum)
}

// DecodeMeta reads a header from buf without validating it.
func DecodeMeta(buf []byte) Meta {
	return Meta{
		Magic:           binary.LittleEndian.Uint32(buf[0:]),
		Version:         binary.LittleEndian.Uint16(buf[4:]),
		PageSize:        binary.LittleEndian.Uint32(buf[8:]),
		RecordSize:      binary.LittleEndian.Uint32(buf[12:]),
		LeafMaxCells:    binary.LittleEndian.Uint32(buf[16:]),
		InternalMaxKeys: binary.LittleEndian.Uint32(buf[20:]),
		Root:            PageID(binary.LittleEndian.Uint32(buf[24:])),
		FreeHead:        PageID(binary.LittleEndian.Uint32(buf[28:])),
		FreeCount:       binary.LittleEndian.Uint32(buf[32:]),
		Checksum:        binary.LittleEndian.Uint64(buf[MetaSize-8:]),
	}
}

// Validate checks if the header is valid
func (m *Meta) Validate() error {
	if m.Magic != MagicNumber {
		return ErrInvalidMagicNumber
	}
	if m.Version != FormatVersion {
		return ErrInvalidVersion
	}
	if err := ValidatePageSize(int(m.PageSize)); err != nil {
		return err
	}
	if m.Checksum != m.CalculateChecksum() {
		return ErrInvalidChecksum
	}
	return nil
}

// Layout rebuilds the node layout recorded in the header.
func (m *Meta) Layout() (Layout, error) {
	return NewLayout(int(m.PageSize), int(m.RecordSize), int(m.LeafMaxCells), int(m.InternalMaxKeys))
}
