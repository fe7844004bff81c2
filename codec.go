package arbordb

import (
	"bytes"
	"fmt"
)

// Codec converts between a record type and its fixed-size encoding. Size
// must be constant for the lifetime of a file.
type Codec[R any] interface {
	Size() int
	Encode(rec R, dst []byte) error
	Decode(src []byte) (R, error)
}

// BytesCodec stores byte slices of exactly the given length verbatim.
type BytesCodec int

func (c BytesCodec) Size() int {
	return int(c)
}

func (c BytesCodec) Encode(rec []byte, dst []byte) error {
	if len(rec) != int(c) {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrRecordSize, len(rec), int(c))
	}
	copy(dst, rec)
	return nil
}

func (c BytesCodec) Decode(src []byte) ([]byte, error) {
	return bytes.Clone(src), nil
}
