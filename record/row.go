// Package record provides a users-table row shape: an id,
// a username and an email, stored as a fixed-size record.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	UsernameSize = 32
	EmailSize    = 255

	idOffset       = 0
	usernameOffset = idOffset + 4
	emailOffset    = usernameOffset + 1 + UsernameSize

	// Size is the encoded length of a Row.
	Size = emailOffset + 1 + EmailSize
)

var (
	ErrStringTooLong = errors.New("string too long")
	ErrShortBuffer   = errors.New("buffer shorter than a row")
)

// Row is one entry of the users table.
type Row struct {
	ID       uint32
	Username string
	Email    string
}

func (r Row) String() string {
	return fmt.Sprintf("(%d, %s, %s)", r.ID, r.Username, r.Email)
}

// Codec encodes rows for arbordb.OpenTable. Strings are stored with a one
// byte length prefix, so they may contain zero bytes.
type Codec struct{}

func (Codec) Size() int {
	return Size
}

func (Codec) Encode(r Row, dst []byte) error {
	if len(dst) < Size {
		return ErrShortBuffer
	}
	if len(r.Username) > UsernameSize {
		return fmt.Errorf("%w: username is %d bytes, limit %d", ErrStringTooLong, len(r.Username), UsernameSize)
	}
	if len(r.Email) > EmailSize {
		return fmt.Errorf("%w: email is %d bytes, limit %d", ErrStringTooLong, len(r.Email), EmailSize)
	}

	clear(dst[:Size])
	binary.LittleEndian.PutUint32(dst[idOffset:], r.ID)
	putString(dst[usernameOffset:], r.Username)
	putString(dst[emailOffset:], r.Email)
	return nil
}

func (Codec) Decode(src []byte) (Row, error) {
	if len(src) < Size {
		return Row{}, ErrShortBuffer
	}
	username, err := getString(src[usernameOffset:], UsernameSize)
	if err != nil {
		return Row{}, err
	}
	email, err := getString(src[emailOffset:], EmailSize)
	if err != nil {
		return Row{}, err
	}
	return Row{
		ID:       binary.LittleEndian.Uint32(src[idOffset:]),
		Username: username,
		Email:    email,
	}, nil
}

func putString(dst []byte, s string) {
	dst[0] = byte(len(s))
	copy(dst[1:], s)
}

func getString(src []byte, limit int) (string, error) {
	n := int(src[0])
	if n > limit {
		return "", fmt.Errorf("%w: stored length %d, limit %d", ErrStringTooLong, n, limit)
	}
	return string(src[1 : 1+n]), nil
}
