// Package cursor provides a bounds-checked, panic-free random-access reader
// over an untrusted byte slice.
package cursor

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortRead is returned when fewer bytes remain than requested.
var ErrShortRead = errors.New("cursor: short read")

// ErrBadOffset is returned when an offset or length is out of range, or when
// arithmetic over an offset would overflow.
var ErrBadOffset = errors.New("cursor: bad offset")

// Cursor is a safe view over a byte slice plus a current position. All
// arithmetic is checked; Cursor never panics on hostile input.
type Cursor struct {
	buf []byte
	pos int
	// cap bounds the size of a single read_bytes call; defaults to len(buf).
	cap int
}

// New returns a Cursor positioned at the start of buf.
func New(buf []byte) *Cursor {
	return &Cursor{buf: buf, cap: len(buf)}
}

// Len returns the total length of the underlying buffer.
func (c *Cursor) Len() int {
	return len(c.buf)
}

// Pos returns the current position.
func (c *Cursor) Pos() int {
	return c.pos
}

// Remaining returns the number of bytes left to read.
func (c *Cursor) Remaining() int {
	if c.pos > len(c.buf) {
		return 0
	}
	return len(c.buf) - c.pos
}

// SeekAbsolute moves the cursor to offset, failing if offset is out of range.
func (c *Cursor) SeekAbsolute(offset int) error {
	if offset < 0 || offset > len(c.buf) {
		return fmt.Errorf("%w: seek %d exceeds buffer length %d", ErrBadOffset, offset, len(c.buf))
	}
	c.pos = offset
	return nil
}

// ReadBytes returns a sub-slice of n bytes at the current position and
// advances. Fails with ErrShortRead if n exceeds what remains or the
// configured sanity cap.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrBadOffset, n)
	}
	if n > c.cap {
		return nil, fmt.Errorf("%w: length %d exceeds sanity cap %d", ErrShortRead, n, c.cap)
	}
	end := c.pos + n
	if end < c.pos || end > len(c.buf) {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrShortRead, n, c.Remaining())
	}
	out := c.buf[c.pos:end]
	c.pos = end
	return out, nil
}

// ReadU8 reads a single byte.
func (c *Cursor) ReadU8() (uint8, error) {
	b, err := c.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16 reads a little-endian uint16.
func (c *Cursor) ReadU16() (uint16, error) {
	b, err := c.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadU32 reads a little-endian uint32.
func (c *Cursor) ReadU32() (uint32, error) {
	b, err := c.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU64 reads a little-endian uint64.
func (c *Cursor) ReadU64() (uint64, error) {
	b, err := c.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// AlignTo advances the position to the next multiple of k (k must be one of
// 2, 4, 8), failing if the padding would exceed the buffer length.
func (c *Cursor) AlignTo(k int) error {
	if k != 2 && k != 4 && k != 8 {
		return fmt.Errorf("%w: invalid alignment %d", ErrBadOffset, k)
	}
	rem := c.pos % k
	if rem == 0 {
		return nil
	}
	pad := k - rem
	if c.pos+pad > len(c.buf) {
		return fmt.Errorf("%w: alignment padding exceeds buffer", ErrBadOffset)
	}
	c.pos += pad
	return nil
}
