package decode

import (
	"fmt"

	"github.com/ind4skylivey/lockb-xray/internal/cursor"
)

// externalStringRef is an {offset, length} reference into a string buffer.
type externalStringRef struct {
	Offset uint32
	Length uint32
}

// readExternalStringRef reads an 8-byte external string reference.
func readExternalStringRef(c *cursor.Cursor) (externalStringRef, error) {
	off, err := c.ReadU32()
	if err != nil {
		return externalStringRef{}, wrapShortRead("external string offset", err)
	}
	length, err := c.ReadU32()
	if err != nil {
		return externalStringRef{}, wrapShortRead("external string length", err)
	}
	return externalStringRef{Offset: off, Length: length}, nil
}

// resolve looks up the referenced bytes in stringBytes, validating bounds.
func (r externalStringRef) resolve(stringBytes []byte) (string, error) {
	if r.Offset == 0 && r.Length == 0 {
		return "", nil
	}
	start := uint64(r.Offset)
	end := start + uint64(r.Length)
	if end > uint64(len(stringBytes)) || end < start {
		return "", fmt.Errorf("%w: external string offset=%d length=%d exceeds string buffer of %d bytes",
			ErrBadOffset, r.Offset, r.Length, len(stringBytes))
	}
	return string(stringBytes[start:end]), nil
}

// arrayHeader is the {count, item_stride} primitive preceding each column.
type arrayHeader struct {
	Count  uint32
	Stride uint32
}

func readArrayHeader(c *cursor.Cursor) (arrayHeader, error) {
	count, err := c.ReadU32()
	if err != nil {
		return arrayHeader{}, wrapShortRead("array header count", err)
	}
	stride, err := c.ReadU32()
	if err != nil {
		return arrayHeader{}, wrapShortRead("array header stride", err)
	}
	total := uint64(count) * uint64(stride)
	if stride != 0 && total/uint64(stride) != uint64(count) {
		return arrayHeader{}, fmt.Errorf("%w: array header count=%d stride=%d overflows", ErrBadOffset, count, stride)
	}
	if total > uint64(c.Remaining()) {
		return arrayHeader{}, fmt.Errorf("%w: array header declares %d bytes, only %d remain", ErrShortRead, total, c.Remaining())
	}
	return arrayHeader{Count: count, Stride: stride}, nil
}

// readLengthPrefixedBytes reads a u32 length followed by that many bytes,
// capped at the cursor's remaining bytes.
func readLengthPrefixedBytes(c *cursor.Cursor) ([]byte, error) {
	n, err := c.ReadU32()
	if err != nil {
		return nil, wrapShortRead("length prefix", err)
	}
	if uint64(n) > uint64(c.Remaining()) {
		return nil, fmt.Errorf("%w: length-prefixed block declares %d bytes, only %d remain", ErrShortRead, n, c.Remaining())
	}
	return c.ReadBytes(int(n))
}

func readLengthPrefixedString(c *cursor.Cursor) (string, error) {
	b, err := readLengthPrefixedBytes(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
