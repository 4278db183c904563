package decode

import (
	"errors"
	"fmt"

	"github.com/ind4skylivey/lockb-xray/internal/cursor"
)

// Fatal decode errors. A caller that receives one of these gets no report —
// decoding stopped before a usable model existed. These wrap cursor's own
// ErrShortRead/ErrBadOffset so callers can test with errors.Is against either
// the specific sentinel below or the underlying cursor error.
var (
	ErrBadMagic           = errors.New("decode: bad lockfile magic")
	ErrUnsupportedVersion = errors.New("decode: unsupported lockfile format version")
	ErrShortRead          = cursor.ErrShortRead
	ErrBadOffset          = cursor.ErrBadOffset
)

func wrapShortRead(context string, err error) error {
	return fmt.Errorf("%s: %w", context, err)
}
