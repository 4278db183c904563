package decode

import (
	"fmt"

	"github.com/ind4skylivey/lockb-xray/internal/cursor"
)

// magic is the 8-byte ASCII literal identifying a Bun binary lockfile.
var magic = []byte("BUNLOCKB")

// supportedFormatMin/Max bound the format_version values this decoder will
// attempt to decode. Versions above the max are fatal in strict mode; with
// strict off they are decoded best-effort and surfaced by the finding engine
// as a HIGH lockfile_version_unsupported finding (see internal/findings).
// Versions below the min are decodable and only recorded as a parser warning.
const (
	supportedFormatMin uint32 = 0
	supportedFormatMax uint32 = 3
)

type header struct {
	FormatVersion uint32
	MetaFlags     uint32
	Unsupported   bool
}

// decodeHeader reads the 8-byte magic, u32 format_version, u32
// meta_hash_or_flags, and pads to the next 8-byte boundary. When strict is
// false, a format_version above supportedFormatMax is recorded on the
// returned header instead of failing, so the caller can continue decoding
// a best-effort partial model and surface it as a finding.
func decodeHeader(c *cursor.Cursor, strict bool) (header, error) {
	got, err := c.ReadBytes(len(magic))
	if err != nil {
		return header{}, wrapShortRead("magic", err)
	}
	for i := range magic {
		if got[i] != magic[i] {
			return header{}, ErrBadMagic
		}
	}

	version, err := c.ReadU32()
	if err != nil {
		return header{}, wrapShortRead("format_version", err)
	}
	unsupported := version > supportedFormatMax
	if unsupported && strict {
		return header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	flags, err := c.ReadU32()
	if err != nil {
		return header{}, wrapShortRead("meta_hash_or_flags", err)
	}

	if err := c.AlignTo(8); err != nil {
		return header{}, err
	}

	return header{FormatVersion: version, MetaFlags: flags, Unsupported: unsupported}, nil
}

// versionOutdated reports whether version is decodable but below the
// minimum fully-supported version; Decode records such a version as a parser
// warning. With supportedFormatMin at 0, no version is below it.
func versionOutdated(version uint32) bool {
	return version < supportedFormatMin
}
