package decode

import (
	"encoding/base64"
	"fmt"

	"github.com/ind4skylivey/lockb-xray/internal/cursor"
	"github.com/ind4skylivey/lockb-xray/internal/lockfile"
)

// Integrity tags. 0 means absent; the digest algorithm tags mirror npm's own
// SRI algorithm identifiers.
const (
	integrityTagAbsent uint8 = 0
	integrityTagSHA1   uint8 = 1
	integrityTagSHA256 uint8 = 2
	integrityTagSHA384 uint8 = 3
	integrityTagSHA512 uint8 = 4
)

// integrityDigestWidth is the fixed inline byte width bun reserves for a
// digest regardless of algorithm (wide enough for sha512); shorter digests
// occupy a prefix of it and leave the remainder zeroed.
const integrityDigestWidth = 64

// integritySlotStride is the fixed byte width of one integrity column row: a
// 1-byte tag, 3 bytes of padding, and integrityDigestWidth raw digest bytes
// inline (not an external string ref — the digest is never stored
// pre-encoded on disk).
const integritySlotStride = 1 + 3 + integrityDigestWidth

// decodeIntegrity reads one fixed-width integrity slot. An unrecognized tag
// produces a malformed Integrity and a MalformedIntegrityTag(n) warning
// rather than an error — the rest of the package table is still usable.
func decodeIntegrity(c *cursor.Cursor, stringBytes []byte) (lockfile.Integrity, string, error) {
	tag, err := c.ReadU8()
	if err != nil {
		return lockfile.Integrity{}, "", wrapShortRead("integrity tag", err)
	}
	if _, err := c.ReadBytes(3); err != nil {
		return lockfile.Integrity{}, "", wrapShortRead("integrity tag padding", err)
	}
	raw, err := c.ReadBytes(integrityDigestWidth)
	if err != nil {
		return lockfile.Integrity{}, "", wrapShortRead("integrity digest bytes", err)
	}

	if tag == integrityTagAbsent {
		return lockfile.Integrity{Kind: lockfile.IntegrityAbsent}, "", nil
	}

	algo, length, ok := integrityAlgorithm(tag)
	if !ok {
		warning := fmt.Sprintf("MalformedIntegrityTag(%d)", tag)
		return lockfile.Integrity{Kind: lockfile.IntegrityMalformed, RawTag: tag}, warning, nil
	}

	digest := base64.RawStdEncoding.EncodeToString(raw[:length])
	return lockfile.Integrity{Kind: lockfile.IntegritySRI, Algorithm: algo, Base64Digest: digest}, "", nil
}

// integrityAlgorithm maps a tag to its algorithm name and raw digest length
// in bytes (20/32/48/64 for sha1/sha256/sha384/sha512).
func integrityAlgorithm(tag uint8) (string, int, bool) {
	switch tag {
	case integrityTagSHA1:
		return "sha1", 20, true
	case integrityTagSHA256:
		return "sha256", 32, true
	case integrityTagSHA384:
		return "sha384", 48, true
	case integrityTagSHA512:
		return "sha512", 64, true
	default:
		return "", 0, false
	}
}
