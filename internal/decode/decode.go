// Package decode turns a Bun binary lockfile byte buffer into an
// internal/lockfile.Lockfile. Decoding is a single forward pass over the
// buffer: header, three shared buffers (strings, dependencies, pairs), the
// columnar package table, then a trailer scanner. Every read is bounds
// checked through internal/cursor; no panics and no unbounded allocation
// are reachable from untrusted input.
package decode

import (
	"fmt"

	"github.com/ind4skylivey/lockb-xray/internal/cursor"
	"github.com/ind4skylivey/lockb-xray/internal/lockfile"
)

// Options controls how tolerant the decode is of conditions that bun itself
// would treat as fatal.
type Options struct {
	// Strict fails on a format_version above the highest version this
	// decoder understands. When false, decoding continues and the caller
	// is expected to surface lockfile.Lockfile.FormatVersionUnsupported as
	// a finding rather than abandoning the report entirely.
	Strict bool
}

// DefaultOptions matches bun's own behavior: an unsupported version is
// fatal.
func DefaultOptions() Options { return Options{Strict: true} }

// Decode parses buf into a Lockfile. On a fatal error no partial model is
// returned; every other condition — unrecognized trailer kinds, malformed
// integrity tags, out-of-range dependency slices — is absorbed into the
// model and/or ParserWarnings.
func Decode(buf []byte, opts Options) (*lockfile.Lockfile, error) {
	c := cursor.New(buf)

	hdr, err := decodeHeader(c, opts.Strict)
	if err != nil {
		return nil, err
	}

	stringBytes, err := readLengthPrefixedBytes(c)
	if err != nil {
		return nil, fmt.Errorf("string buffer: %w", err)
	}

	depRows, err := decodeDependencyRows(c, stringBytes)
	if err != nil {
		return nil, fmt.Errorf("dependencies buffer: %w", err)
	}

	pairRows, err := decodePairRows(c, stringBytes)
	if err != nil {
		return nil, fmt.Errorf("pairs buffer: %w", err)
	}

	tableFlagsByte, err := c.ReadU8()
	if err != nil {
		return nil, wrapShortRead("table flags", err)
	}
	if err := c.AlignTo(4); err != nil {
		return nil, err
	}

	packages, tableWarnings, err := decodePackageTable(c, tableFlagsByte, stringBytes, depRows, pairRows)
	if err != nil {
		return nil, fmt.Errorf("package table: %w", err)
	}

	warnings := append([]string(nil), tableWarnings...)
	var trailers lockfile.Trailers

	sentinelOK := false
	if c.Remaining() >= 8 {
		before := c.Pos()
		sentinel, serr := c.ReadU64()
		if serr == nil && sentinel == 0 {
			sentinelOK = true
		} else {
			_ = c.SeekAbsolute(before)
		}
	}
	if !sentinelOK {
		warnings = append(warnings, "MissingSentinel: expected a zero u64 sentinel between the package body and trailers")
	} else if c.Remaining() > 0 {
		var trailerWarnings []string
		trailers, trailerWarnings, err = decodeTrailers(c, stringBytes)
		if err != nil {
			return nil, fmt.Errorf("trailers: %w", err)
		}
		warnings = append(warnings, trailerWarnings...)
	}

	if hdr.Unsupported {
		warnings = append(warnings, fmt.Sprintf(
			"format_version %d exceeds the highest version this decoder supports (%d); proceeding with a best-effort partial report",
			hdr.FormatVersion, supportedFormatMax))
	}
	if versionOutdated(hdr.FormatVersion) {
		warnings = append(warnings, fmt.Sprintf("format_version %d is older than the minimum actively supported version (%d)", hdr.FormatVersion, supportedFormatMin))
	}

	lf := &lockfile.Lockfile{
		FormatVersion:            hdr.FormatVersion,
		MetaFlags:                hdr.MetaFlags,
		Packages:                 packages,
		Trailers:                 trailers,
		ParserWarnings:           warnings,
		FormatVersionUnsupported: hdr.Unsupported,
	}
	return lf, nil
}
