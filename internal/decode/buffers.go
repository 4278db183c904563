package decode

import (
	"fmt"

	"github.com/ind4skylivey/lockb-xray/internal/cursor"
	"github.com/ind4skylivey/lockb-xray/internal/lockfile"
)

// dependencyRowStride is the fixed byte width of one row in the shared
// dependencies buffer: a name ref, a requirement ref, one behavior byte
// padded to 4 bytes, and a resolved package id (-1 when absent).
const dependencyRowStride = 8 + 8 + 4 + 4

// pairRowStride is the fixed byte width of one row in the shared pairs
// buffer, used for bin, scripts, and metadata maps alike: a key ref and a
// value ref.
const pairRowStride = 8 + 8

// slice is an {offset, count} reference into one of the shared buffers.
type slice struct {
	Offset uint32
	Count  uint32
}

func readSlice(c *cursor.Cursor) (slice, error) {
	off, err := c.ReadU32()
	if err != nil {
		return slice{}, wrapShortRead("slice offset", err)
	}
	count, err := c.ReadU32()
	if err != nil {
		return slice{}, wrapShortRead("slice count", err)
	}
	return slice{Offset: off, Count: count}, nil
}

// decodeDependencyRows decodes the entire shared dependencies buffer: a u32
// length prefix in bytes, followed by that many bytes of fixed-width rows.
func decodeDependencyRows(c *cursor.Cursor, stringBytes []byte) ([]lockfile.DependencyEdge, error) {
	body, err := readLengthPrefixedBytes(c)
	if err != nil {
		return nil, wrapShortRead("dependencies buffer", err)
	}
	if len(body)%dependencyRowStride != 0 {
		return nil, fmt.Errorf("%w: dependencies buffer length %d is not a multiple of row width %d",
			ErrBadOffset, len(body), dependencyRowStride)
	}

	rows := make([]lockfile.DependencyEdge, 0, len(body)/dependencyRowStride)
	rc := cursor.New(body)
	for rc.Remaining() > 0 {
		row, err := decodeDependencyRow(rc, stringBytes)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeDependencyRow(c *cursor.Cursor, stringBytes []byte) (lockfile.DependencyEdge, error) {
	nameRef, err := readExternalStringRef(c)
	if err != nil {
		return lockfile.DependencyEdge{}, wrapShortRead("dependency name ref", err)
	}
	reqRef, err := readExternalStringRef(c)
	if err != nil {
		return lockfile.DependencyEdge{}, wrapShortRead("dependency requirement ref", err)
	}
	behavior, err := c.ReadU8()
	if err != nil {
		return lockfile.DependencyEdge{}, wrapShortRead("dependency behavior", err)
	}
	if _, err := c.ReadBytes(3); err != nil {
		return lockfile.DependencyEdge{}, wrapShortRead("dependency behavior padding", err)
	}
	resolvedID, err := c.ReadU32()
	if err != nil {
		return lockfile.DependencyEdge{}, wrapShortRead("dependency resolved package id", err)
	}

	name, err := nameRef.resolve(stringBytes)
	if err != nil {
		return lockfile.DependencyEdge{}, wrapShortRead("dependency name", err)
	}
	req, err := reqRef.resolve(stringBytes)
	if err != nil {
		return lockfile.DependencyEdge{}, wrapShortRead("dependency requirement", err)
	}

	edge := lockfile.DependencyEdge{
		Name:              name,
		Requirement:       req,
		Behavior:          lockfile.BehaviorFlags(behavior),
		ResolvedPackageID: -1,
	}
	if resolvedID != ^uint32(0) {
		edge.ResolvedPackageID = int(resolvedID)
		edge.HasResolvedPackage = true
	}
	return edge, nil
}

// sliceDependencies resolves a slice into a decoded dependency row set,
// tolerating an out-of-range slice by returning an empty result — a
// truncated or corrupted buffer degrades to "no dependencies" for that
// package rather than failing the whole decode.
func sliceDependencies(rows []lockfile.DependencyEdge, s slice) []lockfile.DependencyEdge {
	start := uint64(s.Offset)
	end := start + uint64(s.Count)
	if s.Count == 0 || start >= uint64(len(rows)) || end > uint64(len(rows)) {
		return nil
	}
	out := make([]lockfile.DependencyEdge, s.Count)
	copy(out, rows[start:end])
	return out
}

// decodePairRows decodes the shared key/value pairs buffer backing bin,
// scripts, and metadata maps.
func decodePairRows(c *cursor.Cursor, stringBytes []byte) ([][2]string, error) {
	body, err := readLengthPrefixedBytes(c)
	if err != nil {
		return nil, wrapShortRead("pairs buffer", err)
	}
	if len(body)%pairRowStride != 0 {
		return nil, fmt.Errorf("%w: pairs buffer length %d is not a multiple of row width %d",
			ErrBadOffset, len(body), pairRowStride)
	}

	rows := make([][2]string, 0, len(body)/pairRowStride)
	rc := cursor.New(body)
	for rc.Remaining() > 0 {
		keyRef, err := readExternalStringRef(rc)
		if err != nil {
			return nil, wrapShortRead("pair key ref", err)
		}
		valRef, err := readExternalStringRef(rc)
		if err != nil {
			return nil, wrapShortRead("pair value ref", err)
		}
		key, err := keyRef.resolve(stringBytes)
		if err != nil {
			return nil, wrapShortRead("pair key", err)
		}
		val, err := valRef.resolve(stringBytes)
		if err != nil {
			return nil, wrapShortRead("pair value", err)
		}
		rows = append(rows, [2]string{key, val})
	}
	return rows, nil
}

// slicePairsToMap resolves a slice into a map, tolerating an out-of-range
// slice by returning an empty map.
func slicePairsToMap(rows [][2]string, s slice) map[string]string {
	start := uint64(s.Offset)
	end := start + uint64(s.Count)
	if s.Count == 0 || start >= uint64(len(rows)) || end > uint64(len(rows)) {
		return nil
	}
	m := make(map[string]string, s.Count)
	for _, kv := range rows[start:end] {
		m[kv[0]] = kv[1]
	}
	return m
}
