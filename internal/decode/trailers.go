package decode

import (
	"fmt"

	"github.com/ind4skylivey/lockb-xray/internal/cursor"
	"github.com/ind4skylivey/lockb-xray/internal/lockfile"
)

// Trailer kinds. Each trailer record is {u32 kind, u32 length, length bytes
// of kind-specific payload}, so an unrecognized kind can always be skipped
// without losing sync with the ones that follow.
const (
	trailerTrustedDependencies uint32 = 1
	trailerOverrides           uint32 = 2
	trailerPatchedDependencies uint32 = 3
	trailerCatalogs            uint32 = 4
	trailerWorkspaces          uint32 = 5
	trailerConfigVersion       uint32 = 6
	trailerDefaultCatalog      uint32 = 7
)

// decodeTrailers scans every trailer record until the cursor is exhausted.
// Unrecognized kinds are skipped and recorded as a parser warning rather
// than failing the decode, matching how an older reader should tolerate a
// lockfile written by a newer bun.
func decodeTrailers(c *cursor.Cursor, stringBytes []byte) (lockfile.Trailers, []string, error) {
	var t lockfile.Trailers
	var warnings []string

	seenTrusted := false
	seenConfigVersion := false

	for c.Remaining() > 0 {
		if c.Remaining() < 8 {
			warnings = append(warnings, "TrailerTruncated: fewer than 8 bytes remain for a trailer record header")
			break
		}
		kind, err := c.ReadU32()
		if err != nil {
			return t, warnings, wrapShortRead("trailer kind", err)
		}
		length, err := c.ReadU32()
		if err != nil {
			return t, warnings, wrapShortRead("trailer length", err)
		}
		if uint64(length) > uint64(c.Remaining()) {
			warnings = append(warnings, fmt.Sprintf("TrailerTruncated: kind %d declares %d bytes, only %d remain", kind, length, c.Remaining()))
			break
		}
		body, err := c.ReadBytes(int(length))
		if err != nil {
			return t, warnings, wrapShortRead("trailer body", err)
		}
		bc := cursor.New(body)

		if (kind == trailerTrustedDependencies && seenTrusted) || (kind == trailerConfigVersion && seenConfigVersion) {
			warnings = append(warnings, fmt.Sprintf("DuplicateTrailer(%d): first occurrence wins", kind))
			continue
		}

		switch kind {
		case trailerTrustedDependencies:
			hashes, empty, err := decodeTrustedHashes(bc)
			if err != nil {
				return t, warnings, fmt.Errorf("trusted dependencies trailer: %w", err)
			}
			t.TrustedHashes = hashes
			t.HasEmptyTrusted = empty
			seenTrusted = true

		case trailerOverrides:
			overrides, err := decodeOverrides(bc, stringBytes)
			if err != nil {
				return t, warnings, fmt.Errorf("overrides trailer: %w", err)
			}
			t.Overrides = overrides

		case trailerPatchedDependencies:
			patched, err := decodePatched(bc, stringBytes)
			if err != nil {
				return t, warnings, fmt.Errorf("patched dependencies trailer: %w", err)
			}
			t.Patched = patched

		case trailerCatalogs:
			catalogs, err := decodeCatalogs(bc, stringBytes)
			if err != nil {
				return t, warnings, fmt.Errorf("catalogs trailer: %w", err)
			}
			t.Catalogs = catalogs

		case trailerDefaultCatalog:
			deps, err := decodeCatalogDeps(bc, stringBytes)
			if err != nil {
				return t, warnings, fmt.Errorf("default catalog trailer: %w", err)
			}
			t.DefaultCatalog = deps

		case trailerWorkspaces:
			count, err := bc.ReadU32()
			if err != nil {
				return t, warnings, fmt.Errorf("workspaces trailer: %w", wrapShortRead("count", err))
			}
			t.WorkspacesCount = int(count)

		case trailerConfigVersion:
			version, err := bc.ReadU32()
			if err != nil {
				return t, warnings, fmt.Errorf("config version trailer: %w", wrapShortRead("version", err))
			}
			t.ConfigVersion = int(version)
			t.HasConfigVersion = true
			seenConfigVersion = true

		default:
			warnings = append(warnings, fmt.Sprintf("UnknownTrailerKind(%d): %d bytes skipped", kind, length))
		}
	}

	return t, warnings, nil
}

func decodeTrustedHashes(c *cursor.Cursor) ([]uint64, bool, error) {
	count, err := c.ReadU32()
	if err != nil {
		return nil, false, wrapShortRead("count", err)
	}
	if count == 0 {
		return nil, true, nil
	}
	hashes := make([]uint64, 0)
	for i := uint32(0); i < count; i++ {
		h, err := c.ReadU64()
		if err != nil {
			return nil, false, wrapShortRead("hash", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, false, nil
}

func decodeOverrides(c *cursor.Cursor, stringBytes []byte) ([]lockfile.Override, error) {
	count, err := c.ReadU32()
	if err != nil {
		return nil, wrapShortRead("count", err)
	}
	out := make([]lockfile.Override, 0)
	for i := uint32(0); i < count; i++ {
		nameHash, err := c.ReadU64()
		if err != nil {
			return nil, wrapShortRead("name hash", err)
		}
		dep, err := decodeDependencyRow(c, stringBytes)
		if err != nil {
			return nil, err
		}
		out = append(out, lockfile.Override{NameHash: nameHash, Dependency: dep})
	}
	return out, nil
}

func decodePatched(c *cursor.Cursor, stringBytes []byte) ([]lockfile.Patched, error) {
	count, err := c.ReadU32()
	if err != nil {
		return nil, wrapShortRead("count", err)
	}
	out := make([]lockfile.Patched, 0)
	for i := uint32(0); i < count; i++ {
		nvHash, err := c.ReadU64()
		if err != nil {
			return nil, wrapShortRead("name+version hash", err)
		}
		pathRef, err := readExternalStringRef(c)
		if err != nil {
			return nil, wrapShortRead("patch file path ref", err)
		}
		patchHash, err := c.ReadU64()
		if err != nil {
			return nil, wrapShortRead("patch hash", err)
		}
		path, err := pathRef.resolve(stringBytes)
		if err != nil {
			return nil, wrapShortRead("patch file path", err)
		}
		out = append(out, lockfile.Patched{NameVersionHash: nvHash, PatchFilePath: path, PatchHash: patchHash})
	}
	return out, nil
}

func decodeCatalogDeps(c *cursor.Cursor, stringBytes []byte) ([]lockfile.DependencyEdge, error) {
	count, err := c.ReadU32()
	if err != nil {
		return nil, wrapShortRead("count", err)
	}
	out := make([]lockfile.DependencyEdge, 0)
	for i := uint32(0); i < count; i++ {
		dep, err := decodeDependencyRow(c, stringBytes)
		if err != nil {
			return nil, err
		}
		out = append(out, dep)
	}
	return out, nil
}

func decodeCatalogs(c *cursor.Cursor, stringBytes []byte) ([]lockfile.Catalog, error) {
	count, err := c.ReadU32()
	if err != nil {
		return nil, wrapShortRead("count", err)
	}
	out := make([]lockfile.Catalog, 0)
	for i := uint32(0); i < count; i++ {
		nameRef, err := readExternalStringRef(c)
		if err != nil {
			return nil, wrapShortRead("catalog name ref", err)
		}
		name, err := nameRef.resolve(stringBytes)
		if err != nil {
			return nil, wrapShortRead("catalog name", err)
		}
		deps, err := decodeCatalogDeps(c, stringBytes)
		if err != nil {
			return nil, fmt.Errorf("catalog %q: %w", name, err)
		}
		out = append(out, lockfile.Catalog{Name: name, Dependencies: deps})
	}
	return out, nil
}
