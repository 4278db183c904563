package decode

import (
	"fmt"

	"github.com/ind4skylivey/lockb-xray/internal/cursor"
	"github.com/ind4skylivey/lockb-xray/internal/lockfile"
)

// tableFlags bits gate whether the bin, scripts, and metadata slice columns
// are present in the stream at all. A lockfile with no package declaring
// any scripts, for instance, omits that column entirely rather than writing
// an all-zero slice for every row.
const (
	tableFlagScripts uint8 = 1 << 0
	tableFlagBin     uint8 = 1 << 1
	tableFlagMeta    uint8 = 1 << 2
)

// column reads one columnar array: an arrayHeader declaring {count, stride},
// then count elements of exactly stride bytes each. decodeElem receives a
// sub-cursor scoped to exactly one element's bytes, so a stride wider than
// what decodeElem consumes (a newer writer adding trailing fields) is
// silently skipped rather than misaligning the next column. A narrower
// stride than expected is fatal here: the caller is one of the package
// table's mandatory columns, where a short row would desynchronize every
// column that follows it.
func column(c *cursor.Cursor, minStride uint32, decodeElem func(*cursor.Cursor) error) (uint32, error) {
	count, _, err := columnTolerant(c, minStride, decodeElem, false)
	return count, err
}

// columnTolerant is column's optional-column variant. When optional is true
// and the declared stride is narrower than minStride, the mismatch is
// reported as a warning instead of an error and the column's rows are left
// empty (the column is still consumed from the stream, byte for byte, so
// the cursor stays aligned for whatever follows).
func columnTolerant(c *cursor.Cursor, minStride uint32, decodeElem func(*cursor.Cursor) error, optional bool) (uint32, string, error) {
	hdr, err := readArrayHeader(c)
	if err != nil {
		return 0, "", err
	}
	if hdr.Stride < minStride {
		if !optional {
			return 0, "", fmt.Errorf("%w: column stride %d is narrower than the minimum %d", ErrBadOffset, hdr.Stride, minStride)
		}
		if _, err := c.ReadBytes(int(hdr.Stride) * int(hdr.Count)); err != nil {
			return 0, "", wrapShortRead("optional column body", err)
		}
		return 0, fmt.Sprintf("column stride mismatch: optional column declared stride %d, want at least %d", hdr.Stride, minStride), nil
	}
	for i := uint32(0); i < hdr.Count; i++ {
		raw, err := c.ReadBytes(int(hdr.Stride))
		if err != nil {
			return 0, "", wrapShortRead("column element", err)
		}
		elem := cursor.New(raw)
		if err := decodeElem(elem); err != nil {
			return 0, "", err
		}
	}
	return hdr.Count, "", nil
}

// decodePackageTable decodes every package column in sequence and assembles
// the final Package rows. stringBytes, depRows, and pairRows are the shared
// buffers decoded earlier in the stream.
func decodePackageTable(
	c *cursor.Cursor,
	tableFlagsByte uint8,
	stringBytes []byte,
	depRows []lockfile.DependencyEdge,
	pairRows [][2]string,
) ([]lockfile.Package, []string, error) {
	var warnings []string

	names := make([]externalStringRef, 0)
	if _, err := column(c, 8, func(e *cursor.Cursor) error {
		ref, err := readExternalStringRef(e)
		if err != nil {
			return err
		}
		names = append(names, ref)
		return nil
	}); err != nil {
		return nil, nil, fmt.Errorf("names column: %w", err)
	}
	packageCount := len(names)

	nameHashes := make([]uint64, 0, packageCount)
	if _, err := column(c, 8, func(e *cursor.Cursor) error {
		h, err := e.ReadU64()
		if err != nil {
			return err
		}
		nameHashes = append(nameHashes, h)
		return nil
	}); err != nil {
		return nil, nil, fmt.Errorf("name_hashes column: %w", err)
	}
	if len(nameHashes) != packageCount {
		return nil, nil, fmt.Errorf("%w: name_hashes column has %d rows, want %d", ErrBadOffset, len(nameHashes), packageCount)
	}

	versions := make([]externalStringRef, 0, packageCount)
	if _, err := column(c, 8, func(e *cursor.Cursor) error {
		ref, err := readExternalStringRef(e)
		if err != nil {
			return err
		}
		versions = append(versions, ref)
		return nil
	}); err != nil {
		return nil, nil, fmt.Errorf("versions column: %w", err)
	}
	if len(versions) != packageCount {
		return nil, nil, fmt.Errorf("%w: versions column has %d rows, want %d", ErrBadOffset, len(versions), packageCount)
	}

	resolutions := make([]lockfile.Resolution, 0, packageCount)
	if _, err := column(c, resolutionSlotStride, func(e *cursor.Cursor) error {
		r, warning, err := decodeResolution(e, stringBytes)
		if err != nil {
			return err
		}
		if warning != "" {
			warnings = append(warnings, warning)
		}
		resolutions = append(resolutions, r)
		return nil
	}); err != nil {
		return nil, nil, fmt.Errorf("resolutions column: %w", err)
	}
	if len(resolutions) != packageCount {
		return nil, nil, fmt.Errorf("%w: resolutions column has %d rows, want %d", ErrBadOffset, len(resolutions), packageCount)
	}

	integrities := make([]lockfile.Integrity, 0, packageCount)
	if _, err := column(c, integritySlotStride, func(e *cursor.Cursor) error {
		in, warning, err := decodeIntegrity(e, stringBytes)
		if err != nil {
			return err
		}
		if warning != "" {
			warnings = append(warnings, warning)
		}
		integrities = append(integrities, in)
		return nil
	}); err != nil {
		return nil, nil, fmt.Errorf("integrities column: %w", err)
	}
	if len(integrities) != packageCount {
		return nil, nil, fmt.Errorf("%w: integrities column has %d rows, want %d", ErrBadOffset, len(integrities), packageCount)
	}

	behaviors := make([]lockfile.BehaviorFlags, 0, packageCount)
	if _, err := column(c, 4, func(e *cursor.Cursor) error {
		b, err := e.ReadU8()
		if err != nil {
			return err
		}
		behaviors = append(behaviors, lockfile.BehaviorFlags(b))
		return nil
	}); err != nil {
		return nil, nil, fmt.Errorf("behavior column: %w", err)
	}
	if len(behaviors) != packageCount {
		return nil, nil, fmt.Errorf("%w: behavior column has %d rows, want %d", ErrBadOffset, len(behaviors), packageCount)
	}

	depSlices := make([]slice, 0, packageCount)
	if _, err := column(c, 8, func(e *cursor.Cursor) error {
		s, err := readSlice(e)
		if err != nil {
			return err
		}
		depSlices = append(depSlices, s)
		return nil
	}); err != nil {
		return nil, nil, fmt.Errorf("dep_slices column: %w", err)
	}
	if len(depSlices) != packageCount {
		return nil, nil, fmt.Errorf("%w: dep_slices column has %d rows, want %d", ErrBadOffset, len(depSlices), packageCount)
	}

	binSlices := make([]slice, 0, packageCount)
	scriptsSlices := make([]slice, 0, packageCount)
	metaSlices := make([]slice, 0, packageCount)

	if tableFlagsByte&tableFlagBin != 0 {
		n, warning, err := columnTolerant(c, 8, func(e *cursor.Cursor) error {
			s, err := readSlice(e)
			if err != nil {
				return err
			}
			binSlices = append(binSlices, s)
			return nil
		}, true)
		if err != nil {
			return nil, nil, fmt.Errorf("bin_slices column: %w", err)
		}
		if warning != "" {
			warnings = append(warnings, warning)
		}
		if warning == "" && int(n) != packageCount {
			return nil, nil, fmt.Errorf("%w: bin_slices column has %d rows, want %d", ErrBadOffset, n, packageCount)
		}
	}

	if tableFlagsByte&tableFlagScripts != 0 {
		n, warning, err := columnTolerant(c, 8, func(e *cursor.Cursor) error {
			s, err := readSlice(e)
			if err != nil {
				return err
			}
			scriptsSlices = append(scriptsSlices, s)
			return nil
		}, true)
		if err != nil {
			return nil, nil, fmt.Errorf("scripts_slices column: %w", err)
		}
		if warning != "" {
			warnings = append(warnings, warning)
		}
		if warning == "" && int(n) != packageCount {
			return nil, nil, fmt.Errorf("%w: scripts_slices column has %d rows, want %d", ErrBadOffset, n, packageCount)
		}
	}

	if tableFlagsByte&tableFlagMeta != 0 {
		n, warning, err := columnTolerant(c, 8, func(e *cursor.Cursor) error {
			s, err := readSlice(e)
			if err != nil {
				return err
			}
			metaSlices = append(metaSlices, s)
			return nil
		}, true)
		if err != nil {
			return nil, nil, fmt.Errorf("meta_slices column: %w", err)
		}
		if warning != "" {
			warnings = append(warnings, warning)
		}
		if warning == "" && int(n) != packageCount {
			return nil, nil, fmt.Errorf("%w: meta_slices column has %d rows, want %d", ErrBadOffset, n, packageCount)
		}
	}

	packages := make([]lockfile.Package, packageCount)
	for i := 0; i < packageCount; i++ {
		name, err := names[i].resolve(stringBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("package %d name: %w", i, err)
		}
		version, err := versions[i].resolve(stringBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("package %d version: %w", i, err)
		}

		var bin, scripts, meta map[string]string
		if tableFlagsByte&tableFlagBin != 0 && i < len(binSlices) {
			bin = slicePairsToMap(pairRows, binSlices[i])
		}
		if tableFlagsByte&tableFlagScripts != 0 && i < len(scriptsSlices) {
			scripts = slicePairsToMap(pairRows, scriptsSlices[i])
		}
		if tableFlagsByte&tableFlagMeta != 0 && i < len(metaSlices) {
			meta = slicePairsToMap(pairRows, metaSlices[i])
		}

		packages[i] = lockfile.Package{
			ID:           i,
			Name:         name,
			Version:      version,
			NameHash:     nameHashes[i],
			Resolution:   resolutions[i],
			Integrity:    integrities[i],
			Behavior:     behaviors[i],
			Dependencies: sliceDependencies(depRows, depSlices[i]),
			Bin:          bin,
			Scripts:      scripts,
			Metadata:     meta,
		}
	}

	return packages, warnings, nil
}
