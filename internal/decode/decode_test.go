package decode

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/ind4skylivey/lockb-xray/internal/lockfile"
)

// stringTable is the one shared string buffer a whole hand-built lockfile
// buffer interns into. Every section (dependencies, pairs, package table)
// takes a pointer to the same table so offsets stay valid once everything
// is concatenated in on-disk order.
type stringTable struct{ buf []byte }

// intern appends s and returns its {offset, length}.
func (s *stringTable) intern(str string) (uint32, uint32) {
	off := uint32(len(s.buf))
	s.buf = append(s.buf, str...)
	return off, uint32(len(str))
}

// section accumulates one length-prefixed block's raw bytes.
type section struct {
	strs *stringTable
	out  []byte
}

func newSection(strs *stringTable) *section { return &section{strs: strs} }

func (s *section) u8(v uint8)   { s.out = append(s.out, v) }
func (s *section) pad(n int)    { s.out = append(s.out, make([]byte, n)...) }
func (s *section) raw(v []byte) { s.out = append(s.out, v...) }

func (s *section) u32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	s.out = append(s.out, tmp[:]...)
}

func (s *section) u64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	s.out = append(s.out, tmp[:]...)
}

func (s *section) intern(str string) {
	off, length := s.strs.intern(str)
	s.u32(off)
	s.u32(length)
}

func (s *section) alignTo4() {
	for len(s.out)%4 != 0 {
		s.out = append(s.out, 0)
	}
}

func (s *section) arrayHeader(count, stride uint32) {
	s.u32(count)
	s.u32(stride)
}

// digest writes raw, right-padded to integrityDigestWidth bytes, mirroring
// the on-disk inline digest buffer decodeIntegrity reads.
func (s *section) digest(raw []byte) {
	buf := make([]byte, integrityDigestWidth)
	copy(buf, raw)
	s.raw(buf)
}

type depRow struct {
	name, req string
	behavior  uint8
	resolved  uint32 // ^uint32(0) when absent
}

func (s *section) dependencyRow(r depRow) {
	s.intern(r.name)
	s.intern(r.req)
	s.u8(r.behavior)
	s.pad(3)
	s.u32(r.resolved)
}

type pkgRow struct {
	name, version string
	nameHash      uint64
	resTag        uint8
	resStr0       string
	resStr1       string
	resStr2       string
	intTag        uint8
	digest        []byte
	behavior      uint8
	depOffset     uint32
	depCount      uint32
}

func (s *section) packageTable(rows []pkgRow, tableFlags uint8) {
	n := uint32(len(rows))

	s.arrayHeader(n, 8)
	for _, r := range rows {
		s.intern(r.name)
	}

	s.arrayHeader(n, 8)
	for _, r := range rows {
		s.u64(r.nameHash)
	}

	s.arrayHeader(n, 8)
	for _, r := range rows {
		s.intern(r.version)
	}

	s.arrayHeader(n, resolutionSlotStride)
	for _, r := range rows {
		s.u8(r.resTag)
		s.pad(3)
		s.intern(r.resStr0)
		s.intern(r.resStr1)
		s.intern(r.resStr2)
	}

	s.arrayHeader(n, integritySlotStride)
	for _, r := range rows {
		s.u8(r.intTag)
		s.pad(3)
		s.digest(r.digest)
	}

	s.arrayHeader(n, 4)
	for _, r := range rows {
		s.u8(r.behavior)
		s.pad(3)
	}

	s.arrayHeader(n, 8)
	for _, r := range rows {
		s.u32(r.depOffset)
		s.u32(r.depCount)
	}

	if tableFlags&tableFlagBin != 0 {
		s.arrayHeader(n, 8)
		for range rows {
			s.u32(0)
			s.u32(0)
		}
	}
	if tableFlags&tableFlagScripts != 0 {
		s.arrayHeader(n, 8)
		for range rows {
			s.u32(0)
			s.u32(0)
		}
	}
	if tableFlags&tableFlagMeta != 0 {
		s.arrayHeader(n, 8)
		for range rows {
			s.u32(0)
			s.u32(0)
		}
	}
}

func (s *section) sentinel() { s.u64(0) }

// buildCleanTwoPackageLockfile mirrors scenario 1 from the testable
// properties: root plus two npm packages, both direct, both with valid
// sha512 integrity from the default registry.
func buildCleanTwoPackageLockfile(t *testing.T) []byte {
	t.Helper()
	strs := &stringTable{}

	depRows := []depRow{
		{name: "a", req: "^1.0.0", behavior: 2, resolved: ^uint32(0)},
		{name: "b", req: "^2.0.0", behavior: 2, resolved: ^uint32(0)},
	}
	deps := newSection(strs)
	for _, d := range depRows {
		deps.dependencyRow(d)
	}

	pairs := newSection(strs) // empty: no bin/scripts/meta entries in this lockfile

	digestA := bytes.Repeat([]byte{0xAA}, 64)
	digestB := bytes.Repeat([]byte{0xBB}, 64)
	pkgRows := []pkgRow{
		{name: "root", resTag: resolutionTagRoot, intTag: integrityTagAbsent, depOffset: 0, depCount: 2},
		{name: "a", version: "1.0.0", nameHash: 1, resTag: resolutionTagNpm, resStr0: "registry.npmjs.org", resStr1: "https://registry.npmjs.org/a/-/a-1.0.0.tgz", intTag: integrityTagSHA512, digest: digestA, behavior: 2},
		{name: "b", version: "2.0.0", nameHash: 2, resTag: resolutionTagNpm, resStr0: "registry.npmjs.org", resStr1: "https://registry.npmjs.org/b/-/b-2.0.0.tgz", intTag: integrityTagSHA512, digest: digestB, behavior: 2},
	}
	table := newSection(strs)
	table.packageTable(pkgRows, 0)
	table.sentinel()

	// Now that every intern() call has run, strs.buf holds the complete
	// string buffer. Assemble the final wire buffer in on-disk order.
	out := &section{}
	out.raw(magic)
	out.u32(3) // format_version
	out.u32(0) // meta flags

	out.u32(uint32(len(strs.buf)))
	out.raw(strs.buf)

	out.u32(uint32(len(deps.out)))
	out.raw(deps.out)

	out.u32(uint32(len(pairs.out)))
	out.raw(pairs.out)

	out.u8(0) // table flags
	out.alignTo4()

	out.raw(table.out)

	return out.out
}

func TestDecodeCleanTwoPackageLockfile(t *testing.T) {
	buf := buildCleanTwoPackageLockfile(t)

	lf, err := Decode(buf, DefaultOptions())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(lf.Packages) != 3 {
		t.Fatalf("package count: got %d want 3", len(lf.Packages))
	}
	root, ok := lf.Root()
	if !ok {
		t.Fatalf("no root package found")
	}
	if len(root.Dependencies) != 2 {
		t.Fatalf("root dependencies: got %d want 2", len(root.Dependencies))
	}
	a, ok := lf.PackageByID(1)
	if !ok || a.Name != "a" || a.Version != "1.0.0" {
		t.Fatalf("package 1: got %+v", a)
	}
	if a.Resolution.Kind != lockfile.ResolutionNpm {
		t.Fatalf("package 1 resolution kind: got %v", a.Resolution.Kind)
	}
	if a.Integrity.Kind != lockfile.IntegritySRI || a.Integrity.Algorithm != "sha512" {
		t.Fatalf("package 1 integrity: got %+v", a.Integrity)
	}
	wantDigest := base64.RawStdEncoding.EncodeToString(bytes.Repeat([]byte{0xAA}, 64))
	if a.Integrity.Base64Digest != wantDigest {
		t.Fatalf("package 1 integrity digest: got %s want %s", a.Integrity.Base64Digest, wantDigest)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	buf := buildCleanTwoPackageLockfile(t)
	buf[0] = 'X'
	if _, err := Decode(buf, DefaultOptions()); err == nil {
		t.Fatalf("expected an error for bad magic")
	}
}

func TestDecodeNeverPanicsOnHostileInput(t *testing.T) {
	clean := buildCleanTwoPackageLockfile(t)
	for cut := 0; cut <= len(clean); cut += 3 {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Decode panicked at cut=%d: %v", cut, r)
				}
			}()
			_, _ = Decode(clean[:cut], DefaultOptions())
		}()
	}

	garbage := make([]byte, 256)
	for i := range garbage {
		garbage[i] = byte(i * 37)
	}
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Decode panicked on garbage input: %v", r)
		}
	}()
	_, _ = Decode(garbage, DefaultOptions())
}

// TestDecodeToleratesNarrowOptionalColumnStride covers a meta_slices column
// whose declared stride is narrower than the 8 bytes a slice needs. Since
// meta is an optional column, the decoder must record a warning and keep
// the rest of the package table usable rather than failing the whole
// decode.
func TestDecodeToleratesNarrowOptionalColumnStride(t *testing.T) {
	strs := &stringTable{}
	deps := newSection(strs)
	pairs := newSection(strs)

	pkgRows := []pkgRow{
		{name: "root", resTag: resolutionTagRoot, intTag: integrityTagAbsent},
	}
	table := newSection(strs)
	table.packageTable(pkgRows, 0)
	table.arrayHeader(1, 4) // meta_slices: stride 4, narrower than the 8 a slice needs
	table.u32(0)
	table.sentinel()

	out := &section{}
	out.raw(magic)
	out.u32(3)
	out.u32(0)
	out.u32(uint32(len(strs.buf)))
	out.raw(strs.buf)
	out.u32(uint32(len(deps.out)))
	out.raw(deps.out)
	out.u32(uint32(len(pairs.out)))
	out.raw(pairs.out)
	out.u8(tableFlagMeta)
	out.alignTo4()
	out.raw(table.out)

	lf, err := Decode(out.out, DefaultOptions())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(lf.Packages) != 1 {
		t.Fatalf("package count: got %d want 1", len(lf.Packages))
	}
	found := false
	for _, w := range lf.ParserWarnings {
		if w == "column stride mismatch: optional column declared stride 4, want at least 8" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a column stride mismatch warning, got %v", lf.ParserWarnings)
	}
}
