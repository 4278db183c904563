package decode

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/ind4skylivey/lockb-xray/internal/cursor"
	"github.com/ind4skylivey/lockb-xray/internal/lockfile"
)

func buildResolutionSlot(t *testing.T, strs *stringTable, tag uint8, strs0, strs1, strs2 string) []byte {
	t.Helper()
	s := newSection(strs)
	s.u8(tag)
	s.pad(3)
	s.intern(strs0)
	s.intern(strs1)
	s.intern(strs2)
	return s.out
}

func TestDecodeResolutionUnknownTagIsUnknownKind(t *testing.T) {
	strs := &stringTable{}
	raw := buildResolutionSlot(t, strs, 99, "", "", "")
	r, warning, err := decodeResolution(cursor.New(raw), strs.buf)
	if err != nil {
		t.Fatalf("decodeResolution: %v", err)
	}
	if r.Kind != lockfile.ResolutionUnknown || r.RawTag != 99 {
		t.Fatalf("unexpected resolution: %+v", r)
	}
	if warning != "UnknownResolutionTag(99)" {
		t.Fatalf("unexpected warning: %q", warning)
	}
}

func TestDecodeResolutionGithub(t *testing.T) {
	strs := &stringTable{}
	raw := buildResolutionSlot(t, strs, resolutionTagGithub, "owner", "repo", "deadbeef")
	r, warning, err := decodeResolution(cursor.New(raw), strs.buf)
	if err != nil {
		t.Fatalf("decodeResolution: %v", err)
	}
	if warning != "" {
		t.Fatalf("unexpected warning: %q", warning)
	}
	if r.Kind != lockfile.ResolutionGithub || r.Owner != "owner" || r.Repo != "repo" || r.Commit != "deadbeef" {
		t.Fatalf("unexpected resolution: %+v", r)
	}
	if r.URL != "github:owner/repo#deadbeef" {
		t.Fatalf("derived url: got %q", r.URL)
	}
}

func buildIntegritySlot(t *testing.T, strs *stringTable, tag uint8, raw []byte) []byte {
	t.Helper()
	s := newSection(strs)
	s.u8(tag)
	s.pad(3)
	s.digest(raw)
	return s.out
}

func TestDecodeIntegrityMalformedTag(t *testing.T) {
	strs := &stringTable{}
	raw := buildIntegritySlot(t, strs, 200, nil)
	in, warning, err := decodeIntegrity(cursor.New(raw), strs.buf)
	if err != nil {
		t.Fatalf("decodeIntegrity: %v", err)
	}
	if in.Kind != lockfile.IntegrityMalformed || in.RawTag != 200 {
		t.Fatalf("unexpected integrity: %+v", in)
	}
	if warning != "MalformedIntegrityTag(200)" {
		t.Fatalf("unexpected warning: %q", warning)
	}
}

func TestDecodeIntegrityAbsent(t *testing.T) {
	strs := &stringTable{}
	raw := buildIntegritySlot(t, strs, integrityTagAbsent, nil)
	in, warning, err := decodeIntegrity(cursor.New(raw), strs.buf)
	if err != nil {
		t.Fatalf("decodeIntegrity: %v", err)
	}
	if in.Kind != lockfile.IntegrityAbsent {
		t.Fatalf("unexpected integrity: %+v", in)
	}
	if warning != "" {
		t.Fatalf("unexpected warning: %q", warning)
	}
}

func TestDecodeIntegritySHA256(t *testing.T) {
	strs := &stringTable{}
	digest := bytes.Repeat([]byte{0xDE, 0xAD, 0xBE, 0xEF}, 8) // 32 raw bytes
	raw := buildIntegritySlot(t, strs, integrityTagSHA256, digest)
	in, warning, err := decodeIntegrity(cursor.New(raw), strs.buf)
	if err != nil {
		t.Fatalf("decodeIntegrity: %v", err)
	}
	want := base64.RawStdEncoding.EncodeToString(digest)
	if in.Kind != lockfile.IntegritySRI || in.Algorithm != "sha256" || in.Base64Digest != want {
		t.Fatalf("unexpected integrity: %+v want digest %s", in, want)
	}
	if warning != "" {
		t.Fatalf("unexpected warning: %q", warning)
	}
}
