// Package manifest loads the first-party dependency declarations from a
// package.json file. Parsing tolerates the comments and trailing commas
// real developers leave behind when hand-editing the file; the rest of the
// audit sees only the four extracted name sets.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// Manifest is the set of package names a project declares as first-party
// dependencies, split by the section they were declared in.
type Manifest struct {
	Direct   map[string]struct{}
	Dev      map[string]struct{}
	Optional map[string]struct{}
	Peer     map[string]struct{}
}

type packageJSON struct {
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
}

// Load reads and parses the package.json at path.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	return Parse(raw)
}

// Parse extracts the four dependency sections from package.json source text.
func Parse(raw []byte) (*Manifest, error) {
	clean := jsonc.ToJSON(raw)

	var pkg packageJSON
	if err := json.Unmarshal(clean, &pkg); err != nil {
		return nil, fmt.Errorf("manifest: invalid package.json: %w", err)
	}

	return &Manifest{
		Direct:   keySet(pkg.Dependencies),
		Dev:      keySet(pkg.DevDependencies),
		Optional: keySet(pkg.OptionalDependencies),
		Peer:     keySet(pkg.PeerDependencies),
	}, nil
}

func keySet(m map[string]string) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

// Declares reports whether name appears in any of the four sections.
func (m *Manifest) Declares(name string) bool {
	if m == nil {
		return false
	}
	_, ok := m.Direct[name]
	if ok {
		return true
	}
	_, ok = m.Dev[name]
	if ok {
		return true
	}
	_, ok = m.Optional[name]
	if ok {
		return true
	}
	_, ok = m.Peer[name]
	return ok
}
