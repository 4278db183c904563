// Package lockfile defines the in-memory model produced by decoding a Bun
// binary lockfile. The model is built in a single decode pass, is immutable
// thereafter, and holds owned copies of any string content extracted from the
// input buffer (so the input buffer need not outlive the model).
package lockfile

// BehaviorFlags is a bitfield describing how a dependency participates in the
// graph. Bit positions mirror bun's own lockfile bitflags; bit 0 is unused.
type BehaviorFlags uint8

const (
	BehaviorProd      BehaviorFlags = 1 << 1
	BehaviorOptional  BehaviorFlags = 1 << 2
	BehaviorDev       BehaviorFlags = 1 << 3
	BehaviorPeer      BehaviorFlags = 1 << 4
	BehaviorWorkspace BehaviorFlags = 1 << 5
	BehaviorBundled   BehaviorFlags = 1 << 6
)

func (b BehaviorFlags) Has(flag BehaviorFlags) bool { return b&flag != 0 }

// ResolutionKind discriminates how a package's contents are obtained.
type ResolutionKind string

const (
	ResolutionRoot         ResolutionKind = "root"
	ResolutionNpm          ResolutionKind = "npm"
	ResolutionGit          ResolutionKind = "git"
	ResolutionGithub       ResolutionKind = "github"
	ResolutionTarball      ResolutionKind = "tarball"
	ResolutionLocalTarball ResolutionKind = "local_tarball"
	ResolutionWorkspace    ResolutionKind = "workspace"
	ResolutionFile         ResolutionKind = "file"
	ResolutionSymlink      ResolutionKind = "symlink"
	ResolutionSingleFile   ResolutionKind = "single_file"
	ResolutionUnknown      ResolutionKind = "unknown"
)

// Resolution is a closed sum type over how a package was resolved. Only the
// fields relevant to Kind are populated; RawTag is set only for Unknown.
type Resolution struct {
	Kind ResolutionKind

	RegistryHost   string // npm
	TarballURL     string // npm (optional), tarball, single_file
	URL            string // git, github (derived display), tarball, single_file
	Committish     string // git
	Owner          string // github
	Repo           string // github
	Commit         string // github
	Path           string // workspace, file, symlink, local_tarball
	WorkspacePath  string // workspace

	RawTag uint8 // unknown
}

// IsTarballLike reports whether the resolution fetches content directly from
// a URL or local path rather than through registry metadata — npm excluded.
func (r Resolution) IsTarballLike() bool {
	switch r.Kind {
	case ResolutionTarball, ResolutionLocalTarball, ResolutionSingleFile:
		return true
	default:
		return false
	}
}

// IntegrityKind discriminates the shape of a package's integrity descriptor.
type IntegrityKind string

const (
	IntegritySRI       IntegrityKind = "sri"
	IntegrityAbsent    IntegrityKind = "absent"
	IntegrityMalformed IntegrityKind = "malformed"
)

// Integrity is a closed sum type for a package's content digest.
type Integrity struct {
	Kind IntegrityKind

	Algorithm    string // sri: sha1 | sha256 | sha384 | sha512
	Base64Digest string // sri

	RawTag uint8 // malformed
}

// SRIString renders the integrity in Subresource Integrity form
// (algo-base64digest), or "" when not an SRI value.
func (i Integrity) SRIString() string {
	if i.Kind != IntegritySRI {
		return ""
	}
	return i.Algorithm + "-" + i.Base64Digest
}

// DependencyEdge is a single entry in a package's dependency list.
type DependencyEdge struct {
	Name               string
	Requirement        string
	Behavior           BehaviorFlags
	ResolvedPackageID  int  // -1 when nil
	HasResolvedPackage bool
}

// Package is a single row of the decoded package table.
type Package struct {
	ID           int
	Name         string
	Version      string
	NameHash     uint64
	Resolution   Resolution
	Integrity    Integrity
	Behavior     BehaviorFlags
	Dependencies []DependencyEdge
	Bin          map[string]string
	Scripts      map[string]string
	Metadata     map[string]string
}

// Override is a trailer-level directive substituting one dependency
// specification for another during resolution.
type Override struct {
	NameHash   uint64
	Dependency DependencyEdge
}

// Patched records a patch applied to a specific resolved package.
type Patched struct {
	NameVersionHash uint64
	PatchFilePath   string
	PatchHash       uint64
}

// Catalog is a named set of dependency specifications referenced by
// workspaces.
type Catalog struct {
	Name         string
	Dependencies []DependencyEdge
}

// Trailers holds all trailer-derived metadata.
type Trailers struct {
	TrustedHashes    []uint64
	HasEmptyTrusted  bool
	Overrides        []Override
	Patched          []Patched
	DefaultCatalog   []DependencyEdge
	Catalogs         []Catalog
	WorkspacesCount  int
	ConfigVersion    int
	HasConfigVersion bool
}

// Lockfile is the full decode result.
type Lockfile struct {
	FormatVersion            uint32
	MetaFlags                uint32
	Packages                 []Package
	Trailers                 Trailers
	ParserWarnings           []string
	FormatVersionUnsupported bool
}

// PackageByID returns the package with the given id, or false if out of range.
func (l *Lockfile) PackageByID(id int) (Package, bool) {
	if id < 0 || id >= len(l.Packages) {
		return Package{}, false
	}
	return l.Packages[id], true
}

// Root returns the package whose resolution kind is root, if present.
func (l *Lockfile) Root() (Package, bool) {
	for _, p := range l.Packages {
		if p.Resolution.Kind == ResolutionRoot {
			return p, true
		}
	}
	return Package{}, false
}
