// Package purl derives package URLs (https://github.com/package-url/purl-spec)
// for decoded packages, giving every issue a portable, tool-agnostic
// identity alongside the lockfile's own name/version pair.
package purl

import (
	"github.com/package-url/packageurl-go"

	"github.com/ind4skylivey/lockb-xray/internal/lockfile"
)

// For returns the PURL string for pkg, or "" when the resolution kind has
// no well-defined package-url type (root, symlink, file, unknown).
func For(pkg lockfile.Package) string {
	switch pkg.Resolution.Kind {
	case lockfile.ResolutionNpm:
		namespace, name := splitScope(pkg.Name)
		return packageurl.NewPackageURL(packageurl.TypeNPM, namespace, name, pkg.Version, nil, "").ToString()

	case lockfile.ResolutionGithub:
		return packageurl.NewPackageURL(packageurl.TypeGithub, pkg.Resolution.Owner, pkg.Resolution.Repo, pkg.Resolution.Commit, nil, "").ToString()

	case lockfile.ResolutionGit:
		q := packageurl.Qualifiers{{Key: "vcs_url", Value: pkg.Resolution.URL}}
		return packageurl.NewPackageURL("generic", "", pkg.Name, pkg.Resolution.Committish, q, "").ToString()

	case lockfile.ResolutionTarball, lockfile.ResolutionLocalTarball, lockfile.ResolutionSingleFile:
		q := packageurl.Qualifiers{{Key: "download_url", Value: pkg.Resolution.TarballURL}}
		return packageurl.NewPackageURL("generic", "", pkg.Name, pkg.Version, q, "").ToString()

	default:
		return ""
	}
}

// splitScope turns "@scope/name" into purl's namespace/name pair; an
// unscoped name has no namespace.
func splitScope(name string) (namespace, rest string) {
	if len(name) == 0 || name[0] != '@' {
		return "", name
	}
	for i := 1; i < len(name); i++ {
		if name[i] == '/' {
			return name[:i], name[i+1:]
		}
	}
	return "", name
}
