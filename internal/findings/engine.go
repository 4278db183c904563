// Package findings implements the pure function from a decoded lockfile,
// an optional manifest, and policy inputs to an ordered, deterministic
// list of findings plus severity counts and an exit code.
package findings

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/ind4skylivey/lockb-xray/internal/lockfile"
	"github.com/ind4skylivey/lockb-xray/internal/manifest"
)

// builtinSuspiciousRegistries are always HIGH regardless of policy.
var builtinSuspiciousRegistries = map[string]struct{}{
	"evil.com": {},
}

// PolicyInput is the subset of policy.Policy the engine depends on. Kept
// as an interface here (rather than importing internal/policy directly) so
// the two packages don't form an import cycle.
type PolicyInput interface {
	IsAllowedRegistry(host string) bool
	IsIgnoredRegistry(host string) bool
	IsIgnoredPackage(name string) bool
	Threshold() Severity
	IsVerbose() bool
}

// Result is the finding engine's full output.
type Result struct {
	Issues        []Issue
	InfoCount     int
	WarnCount     int
	HighCount     int
	ExitCode      int
	TotalPackages int
}

var prereleasePattern = regexp.MustCompile(`-[0-9A-Za-z.]+$`)

// Evaluate runs every rule over lf in the fixed order the rules are
// declared, applies policy suppression, assigns sequential ids, and
// computes severity counts and the exit code.
func Evaluate(lf *lockfile.Lockfile, mf *manifest.Manifest, p PolicyInput) Result {
	var raw []Issue

	raw = append(raw, ruleLockfileVersionUnsupported(lf)...)
	raw = append(raw, ruleParserWarnings(lf, p)...)
	raw = append(raw, rulePhantomDependency(lf, mf)...)
	raw = append(raw, ruleUntrustedRegistry(lf, p)...)
	raw = append(raw, ruleSuspiciousVersion(lf)...)
	raw = append(raw, ruleIntegrityAbsent(lf)...)
	raw = append(raw, ruleIntegrityMalformed(lf)...)
	raw = append(raw, ruleOverrideApplied(lf)...)
	raw = append(raw, rulePatchedDependency(lf)...)

	filtered := make([]Issue, 0, len(raw))
	for _, iss := range raw {
		if p.IsIgnoredPackage(iss.Package) {
			continue
		}
		if (iss.Kind == KindUntrustedRegistry) && p.IsIgnoredRegistry(iss.Detail) {
			continue
		}
		filtered = append(filtered, iss)
	}

	res := Result{TotalPackages: len(lf.Packages)}
	for i := range filtered {
		filtered[i].ID = i + 1
		switch filtered[i].Severity {
		case SeverityInfo:
			res.InfoCount++
		case SeverityWarn:
			res.WarnCount++
		case SeverityHigh:
			res.HighCount++
		}
	}
	res.Issues = filtered
	res.ExitCode = exitCode(filtered, p.Threshold())
	return res
}

func exitCode(issues []Issue, threshold Severity) int {
	maxSev := Severity(-1)
	for _, iss := range issues {
		if iss.Severity < threshold {
			continue
		}
		if iss.Severity > maxSev {
			maxSev = iss.Severity
		}
	}
	switch {
	case maxSev < 0:
		return 0
	case maxSev == SeverityHigh:
		return 2
	default:
		return 1
	}
}

// 1. lockfile_version_unsupported — HIGH.
func ruleLockfileVersionUnsupported(lf *lockfile.Lockfile) []Issue {
	if !lf.FormatVersionUnsupported {
		return nil
	}
	root, _ := lf.Root()
	return []Issue{{
		Severity: SeverityHigh,
		Kind:     KindLockfileVersionUnsupported,
		Package:  root.Name,
		Version:  root.Version,
		Detail:   fmt.Sprintf("format_version %d exceeds the supported maximum", lf.FormatVersion),
	}}
}

// 2. parser_warning — INFO, only surfaced as issues under verbose.
func ruleParserWarnings(lf *lockfile.Lockfile, p PolicyInput) []Issue {
	if !p.IsVerbose() {
		return nil
	}
	out := make([]Issue, 0, len(lf.ParserWarnings))
	for _, w := range lf.ParserWarnings {
		out = append(out, Issue{Severity: SeverityInfo, Kind: KindParserWarning, Detail: w})
	}
	return out
}

// 3. phantom_dependency — WARN. Only direct children of the root package
// count; transitive-only packages are exempt.
func rulePhantomDependency(lf *lockfile.Lockfile, mf *manifest.Manifest) []Issue {
	if mf == nil {
		return nil
	}
	root, ok := lf.Root()
	if !ok {
		return nil
	}

	direct := make(map[string]struct{}, len(root.Dependencies))
	for _, dep := range root.Dependencies {
		direct[dep.Name] = struct{}{}
	}

	var out []Issue
	for _, pkg := range lf.Packages {
		if pkg.Resolution.Kind == lockfile.ResolutionRoot || pkg.Resolution.Kind == lockfile.ResolutionWorkspace {
			continue
		}
		if _, isDirect := direct[pkg.Name]; !isDirect {
			continue
		}
		if mf.Declares(pkg.Name) {
			continue
		}
		out = append(out, Issue{
			Severity: SeverityWarn,
			Kind:     KindPhantomDependency,
			Package:  pkg.Name,
			Version:  pkg.Version,
			Detail:   "present in lockfile but not declared in any manifest dependency section",
		})
	}
	return out
}

// 4. untrusted_registry — HIGH for the built-in suspicious set, WARN for
// anything outside the allowlist.
func ruleUntrustedRegistry(lf *lockfile.Lockfile, p PolicyInput) []Issue {
	var out []Issue
	for _, pkg := range lf.Packages {
		if pkg.Resolution.Kind != lockfile.ResolutionNpm {
			continue
		}
		host := registryHost(pkg.Resolution)
		if host == "" {
			continue
		}
		if _, suspicious := builtinSuspiciousRegistries[host]; suspicious {
			out = append(out, Issue{
				Severity: SeverityHigh,
				Kind:     KindUntrustedRegistry,
				Package:  pkg.Name,
				Version:  pkg.Version,
				Detail:   host,
			})
			continue
		}
		if !p.IsAllowedRegistry(host) {
			out = append(out, Issue{
				Severity: SeverityWarn,
				Kind:     KindUntrustedRegistry,
				Package:  pkg.Name,
				Version:  pkg.Version,
				Detail:   host,
			})
		}
	}
	return out
}

// registryHost returns the resolution's registry host, derived by the
// decoder at decode time. It falls back to parsing the tarball URL itself
// only for resolutions built outside that decode path (e.g. test fixtures),
// and finally to npmjs.org when nothing else is present.
func registryHost(r lockfile.Resolution) string {
	if r.RegistryHost != "" {
		return r.RegistryHost
	}
	if r.TarballURL == "" {
		return "npmjs.org"
	}
	u, err := url.Parse(r.TarballURL)
	if err != nil || u.Host == "" {
		return "npmjs.org"
	}
	return strings.ToLower(u.Host)
}

// 5. suspicious_version — WARN.
func ruleSuspiciousVersion(lf *lockfile.Lockfile) []Issue {
	var out []Issue
	for _, pkg := range lf.Packages {
		switch pkg.Resolution.Kind {
		case lockfile.ResolutionGit, lockfile.ResolutionFile, lockfile.ResolutionSymlink, lockfile.ResolutionTarball:
			out = append(out, Issue{
				Severity: SeverityWarn,
				Kind:     KindSuspiciousVersion,
				Package:  pkg.Name,
				Version:  pkg.Version,
				Detail:   fmt.Sprintf("resolved via %s rather than a registry", pkg.Resolution.Kind),
			})
		case lockfile.ResolutionGithub:
			if prereleasePattern.MatchString(pkg.Version) {
				out = append(out, Issue{
					Severity: SeverityWarn,
					Kind:     KindSuspiciousVersion,
					Package:  pkg.Name,
					Version:  pkg.Version,
					Detail:   "prerelease-like version combined with a git-based resolution",
				})
			}
		}
	}
	return out
}

// 6. integrity_absent — WARN, npm or tarball resolutions only.
func ruleIntegrityAbsent(lf *lockfile.Lockfile) []Issue {
	var out []Issue
	for _, pkg := range lf.Packages {
		if pkg.Integrity.Kind != lockfile.IntegrityAbsent {
			continue
		}
		if pkg.Resolution.Kind != lockfile.ResolutionNpm && !pkg.Resolution.IsTarballLike() {
			continue
		}
		out = append(out, Issue{
			Severity: SeverityWarn,
			Kind:     KindIntegrityAbsent,
			Package:  pkg.Name,
			Version:  pkg.Version,
			Detail:   "no integrity descriptor recorded for this resolution",
		})
	}
	return out
}

// 7. integrity_malformed — HIGH.
func ruleIntegrityMalformed(lf *lockfile.Lockfile) []Issue {
	var out []Issue
	for _, pkg := range lf.Packages {
		if pkg.Integrity.Kind != lockfile.IntegrityMalformed {
			continue
		}
		out = append(out, Issue{
			Severity: SeverityHigh,
			Kind:     KindIntegrityMalformed,
			Package:  pkg.Name,
			Version:  pkg.Version,
			Detail:   fmt.Sprintf("unrecognized integrity tag %d", pkg.Integrity.RawTag),
		})
	}
	return out
}

// 8. override_applied — WARN, one per overrides trailer entry.
func ruleOverrideApplied(lf *lockfile.Lockfile) []Issue {
	out := make([]Issue, 0, len(lf.Trailers.Overrides))
	for _, ov := range lf.Trailers.Overrides {
		out = append(out, Issue{
			Severity: SeverityWarn,
			Kind:     KindOverrideApplied,
			Package:  ov.Dependency.Name,
			Version:  ov.Dependency.Requirement,
			Detail:   "override from overrides trailer",
		})
	}
	return out
}

// 9. patched_dependency — WARN, one per patched trailer entry.
func rulePatchedDependency(lf *lockfile.Lockfile) []Issue {
	out := make([]Issue, 0, len(lf.Trailers.Patched))
	for _, p := range lf.Trailers.Patched {
		out = append(out, Issue{
			Severity: SeverityWarn,
			Kind:     KindPatchedDependency,
			Detail:   fmt.Sprintf("patch applied from %s", p.PatchFilePath),
		})
	}
	return out
}
