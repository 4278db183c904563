// Package report assembles the finding engine's output and the decoded
// lockfile's trailer metadata into the stable JSON contract the CLI and
// any downstream consumer depend on.
package report

import (
	"github.com/ind4skylivey/lockb-xray/internal/findings"
	"github.com/ind4skylivey/lockb-xray/internal/lockfile"
	"github.com/ind4skylivey/lockb-xray/internal/purl"
)

// Summary is the top-level counters block.
type Summary struct {
	TotalPackages  int      `json:"total_packages"`
	IssuesTotal    int      `json:"issues_total"`
	HighCount      int      `json:"high_count"`
	WarnCount      int      `json:"warn_count"`
	InfoCount      int      `json:"info_count"`
	ExitCode       int      `json:"exit_code"`
	ParserWarnings []string `json:"parser_warnings"`
}

// TrailersView mirrors the decoded trailer model for verbose output.
type TrailersView struct {
	TrustedHashes   []uint64                  `json:"trusted_hashes"`
	HasEmptyTrusted bool                      `json:"has_empty_trusted"`
	Overrides       []lockfile.Override       `json:"overrides"`
	Patched         []lockfile.Patched        `json:"patched"`
	Catalogs        []lockfile.Catalog        `json:"catalogs"`
	DefaultCatalog  []lockfile.DependencyEdge `json:"default_catalog"`
	WorkspacesCount int                       `json:"workspaces_count"`
}

// Report is the full audit output.
type Report struct {
	Summary  Summary          `json:"summary"`
	Issues   []findings.Issue `json:"issues"`
	Trailers *TrailersView    `json:"trailers,omitempty"`
}

// Assemble builds a Report from a finding engine result and the lockfile it
// was evaluated against. Each issue gets an additive purl field derived
// from the matching package, when one exists. verbose controls whether the
// trailers view is attached.
func Assemble(lf *lockfile.Lockfile, res findings.Result, verbose bool) Report {
	byName := make(map[string]lockfile.Package, len(lf.Packages))
	for _, pkg := range lf.Packages {
		if _, exists := byName[pkg.Name]; !exists {
			byName[pkg.Name] = pkg
		}
	}

	issues := make([]findings.Issue, len(res.Issues))
	copy(issues, res.Issues)
	for i := range issues {
		if pkg, ok := byName[issues[i].Package]; ok {
			issues[i].PURL = purl.For(pkg)
		}
	}

	rep := Report{
		Summary: Summary{
			TotalPackages:  res.TotalPackages,
			IssuesTotal:    len(issues),
			HighCount:      res.HighCount,
			WarnCount:      res.WarnCount,
			InfoCount:      res.InfoCount,
			ExitCode:       res.ExitCode,
			ParserWarnings: dedupeOrdered(lf.ParserWarnings),
		},
		Issues: issues,
	}

	if verbose {
		rep.Trailers = &TrailersView{
			TrustedHashes:   lf.Trailers.TrustedHashes,
			HasEmptyTrusted: lf.Trailers.HasEmptyTrusted,
			Overrides:       lf.Trailers.Overrides,
			Patched:         lf.Trailers.Patched,
			Catalogs:        lf.Trailers.Catalogs,
			DefaultCatalog:  lf.Trailers.DefaultCatalog,
			WorkspacesCount: lf.Trailers.WorkspacesCount,
		}
	}

	return rep
}

func dedupeOrdered(warnings []string) []string {
	seen := make(map[string]struct{}, len(warnings))
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
