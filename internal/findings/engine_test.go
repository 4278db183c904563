package findings

import (
	"testing"

	"github.com/ind4skylivey/lockb-xray/internal/lockfile"
	"github.com/ind4skylivey/lockb-xray/internal/manifest"
)

type fakePolicy struct {
	allow     map[string]struct{}
	ignoreReg map[string]struct{}
	ignorePkg map[string]struct{}
	threshold Severity
	verbose   bool
}

func newFakePolicy() fakePolicy {
	return fakePolicy{
		allow:     map[string]struct{}{"registry.npmjs.org": {}, "npmjs.org": {}},
		ignoreReg: map[string]struct{}{},
		ignorePkg: map[string]struct{}{},
		threshold: SeverityWarn,
	}
}

func (p fakePolicy) IsAllowedRegistry(host string) bool  { _, ok := p.allow[host]; return ok }
func (p fakePolicy) IsIgnoredRegistry(host string) bool   { _, ok := p.ignoreReg[host]; return ok }
func (p fakePolicy) IsIgnoredPackage(name string) bool     { _, ok := p.ignorePkg[name]; return ok }
func (p fakePolicy) Threshold() Severity                   { return p.threshold }
func (p fakePolicy) IsVerbose() bool                        { return p.verbose }

func rootWith(deps ...lockfile.DependencyEdge) lockfile.Package {
	return lockfile.Package{ID: 0, Name: "root", Resolution: lockfile.Resolution{Kind: lockfile.ResolutionRoot}, Dependencies: deps}
}

func TestEvaluateCleanLockfileHasNoFindings(t *testing.T) {
	lf := &lockfile.Lockfile{
		Packages: []lockfile.Package{
			rootWith(
				lockfile.DependencyEdge{Name: "a", ResolvedPackageID: 1, HasResolvedPackage: true},
				lockfile.DependencyEdge{Name: "b", ResolvedPackageID: 2, HasResolvedPackage: true},
			),
			{ID: 1, Name: "a", Version: "1.0.0", Resolution: lockfile.Resolution{Kind: lockfile.ResolutionNpm, RegistryHost: "registry.npmjs.org"}, Integrity: lockfile.Integrity{Kind: lockfile.IntegritySRI, Algorithm: "sha512", Base64Digest: "AAAA"}},
			{ID: 2, Name: "b", Version: "2.0.0", Resolution: lockfile.Resolution{Kind: lockfile.ResolutionNpm, RegistryHost: "registry.npmjs.org"}, Integrity: lockfile.Integrity{Kind: lockfile.IntegritySRI, Algorithm: "sha512", Base64Digest: "BBBB"}},
		},
	}
	mf := &manifest.Manifest{Direct: map[string]struct{}{"a": {}, "b": {}}}

	res := Evaluate(lf, mf, newFakePolicy())
	if len(res.Issues) != 0 {
		t.Fatalf("expected no issues, got %+v", res.Issues)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code: got %d want 0", res.ExitCode)
	}
	if res.TotalPackages != 3 {
		t.Fatalf("total packages: got %d want 3", res.TotalPackages)
	}
}

func TestEvaluateTamperedRegistryIsHigh(t *testing.T) {
	lf := &lockfile.Lockfile{
		Packages: []lockfile.Package{
			rootWith(lockfile.DependencyEdge{Name: "lodash", ResolvedPackageID: 1, HasResolvedPackage: true}),
			{ID: 1, Name: "lodash", Version: "4.17.21", Resolution: lockfile.Resolution{Kind: lockfile.ResolutionNpm, TarballURL: "https://evil.com/lodash.tgz"}},
		},
	}
	mf := &manifest.Manifest{Direct: map[string]struct{}{"lodash": {}}}

	res := Evaluate(lf, mf, newFakePolicy())
	if len(res.Issues) != 1 {
		t.Fatalf("expected exactly one issue, got %+v", res.Issues)
	}
	iss := res.Issues[0]
	if iss.Kind != KindUntrustedRegistry || iss.Package != "lodash" || iss.Version != "4.17.21" || iss.Detail != "evil.com" {
		t.Fatalf("unexpected issue: %+v", iss)
	}
	if iss.Severity != SeverityHigh {
		t.Fatalf("severity: got %v want high", iss.Severity)
	}
	if res.ExitCode != 2 {
		t.Fatalf("exit code: got %d want 2", res.ExitCode)
	}
}

func TestEvaluatePhantomDependencyOnlyForDirectChildren(t *testing.T) {
	lf := &lockfile.Lockfile{
		Packages: []lockfile.Package{
			rootWith(lockfile.DependencyEdge{Name: "ghost", ResolvedPackageID: 1, HasResolvedPackage: true}),
			{ID: 1, Name: "ghost", Version: "0.0.1", Resolution: lockfile.Resolution{Kind: lockfile.ResolutionNpm, RegistryHost: "registry.npmjs.org"}},
		},
	}
	mf := &manifest.Manifest{Direct: map[string]struct{}{}}

	res := Evaluate(lf, mf, newFakePolicy())
	if len(res.Issues) != 1 || res.Issues[0].Kind != KindPhantomDependency {
		t.Fatalf("expected one phantom_dependency issue, got %+v", res.Issues)
	}
	if res.Issues[0].Package != "ghost" || res.Issues[0].Version != "0.0.1" {
		t.Fatalf("unexpected issue: %+v", res.Issues[0])
	}
}

func TestEvaluateTransitiveOnlyPackageIsNeverPhantom(t *testing.T) {
	lf := &lockfile.Lockfile{
		Packages: []lockfile.Package{
			rootWith(lockfile.DependencyEdge{Name: "a", ResolvedPackageID: 1, HasResolvedPackage: true}),
			{ID: 1, Name: "a", Version: "1.0.0", Resolution: lockfile.Resolution{Kind: lockfile.ResolutionNpm}, Dependencies: []lockfile.DependencyEdge{
				{Name: "transitive-ghost", ResolvedPackageID: 2, HasResolvedPackage: true},
			}},
			{ID: 2, Name: "transitive-ghost", Version: "9.9.9", Resolution: lockfile.Resolution{Kind: lockfile.ResolutionNpm}},
		},
	}
	mf := &manifest.Manifest{Direct: map[string]struct{}{"a": {}}}

	res := Evaluate(lf, mf, newFakePolicy())
	for _, iss := range res.Issues {
		if iss.Package == "transitive-ghost" {
			t.Fatalf("transitive-only package must never be reported as phantom_dependency: %+v", iss)
		}
	}
}

func TestEvaluateDirectWorkspaceMemberIsNeverPhantom(t *testing.T) {
	lf := &lockfile.Lockfile{
		Packages: []lockfile.Package{
			rootWith(lockfile.DependencyEdge{Name: "@acme/ui", ResolvedPackageID: 1, HasResolvedPackage: true}),
			{ID: 1, Name: "@acme/ui", Version: "0.0.0", Resolution: lockfile.Resolution{Kind: lockfile.ResolutionWorkspace, WorkspacePath: "packages/ui"}},
		},
	}
	mf := &manifest.Manifest{}

	res := Evaluate(lf, mf, newFakePolicy())
	for _, iss := range res.Issues {
		if iss.Package == "@acme/ui" {
			t.Fatalf("direct workspace member must never be reported as phantom_dependency: %+v", iss)
		}
	}
}

func TestIgnorePackageSuppressesAllItsFindings(t *testing.T) {
	lf := &lockfile.Lockfile{
		Packages: []lockfile.Package{
			rootWith(lockfile.DependencyEdge{Name: "lodash", ResolvedPackageID: 1, HasResolvedPackage: true}),
			{ID: 1, Name: "lodash", Version: "4.17.21", Resolution: lockfile.Resolution{Kind: lockfile.ResolutionNpm, TarballURL: "https://evil.com/lodash.tgz"}},
		},
	}
	mf := &manifest.Manifest{Direct: map[string]struct{}{"lodash": {}}}

	p := newFakePolicy()
	p.ignorePkg["lodash"] = struct{}{}

	res := Evaluate(lf, mf, p)
	if len(res.Issues) != 0 {
		t.Fatalf("expected ignored package to suppress all findings, got %+v", res.Issues)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code: got %d want 0", res.ExitCode)
	}
}

func TestThresholdMonotonicity(t *testing.T) {
	lf := &lockfile.Lockfile{
		Packages: []lockfile.Package{
			rootWith(lockfile.DependencyEdge{Name: "lodash", ResolvedPackageID: 1, HasResolvedPackage: true}),
			{ID: 1, Name: "lodash", Version: "4.17.21", Resolution: lockfile.Resolution{Kind: lockfile.ResolutionNpm, TarballURL: "https://evil.com/lodash.tgz"}},
		},
	}
	mf := &manifest.Manifest{Direct: map[string]struct{}{"lodash": {}}}

	low := newFakePolicy()
	low.threshold = SeverityInfo
	high := newFakePolicy()
	high.threshold = SeverityHigh

	resLow := Evaluate(lf, mf, low)
	resHigh := Evaluate(lf, mf, high)
	if resLow.ExitCode < resHigh.ExitCode {
		t.Fatalf("raising the threshold must not raise the exit code: low=%d high=%d", resLow.ExitCode, resHigh.ExitCode)
	}
	if len(resLow.Issues) != len(resHigh.Issues) {
		t.Fatalf("issue set must be independent of threshold: low=%d high=%d", len(resLow.Issues), len(resHigh.Issues))
	}
}
