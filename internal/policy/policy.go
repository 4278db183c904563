// Package policy holds the configurable inputs to the finding engine:
// registry allow/ignore lists, ignored package names, the severity
// threshold that drives the exit code, and the verbose flag. Values can be
// supplied from CLI flags and/or merged from an optional YAML config file.
package policy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ind4skylivey/lockb-xray/internal/findings"
)

// defaultAllowedRegistries are trusted regardless of configuration.
var defaultAllowedRegistries = []string{"registry.npmjs.org", "npmjs.org"}

// Policy is the fully-resolved set of inputs the finding engine consumes.
type Policy struct {
	AllowRegistry      map[string]struct{}
	IgnoreRegistry     map[string]struct{}
	IgnorePackage      map[string]struct{}
	SeverityThreshold  findings.Severity
	Verbose            bool
}

// Default returns the policy in effect with no flags and no config file:
// the built-in registry allowlist, nothing ignored, warn threshold.
func Default() Policy {
	p := Policy{
		AllowRegistry:     make(map[string]struct{}),
		IgnoreRegistry:    make(map[string]struct{}),
		IgnorePackage:     make(map[string]struct{}),
		SeverityThreshold: findings.SeverityWarn,
	}
	for _, host := range defaultAllowedRegistries {
		p.AllowRegistry[host] = struct{}{}
	}
	return p
}

// file is the optional YAML config file shape, merged under CLI flags.
type file struct {
	AllowRegistry     []string `yaml:"allow_registry"`
	IgnoreRegistry    []string `yaml:"ignore_registry"`
	IgnorePackage     []string `yaml:"ignore_package"`
	SeverityThreshold string   `yaml:"severity_threshold"`
	Verbose           bool     `yaml:"verbose"`
}

// MergeConfigFile overlays the YAML config file at path onto p, in place.
// Lists are unioned; scalar fields from the file apply only when the CLI
// did not already set a non-default value, which the caller communicates
// by passing the flags it explicitly set as cliSet.
func (p *Policy) MergeConfigFile(path string, cliSetThreshold, cliSetVerbose bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("policy: reading config %s: %w", path, err)
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("policy: parsing config %s: %w", path, err)
	}

	for _, h := range f.AllowRegistry {
		p.AllowRegistry[h] = struct{}{}
	}
	for _, h := range f.IgnoreRegistry {
		p.IgnoreRegistry[h] = struct{}{}
	}
	for _, n := range f.IgnorePackage {
		p.IgnorePackage[n] = struct{}{}
	}
	if !cliSetThreshold && f.SeverityThreshold != "" {
		sev, ok := findings.ParseSeverity(f.SeverityThreshold)
		if !ok {
			return fmt.Errorf("policy: config %s: invalid severity_threshold %q", path, f.SeverityThreshold)
		}
		p.SeverityThreshold = sev
	}
	if !cliSetVerbose && f.Verbose {
		p.Verbose = true
	}
	return nil
}

// IsAllowedRegistry reports whether host is in the resolved allowlist.
func (p Policy) IsAllowedRegistry(host string) bool {
	_, ok := p.AllowRegistry[normalizeHost(host)]
	return ok
}

// IsIgnoredRegistry reports whether host has been suppressed.
func (p Policy) IsIgnoredRegistry(host string) bool {
	_, ok := p.IgnoreRegistry[normalizeHost(host)]
	return ok
}

// IsIgnoredPackage reports whether name has been suppressed.
func (p Policy) IsIgnoredPackage(name string) bool {
	_, ok := p.IgnorePackage[name]
	return ok
}

// Threshold returns the severity threshold driving the exit code.
func (p Policy) Threshold() findings.Severity { return p.SeverityThreshold }

// IsVerbose reports whether verbose reporting was requested.
func (p Policy) IsVerbose() bool { return p.Verbose }

func normalizeHost(host string) string {
	return strings.ToLower(strings.TrimSpace(host))
}
