package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ind4skylivey/lockb-xray/internal/decode"
	"github.com/ind4skylivey/lockb-xray/internal/findings"
	"github.com/ind4skylivey/lockb-xray/internal/manifest"
	"github.com/ind4skylivey/lockb-xray/internal/policy"
	"github.com/ind4skylivey/lockb-xray/internal/render"
	"github.com/ind4skylivey/lockb-xray/internal/report"
)

// exitCodeFatal is returned for conditions that never reach the finding
// engine: a missing file, a corrupt manifest, or a strict-mode decode
// failure. It is distinct from the 0/1/2 codes the finding engine computes
// from severity, so CI can tell "we found risk" apart from "we couldn't
// even read the lockfile".
const exitCodeFatal = 3

// auditOptions holds the resolved flag values for one invocation of the
// audit command, separated from cobra's flag plumbing so the audit logic
// itself can be exercised without a process exit.
type auditOptions struct {
	lockfilePath      string
	jsonOutput        bool
	verbose           bool
	severityThreshold string
	severitySet       bool
	allowRegistry     []string
	ignoreRegistry    []string
	ignorePackage     []string
	packageJSONPath   string
	configPath        string
}

// runAudit decodes the lockfile at opts.lockfilePath, evaluates it, writes
// the rendered report to out, and returns the resulting report so the
// caller can decide what to do with its exit code. It never calls os.Exit.
func runAudit(opts auditOptions, out io.Writer) (report.Report, error) {
	pol := policy.Default()
	for _, h := range opts.allowRegistry {
		pol.AllowRegistry[h] = struct{}{}
	}
	for _, h := range opts.ignoreRegistry {
		pol.IgnoreRegistry[h] = struct{}{}
	}
	for _, n := range opts.ignorePackage {
		pol.IgnorePackage[n] = struct{}{}
	}

	if opts.severitySet {
		sev, ok := findings.ParseSeverity(opts.severityThreshold)
		if !ok {
			return report.Report{}, fmt.Errorf("invalid --severity-threshold %q", opts.severityThreshold)
		}
		pol.SeverityThreshold = sev
	}
	if opts.verbose {
		pol.Verbose = true
	}

	if opts.configPath != "" {
		if err := pol.MergeConfigFile(opts.configPath, opts.severitySet, opts.verbose); err != nil {
			return report.Report{}, err
		}
	}

	buf, err := os.ReadFile(opts.lockfilePath)
	if err != nil {
		return report.Report{}, fmt.Errorf("reading lockfile: %w", err)
	}

	lf, err := decode.Decode(buf, decode.DefaultOptions())
	if err != nil {
		if errors.Is(err, decode.ErrUnsupportedVersion) {
			lf, err = decode.Decode(buf, decode.Options{Strict: false})
		}
		if err != nil {
			return report.Report{}, fmt.Errorf("decoding lockfile: %w", err)
		}
	}

	var mf *manifest.Manifest
	if opts.packageJSONPath != "" {
		mf, err = manifest.Load(opts.packageJSONPath)
		if err != nil {
			return report.Report{}, err
		}
	}

	result := findings.Evaluate(lf, mf, pol)
	rep := report.Assemble(lf, result, pol.Verbose)

	if opts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return report.Report{}, fmt.Errorf("encoding report: %w", err)
		}
	} else {
		render.Write(out, rep)
	}

	return rep, nil
}

func newAuditCommand() *cobra.Command {
	var opts auditOptions

	cmd := &cobra.Command{
		Use:   "audit <path>",
		Short: "Decode a lockfile and report findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.lockfilePath = args[0]
			opts.severitySet = cmd.Flags().Changed("severity-threshold")

			rep, err := runAudit(opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			os.Exit(rep.Summary.ExitCode)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "emit the report as JSON instead of a terminal table")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "include trailers and promote parser warnings to issues")
	cmd.Flags().StringVar(&opts.severityThreshold, "severity-threshold", "warn", "minimum severity that affects the exit code (info|warn|high)")
	cmd.Flags().StringSliceVar(&opts.allowRegistry, "allow-registry", nil, "additional trusted registry hosts")
	cmd.Flags().StringSliceVar(&opts.ignoreRegistry, "ignore-registry", nil, "registry hosts to suppress findings for")
	cmd.Flags().StringSliceVar(&opts.ignorePackage, "ignore-package", nil, "package names to suppress all findings for")
	cmd.Flags().StringVar(&opts.packageJSONPath, "package-json", "", "path to package.json for phantom dependency detection")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to a YAML policy config file")

	return cmd
}
