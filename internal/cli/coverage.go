package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/ingestlab/internal/analyze"
)

// NewCoverageCommand creates the coverage command.
func NewCoverageCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coverage [rules] [docs-dir]",
		Short: "Measure non-empty ratios per target column",
		Long: `Extract rows with transforms applied and report, per resource and field,
how many rows carry a non-empty value, the distinct value count and the
columns that never received a value. Target columns come from the config
mapping section and default to the field name.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoverage(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runCoverage(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cov, _, err := coverageFor(opts, args, cmd, formatter)
	if err != nil {
		return err
	}
	return formatter.Report(cov, func(w io.Writer) { writeCoverage(w, cov) })
}

// coverageFor loads inputs, extracts with transforms and computes coverage.
// Errors are already reported through formatter.
func coverageFor(opts *RootOptions, args []string, cmd *cobra.Command, formatter *OutputFormatter) (*analyze.CoverageReport, *inputs, error) {
	in, err := loadInputs(opts, args, formatter)
	if err != nil {
		return nil, nil, commandError(formatter, "failed to load inputs", err)
	}
	batch, err := extractBatch(cmd.Context(), in, true, opts.settings().Workers)
	if err != nil {
		return nil, nil, commandError(formatter, "extraction failed", err)
	}
	return analyze.Coverage(in.Rules.Doc, batch.Aggregated, opts.settings().FieldMapping()), in, nil
}

func writeCoverage(w io.Writer, cov *analyze.CoverageReport) {
	for _, rc := range cov.Resources {
		fmt.Fprintf(w, "%s (%s): average %s\n", rc.Resource, rc.Kind, percent(rc.AverageCoverage))
		for _, fs := range rc.Fields {
			target := ""
			if fs.TargetColumn != fs.Field {
				target = " -> " + fs.TargetColumn
			}
			fmt.Fprintf(w, "  %-20s %s/%s  %-6s  %s distinct%s\n", fs.Field,
				humanize.Comma(int64(fs.NonEmpty)), humanize.Comma(int64(fs.TotalRows)),
				percent(fs.CoverageRatio), humanize.Comma(int64(fs.Distinct)), target)
		}
		if len(rc.MissingColumns) > 0 {
			fmt.Fprintf(w, "  missing: %v\n", rc.MissingColumns)
		}
	}
	fmt.Fprintf(w, "\noverall %s (%s of %s cells, %d target column(s))\n", percent(cov.OverallRatio),
		humanize.Comma(int64(cov.TotalNonEmptyCells)), humanize.Comma(int64(cov.TotalPossibleCells)), cov.TotalTargetColumns)
}

// GatesOptions holds flags for the gates command.
type GatesOptions struct {
	*RootOptions
	GatesFile string
}

// GatesResult is the gates command payload.
type GatesResult struct {
	Coverage *analyze.CoverageReport `json:"coverage"`
	Gates    *analyze.GateReport     `json:"gates"`
}

// NewGatesCommand creates the gates command.
func NewGatesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GatesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "gates [rules] [docs-dir]",
		Short: "Check coverage quality gates",
		Long: `Evaluate minimum coverage thresholds per resource field.

Gates come from the rule document, then the config quality_gates section,
then --gates; later sources win for the same resource and field. Both the
flat "resource.field: 0.9" and nested "resource: {field: 0.9}" forms are
accepted. Exits 1 when any gate fails.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGates(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.GatesFile, "gates", "", "YAML or JSON file of extra gates")

	return cmd
}

func runGates(opts *GatesOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	gates, err := callerGates(opts.RootOptions, opts.GatesFile)
	if err != nil {
		return commandError(formatter, "failed to load gates", err)
	}

	cov, in, err := coverageFor(opts.RootOptions, args, cmd, formatter)
	if err != nil {
		return err
	}
	all := analyze.Gates(in.Rules.Doc.Gates()).Merge(gates)
	formatter.VerboseLog("Evaluating %d gate(s)", len(all))

	result := GatesResult{Coverage: cov, Gates: analyze.EvaluateGates(cov, all)}
	if err := formatter.Report(result, func(w io.Writer) { writeGates(w, result.Gates) }); err != nil {
		return err
	}
	if !result.Gates.Passed {
		return NewExitError(ExitFailure, fmt.Sprintf("%d quality gate(s) failed", result.Gates.FailedCount))
	}
	return nil
}

// callerGates merges config gates with an optional gates file.
func callerGates(opts *RootOptions, path string) (analyze.Gates, error) {
	gates, err := opts.settings().Gates()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return gates, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("gates file: %v", err), Err: err}
	}
	// YAML is a superset of JSON for this shape.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("%s: %v", path, err), Err: err}
	}
	fromFile, err := analyze.ParseGates(raw)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("%s: %v", path, err), Err: err}
	}
	return gates.Merge(fromFile), nil
}

func writeGates(w io.Writer, report *analyze.GateReport) {
	if len(report.Results) == 0 {
		fmt.Fprintln(w, "no gates configured")
	}
	for _, r := range report.Results {
		mark := "✓"
		if !r.Passed {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s.%s  %s (min %s)\n", mark, r.Resource, r.Field, percent(r.Ratio), percent(r.Threshold))
	}
	if report.Passed {
		fmt.Fprintln(w, "\nall gates passed")
		return
	}
	fmt.Fprintf(w, "\n%d gate(s) failed\n", report.FailedCount)
}
