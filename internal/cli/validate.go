package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/ingestlab/internal/analyze"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool                      `json:"valid"`
	Report  *analyze.ValidationReport `json:"report"`
	Orphans []analyze.OrphanField     `json:"orphan_fields,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [rules] [docs-dir]",
		Short: "Check rule selectors against real documents",
		Long: `Check every resource selector and list field selector against the documents.

Reports how many roots each resource selector matched, per-field coverage
over list items, and warnings for selectors that match nothing. When the
project config has a mapping section, list fields with no target column are
reported as orphans.

Exits 1 when any warning or orphan field is found.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	in, err := loadInputs(opts, args, formatter)
	if err != nil {
		return commandError(formatter, "failed to load inputs", err)
	}

	report, err := analyze.Validate(in.Rules.Doc, in.Docs)
	if err != nil {
		return commandError(formatter, "validation failed", err)
	}

	result := ValidationResult{Report: report}
	if mapping := opts.settings().FieldMapping(); mapping != nil {
		result.Orphans = analyze.OrphanFields(in.Rules.Doc, mapping)
	}
	result.Valid = len(report.Warnings) == 0 && len(result.Orphans) == 0

	if err := formatter.Report(result, func(w io.Writer) { writeValidation(w, result) }); err != nil {
		return err
	}
	if !result.Valid {
		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation found %d warning(s)", len(report.Warnings)+len(result.Orphans)))
	}
	return nil
}

func writeValidation(w io.Writer, result ValidationResult) {
	report := result.Report
	fmt.Fprintf(w, "%s document(s)\n\n", humanize.Comma(int64(report.Documents)))
	for _, rr := range report.Resources {
		fmt.Fprintf(w, "%s (%s): %s selector match(es)", rr.Resource, rr.Kind, humanize.Comma(int64(rr.SelectorCount)))
		if rr.ItemCount > 0 {
			fmt.Fprintf(w, ", %s item(s)", humanize.Comma(int64(rr.ItemCount)))
		}
		fmt.Fprintln(w)
		for _, fc := range rr.Fields {
			fmt.Fprintf(w, "  %-20s %s/%s  %s\n", fc.Field,
				humanize.Comma(int64(fc.MatchedItems)), humanize.Comma(int64(fc.TotalItems)), percent(fc.Coverage))
		}
	}

	for _, o := range result.Orphans {
		fmt.Fprintf(w, "\norphan field %s.%s: %s", o.Resource, o.Field, o.Suggestion)
	}
	if len(result.Orphans) > 0 {
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w)
	if result.Valid {
		fmt.Fprintln(w, "✓ All rules valid")
		return
	}
	fmt.Fprintln(w, "✗ Validation found problems")
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "  %s\n", warning)
	}
}

// percent renders a 0..1 ratio as a percentage with one decimal.
func percent(ratio float64) string {
	return humanize.FtoaWithDigits(ratio*100, 1) + "%"
}
