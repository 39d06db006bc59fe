package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ingestlab/internal/analyze"
)

// NewConstraintsCommand creates the constraints command.
func NewConstraintsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "constraints [rules] [docs-dir]",
		Short: "Simulate unique and reference constraints on extracted rows",
		Long: `Extract rows with transforms applied and look for duplicate ids and
references to parent ids that were not extracted. Reference checks are
heuristic: a field named "<parent>_id" points at resource "<parent>" or
"<parent>s". Exits 1 when any issue is found.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConstraints(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runConstraints(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	in, err := loadInputs(opts, args, formatter)
	if err != nil {
		return commandError(formatter, "failed to load inputs", err)
	}
	batch, err := extractBatch(cmd.Context(), in, true, opts.settings().Workers)
	if err != nil {
		return commandError(formatter, "extraction failed", err)
	}

	report := analyze.SimulateConstraints(in.Rules.Doc, batch.Aggregated)
	if err := formatter.Report(report, func(w io.Writer) { writeConstraints(w, report) }); err != nil {
		return err
	}
	if report.HasIssues() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d constraint issue(s)", len(report.Issues)))
	}
	return nil
}

func writeConstraints(w io.Writer, report *analyze.ConstraintReport) {
	if !report.HasIssues() {
		fmt.Fprintln(w, "✓ No constraint issues")
		return
	}
	fmt.Fprintf(w, "✗ %d constraint issue(s)\n\n", len(report.Issues))
	for _, issue := range report.Issues {
		fmt.Fprintf(w, "  [%s] %s.%s: %s (rows %v)\n", issue.Kind, issue.Resource, issue.Column, issue.Message, issue.RowIndexes)
	}
}
