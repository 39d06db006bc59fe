package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/ingestlab/internal/analyze"
)

// CoerceOptions holds flags for the coerce command.
type CoerceOptions struct {
	*RootOptions
	Strict bool
}

// NewCoerceCommand creates the coerce command.
func NewCoerceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CoerceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "coerce [rules] [docs-dir]",
		Short: "Preview transform chains over raw extracted values",
		Long: `Extract raw text without transforms, then run each list field's transform
chain over every sampled value. Reports per field how many values coerced,
up to 8 coerced samples and up to 5 distinct error messages. Table columns
pass through unchanged. With --strict the command exits 1 when any value
fails to coerce.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoerce(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 when any value fails to coerce")

	return cmd
}

func runCoerce(opts *CoerceOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	in, err := loadInputs(opts.RootOptions, args, formatter)
	if err != nil {
		return commandError(formatter, "failed to load inputs", err)
	}
	batch, err := extractBatch(cmd.Context(), in, false, opts.settings().Workers)
	if err != nil {
		return commandError(formatter, "extraction failed", err)
	}

	report := analyze.CoercionPreview(in.Rules.Doc, analyze.SamplesFromRows(batch.Aggregated))
	if err := formatter.Report(report, func(w io.Writer) { writeCoercion(w, report) }); err != nil {
		return err
	}
	if opts.Strict && report.Failures() > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d value(s) failed to coerce", report.Failures()))
	}
	return nil
}

func writeCoercion(w io.Writer, report *analyze.CoercionReport) {
	for _, f := range report.Fields {
		mark := "✓"
		if f.Failures > 0 {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s.%s  %s/%s coerced\n", mark, f.Resource, f.Field,
			humanize.Comma(int64(f.Success)), humanize.Comma(int64(f.Total)))
		if len(f.CoercedSamples) > 0 {
			samples := make([]string, len(f.CoercedSamples))
			for i, v := range f.CoercedSamples {
				samples[i] = fmt.Sprintf("%q", v.String())
			}
			fmt.Fprintf(w, "    samples: %s\n", strings.Join(samples, ", "))
		}
		for _, msg := range f.Errors {
			fmt.Fprintf(w, "    error: %s\n", msg)
		}
	}
	fmt.Fprintf(w, "\n%d failure(s)\n", report.Failures())
}
