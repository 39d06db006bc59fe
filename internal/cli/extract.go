package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/ingestlab/internal/extract"
)

// ExtractOptions holds flags for the extract command.
type ExtractOptions struct {
	*RootOptions
	Transforms bool
	Workers    int
	Rows       bool
}

// NewExtractCommand creates the extract command.
func NewExtractCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExtractOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "extract [rules] [docs-dir]",
		Short: "Extract and deduplicate rows from documents",
		Long: `Run the rule document over every document and aggregate the rows.

Rows are deduplicated per resource across documents; the report shows total,
unique and duplicate counts per resource and how many new rows each document
contributed. Without --transforms rows carry raw text.

Example:
  ingestlab extract rules.yaml ./pages --transforms --workers 4
  ingestlab extract --format json --rows`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Transforms, "transforms", false, "apply list field transforms (default from config apply_transforms)")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "documents extracted concurrently (default from config workers)")
	cmd.Flags().BoolVar(&opts.Rows, "rows", false, "print every aggregated row in text output")

	return cmd
}

func runExtract(opts *ExtractOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	in, err := loadInputs(opts.RootOptions, args, formatter)
	if err != nil {
		return commandError(formatter, "failed to load inputs", err)
	}

	cfg := opts.settings()
	transforms := cfg.ApplyTransforms
	if cmd.Flags().Changed("transforms") {
		transforms = opts.Transforms
	}
	workers := cfg.Workers
	if cmd.Flags().Changed("workers") {
		workers = opts.Workers
	}

	batch, err := extractBatch(cmd.Context(), in, transforms, workers)
	if err != nil {
		return commandError(formatter, "extraction failed", err)
	}

	return formatter.Report(batch, func(w io.Writer) { writeBatch(w, batch, opts.Rows) })
}

// extractBatch runs batch extraction with the process logger.
func extractBatch(ctx context.Context, in *inputs, transforms bool, workers int) (*extract.BatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return extract.ExtractBatch(ctx, in.Rules.Doc, in.Docs, extract.BatchOptions{
		Options: extract.Options{ApplyTransforms: transforms, Logger: slog.Default()},
		Workers: workers,
	})
}

func writeBatch(w io.Writer, batch *extract.BatchResult, rows bool) {
	fmt.Fprintf(w, "%s document(s), %s node(s) in %s\n\n",
		humanize.Comma(int64(batch.Documents)), humanize.Comma(int64(batch.NodeCount)), batch.Elapsed.Round(time.Millisecond))

	for _, agg := range batch.ResourceAggregates {
		fmt.Fprintf(w, "%-20s %s total, %s unique, %s duplicate\n", agg.Resource,
			humanize.Comma(int64(agg.TotalRecords)), humanize.Comma(int64(agg.UniqueRecords)), humanize.Comma(int64(agg.DuplicateRecords)))
		if !rows {
			continue
		}
		for _, row := range batch.Aggregated[agg.Resource] {
			data, err := json.Marshal(row)
			if err != nil {
				fmt.Fprintf(w, "  <%v>\n", err)
				continue
			}
			fmt.Fprintf(w, "  %s\n", data)
		}
	}

	if len(batch.FileStats) > 0 {
		fmt.Fprintln(w)
		for _, fs := range batch.FileStats {
			fmt.Fprintf(w, "%s [%s]: %s record(s), %s new, %s overlapping\n", fs.Document, fs.Resource,
				humanize.Comma(int64(fs.RecordCount)), humanize.Comma(int64(fs.Added)), humanize.Comma(int64(fs.Overlapping)))
		}
	}

	if len(batch.Warnings) > 0 {
		fmt.Fprintf(w, "\n%d warning(s)\n", len(batch.Warnings))
		for _, warning := range batch.Warnings {
			fmt.Fprintf(w, "  %s\n", warning)
		}
	}
}
