package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/ingestlab/internal/analyze"
	"github.com/roach88/ingestlab/internal/extract"
)

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	Transforms bool
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff <rules-a> <rules-b> [docs-dir]",
		Short: "Compare the rows two rule documents extract",
		Long: `Extract the same documents with two rule documents and report, per
resource, how many rows only one side produced and how many both did.

Example:
  ingestlab diff rules-v1.yaml rules-v2.yaml ./pages --transforms`,
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Transforms, "transforms", false, "apply list field transforms before comparing")

	return cmd
}

func runDiff(opts *DiffOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	a, err := LoadRules(args[0])
	if err != nil {
		return commandError(formatter, "failed to load rules", err)
	}
	b, err := LoadRules(args[1])
	if err != nil {
		return commandError(formatter, "failed to load rules", err)
	}

	docsDir := opts.settings().Documents
	if len(args) > 2 {
		docsDir = args[2]
	}
	if docsDir == "" {
		err := &LoadError{Code: ErrCodeMissingArg, Message: "no documents directory given (argument or config \"documents\")"}
		return commandError(formatter, "failed to load inputs", err)
	}
	docs, err := LoadDocuments(docsDir)
	if err != nil {
		return commandError(formatter, "failed to load documents", err)
	}

	report := analyze.DiffRules(a.Doc, b.Doc, docs, extract.Options{ApplyTransforms: opts.Transforms})
	return formatter.Report(report, func(w io.Writer) { writeDiff(w, report) })
}

func writeDiff(w io.Writer, report *analyze.DiffReport) {
	for _, rd := range report.Resources {
		kinds := ""
		if rd.KindA != rd.KindB {
			kinds = fmt.Sprintf("  (%s -> %s)", orNone(string(rd.KindA)), orNone(string(rd.KindB)))
		}
		fmt.Fprintf(w, "%-20s a=%s b=%s  only-a %s  only-b %s  both %s%s\n", rd.Resource,
			humanize.Comma(int64(rd.CountA)), humanize.Comma(int64(rd.CountB)),
			humanize.Comma(int64(rd.OnlyA)), humanize.Comma(int64(rd.OnlyB)), humanize.Comma(int64(rd.Overlap)), kinds)
	}
	fmt.Fprintf(w, "\ntotal: only-a %s, only-b %s, both %s\n",
		humanize.Comma(int64(report.TotalOnlyA)), humanize.Comma(int64(report.TotalOnlyB)), humanize.Comma(int64(report.TotalOverlap)))
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
