package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/ingestlab/internal/migrate"
)

// SandboxOptions holds flags for the sandbox command.
type SandboxOptions struct {
	*RootOptions
	Types []string
}

// SandboxTableResult reports one sandbox table after the trial insert.
type SandboxTableResult struct {
	migrate.SandboxTable
	Inserted int `json:"inserted_rows"`
}

// SandboxResult is the sandbox command payload.
type SandboxResult struct {
	Tables []SandboxTableResult `json:"tables"`
}

// NewSandboxCommand creates the sandbox command.
func NewSandboxCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SandboxOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sandbox [rules] [docs-dir]",
		Short: "Insert extracted rows into a disposable in-memory schema",
		Long: `Build one "sandbox_<resource>" table per resource in an in-memory
database, extract rows with transforms applied and insert them. Nothing is
written to disk. Column types are inferred from each field's transforms and
can be overridden with --type resource.field=string|number|date.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSandbox(opts, args, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Types, "type", nil, "column type override resource.field=string|number|date (repeatable)")

	return cmd
}

func runSandbox(opts *SandboxOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	overrides, err := parseTypeOverrides(opts.Types)
	if err != nil {
		return commandError(formatter, "invalid --type", err)
	}

	in, err := loadInputs(opts.RootOptions, args, formatter)
	if err != nil {
		return commandError(formatter, "failed to load inputs", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	batch, err := extractBatch(ctx, in, true, opts.settings().Workers)
	if err != nil {
		return commandError(formatter, "extraction failed", err)
	}

	schema := migrate.BuildSandbox(in.Rules.Doc, overrides)
	sb, err := migrate.OpenSandbox(ctx, schema, slog.Default())
	if err != nil {
		return commandError(formatter, "failed to open sandbox", err)
	}
	defer func() {
		if closeErr := sb.Close(); closeErr != nil {
			slog.Error("error closing sandbox", "error", closeErr)
		}
	}()

	result := SandboxResult{Tables: make([]SandboxTableResult, 0, len(schema.Tables))}
	for _, table := range schema.Tables {
		n, err := sb.Insert(ctx, table.Resource, batch.Aggregated[table.Resource])
		if err != nil {
			return commandError(formatter, "sandbox insert failed", err)
		}
		result.Tables = append(result.Tables, SandboxTableResult{SandboxTable: table, Inserted: n})
	}

	return formatter.Report(result, func(w io.Writer) { writeSandbox(w, result) })
}

// parseTypeOverrides parses resource.field=type pairs.
func parseTypeOverrides(specs []string) (map[migrate.OverrideKey]migrate.FieldType, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make(map[migrate.OverrideKey]migrate.FieldType, len(specs))
	for _, s := range specs {
		key, typ, ok := strings.Cut(s, "=")
		res, field, dotted := strings.Cut(key, ".")
		if !ok || !dotted || res == "" || field == "" {
			return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("override %q: want resource.field=type", s)}
		}
		ft, valid := migrate.ParseFieldType(typ)
		if !valid {
			return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("override %q: unknown type %q", s, typ)}
		}
		out[migrate.OverrideKey{Resource: res, Source: field}] = ft
	}
	return out, nil
}

func writeSandbox(w io.Writer, result SandboxResult) {
	for _, t := range result.Tables {
		fmt.Fprintln(w, t.DDL)
		fmt.Fprintf(w, "  %s row(s) inserted into %s\n", humanize.Comma(int64(t.Inserted)), t.Name)
	}
}
