package cli

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ingestlab/internal/compiler"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the rule document format",
		Long: `Print a JSON Schema (draft 2020-12) describing rule documents. Point an
editor's YAML or JSON language server at it for completion and checking.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(rootOpts, cmd)
		},
	}

	return cmd
}

func runSchema(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	data, err := compiler.JSONSchema()
	if err != nil {
		return commandError(formatter, "failed to generate schema", err)
	}

	return formatter.Report(json.RawMessage(data), func(w io.Writer) {
		_, _ = w.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			_, _ = io.WriteString(w, "\n")
		}
	})
}
