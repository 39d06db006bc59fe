package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/ingestlab/internal/migrate"
	"github.com/roach88/ingestlab/internal/store"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Database string
	Apply    bool
}

// PlanResult is the plan command payload.
type PlanResult struct {
	Plan    *migrate.Plan `json:"plan"`
	Applied int           `json:"applied"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan [rules]",
		Short: "Plan destination schema changes for a rule document",
		Long: `Compare the tables and columns a rule document produces with the live
destination database and print the DDL needed to bring it up to date.

Only additive changes are planned: missing tables are created and missing
columns added. Type mismatches are reported as notes and never altered.
With --apply the statements run in one transaction.

Example:
  ingestlab plan rules.yaml --db ./live.db
  ingestlab plan rules.yaml --db ./live.db --apply`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config database)")
	cmd.Flags().BoolVar(&opts.Apply, "apply", false, "execute the planned DDL")

	return cmd
}

func runPlan(opts *PlanOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	rulesPath, _, err := resolvePaths(opts.RootOptions, args, false)
	if err != nil {
		return commandError(formatter, "failed to load inputs", err)
	}
	loaded, err := LoadRules(rulesPath)
	if err != nil {
		return commandError(formatter, "failed to load rules", err)
	}

	st, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return commandError(formatter, "failed to open database", err)
	}
	defer closeStore(st)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	plan, err := migrate.PlanFrom(ctx, loaded.Doc, st)
	if err != nil {
		return commandError(formatter, "failed to plan", err)
	}

	result := PlanResult{Plan: plan}
	if opts.Apply && !plan.Empty() {
		n, err := st.ApplyPlan(ctx, plan)
		if err != nil {
			return commandError(formatter, "failed to apply plan", &LoadError{Code: ErrCodeWriteFailed, Message: err.Error(), Err: err})
		}
		result.Applied = n
		slog.Info("schema plan applied", "statements", n)
	}

	return formatter.Report(result, func(w io.Writer) { writePlan(w, result, opts.Apply) })
}

func writePlan(w io.Writer, result PlanResult, apply bool) {
	plan := result.Plan
	if plan.Empty() {
		fmt.Fprintln(w, "✓ Schema is up to date")
		return
	}
	for _, a := range plan.Actions {
		if a.SQL != "" {
			fmt.Fprintln(w, a.SQL)
			continue
		}
		fmt.Fprintf(w, "-- %s: %s\n", a.Table, a.Note)
	}
	fmt.Fprintf(w, "\n%d table(s) to create, %d column(s) to add, %d note(s)\n",
		plan.Count(migrate.ActionCreateTable), plan.Count(migrate.ActionAddColumn), plan.Count(migrate.ActionTypeNote))
	if apply {
		fmt.Fprintf(w, "applied %d statement(s)\n", result.Applied)
	}
}

// openStore opens the database named by flag, or by config when the flag
// is empty.
func openStore(opts *RootOptions, flagPath string) (*store.Store, error) {
	path := flagPath
	if path == "" {
		path = opts.settings().Database
	}
	if path == "" {
		return nil, &LoadError{Code: ErrCodeMissingArg, Message: "no database given (--db or config \"database\")"}
	}
	slog.Debug("opening database", "path", path)
	st, err := store.Open(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: err.Error(), Err: err}
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
