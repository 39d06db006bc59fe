package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/ingestlab/internal/apply"
	"github.com/roach88/ingestlab/internal/store"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Database     string
	DisallowExpr bool
	GatesFile    string
	DryRun       bool

	// Now overrides the coordinator clock (for testing).
	Now func() time.Time
}

// ApplyCommandResult is the apply command payload.
type ApplyCommandResult struct {
	Simulation *apply.SimulationRecord `json:"simulation"`
	Applied    *apply.ApplyResult      `json:"applied,omitempty"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply [rules] [docs-dir]",
		Short: "Simulate a rule document, then commit it with an audit entry",
		Long: `Simulate the rule document over the sample documents, evaluate quality
gates, and when the simulation passes apply it: one audit row per resource
is written to the database in a single transaction.

The rule payload is re-hashed between the two steps; a change aborts the
apply. --disallow-expr rejects any payload containing an expression
transform. Exits 1 when the simulation does not pass.

Example:
  ingestlab apply rules.yaml ./pages --db ./live.db
  ingestlab apply --dry-run --format json`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config database)")
	cmd.Flags().BoolVar(&opts.DisallowExpr, "disallow-expr", false, "reject payloads containing expression transforms")
	cmd.Flags().StringVar(&opts.GatesFile, "gates", "", "YAML or JSON file of extra gates")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "simulate only")

	return cmd
}

func runApply(opts *ApplyOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	cfg := opts.settings()

	in, err := loadInputs(opts.RootOptions, args, formatter)
	if err != nil {
		return commandError(formatter, "failed to load inputs", err)
	}
	gates, err := callerGates(opts.RootOptions, opts.GatesFile)
	if err != nil {
		return commandError(formatter, "failed to load gates", err)
	}

	st, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return commandError(formatter, "failed to open database", err)
	}
	defer closeStore(st)

	policy := cfg.Policy
	if cmd.Flags().Changed("disallow-expr") {
		policy.DisallowExpressions = opts.DisallowExpr
	}
	coordOpts := []apply.Option{
		apply.WithPolicy(policy),
		apply.WithWorkers(cfg.Workers),
		apply.WithLogger(slog.Default()),
	}
	if opts.Now != nil {
		coordOpts = append(coordOpts, apply.WithNow(opts.Now))
	}
	coord := apply.NewCoordinator(st, coordOpts...)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rec, err := coord.Simulate(ctx, in.Rules.Doc, in.Docs, in.Rules.Raw, gates)
	if err != nil {
		if apply.IsSecurityPolicy(err) {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitFailure, "rejected by policy", err)
		}
		return commandError(formatter, "simulation failed", err)
	}
	formatter.VerboseLog("Simulation %d: passed=%t hash=%s", rec.ID, rec.Passed, rec.PayloadHash)

	result := ApplyCommandResult{Simulation: rec}
	if rec.Passed && !opts.DryRun {
		applied, err := coord.Apply(ctx, rec.ID, in.Rules.Raw)
		if err != nil {
			return commandError(formatter, "apply failed", &LoadError{Code: ErrCodeWriteFailed, Message: err.Error(), Err: err})
		}
		result.Applied = applied
	}

	if err := formatter.Report(result, func(w io.Writer) { writeApply(w, result) }); err != nil {
		return err
	}
	if !rec.Passed {
		return NewExitError(ExitFailure, fmt.Sprintf("simulation %d did not pass", rec.ID))
	}
	return nil
}

func writeApply(w io.Writer, result ApplyCommandResult) {
	rec := result.Simulation
	fmt.Fprintf(w, "simulation %d  coverage %s  payload %s\n", rec.ID, percent(rec.CoverageRatio), shortHash(rec.PayloadHash))
	for _, res := range rec.Resources {
		fmt.Fprintf(w, "  %-20s %s row(s)\n", res, humanize.Comma(int64(rec.Counts[res])))
	}
	if !rec.Passed {
		fmt.Fprintln(w, "\n✗ Simulation failed")
		for _, reason := range rec.Reasons {
			fmt.Fprintf(w, "  %s\n", reason)
		}
		return
	}
	if result.Applied == nil {
		fmt.Fprintln(w, "\n✓ Simulation passed (dry run, nothing applied)")
		return
	}
	fmt.Fprintf(w, "\n✓ Applied as batch %s (%d audit entr%s)\n", result.Applied.BatchID, result.Applied.Entries, plural(result.Applied.Entries, "y", "ies"))
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// AuditOptions holds flags for the audit command.
type AuditOptions struct {
	*RootOptions
	Database     string
	SimulationID int64
	Resource     string
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List apply audit entries",
		Long: `List the append-only apply audit log, oldest first.

Example:
  ingestlab audit --db ./live.db
  ingestlab audit --db ./live.db --simulation 3 --resource players`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config database)")
	cmd.Flags().Int64Var(&opts.SimulationID, "simulation", 0, "only entries for this simulation id")
	cmd.Flags().StringVar(&opts.Resource, "resource", "", "only entries for this resource")

	return cmd
}

func runAudit(opts *AuditOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return commandError(formatter, "failed to open database", err)
	}
	defer closeStore(st)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	entries, err := st.ReadAudit(ctx, store.AuditFilter{SimulationID: opts.SimulationID, Resource: opts.Resource})
	if err != nil {
		return commandError(formatter, "failed to read audit log", err)
	}
	if entries == nil {
		entries = []store.AuditEntry{}
	}

	return formatter.Report(entries, func(w io.Writer) { writeAudit(w, entries) })
}

func writeAudit(w io.Writer, entries []store.AuditEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no audit entries")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%4d  sim %-4d %-20s %8s row(s)  %s  %s  %s\n", e.ID, e.SimulationID, e.Resource,
			humanize.Comma(int64(e.RowCount)), shortHash(e.PayloadHash), e.BatchID, e.AppliedAt.Format(time.RFC3339))
	}
}
