package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/ingestlab/internal/analyze"
	"github.com/roach88/ingestlab/internal/apply"
	"github.com/roach88/ingestlab/internal/compiler"
	"github.com/roach88/ingestlab/internal/extract"
	"github.com/roach88/ingestlab/internal/migrate"
	"github.com/roach88/ingestlab/internal/store"
	"github.com/roach88/ingestlab/internal/testutil"
)

// Harness holds the per-run store and deterministic helpers.
type Harness struct {
	store  *store.Store
	clock  *testutil.ManualClock
	ids    *testutil.SequentialIDs
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Build the rule document
// 2. Extract all documents with transforms applied
// 3. Evaluate coverage, gates and constraints
// 4. Create the live schema and plan against it
// 5. For apply scenarios: run the plan, simulate, apply and read the audit log
// 6. Evaluate assertions and expectations
//
// An error is returned only when the scenario cannot run at all. Stage
// outcomes that differ from the expectations are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		clock:  testutil.NewManualClock(testutil.Epoch),
		ids:    testutil.NewSequentialIDs("batch"),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	loaded, err := scenario.loadRules()
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	gates, err := analyze.ParseGates(scenario.QualityGates)
	if err != nil {
		return nil, fmt.Errorf("failed to parse quality gates: %w", err)
	}

	result := NewResult()
	if err := h.runAnalysis(ctx, scenario, loaded, gates, result); err != nil {
		return nil, err
	}
	if err := h.runPlan(ctx, scenario, loaded, result); err != nil {
		return nil, err
	}
	if scenario.Apply {
		if err := h.runApply(ctx, scenario, loaded, gates, result); err != nil {
			return nil, err
		}
	}

	assertions, err := analyze.EvaluateAssertions(result.Batch.Aggregated, scenario.Assertions)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate assertions: %w", err)
	}
	result.Assertions = assertions
	for _, a := range assertions {
		if !a.Passed {
			result.AddError(a.Message)
		}
	}

	for _, msg := range CheckExpectations(result, scenario.Expect) {
		result.AddError(msg)
	}
	return result, nil
}

// runAnalysis runs extraction and the read-only analyses.
func (h *Harness) runAnalysis(ctx context.Context, scenario *Scenario, loaded *compiler.Loaded, gates analyze.Gates, result *Result) error {
	batch, err := extract.ExtractBatch(ctx, loaded.Doc, scenario.Documents, extract.BatchOptions{
		Options: extract.Options{ApplyTransforms: true, Logger: h.logger},
		Workers: scenario.Workers,
	})
	if err != nil {
		return fmt.Errorf("failed to extract: %w", err)
	}
	result.Batch = batch

	result.Coverage = analyze.Coverage(loaded.Doc, batch.Aggregated, nil)
	result.Gates = analyze.EvaluateGates(result.Coverage, analyze.Gates(loaded.Doc.Gates()).Merge(gates))
	result.Constraints = analyze.SimulateConstraints(loaded.Doc, batch.Aggregated)

	h.logger.Info("scenario analyzed",
		"scenario", scenario.Name,
		"documents", batch.Documents,
		"gates_passed", result.Gates.Passed,
		"constraint_issues", len(result.Constraints.Issues),
	)
	return nil
}

// runPlan creates the scenario's live tables and plans against them.
func (h *Harness) runPlan(ctx context.Context, scenario *Scenario, loaded *compiler.Loaded, result *Result) error {
	tables := make([]string, 0, len(scenario.LiveSchema))
	for table := range scenario.LiveSchema {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		if err := h.store.Exec(ctx, liveTableSQL(table, scenario.LiveSchema[table])); err != nil {
			return fmt.Errorf("failed to create live table %q: %w", table, err)
		}
	}

	plan, err := migrate.PlanFrom(ctx, loaded.Doc, h.store)
	if err != nil {
		return fmt.Errorf("failed to plan: %w", err)
	}
	result.Plan = plan
	return nil
}

// liveTableSQL renders a CREATE TABLE with columns in name order and the
// given SQL types verbatim.
func liveTableSQL(table string, cols map[string]string) string {
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]string, len(names))
	for i, name := range names {
		defs[i] = strings.TrimSpace(migrate.QuoteIdent(name) + " " + cols[name])
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", migrate.QuoteIdent(table), strings.Join(defs, ", "))
}

// runApply runs the plan, then simulate and apply through a coordinator on
// the scenario store.
func (h *Harness) runApply(ctx context.Context, scenario *Scenario, loaded *compiler.Loaded, gates analyze.Gates, result *Result) error {
	if _, err := h.store.ApplyPlan(ctx, result.Plan); err != nil {
		return fmt.Errorf("failed to apply plan: %w", err)
	}

	coord := apply.NewCoordinator(h.store,
		apply.WithNow(h.clock.Now),
		apply.WithBatchIDs(h.ids.Next),
		apply.WithWorkers(scenario.Workers),
		apply.WithLogger(h.logger),
	)

	rec, err := coord.Simulate(ctx, loaded.Doc, scenario.Documents, loaded.Raw, gates)
	if err != nil {
		return fmt.Errorf("failed to simulate: %w", err)
	}
	result.Simulation = rec

	if rec.Passed {
		applied, err := coord.Apply(ctx, rec.ID, loaded.Raw)
		if err != nil {
			return fmt.Errorf("failed to apply simulation %d: %w", rec.ID, err)
		}
		result.Applied = applied
	}

	audit, err := h.store.ReadAudit(ctx, store.AuditFilter{})
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}
	result.Audit = audit

	h.logger.Info("scenario applied",
		"scenario", scenario.Name,
		"simulation_id", rec.ID,
		"passed", rec.Passed,
		"audit_rows", len(audit),
	)
	return nil
}
