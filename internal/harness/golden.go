package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders the deterministic parts of a result as text: rows,
// duplicate counts, coverage, gates, constraint issues, the schema plan and,
// for apply scenarios, the simulation and audit log. Timings are omitted.
func Snapshot(name string, result *Result) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "scenario: %s\n", name)

	if batch := result.Batch; batch != nil {
		b.WriteString("\nrows:\n")
		for _, res := range sortedKeys(batch.Aggregated) {
			fmt.Fprintf(&b, "  %s:\n", res)
			for _, row := range batch.Aggregated[res] {
				data, err := json.Marshal(row)
				if err != nil {
					return nil, fmt.Errorf("snapshot %s row: %w", res, err)
				}
				fmt.Fprintf(&b, "    %s\n", data)
			}
		}
		b.WriteString("\nduplicates:\n")
		for _, res := range sortedKeys(batch.DuplicateCounts) {
			fmt.Fprintf(&b, "  %s: %d\n", res, batch.DuplicateCounts[res])
		}
	}

	if cov := result.Coverage; cov != nil {
		fmt.Fprintf(&b, "\ncoverage: %s\n", ratio(cov.OverallRatio))
		for _, rc := range cov.Resources {
			for _, fs := range rc.Fields {
				fmt.Fprintf(&b, "  %s.%s %d/%d\n", rc.Resource, fs.Field, fs.NonEmpty, fs.TotalRows)
			}
		}
	}

	if gates := result.Gates; gates != nil {
		status := "passed"
		if !gates.Passed {
			status = "failed"
		}
		fmt.Fprintf(&b, "\ngates: %s (%d of %d failed)\n", status, gates.FailedCount, len(gates.Results))
		for _, r := range gates.Results {
			fmt.Fprintf(&b, "  %s.%s ratio=%s min=%s passed=%t\n", r.Resource, r.Field, ratio(r.Ratio), ratio(r.Threshold), r.Passed)
		}
	}

	if cr := result.Constraints; cr != nil {
		fmt.Fprintf(&b, "\nconstraints: %d issue(s)\n", len(cr.Issues))
		for _, issue := range cr.Issues {
			fmt.Fprintf(&b, "  %s %s.%s: %s\n", issue.Kind, issue.Resource, issue.Column, issue.Message)
		}
	}

	if plan := result.Plan; plan != nil {
		fmt.Fprintf(&b, "\nplan: %d action(s)\n", len(plan.Actions))
		for i, a := range plan.Actions {
			detail := a.SQL
			if detail == "" {
				detail = a.Note
			}
			fmt.Fprintf(&b, "  %s: %s\n", PlanActionLabels(plan)[i], detail)
		}
	}

	if rec := result.Simulation; rec != nil {
		status := "passed"
		if !rec.Passed {
			status = "failed"
		}
		fmt.Fprintf(&b, "\nsimulation %d: %s\n", rec.ID, status)
		for _, res := range rec.Resources {
			fmt.Fprintf(&b, "  %s: %d row(s)\n", res, rec.Counts[res])
		}
		for _, reason := range rec.Reasons {
			fmt.Fprintf(&b, "  reason: %s\n", reason)
		}
		entries := "entries"
		if len(result.Audit) == 1 {
			entries = "entry"
		}
		fmt.Fprintf(&b, "\naudit: %d %s\n", len(result.Audit), entries)
		for _, e := range result.Audit {
			fmt.Fprintf(&b, "  %s rows=%d batch=%s simulation=%d applied_at=%s\n",
				e.Resource, e.RowCount, e.BatchID, e.SimulationID, e.AppliedAt.UTC().Format(time.RFC3339))
		}
	}

	return b.Bytes(), nil
}

func ratio(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's snapshot against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot)
	return nil
}
