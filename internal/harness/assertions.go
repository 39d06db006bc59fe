package harness

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/ingestlab/internal/migrate"
)

// ExpectationError describes one stage outcome that differs from the
// scenario's expectation.
type ExpectationError struct {
	Type     string // expectation key, e.g. "aggregates.players"
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *ExpectationError) Error() string {
	return fmt.Sprintf("expectation failed: %s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// CheckExpectations compares result against exp and returns one message
// per mismatch, in a stable order.
func CheckExpectations(result *Result, exp Expectations) []string {
	var errs []error
	errs = append(errs, checkAggregates(result, exp.Aggregates)...)

	if exp.GatesPassed != nil && result.Gates != nil && result.Gates.Passed != *exp.GatesPassed {
		errs = append(errs, &ExpectationError{
			Type:     "gates_passed",
			Expected: fmt.Sprint(*exp.GatesPassed),
			Actual:   fmt.Sprintf("%t (%d failed)", result.Gates.Passed, result.Gates.FailedCount),
		})
	}

	if exp.ConstraintIssues != nil && result.Constraints != nil && len(result.Constraints.Issues) != *exp.ConstraintIssues {
		errs = append(errs, &ExpectationError{
			Type:     "constraint_issues",
			Expected: fmt.Sprint(*exp.ConstraintIssues),
			Actual:   fmt.Sprint(len(result.Constraints.Issues)),
		})
	}

	if exp.PlanActions != nil && result.Plan != nil {
		actual := PlanActionLabels(result.Plan)
		if !slices.Equal(actual, exp.PlanActions) {
			errs = append(errs, &ExpectationError{
				Type:     "plan_actions",
				Expected: fmt.Sprintf("%q", exp.PlanActions),
				Actual:   fmt.Sprintf("%q", actual),
			})
		}
	}

	if exp.SimulationPassed != nil {
		switch {
		case result.Simulation == nil:
			errs = append(errs, &ExpectationError{Type: "simulation_passed", Expected: fmt.Sprint(*exp.SimulationPassed), Actual: "no simulation"})
		case result.Simulation.Passed != *exp.SimulationPassed:
			errs = append(errs, &ExpectationError{
				Type:     "simulation_passed",
				Expected: fmt.Sprint(*exp.SimulationPassed),
				Actual:   fmt.Sprintf("%t (%s)", result.Simulation.Passed, strings.Join(result.Simulation.Reasons, "; ")),
			})
		}
	}

	if exp.AuditRows != nil && len(result.Audit) != *exp.AuditRows {
		errs = append(errs, &ExpectationError{
			Type:     "audit_rows",
			Expected: fmt.Sprint(*exp.AuditRows),
			Actual:   fmt.Sprint(len(result.Audit)),
		})
	}

	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return msgs
}

func checkAggregates(result *Result, want map[string]AggregateExpect) []error {
	if result.Batch == nil {
		return nil
	}
	resources := make([]string, 0, len(want))
	for res := range want {
		resources = append(resources, res)
	}
	sort.Strings(resources)

	var errs []error
	for _, res := range resources {
		exp := want[res]
		agg, ok := result.Batch.Aggregate(res)
		if !ok {
			errs = append(errs, &ExpectationError{Type: "aggregates." + res, Expected: formatAggregate(exp), Actual: "unknown resource"})
			continue
		}
		actual := AggregateExpect{Total: agg.TotalRecords, Unique: agg.UniqueRecords, Duplicates: agg.DuplicateRecords}
		if actual != exp {
			errs = append(errs, &ExpectationError{Type: "aggregates." + res, Expected: formatAggregate(exp), Actual: formatAggregate(actual)})
		}
	}
	return errs
}

func formatAggregate(a AggregateExpect) string {
	return fmt.Sprintf("total=%d unique=%d duplicates=%d", a.Total, a.Unique, a.Duplicates)
}

// PlanActionLabels renders plan actions as "<kind> <table>[.<column>]".
func PlanActionLabels(plan *migrate.Plan) []string {
	labels := make([]string, len(plan.Actions))
	for i, a := range plan.Actions {
		target := a.Table
		if a.Column != "" {
			target += "." + a.Column
		}
		labels[i] = fmt.Sprintf("%s %s", a.Kind, target)
	}
	return labels
}
