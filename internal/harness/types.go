package harness

import (
	"github.com/roach88/ingestlab/internal/analyze"
	"github.com/roach88/ingestlab/internal/apply"
	"github.com/roach88/ingestlab/internal/extract"
	"github.com/roach88/ingestlab/internal/migrate"
	"github.com/roach88/ingestlab/internal/store"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every assertion and expectation held.
	Pass bool `json:"pass"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	Batch       *extract.BatchResult      `json:"batch"`
	Coverage    *analyze.CoverageReport   `json:"coverage"`
	Gates       *analyze.GateReport       `json:"gates"`
	Constraints *analyze.ConstraintReport `json:"constraints"`
	Plan        *migrate.Plan             `json:"plan"`
	Assertions  []analyze.AssertionResult `json:"assertions,omitempty"`

	// Simulation, Applied and Audit are set only for apply scenarios.
	// Applied is nil when the simulation did not pass.
	Simulation *apply.SimulationRecord `json:"simulation,omitempty"`
	Applied    *apply.ApplyResult      `json:"applied,omitempty"`
	Audit      []store.AuditEntry      `json:"audit,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
