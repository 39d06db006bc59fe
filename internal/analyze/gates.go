package analyze

import (
	"fmt"
	"sort"

	"github.com/roach88/ingestlab/internal/compiler"
	"github.com/roach88/ingestlab/internal/ir"
)

// Gates is a set of minimum coverage ratios.
type Gates []ir.Gate

// ParseGates decodes gate configuration in flat ("res.field": 0.9) or nested
// ("res": {"field": 0.9}) form. Both forms may be mixed.
func ParseGates(raw map[string]any) (Gates, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	gates, err := compiler.ParseGates(raw)
	if err != nil {
		return nil, fmt.Errorf("parse gates: %w", err)
	}
	return Gates(gates), nil
}

// Merge returns the union of g and other. Where both name the same
// resource.field, the threshold from other wins.
func (g Gates) Merge(other Gates) Gates {
	byKey := make(map[string]ir.Gate, len(g)+len(other))
	for _, gate := range g {
		byKey[gate.Key()] = gate
	}
	for _, gate := range other {
		byKey[gate.Key()] = gate
	}
	out := make(Gates, 0, len(byKey))
	for _, gate := range byKey {
		out = append(out, gate)
	}
	sortGates(out)
	return out
}

// Resources returns the distinct resource names referenced by the gates,
// sorted.
func (g Gates) Resources() []string {
	seen := make(map[string]bool)
	var out []string
	for _, gate := range g {
		if !seen[gate.Resource] {
			seen[gate.Resource] = true
			out = append(out, gate.Resource)
		}
	}
	sort.Strings(out)
	return out
}

// GateResult is the outcome of one gate.
type GateResult struct {
	Resource  string  `json:"resource"`
	Field     string  `json:"field"`
	Threshold float64 `json:"threshold"`
	Ratio     float64 `json:"ratio"`
	Passed    bool    `json:"passed"`
}

// GateReport is the result of EvaluateGates.
type GateReport struct {
	Results     []GateResult `json:"results"`
	Passed      bool         `json:"passed"`
	FailedCount int          `json:"failed_count"`
}

// EvaluateGates checks every gate against cov. A gate fails when the
// measured ratio is below its threshold; a field missing from the report
// has ratio 0. The report passes only when every gate passes, so an empty
// gate set passes.
func EvaluateGates(cov *CoverageReport, gates Gates) *GateReport {
	report := &GateReport{Results: []GateResult{}, Passed: true}
	sorted := make(Gates, len(gates))
	copy(sorted, gates)
	sortGates(sorted)
	for _, g := range sorted {
		r := cov.Ratio(g.Resource, g.Field)
		res := GateResult{
			Resource:  g.Resource,
			Field:     g.Field,
			Threshold: g.Threshold,
			Ratio:     r,
			Passed:    r >= g.Threshold,
		}
		if !res.Passed {
			report.Passed = false
			report.FailedCount++
		}
		report.Results = append(report.Results, res)
	}
	return report
}

func sortGates(g Gates) {
	sort.SliceStable(g, func(i, j int) bool {
		if g[i].Resource != g[j].Resource {
			return g[i].Resource < g[j].Resource
		}
		return g[i].Field < g[j].Field
	})
}
