package analyze

import (
	"fmt"
	"strings"

	"github.com/roach88/ingestlab/internal/ir"
)

// AssertionOp is the comparison an assertion performs.
type AssertionOp string

const (
	OpEqual    AssertionOp = "eq"
	OpContains AssertionOp = "contains"
)

// AssertionSpec declares an expected value in extracted rows. Values are
// compared as text after transforms.
type AssertionSpec struct {
	Resource string      `json:"resource" yaml:"resource"`
	Field    string      `json:"field" yaml:"field"`
	Expect   string      `json:"expect" yaml:"expect"`
	Index    int         `json:"index,omitempty" yaml:"index,omitempty"`
	Op       AssertionOp `json:"op,omitempty" yaml:"op,omitempty"`
}

// Normalize trims names and defaults Op to eq. Unknown ops are an error.
func (s AssertionSpec) Normalize() (AssertionSpec, error) {
	s.Resource = strings.TrimSpace(s.Resource)
	s.Field = strings.TrimSpace(s.Field)
	if s.Resource == "" || s.Field == "" {
		return s, fmt.Errorf("resource and field are required")
	}
	if s.Index < 0 {
		return s, fmt.Errorf("index must not be negative, got %d", s.Index)
	}
	switch AssertionOp(strings.ToLower(string(s.Op))) {
	case "", OpEqual:
		s.Op = OpEqual
	case OpContains:
		s.Op = OpContains
	default:
		return s, fmt.Errorf("unsupported op %q", s.Op)
	}
	return s, nil
}

// AssertionResult is the outcome of one assertion.
type AssertionResult struct {
	Spec    AssertionSpec `json:"spec"`
	Passed  bool          `json:"passed"`
	Actual  ir.Value      `json:"actual"`
	Message string        `json:"message"`
}

// EvaluateAssertions checks specs against rows, keyed by resource name.
// Results keep the order of specs. A malformed spec fails the whole call;
// a missing resource, out-of-range index or absent field fails only that
// assertion.
func EvaluateAssertions(rows map[string][]ir.Row, specs []AssertionSpec) ([]AssertionResult, error) {
	results := make([]AssertionResult, 0, len(specs))
	for i, raw := range specs {
		spec, err := raw.Normalize()
		if err != nil {
			return nil, &AssertionError{Index: i, Message: err.Error()}
		}
		results = append(results, evaluateAssertion(rows, spec))
	}
	return results, nil
}

func evaluateAssertion(rows map[string][]ir.Row, spec AssertionSpec) AssertionResult {
	fail := func(msg string) AssertionResult {
		return AssertionResult{Spec: spec, Actual: ir.Null{}, Message: msg}
	}

	resRows, ok := rows[spec.Resource]
	if !ok {
		return fail("resource not present in rows")
	}
	if spec.Index >= len(resRows) {
		return fail(fmt.Sprintf("index %d out of range (%d rows)", spec.Index, len(resRows)))
	}
	row := resRows[spec.Index]
	actual := row.Get(spec.Field)
	if !row.Has(spec.Field) || ir.IsAbsent(actual) {
		return fail("field missing in row")
	}

	text := actual.String()
	var passed bool
	switch spec.Op {
	case OpContains:
		passed = strings.Contains(text, spec.Expect)
	default:
		passed = text == spec.Expect
	}

	msg := "ok"
	if !passed {
		msg = fmt.Sprintf("expected %q got %q", spec.Expect, text)
	}
	return AssertionResult{Spec: spec, Passed: passed, Actual: actual, Message: msg}
}
