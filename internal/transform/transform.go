package transform

import (
	"regexp"
	"strings"
	"sync"

	"github.com/roach88/ingestlab/internal/ir"
	"github.com/roach88/ingestlab/internal/transform/expr"
)

// Options control chain execution.
type Options struct {
	// AllowExpressions permits expression steps. It should mirror the owning
	// document's allow_expressions flag.
	AllowExpressions bool
}

var whitespaceRun = regexp.MustCompile(`[\s\p{Z}]+`)

// programs caches compiled expressions by source. Compiled programs are
// immutable, so workers share them freely.
var programs sync.Map // map[string]*expr.Program

// Apply runs steps over v left to right and returns the final value.
// It stops at the first failing step.
func Apply(v ir.Value, steps []ir.TransformStep, opts Options) (ir.Value, error) {
	if v == nil {
		v = ir.Null{}
	}
	current := v
	for _, step := range steps {
		next, err := applyStep(current, step, opts)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

func applyStep(v ir.Value, step ir.TransformStep, opts Options) (ir.Value, error) {
	switch s := step.(type) {
	case ir.Trim:
		if ir.IsAbsent(v) {
			return v, nil
		}
		return ir.Text(strings.TrimSpace(v.String())), nil

	case ir.CollapseWhitespace:
		if ir.IsAbsent(v) {
			return v, nil
		}
		return ir.Text(strings.TrimSpace(whitespaceRun.ReplaceAllString(v.String(), " "))), nil

	case ir.ToNumber:
		switch v.(type) {
		case ir.Null, ir.Int, ir.Float:
			return v, nil
		}
		return ParseNumber(v.String())

	case ir.ParseDate:
		switch v.(type) {
		case ir.Null, ir.Date:
			return v, nil
		}
		return ParseDate(v.String(), s.Formats)

	case ir.Expression:
		return runExpression(v, s.Code, opts)

	default:
		panic("unreachable: unknown transform step")
	}
}

func runExpression(v ir.Value, code string, opts Options) (ir.Value, error) {
	if !opts.AllowExpressions {
		return nil, &Error{
			Code:    ErrCodeExpressionDisabled,
			Step:    ir.StepExpression,
			Message: "expression execution disabled (allow_expressions=false)",
		}
	}
	// Source gates run on every execution, cached program or not.
	if err := expr.CheckSource(code); err != nil {
		return nil, &Error{
			Code:    ErrCodeExpressionExecution,
			Step:    ir.StepExpression,
			Input:   v.String(),
			Message: err.Error(),
			Err:     err,
		}
	}

	prog, err := compileCached(code)
	if err != nil {
		return nil, &Error{
			Code:    ErrCodeExpressionExecution,
			Step:    ir.StepExpression,
			Input:   v.String(),
			Message: err.Error(),
			Err:     err,
		}
	}
	out, err := prog.Eval(v)
	if err != nil {
		return nil, &Error{
			Code:    ErrCodeExpressionExecution,
			Step:    ir.StepExpression,
			Input:   v.String(),
			Message: err.Error(),
			Err:     err,
		}
	}
	return out, nil
}

func compileCached(code string) (*expr.Program, error) {
	if p, ok := programs.Load(code); ok {
		return p.(*expr.Program), nil
	}
	p, err := expr.Compile(code)
	if err != nil {
		return nil, err
	}
	actual, _ := programs.LoadOrStore(code, p)
	return actual.(*expr.Program), nil
}
