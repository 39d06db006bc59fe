package compiler

import (
	"fmt"

	"github.com/roach88/ingestlab/internal/ir"
)

// Serialize renders a document back into its wire form.
//
// Simple transforms are written as bare strings and fields without
// transforms as bare selectors. allow_expressions and quality_gates are only
// emitted when set. Build(Serialize(doc)) yields an equivalent document.
func Serialize(doc *ir.RuleDocument) map[string]any {
	resources := make(map[string]any)
	for _, res := range doc.Resources() {
		resources[res.ResourceName()] = serializeResource(res)
	}

	out := map[string]any{
		keyVersion:   doc.Version(),
		keyResources: resources,
	}
	if doc.AllowExpressions() {
		out[keyAllowExpressions] = true
	}
	if gates := doc.Gates(); len(gates) > 0 {
		flat := make(map[string]any, len(gates))
		for _, g := range gates {
			flat[g.Key()] = g.Threshold
		}
		out[keyQualityGates] = flat
	}
	return out
}

func serializeResource(res ir.Resource) map[string]any {
	var out map[string]any
	switch r := res.(type) {
	case *ir.TableResource:
		cols := make([]any, len(r.Columns))
		for i, c := range r.Columns {
			cols[i] = c
		}
		out = map[string]any{
			"kind":     string(ir.KindTable),
			"selector": r.Selector,
			"columns":  cols,
		}
	case *ir.ListResource:
		fields := make(map[string]any, len(r.Fields))
		for _, f := range r.Fields {
			fields[f.Name] = serializeField(f)
		}
		out = map[string]any{
			"kind":          string(ir.KindList),
			"selector":      r.Selector,
			"item_selector": r.ItemSelector,
			"fields":        fields,
		}
	default:
		panic(fmt.Sprintf("unreachable: unknown resource type %T", res))
	}
	if parent := res.Parent(); parent != "" {
		out["extends"] = parent
	}
	return out
}

func serializeField(f ir.FieldMapping) any {
	if len(f.Transforms) == 0 {
		return f.Selector
	}
	steps := make([]any, len(f.Transforms))
	for i, step := range f.Transforms {
		steps[i] = serializeStep(step)
	}
	return map[string]any{
		"selector":   f.Selector,
		"transforms": steps,
	}
}

func serializeStep(step ir.TransformStep) any {
	switch s := step.(type) {
	case ir.Trim, ir.CollapseWhitespace, ir.ToNumber:
		return string(s.StepKind())
	case ir.ParseDate:
		formats := make([]any, len(s.Formats))
		for i, f := range s.Formats {
			formats[i] = f
		}
		return map[string]any{"kind": string(ir.StepParseDate), "formats": formats}
	case ir.Expression:
		return map[string]any{"kind": string(ir.StepExpression), "code": s.Code}
	default:
		panic(fmt.Sprintf("unreachable: unknown transform step %T", step))
	}
}
