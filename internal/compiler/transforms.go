package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/ingestlab/internal/ir"
	"github.com/roach88/ingestlab/internal/transform"
	"github.com/roach88/ingestlab/internal/transform/expr"
)

// parseTransforms decodes a field's transform chain. Accepted step forms:
//
//	"trim" | "collapse_ws" | "to_number"
//	{kind: "trim"} (any simple kind as a mapping)
//	{kind: "parse_date", formats: ["%d.%m.%Y", ...]}
//	{kind: "expr", code: "..."} (only when allowExpr)
func parseTransforms(resource, fieldPath string, v any, allowExpr bool) ([]ir.TransformStep, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, schemaErr(ErrInvalidTransform, resource, fieldPath+".transforms", "must be a list, got %T", v)
	}

	steps := make([]ir.TransformStep, 0, len(list))
	for i, item := range list {
		step, err := parseStep(item, allowExpr)
		if err != nil {
			err.Resource = resource
			err.Field = fmt.Sprintf("%s.transforms[%d]", fieldPath, i)
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func parseStep(v any, allowExpr bool) (ir.TransformStep, *SchemaError) {
	if s, ok := v.(string); ok {
		kind := ir.StepKind(strings.TrimSpace(s))
		if kind == "" {
			return nil, schemaErr(ErrInvalidTransform, "", "", "transform name must be non-empty")
		}
		step, ok := simpleStep(kind)
		if !ok {
			return nil, schemaErr(ErrInvalidTransform, "", "", "unsupported simple transform %q", s)
		}
		return step, nil
	}

	spec, ok := asMap(v)
	if !ok {
		return nil, schemaErr(ErrInvalidTransform, "", "", "unsupported transform spec %T", v)
	}
	rawKind, _ := spec["kind"].(string)
	kind := ir.StepKind(strings.TrimSpace(rawKind))

	if step, ok := simpleStep(kind); ok {
		return step, nil
	}

	switch kind {
	case ir.StepParseDate:
		formats, ok := stringList(spec["formats"])
		if !ok || len(formats) == 0 {
			return nil, schemaErr(ErrInvalidTransform, "", "", "parse_date requires a non-empty list of formats")
		}
		if err := transform.ValidateDateFormats(formats); err != nil {
			return nil, schemaErr(ErrInvalidTransform, "", "", "parse_date: %v", err)
		}
		return ir.ParseDate{Formats: formats}, nil

	case ir.StepExpression:
		if !allowExpr {
			return nil, schemaErr(ErrExpressionDisabled, "", "", "expression transforms are disabled (allow_expressions=false)")
		}
		code, _ := spec["code"].(string)
		if strings.TrimSpace(code) == "" {
			return nil, schemaErr(ErrInvalidTransform, "", "", "expr requires non-empty code")
		}
		if _, err := expr.Compile(code); err != nil {
			return nil, schemaErr(ErrInvalidTransform, "", "", "expr: %v", err)
		}
		return ir.Expression{Code: code}, nil

	default:
		return nil, schemaErr(ErrInvalidTransform, "", "", "unsupported transform kind %q", rawKind)
	}
}

func simpleStep(kind ir.StepKind) (ir.TransformStep, bool) {
	switch kind {
	case ir.StepTrim:
		return ir.Trim{}, true
	case ir.StepCollapseWhitespace:
		return ir.CollapseWhitespace{}, true
	case ir.StepToNumber:
		return ir.ToNumber{}, true
	default:
		return nil, false
	}
}

func stringList(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok || s == "" {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
