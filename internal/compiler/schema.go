package compiler

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/roach88/ingestlab/internal/ir"
	"github.com/roach88/ingestlab/internal/transform/expr"
)

// RuleFile mirrors the rule document wire format. It is only used to
// publish a JSON Schema for editors; Build works on the raw payload.
type RuleFile struct {
	// Version of the rule format.
	Version int `json:"version,omitempty" jsonschema:"title=Version,minimum=1,default=1"`
	// AllowExpressions enables expr transform steps.
	AllowExpressions bool `json:"allow_expressions,omitempty" jsonschema:"title=Allow Expressions"`
	// Resources maps each resource name to its extraction rule.
	Resources map[string]ResourceSpec `json:"resources" jsonschema:"title=Resources"`
	// QualityGates maps resource.field (or resource -> field) to a minimum
	// coverage ratio.
	QualityGates map[string]GateSpec `json:"quality_gates,omitempty" jsonschema:"title=Quality Gates"`
}

// ResourceSpec is one table or list rule.
type ResourceSpec struct {
	Kind         string               `json:"kind,omitempty" jsonschema:"title=Kind,enum=table,enum=list"`
	Selector     string               `json:"selector,omitempty" jsonschema:"title=Selector"`
	ItemSelector string               `json:"item_selector,omitempty" jsonschema:"title=Item Selector"`
	Columns      []string             `json:"columns,omitempty" jsonschema:"title=Columns,minItems=1"`
	Fields       map[string]FieldSpec `json:"fields,omitempty" jsonschema:"title=Fields"`
	Extends      string               `json:"extends,omitempty" jsonschema:"title=Extends"`
}

// FieldSpec is a list field: either a bare selector string or an object
// with a selector and a transform chain.
type FieldSpec struct{}

// JSONSchema implements jsonschema.customSchemaImpl.
func (FieldSpec) JSONSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	props.Set("selector", &jsonschema.Schema{Type: "string", Title: "Selector"})
	props.Set("transforms", &jsonschema.Schema{
		Type:  "array",
		Title: "Transforms",
		Items: transformSchema(),
	})
	return &jsonschema.Schema{
		Title: "Field",
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{
				Type:                 "object",
				Properties:           props,
				Required:             []string{"selector"},
				AdditionalProperties: jsonschema.FalseSchema,
			},
		},
	}
}

// GateSpec is a threshold or, in nested form, a map of field thresholds.
type GateSpec struct{}

// JSONSchema implements jsonschema.customSchemaImpl.
func (GateSpec) JSONSchema() *jsonschema.Schema {
	ratio := &jsonschema.Schema{Type: "number", Minimum: "0", Maximum: "1"}
	return &jsonschema.Schema{
		Title: "Gate",
		OneOf: []*jsonschema.Schema{
			ratio,
			{Type: "object", AdditionalProperties: ratio},
		},
	}
}

func transformSchema() *jsonschema.Schema {
	simple := []any{string(ir.StepTrim), string(ir.StepCollapseWhitespace), string(ir.StepToNumber)}

	dateProps := jsonschema.NewProperties()
	dateProps.Set("kind", &jsonschema.Schema{Const: string(ir.StepParseDate)})
	dateProps.Set("formats", &jsonschema.Schema{
		Type:     "array",
		MinItems: ptr(uint64(1)),
		Items:    &jsonschema.Schema{Type: "string"},
	})

	exprProps := jsonschema.NewProperties()
	exprProps.Set("kind", &jsonschema.Schema{Const: string(ir.StepExpression)})
	exprProps.Set("code", &jsonschema.Schema{
		Type:        "string",
		Description: fmt.Sprintf("expression over `value`; callable names: %v", expr.Names()),
	})

	simpleProps := jsonschema.NewProperties()
	simpleProps.Set("kind", &jsonschema.Schema{Type: "string", Enum: simple})

	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string", Enum: simple},
			{Type: "object", Properties: simpleProps, Required: []string{"kind"}},
			{Type: "object", Properties: dateProps, Required: []string{"kind", "formats"}},
			{Type: "object", Properties: exprProps, Required: []string{"kind", "code"}},
		},
	}
}

func ptr[T any](v T) *T { return &v }

// JSONSchema returns the JSON Schema of the rule document wire format.
func JSONSchema() ([]byte, error) {
	r := &jsonschema.Reflector{ExpandedStruct: true}
	s := r.Reflect(&RuleFile{})
	s.Title = "ingestlab rule document"
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
