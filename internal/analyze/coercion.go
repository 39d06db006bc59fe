package analyze

import (
	"slices"

	"github.com/roach88/ingestlab/internal/ir"
	"github.com/roach88/ingestlab/internal/transform"
)

const (
	// MaxCoercedSamples caps the coerced values kept per field.
	MaxCoercedSamples = 8
	// MaxCoercionErrors caps the distinct error messages kept per field.
	MaxCoercionErrors = 5
)

// RawSamples holds raw extracted text: resource -> field -> values.
type RawSamples map[string]map[string][]string

// FieldCoercion summarizes how one field's raw samples fared through its
// transform chain.
type FieldCoercion struct {
	Resource       string     `json:"resource"`
	Field          string     `json:"field"`
	Total          int        `json:"total"`
	Success        int        `json:"success"`
	Failures       int        `json:"failures"`
	CoercedSamples []ir.Value `json:"coerced_samples"`
	Errors         []string   `json:"errors"`
}

// CoercionReport is the result of CoercionPreview.
type CoercionReport struct {
	Fields []FieldCoercion `json:"fields"`
}

// Field returns the entry for resource.field.
func (r *CoercionReport) Field(resource, field string) (FieldCoercion, bool) {
	for _, f := range r.Fields {
		if f.Resource == resource && f.Field == field {
			return f, true
		}
	}
	return FieldCoercion{}, false
}

// Failures returns the failure count over every field.
func (r *CoercionReport) Failures() int {
	n := 0
	for _, f := range r.Fields {
		n += f.Failures
	}
	return n
}

// CoercionPreview runs each list field's transform chain over its raw
// samples. List fields are reported in name order, table columns in column
// order. Table columns carry no transforms and pass through unchanged.
// Resources follow document order; samples for unknown resources or
// fields are ignored.
func CoercionPreview(doc *ir.RuleDocument, samples RawSamples) *CoercionReport {
	report := &CoercionReport{Fields: []FieldCoercion{}}
	opts := transform.Options{AllowExpressions: doc.AllowExpressions()}

	for _, res := range doc.Resources() {
		name := res.ResourceName()
		perField := samples[name]
		switch r := res.(type) {
		case *ir.ListResource:
			fields := r.OutputFields()
			slices.Sort(fields)
			for _, field := range fields {
				mapping, _ := r.Field(field)
				report.Fields = append(report.Fields, coerceField(name, field, perField[field], mapping.Transforms, opts))
			}
		case *ir.TableResource:
			for _, col := range r.Columns {
				report.Fields = append(report.Fields, coerceField(name, col, perField[col], nil, opts))
			}
		}
	}
	return report
}

func coerceField(resource, field string, raw []string, steps []ir.TransformStep, opts transform.Options) FieldCoercion {
	out := FieldCoercion{
		Resource:       resource,
		Field:          field,
		CoercedSamples: []ir.Value{},
		Errors:         []string{},
	}
	for _, text := range raw {
		out.Total++
		v, err := transform.Apply(ir.Text(text), steps, opts)
		if err != nil {
			out.Failures++
			msg := err.Error()
			if len(out.Errors) < MaxCoercionErrors && !slices.Contains(out.Errors, msg) {
				out.Errors = append(out.Errors, msg)
			}
			continue
		}
		out.Success++
		if len(out.CoercedSamples) < MaxCoercedSamples {
			out.CoercedSamples = append(out.CoercedSamples, v)
		}
	}
	return out
}

// SamplesFromRows collects the raw text of every cell, keyed by resource
// and field. Rows should come from an extraction with transforms disabled.
func SamplesFromRows(rows map[string][]ir.Row) RawSamples {
	samples := RawSamples{}
	for resource, rs := range rows {
		perField := samples[resource]
		if perField == nil {
			perField = map[string][]string{}
			samples[resource] = perField
		}
		for _, row := range rs {
			for _, cell := range row.Cells {
				perField[cell.Name] = append(perField[cell.Name], cell.Value.String())
			}
		}
	}
	return samples
}
