package migrate

import (
	"github.com/roach88/ingestlab/internal/ir"
)

// FieldType is the logical type of a destination column.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeDate   FieldType = "date"
)

// SQLType returns the SQLite column type. Dates are stored as ISO text so
// they sort lexically.
func (t FieldType) SQLType() string {
	if t == TypeNumber {
		return "REAL"
	}
	return "TEXT"
}

// ParseFieldType accepts the names used in type overrides.
func ParseFieldType(s string) (FieldType, bool) {
	switch FieldType(s) {
	case TypeString, TypeNumber, TypeDate:
		return FieldType(s), true
	default:
		return "", false
	}
}

// MappingEntry is one inferred destination column.
type MappingEntry struct {
	Resource     string        `json:"resource"`
	Source       string        `json:"source"`
	TargetColumn string        `json:"target_column"`
	Type         FieldType     `json:"type"`
	Transforms   []ir.StepKind `json:"transforms,omitempty"`
	IsTable      bool          `json:"is_table"`
}

// InferType picks the column type of a field from its transform chain.
// Expressions do not influence the type.
func InferType(f ir.FieldMapping) FieldType {
	switch {
	case f.HasStep(ir.StepToNumber):
		return TypeNumber
	case f.HasStep(ir.StepParseDate):
		return TypeDate
	default:
		return TypeString
	}
}

// Infer returns the mapping entries of every resource, resources in name
// order and columns in row order.
func Infer(doc *ir.RuleDocument) []MappingEntry {
	var entries []MappingEntry
	for _, res := range doc.Resources() {
		entries = append(entries, inferResource(res)...)
	}
	return entries
}

func inferResource(res ir.Resource) []MappingEntry {
	var entries []MappingEntry
	switch r := res.(type) {
	case *ir.TableResource:
		for _, col := range r.Columns {
			entries = append(entries, MappingEntry{
				Resource:     r.Name,
				Source:       col,
				TargetColumn: col,
				Type:         TypeString,
				IsTable:      true,
			})
		}
	case *ir.ListResource:
		for _, f := range r.Fields {
			var kinds []ir.StepKind
			for _, step := range f.Transforms {
				kinds = append(kinds, step.StepKind())
			}
			entries = append(entries, MappingEntry{
				Resource:     r.Name,
				Source:       f.Name,
				TargetColumn: f.Name,
				Type:         InferType(f),
				Transforms:   kinds,
			})
		}
	}
	return entries
}
