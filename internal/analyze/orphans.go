package analyze

import (
	"fmt"
	"slices"

	"github.com/roach88/ingestlab/internal/ir"
)

// OrphanField is a declared field with no target column in the mapping.
type OrphanField struct {
	Resource   string `json:"resource"`
	Field      string `json:"field"`
	Suggestion string `json:"suggestion"`
}

// OrphanFields lists, per resource in name order, the declared fields or
// columns that mapping does not assign to a target column.
func OrphanFields(doc *ir.RuleDocument, mapping Mapping) []OrphanField {
	out := []OrphanField{}
	for _, res := range doc.Resources() {
		name := res.ResourceName()
		fields := res.OutputFields()
		slices.Sort(fields)
		for _, f := range fields {
			if mapping.Mapped(name, f) {
				continue
			}
			out = append(out, OrphanField{
				Resource:   name,
				Field:      f,
				Suggestion: fmt.Sprintf("add a mapping for %q in resource %q or remove the field if obsolete", f, name),
			})
		}
	}
	return out
}
