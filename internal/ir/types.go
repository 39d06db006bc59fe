package ir

import (
	"fmt"
	"slices"
	"sort"
)

// Kind identifies a Resource variant.
type Kind string

const (
	KindTable Kind = "table"
	KindList  Kind = "list"
)

// StepKind identifies a TransformStep variant. The values match the wire format.
type StepKind string

const (
	StepTrim               StepKind = "trim"
	StepCollapseWhitespace StepKind = "collapse_ws"
	StepToNumber           StepKind = "to_number"
	StepParseDate          StepKind = "parse_date"
	StepExpression         StepKind = "expr"
)

// TransformStep is a sealed interface over the value-rewriting steps of a
// field's transform chain. Only Trim, CollapseWhitespace, ToNumber, ParseDate
// and Expression implement it.
type TransformStep interface {
	StepKind() StepKind
	isStep() // Sealed
}

// Trim strips leading and trailing whitespace.
type Trim struct{}

// CollapseWhitespace replaces every run of whitespace with a single space.
type CollapseWhitespace struct{}

// ToNumber parses text into an Int or Float.
type ToNumber struct{}

// ParseDate parses text into a Date using the first matching format.
// Formats use strftime directives (%Y, %m, %d, ...).
type ParseDate struct {
	Formats []string
}

// Expression evaluates a sandboxed expression over the current value.
// The compiler only produces Expression steps for documents that allow them.
type Expression struct {
	Code string
}

func (Trim) StepKind() StepKind               { return StepTrim }
func (CollapseWhitespace) StepKind() StepKind { return StepCollapseWhitespace }
func (ToNumber) StepKind() StepKind           { return StepToNumber }
func (ParseDate) StepKind() StepKind          { return StepParseDate }
func (Expression) StepKind() StepKind         { return StepExpression }

func (Trim) isStep()               {}
func (CollapseWhitespace) isStep() {}
func (ToNumber) isStep()           {}
func (ParseDate) isStep()          {}
func (Expression) isStep()         {}

// FieldMapping binds a list field to a selector and an ordered transform chain.
type FieldMapping struct {
	Name       string
	Selector   string
	Transforms []TransformStep
}

// HasStep reports whether the transform chain contains a step of the given kind.
func (f FieldMapping) HasStep(kind StepKind) bool {
	for _, step := range f.Transforms {
		if step.StepKind() == kind {
			return true
		}
	}
	return false
}

// Resource is a sealed interface over the extraction units of a rule document.
// Only *TableResource and *ListResource implement it.
//
// Resources reachable from a RuleDocument are shared read-only; callers must
// not mutate them.
type Resource interface {
	ResourceName() string
	Kind() Kind
	RootSelector() string
	Parent() string

	// OutputFields returns the names of the row fields this resource produces,
	// in row order.
	OutputFields() []string

	isResource() // Sealed
}

// TableResource extracts rows of an HTML table and maps cells to columns
// positionally.
type TableResource struct {
	Name     string
	Selector string
	Columns  []string
	Extends  string
}

// ListResource extracts repeated items under a root and maps each field by
// its own selector.
type ListResource struct {
	Name         string
	Selector     string
	ItemSelector string
	Fields       []FieldMapping
	Extends      string
}

func (r *TableResource) ResourceName() string { return r.Name }
func (r *TableResource) Kind() Kind           { return KindTable }
func (r *TableResource) RootSelector() string { return r.Selector }
func (r *TableResource) Parent() string       { return r.Extends }
func (r *TableResource) OutputFields() []string {
	return slices.Clone(r.Columns)
}
func (*TableResource) isResource() {}

func (r *ListResource) ResourceName() string { return r.Name }
func (r *ListResource) Kind() Kind           { return KindList }
func (r *ListResource) RootSelector() string { return r.Selector }
func (r *ListResource) Parent() string       { return r.Extends }
func (r *ListResource) OutputFields() []string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	return names
}
func (*ListResource) isResource() {}

// Field returns the named field mapping.
func (r *ListResource) Field(name string) (FieldMapping, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldMapping{}, false
}

// Gate is a minimum non-empty ratio required for one resource field.
type Gate struct {
	Resource  string  `json:"resource"`
	Field     string  `json:"field"`
	Threshold float64 `json:"threshold"`
}

// Key returns the flat "resource.field" form of the gate.
func (g Gate) Key() string {
	return g.Resource + "." + g.Field
}

// RuleDocument is a validated, fully resolved rule document.
//
// A RuleDocument is immutable once built: construct it with NewRuleDocument
// (normally through compiler.Build) and share it freely across goroutines.
type RuleDocument struct {
	version          int
	allowExpressions bool
	resources        map[string]Resource
	names            []string
	gates            []Gate
}

// NewRuleDocument assembles a document from already-resolved resources.
// Resource names must be unique. Gates are sorted by resource then field.
func NewRuleDocument(version int, allowExpressions bool, resources []Resource, gates []Gate) (*RuleDocument, error) {
	doc := &RuleDocument{
		version:          version,
		allowExpressions: allowExpressions,
		resources:        make(map[string]Resource, len(resources)),
		names:            make([]string, 0, len(resources)),
		gates:            slices.Clone(gates),
	}
	for _, r := range resources {
		name := r.ResourceName()
		if _, dup := doc.resources[name]; dup {
			return nil, fmt.Errorf("duplicate resource %q", name)
		}
		doc.resources[name] = r
		doc.names = append(doc.names, name)
	}
	sort.Strings(doc.names)
	sort.Slice(doc.gates, func(i, j int) bool {
		if doc.gates[i].Resource != doc.gates[j].Resource {
			return doc.gates[i].Resource < doc.gates[j].Resource
		}
		return doc.gates[i].Field < doc.gates[j].Field
	})
	return doc, nil
}

// Version returns the document format version.
func (d *RuleDocument) Version() int { return d.version }

// AllowExpressions reports whether expression transform steps are permitted.
func (d *RuleDocument) AllowExpressions() bool { return d.allowExpressions }

// ResourceNames returns resource names in sorted order.
func (d *RuleDocument) ResourceNames() []string { return slices.Clone(d.names) }

// Resources returns all resources sorted by name.
func (d *RuleDocument) Resources() []Resource {
	out := make([]Resource, len(d.names))
	for i, name := range d.names {
		out[i] = d.resources[name]
	}
	return out
}

// Resource looks up a resource by name.
func (d *RuleDocument) Resource(name string) (Resource, bool) {
	r, ok := d.resources[name]
	return r, ok
}

// Gates returns the quality gates declared in the document.
func (d *RuleDocument) Gates() []Gate { return slices.Clone(d.gates) }

// HasExpressions reports whether any list field carries an Expression step.
func (d *RuleDocument) HasExpressions() bool {
	for _, r := range d.resources {
		list, ok := r.(*ListResource)
		if !ok {
			continue
		}
		for _, f := range list.Fields {
			if f.HasStep(StepExpression) {
				return true
			}
		}
	}
	return false
}
