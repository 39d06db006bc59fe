package compiler

import (
	"slices"
	"sort"

	"github.com/roach88/ingestlab/internal/ir"
)

// mark is the depth-first visit state of a resource during resolution.
type mark int

const (
	unvisited mark = iota
	inProgress
	done
)

// resolver resolves `extends` chains over the dependency graph
// child -> parent. Each resource is resolved once and memoized.
type resolver struct {
	drafts   map[string]*draft
	marks    map[string]mark
	resolved map[string]ir.Resource
	stack    []string
}

func newResolver(drafts map[string]*draft) *resolver {
	return &resolver{
		drafts:   drafts,
		marks:    make(map[string]mark, len(drafts)),
		resolved: make(map[string]ir.Resource, len(drafts)),
	}
}

// resolveAll resolves every named resource and returns them in name order.
// Unknown parents are reported before any resolution starts.
func (r *resolver) resolveAll(names []string) ([]ir.Resource, error) {
	for _, name := range names {
		d := r.drafts[name]
		if d.extends == "" {
			continue
		}
		if _, ok := r.drafts[d.extends]; !ok {
			return nil, schemaErr(ErrUnknownParent, name, "extends", "unknown parent resource %q", d.extends)
		}
	}

	out := make([]ir.Resource, 0, len(names))
	for _, name := range names {
		res, err := r.resolve(name)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (r *resolver) resolve(name string) (ir.Resource, error) {
	switch r.marks[name] {
	case done:
		return r.resolved[name], nil
	case inProgress:
		start := slices.Index(r.stack, name)
		cycle := append(slices.Clone(r.stack[start:]), name)
		err := schemaErr(ErrCyclicInheritance, name, "extends", "cyclic inheritance")
		err.Path = cycle
		return nil, err
	}

	r.marks[name] = inProgress
	r.stack = append(r.stack, name)
	defer func() { r.stack = r.stack[:len(r.stack)-1] }()

	d := r.drafts[name]
	var parent ir.Resource
	if d.extends != "" {
		p, err := r.resolve(d.extends)
		if err != nil {
			return nil, err
		}
		parent = p
	}

	kind := d.kind
	if kind == "" {
		kind = parent.Kind()
	}
	if parent != nil && parent.Kind() != kind {
		return nil, schemaErr(ErrInheritanceKind, name, "extends",
			"%s resource cannot extend %s resource %q", kind, parent.Kind(), d.extends)
	}

	var res ir.Resource
	var err error
	switch kind {
	case ir.KindTable:
		res, err = mergeTable(d, parent)
	case ir.KindList:
		res, err = mergeList(d, parent)
	default:
		err = schemaErr(ErrUnknownKind, name, "kind", "unsupported kind %q", kind)
	}
	if err != nil {
		return nil, err
	}

	r.resolved[name] = res
	r.marks[name] = done
	return res, nil
}

func mergeTable(d *draft, parent ir.Resource) (*ir.TableResource, error) {
	if len(d.fields) > 0 {
		return nil, schemaErr(ErrMalformedDocument, d.name, "fields", "table resources declare columns, not fields")
	}
	t := &ir.TableResource{
		Name:     d.name,
		Selector: d.selector,
		Columns:  d.columns,
		Extends:  d.extends,
	}
	if p, ok := parent.(*ir.TableResource); ok {
		if t.Selector == "" {
			t.Selector = p.Selector
		}
		if !d.hasColumns {
			t.Columns = slices.Clone(p.Columns)
		}
	}

	if t.Selector == "" {
		return nil, schemaErr(ErrMissingField, d.name, "selector", "table selector must be non-empty")
	}
	if len(t.Columns) == 0 {
		return nil, schemaErr(ErrMissingField, d.name, "columns", "table must declare at least one column")
	}
	return t, nil
}

func mergeList(d *draft, parent ir.Resource) (*ir.ListResource, error) {
	if d.hasColumns {
		return nil, schemaErr(ErrMalformedDocument, d.name, "columns", "list resources declare fields, not columns")
	}
	l := &ir.ListResource{
		Name:         d.name,
		Selector:     d.selector,
		ItemSelector: d.itemSelector,
		Extends:      d.extends,
	}

	merged := make(map[string]ir.FieldMapping)
	if p, ok := parent.(*ir.ListResource); ok {
		if l.Selector == "" {
			l.Selector = p.Selector
		}
		if l.ItemSelector == "" {
			l.ItemSelector = p.ItemSelector
		}
		for _, f := range p.Fields {
			merged[f.Name] = ir.FieldMapping{
				Name:       f.Name,
				Selector:   f.Selector,
				Transforms: slices.Clone(f.Transforms),
			}
		}
	}
	for name, f := range d.fields {
		merged[name] = f
	}

	if l.Selector == "" {
		return nil, schemaErr(ErrMissingField, d.name, "selector", "list selector must be non-empty")
	}
	if l.ItemSelector == "" {
		return nil, schemaErr(ErrMissingField, d.name, "item_selector", "list item_selector must be non-empty")
	}
	if len(merged) == 0 {
		return nil, schemaErr(ErrMissingField, d.name, "fields", "list must declare at least one field")
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)
	l.Fields = make([]ir.FieldMapping, len(names))
	for i, name := range names {
		l.Fields[i] = merged[name]
	}
	return l, nil
}
