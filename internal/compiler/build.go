package compiler

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/roach88/ingestlab/internal/ir"
)

// Top-level wire keys.
const (
	keyVersion          = "version"
	keyAllowExpressions = "allow_expressions"
	keyResources        = "resources"
	keyQualityGates     = "quality_gates"
)

// draft is an unresolved resource as written in the payload.
type draft struct {
	name    string
	kind    ir.Kind // empty when omitted and inherited from the parent
	extends string

	selector     string
	itemSelector string

	columns    []string
	hasColumns bool

	fields map[string]ir.FieldMapping
}

// Build validates a raw rule payload and resolves it into a RuleDocument.
//
// The payload shape is:
//
//	{version: int, allow_expressions: bool, resources: {name: ResourceSpec}, quality_gates?: {...}}
//
// Resources may `extends` another resource of the same kind. Inheritance is
// resolved depth first over an explicit dependency graph; cycles fail with
// ErrCyclicInheritance, kind mismatches with ErrInheritanceKind.
func Build(raw map[string]any) (*ir.RuleDocument, error) {
	if raw == nil {
		return nil, schemaErr(ErrMalformedDocument, "", "", "rule document must be a mapping")
	}

	version, err := parseVersion(raw[keyVersion])
	if err != nil {
		return nil, err
	}

	allowExpr := false
	if v, ok := raw[keyAllowExpressions]; ok && v != nil {
		b, isBool := v.(bool)
		if !isBool {
			return nil, schemaErr(ErrMalformedDocument, "", keyAllowExpressions, "must be a bool, got %T", v)
		}
		allowExpr = b
	}

	rawResources := map[string]any{}
	if v, ok := raw[keyResources]; ok && v != nil {
		m, isMap := asMap(v)
		if !isMap {
			return nil, schemaErr(ErrMalformedDocument, "", keyResources, "must be a mapping, got %T", v)
		}
		rawResources = m
	}

	names := make([]string, 0, len(rawResources))
	for name := range rawResources {
		names = append(names, name)
	}
	sort.Strings(names)

	drafts := make(map[string]*draft, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, schemaErr(ErrMalformedDocument, "", keyResources, "resource names must be non-empty")
		}
		d, err := parseDraft(name, rawResources[name], allowExpr)
		if err != nil {
			return nil, err
		}
		drafts[name] = d
	}

	resolved, err := newResolver(drafts).resolveAll(names)
	if err != nil {
		return nil, err
	}

	var gates []ir.Gate
	if v, ok := raw[keyQualityGates]; ok && v != nil {
		gates, err = ParseGates(v)
		if err != nil {
			return nil, err
		}
	}

	doc, err := ir.NewRuleDocument(version, allowExpr, resolved, gates)
	if err != nil {
		return nil, schemaErr(ErrMalformedDocument, "", "", "%v", err)
	}
	return doc, nil
}

// parseVersion accepts int-like values. JSON decoders yield float64, so an
// integral float is accepted too.
func parseVersion(v any) (int, error) {
	if v == nil {
		return ir.RuleFormatVersion, nil
	}
	var n int
	switch val := v.(type) {
	case int:
		n = val
	case int64:
		n = int(val)
	case float64:
		if val != math.Trunc(val) {
			return 0, schemaErr(ErrMalformedDocument, "", keyVersion, "must be an integer, got %v", val)
		}
		n = int(val)
	default:
		return 0, schemaErr(ErrMalformedDocument, "", keyVersion, "must be an integer, got %T", v)
	}
	if n < 1 {
		return 0, schemaErr(ErrMalformedDocument, "", keyVersion, "must be positive, got %d", n)
	}
	return n, nil
}

func parseDraft(name string, v any, allowExpr bool) (*draft, error) {
	spec, ok := asMap(v)
	if !ok {
		return nil, schemaErr(ErrMalformedDocument, name, "", "resource must be a mapping, got %T", v)
	}

	d := &draft{name: name}

	if raw, ok := spec["kind"]; ok && raw != nil {
		kind, isStr := raw.(string)
		if !isStr {
			return nil, schemaErr(ErrUnknownKind, name, "kind", "must be a string, got %T", raw)
		}
		switch ir.Kind(strings.TrimSpace(kind)) {
		case ir.KindTable:
			d.kind = ir.KindTable
		case ir.KindList:
			d.kind = ir.KindList
		default:
			return nil, schemaErr(ErrUnknownKind, name, "kind", "unsupported kind %q", kind)
		}
	}

	var err error
	if d.extends, err = optionalString(spec, "extends", name); err != nil {
		return nil, err
	}
	if d.kind == "" && d.extends == "" {
		return nil, schemaErr(ErrUnknownKind, name, "kind", "kind is required")
	}
	if d.selector, err = optionalString(spec, "selector", name); err != nil {
		return nil, err
	}
	if d.itemSelector, err = optionalString(spec, "item_selector", name); err != nil {
		return nil, err
	}

	if raw, ok := spec["columns"]; ok && raw != nil {
		if d.kind == ir.KindList {
			return nil, schemaErr(ErrMalformedDocument, name, "columns", "list resources declare fields, not columns")
		}
		cols, err := parseColumns(name, raw)
		if err != nil {
			return nil, err
		}
		d.columns = cols
		d.hasColumns = true
	}

	if raw, ok := spec["fields"]; ok && raw != nil {
		if d.kind == ir.KindTable {
			return nil, schemaErr(ErrMalformedDocument, name, "fields", "table resources declare columns, not fields")
		}
		fields, err := parseFields(name, raw, allowExpr)
		if err != nil {
			return nil, err
		}
		d.fields = fields
	}

	return d, nil
}

func parseColumns(resource string, v any) ([]string, error) {
	list, ok := v.([]any)
	if !ok {
		if strs, isStrs := v.([]string); isStrs {
			list = make([]any, len(strs))
			for i, s := range strs {
				list[i] = s
			}
		} else {
			return nil, schemaErr(ErrMalformedDocument, resource, "columns", "must be a list, got %T", v)
		}
	}

	cols := make([]string, 0, len(list))
	seen := make(map[string]bool, len(list))
	for i, item := range list {
		col, isStr := item.(string)
		col = strings.TrimSpace(col)
		if !isStr || col == "" {
			return nil, schemaErr(ErrMalformedDocument, resource, fmt.Sprintf("columns[%d]", i), "column names must be non-empty strings")
		}
		if seen[col] {
			return nil, schemaErr(ErrDuplicateName, resource, "columns", "duplicate column %q", col)
		}
		seen[col] = true
		cols = append(cols, col)
	}
	return cols, nil
}

func parseFields(resource string, v any, allowExpr bool) (map[string]ir.FieldMapping, error) {
	m, ok := asMap(v)
	if !ok {
		return nil, schemaErr(ErrMalformedDocument, resource, "fields", "must be a mapping, got %T", v)
	}

	fields := make(map[string]ir.FieldMapping, len(m))
	for name, spec := range m {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			return nil, schemaErr(ErrMalformedDocument, resource, "fields", "field names must be non-empty")
		}
		if _, dup := fields[trimmed]; dup {
			return nil, schemaErr(ErrDuplicateName, resource, "fields", "duplicate field %q", trimmed)
		}
		fm, err := parseFieldMapping(resource, trimmed, spec, allowExpr)
		if err != nil {
			return nil, err
		}
		fields[trimmed] = fm
	}
	return fields, nil
}

func parseFieldMapping(resource, name string, v any, allowExpr bool) (ir.FieldMapping, error) {
	fieldPath := "fields." + name
	switch val := v.(type) {
	case string:
		sel := strings.TrimSpace(val)
		if sel == "" {
			return ir.FieldMapping{}, schemaErr(ErrMissingField, resource, fieldPath, "selector must be non-empty")
		}
		return ir.FieldMapping{Name: name, Selector: sel}, nil
	default:
		spec, ok := asMap(v)
		if !ok {
			return ir.FieldMapping{}, schemaErr(ErrMalformedDocument, resource, fieldPath, "must be a selector string or mapping, got %T", v)
		}
		sel, _ := spec["selector"].(string)
		sel = strings.TrimSpace(sel)
		if sel == "" {
			return ir.FieldMapping{}, schemaErr(ErrMissingField, resource, fieldPath, "mapping requires a non-empty selector")
		}
		steps, err := parseTransforms(resource, fieldPath, spec["transforms"], allowExpr)
		if err != nil {
			return ir.FieldMapping{}, err
		}
		return ir.FieldMapping{Name: name, Selector: sel, Transforms: steps}, nil
	}
}

func optionalString(spec map[string]any, key, resource string) (string, error) {
	raw, ok := spec[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, isStr := raw.(string)
	if !isStr {
		return "", schemaErr(ErrMalformedDocument, resource, key, "must be a string, got %T", raw)
	}
	return strings.TrimSpace(s), nil
}

// asMap accepts the map shapes produced by encoding/json, yaml.v3 and CUE.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	default:
		return nil, false
	}
}
