package analyze

import (
	"fmt"
	"sort"

	"github.com/roach88/ingestlab/internal/dom"
	"github.com/roach88/ingestlab/internal/ir"
)

// FieldCoverage is the share of items for which a field selector matched
// at least one node.
type FieldCoverage struct {
	Field        string  `json:"field"`
	MatchedItems int     `json:"matched_items"`
	TotalItems   int     `json:"total_items"`
	RawMatches   int     `json:"raw_matches"`
	Coverage     float64 `json:"coverage"`
}

// ResourceReport is the selector validation result of one resource.
// ItemCount and Fields are only set for list resources.
type ResourceReport struct {
	Resource      string          `json:"resource"`
	Kind          ir.Kind         `json:"kind"`
	SelectorCount int             `json:"selector_count"`
	ItemCount     int             `json:"item_count,omitempty"`
	Fields        []FieldCoverage `json:"fields,omitempty"`
}

// Field returns the coverage entry for the named field.
func (r ResourceReport) Field(name string) (FieldCoverage, bool) {
	for _, f := range r.Fields {
		if f.Field == name {
			return f, true
		}
	}
	return FieldCoverage{}, false
}

// ValidationReport is the result of Validate.
type ValidationReport struct {
	Documents int              `json:"documents"`
	Resources []ResourceReport `json:"resources"`
	Warnings  []string         `json:"warnings"`
}

// Resource returns the report for the named resource.
func (r *ValidationReport) Resource(name string) (ResourceReport, bool) {
	for _, res := range r.Resources {
		if res.Resource == name {
			return res, true
		}
	}
	return ResourceReport{}, false
}

// Validate checks every selector of doc against docs.
//
// Root matches are counted across all documents. For list resources items
// are selected under every root match and each field's coverage is the
// share of items with at least one match. Zero root matches, zero items,
// zero field coverage and selectors that fail to compile are reported as
// warnings, never as errors.
func Validate(doc *ir.RuleDocument, docs map[string]string) (*ValidationReport, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("validate: %w", ErrNoDocuments)
	}

	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parsed := make([]*dom.Document, len(ids))
	for i, id := range ids {
		d, err := dom.Parse(docs[id])
		if err != nil {
			return nil, fmt.Errorf("validate: document %q: %w", id, err)
		}
		parsed[i] = d
	}

	report := &ValidationReport{Documents: len(ids), Warnings: []string{}}
	for _, res := range doc.Resources() {
		rr := ResourceReport{Resource: res.ResourceName(), Kind: res.Kind()}
		roots, ok := selectRoots(res, parsed, report)
		rr.SelectorCount = len(roots)
		if ok {
			if l, isList := res.(*ir.ListResource); isList {
				validateList(l, roots, &rr, report)
			}
		}
		report.Resources = append(report.Resources, rr)
	}
	return report, nil
}

func (r *ValidationReport) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func selectRoots(res ir.Resource, docs []*dom.Document, report *ValidationReport) ([]dom.Node, bool) {
	sel, err := dom.Compile(res.RootSelector())
	if err != nil {
		report.warnf("resource %q: %v", res.ResourceName(), err)
		return nil, false
	}
	var roots []dom.Node
	for _, d := range docs {
		roots = append(roots, d.Select(sel)...)
	}
	if len(roots) == 0 {
		report.warnf("resource %q: selector %q matched 0 nodes", res.ResourceName(), res.RootSelector())
		return nil, false
	}
	return roots, true
}

func validateList(l *ir.ListResource, roots []dom.Node, rr *ResourceReport, report *ValidationReport) {
	itemSel, err := dom.Compile(l.ItemSelector)
	if err != nil {
		report.warnf("resource %q: item %v", l.Name, err)
		return
	}
	var items []dom.Node
	for _, root := range roots {
		items = append(items, root.Select(itemSel)...)
	}
	rr.ItemCount = len(items)
	if len(items) == 0 {
		report.warnf("resource %q: item_selector %q matched 0 nodes (root had %d)", l.Name, l.ItemSelector, len(roots))
		return
	}

	for _, f := range l.Fields {
		sel, err := dom.Compile(f.Selector)
		if err != nil {
			report.warnf("resource %q: field %q: %v", l.Name, f.Name, err)
			rr.Fields = append(rr.Fields, FieldCoverage{Field: f.Name, TotalItems: len(items)})
			continue
		}
		fc := FieldCoverage{Field: f.Name, TotalItems: len(items)}
		for _, item := range items {
			if n := len(item.Select(sel)); n > 0 {
				fc.MatchedItems++
				fc.RawMatches += n
			}
		}
		fc.Coverage = ratio(fc.MatchedItems, fc.TotalItems)
		rr.Fields = append(rr.Fields, fc)
		if fc.MatchedItems == 0 {
			report.warnf("resource %q: field %q selector %q produced 0 matches across %d items",
				l.Name, f.Name, f.Selector, len(items))
		}
	}
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
