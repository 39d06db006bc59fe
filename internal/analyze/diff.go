package analyze

import (
	"sort"

	"github.com/roach88/ingestlab/internal/extract"
	"github.com/roach88/ingestlab/internal/ir"
)

// ResourceDiff compares the rows of one resource under two rule documents.
// KindA or KindB is empty when the resource exists on one side only.
type ResourceDiff struct {
	Resource string  `json:"resource"`
	KindA    ir.Kind `json:"kind_a,omitempty"`
	KindB    ir.Kind `json:"kind_b,omitempty"`
	CountA   int     `json:"count_a"`
	CountB   int     `json:"count_b"`
	OnlyA    int     `json:"only_a"`
	OnlyB    int     `json:"only_b"`
	Overlap  int     `json:"overlap"`
}

// DiffReport is the result of DiffRules.
type DiffReport struct {
	Resources    []ResourceDiff `json:"resources"`
	TotalOnlyA   int            `json:"total_only_a"`
	TotalOnlyB   int            `json:"total_only_b"`
	TotalOverlap int            `json:"total_overlap"`
}

// DiffRules extracts docs with both a and b and compares, per resource, the
// sets of row keys. Rows are identical only when every field and value
// matches, so a renamed column makes every row unique to its side.
func DiffRules(a, b *ir.RuleDocument, docs map[string]string, opts extract.Options) *DiffReport {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rowsA := make(map[string][]ir.Row)
	rowsB := make(map[string][]ir.Row)
	for _, id := range ids {
		for name, rows := range extract.ExtractDocument(a, id, docs[id], opts).Rows {
			rowsA[name] = append(rowsA[name], rows...)
		}
		for name, rows := range extract.ExtractDocument(b, id, docs[id], opts).Rows {
			rowsB[name] = append(rowsB[name], rows...)
		}
	}

	names := make(map[string]bool)
	for _, n := range a.ResourceNames() {
		names[n] = true
	}
	for _, n := range b.ResourceNames() {
		names[n] = true
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	report := &DiffReport{Resources: []ResourceDiff{}}
	for _, name := range sorted {
		keysA := rowKeys(rowsA[name])
		keysB := rowKeys(rowsB[name])
		d := ResourceDiff{
			Resource: name,
			KindA:    kindOf(a, name),
			KindB:    kindOf(b, name),
			CountA:   len(rowsA[name]),
			CountB:   len(rowsB[name]),
		}
		for k := range keysA {
			if keysB[k] {
				d.Overlap++
			} else {
				d.OnlyA++
			}
		}
		for k := range keysB {
			if !keysA[k] {
				d.OnlyB++
			}
		}
		report.TotalOnlyA += d.OnlyA
		report.TotalOnlyB += d.OnlyB
		report.TotalOverlap += d.Overlap
		report.Resources = append(report.Resources, d)
	}
	return report
}

func rowKeys(rows []ir.Row) map[string]bool {
	keys := make(map[string]bool, len(rows))
	for _, r := range rows {
		keys[r.Key()] = true
	}
	return keys
}

func kindOf(doc *ir.RuleDocument, name string) ir.Kind {
	if res, ok := doc.Resource(name); ok {
		return res.Kind()
	}
	return ""
}
