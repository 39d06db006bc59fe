package analyze

import (
	"fmt"
	"strings"

	"github.com/roach88/ingestlab/internal/ir"
)

// IssueKind classifies a constraint issue.
type IssueKind string

const (
	IssueUniqueViolation IssueKind = "unique_violation"
	IssueOrphan          IssueKind = "fk_orphan"
)

// ConstraintIssue is one heuristic constraint finding.
type ConstraintIssue struct {
	Kind       IssueKind `json:"kind"`
	Resource   string    `json:"resource"`
	Column     string    `json:"column"`
	Value      string    `json:"value"`
	RowIndexes []int     `json:"row_indexes"`
	// Referenced is the inferred parent resource of an orphan.
	Referenced string `json:"referenced,omitempty"`
	Message    string `json:"message"`
}

// ConstraintReport is the result of SimulateConstraints.
type ConstraintReport struct {
	Issues []ConstraintIssue `json:"issues"`
}

// HasIssues reports whether any issue was found.
func (r *ConstraintReport) HasIssues() bool { return len(r.Issues) > 0 }

// Count returns the number of issues of the given kind.
func (r *ConstraintReport) Count(kind IssueKind) int {
	n := 0
	for _, i := range r.Issues {
		if i.Kind == kind {
			n++
		}
	}
	return n
}

// isKeyColumn reports whether a column is a candidate key: "id" or any
// name ending in "_id".
func isKeyColumn(col string) bool {
	return col == "id" || strings.HasSuffix(col, "_id")
}

// referencedResource infers the parent of an "_id" column from the set of
// resource names. The stem is tried as is, then with a trailing "s"
// removed, then with one added.
func referencedResource(col string, parents map[string]bool) (string, bool) {
	stem, ok := strings.CutSuffix(col, "_id")
	if !ok || stem == "" {
		return "", false
	}
	candidates := []string{stem}
	if s, ok := strings.CutSuffix(stem, "s"); ok && s != "" {
		candidates = append(candidates, s)
	}
	candidates = append(candidates, stem+"s")
	for _, c := range candidates {
		if parents[c] {
			return c, true
		}
	}
	return "", false
}

// SimulateConstraints runs heuristic key checks over sample rows, keyed by
// resource name. This is not a constraint system: it trades precision for
// early warnings before a schema change.
//
// Uniqueness: in every resource, each "id" or "*_id" column must not repeat
// a non-empty value. Orphans: each "*_id" value must appear in the "id"
// column of the parent inferred from all resource names. A parent without
// an "id" field has no ids, so every non-empty reference to it is an
// orphan. Values compare by canonical text, so the number 5 and the text
// "5" are equal.
func SimulateConstraints(doc *ir.RuleDocument, samples map[string][]ir.Row) *ConstraintReport {
	report := &ConstraintReport{Issues: []ConstraintIssue{}}
	resources := doc.Resources()

	parents := make(map[string]bool, len(resources))
	ids := make(map[string]map[string]bool, len(resources))
	for _, res := range resources {
		name := res.ResourceName()
		parents[name] = true
		set := make(map[string]bool)
		if hasField(res, "id") {
			for _, row := range samples[name] {
				if v := row.Get("id"); !ir.IsEmpty(v) {
					set[v.String()] = true
				}
			}
		}
		ids[name] = set
	}

	for _, res := range resources {
		name := res.ResourceName()
		rows := samples[name]
		for _, col := range res.OutputFields() {
			if !isKeyColumn(col) {
				continue
			}
			report.Issues = append(report.Issues, uniqueViolations(name, col, rows)...)
		}
	}

	for _, res := range resources {
		name := res.ResourceName()
		rows := samples[name]
		for _, col := range res.OutputFields() {
			parent, ok := referencedResource(col, parents)
			if !ok {
				continue
			}
			for idx, row := range rows {
				v := row.Get(col)
				if ir.IsEmpty(v) || ids[parent][v.String()] {
					continue
				}
				report.Issues = append(report.Issues, ConstraintIssue{
					Kind:       IssueOrphan,
					Resource:   name,
					Column:     col,
					Value:      v.String(),
					RowIndexes: []int{idx},
					Referenced: parent,
					Message:    fmt.Sprintf("value %q in %s.%s has no parent in %s.id", v.String(), name, col, parent),
				})
			}
		}
	}
	return report
}

func uniqueViolations(resource, col string, rows []ir.Row) []ConstraintIssue {
	var order []string
	seen := make(map[string][]int)
	for idx, row := range rows {
		v := row.Get(col)
		if ir.IsEmpty(v) {
			continue
		}
		key := v.String()
		if _, ok := seen[key]; !ok {
			order = append(order, key)
		}
		seen[key] = append(seen[key], idx)
	}

	var issues []ConstraintIssue
	for _, key := range order {
		idxs := seen[key]
		if len(idxs) < 2 {
			continue
		}
		issues = append(issues, ConstraintIssue{
			Kind:       IssueUniqueViolation,
			Resource:   resource,
			Column:     col,
			Value:      key,
			RowIndexes: idxs,
			Message:    fmt.Sprintf("duplicate value %q in column %q of %s", key, col, resource),
		})
	}
	return issues
}

func hasField(res ir.Resource, name string) bool {
	for _, f := range res.OutputFields() {
		if f == name {
			return true
		}
	}
	return false
}
