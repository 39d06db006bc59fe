package analyze

import (
	"github.com/roach88/ingestlab/internal/ir"
)

// Mapping assigns target columns to extracted fields:
// resource -> field -> column. Unmapped fields target a column of their
// own name.
type Mapping map[string]map[string]string

// Target returns the target column of a field.
func (m Mapping) Target(resource, field string) string {
	if col, ok := m[resource][field]; ok && col != "" {
		return col
	}
	return field
}

// Mapped reports whether the mapping names a target for the field.
func (m Mapping) Mapped(resource, field string) bool {
	_, ok := m[resource][field]
	return ok
}

// FieldStat is the coverage of one field over a set of rows.
type FieldStat struct {
	Field         string  `json:"field"`
	TargetColumn  string  `json:"target_column"`
	NonEmpty      int     `json:"non_empty"`
	TotalRows     int     `json:"total_rows"`
	Distinct      int     `json:"distinct"`
	CoverageRatio float64 `json:"coverage_ratio"`
}

// ResourceCoverage is the coverage of every field of one resource.
type ResourceCoverage struct {
	Resource        string      `json:"resource"`
	Kind            ir.Kind     `json:"kind"`
	Fields          []FieldStat `json:"fields"`
	AverageCoverage float64     `json:"average_coverage"`
	// MissingColumns lists target columns that never received a value.
	MissingColumns []string `json:"missing_columns"`
}

// Field returns the stat for the named field.
func (r ResourceCoverage) Field(name string) (FieldStat, bool) {
	for _, f := range r.Fields {
		if f.Field == name {
			return f, true
		}
	}
	return FieldStat{}, false
}

// CoverageReport is the result of Coverage.
type CoverageReport struct {
	Resources          []ResourceCoverage `json:"resources"`
	TotalTargetColumns int                `json:"total_target_columns"`
	TotalNonEmptyCells int                `json:"total_non_empty_cells"`
	TotalPossibleCells int                `json:"total_possible_cells"`
	OverallRatio       float64            `json:"overall_ratio"`
}

// Ratio returns the coverage ratio of resource.field, or 0 when the report
// has no such field.
func (r *CoverageReport) Ratio(resource, field string) float64 {
	for _, res := range r.Resources {
		if res.Resource != resource {
			continue
		}
		if f, ok := res.Field(field); ok {
			return f.CoverageRatio
		}
	}
	return 0
}

// Coverage computes per-field non-empty ratios over rows, which are usually
// the aggregated rows of a batch extraction. Every resource of doc is
// reported, in name order, including resources with no rows.
//
// A value counts as non-empty unless it is absent or blank text. Distinct
// counts compare canonical text forms.
func Coverage(doc *ir.RuleDocument, rows map[string][]ir.Row, mapping Mapping) *CoverageReport {
	report := &CoverageReport{}
	for _, res := range doc.Resources() {
		name := res.ResourceName()
		resRows := rows[name]
		rc := ResourceCoverage{Resource: name, Kind: res.Kind(), MissingColumns: []string{}}

		var sum float64
		for _, field := range res.OutputFields() {
			stat := FieldStat{
				Field:        field,
				TargetColumn: mapping.Target(name, field),
				TotalRows:    len(resRows),
			}
			distinct := make(map[string]struct{})
			for _, row := range resRows {
				v := row.Get(field)
				if ir.IsEmpty(v) {
					continue
				}
				stat.NonEmpty++
				distinct[v.String()] = struct{}{}
			}
			stat.Distinct = len(distinct)
			stat.CoverageRatio = ratio(stat.NonEmpty, stat.TotalRows)
			if stat.NonEmpty == 0 {
				rc.MissingColumns = append(rc.MissingColumns, stat.TargetColumn)
			}
			sum += stat.CoverageRatio
			rc.Fields = append(rc.Fields, stat)

			report.TotalTargetColumns++
			report.TotalNonEmptyCells += stat.NonEmpty
			report.TotalPossibleCells += stat.TotalRows
		}
		if len(rc.Fields) > 0 {
			rc.AverageCoverage = sum / float64(len(rc.Fields))
		}
		report.Resources = append(report.Resources, rc)
	}
	report.OverallRatio = ratio(report.TotalNonEmptyCells, report.TotalPossibleCells)
	return report
}
