package extract

import (
	"fmt"
	"time"

	"github.com/roach88/ingestlab/internal/ir"
)

// Severity classifies a warning.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Warning is a non-fatal extraction problem with its context.
type Warning struct {
	Resource string   `json:"resource"`
	Field    string   `json:"field,omitempty"`
	Document string   `json:"document,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (w Warning) String() string {
	s := w.Resource
	if w.Field != "" {
		s += "." + w.Field
	}
	if w.Document != "" {
		s = fmt.Sprintf("%s [%s]", s, w.Document)
	}
	return fmt.Sprintf("%s: %s", s, w.Message)
}

// ResourceSummary is the per-resource outcome of one document.
type ResourceSummary struct {
	Resource    string  `json:"resource"`
	Kind        ir.Kind `json:"kind"`
	RecordCount int     `json:"record_count"`
	// Matches counts root matches for tables and item matches for lists.
	Matches  int      `json:"matches"`
	Warnings []string `json:"warnings,omitempty"`
}

// Result is the outcome of extracting one document.
type Result struct {
	Document  string              `json:"document,omitempty"`
	Rows      map[string][]ir.Row `json:"rows"`
	Summaries []ResourceSummary   `json:"summaries"`
	Warnings  []Warning           `json:"warnings,omitempty"`
	Elapsed   time.Duration       `json:"elapsed_ns"`
	NodeCount int                 `json:"node_count"`
}

// RecordCount returns the total number of rows across resources.
func (r *Result) RecordCount() int {
	n := 0
	for _, rows := range r.Rows {
		n += len(rows)
	}
	return n
}

// ResourceAggregate is the batch total for one resource.
type ResourceAggregate struct {
	Resource         string `json:"resource"`
	TotalRecords     int    `json:"total_records"`
	UniqueRecords    int    `json:"unique_records"`
	DuplicateRecords int    `json:"duplicate_records"`
}

// FileStat is the contribution of one document to one resource. Documents
// where the resource produced nothing still get a zero entry.
type FileStat struct {
	Document    string `json:"document"`
	Resource    string `json:"resource"`
	RecordCount int    `json:"record_count"`
	Added       int    `json:"added"`
	Overlapping int    `json:"overlapping"`
}

// BatchResult is the merged outcome of ExtractBatch.
type BatchResult struct {
	Aggregated         map[string][]ir.Row `json:"aggregated"`
	DuplicateCounts    map[string]int      `json:"duplicate_counts"`
	ResourceAggregates []ResourceAggregate `json:"resource_aggregates"`
	FileStats          []FileStat          `json:"file_stats"`
	Warnings           []Warning           `json:"warnings,omitempty"`
	Documents          int                 `json:"documents"`
	Elapsed            time.Duration       `json:"elapsed_ns"`
	NodeCount          int                 `json:"node_count"`
}

// Aggregate returns the aggregate for the named resource.
func (b *BatchResult) Aggregate(resource string) (ResourceAggregate, bool) {
	for _, a := range b.ResourceAggregates {
		if a.Resource == resource {
			return a, true
		}
	}
	return ResourceAggregate{}, false
}
