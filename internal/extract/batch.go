package extract

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/ingestlab/internal/ir"
)

// BatchOptions controls ExtractBatch.
type BatchOptions struct {
	Options

	// Workers bounds the number of documents extracted concurrently.
	// Values below 1 mean 1.
	Workers int
}

// ExtractBatch extracts every document in docs and merges the rows per
// resource, dropping duplicates by canonical row key.
//
// Documents are extracted on at most Workers goroutines. Results are stored
// by document index and merged afterwards in document id order, so the
// result is identical for any worker count. Cancelling ctx stops scheduling
// new documents and returns ctx.Err().
func ExtractBatch(ctx context.Context, doc *ir.RuleDocument, docs map[string]string, opts BatchOptions) (*BatchResult, error) {
	start := time.Now()
	workers := max(opts.Workers, 1)

	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	p := prepare(doc)
	results := make([]*Result, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.run(id, docs[id], opts.Options)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extract batch: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract batch: %w", err)
	}

	out := merge(doc.ResourceNames(), results)
	out.Elapsed = time.Since(start)

	opts.logger().Debug("batch extracted",
		"documents", len(ids),
		"workers", workers,
		"resources", len(out.ResourceAggregates),
		"warnings", len(out.Warnings),
		"elapsed", out.Elapsed)
	return out, nil
}

// merge folds per-document results, in the order given, into aggregates.
// Unique rows keep first-seen order; a row whose key was already seen
// counts as a duplicate, including repeats inside one document.
func merge(resources []string, results []*Result) *BatchResult {
	out := &BatchResult{
		Aggregated:      make(map[string][]ir.Row, len(resources)),
		DuplicateCounts: make(map[string]int, len(resources)),
		Documents:       len(results),
	}

	seen := make(map[string]map[string]struct{}, len(resources))
	totals := make(map[string]int, len(resources))
	for _, name := range resources {
		out.Aggregated[name] = []ir.Row{}
		out.DuplicateCounts[name] = 0
		seen[name] = make(map[string]struct{})
	}

	for _, r := range results {
		out.NodeCount += r.NodeCount
		out.Warnings = append(out.Warnings, r.Warnings...)

		for _, name := range resources {
			rows := r.Rows[name]
			stat := FileStat{Document: r.Document, Resource: name, RecordCount: len(rows)}
			for _, row := range rows {
				key := row.Key()
				if _, dup := seen[name][key]; dup {
					stat.Overlapping++
					out.DuplicateCounts[name]++
					continue
				}
				seen[name][key] = struct{}{}
				out.Aggregated[name] = append(out.Aggregated[name], row)
				stat.Added++
			}
			totals[name] += len(rows)
			out.FileStats = append(out.FileStats, stat)
		}
	}

	for _, name := range resources {
		out.ResourceAggregates = append(out.ResourceAggregates, ResourceAggregate{
			Resource:         name,
			TotalRecords:     totals[name],
			UniqueRecords:    len(out.Aggregated[name]),
			DuplicateRecords: out.DuplicateCounts[name],
		})
	}
	return out
}
