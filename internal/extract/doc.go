// Package extract applies a rule document to HTML documents and produces rows.
//
// Extract handles a single document. Each resource is resolved independently:
// a selector that fails to compile or matches nothing degrades to a warning
// and an empty result for that resource only.
//
// ExtractBatch runs Extract over many documents on a bounded worker pool and
// merges the results in document id order. Rows are deduplicated by their
// canonical key (ir.Row.Key); the merge is sequential, so aggregate rows,
// first-seen order and duplicate counts do not depend on the worker count.
//
// The rule document is read-only during extraction and is shared across
// workers without locking.
package extract
