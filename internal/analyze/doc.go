// Package analyze checks rule documents against real documents and rows.
//
// Everything here is synchronous and pure with respect to its inputs:
//
//   - Validate counts selector matches and per-field item coverage.
//   - Coverage measures non-empty ratios over extracted rows.
//   - EvaluateGates compares coverage against minimum ratios.
//   - SimulateConstraints runs heuristic uniqueness and orphan checks.
//   - DiffRules compares the rows two rule documents extract.
//   - EvaluateAssertions checks expected values in extracted rows.
//   - OrphanFields lists declared fields without a target column.
//
// Reports are plain structs with JSON tags so callers can render them
// without depending on internal types.
package analyze
