// Package transform executes field transform chains.
//
// A chain is applied left to right; each step consumes the previous step's
// output. Text steps (trim, collapse_ws) pass absent and empty values
// through unchanged, to_number and parse_date map blank input to an absent
// value, and expression steps always run, even on an absent value.
//
// Expression steps are gated twice: the compiler refuses them unless the
// document allows expressions, and Apply refuses them again unless
// Options.AllowExpressions is set. Source checks run before every execution.
package transform
