// Package expr implements the sandboxed expression language used by the
// `expr` transform step.
//
// An expression is a single pure computation over one bound variable,
// `value`, holding the field's current value. The grammar covers literals,
// arithmetic, string concatenation, comparisons, boolean logic, a
// conditional form (`a if cond else b`) and calls to a fixed allow-list of
// builtin functions. There is no attribute access, indexing, assignment,
// looping or name lookup beyond `value` and the builtins, so the language
// cannot reach anything outside the value it is given.
//
// Source is checked before parsing (length cap, forbidden tokens), the
// syntax tree is bounded in size and depth, and string results are capped.
// A compiled Program is immutable and safe for concurrent use.
//
//	p, err := expr.Compile(`upper(trim(value)) if value != null else "n/a"`)
//	out, err := p.Eval(ir.Text(" ann "))   // ir.Text("ANN")
package expr
