// Package compiler turns raw rule payloads into validated ir.RuleDocument
// values and back.
//
// Payloads arrive as plain maps decoded from JSON, YAML or CUE. Build checks
// structure, resolves `extends` inheritance over an explicit dependency graph
// and produces an immutable document. Serialize is its inverse.
//
// Every construction failure is a *SchemaError carrying an E1xx code.
// Schema errors describe the document itself and are never retried.
package compiler
