// Package apply implements the safe-apply coordinator: nothing reaches the
// destination until a simulation over sample documents has passed.
//
// LIFECYCLE:
//
// Simulate extracts every sample document with transforms applied, measures
// field coverage and evaluates the quality gates. The outcome is stored as a
// SimulationRecord in a bounded in-memory table and returned to the caller.
//
// Apply takes a simulation id and the raw rule payload. It refuses, in this
// order, an unknown id, a record that was already applied, a failed
// simulation, a record older than the TTL and a payload whose hash differs
// from the simulated one. Otherwise it writes one audit entry per resource
// in a single transaction and marks the record applied.
//
// CRITICAL PATTERNS:
//
// Single Writer:
// Apply holds the coordinator mutex from the first check until the record
// transitions. Two concurrent applies of one id produce exactly one audit
// group.
//
// Logical Ids:
// Simulation ids come from a monotonic Sequence, never from wall time.
// Evicted ids are never reused.
//
// Rules Drift:
// The payload hash is SHA-256 over canonical JSON with domain separation.
// Key order and whitespace do not change it. Destination data drift between
// simulate and apply is not detected; apply only appends audit rows.
package apply
