// Package store provides the SQLite-backed live destination for ingestlab.
//
// The store holds two kinds of data:
//   - Destination tables: created and extended by migration plans
//     (ApplyPlan) and described back to the planner by Introspect
//   - Apply audit: the append-only rule_apply_audit log written by the
//     safe-apply coordinator, one entry per resource per apply
//
// # Critical Patterns
//
// Audit writes are all or nothing. WriteAudit and ApplyPlan each run in a
// single transaction; a failure leaves the database unchanged.
//
// Audit reads are deterministic. Every query orders by id ASC, the
// autoincrement insertion order, never by wall-clock time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
