// Package migrate plans destination schema changes from a rule document.
//
// Column types are inferred from transform chains: a field with a to_number
// step is a number, otherwise a field with a parse_date step is a date,
// everything else is a string. Table columns carry no transforms and are
// strings. Numbers map to REAL, dates and strings to TEXT.
//
// The planner only proposes DDL. Executing a plan is an explicit operator
// action (store.ApplyPlan). Type mismatches against the live schema are
// reported as notes and never turned into destructive changes.
//
// The sandbox builds the same inferred schema in a disposable in-memory
// database (modernc.org/sqlite) so mappings and transforms can be rehearsed
// end to end without touching the live store.
package migrate
