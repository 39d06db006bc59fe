// Package ir provides the shared data model for ingestlab.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the rule and row model
// as the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Resource, TransformStep and Value are closed (sealed) unions; consumers
//     switch over the concrete types exhaustively
//   - A RuleDocument is immutable once built and safe to share across goroutines
//   - All JSON tags use snake_case
//   - Row identity (dedup key) and payload hashes use canonical JSON only
package ir
