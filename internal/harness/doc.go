// Package harness runs ingestion scenarios end to end for tests.
//
// A scenario bundles a rule document, a set of inline HTML documents and
// the outcomes expected from every stage of the pipeline: batch
// extraction, quality gates, constraint simulation, schema planning and
// the simulate-then-apply step with its audit log.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: players
//	description: "Two pages that share a player"
//	rules:                  # inline rule document, or rules_file: path
//	  version: 1
//	  resources:
//	    players:
//	      kind: list
//	      selector: ul.p
//	      item_selector: li
//	      fields:
//	        name: {selector: span.n}
//	documents:
//	  a.html: "<ul class=p><li><span class=n>Ann</span></li></ul>"
//	quality_gates:
//	  players.name: 1.0
//	live_schema:            # tables present before planning
//	  players: {name: TEXT}
//	apply: true             # run simulate + apply against the live store
//	assertions:
//	  - resource: players
//	    field: name
//	    expect: Ann
//	expect:
//	  aggregates:
//	    players: {total: 1, unique: 1, duplicates: 0}
//	  gates_passed: true
//	  constraint_issues: 0
//	  plan_actions: [create_table players]
//	  simulation_passed: true
//	  audit_rows: 1
//
// # Deterministic Execution
//
// Every run uses a fresh in-memory SQLite store, a testutil.ManualClock
// fixed at testutil.Epoch and sequential batch ids ("batch-0001", ...), so
// the snapshot compared by RunWithGolden is identical across runs.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/players.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
