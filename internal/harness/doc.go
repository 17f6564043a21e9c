// Package harness runs scripted replication scenarios against a live
// session.
//
// A scenario compiles its CUE classes, plays server events and local
// requests through a session backed by an in-memory journal and a manual
// clock, then checks assertions against the final state.
//
// # Scenario Format
//
//	name: spawn_then_remap
//	description: "A spawned crate is confirmed by the server"
//	schemas:
//	  - schemas/crate.cue
//	steps:
//	  - op: spawn
//	    class: Crate
//	    as: crate
//	  - op: remap
//	    ref: crate
//	    id: 500
//	assertions:
//	  - type: registered
//	    id: 500
//	    state: confirmed
//
// Steps address objects by id or by a name bound with "as" on a spawn.
// A remap step rebinds the name to the server id. Each step may name the
// error code it must fail with in expect_error.
//
// # Golden Traces
//
// RunWithGolden compares the step trace (ops, ids, error codes, calls
// and reconciliation outcomes) with testdata/golden/<name>.golden.
package harness
