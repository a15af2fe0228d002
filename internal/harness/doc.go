// Package harness provides conformance testing for the CPU runtime lowering.
//
// A scenario names a CUE module, lowers it with deterministic run IDs and
// sequence numbers, and checks the rewritten module and the rewrite trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: hole_filling
//	description: "Unmapped slots receive the shared placeholder buffer"
//	module: modules/hole_filling.cue
//	run_twice: true
//	assertions:
//	  - type: trace_count
//	    target: xla.cpu.custom_call
//	    count: 1
//	  - type: call_operands
//	    target: xla.cpu.custom_call
//	    operands: ["%arg0", "%0"]
//	  - type: final_state
//	    table: declarations
//	    where: { target: xla.cpu.custom_call }
//	    expect: { symbol: xla.cpu.custom_call }
//
// The module path is resolved relative to the scenario file.
//
// # Assertion Types
//
//   - trace_count: Exactly N rewrites emitted calls to a target
//   - trace_order: Targets were first rewritten to in the given order
//   - op_count: The lowered module holds exactly N ops of a kind
//   - declaration_count: Exactly N runtime declarations exist after lowering
//   - call_operands: The operands of a runtime call, by printed value name
//   - attr: An attribute of a runtime call, in printed form
//   - final_state: Queries the run log (runs, rewrites, declarations)
//
// # Deterministic Testing
//
// The harness uses:
//   - A fixed run ID (scenario.run_id, or "test-run-default")
//   - Deterministic logical clock (testutil.DeterministicClock)
//   - In-memory SQLite run log (isolated per scenario)
//
// Lowering the same scenario twice therefore yields byte-identical traces,
// which RunWithGolden compares against testdata/golden.
package harness
