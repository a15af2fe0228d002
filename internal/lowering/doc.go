// Package lowering rewrites XLA device operations into calls to CPU runtime
// entry points.
//
// Six op kinds are lowered, each to a fixed target:
//
//	lmhlo.custom_call     -> xla.cpu.custom_call
//	lmhlo.infeed          -> xla.cpu.infeed
//	lmhlo.outfeed         -> xla.cpu.outfeed
//	xla_cpu.partition_id  -> xla.cpu.partition_id
//	xla_cpu.replica_id    -> xla.cpu.replica_id
//	xla_cpu.all_reduce    -> xla.cpu.all_reduce
//
// Results of custom calls and collectives are passed as output buffers, so
// every declared target except the two id queries returns nothing. The id
// queries return a single i32.
//
// Run applies all six patterns to a module until none matches. Every other
// op is left untouched. Running the pass on an already lowered module is a
// no-op.
package lowering
