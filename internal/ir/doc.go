// Package ir provides the host intermediate representation rewritten by
// the CPU runtime lowering.
//
// This package is the foundational layer: all other internal packages
// import ir; ir imports nothing internal.
//
// The IR is deliberately small:
//   - Module: one symbol namespace of functions (definitions and
//     external declarations)
//   - Func: a single entry block with typed arguments
//   - Op: a kind tag (OpName), operands, results, attributes
//   - Value: an SSA value with use tracking
//
// Ownership is arena-like: a block owns its ops, an op owns its results.
// Erasing an op whose results still have uses fails with ErrLiveUses, so a
// rewrite can never leave a dangling operand behind.
//
// Key design constraints:
//   - Element types and shapes come from gomlx dtypes/shapes
//   - Attribute values are a sealed set (IRValue); no floats
//   - Printing is deterministic (sorted attributes, per-function value
//     numbering) so printed modules can be fingerprinted and golden-tested
package ir
