// Package vm implements the Lattice bit machine.
//
// This package contains:
//   - Algebraic value and type representation (Unit/Sum/Product)
//   - Bit-addressable frames over a shared arena
//   - The machine: arena, allocation pointer, read/write frame stacks
//   - The iterative combinator interpreter
//   - The jet (external capability) calling contract
//   - A content-addressed program index
package vm
