// Package vm implements the piccolo object/value substrate.
//
// This package contains:
//   - Fixed-width tagged value representation
//   - Heap object layout and generation-checked handles
//   - Stop-the-world mark-sweep garbage collector
//   - Type table with single-inheritance attribute dispatch
//   - Stack-based calling convention (vectorcall)
//   - Cooperative pending-exception protocol
//   - Native function and property binding
package vm
