// Package vm implements the paxy virtual machine.
//
// This package contains:
//   - The instruction set and operator enumerations
//   - Linked code objects and their constant pools
//   - The stack interpreter and its builtins
//   - Units: serialized module code with a freshness header
//   - A disassembler
package vm
