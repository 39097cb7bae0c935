// Package ir defines the intermediate representation shared by the paxy
// parser and assembler.
//
// The parser never emits linked bytecode. It produces, per lexical scope, a
// list of Items: concrete Operations mixed with symbolic constructs the
// assembler must resolve.
//
//   - LabelDecl declares a jump target by name
//   - JumpRef is an undirected goto whose direction is decided later
//   - NamedJump is a native jump whose operand is still a name
//   - FuncDef is a nested, independently scoped SUB body
//   - ReturnMarker is a bare RET
//   - LoopBlock is RNG range-iteration sugar
//
// After resolution a scope's list holds only *Operation and *Label values.
// Item is a closed sum type: only the types in this package implement it,
// so a type switch over Item can be checked for exhaustiveness.
package ir
