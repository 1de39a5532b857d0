package bytecode

import "github.com/db47h/exprcore/internal/scalar"

// Op identifies the four instruction variants a Code Block can hold
// (spec.md §3 "Instruction (C)").
type Op int

const (
	// OpLoadConst pushes a value from the constant pool.
	OpLoadConst Op = iota
	// OpLoadArg pushes one of the block's own arguments.
	OpLoadArg
	// OpCallCode invokes another Block (a user function or variable
	// reference) with the top Arity values on the stack.
	OpCallCode
	// OpCallFunc invokes a builtin Callable with the top Arity values.
	OpCallFunc
)

// Callable is a named, arity-tagged function the bytecode can invoke via
// OpCallFunc: a builtin operator or named function from the registry.
type Callable struct {
	Name  string
	Arity int
	Fn    func(args []scalar.Scalar) (scalar.Scalar, error)
}

// Instruction is one step of a Block's bytecode. Arity is carried on the
// instruction itself (not just on the callee) so verification never needs
// to dereference Callee/Ref, per the DESIGN NOTES in spec.md §9.
type Instruction struct {
	Op     Op
	Index  int       // const-pool index (OpLoadConst) or arg index (OpLoadArg)
	Callee *Block    // OpCallCode target
	Ref    *Callable // OpCallFunc target
	Arity  int       // arity of Callee/Ref, duplicated here for verification
}
