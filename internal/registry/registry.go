// Package registry implements the Builtin Registry (spec.md §4.E): the
// static table of symbolic operators and named functions/constants, plus
// the two prefix-trees (spec.md §4.B) used to recognize operator tokens in
// prefix (unary) vs. infix (binary) position. Everything here is built
// once at package init time — the lazy-static pattern spec.md §9 calls out
// as "a code smell elsewhere" is deliberately not reproduced.
package registry

import (
	"github.com/db47h/exprcore/internal/bytecode"
	"github.com/db47h/exprcore/internal/scalar"
	"github.com/db47h/exprcore/internal/trie"
)

// Assoc is an operator's associativity.
type Assoc int

const (
	Left Assoc = iota
	Right
)

// Operator is a symbolic unary or binary operator (spec.md §4.E).
type Operator struct {
	Symbol string
	Prec   int
	Assoc  Assoc
	Unary  bool
	Fn     func(args []scalar.Scalar) (scalar.Scalar, error)
}

// Priority encodes (prec, assoc) as spec.md §4.D requires: "(prec << 1) |
// (left_assoc ? 1 : 0)". The odd bit only ever matters for an operator
// sitting on the yard's stack: it's what lets a same-precedence
// left-associative entry be distinguished from a right-associative one
// when the yard compares it against an incoming operator's precedence
// alone (see yard.displaceFixityBelow, which deliberately does not call
// Priority() on the incoming operator, only on the one already stacked).
func (o Operator) Priority() int {
	p := o.Prec << 1
	if o.Assoc == Left {
		p |= 1
	}
	return p
}

// Callable adapts an Operator to a bytecode.Callable.
func (o Operator) Callable() *bytecode.Callable {
	arity := 2
	if o.Unary {
		arity = 1
	}
	return &bytecode.Callable{Name: o.Symbol, Arity: arity, Fn: o.Fn}
}

// Named is a named function or, when Arity == 0, a named constant
// (spec.md §4.E).
type Named struct {
	Name  string
	Arity int
	Fn    func(args []scalar.Scalar) (scalar.Scalar, error)
}

// Callable adapts a Named function to a bytecode.Callable.
func (n Named) Callable() *bytecode.Callable {
	return &bytecode.Callable{Name: n.Name, Arity: n.Arity, Fn: n.Fn}
}

// Value evaluates a zero-arity Named (a constant).
func (n Named) Value() (scalar.Scalar, error) {
	return n.Fn(nil)
}

var (
	unaryOps  []Operator
	binaryOps []Operator
	named     map[string]Named

	// PrefixOps and InfixOps are the prefix-trees used by the parser to
	// recognize the longest operator token at a given position, per
	// spec.md §4.B.
	PrefixOps *trie.Tree[Operator]
	InfixOps  *trie.Tree[Operator]
)

func init() {
	unaryOps = []Operator{
		{Symbol: "-", Prec: 100, Assoc: Left, Unary: true, Fn: func(a []scalar.Scalar) (scalar.Scalar, error) {
			return scalar.Neg(a[0]), nil
		}},
	}
	binaryOps = []Operator{
		{Symbol: "+", Prec: 64, Assoc: Left, Fn: func(a []scalar.Scalar) (scalar.Scalar, error) {
			return scalar.Add(a[0], a[1]), nil
		}},
		{Symbol: "-", Prec: 64, Assoc: Left, Fn: func(a []scalar.Scalar) (scalar.Scalar, error) {
			return scalar.Sub(a[0], a[1]), nil
		}},
		{Symbol: "*", Prec: 96, Assoc: Left, Fn: func(a []scalar.Scalar) (scalar.Scalar, error) {
			return scalar.Mul(a[0], a[1]), nil
		}},
		{Symbol: "/", Prec: 96, Assoc: Left, Fn: func(a []scalar.Scalar) (scalar.Scalar, error) {
			return scalar.Div(a[0], a[1]), nil
		}},
		{Symbol: "//", Prec: 96, Assoc: Left, Fn: func(a []scalar.Scalar) (scalar.Scalar, error) {
			return scalar.FloorDiv(a[0], a[1]), nil
		}},
		{Symbol: "%", Prec: 96, Assoc: Left, Fn: func(a []scalar.Scalar) (scalar.Scalar, error) {
			return scalar.Mod(a[0], a[1]), nil
		}},
		{Symbol: "^", Prec: 112, Assoc: Right, Fn: func(a []scalar.Scalar) (scalar.Scalar, error) {
			return scalar.Pow(a[0], a[1]), nil
		}},
	}

	PrefixOps = trie.New[Operator]()
	for _, op := range unaryOps {
		PrefixOps.Insert(op.Symbol, op)
	}
	InfixOps = trie.New[Operator]()
	for _, op := range binaryOps {
		InfixOps.Insert(op.Symbol, op)
	}

	named = map[string]Named{
		"abs":   {Name: "abs", Arity: 1, Fn: func(a []scalar.Scalar) (scalar.Scalar, error) { return scalar.Abs(a[0]), nil }},
		"floor": {Name: "floor", Arity: 1, Fn: func(a []scalar.Scalar) (scalar.Scalar, error) { return scalar.Floor(a[0]), nil }},
		"ceil":  {Name: "ceil", Arity: 1, Fn: func(a []scalar.Scalar) (scalar.Scalar, error) { return scalar.Ceil(a[0]), nil }},
		"sqrt":  {Name: "sqrt", Arity: 1, Fn: func(a []scalar.Scalar) (scalar.Scalar, error) { return scalar.Sqrt(a[0]), nil }},
		"log":   {Name: "log", Arity: 2, Fn: func(a []scalar.Scalar) (scalar.Scalar, error) { return scalar.Log(a[0], a[1]), nil }},
		"ln":    {Name: "ln", Arity: 1, Fn: func(a []scalar.Scalar) (scalar.Scalar, error) { return scalar.Ln(a[0]), nil }},
		"sin":   {Name: "sin", Arity: 1, Fn: func(a []scalar.Scalar) (scalar.Scalar, error) { return scalar.Sin(a[0]), nil }},
		"cos":   {Name: "cos", Arity: 1, Fn: func(a []scalar.Scalar) (scalar.Scalar, error) { return scalar.Cos(a[0]), nil }},
		"tan":   {Name: "tan", Arity: 1, Fn: func(a []scalar.Scalar) (scalar.Scalar, error) { return scalar.Tan(a[0]), nil }},
		"pi":    {Name: "pi", Arity: 0, Fn: func(a []scalar.Scalar) (scalar.Scalar, error) { return scalar.Pi, nil }},
		"e":     {Name: "e", Arity: 0, Fn: func(a []scalar.Scalar) (scalar.Scalar, error) { return scalar.E, nil }},
	}
}

// LookupNamed returns the Named builtin registered under name, if any.
func LookupNamed(name string) (Named, bool) {
	n, ok := named[name]
	return n, ok
}
