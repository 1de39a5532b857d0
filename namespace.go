// Package exprcore implements the expression engine's top-level Namespace
// (spec.md §4.G): a container of named Variables — zero-arity values or
// user-defined functions — with forward declaration, redefinition and
// arity checks, and cycle detection over the dependency graph.
package exprcore

import (
	"fmt"
	"io"
	"strings"

	"github.com/db47h/exprcore/internal/bytecode"
	"github.com/db47h/exprcore/internal/errcode"
	"github.com/db47h/exprcore/internal/parser"
	"github.com/db47h/exprcore/internal/scalar"
)

// Variable is a named entry in a Namespace: either a zero-arity value or a
// user-defined function. Its identity (and the identity of the Block it
// wraps) is stable for the Variable's whole lifetime — forward references
// captured via CallCode point at this same Block; defining a
// forward-declared name fills the Block in place rather than replacing it.
type Variable struct {
	name        string
	block       *bytecode.Block
	argNames    []string
	implemented bool

	deps   []*Variable
	usedBy *Variable
}

// Name returns the variable's name.
func (v *Variable) Name() string { return v.name }

// ArgNames returns the variable's declared argument names (nil for a
// zero-arity variable).
func (v *Variable) ArgNames() []string { return v.argNames }

// Arity returns the variable's argument count, or -1 if still unknown.
func (v *Variable) Arity() int { return v.block.Arity() }

// Value evaluates the variable with no arguments. This is only legal for
// an arity-0 variable; evaluating a function variable this way, or an
// unimplemented (forward-declared only) one, is a defined failure.
func (v *Variable) Value() (scalar.Scalar, error) {
	if !v.implemented {
		return scalar.Scalar{}, errcode.IncompleteCode
	}
	if v.block.Arity() != 0 {
		return scalar.Scalar{}, errcode.MissingArgs
	}
	return v.block.Eval(nil)
}

// Print writes the variable's printed value to w, or "ERR <code>" if
// evaluation fails, and returns the number of bytes written.
func (v *Variable) Print(w io.Writer) (int, error) {
	val, err := v.Value()
	if err != nil {
		return io.WriteString(w, "ERR "+err.Error())
	}
	return io.WriteString(w, val.String())
}

// Namespace is the top-level container of named Variables.
type Namespace struct {
	vars        []*Variable
	index       map[string]*Variable
	tryEval     bool
	anonCounter int

	lastCycle []string
	lastRedef string
}

// Option configures a Namespace at construction time.
type Option func(*Namespace)

// EvalOnParse sets whether constant subexpressions are folded during
// parsing (try_eval) rather than at first evaluation. It corresponds to
// spec.md §6's namespace_new(eval_on_parse) parameter.
func EvalOnParse(on bool) Option {
	return func(ns *Namespace) { ns.tryEval = on }
}

// NewNamespace returns an empty Namespace.
func NewNamespace(opts ...Option) *Namespace {
	ns := &Namespace{index: make(map[string]*Variable)}
	for _, o := range opts {
		o(ns)
	}
	return ns
}

// Names returns every variable name currently registered, in the order
// each was first referenced or defined.
func (ns *Namespace) Names() []string {
	names := make([]string, len(ns.vars))
	for i, v := range ns.vars {
		names[i] = v.name
	}
	return names
}

// Get looks up an existing variable by name.
func (ns *Namespace) Get(name string) (*Variable, bool) {
	v, ok := ns.index[name]
	return v, ok
}

// Put returns the Code Block backing name, forward-declaring an empty,
// unimplemented Variable for it if this is the first reference. It
// implements parser.Resolver, which is how the parser package observes
// new names without importing this package back.
func (ns *Namespace) Put(name string) *bytecode.Block {
	return ns.putVar(name).block
}

func (ns *Namespace) putVar(name string) *Variable {
	if v, ok := ns.index[name]; ok {
		return v
	}
	v := &Variable{name: name, block: bytecode.NewBlock()}
	ns.index[name] = v
	ns.vars = append(ns.vars, v)
	return v
}

// Define parses text as an optional "name[(arg1, ...)]:" label followed by
// an expression, and binds the expression to that name (or, absent a
// label, to an internal anonymous name, so every successful parse still
// yields a usable Variable — spec.md §6's `define -> var_ref?` return
// shape is optional only because of the error case). It implements the
// decision tree in spec.md §4.G.
func (ns *Namespace) Define(text string) (int, *Variable, error) {
	label, argNames, bodyStart, hasLabel := parser.ParseLabel(text)
	name := label
	if !hasLabel {
		ns.anonCounter++
		name = fmt.Sprintf("$%d", ns.anonCounter)
	}

	existing, exists := ns.index[name]
	if exists && existing.implemented {
		ns.lastRedef = name
		return bodyStart, nil, errcode.Redef
	}
	if exists && existing.block.Arity() >= 0 && existing.block.Arity() != len(argNames) {
		return bodyStart, nil, errcode.ArityMismatch
	}

	v := existing
	if !exists {
		v = ns.putVar(name)
	}
	v.block.Reset()
	if !v.block.SetArity(len(argNames)) {
		return bodyStart, nil, errcode.ArityMismatch
	}

	n, perr := parser.ParseInto(v.block, text[bodyStart:], argNames, ns, ns.tryEval)
	if perr != nil {
		v.block.Reset()
		return bodyStart + n, nil, errcode.At(perr.Code, bodyStart+perr.Pos)
	}

	v.argNames = argNames
	v.implemented = true
	v.deps = ns.depsOf(v.block)

	if cycle := ns.detectCycle(v); cycle != nil {
		v.block.Reset()
		v.implemented = false
		v.deps = nil
		ns.lastCycle = cycle
		return bodyStart + n, nil, errcode.CircularDependency
	}
	return bodyStart + n, v, nil
}

// Eval parses text as a single bare expression (no label) and evaluates it
// immediately against a scratch zero-arity Code Block, without binding it
// to any name in the Namespace. References to existing variables still
// resolve normally, and an unresolved one is still forward-declared in the
// Namespace as a side effect of parsing, exactly as it would be inside a
// real definition's body.
func (ns *Namespace) Eval(text string) (scalar.Scalar, error) {
	block, _, perr := parser.ParseExpression(text, nil, ns, ns.tryEval)
	if perr != nil {
		return scalar.Scalar{}, perr
	}
	return block.Eval(nil)
}

// depsOf maps a block's CallCode dependency list back to the Variables
// that own those blocks.
func (ns *Namespace) depsOf(b *bytecode.Block) []*Variable {
	blocks := b.DepList()
	if len(blocks) == 0 {
		return nil
	}
	deps := make([]*Variable, 0, len(blocks))
	for _, callee := range blocks {
		for _, v := range ns.vars {
			if v.block == callee {
				deps = append(deps, v)
				break
			}
		}
	}
	return deps
}

// detectCycle runs the breadth-first back-pointer walk described in
// spec.md §4.G, starting from root's freshly recomputed dependency list.
// It returns the cycle chain (root ... root) as variable names, or nil if
// root's dependency graph is acyclic.
func (ns *Namespace) detectCycle(root *Variable) []string {
	for _, v := range ns.vars {
		v.usedBy = nil
	}
	queue := append([]*Variable(nil), root.deps...)
	for _, d := range root.deps {
		if d.usedBy == nil {
			d.usedBy = root
		}
	}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		if v == root {
			return formatChain(root)
		}
		for _, d := range v.deps {
			if d.usedBy == nil {
				d.usedBy = v
				queue = append(queue, d)
			}
		}
	}
	return nil
}

func formatChain(root *Variable) []string {
	chain := []string{root.name}
	for cur := root.usedBy; cur != nil; cur = cur.usedBy {
		chain = append(chain, cur.name)
		if cur == root {
			break
		}
	}
	return chain
}

// FormatCycle writes the most recently detected dependency cycle to w as
// names joined by " <- ", starting and ending with the cycle's root, and
// returns the number of bytes written.
func (ns *Namespace) FormatCycle(w io.Writer) (int, error) {
	if len(ns.lastCycle) == 0 {
		return 0, nil
	}
	return io.WriteString(w, strings.Join(ns.lastCycle, " <- "))
}

// FormatRedef writes the name of the most recently rejected redefinition
// to w, and returns the number of bytes written.
func (ns *Namespace) FormatRedef(w io.Writer) (int, error) {
	if ns.lastRedef == "" {
		return 0, nil
	}
	return io.WriteString(w, ns.lastRedef)
}
