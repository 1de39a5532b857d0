// Package yard implements the Shunting Yard (spec.md §4.D): the per-parse
// operator/value state that the parser drives token by token, emitting
// instructions into a target Code Block as operators are displaced off the
// internal operator stack.
package yard

import (
	"github.com/db47h/exprcore/internal/bytecode"
	"github.com/db47h/exprcore/internal/errcode"
	"github.com/db47h/exprcore/internal/registry"
	"github.com/db47h/exprcore/internal/scalar"
)

// Class is the "last-token class" tracked between operations, and also
// the kind of an entry sitting on the operator stack (Value never sits on
// the stack, only Parenthesis/Comma/Fixity/FuncBuiltin/FuncUserCode do).
type Class int

const (
	ClsNone Class = iota
	ClsParen
	ClsComma
	ClsFixity
	ClsFuncBuiltin
	ClsFuncUserCode
	ClsValue
)

type entry struct {
	kind      Class
	op        registry.Operator
	builtinFn *bytecode.Callable
	callee    *bytecode.Block
}

// Yard is the per-expression Shunting Yard state, targeting one Code
// Block. tryEval mirrors the Namespace's "try-eval-on-parse" flag and is
// forwarded to every CallFunc emitted, so constant folding either happens
// during parsing or is deferred to first evaluation uniformly.
type Yard struct {
	target  *bytecode.Block
	tryEval bool
	stack   []entry
	last    Class
}

// New returns a Yard emitting into target.
func New(target *bytecode.Block, tryEval bool) *Yard {
	return &Yard{target: target, last: ClsNone, tryEval: tryEval}
}

// Last returns the current last-token class, mostly for tests.
func (y *Yard) Last() Class { return y.last }

func (y *Yard) apply(op registry.Operator) error {
	arity := 2
	if op.Unary {
		arity = 1
	}
	if y.target.Height() < arity {
		return errcode.MissingValues
	}
	if !y.target.CallFunc(op.Callable(), y.tryEval) {
		if ferr, failed := y.target.FailedErr(); failed {
			return ferr
		}
		return errcode.UnknownInstr
	}
	return nil
}

// valueProduced is called the instant a value lands on the target block
// (a literal, an argument, a variable load, or a resolved call). Prefix
// operators bind to the single value that follows them, tighter than any
// later-arriving operator regardless of relative precedence — spec.md §9
// calls this out explicitly ("-x^2" is "(-x)^2", not "-(x^2)") — so any
// unary Fixity entries sitting on top of the stack are applied here,
// eagerly, rather than waiting for the generic displacement that handles
// binary operators.
func (y *Yard) valueProduced() error {
	for len(y.stack) > 0 {
		top := y.stack[len(y.stack)-1]
		if top.kind != ClsFixity || !top.op.Unary {
			break
		}
		y.stack = y.stack[:len(y.stack)-1]
		if err := y.apply(top.op); err != nil {
			return err
		}
	}
	y.last = ClsValue
	return nil
}

func (y *Yard) displaceAllFixity() error {
	for len(y.stack) > 0 && y.stack[len(y.stack)-1].kind == ClsFixity {
		e := y.stack[len(y.stack)-1]
		y.stack = y.stack[:len(y.stack)-1]
		if err := y.apply(e.op); err != nil {
			return err
		}
	}
	return nil
}

// displaceFixityBelow pops and applies stacked binary operators whose
// Priority() is strictly greater than threshold, which must be the
// incoming operator's precedence shifted by Operator.Priority's own
// encoding (prec<<1), computed from the incoming operator alone, never
// from its associativity. This is what makes the tie-break come from the
// operator already on the stack: a same-precedence left-associative
// entry has its odd assoc bit set, so its Priority() lands one above
// threshold and is displaced (left-to-right chaining); a same-precedence
// right-associative entry's Priority() lands exactly on threshold and is
// left in place until a genuinely higher-precedence operator arrives
// (right-to-left chaining, e.g. "2^3^2" == "2^(3^2)").
func (y *Yard) displaceFixityBelow(threshold int) error {
	for len(y.stack) > 0 {
		top := y.stack[len(y.stack)-1]
		if top.kind != ClsFixity || top.op.Priority() <= threshold {
			break
		}
		y.stack = y.stack[:len(y.stack)-1]
		if err := y.apply(top.op); err != nil {
			return err
		}
	}
	return nil
}

// OpenParenth handles a '(' token.
func (y *Yard) OpenParenth() error {
	if y.last == ClsValue {
		return errcode.MissingOpers
	}
	y.stack = append(y.stack, entry{kind: ClsParen})
	y.last = ClsParen
	return nil
}

// PutComma handles a ',' token.
func (y *Yard) PutComma() error {
	if y.last != ClsValue {
		return errcode.BadComma
	}
	if err := y.displaceAllFixity(); err != nil {
		return err
	}
	y.stack = append(y.stack, entry{kind: ClsComma})
	y.last = ClsComma
	return nil
}

// CloseParenth handles a ')' token: it settles the enclosing group or
// function call, per spec.md §4.D.
func (y *Yard) CloseParenth() error {
	if y.last != ClsValue {
		return errcode.MissingValues
	}
	if err := y.displaceAllFixity(); err != nil {
		return err
	}
	count := 1
	for len(y.stack) > 0 && y.stack[len(y.stack)-1].kind == ClsComma {
		y.stack = y.stack[:len(y.stack)-1]
		count++
	}
	if len(y.stack) == 0 || y.stack[len(y.stack)-1].kind != ClsParen {
		return errcode.ParenthMismatch
	}
	y.stack = y.stack[:len(y.stack)-1]

	if len(y.stack) > 0 {
		top := y.stack[len(y.stack)-1]
		switch top.kind {
		case ClsFuncBuiltin:
			y.stack = y.stack[:len(y.stack)-1]
			if count != top.builtinFn.Arity {
				return errcode.ArityMismatch
			}
			if !y.target.CallFunc(top.builtinFn, y.tryEval) {
				if ferr, failed := y.target.FailedErr(); failed {
					return ferr
				}
				return errcode.UnknownInstr
			}
			return y.valueProduced()
		case ClsFuncUserCode:
			y.stack = y.stack[:len(y.stack)-1]
			if !top.callee.SetArity(count) {
				return errcode.ArityMismatch
			}
			if !y.target.CallCode(top.callee) {
				return errcode.UnknownInstr
			}
			return y.valueProduced()
		}
	}
	if count != 1 {
		return errcode.BadComma
	}
	return y.valueProduced()
}

// PutUnary handles a prefix operator token.
func (y *Yard) PutUnary(op registry.Operator) error {
	if y.last == ClsValue {
		return errcode.MissingOpers
	}
	if y.last == ClsFuncBuiltin || y.last == ClsFuncUserCode {
		return errcode.FuncNoCall
	}
	if len(y.stack) > 0 {
		top := y.stack[len(y.stack)-1]
		if top.kind == ClsFixity && !top.op.Unary && top.op.Assoc == registry.Left && top.op.Priority() > (op.Prec<<1) {
			return errcode.LowPrecUnary
		}
	}
	y.stack = append(y.stack, entry{kind: ClsFixity, op: op})
	y.last = ClsFixity
	return nil
}

// PutBinary handles an infix operator token.
func (y *Yard) PutBinary(op registry.Operator) error {
	if y.last != ClsValue {
		return errcode.MissingValues
	}
	if err := y.displaceFixityBelow(op.Prec << 1); err != nil {
		return err
	}
	y.stack = append(y.stack, entry{kind: ClsFixity, op: op})
	y.last = ClsFixity
	return nil
}

// FuncCall handles a builtin function token (before its '(' arrives).
func (y *Yard) FuncCall(fn *bytecode.Callable) error {
	if y.last == ClsValue {
		return errcode.MissingOpers
	}
	if y.last == ClsFuncBuiltin || y.last == ClsFuncUserCode {
		return errcode.FuncNoCall
	}
	y.stack = append(y.stack, entry{kind: ClsFuncBuiltin, builtinFn: fn})
	y.last = ClsFuncBuiltin
	return nil
}

// CodeCall handles a user-function token (before its '(' arrives). callee
// must not already be known to have zero arity (use LoadVar for that).
func (y *Yard) CodeCall(callee *bytecode.Block) error {
	if y.last == ClsValue {
		return errcode.MissingOpers
	}
	if y.last == ClsFuncBuiltin || y.last == ClsFuncUserCode {
		return errcode.FuncNoCall
	}
	if callee.Arity() == 0 {
		return errcode.ArityMismatch
	}
	y.stack = append(y.stack, entry{kind: ClsFuncUserCode, callee: callee})
	y.last = ClsFuncUserCode
	return nil
}

// LoadConst handles a numeric literal token.
func (y *Yard) LoadConst(v scalar.Scalar) error {
	if y.last == ClsValue {
		return errcode.MissingOpers
	}
	if y.last == ClsFuncBuiltin || y.last == ClsFuncUserCode {
		return errcode.FuncNoCall
	}
	if !y.target.LoadConst(v) {
		if ferr, failed := y.target.FailedErr(); failed {
			return ferr
		}
		return errcode.UnknownInstr
	}
	return y.valueProduced()
}

// LoadArg handles an argument-name token.
func (y *Yard) LoadArg(i int) error {
	if y.last == ClsValue {
		return errcode.MissingOpers
	}
	if y.last == ClsFuncBuiltin || y.last == ClsFuncUserCode {
		return errcode.FuncNoCall
	}
	if !y.target.LoadArg(i) {
		return errcode.ArityMismatch
	}
	return y.valueProduced()
}

// LoadVar handles a bare variable-reference token (no following '('); it
// requires callee to have, or be able to take, zero arity.
func (y *Yard) LoadVar(callee *bytecode.Block) error {
	if y.last == ClsValue {
		return errcode.MissingOpers
	}
	if y.last == ClsFuncBuiltin || y.last == ClsFuncUserCode {
		return errcode.FuncNoCall
	}
	if !callee.SetArity(0) {
		return errcode.ArityMismatch
	}
	if !y.target.CallCode(callee) {
		return errcode.UnknownInstr
	}
	return y.valueProduced()
}

// Clear settles any remaining operators at the end of an expression.
func (y *Yard) Clear() error {
	if err := y.displaceAllFixity(); err != nil {
		return err
	}
	if len(y.stack) == 0 {
		return nil
	}
	switch y.stack[len(y.stack)-1].kind {
	case ClsParen:
		return errcode.ParenthMismatch
	case ClsComma:
		return errcode.BadComma
	case ClsFuncBuiltin, ClsFuncUserCode:
		return errcode.FuncNoCall
	}
	return nil
}
