// Package bytecode implements the Code Block stack machine described in
// spec.md §4.C: an instruction buffer with a deduplicated constant pool, a
// virtual stack height tracked on every append, a per-block result cache
// for zero-arity ("constant") blocks, and the peephole try-eval
// optimization described in spec.md §9.
package bytecode

import (
	"github.com/db47h/exprcore/internal/errcode"
	"github.com/db47h/exprcore/internal/scalar"
)

// unsetArity is the sentinel returned by Arity before SetArity has been
// called.
const unsetArity = -1

// Block is a single compiled unit: a user function, a user variable, or a
// scratch block used to evaluate a bare expression. Blocks are arena-free
// in this implementation: a Block is heap-allocated once by its owner (a
// Variable, or a caller evaluating a bare expression) and referenced
// thereafter by ordinary Go pointers, which Go's garbage collector keeps
// alive exactly as long as something points to them. Cycle detection at
// definition time (see the namespace package) guarantees the CallCode
// graph is a DAG, so plain pointers never leak a cycle the GC can't
// collect.
type Block struct {
	arity  int
	maxArg int

	code   []Instruction
	consts []scalar.Scalar
	height int

	failed  bool
	failErr error

	resultCached bool
	cachedVal    scalar.Scalar
	cachedErr    error
}

// NewBlock returns an empty Block with unset arity.
func NewBlock() *Block {
	return &Block{arity: unsetArity, maxArg: unsetArity}
}

// Arity returns the block's arity, or the sentinel -1 if unset.
func (b *Block) Arity() int { return b.arity }

// IsConstant reports whether the block's arity is fixed at 0.
func (b *Block) IsConstant() bool { return b.arity == 0 }

// Height returns the block's current virtual stack height.
func (b *Block) Height() int { return b.height }

// SetArity fixes the block's arity. The first call from the unset state
// succeeds (returning true) unless n would invalidate an already-emitted
// LoadArg index (n <= the highest arg index loaded so far). Once set,
// further calls are a no-op that succeeds only if n matches the existing
// arity.
func (b *Block) SetArity(n int) bool {
	if n < 0 {
		return false
	}
	if b.arity != unsetArity {
		return b.arity == n
	}
	if n <= b.maxArg {
		return false
	}
	b.arity = n
	return true
}

// addConst interns v in the constant pool, returning its index. Pool
// entries are compared with scalar.Equal so that repeated literals in one
// expression share a single slot (spec.md §8 "Dedup").
func (b *Block) addConst(v scalar.Scalar) int {
	for i, c := range b.consts {
		if scalar.Equal(c, v) {
			return i
		}
	}
	b.consts = append(b.consts, v)
	return len(b.consts) - 1
}

// Consts returns the block's constant pool, for inspection/testing.
func (b *Block) Consts() []scalar.Scalar { return b.consts }

// FailedErr returns the block's cached failed-literal error, if any.
func (b *Block) FailedErr() (error, bool) { return b.failErr, b.failed }

// LoadConst appends a LoadConst instruction for v, interning it in the
// pool. It fails (returns false) once the block has entered the
// failed-literal state.
func (b *Block) LoadConst(v scalar.Scalar) bool {
	if b.failed {
		return false
	}
	idx := b.addConst(v)
	b.code = append(b.code, Instruction{Op: OpLoadConst, Index: idx})
	b.height++
	return true
}

// LoadArg appends a LoadArg instruction for argument index i. It fails if
// the block's arity is already fixed and i is out of range.
func (b *Block) LoadArg(i int) bool {
	if b.failed || i < 0 {
		return false
	}
	if b.arity != unsetArity && i >= b.arity {
		return false
	}
	if i > b.maxArg {
		b.maxArg = i
	}
	b.code = append(b.code, Instruction{Op: OpLoadArg, Index: i})
	b.height++
	return true
}

// topAreConsts reports whether the last k instructions are all LoadConst.
func (b *Block) topAreConsts(k int) bool {
	if k > len(b.code) {
		return false
	}
	for _, ins := range b.code[len(b.code)-k:] {
		if ins.Op != OpLoadConst {
			return false
		}
	}
	return true
}

// CallFunc appends a call to fn. When tryEval is true and the top fn.Arity
// instructions are all LoadConst, the call is evaluated immediately
// instead of being emitted: the peephole described in spec.md §9. A
// try-eval failure puts the block into the permanent failed-literal state;
// further structural ops on it fail until Reset.
func (b *Block) CallFunc(fn *Callable, tryEval bool) bool {
	if b.failed {
		return false
	}
	k := fn.Arity
	if tryEval && b.topAreConsts(k) {
		start := len(b.code) - k
		args := make([]scalar.Scalar, k)
		for j := 0; j < k; j++ {
			args[j] = b.consts[b.code[start+j].Index]
		}
		result, err := fn.Fn(args)
		b.code = b.code[:start]
		if err != nil {
			b.failed = true
			b.failErr = err
			return true
		}
		idx := b.addConst(result)
		b.code = append(b.code, Instruction{Op: OpLoadConst, Index: idx})
		b.height -= k - 1
		return true
	}
	b.code = append(b.code, Instruction{Op: OpCallFunc, Ref: fn, Arity: k})
	b.height -= k - 1
	return true
}

// CallCode appends a call to callee, whose arity must already be known.
func (b *Block) CallCode(callee *Block) bool {
	if b.failed || callee.Arity() == unsetArity {
		return false
	}
	k := callee.Arity()
	b.code = append(b.code, Instruction{Op: OpCallCode, Callee: callee, Arity: k})
	b.height -= k - 1
	return true
}

// DepList returns the distinct callee blocks referenced by CallCode
// instructions, in first-occurrence order.
func (b *Block) DepList() []*Block {
	var deps []*Block
	seen := make(map[*Block]bool, len(b.code))
	for _, ins := range b.code {
		if ins.Op == OpCallCode && !seen[ins.Callee] {
			seen[ins.Callee] = true
			deps = append(deps, ins.Callee)
		}
	}
	return deps
}

// Reset clears the block's instructions, constant pool and cache, and
// resets its height to 0. Arity is preserved.
func (b *Block) Reset() {
	b.code = nil
	b.consts = nil
	b.height = 0
	b.maxArg = unsetArity
	b.failed = false
	b.failErr = nil
	b.resultCached = false
	b.cachedVal = scalar.Scalar{}
	b.cachedErr = nil
}

// RecomputeHeight walks the instruction list from scratch and recomputes
// the virtual stack height, independent of the incrementally tracked
// Height(). Used to check the testable property in spec.md §8 ("the
// recomputed virtual stack height from scratch equals 1").
func (b *Block) RecomputeHeight() int {
	h := 0
	for _, ins := range b.code {
		switch ins.Op {
		case OpLoadConst, OpLoadArg:
			h++
		case OpCallCode, OpCallFunc:
			h -= ins.Arity - 1
		}
	}
	return h
}

// Eval runs the block against args, returning its single result value. If
// the block is in the failed-literal state, or has arity 0 and already has
// a cached result, that result is returned unchanged without re-running
// anything. Constant-arity (arity 0) blocks memoize their first result;
// argument-bearing blocks never cache, per spec.md §4.C.
func (b *Block) Eval(args []scalar.Scalar) (scalar.Scalar, error) {
	if b.failed {
		return scalar.Scalar{}, b.failErr
	}
	if b.arity == 0 && b.resultCached {
		return b.cachedVal, b.cachedErr
	}
	needed := b.arity
	if needed == unsetArity {
		needed = 0
	}
	if len(args) < needed {
		return b.finish(scalar.Scalar{}, errcode.MissingArgs)
	}
	if b.height != 1 {
		return b.finish(scalar.Scalar{}, errcode.IncompleteCode)
	}

	stack := make([]scalar.Scalar, 0, b.height+4)
	for _, ins := range b.code {
		switch ins.Op {
		case OpLoadConst:
			stack = append(stack, b.consts[ins.Index])
		case OpLoadArg:
			if ins.Index >= len(args) {
				return b.finish(scalar.Scalar{}, errcode.MissingArgs)
			}
			stack = append(stack, args[ins.Index])
		case OpCallCode:
			k := ins.Arity
			if len(stack) < k {
				return b.finish(scalar.Scalar{}, errcode.StackUnderflow)
			}
			callArgs := append([]scalar.Scalar(nil), stack[len(stack)-k:]...)
			v, err := ins.Callee.Eval(callArgs)
			if err != nil {
				return b.finish(scalar.Scalar{}, err)
			}
			stack = append(stack[:len(stack)-k], v)
		case OpCallFunc:
			k := ins.Arity
			if len(stack) < k {
				return b.finish(scalar.Scalar{}, errcode.StackUnderflow)
			}
			v, err := ins.Ref.Fn(stack[len(stack)-k:])
			if err != nil {
				return b.finish(scalar.Scalar{}, err)
			}
			stack = append(stack[:len(stack)-k], v)
		default:
			return b.finish(scalar.Scalar{}, errcode.UnknownInstr)
		}
	}
	if len(stack) < 1 {
		return b.finish(scalar.Scalar{}, errcode.StackUnderflow)
	}
	if len(stack) > 1 {
		return b.finish(scalar.Scalar{}, errcode.StackSurplus)
	}
	return b.finish(stack[0], nil)
}

// finish caches (value, err) when the block is constant-arity, then
// returns them. It is the single exit path of Eval so the memoization
// rule only has to be written once.
func (b *Block) finish(v scalar.Scalar, err error) (scalar.Scalar, error) {
	if b.arity == 0 {
		b.resultCached = true
		b.cachedVal = v
		b.cachedErr = err
	}
	return v, err
}
