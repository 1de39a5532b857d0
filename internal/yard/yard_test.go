package yard

import (
	"testing"

	"github.com/db47h/exprcore/internal/bytecode"
	"github.com/db47h/exprcore/internal/errcode"
	"github.com/db47h/exprcore/internal/registry"
	"github.com/db47h/exprcore/internal/scalar"
)

func op(sym string) registry.Operator {
	o, _, ok := registry.InfixOps.Query(sym)
	if !ok {
		panic("unknown operator " + sym)
	}
	return o
}

func unaryMinus() registry.Operator {
	o, _, ok := registry.PrefixOps.Query("-")
	if !ok {
		panic("no unary minus registered")
	}
	return o
}

// eval drives a freshly built block with no arguments and returns its result.
func eval(t *testing.T, b *bytecode.Block) scalar.Scalar {
	t.Helper()
	b.SetArity(0)
	v, err := b.Eval(nil)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	return v
}

func TestSimpleAdditionPrecedence(t *testing.T) {
	// 1 + 2 * 3 = 7 (multiplication binds tighter)
	b := bytecode.NewBlock()
	y := New(b, false)
	must(t, y.LoadConst(scalar.Int(1)))
	must(t, y.PutBinary(op("+")))
	must(t, y.LoadConst(scalar.Int(2)))
	must(t, y.PutBinary(op("*")))
	must(t, y.LoadConst(scalar.Int(3)))
	must(t, y.Clear())
	v := eval(t, b)
	if v.Num != 7 || v.Den != 1 {
		t.Fatalf("1+2*3 = %v, want 7", v)
	}
}

func TestCaretRightAssociative(t *testing.T) {
	// 2 ^ 3 ^ 2 = 2 ^ (3 ^ 2) = 512, not (2^3)^2 = 64
	b := bytecode.NewBlock()
	y := New(b, false)
	must(t, y.LoadConst(scalar.Int(2)))
	must(t, y.PutBinary(op("^")))
	must(t, y.LoadConst(scalar.Int(3)))
	must(t, y.PutBinary(op("^")))
	must(t, y.LoadConst(scalar.Int(2)))
	must(t, y.Clear())
	v := eval(t, b)
	if v.Num != 512 {
		t.Fatalf("2^3^2 = %v, want 512", v)
	}
}

func TestUnaryMinusAppliesBeforeClear(t *testing.T) {
	b := bytecode.NewBlock()
	y := New(b, false)
	must(t, y.PutUnary(unaryMinus()))
	must(t, y.LoadConst(scalar.Int(2)))
	must(t, y.Clear())
	v := eval(t, b)
	if v.Num != -2 {
		t.Fatalf("-2 = %v, want -2", v)
	}
}

func TestUnaryMinusBindsTighterThanCaret(t *testing.T) {
	// spec: "-x^2" is "(-x)^2", not "-(x^2)" — (-3)^2 = 9, not -9.
	b := bytecode.NewBlock()
	y := New(b, false)
	must(t, y.PutUnary(unaryMinus()))
	must(t, y.LoadConst(scalar.Int(3)))
	must(t, y.PutBinary(op("^")))
	must(t, y.LoadConst(scalar.Int(2)))
	must(t, y.Clear())
	v := eval(t, b)
	if v.Num != 9 {
		t.Fatalf("-3^2 = %v, want 9 ((-3)^2, not -(3^2))", v)
	}
}

func TestGroupingOverridesPrecedence(t *testing.T) {
	// (1 + 2) * 3 = 9
	b := bytecode.NewBlock()
	y := New(b, false)
	must(t, y.OpenParenth())
	must(t, y.LoadConst(scalar.Int(1)))
	must(t, y.PutBinary(op("+")))
	must(t, y.LoadConst(scalar.Int(2)))
	must(t, y.CloseParenth())
	must(t, y.PutBinary(op("*")))
	must(t, y.LoadConst(scalar.Int(3)))
	must(t, y.Clear())
	v := eval(t, b)
	if v.Num != 9 {
		t.Fatalf("(1+2)*3 = %v, want 9", v)
	}
}

func TestBuiltinFunctionCall(t *testing.T) {
	// abs(-5) = 5
	abs, ok := registry.LookupNamed("abs")
	if !ok {
		t.Fatal("abs not registered")
	}
	b := bytecode.NewBlock()
	y := New(b, false)
	must(t, y.FuncCall(abs.Callable()))
	must(t, y.OpenParenth())
	must(t, y.PutUnary(unaryMinus()))
	must(t, y.LoadConst(scalar.Int(5)))
	must(t, y.CloseParenth())
	must(t, y.Clear())
	v := eval(t, b)
	if v.Num != 5 {
		t.Fatalf("abs(-5) = %v, want 5", v)
	}
}

func TestUserCodeCallSetsCalleeArity(t *testing.T) {
	callee := bytecode.NewBlock()
	cy := New(callee, false)
	must(t, cy.LoadArg(0))
	must(t, cy.PutBinary(op("*")))
	must(t, cy.LoadArg(0))
	must(t, cy.Clear())

	b := bytecode.NewBlock()
	y := New(b, false)
	must(t, y.CodeCall(callee))
	must(t, y.OpenParenth())
	must(t, y.LoadConst(scalar.Int(4)))
	must(t, y.CloseParenth())
	must(t, y.Clear())
	if callee.Arity() != 1 {
		t.Fatalf("expected callee arity set to 1, got %d", callee.Arity())
	}
	v := eval(t, b)
	if v.Num != 16 {
		t.Fatalf("square(4) = %v, want 16", v)
	}
}

func TestMissingOpersOnAdjacentValues(t *testing.T) {
	b := bytecode.NewBlock()
	y := New(b, false)
	must(t, y.LoadConst(scalar.Int(1)))
	if err := y.LoadConst(scalar.Int(2)); err != errcode.MissingOpers {
		t.Fatalf("expected MissingOpers, got %v", err)
	}
}

func TestMissingValuesOnDanglingBinary(t *testing.T) {
	b := bytecode.NewBlock()
	y := New(b, false)
	must(t, y.LoadConst(scalar.Int(1)))
	must(t, y.PutBinary(op("+")))
	if err := y.PutBinary(op("*")); err != errcode.MissingValues {
		t.Fatalf("expected MissingValues, got %v", err)
	}
}

func TestBadCommaOnEmptyArgument(t *testing.T) {
	abs, _ := registry.LookupNamed("abs")
	b := bytecode.NewBlock()
	y := New(b, false)
	must(t, y.FuncCall(abs.Callable()))
	must(t, y.OpenParenth())
	if err := y.PutComma(); err != errcode.BadComma {
		t.Fatalf("expected BadComma, got %v", err)
	}
}

func TestParenthMismatchOnUnbalancedClose(t *testing.T) {
	b := bytecode.NewBlock()
	y := New(b, false)
	must(t, y.LoadConst(scalar.Int(1)))
	if err := y.CloseParenth(); err != errcode.ParenthMismatch {
		t.Fatalf("expected ParenthMismatch, got %v", err)
	}
}

func TestFuncNoCallWhenNeverApplied(t *testing.T) {
	abs, _ := registry.LookupNamed("abs")
	b := bytecode.NewBlock()
	y := New(b, false)
	must(t, y.FuncCall(abs.Callable()))
	if err := y.Clear(); err != errcode.FuncNoCall {
		t.Fatalf("expected FuncNoCall, got %v", err)
	}
}

func TestArityMismatchOnBuiltinCall(t *testing.T) {
	abs, _ := registry.LookupNamed("abs")
	b := bytecode.NewBlock()
	y := New(b, false)
	must(t, y.FuncCall(abs.Callable()))
	must(t, y.OpenParenth())
	must(t, y.LoadConst(scalar.Int(1)))
	must(t, y.PutComma())
	must(t, y.LoadConst(scalar.Int(2)))
	if err := y.CloseParenth(); err != errcode.ArityMismatch {
		t.Fatalf("expected ArityMismatch, got %v", err)
	}
}

func TestMultiArgBuiltinCall(t *testing.T) {
	// log(8, 2) = 3
	logFn, _ := registry.LookupNamed("log")
	b := bytecode.NewBlock()
	y := New(b, false)
	must(t, y.FuncCall(logFn.Callable()))
	must(t, y.OpenParenth())
	must(t, y.LoadConst(scalar.Int(8)))
	must(t, y.PutComma())
	must(t, y.LoadConst(scalar.Int(2)))
	must(t, y.CloseParenth())
	must(t, y.Clear())
	v := eval(t, b)
	if v.Kind != scalar.Real {
		t.Fatalf("log(8,2) should be Real, got %v", v)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected yard error: %v", err)
	}
}
