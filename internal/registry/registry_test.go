package registry

import (
	"testing"

	"github.com/db47h/exprcore/internal/scalar"
)

func TestOperatorTablePrecedence(t *testing.T) {
	cases := map[string]int{"+": 64, "-": 64, "*": 96, "/": 96, "//": 96, "%": 96, "^": 112}
	for _, op := range binaryOps {
		want, ok := cases[op.Symbol]
		if !ok {
			t.Fatalf("unexpected operator %q", op.Symbol)
		}
		if op.Prec != want {
			t.Errorf("%s: prec = %d, want %d", op.Symbol, op.Prec, want)
		}
	}
}

func TestUnaryMinusPrecedenceIsHigherThanBinary(t *testing.T) {
	if unaryOps[0].Prec <= 64 {
		t.Fatal("prefix minus must outrank binary + and -")
	}
}

func TestCaretIsRightAssociative(t *testing.T) {
	for _, op := range binaryOps {
		if op.Symbol == "^" && op.Assoc != Right {
			t.Fatal("^ should be right-associative")
		}
	}
}

func TestNamedConstants(t *testing.T) {
	pi, ok := LookupNamed("pi")
	if !ok || pi.Arity != 0 {
		t.Fatal("expected pi to be a registered 0-arity constant")
	}
	v, err := pi.Value()
	if err != nil || v.Kind != scalar.Real {
		t.Fatalf("pi value = %v, %v", v, err)
	}
}

func TestLongestPrefixSeparatesSlashFromFloorDiv(t *testing.T) {
	_, n, ok := InfixOps.Query("// x")
	if !ok || n != 2 {
		t.Fatalf("expected // to match with length 2, got %d, %v", n, ok)
	}
	_, n, ok = InfixOps.Query("/ x")
	if !ok || n != 1 {
		t.Fatalf("expected / to match with length 1, got %d, %v", n, ok)
	}
}
