package vm_test

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achronyme/achronyme-core-sub001/ast"
	"github.com/achronyme/achronyme-core-sub001/compiler"
	"github.com/achronyme/achronyme-core-sub001/vm"
)

// diffRefEval is a tree-walking evaluator over the arithmetic subset of
// ast.Expr, kept independent of compiler.refEval (an unexported test
// helper in another package) so the two evaluators are genuinely separate
// implementations of the same semantics rather than one importing the
// other. It mirrors vm.execArith: Div by zero is IEEE-754 Inf/NaN, Mod
// by zero is the sole arithmetic error.
func diffRefEval(e ast.Expr) (float64, error) {
	switch n := e.(type) {
	case *ast.Number:
		return n.Value, nil
	case *ast.UnaryOp:
		v, err := diffRefEval(n.Operand)
		if err != nil {
			return 0, err
		}
		if n.Op == "-" {
			return -v, nil
		}
		return 0, fmt.Errorf("diffRefEval: unsupported unary op %q", n.Op)
	case *ast.BinaryOp:
		l, err := diffRefEval(n.Left)
		if err != nil {
			return 0, err
		}
		r, err := diffRefEval(n.Right)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case "+":
			return l + r, nil
		case "-":
			return l - r, nil
		case "*":
			return l * r, nil
		case "/":
			return l / r, nil
		case "%":
			if r == 0 {
				return 0, fmt.Errorf("diffRefEval: modulo by zero")
			}
			return math.Mod(l, r), nil
		case "^":
			return math.Pow(l, r), nil
		default:
			return 0, fmt.Errorf("diffRefEval: unsupported binary op %q", n.Op)
		}
	default:
		return 0, fmt.Errorf("diffRefEval: unsupported node %T", e)
	}
}

func diffNum(v float64) ast.Expr { return &ast.Number{Value: v} }

// genDiffExpr builds a random small-integer arithmetic expression tree.
// "%" never draws a zero divisor so every generated program evaluates to
// a plain number rather than an error on both sides.
func genDiffExpr(rng *rand.Rand, depth int) ast.Expr {
	if depth <= 0 || rng.Intn(3) == 0 {
		return diffNum(float64(rng.Intn(21) - 10))
	}
	if rng.Intn(5) == 0 {
		return &ast.UnaryOp{Op: "-", Operand: genDiffExpr(rng, depth-1)}
	}
	ops := []string{"+", "-", "*", "/", "%", "^"}
	op := ops[rng.Intn(len(ops))]
	left := genDiffExpr(rng, depth-1)
	var right ast.Expr
	switch op {
	case "%":
		right = diffNum(float64(1 + rng.Intn(9)))
	case "^":
		right = diffNum(float64(rng.Intn(4)))
	default:
		right = genDiffExpr(rng, depth-1)
	}
	return &ast.BinaryOp{Op: op, Left: left, Right: right}
}

// compareFloats treats any two NaNs as equal and requires matching sign
// for infinities, then falls back to an epsilon comparison for finite
// values to absorb float64 rounding differences between the two
// evaluation paths.
func compareFloats(t *testing.T, expected, actual float64) {
	t.Helper()
	switch {
	case math.IsNaN(expected):
		assert.True(t, math.IsNaN(actual), "expected NaN, got %v", actual)
	case math.IsInf(expected, 1):
		assert.True(t, math.IsInf(actual, 1), "expected +Inf, got %v", actual)
	case math.IsInf(expected, -1):
		assert.True(t, math.IsInf(actual, -1), "expected -Inf, got %v", actual)
	default:
		assert.InDelta(t, expected, actual, 1e-9)
	}
}

// TestDifferential_Arithmetic generates random integer-arithmetic
// programs, runs each one through the real parse/compile/execute
// pipeline, and checks the VM's result against an independent
// reference evaluator over the same expression tree.
func TestDifferential_Arithmetic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		expr := genDiffExpr(rng, 5)

		want, err := diffRefEval(expr)
		require.NoError(t, err, "reference evaluator errored on generated program %d", i)

		module, err := compiler.CompileModule("differential", []ast.Stmt{
			&ast.Return{Value: expr},
		})
		require.NoError(t, err, "compile failed on generated program %d", i)

		machine := vm.New(nil)
		result, err := machine.Execute(module)
		require.NoError(t, err, "execution failed on generated program %d", i)
		require.NotNil(t, result)

		got, ok := result.ToFloat()
		require.True(t, ok, "program %d did not return a number: %#v", i, result)

		compareFloats(t, want, got)
	}
}
