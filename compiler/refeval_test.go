package compiler

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achronyme/achronyme-core-sub001/ast"
)

// refEval is a small tree-walking evaluator over the arithmetic subset of
// ast.Expr (Number, BinaryOp, UnaryOp), used as the ground truth the VM's
// compiled output is checked against in the differential property test.
// It mirrors vm.execArith's IEEE-754 policy exactly: Div by zero yields
// signed Infinity or NaN, Mod by zero is the one arithmetic error.
func refEval(e ast.Expr) (float64, error) {
	switch n := e.(type) {
	case *ast.Number:
		return n.Value, nil
	case *ast.UnaryOp:
		v, err := refEval(n.Operand)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case "-":
			return -v, nil
		default:
			return 0, fmt.Errorf("refEval: unsupported unary op %q", n.Op)
		}
	case *ast.BinaryOp:
		l, err := refEval(n.Left)
		if err != nil {
			return 0, err
		}
		r, err := refEval(n.Right)
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
				return 0, fmt.Errorf("refEval: modulo by zero")
			}
			return math.Mod(l, r), nil
		case "^":
			return math.Pow(l, r), nil
		default:
			return 0, fmt.Errorf("refEval: unsupported binary op %q", n.Op)
		}
	default:
		return 0, fmt.Errorf("refEval: unsupported node %T", e)
	}
}

func num(v float64) ast.Expr { return &ast.Number{Value: v} }

func TestRefEval_KnownValues(t *testing.T) {
	expr := &ast.BinaryOp{
		Op:   "+",
		Left: num(2),
		Right: &ast.BinaryOp{Op: "*", Left: num(3), Right: num(4)},
	}
	v, err := refEval(expr)
	require.NoError(t, err)
	assert.Equal(t, 14.0, v)
}

func TestRefEval_DivisionByZeroIsInfinity(t *testing.T) {
	v, err := refEval(&ast.BinaryOp{Op: "/", Left: num(1), Right: num(0)})
	require.NoError(t, err)
	assert.True(t, math.IsInf(v, 1))
}

func TestRefEval_ModuloByZeroErrors(t *testing.T) {
	_, err := refEval(&ast.BinaryOp{Op: "%", Left: num(1), Right: num(0)})
	assert.Error(t, err)
}

// genArithExpr builds a random arithmetic expression tree of small
// integer leaves, never generating a zero right-hand operand for "%" so
// the reference evaluator never has to report an error.
func genArithExpr(rng *rand.Rand, depth int) ast.Expr {
	if depth <= 0 || rng.Intn(3) == 0 {
		return num(float64(rng.Intn(21) - 10))
	}
	if rng.Intn(5) == 0 {
		return &ast.UnaryOp{Op: "-", Operand: genArithExpr(rng, depth-1)}
	}
	ops := []string{"+", "-", "*", "/", "%", "^"}
	op := ops[rng.Intn(len(ops))]
	left := genArithExpr(rng, depth-1)
	var right ast.Expr
	if op == "%" {
		right = num(float64(1 + rng.Intn(9)))
	} else if op == "^" {
		// keep exponents small so results stay finite in float64
		right = num(float64(rng.Intn(4)))
	} else {
		right = genArithExpr(rng, depth-1)
	}
	return &ast.BinaryOp{Op: op, Left: left, Right: right}
}

func TestRefEval_RandomDoesNotPanic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		expr := genArithExpr(rng, 4)
		_, _ = refEval(expr)
	}
}
