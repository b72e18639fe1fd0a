package frontend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achronyme/achronyme-core-sub001/ast"
)

func parseOne(t *testing.T, src string) ast.Stmt {
	t.Helper()
	stmts, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	return stmts[0]
}

func TestParser_LetDeclaration(t *testing.T) {
	stmt := parseOne(t, `let x = 1 + 2;`)

	decl, ok := stmt.(*ast.VariableDecl)
	require.True(t, ok, "expected *ast.VariableDecl, got %T", stmt)
	assert.Equal(t, "x", decl.Name)

	bin, ok := decl.Init.(*ast.BinaryOp)
	require.True(t, ok, "expected *ast.BinaryOp init, got %T", decl.Init)
	assert.Equal(t, "+", bin.Op)
}

func TestParser_OperatorPrecedence(t *testing.T) {
	expr, err := ParseExpression(`1 + 2 * 3`)
	require.NoError(t, err)

	bin, ok := expr.(*ast.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Op)

	rhs, ok := bin.Right.(*ast.BinaryOp)
	require.True(t, ok, "right operand should itself be the tighter-binding multiply")
	assert.Equal(t, "*", rhs.Op)
}

func TestParser_PowerIsRightAssociative(t *testing.T) {
	expr, err := ParseExpression(`2 ^ 3 ^ 2`)
	require.NoError(t, err)

	bin, ok := expr.(*ast.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, "^", bin.Op)

	_, leftIsBinary := bin.Left.(*ast.BinaryOp)
	assert.False(t, leftIsBinary, "2^3^2 should group as 2^(3^2), not (2^3)^2")

	_, rightIsBinary := bin.Right.(*ast.BinaryOp)
	assert.True(t, rightIsBinary)
}

func TestParser_UndirectedEdgeLiteral(t *testing.T) {
	expr, err := ParseExpression(`a -- b`)
	require.NoError(t, err)

	edge, ok := expr.(*ast.EdgeLiteral)
	require.True(t, ok, "expected *ast.EdgeLiteral, got %T", expr)
	assert.False(t, edge.Directed)
}

func TestParser_DirectedEdgeLiteral(t *testing.T) {
	expr, err := ParseExpression(`a -> b`)
	require.NoError(t, err)

	edge, ok := expr.(*ast.EdgeLiteral)
	require.True(t, ok, "expected *ast.EdgeLiteral, got %T", expr)
	assert.True(t, edge.Directed)
}

func TestParser_RecCallPreservesVariableRefCallee(t *testing.T) {
	expr, err := ParseExpression(`rec(n - 1)`)
	require.NoError(t, err)

	call, ok := expr.(*ast.FunctionCall)
	require.True(t, ok, "rec(...) should parse as a plain FunctionCall so tail-call promotion keys off the name, got %T", expr)
	assert.Equal(t, "rec", call.Name)
}

func TestParser_RecBareReference(t *testing.T) {
	expr, err := ParseExpression(`rec`)
	require.NoError(t, err)

	ref, ok := expr.(*ast.VariableRef)
	require.True(t, ok, "expected *ast.VariableRef{Name: \"rec\"}, got %T", expr)
	assert.Equal(t, "rec", ref.Name)
}

func TestParser_InterpolatedString(t *testing.T) {
	expr, err := ParseExpression(`"hello ${name}!"`)
	require.NoError(t, err)

	interp, ok := expr.(*ast.InterpolatedString)
	require.True(t, ok, "expected *ast.InterpolatedString, got %T", expr)
	assert.GreaterOrEqual(t, len(interp.Parts), 2)
}

func TestParser_PlainStringHasNoInterpolation(t *testing.T) {
	expr, err := ParseExpression(`"no markers here"`)
	require.NoError(t, err)

	_, ok := expr.(*ast.StringLiteral)
	assert.True(t, ok, "a string with no ${...} marker should stay a plain StringLiteral, got %T", expr)
}

func TestParser_LambdaArrow(t *testing.T) {
	expr, err := ParseExpression(`fn(x) => x + 1`)
	require.NoError(t, err)

	lambda, ok := expr.(*ast.Lambda)
	require.True(t, ok, "expected *ast.Lambda, got %T", expr)
	require.Len(t, lambda.Params, 1)
	assert.Equal(t, "x", lambda.Params[0].Name)
	assert.False(t, lambda.IsGenerator)
	assert.False(t, lambda.IsAsync)
}

func TestParser_GeneratorLambda(t *testing.T) {
	expr, err := ParseExpression(`gen fn(x) { yield x; }`)
	require.NoError(t, err)

	lambda, ok := expr.(*ast.Lambda)
	require.True(t, ok, "expected *ast.Lambda, got %T", expr)
	assert.True(t, lambda.IsGenerator)
}

func TestParser_MatchExpression(t *testing.T) {
	expr, err := ParseExpression(`match x { 1 => 2, _ => 3 }`)
	require.NoError(t, err)

	m, ok := expr.(*ast.Match)
	require.True(t, ok, "expected *ast.Match, got %T", expr)
	require.Len(t, m.Arms, 2)

	_, ok = m.Arms[1].Pattern.(*ast.WildcardPattern)
	assert.True(t, ok, "second arm should be the wildcard fallback")
}

func TestParser_RangeExpression(t *testing.T) {
	expr, err := ParseExpression(`1..=10`)
	require.NoError(t, err)

	rng, ok := expr.(*ast.RangeExpr)
	require.True(t, ok, "expected *ast.RangeExpr, got %T", expr)
	assert.True(t, rng.Inclusive)
}

func TestParser_DestructuringLet(t *testing.T) {
	stmt := parseOne(t, `let [a, b, ...rest] = xs;`)

	decl, ok := stmt.(*ast.LetDestructuring)
	require.True(t, ok, "expected *ast.LetDestructuring, got %T", stmt)

	vp, ok := decl.Pattern.(*ast.VectorPattern)
	require.True(t, ok)
	require.Len(t, vp.Elements, 3)
	assert.Equal(t, "rest", vp.Elements[2].Rest)
}

func TestParser_ImaginaryLiteralBecomesComplex(t *testing.T) {
	expr, err := ParseExpression(`2i`)
	require.NoError(t, err)

	lit, ok := expr.(*ast.ComplexLiteral)
	require.True(t, ok, "expected *ast.ComplexLiteral, got %T", expr)
	assert.Equal(t, 0.0, lit.Re)
	assert.Equal(t, 2.0, lit.Im)
}
