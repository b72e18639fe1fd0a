package compiler

import (
	"github.com/achronyme/achronyme-core-sub001/ast"
	"github.com/achronyme/achronyme-core-sub001/opcodes"
	"github.com/achronyme/achronyme-core-sub001/registry"
	"github.com/achronyme/achronyme-core-sub001/values"
)

// compileExpr lowers expr into a fresh register holding its value and
// returns that register's index.
func (c *Compiler) compileExpr(expr ast.Expr) (uint8, error) {
	// Tail position only ever applies to the expression compileExpr was
	// invoked on directly from a tail context (a Return value or an
	// if/match/try/piecewise branch's final expression); every
	// subexpression compiled from within this call (operands, call
	// arguments, conditions) is not in tail position, so the flag is
	// captured once here and cleared before recursing.
	tail := c.isTailPosition
	c.isTailPosition = false

	switch e := expr.(type) {
	case *ast.Number:
		return c.loadConstant(e.Pos(), values.Number(e.Value))
	case *ast.Boolean:
		dst, err := c.regs.allocate()
		if err != nil {
			return 0, newErr(err, e.Pos(), "")
		}
		if e.Value {
			c.emitABC(opcodes.LoadTrue, dst, 0, 0)
		} else {
			c.emitABC(opcodes.LoadFalse, dst, 0, 0)
		}
		return dst, nil
	case *ast.StringLiteral:
		return c.loadConstant(e.Pos(), values.String(e.Value))
	case *ast.ComplexLiteral:
		return c.loadConstant(e.Pos(), values.ComplexValue(e.Re, e.Im))
	case *ast.NullLiteral:
		dst, err := c.regs.allocate()
		if err != nil {
			return 0, newErr(err, e.Pos(), "")
		}
		c.emitABC(opcodes.LoadNull, dst, 0, 0)
		return dst, nil

	case *ast.InterpolatedString:
		return c.compileInterpolatedString(e)

	case *ast.VariableRef:
		return c.loadVariable(e.Pos(), e.Name)
	case *ast.SelfReference, *ast.RecReference:
		dst, err := c.regs.allocate()
		if err != nil {
			return 0, newErr(err, expr.Pos(), "")
		}
		idx, ok := c.upvalueIndexByName["rec"]
		if !ok {
			return 0, newErr(ErrUndefinedVariable, expr.Pos(), "rec outside function")
		}
		c.emitABC(opcodes.GetUpvalue, dst, uint8(idx), 0)
		return dst, nil

	case *ast.BinaryOp:
		return c.compileBinaryOp(e)
	case *ast.UnaryOp:
		return c.compileUnaryOp(e)

	case *ast.Assignment:
		return c.compileAssignment(e)
	case *ast.CompoundAssignment:
		return c.compileCompoundAssignment(e)

	case *ast.If:
		return c.compileIf(e, tail)
	case *ast.Match:
		return c.compileMatch(e, tail)
	case *ast.TryCatch:
		return c.compileTryCatch(e)
	case *ast.Piecewise:
		return c.compilePiecewise(e, tail)

	case *ast.Lambda:
		return c.compileLambda(e)
	case *ast.FunctionCall:
		return c.compileFunctionCall(e, tail)
	case *ast.CallExpression:
		return c.compileCallExpression(e, tail)

	case *ast.ArrayLiteral:
		return c.compileArrayLiteral(e)
	case *ast.RecordLiteral:
		return c.compileRecordLiteral(e)
	case *ast.FieldAccess:
		return c.compileFieldAccess(e)
	case *ast.IndexAccess:
		return c.compileIndexAccess(e)

	case *ast.Sequence:
		return c.compileSequenceExpr(e.Statements, tail)
	case *ast.DoBlock:
		return c.compileSequenceExpr(e.Statements, tail)
	case *ast.GenerateBlock:
		return c.compileGenerateBlock(e)

	case *ast.RangeExpr:
		return c.compileRange(e)
	case *ast.EdgeLiteral:
		return c.compileEdgeLiteral(e)

	default:
		return 0, newErr(ErrNotYetImplemented, expr.Pos(), "expression kind %T", expr)
	}
}

// loadConstant interns v and emits LoadConst into a fresh register.
func (c *Compiler) loadConstant(pos ast.Position, v *values.Value) (uint8, error) {
	idx, err := c.pool.AddConstant(v)
	if err != nil {
		return 0, newErr(err, pos, "")
	}
	if idx > 0xFFFF {
		return 0, newErr(ErrTooManyConstants, pos, "")
	}
	dst, err := c.regs.allocate()
	if err != nil {
		return 0, newErr(err, pos, "")
	}
	c.emitABx(opcodes.LoadConst, dst, uint16(idx))
	return dst, nil
}

// contiguousBlockFrom allocates a contiguous register block matching
// len(srcs) and Move-copies each source register into place, per the
// compiler's "allocate contiguous argument registers" convention used by
// Call and CallBuiltin alike.
func (c *Compiler) contiguousBlockFrom(pos ast.Position, srcs []uint8) (uint8, error) {
	base, err := c.regs.allocateMany(len(srcs))
	if err != nil {
		return 0, newErr(err, pos, "")
	}
	for i, src := range srcs {
		dst := base + uint8(i)
		if dst != src {
			c.emitABC(opcodes.Move, dst, src, 0)
		}
	}
	return base, nil
}

func (c *Compiler) compileBinaryOp(e *ast.BinaryOp) (uint8, error) {
	switch e.Op {
	case "&&":
		return c.compileShortCircuit(e, true)
	case "||":
		return c.compileShortCircuit(e, false)
	}

	left, err := c.compileExpr(e.Left)
	if err != nil {
		return 0, err
	}
	right, err := c.compileExpr(e.Right)
	if err != nil {
		return 0, err
	}
	dst, err := c.regs.allocate()
	if err != nil {
		return 0, newErr(err, e.Pos(), "")
	}
	op, ok := binaryOpcodes[e.Op]
	if !ok {
		return 0, newErr(ErrNotYetImplemented, e.Pos(), "operator %s", e.Op)
	}
	c.emitABC(op, dst, left, right)
	return dst, nil
}

var binaryOpcodes = map[string]opcodes.Opcode{
	"+": opcodes.Add, "-": opcodes.Sub, "*": opcodes.Mul, "/": opcodes.Div,
	"%": opcodes.Mod, "^": opcodes.Pow,
	"==": opcodes.Eq, "!=": opcodes.Ne,
	"<": opcodes.Lt, "<=": opcodes.Le, ">": opcodes.Gt, ">=": opcodes.Ge,
}

// compileShortCircuit lowers && / || with JumpIfFalse/JumpIfTrue, per
// §4.3.1: "Short-circuit operators are lowered with JumpIfFalse/JumpIfTrue."
func (c *Compiler) compileShortCircuit(e *ast.BinaryOp, isAnd bool) (uint8, error) {
	left, err := c.compileExpr(e.Left)
	if err != nil {
		return 0, err
	}
	var shortCircuitJump int
	if isAnd {
		shortCircuitJump = c.emitJump(opcodes.JumpIfFalse, left)
	} else {
		shortCircuitJump = c.emitJump(opcodes.JumpIfTrue, left)
	}
	right, err := c.compileExpr(e.Right)
	if err != nil {
		return 0, err
	}
	c.emitABC(opcodes.Move, left, right, 0)
	endJump := c.emitJump(opcodes.Jump, 0)
	if err := c.patchJump(shortCircuitJump); err != nil {
		return 0, err
	}
	// left already holds the short-circuited value (false for &&, true for ||)
	if err := c.patchJump(endJump); err != nil {
		return 0, err
	}
	return left, nil
}

func (c *Compiler) compileUnaryOp(e *ast.UnaryOp) (uint8, error) {
	operand, err := c.compileExpr(e.Operand)
	if err != nil {
		return 0, err
	}
	dst, err := c.regs.allocate()
	if err != nil {
		return 0, newErr(err, e.Pos(), "")
	}
	switch e.Op {
	case "-":
		c.emitABC(opcodes.Neg, dst, operand, 0)
	case "!", "not":
		// `!x` lowers to `x == false`.
		falseReg, ferr := c.regs.allocate()
		if ferr != nil {
			return 0, newErr(ferr, e.Pos(), "")
		}
		c.emitABC(opcodes.LoadFalse, falseReg, 0, 0)
		c.emitABC(opcodes.Eq, dst, operand, falseReg)
	default:
		return 0, newErr(ErrNotYetImplemented, e.Pos(), "unary operator %s", e.Op)
	}
	return dst, nil
}

func (c *Compiler) compileFunctionCall(e *ast.FunctionCall, tail bool) (uint8, error) {
	if id, arity, ok := registry.LookupCompileTime(e.Name); ok {
		if arity >= 0 && len(e.Args) != arity {
			return 0, newErr(ErrNotYetImplemented, e.Pos(), "arity mismatch calling %s", e.Name)
		}
		argRegs := make([]uint8, len(e.Args))
		for i, a := range e.Args {
			r, err := c.compileExpr(a)
			if err != nil {
				return 0, err
			}
			argRegs[i] = r
		}
		base, err := c.contiguousBlockFrom(e.Pos(), argRegs)
		if err != nil {
			return 0, err
		}
		c.emitABC(opcodes.CallBuiltin, base, uint8(id), uint8(len(argRegs)))
		return base, nil
	}

	// Not a known builtin: treat the name as a variable reference holding
	// a Function value (user-defined function called by name).
	callee, err := c.loadVariable(e.Pos(), e.Name)
	if err != nil {
		return 0, err
	}
	return c.emitCall(e.Pos(), callee, e.Args, e.Name, tail)
}

func (c *Compiler) compileCallExpression(e *ast.CallExpression, tail bool) (uint8, error) {
	calleeName := ""
	if ref, ok := e.Callee.(*ast.VariableRef); ok {
		calleeName = ref.Name
	}
	callee, err := c.compileExpr(e.Callee)
	if err != nil {
		return 0, err
	}
	return c.emitCall(e.Pos(), callee, e.Args, calleeName, tail)
}

// emitCall allocates contiguous argument registers after the callee and
// emits Call, or TailCall when calleeName names the enclosing function
// itself (the `rec(...)` tail-recursion case) and tail reports that this
// call is the expression directly flowing into a Return. Tail-call
// promotion here is conservative: only direct `rec(...)` calls are
// promoted, matching the spec's factorial/tail-recursion testable
// property.
func (c *Compiler) emitCall(pos ast.Position, callee uint8, args []ast.Expr, calleeName string, tail bool) (uint8, error) {
	argRegs := make([]uint8, len(args))
	for i, a := range args {
		r, err := c.compileExpr(a)
		if err != nil {
			return 0, err
		}
		argRegs[i] = r
	}

	// Arrange callee + args contiguously: callee at base, args at base+1..
	allSrcs := append([]uint8{callee}, argRegs...)
	base, err := c.contiguousBlockFrom(pos, allSrcs)
	if err != nil {
		return 0, err
	}

	if calleeName == "rec" && tail {
		c.emitABC(opcodes.TailCall, 0, base, uint8(len(argRegs)))
		return base, nil
	}

	c.emitABC(opcodes.Call, base, base, uint8(len(argRegs)))
	return base, nil
}
