package compiler

import (
	"github.com/achronyme/achronyme-core-sub001/ast"
	"github.com/achronyme/achronyme-core-sub001/opcodes"
	"github.com/achronyme/achronyme-core-sub001/registry"
)

// compileExprBlock compiles stmts as a value-producing block: every
// statement but the last runs for effect, and the last statement's value
// (if it is a bare expression) is written into resultReg. A final
// `return` statement is compiled as an ordinary return from the enclosing
// function and writes nothing into resultReg. A block ending in any other
// statement (e.g. a while loop) produces Null. tail reports whether the block itself sits in tail
// position, propagated to the final expression only.
func (c *Compiler) compileExprBlock(stmts []ast.Stmt, resultReg uint8, tail bool) error {
	mark := c.regs.mark()
	c.pushScope()
	defer c.popScope(mark)

	for i, s := range stmts {
		if i != len(stmts)-1 {
			if err := c.compileStmt(s); err != nil {
				return err
			}
			continue
		}
		switch last := s.(type) {
		case *ast.ExprStmt:
			c.isTailPosition = tail
			reg, err := c.compileExpr(last.X)
			if err != nil {
				return err
			}
			c.emitABC(opcodes.Move, resultReg, reg, 0)
			return nil
		case *ast.Return:
			return c.compileStmt(last)
		default:
			if err := c.compileStmt(s); err != nil {
				return err
			}
			c.emitABC(opcodes.LoadNull, resultReg, 0, 0)
			return nil
		}
	}
	c.emitABC(opcodes.LoadNull, resultReg, 0, 0)
	return nil
}

// compileIf lowers an if-expression: Cond decides between Then and Else,
// each an expr-block written into a shared result register. A missing
// Else produces Null.
func (c *Compiler) compileIf(e *ast.If, tail bool) (uint8, error) {
	resultReg, err := c.regs.allocate()
	if err != nil {
		return 0, newErr(err, e.Pos(), "")
	}

	condMark := c.regs.mark()
	condReg, err := c.compileExpr(e.Cond)
	if err != nil {
		return 0, err
	}
	elseJump := c.emitJump(opcodes.JumpIfFalse, condReg)
	c.regs.freeTo(condMark)

	if err := c.compileExprBlock(e.Then, resultReg, tail); err != nil {
		return 0, err
	}
	endJump := c.emitJump(opcodes.Jump, 0)

	if err := c.patchJump(elseJump); err != nil {
		return 0, err
	}
	if len(e.Else) > 0 {
		if err := c.compileExprBlock(e.Else, resultReg, tail); err != nil {
			return 0, err
		}
	} else {
		c.emitABC(opcodes.LoadNull, resultReg, 0, 0)
	}
	if err := c.patchJump(endJump); err != nil {
		return 0, err
	}
	return resultReg, nil
}

// compilePiecewise desugars `piecewise { cond => value, ..., default }`
// into a chain of conditional assignments into one result register: each
// case tests its condition with JumpIfFalse, and the default runs when no
// condition holds. It does not go through the Match lowering.
func (c *Compiler) compilePiecewise(e *ast.Piecewise, tail bool) (uint8, error) {
	if e.Default == nil {
		return 0, newErr(ErrMissingFallthrough, e.Pos(), "piecewise expression requires a default case")
	}
	resultReg, err := c.regs.allocate()
	if err != nil {
		return 0, newErr(err, e.Pos(), "")
	}

	var endJumps []int
	for _, cs := range e.Cases {
		mark := c.regs.mark()
		condReg, err := c.compileExpr(cs.Cond)
		if err != nil {
			return 0, err
		}
		failJump := c.emitJump(opcodes.JumpIfFalse, condReg)
		c.regs.freeTo(mark)

		valReg, err := c.compileExpr(cs.Value)
		if err != nil {
			return 0, err
		}
		c.emitABC(opcodes.Move, resultReg, valReg, 0)
		c.regs.freeTo(mark)
		endJumps = append(endJumps, c.emitJump(opcodes.Jump, 0))

		if err := c.patchJump(failJump); err != nil {
			return 0, err
		}
	}

	c.isTailPosition = tail
	defMark := c.regs.mark()
	defReg, err := c.compileExpr(e.Default)
	if err != nil {
		return 0, err
	}
	c.emitABC(opcodes.Move, resultReg, defReg, 0)
	c.regs.freeTo(defMark)

	for _, j := range endJumps {
		if err := c.patchJump(j); err != nil {
			return 0, err
		}
	}
	return resultReg, nil
}

// compileTryCatch lowers try/catch onto PushHandler/PopHandler/Throw: the
// protected region runs with a handler installed; a thrown value unwound
// to this frame lands in errReg and Catch runs bound to ErrorParam.
func (c *Compiler) compileTryCatch(e *ast.TryCatch) (uint8, error) {
	resultReg, err := c.regs.allocate()
	if err != nil {
		return 0, newErr(err, e.Pos(), "")
	}
	errReg, err := c.regs.allocate()
	if err != nil {
		return 0, newErr(err, e.Pos(), "")
	}

	handlerIdx := c.emitJump(opcodes.PushHandler, errReg)
	if err := c.compileExprBlock(e.Try, resultReg, false); err != nil {
		return 0, err
	}
	c.emitABC(opcodes.PopHandler, 0, 0, 0)
	endJump := c.emitJump(opcodes.Jump, 0)

	if err := c.patchJump(handlerIdx); err != nil {
		return 0, err
	}
	mark := c.regs.mark()
	c.pushScope()
	c.scope.define(e.ErrorParam, errReg, false, "")
	if err := c.compileExprBlock(e.Catch, resultReg, false); err != nil {
		return 0, err
	}
	c.popScope(mark)

	if err := c.patchJump(endJump); err != nil {
		return 0, err
	}
	return resultReg, nil
}

// compileMatch lowers a match expression: the value is tested against
// each arm's pattern in order (with an optional guard), binding the
// pattern's variables only within that arm's scope. The final arm must be
// an irrefutable fallthrough (wildcard or variable pattern, no guard).
func (c *Compiler) compileMatch(e *ast.Match, tail bool) (uint8, error) {
	if len(e.Arms) == 0 {
		return 0, newErr(ErrMissingFallthrough, e.Pos(), "match requires a fallthrough arm")
	}
	last := e.Arms[len(e.Arms)-1]
	if !isFallthroughPattern(last.Pattern) || last.Guard != nil {
		return 0, newErr(ErrMissingFallthrough, e.Pos(), "")
	}

	subjectReg, err := c.compileExpr(e.Value)
	if err != nil {
		return 0, err
	}
	resultReg, err := c.regs.allocate()
	if err != nil {
		return 0, newErr(err, e.Pos(), "")
	}

	var endJumps []int
	var pendingFail []int
	for i, arm := range e.Arms {
		isLast := i == len(e.Arms)-1
		for _, j := range pendingFail {
			if err := c.patchJump(j); err != nil {
				return 0, err
			}
		}
		pendingFail = nil

		armMark := c.regs.mark()
		c.pushScope()

		if !isLast {
			testReg, err := c.testPattern(arm.Pattern, subjectReg)
			if err != nil {
				return 0, err
			}
			pendingFail = append(pendingFail, c.emitJump(opcodes.JumpIfFalse, testReg))
		}

		if err := c.bindPattern(arm.Pattern, subjectReg); err != nil {
			return 0, err
		}

		if arm.Guard != nil {
			guardReg, err := c.compileExpr(arm.Guard)
			if err != nil {
				return 0, err
			}
			pendingFail = append(pendingFail, c.emitJump(opcodes.JumpIfFalse, guardReg))
		}

		if err := c.compileExprBlock(arm.Body, resultReg, tail); err != nil {
			return 0, err
		}
		endJumps = append(endJumps, c.emitJump(opcodes.Jump, 0))
		c.popScope(armMark)
	}

	for _, j := range endJumps {
		if err := c.patchJump(j); err != nil {
			return 0, err
		}
	}
	return resultReg, nil
}

func isFallthroughPattern(p ast.Pattern) bool {
	switch p.(type) {
	case *ast.WildcardPattern, *ast.VariablePattern:
		return true
	}
	return false
}

// compileSequenceExpr lowers `do { ... }` / bare `{ ... }` blocks used as
// an expression: same shape as compileExprBlock but allocates its own
// result register.
func (c *Compiler) compileSequenceExpr(stmts []ast.Stmt, tail bool) (uint8, error) {
	resultReg, err := c.regs.allocate()
	if err != nil {
		return 0, err
	}
	if err := c.compileExprBlock(stmts, resultReg, tail); err != nil {
		return 0, err
	}
	return resultReg, nil
}

// compileAssignment lowers `target = value`. VariableRef targets must
// resolve to a `mut` binding; FieldAccess/IndexAccess targets write
// through SetField/VecSet against the reference-semantics Record/Vector
// they already hold (no boxing needed there, since those aggregates are
// shared-mutable by construction).
func (c *Compiler) compileAssignment(e *ast.Assignment) (uint8, error) {
	valReg, err := c.compileExpr(e.Value)
	if err != nil {
		return 0, err
	}
	return c.assignComputedValue(e.Pos(), e.Target, valReg)
}

var compoundOpcodes = map[string]opcodes.Opcode{
	"+": opcodes.Add, "-": opcodes.Sub, "*": opcodes.Mul, "/": opcodes.Div,
	"%": opcodes.Mod, "^": opcodes.Pow,
}

// compileCompoundAssignment lowers `target op= value` as `target = target
// op value`, reusing compileAssignment's target-writing logic.
func (c *Compiler) compileCompoundAssignment(e *ast.CompoundAssignment) (uint8, error) {
	op, ok := compoundOpcodes[e.Op]
	if !ok {
		return 0, newErr(ErrNotYetImplemented, e.Pos(), "compound operator %s=", e.Op)
	}
	current, err := c.compileExpr(e.Target)
	if err != nil {
		return 0, err
	}
	rhs, err := c.compileExpr(e.Value)
	if err != nil {
		return 0, err
	}
	dst, err := c.regs.allocate()
	if err != nil {
		return 0, newErr(err, e.Pos(), "")
	}
	c.emitABC(op, dst, current, rhs)

	return c.assignComputedValue(e.Pos(), e.Target, dst)
}

// assignComputedValue writes the already-computed value in valReg into
// target, mirroring compileAssignment's per-kind logic without
// recompiling the value expression.
func (c *Compiler) assignComputedValue(pos ast.Position, target ast.Expr, valReg uint8) (uint8, error) {
	switch t := target.(type) {
	case *ast.VariableRef:
		cell, err := c.resolveCellTarget(pos, t.Name)
		if err != nil {
			return 0, err
		}
		if !cell.local {
			// frame.Upvalues[cell.upvalue] is a raw *values.MutableRef
			// cell, not a boxed Value — SetUpvalue mutates it directly,
			// there is no MutableRef Value to route through
			// __set_mutable_ref here.
			c.emitABC(opcodes.SetUpvalue, valReg, cell.upvalue, 0)
			return valReg, nil
		}
		base, err := c.contiguousBlockFrom(pos, []uint8{cell.reg, valReg})
		if err != nil {
			return 0, err
		}
		c.emitABC(opcodes.CallBuiltin, base, uint8(registry.SetMutableRefBuiltinID), 2)
		return base, nil
	case *ast.FieldAccess:
		recReg, err := c.compileExpr(t.Record)
		if err != nil {
			return 0, err
		}
		sid, err := c.pool.AddString(t.Field)
		if err != nil {
			return 0, newErr(err, pos, "")
		}
		c.emitABC(opcodes.SetField, recReg, uint8(sid), valReg)
		return valReg, nil
	case *ast.IndexAccess:
		if len(t.Indices) != 1 {
			return 0, NotYetImplemented("multiple indexing arguments", pos)
		}
		objReg, err := c.compileExpr(t.Object)
		if err != nil {
			return 0, err
		}
		idxReg, err := c.compileExpr(t.Indices[0])
		if err != nil {
			return 0, err
		}
		c.emitABC(opcodes.VecSet, objReg, idxReg, valReg)
		return valReg, nil
	default:
		return 0, newErr(ErrInvalidAssignmentTarget, pos, "%T", target)
	}
}
