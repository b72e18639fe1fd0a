package compiler

import (
	"github.com/achronyme/achronyme-core-sub001/ast"
	"github.com/achronyme/achronyme-core-sub001/bytecode"
	"github.com/achronyme/achronyme-core-sub001/opcodes"
	"github.com/achronyme/achronyme-core-sub001/registry"
)

func (c *Compiler) compileStmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		mark := c.regs.mark()
		_, err := c.compileExpr(s.X)
		c.regs.freeTo(mark)
		return err

	case *ast.VariableDecl:
		return c.compileBinding(s.Pos(), s.Name, s.Init, false)
	case *ast.MutableDecl:
		return c.compileBinding(s.Pos(), s.Name, s.Init, true)

	case *ast.LetDestructuring:
		return c.compileDestructuringStmt(s.Pos(), s.Pattern, s.Init, false)
	case *ast.MutableDestructuring:
		return c.compileDestructuringStmt(s.Pos(), s.Pattern, s.Init, true)

	case *ast.WhileLoop:
		return c.compileWhile(s)
	case *ast.ForInLoop:
		return c.compileForIn(s)

	case *ast.Throw:
		mark := c.regs.mark()
		reg, err := c.compileExpr(s.Value)
		if err != nil {
			return err
		}
		c.emitABC(opcodes.Throw, reg, 0, 0)
		c.regs.freeTo(mark)
		return nil

	case *ast.Yield:
		if !c.isGenerator {
			return newErr(ErrYieldOutsideGenerator, s.Pos(), "")
		}
		mark := c.regs.mark()
		reg, err := c.compileExpr(s.Value)
		if err != nil {
			return err
		}
		base, err := c.contiguousBlockFrom(s.Pos(), []uint8{reg})
		if err != nil {
			return err
		}
		// Yield lowers to CallBuiltin(YieldBuiltinID): the VM recognizes
		// this reserved id specially and suspends the frame instead of
		// running an ordinary built-in (see vm/generator.go).
		c.emitABC(opcodes.CallBuiltin, base, uint8(registry.YieldBuiltinID), 1)
		c.regs.freeTo(mark)
		return nil

	case *ast.Return:
		mark := c.regs.mark()
		if s.Value == nil {
			c.emitABC(opcodes.ReturnNull, 0, 0, 0)
			return nil
		}
		c.isTailPosition = true
		reg, err := c.compileExpr(s.Value)
		if err != nil {
			return err
		}
		c.emitABC(opcodes.Return, reg, 0, 0)
		c.regs.freeTo(mark)
		return nil

	case *ast.Break:
		if len(c.loops) == 0 {
			return newErr(ErrBreakOutsideLoop, s.Pos(), "")
		}
		loop := c.loops[len(c.loops)-1]
		idx := c.emitJump(opcodes.Jump, 0)
		loop.breakPatches = append(loop.breakPatches, idx)
		return nil

	case *ast.Continue:
		if len(c.loops) == 0 {
			return newErr(ErrContinueOutsideLoop, s.Pos(), "")
		}
		loop := c.loops[len(c.loops)-1]
		idx := c.emitJump(opcodes.Jump, 0)
		if err := c.patchJumpTo(idx, loop.continueIP); err != nil {
			return err
		}
		return nil

	case *ast.Import:
		// The module loader (a host collaborator, not respecified here)
		// resolves Items/Module; the compiler only needs to bind local
		// names so subsequent references resolve like any other variable.
		for _, item := range s.Items {
			reg, err := c.regs.allocate()
			if err != nil {
				return newErr(err, s.Pos(), "")
			}
			c.emitABC(opcodes.LoadNull, reg, 0, 0)
			c.scope.define(item.Alias, reg, false, "")
		}
		return nil

	case *ast.Export:
		for _, item := range s.Items {
			info, ok := c.scope.lookupLocal(item.Name)
			if !ok {
				return newErr(ErrUndefinedVariable, s.Pos(), "export %s", item.Name)
			}
			alias := item.Alias
			if alias == "" {
				alias = item.Name
			}
			c.exports.entries[item.Name] = bytecode.ExportBinding{Register: info.Register, Alias: alias}
		}
		return nil

	case *ast.TypeAlias:
		c.types.define(s.Name, s.Def)
		return nil

	default:
		return newErr(ErrNotYetImplemented, stmt.Pos(), "statement kind %T", stmt)
	}
}

// compileBinding lowers `let name = init` / `mut name = init`.
func (c *Compiler) compileBinding(pos ast.Position, name string, init ast.Expr, mutable bool) error {
	reg, err := c.compileExpr(init)
	if err != nil {
		return err
	}
	if mutable {
		// `mut` bindings are boxed so captured upvalues observe writes;
		// the register holds a MutableRef built by CallBuiltin(makeMutableRef).
		base, err := c.contiguousBlockFrom(pos, []uint8{reg})
		if err != nil {
			return err
		}
		c.emitABC(opcodes.CallBuiltin, base, uint8(registry.MakeMutableRefBuiltinID), 1)
		c.scope.define(name, base, true, "")
		return nil
	}
	c.scope.define(name, reg, false, "")
	return nil
}

func (c *Compiler) compileWhile(s *ast.WhileLoop) error {
	startIP := c.here()
	mark := c.regs.mark()
	condReg, err := c.compileExpr(s.Cond)
	if err != nil {
		return err
	}
	exitJump := c.emitJump(opcodes.JumpIfFalse, condReg)
	c.regs.freeTo(mark)

	c.loops = append(c.loops, &loopContext{continueIP: startIP})
	if err := c.compileBlock(s.Body); err != nil {
		return err
	}
	loop := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]

	backJump := c.emitJump(opcodes.Jump, 0)
	if err := c.patchJumpTo(backJump, startIP); err != nil {
		return err
	}
	if err := c.patchJump(exitJump); err != nil {
		return err
	}
	for _, idx := range loop.breakPatches {
		if err := c.patchJump(idx); err != nil {
			return err
		}
	}
	return nil
}

// compileForIn lowers `for (v in iter) { body }` onto the HOF iteration
// core: IterInit once, then a loop of IterNext (with its trailing
// exhaustion jump) / body / jump-back.
func (c *Compiler) compileForIn(s *ast.ForInLoop) error {
	mark := c.regs.mark()
	iterSrc, err := c.compileExpr(s.Iter)
	if err != nil {
		return err
	}
	iterReg, err := c.regs.allocate()
	if err != nil {
		return newErr(err, s.Pos(), "")
	}
	c.emitABC(opcodes.IterInit, iterReg, iterSrc, 0)

	startIP := c.here()
	valReg, err := c.regs.allocate()
	if err != nil {
		return newErr(err, s.Pos(), "")
	}
	nextIdx := c.emitJump(opcodes.IterNext, valReg)
	// IterNext is re-encoded as ABC (A=dest, B=iterator); its exhaustion
	// jump is the Jump instruction emitted right after it, which the VM
	// skips whenever IterNext produces a value.
	c.proto.Code[nextIdx] = opcodes.EncodeABC(opcodes.IterNext, valReg, iterReg, 0)
	jumpIdx := c.emitJump(opcodes.Jump, 0) // taken when exhausted; patched to loop exit

	bodyMark := c.regs.mark()
	c.pushScope()
	c.scope.define(s.Var, valReg, false, "")
	c.loops = append(c.loops, &loopContext{continueIP: startIP})
	if err := c.compileBlockStmts(s.Body); err != nil {
		return err
	}
	loop := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]
	c.popScope(bodyMark)

	backJump := c.emitJump(opcodes.Jump, 0)
	if err := c.patchJumpTo(backJump, startIP); err != nil {
		return err
	}
	if err := c.patchJump(jumpIdx); err != nil {
		return err
	}
	for _, idx := range loop.breakPatches {
		if err := c.patchJump(idx); err != nil {
			return err
		}
	}
	c.regs.freeTo(mark)
	return nil
}

// compileBlockStmts compiles statements without opening a fresh register
// scope (the caller already manages bindings like the loop variable).
func (c *Compiler) compileBlockStmts(stmts []ast.Stmt) error {
	for _, st := range stmts {
		if err := c.compileStmt(st); err != nil {
			return err
		}
	}
	return nil
}
