package compiler

import (
	"github.com/achronyme/achronyme-core-sub001/ast"
	"github.com/achronyme/achronyme-core-sub001/opcodes"
)

// compileLambda spawns a child compiler for e's body, per §4.3.2: "For each
// lambda, a child compiler compiles the body into a nested prototype.
// Parameters are bound to registers 0..n." The resulting Closure opcode is
// emitted into the current (parent) prototype.
func (c *Compiler) compileLambda(e *ast.Lambda) (uint8, error) {
	child := newCompiler(c, "<lambda>", c.pool, c.types)
	child.isGenerator = e.IsGenerator
	child.proto.IsGenerator = e.IsGenerator
	child.proto.IsAsync = e.IsAsync
	child.proto.ParamCount = len(e.Params)
	child.reserveSelfSlot()

	seenDefault := false
	for _, p := range e.Params {
		if p.Default == nil && seenDefault {
			return 0, newErr(ErrParamOrdering, e.Pos(), "%s", p.Name)
		}
		if p.Default != nil {
			seenDefault = true
		}
	}

	child.proto.ParamDefaults = make([]int, len(e.Params))
	for i := range child.proto.ParamDefaults {
		child.proto.ParamDefaults[i] = -1
	}

	paramRegs := make([]uint8, len(e.Params))
	for i, p := range e.Params {
		reg, err := child.regs.allocate()
		if err != nil {
			return 0, newErr(err, e.Pos(), "")
		}
		paramRegs[i] = reg
		child.scope.define(p.Name, reg, false, p.Type)
	}

	for i, p := range e.Params {
		if p.Default == nil {
			continue
		}
		defIdx, err := child.compileParamDefault(p.Default)
		if err != nil {
			return 0, err
		}
		child.proto.ParamDefaults[i] = defIdx
	}

	if err := child.compileBlock(e.Body); err != nil {
		return 0, err
	}
	child.emitABC(opcodes.ReturnNull, 0, 0, 0)

	child.proto.RegisterCount = child.regs.registerCount()
	if child.proto.RegisterCount > 256 {
		return 0, newErr(ErrTooManyRegisters, e.Pos(), "lambda")
	}
	if len(e.Params) > 256 {
		return 0, newErr(ErrTooManyParameters, e.Pos(), "")
	}

	return c.emitClosureFor(e.Pos(), child)
}

// compileParamDefault compiles expr into a fresh zero-parameter prototype
// nested inside the lambda (not the lambda's own prototype), appended to
// the lambda's Functions list and referenced by index from ParamDefaults.
// Its parent is the lambda's own compiler so a default expression may
// reference earlier parameters or enclosing captures via the ordinary
// upvalue-resolution path.
func (c *Compiler) compileParamDefault(expr ast.Expr) (int, error) {
	def := newCompiler(c, "<default>", c.pool, c.types)
	def.reserveSelfSlot()
	def.isTailPosition = true
	reg, err := def.compileExpr(expr)
	if err != nil {
		return 0, err
	}
	def.emitABC(opcodes.Return, reg, 0, 0)
	def.proto.RegisterCount = def.regs.registerCount()
	if def.proto.RegisterCount > 256 {
		return 0, newErr(ErrTooManyRegisters, expr.Pos(), "default expression")
	}
	idx := len(c.proto.Functions)
	c.proto.Functions = append(c.proto.Functions, def.proto)
	return idx, nil
}

// emitClosureFor appends child's prototype to c's nested-function list and
// emits Closure into a fresh register in c.
func (c *Compiler) emitClosureFor(pos ast.Position, child *Compiler) (uint8, error) {
	idx := len(c.proto.Functions)
	c.proto.Functions = append(c.proto.Functions, child.proto)
	if idx > 0xFFFF {
		return 0, newErr(ErrTooManyConstants, pos, "too many nested functions")
	}
	dst, err := c.regs.allocate()
	if err != nil {
		return 0, newErr(err, pos, "")
	}
	c.emitABx(opcodes.Closure, dst, uint16(idx))
	return dst, nil
}

// compileGenerateBlock lowers `generate { ... }` into an immediately
// invoked zero-parameter generator closure: compiling the block as a
// generator-flagged nested prototype, then Calling it with no arguments.
// Per §4.4 ("Call on a closure whose prototype is flagged
// generator/async... produces a Generator Value in the return register"),
// the Call itself never runs the body; it only builds and returns the
// suspended frame.
func (c *Compiler) compileGenerateBlock(e *ast.GenerateBlock) (uint8, error) {
	child := newCompiler(c, "<generate>", c.pool, c.types)
	child.isGenerator = true
	child.proto.IsGenerator = true
	child.reserveSelfSlot()

	if err := child.compileBlock(e.Statements); err != nil {
		return 0, err
	}
	child.emitABC(opcodes.ReturnNull, 0, 0, 0)
	child.proto.RegisterCount = child.regs.registerCount()
	if child.proto.RegisterCount > 256 {
		return 0, newErr(ErrTooManyRegisters, e.Pos(), "generate block")
	}

	closureReg, err := c.emitClosureFor(e.Pos(), child)
	if err != nil {
		return 0, err
	}
	base, err := c.contiguousBlockFrom(e.Pos(), []uint8{closureReg})
	if err != nil {
		return 0, err
	}
	c.emitABC(opcodes.Call, base, base, 0)
	return base, nil
}
