// Package compiler lowers an ast.Node tree into a bytecode.Module: the
// register allocator, lexical symbol table with upvalue resolution, loop
// context stack, type-alias registry, and export table described by the
// specification's component design section.
package compiler

import (
	"github.com/achronyme/achronyme-core-sub001/ast"
	"github.com/achronyme/achronyme-core-sub001/bytecode"
	"github.com/achronyme/achronyme-core-sub001/opcodes"
)

// Compiler lowers one function body (top-level module or lambda) into one
// Prototype. Nested lambdas spawn child Compilers sharing the same
// ConstantPool.
type Compiler struct {
	parent *Compiler

	proto *bytecode.Prototype
	pool  *bytecode.ConstantPool

	regs  *registerAllocator
	scope *lexicalScope
	loops []*loopContext
	types *typeAliasRegistry

	exports *exportTable

	// upvalueIndexByName memoizes already-resolved upvalues so repeated
	// references to the same captured name reuse one descriptor slot.
	upvalueIndexByName map[string]int

	hasSelfSlot bool // true once the reserved rec upvalue has been installed

	isGenerator bool

	// isTailPosition is true while compiling an expression that will flow
	// directly into a Return with no further computation, the condition
	// under which a `rec(...)` call is promoted to TailCall instead of
	// Call. Cleared whenever compilation descends into a non-tail
	// subexpression (operands, call arguments, conditions).
	isTailPosition bool
}

func newCompiler(parent *Compiler, name string, pool *bytecode.ConstantPool, types *typeAliasRegistry) *Compiler {
	return &Compiler{
		parent:             parent,
		proto:              bytecode.NewPrototype(name, pool),
		pool:               pool,
		regs:               newRegisterAllocator(),
		scope:              newLexicalScope(nil),
		types:              types,
		upvalueIndexByName: make(map[string]int),
	}
}

// CompileModule compiles a top-level statement list into a Module named
// name. This is the compiler's single public entry point.
func CompileModule(name string, body []ast.Stmt) (*bytecode.Module, error) {
	pool := bytecode.NewConstantPool()
	types := newTypeAliasRegistry()
	c := newCompiler(nil, name, pool, types)
	c.exports = newExportTable()

	if err := c.compileBlock(body); err != nil {
		return nil, err
	}
	c.emitABC(opcodes.ReturnNull, 0, 0, 0)

	c.proto.RegisterCount = c.regs.registerCount()
	if c.proto.RegisterCount > 256 {
		return nil, newErr(ErrTooManyRegisters, ast.Position{}, "module %s", name)
	}

	module := bytecode.NewModule(name, c.proto, pool)
	module.Exports = c.exports.entries
	return module, nil
}

// --- emission helpers ---

func (c *Compiler) emitABC(op opcodes.Opcode, a, b, cc uint8) int {
	c.proto.Code = append(c.proto.Code, opcodes.EncodeABC(op, a, b, cc))
	return len(c.proto.Code) - 1
}

func (c *Compiler) emitABx(op opcodes.Opcode, a uint8, bx uint16) int {
	c.proto.Code = append(c.proto.Code, opcodes.EncodeABx(op, a, bx))
	return len(c.proto.Code) - 1
}

// emitJump emits a placeholder jump (offset 0) and returns its index for
// later patching via patchJump.
func (c *Compiler) emitJump(op opcodes.Opcode, a uint8) int {
	return c.emitABx(op, a, 0)
}

// patchJump rewrites a previously-emitted jump's offset so it lands at the
// current end of the code buffer (the instruction immediately following
// the jump is offset 0, per the instruction format).
func (c *Compiler) patchJump(idx int) error {
	return c.patchJumpTo(idx, len(c.proto.Code))
}

func (c *Compiler) patchJumpTo(idx, target int) error {
	offset := target - (idx + 1)
	if offset > 32767 || offset < -32768 {
		return newErr(ErrCodeTooLarge, ast.Position{}, "jump offset %d out of i16 range", offset)
	}
	op, a, _ := opcodes.DecodeABx(c.proto.Code[idx])
	c.proto.Code[idx] = opcodes.EncodeABx(op, a, opcodes.EncodeSignedBx(int16(offset)))
	return nil
}

func (c *Compiler) here() int { return len(c.proto.Code) }

// --- scope management ---

func (c *Compiler) pushScope() { c.scope = newLexicalScope(c.scope) }

func (c *Compiler) popScope(mark int) {
	c.scope = c.scope.parent
	c.regs.freeTo(mark)
}

// compileBlock compiles a statement list in a fresh nested scope.
func (c *Compiler) compileBlock(stmts []ast.Stmt) error {
	mark := c.regs.mark()
	c.pushScope()
	defer c.popScope(mark)
	for _, s := range stmts {
		if err := c.compileStmt(s); err != nil {
			return err
		}
	}
	return nil
}
