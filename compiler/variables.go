package compiler

import (
	"github.com/achronyme/achronyme-core-sub001/ast"
	"github.com/achronyme/achronyme-core-sub001/bytecode"
	"github.com/achronyme/achronyme-core-sub001/opcodes"
	"github.com/achronyme/achronyme-core-sub001/registry"
)

// loadVariable emits code that leaves name's current value in a fresh
// register and returns that register. It resolves local bindings directly
// and non-local bindings by walking parent compilers, installing upvalue
// descriptors along the way (Symbol table: "On use, a lookup: walk
// current scopes upward; if not found, walk parent compilers to emit an
// upvalue descriptor"). Every local `mut` binding is boxed into a
// MutableRef at creation (see compileBinding), so the local path derefs
// before handing the value to the caller; GetUpvalue already dereferences
// its cell on the VM side, so the upvalue path needs no further deref —
// `rec` itself is never mutable, so the SelfReference/RecReference case
// in compileExpr bypasses this entirely.
func (c *Compiler) loadVariable(pos ast.Position, name string) (uint8, error) {
	if info, ok := c.scope.lookupLocal(name); ok {
		dst, err := c.regs.allocate()
		if err != nil {
			return 0, newErr(err, pos, "")
		}
		c.emitABC(opcodes.Move, dst, info.Register, 0)
		if info.Mutable {
			return c.derefInPlace(pos, dst)
		}
		return dst, nil
	}

	upIdx, _, err := c.resolveUpvalue(name)
	if err != nil {
		return 0, newErr(ErrUndefinedVariable, pos, "%s", name)
	}
	dst, aerr := c.regs.allocate()
	if aerr != nil {
		return 0, newErr(aerr, pos, "")
	}
	// GetUpvalue already yields the cell's current live value (frame.
	// Upvalues[b].Value, not a boxed MutableRef), for both mutable and
	// immutable captures — no further deref needed here.
	c.emitABC(opcodes.GetUpvalue, dst, uint8(upIdx), 0)
	return dst, nil
}

// cellTarget is where an assignable `mut` binding's storage actually
// lives: either a local register holding a boxed MutableRef Value (write
// through the __set_mutable_ref builtin), or an enclosing frame's
// upvalue cell addressed by index (write with SetUpvalue directly — the
// cell itself, frame.Upvalues[Index], is not a boxed Value and so cannot
// be routed through the builtin-Set path).
type cellTarget struct {
	local   bool
	reg     uint8
	upvalue uint8
}

// resolveCellTarget resolves name to its assignable storage location. It
// errors with ErrAssignToImmutable if name does not resolve to a mutable
// binding.
func (c *Compiler) resolveCellTarget(pos ast.Position, name string) (cellTarget, error) {
	if info, ok := c.scope.lookupLocal(name); ok {
		if !info.Mutable {
			return cellTarget{}, newErr(ErrAssignToImmutable, pos, "%s", name)
		}
		return cellTarget{local: true, reg: info.Register}, nil
	}
	upIdx, mutable, err := c.resolveUpvalue(name)
	if err != nil {
		return cellTarget{}, newErr(ErrUndefinedVariable, pos, "%s", name)
	}
	if !mutable {
		return cellTarget{}, newErr(ErrAssignToImmutable, pos, "%s", name)
	}
	return cellTarget{local: false, upvalue: uint8(upIdx)}, nil
}

// derefInPlace unwraps the MutableRef held in src via CallBuiltin(Deref),
// returning the (possibly different) register holding the dereferenced
// value.
func (c *Compiler) derefInPlace(pos ast.Position, src uint8) (uint8, error) {
	base, err := c.contiguousBlockFrom(pos, []uint8{src})
	if err != nil {
		return 0, err
	}
	c.emitABC(opcodes.CallBuiltin, base, uint8(registry.DerefBuiltinID), 1)
	return base, nil
}

// resolveUpvalue finds name in an enclosing compiler's scope (or, further
// up, its own upvalues), installing a chain of upvalue descriptors from
// that point down to c, and returns c's local upvalue index for it.
func (c *Compiler) resolveUpvalue(name string) (int, bool, error) {
	if idx, ok := c.upvalueIndexByName[name]; ok {
		return idx, c.proto.Upvalues[idx].Mutable, nil
	}
	if c.parent == nil {
		return 0, false, ErrUndefinedVariable
	}

	if info, ok := c.parent.scope.lookupLocal(name); ok {
		idx, err := c.addUpvalue(name, bytecode.UpvalueDescriptor{
			FromParentLocal: true,
			Index:           info.Register,
			Mutable:         info.Mutable,
		})
		return idx, info.Mutable, err
	}

	parentIdx, mutable, err := c.parent.resolveUpvalue(name)
	if err != nil {
		return 0, false, err
	}
	idx, err := c.addUpvalue(name, bytecode.UpvalueDescriptor{
		FromParentLocal: false,
		Index:           uint8(parentIdx),
		Mutable:         mutable,
	})
	return idx, mutable, err
}

func (c *Compiler) addUpvalue(name string, desc bytecode.UpvalueDescriptor) (int, error) {
	if len(c.proto.Upvalues) >= 256 {
		return 0, ErrTooManyUpvalues
	}
	idx := len(c.proto.Upvalues)
	c.proto.Upvalues = append(c.proto.Upvalues, desc)
	c.upvalueIndexByName[name] = idx
	return idx, nil
}

// reserveSelfSlot installs upvalue 0 as the `rec` self-reference slot for
// a lambda, per §4.3.2: "rec is bound by upvalue-0 and is populated after
// the closure Value is constructed."
func (c *Compiler) reserveSelfSlot() {
	c.proto.Upvalues = append(c.proto.Upvalues, bytecode.UpvalueDescriptor{Self: true})
	c.upvalueIndexByName["rec"] = 0
	c.hasSelfSlot = true
}

// isMutable reports whether name resolves to a mutable binding, and
// whether it resolves at all (locals, then upvalues, then enclosing
// compilers).
func (c *Compiler) isMutable(name string) (bool, bool) {
	if info, ok := c.scope.lookupLocal(name); ok {
		return info.Mutable, true
	}
	if c.parent == nil {
		return false, false
	}
	if _, ok := c.upvalueIndexByName[name]; ok {
		return c.proto.Upvalues[c.upvalueIndexByName[name]].Mutable, true
	}
	return c.parent.isMutable(name)
}
