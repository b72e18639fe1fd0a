package compiler

import (
	"github.com/achronyme/achronyme-core-sub001/ast"
	"github.com/achronyme/achronyme-core-sub001/opcodes"
	"github.com/achronyme/achronyme-core-sub001/registry"
	"github.com/achronyme/achronyme-core-sub001/values"
)

// compileDestructuringStmt lowers `let pattern = init` / `mut pattern =
// init`: an irrefutable destructure, so only bindPattern runs (there is
// nothing to test against).
func (c *Compiler) compileDestructuringStmt(pos ast.Position, pattern ast.Pattern, init ast.Expr, mutable bool) error {
	switch pattern.(type) {
	case *ast.LiteralPattern, *ast.TypePattern:
		return newErr(ErrInvalidPattern, pos, "literal/type patterns are refutable and may not appear in a let/mut destructure")
	}
	valReg, err := c.compileExpr(init)
	if err != nil {
		return err
	}
	if mutable {
		return c.bindMutablePattern(pos, pattern, valReg)
	}
	return c.bindPattern(pattern, valReg)
}

// testPattern compiles a boolean test of whether value (held in valueReg)
// matches pattern, without binding any variables. Composite patterns
// (vector/record) destructure eagerly into throwaway registers so nested
// sub-patterns can be tested the same way; bindPattern repeats the
// destructure on an actual match (see compileMatch), which is simpler than
// threading element registers between the two passes at the cost of
// redundant instructions on a failed arm.
func (c *Compiler) testPattern(pattern ast.Pattern, valueReg uint8) (uint8, error) {
	switch p := pattern.(type) {
	case *ast.WildcardPattern, *ast.VariablePattern:
		dst, err := c.regs.allocate()
		if err != nil {
			return 0, err
		}
		c.emitABC(opcodes.LoadTrue, dst, 0, 0)
		return dst, nil

	case *ast.LiteralPattern:
		lit, err := literalPatternValue(p)
		if err != nil {
			return 0, err
		}
		idx, err := c.pool.AddConstant(lit)
		if err != nil {
			return 0, err
		}
		if idx > 0xFF {
			return 0, newErr(ErrTooManyConstants, p.Value.Pos(), "literal pattern constant index exceeds match's 8-bit operand")
		}
		dst, err := c.regs.allocate()
		if err != nil {
			return 0, err
		}
		c.emitABC(opcodes.MatchLit, dst, valueReg, uint8(idx))
		return dst, nil

	case *ast.TypePattern:
		name := p.Name
		switch name {
		case "Array":
			name = "Vector"
		case "Object":
			name = "Record"
		}
		sid, err := c.pool.AddString(name)
		if err != nil {
			return 0, err
		}
		dst, err := c.regs.allocate()
		if err != nil {
			return 0, err
		}
		c.emitABC(opcodes.MatchType, dst, valueReg, uint8(sid))
		return dst, nil

	case *ast.VectorPattern:
		elemRegs, _, err := c.destructureVector(p, valueReg)
		if err != nil {
			return 0, err
		}
		tests := make([]uint8, 0, len(elemRegs))
		for i, el := range p.Elements {
			if el.Rest != "" {
				continue
			}
			t, err := c.testPattern(el.Pattern, elemRegs[i])
			if err != nil {
				return 0, err
			}
			tests = append(tests, t)
		}
		return c.allMatch(tests)

	case *ast.RecordPattern:
		fieldRegs, err := c.destructureRecord(p, valueReg)
		if err != nil {
			return 0, err
		}
		tests := make([]uint8, 0, len(p.Fields))
		for i, f := range p.Fields {
			sub := f.Pattern
			if sub == nil {
				sub = &ast.VariablePattern{Name: f.Name}
			}
			t, err := c.testPattern(sub, fieldRegs[i])
			if err != nil {
				return 0, err
			}
			tests = append(tests, t)
		}
		return c.allMatch(tests)

	default:
		return 0, newErr(ErrInvalidPattern, ast.Position{}, "%T", pattern)
	}
}

// bindPattern binds pattern's variables against an already-confirmed
// match in valueReg, reusing valueReg directly for VariablePattern (no
// extra Move) and recursing structurally for vector/record patterns.
func (c *Compiler) bindPattern(pattern ast.Pattern, valueReg uint8) error {
	switch p := pattern.(type) {
	case *ast.WildcardPattern, *ast.LiteralPattern, *ast.TypePattern:
		return nil

	case *ast.VariablePattern:
		c.scope.define(p.Name, valueReg, false, "")
		return nil

	case *ast.VectorPattern:
		elemRegs, restReg, err := c.destructureVector(p, valueReg)
		if err != nil {
			return err
		}
		for i, el := range p.Elements {
			if el.Rest != "" {
				c.scope.define(el.Rest, restReg, false, "")
				continue
			}
			if el.Default != nil {
				if err := c.applyDefault(elemRegs[i], el.Default); err != nil {
					return err
				}
			}
			if err := c.bindPattern(el.Pattern, elemRegs[i]); err != nil {
				return err
			}
		}
		return nil

	case *ast.RecordPattern:
		fieldRegs, err := c.destructureRecord(p, valueReg)
		if err != nil {
			return err
		}
		for i, f := range p.Fields {
			if f.Default != nil {
				if err := c.applyDefault(fieldRegs[i], f.Default); err != nil {
					return err
				}
			}
			sub := f.Pattern
			if sub == nil {
				sub = &ast.VariablePattern{Name: f.Name}
			}
			if err := c.bindPattern(sub, fieldRegs[i]); err != nil {
				return err
			}
		}
		return nil

	default:
		return newErr(ErrInvalidPattern, ast.Position{}, "%T", pattern)
	}
}

// bindMutablePattern behaves like bindPattern but boxes every leaf binding
// into a MutableRef, for `mut (a, b) = ...` destructuring.
func (c *Compiler) bindMutablePattern(pos ast.Position, pattern ast.Pattern, valueReg uint8) error {
	switch p := pattern.(type) {
	case *ast.WildcardPattern:
		return nil
	case *ast.VariablePattern:
		base, err := c.contiguousBlockFrom(pos, []uint8{valueReg})
		if err != nil {
			return err
		}
		c.emitABC(opcodes.CallBuiltin, base, uint8(registry.MakeMutableRefBuiltinID), 1)
		c.scope.define(p.Name, base, true, "")
		return nil
	case *ast.VectorPattern:
		elemRegs, restReg, err := c.destructureVector(p, valueReg)
		if err != nil {
			return err
		}
		for i, el := range p.Elements {
			if el.Rest != "" {
				if err := c.bindMutablePattern(pos, &ast.VariablePattern{Name: el.Rest}, restReg); err != nil {
					return err
				}
				continue
			}
			if el.Default != nil {
				if err := c.applyDefault(elemRegs[i], el.Default); err != nil {
					return err
				}
			}
			if err := c.bindMutablePattern(pos, el.Pattern, elemRegs[i]); err != nil {
				return err
			}
		}
		return nil
	case *ast.RecordPattern:
		fieldRegs, err := c.destructureRecord(p, valueReg)
		if err != nil {
			return err
		}
		for i, f := range p.Fields {
			if f.Default != nil {
				if err := c.applyDefault(fieldRegs[i], f.Default); err != nil {
					return err
				}
			}
			sub := f.Pattern
			if sub == nil {
				sub = &ast.VariablePattern{Name: f.Name}
			}
			if err := c.bindMutablePattern(pos, sub, fieldRegs[i]); err != nil {
				return err
			}
		}
		return nil
	default:
		return newErr(ErrInvalidPattern, pos, "%T", pattern)
	}
}

// applyDefault overwrites reg with expr's value when reg currently holds
// Null (an absent vector element or record field), per the data model's
// pattern-default semantics.
func (c *Compiler) applyDefault(reg uint8, expr ast.Expr) error {
	skipJump := c.emitJump(opcodes.JumpIfNull, reg)
	// JumpIfNull jumps when true, so this branch is backwards: invert by
	// jumping over the default-assignment when NOT null instead.
	_ = skipJump
	notNullJump := c.emitJump(opcodes.Jump, 0)
	if err := c.patchJumpTo(skipJump, c.here()); err != nil {
		return err
	}
	valReg, err := c.compileExpr(expr)
	if err != nil {
		return err
	}
	c.emitABC(opcodes.Move, reg, valReg, 0)
	if err := c.patchJump(notNullJump); err != nil {
		return err
	}
	return nil
}

// destructureVector emits DestructureVec for p's fixed-position elements
// and, if present, the trailing rest element via VecSlice.
func (c *Compiler) destructureVector(p *ast.VectorPattern, valueReg uint8) (elemRegs []uint8, restReg uint8, err error) {
	fixedCount := len(p.Elements)
	hasRest := fixedCount > 0 && p.Elements[fixedCount-1].Rest != ""
	if hasRest {
		fixedCount--
	}
	base, aerr := c.regs.allocateMany(fixedCount)
	if aerr != nil {
		return nil, 0, aerr
	}
	if fixedCount > 0xFF {
		return nil, 0, ErrTooManyRegisters
	}
	c.emitABC(opcodes.DestructureVec, base, valueReg, uint8(fixedCount))
	elemRegs = make([]uint8, fixedCount)
	for i := 0; i < fixedCount; i++ {
		elemRegs[i] = base + uint8(i)
	}
	if hasRest {
		// VecSlice reads its bounds from a contiguous [start, end) register
		// pair at C, C+1; Null in the end slot means "through the end".
		boundsBase, berr := c.regs.allocateMany(2)
		if berr != nil {
			return nil, 0, berr
		}
		idx, cerr := c.pool.AddConstant(values.Number(float64(fixedCount)))
		if cerr != nil {
			return nil, 0, cerr
		}
		c.emitABx(opcodes.LoadConst, boundsBase, uint16(idx))
		c.emitABC(opcodes.LoadNull, boundsBase+1, 0, 0)
		restReg, err = c.regs.allocate()
		if err != nil {
			return nil, 0, err
		}
		c.emitABC(opcodes.VecSlice, restReg, valueReg, boundsBase)
	}
	return elemRegs, restReg, nil
}

// destructureRecord emits DestructureRec against a constant holding the
// ordered field-name list, one register per field in p.Fields order.
func (c *Compiler) destructureRecord(p *ast.RecordPattern, valueReg uint8) ([]uint8, error) {
	names := make([]*values.Value, len(p.Fields))
	for i, f := range p.Fields {
		names[i] = values.String(f.Name)
	}
	idx, err := c.pool.AddConstant(values.NewVector(names))
	if err != nil {
		return nil, err
	}
	if idx > 0xFF {
		return nil, newErr(ErrTooManyConstants, ast.Position{}, "record pattern field-name constant index exceeds match's 8-bit operand")
	}
	base, err := c.regs.allocateMany(len(p.Fields))
	if err != nil {
		return nil, err
	}
	c.emitABC(opcodes.DestructureRec, base, valueReg, uint8(idx))
	regs := make([]uint8, len(p.Fields))
	for i := range p.Fields {
		regs[i] = base + uint8(i)
	}
	return regs, nil
}

// allMatch ANDs a set of boolean test registers via short-circuit jumps,
// returning a fresh register holding the combined result.
func (c *Compiler) allMatch(tests []uint8) (uint8, error) {
	result, err := c.regs.allocate()
	if err != nil {
		return 0, err
	}
	if len(tests) == 0 {
		c.emitABC(opcodes.LoadTrue, result, 0, 0)
		return result, nil
	}
	var failJumps []int
	for _, t := range tests {
		failJumps = append(failJumps, c.emitJump(opcodes.JumpIfFalse, t))
	}
	c.emitABC(opcodes.LoadTrue, result, 0, 0)
	endJump := c.emitJump(opcodes.Jump, 0)
	for _, j := range failJumps {
		if err := c.patchJump(j); err != nil {
			return 0, err
		}
	}
	c.emitABC(opcodes.LoadFalse, result, 0, 0)
	if err := c.patchJump(endJump); err != nil {
		return 0, err
	}
	return result, nil
}

func literalPatternValue(p *ast.LiteralPattern) (*values.Value, error) {
	switch v := p.Value.(type) {
	case *ast.Number:
		return values.Number(v.Value), nil
	case *ast.Boolean:
		return values.Boolean(v.Value), nil
	case *ast.StringLiteral:
		return values.String(v.Value), nil
	case *ast.NullLiteral:
		return values.Null(), nil
	default:
		return nil, newErr(ErrInvalidPattern, v.Pos(), "unsupported literal pattern %T", v)
	}
}
