package compiler

import (
	"github.com/achronyme/achronyme-core-sub001/ast"
	"github.com/achronyme/achronyme-core-sub001/opcodes"
	"github.com/achronyme/achronyme-core-sub001/registry"
	"github.com/achronyme/achronyme-core-sub001/values"
)

// compileArrayLiteral lowers `[e1, e2, ...]` into NewVector + one VecPush
// per element. Spread (`...expr`) is an explicit open question rejected at
// compile time per SPEC_FULL.md §9.1.
func (c *Compiler) compileArrayLiteral(e *ast.ArrayLiteral) (uint8, error) {
	dst, err := c.regs.allocate()
	if err != nil {
		return 0, newErr(err, e.Pos(), "")
	}
	c.emitABC(opcodes.NewVector, dst, 0, 0)
	for _, el := range e.Elements {
		if el.Spread {
			return 0, NotYetImplemented("spread in array literal", e.Pos())
		}
		mark := c.regs.mark()
		reg, err := c.compileExpr(el.Expr)
		if err != nil {
			return 0, err
		}
		c.emitABC(opcodes.VecPush, dst, reg, 0)
		c.regs.freeTo(mark)
	}
	return dst, nil
}

// compileRecordLiteral lowers `{ f1: v1, mut f2: v2, ... }` into NewRecord
// + one SetField per field. Spread (`...expr`) is rejected, matching the
// array-literal open question. The `mut` flag on a field does not change
// lowering — Record fields are already shared-mutable and reassignable
// through SetField regardless of how they were declared.
func (c *Compiler) compileRecordLiteral(e *ast.RecordLiteral) (uint8, error) {
	dst, err := c.regs.allocate()
	if err != nil {
		return 0, newErr(err, e.Pos(), "")
	}
	c.emitABC(opcodes.NewRecord, dst, 0, 0)
	for _, f := range e.Fields {
		if f.Spread != nil {
			return 0, NotYetImplemented("spread in record literal", e.Pos())
		}
		mark := c.regs.mark()
		valReg, err := c.compileExpr(f.Value)
		if err != nil {
			return 0, err
		}
		sid, err := c.pool.AddString(f.Name)
		if err != nil {
			return 0, newErr(err, e.Pos(), "")
		}
		c.emitABC(opcodes.SetField, dst, uint8(sid), valReg)
		c.regs.freeTo(mark)
	}
	return dst, nil
}

// compileFieldAccess lowers `r.f` into GetField.
func (c *Compiler) compileFieldAccess(e *ast.FieldAccess) (uint8, error) {
	recReg, err := c.compileExpr(e.Record)
	if err != nil {
		return 0, err
	}
	sid, err := c.pool.AddString(e.Field)
	if err != nil {
		return 0, newErr(err, e.Pos(), "")
	}
	dst, err := c.regs.allocate()
	if err != nil {
		return 0, newErr(err, e.Pos(), "")
	}
	c.emitABC(opcodes.GetField, dst, recReg, uint8(sid))
	return dst, nil
}

// compileIndexAccess lowers `v[i]`. The compiler cannot know statically
// whether the operand is a Vector (Number index, with negative-index
// wraparound) or a Record (String index); VecGet's runtime implementation
// dispatches on the operand's actual type, per §4.3.1's "index access
// emits VecGet (Number index) or GetField (String index)" collapsed into
// one opcode for a type that is only known at run time. Multiple indexing
// arguments (`v[i, j]`) are rejected per SPEC_FULL.md §9.1.
func (c *Compiler) compileIndexAccess(e *ast.IndexAccess) (uint8, error) {
	if len(e.Indices) != 1 {
		return 0, NotYetImplemented("multiple indexing arguments", e.Pos())
	}
	objReg, err := c.compileExpr(e.Object)
	if err != nil {
		return 0, err
	}
	idxReg, err := c.compileExpr(e.Indices[0])
	if err != nil {
		return 0, err
	}
	dst, err := c.regs.allocate()
	if err != nil {
		return 0, newErr(err, e.Pos(), "")
	}
	c.emitABC(opcodes.VecGet, dst, objReg, idxReg)
	return dst, nil
}

// compileRange lowers a range literal. Literal integer endpoints are
// expanded at compile time into a Vector constant (§4.3.1's "simplicity"
// option); non-literal endpoints build a runtime Range value via the
// reserved __make_range built-in (§4.3.1's preferred runtime option, per
// SPEC_FULL.md §9.1's open-question resolution).
func (c *Compiler) compileRange(e *ast.RangeExpr) (uint8, error) {
	startNum, startOK := e.Start.(*ast.Number)
	endNum, endOK := e.End.(*ast.Number)
	if startOK && endOK {
		lo, hi := int(startNum.Value), int(endNum.Value)
		if e.Inclusive {
			hi++
		}
		elems := make([]*values.Value, 0, hi-lo)
		for i := lo; i < hi; i++ {
			elems = append(elems, values.Number(float64(i)))
		}
		return c.loadConstant(e.Pos(), values.NewVector(elems))
	}

	startReg, err := c.compileExpr(e.Start)
	if err != nil {
		return 0, err
	}
	endReg, err := c.compileExpr(e.End)
	if err != nil {
		return 0, err
	}
	inclReg, err := c.regs.allocate()
	if err != nil {
		return 0, newErr(err, e.Pos(), "")
	}
	if e.Inclusive {
		c.emitABC(opcodes.LoadTrue, inclReg, 0, 0)
	} else {
		c.emitABC(opcodes.LoadFalse, inclReg, 0, 0)
	}
	base, err := c.contiguousBlockFrom(e.Pos(), []uint8{startReg, endReg, inclReg})
	if err != nil {
		return 0, err
	}
	c.emitABC(opcodes.CallBuiltin, base, uint8(registry.MakeRangeBuiltinID), 3)
	return base, nil
}

// compileEdgeLiteral lowers `a -> b {props}` / `a -- b {props}` via the
// reserved __make_edge built-in, mirroring compileRange's "no dedicated
// opcode for this aggregate constructor" approach.
func (c *Compiler) compileEdgeLiteral(e *ast.EdgeLiteral) (uint8, error) {
	fromReg, err := c.compileExpr(e.From)
	if err != nil {
		return 0, err
	}
	toReg, err := c.compileExpr(e.To)
	if err != nil {
		return 0, err
	}
	dirReg, err := c.regs.allocate()
	if err != nil {
		return 0, newErr(err, e.Pos(), "")
	}
	if e.Directed {
		c.emitABC(opcodes.LoadTrue, dirReg, 0, 0)
	} else {
		c.emitABC(opcodes.LoadFalse, dirReg, 0, 0)
	}

	propsReg, err := c.regs.allocate()
	if err != nil {
		return 0, newErr(err, e.Pos(), "")
	}
	c.emitABC(opcodes.NewRecord, propsReg, 0, 0)
	for _, f := range e.Properties {
		if f.Spread != nil {
			return 0, NotYetImplemented("spread in edge properties", e.Pos())
		}
		valReg, verr := c.compileExpr(f.Value)
		if verr != nil {
			return 0, verr
		}
		sid, serr := c.pool.AddString(f.Name)
		if serr != nil {
			return 0, newErr(serr, e.Pos(), "")
		}
		c.emitABC(opcodes.SetField, propsReg, uint8(sid), valReg)
	}

	base, err := c.contiguousBlockFrom(e.Pos(), []uint8{fromReg, toReg, dirReg, propsReg})
	if err != nil {
		return 0, err
	}
	c.emitABC(opcodes.CallBuiltin, base, uint8(registry.MakeEdgeBuiltinID), 4)
	return base, nil
}

// compileInterpolatedString lowers `"x = ${x}"` onto the Builder(String)
// protocol (BuildInit/BuildPush/BuildEnd), per SPEC_FULL.md §9.1's
// open-question resolution. Embedded expressions are coerced to their
// unquoted display string via the reserved __to_display_string built-in
// before being pushed.
func (c *Compiler) compileInterpolatedString(e *ast.InterpolatedString) (uint8, error) {
	hintReg, err := c.regs.allocate()
	if err != nil {
		return 0, newErr(err, e.Pos(), "")
	}
	hintIdx, err := c.pool.AddConstant(values.String(""))
	if err != nil {
		return 0, newErr(err, e.Pos(), "")
	}
	c.emitABx(opcodes.LoadConst, hintReg, uint16(hintIdx))

	builderReg, err := c.regs.allocate()
	if err != nil {
		return 0, newErr(err, e.Pos(), "")
	}
	c.emitABC(opcodes.BuildInit, builderReg, hintReg, 0)

	for _, part := range e.Parts {
		mark := c.regs.mark()
		if part.Expr == nil {
			sIdx, err := c.pool.AddConstant(values.String(part.Text))
			if err != nil {
				return 0, newErr(err, e.Pos(), "")
			}
			reg, err := c.regs.allocate()
			if err != nil {
				return 0, newErr(err, e.Pos(), "")
			}
			c.emitABx(opcodes.LoadConst, reg, uint16(sIdx))
			c.emitABC(opcodes.BuildPush, builderReg, reg, 0)
			c.regs.freeTo(mark)
			continue
		}
		valReg, err := c.compileExpr(part.Expr)
		if err != nil {
			return 0, err
		}
		base, err := c.contiguousBlockFrom(e.Pos(), []uint8{valReg})
		if err != nil {
			return 0, err
		}
		c.emitABC(opcodes.CallBuiltin, base, uint8(registry.ToDisplayStringBuiltinID), 1)
		c.emitABC(opcodes.BuildPush, builderReg, base, 0)
		c.regs.freeTo(mark)
	}

	resultReg, err := c.regs.allocate()
	if err != nil {
		return 0, newErr(err, e.Pos(), "")
	}
	c.emitABC(opcodes.BuildEnd, resultReg, builderReg, 0)
	return resultReg, nil
}
