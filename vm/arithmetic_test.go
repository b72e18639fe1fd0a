package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achronyme/achronyme-core-sub001/bytecode"
	"github.com/achronyme/achronyme-core-sub001/opcodes"
	"github.com/achronyme/achronyme-core-sub001/values"
)

// runProgram assembles code into a single-prototype module (3 registers by
// default is plenty for these small programs) and executes it, returning
// register A of the final Return/ReturnNull.
func runProgram(t *testing.T, regs int, code ...opcodes.Instruction) (*values.Value, error) {
	t.Helper()
	pool := bytecode.NewConstantPool()
	proto := bytecode.NewPrototype("main", pool)
	proto.RegisterCount = regs
	proto.Code = code
	mod := bytecode.NewModule("test", proto, pool)
	return New(nil).Execute(mod)
}

func TestArith_Add(t *testing.T) {
	pool := bytecode.NewConstantPool()
	i0, _ := pool.AddConstant(values.Number(3))
	i1, _ := pool.AddConstant(values.Number(4))
	proto := bytecode.NewPrototype("main", pool)
	proto.RegisterCount = 3
	proto.Code = []opcodes.Instruction{
		opcodes.EncodeABx(opcodes.LoadConst, 0, uint16(i0)),
		opcodes.EncodeABx(opcodes.LoadConst, 1, uint16(i1)),
		opcodes.EncodeABC(opcodes.Add, 2, 0, 1),
		opcodes.EncodeABC(opcodes.Return, 2, 0, 0),
	}
	mod := bytecode.NewModule("test", proto, pool)

	v, err := New(nil).Execute(mod)
	require.NoError(t, err)
	n, ok := v.ToFloat()
	require.True(t, ok)
	assert.Equal(t, 7.0, n)
}

func TestArith_DivisionByZeroIsInfinity(t *testing.T) {
	pool := bytecode.NewConstantPool()
	i0, _ := pool.AddConstant(values.Number(1))
	i1, _ := pool.AddConstant(values.Number(0))
	proto := bytecode.NewPrototype("main", pool)
	proto.RegisterCount = 3
	proto.Code = []opcodes.Instruction{
		opcodes.EncodeABx(opcodes.LoadConst, 0, uint16(i0)),
		opcodes.EncodeABx(opcodes.LoadConst, 1, uint16(i1)),
		opcodes.EncodeABC(opcodes.Div, 2, 0, 1),
		opcodes.EncodeABC(opcodes.Return, 2, 0, 0),
	}
	mod := bytecode.NewModule("test", proto, pool)

	v, err := New(nil).Execute(mod)
	require.NoError(t, err)
	n, _ := v.ToFloat()
	assert.True(t, n > 0 && n == n+1) // +Inf
}

func TestArith_ModuloByZeroRaises(t *testing.T) {
	pool := bytecode.NewConstantPool()
	i0, _ := pool.AddConstant(values.Number(1))
	i1, _ := pool.AddConstant(values.Number(0))
	proto := bytecode.NewPrototype("main", pool)
	proto.RegisterCount = 3
	proto.Code = []opcodes.Instruction{
		opcodes.EncodeABx(opcodes.LoadConst, 0, uint16(i0)),
		opcodes.EncodeABx(opcodes.LoadConst, 1, uint16(i1)),
		opcodes.EncodeABC(opcodes.Mod, 2, 0, 1),
		opcodes.EncodeABC(opcodes.Return, 2, 0, 0),
	}
	mod := bytecode.NewModule("test", proto, pool)

	_, err := New(nil).Execute(mod)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModuloByZero)
}

func TestArith_ComplexAddition(t *testing.T) {
	pool := bytecode.NewConstantPool()
	i0, _ := pool.AddConstant(values.ComplexValue(1, 2))
	i1, _ := pool.AddConstant(values.ComplexValue(3, -1))
	proto := bytecode.NewPrototype("main", pool)
	proto.RegisterCount = 3
	proto.Code = []opcodes.Instruction{
		opcodes.EncodeABx(opcodes.LoadConst, 0, uint16(i0)),
		opcodes.EncodeABx(opcodes.LoadConst, 1, uint16(i1)),
		opcodes.EncodeABC(opcodes.Add, 2, 0, 1),
		opcodes.EncodeABC(opcodes.Return, 2, 0, 0),
	}
	mod := bytecode.NewModule("test", proto, pool)

	v, err := New(nil).Execute(mod)
	require.NoError(t, err)
	c, ok := v.ToComplex()
	require.True(t, ok)
	assert.Equal(t, values.Complex{Re: 4, Im: 1}, c)
}

func TestCompare_StringOrdering(t *testing.T) {
	pool := bytecode.NewConstantPool()
	i0, _ := pool.AddConstant(values.String("abc"))
	i1, _ := pool.AddConstant(values.String("abd"))
	proto := bytecode.NewPrototype("main", pool)
	proto.RegisterCount = 3
	proto.Code = []opcodes.Instruction{
		opcodes.EncodeABx(opcodes.LoadConst, 0, uint16(i0)),
		opcodes.EncodeABx(opcodes.LoadConst, 1, uint16(i1)),
		opcodes.EncodeABC(opcodes.Lt, 2, 0, 1),
		opcodes.EncodeABC(opcodes.Return, 2, 0, 0),
	}
	mod := bytecode.NewModule("test", proto, pool)

	v, err := New(nil).Execute(mod)
	require.NoError(t, err)
	assert.True(t, v.IsTruthy())
}

func TestJumpIfEqConst_TakesBranch(t *testing.T) {
	pool := bytecode.NewConstantPool()
	i0, _ := pool.AddConstant(values.Number(5))
	proto := bytecode.NewPrototype("main", pool)
	proto.RegisterCount = 2
	proto.Code = []opcodes.Instruction{
		opcodes.EncodeABx(opcodes.LoadConst, 0, uint16(i0)),                 // 0: R0 = 5
		opcodes.EncodeABC(opcodes.JumpIfEqConst, 0, 0, 2),                   // 1: if R0 == K[bx], ip += 2
		opcodes.EncodeABx(0, 0, uint16(i0)),                                 // 2: trailing Bx word
		opcodes.EncodeABC(opcodes.LoadFalse, 1, 0, 0),                      // 3: not-equal path
		opcodes.EncodeABx(opcodes.Jump, 0, opcodes.EncodeSignedBx(1)),       // 4: skip LoadTrue
		opcodes.EncodeABC(opcodes.LoadTrue, 1, 0, 0),                       // 5: equal-path target
		opcodes.EncodeABC(opcodes.Return, 1, 0, 0),                         // 6
	}
	mod := bytecode.NewModule("test", proto, pool)

	v, err := New(nil).Execute(mod)
	require.NoError(t, err)
	assert.True(t, v.IsTruthy())
}

func TestJumpIfEqConst_FallsThroughOnMismatch(t *testing.T) {
	pool := bytecode.NewConstantPool()
	i0, _ := pool.AddConstant(values.Number(5))
	i1, _ := pool.AddConstant(values.Number(6))
	proto := bytecode.NewPrototype("main", pool)
	proto.RegisterCount = 2
	proto.Code = []opcodes.Instruction{
		opcodes.EncodeABx(opcodes.LoadConst, 0, uint16(i0)),                 // 0: R0 = 5
		opcodes.EncodeABC(opcodes.JumpIfEqConst, 0, 0, 2),                   // 1: if R0 == K[bx], ip += 2
		opcodes.EncodeABx(0, 0, uint16(i1)),                                 // 2: trailing Bx word (K=6, mismatch)
		opcodes.EncodeABC(opcodes.LoadFalse, 1, 0, 0),                      // 3: not-equal path
		opcodes.EncodeABx(opcodes.Jump, 0, opcodes.EncodeSignedBx(1)),       // 4: skip LoadTrue
		opcodes.EncodeABC(opcodes.LoadTrue, 1, 0, 0),                       // 5: equal-path target
		opcodes.EncodeABC(opcodes.Return, 1, 0, 0),                         // 6
	}
	mod := bytecode.NewModule("test", proto, pool)

	v, err := New(nil).Execute(mod)
	require.NoError(t, err)
	assert.False(t, v.IsTruthy())
}
