package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achronyme/achronyme-core-sub001/bytecode"
	"github.com/achronyme/achronyme-core-sub001/opcodes"
	"github.com/achronyme/achronyme-core-sub001/values"
)

func TestMatchType(t *testing.T) {
	pool := bytecode.NewConstantPool()
	proto := bytecode.NewPrototype("f", pool)
	frame := newFrame(proto, nil, nil)
	frame.Regs = make([]*values.Value, 3)
	numberID, _ := pool.AddString("Number")
	frame.Regs[0] = values.Number(1)

	vm := New(nil)
	instr := opcodes.EncodeABC(opcodes.MatchType, 1, 0, uint8(numberID))
	require.NoError(t, vm.execPattern(frame, opcodes.MatchType, instr))
	assert.True(t, frame.Regs[1].IsTruthy())
}

func TestMatchLit(t *testing.T) {
	pool := bytecode.NewConstantPool()
	proto := bytecode.NewPrototype("f", pool)
	frame := newFrame(proto, nil, nil)
	frame.Regs = make([]*values.Value, 3)
	litIdx, _ := pool.AddConstant(values.Number(7))
	frame.Regs[0] = values.Number(7)

	vm := New(nil)
	instr := opcodes.EncodeABC(opcodes.MatchLit, 1, 0, uint8(litIdx))
	require.NoError(t, vm.execPattern(frame, opcodes.MatchLit, instr))
	assert.True(t, frame.Regs[1].IsTruthy())

	frame.Regs[0] = values.Number(8)
	require.NoError(t, vm.execPattern(frame, opcodes.MatchLit, instr))
	assert.False(t, frame.Regs[1].IsTruthy())
}

func TestDestructureVec_OutOfRangeIsNull(t *testing.T) {
	pool := bytecode.NewConstantPool()
	proto := bytecode.NewPrototype("f", pool)
	frame := newFrame(proto, nil, nil)
	frame.Regs = make([]*values.Value, 5)
	frame.Regs[0] = values.NewVector([]*values.Value{values.Number(1)})

	vm := New(nil)
	instr := opcodes.EncodeABC(opcodes.DestructureVec, 1, 0, 3)
	require.NoError(t, vm.execPattern(frame, opcodes.DestructureVec, instr))

	n0, _ := frame.Regs[1].ToFloat()
	assert.Equal(t, 1.0, n0)
	assert.True(t, frame.Regs[2].IsNull())
	assert.True(t, frame.Regs[3].IsNull())
}

func TestDestructureRec_MissingFieldIsNull(t *testing.T) {
	pool := bytecode.NewConstantPool()
	proto := bytecode.NewPrototype("f", pool)
	frame := newFrame(proto, nil, nil)
	frame.Regs = make([]*values.Value, 5)
	rec, _ := values.NewRecord().ToRecord()
	rec.Set("x", values.Number(9))
	recVal := &values.Value{Type: values.TypeRecord, Data: rec}
	frame.Regs[0] = recVal

	names := values.NewVector([]*values.Value{values.String("x"), values.String("y")})
	namesIdx, _ := pool.AddConstant(names)

	vm := New(nil)
	instr := opcodes.EncodeABC(opcodes.DestructureRec, 1, 0, uint8(namesIdx))
	require.NoError(t, vm.execPattern(frame, opcodes.DestructureRec, instr))

	n, _ := frame.Regs[1].ToFloat()
	assert.Equal(t, 9.0, n)
	assert.True(t, frame.Regs[2].IsNull())
}
