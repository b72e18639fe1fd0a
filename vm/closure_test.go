package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achronyme/achronyme-core-sub001/bytecode"
	"github.com/achronyme/achronyme-core-sub001/opcodes"
	"github.com/achronyme/achronyme-core-sub001/values"
)

func TestClosure_SelfReferenceBreaksConstructionCycle(t *testing.T) {
	pool := bytecode.NewConstantPool()
	parent := bytecode.NewPrototype("outer", pool)
	parent.RegisterCount = 2
	child := bytecode.NewPrototype("rec", pool)
	child.Upvalues = []bytecode.UpvalueDescriptor{{Self: true}}
	parent.Functions = []*bytecode.Prototype{child}

	frame := newFrame(parent, nil, nil)
	vm := New(nil)
	require.NoError(t, vm.execClosure(frame, 0, 0))

	closureVal, err := frame.get(0)
	require.NoError(t, err)
	fn, ok := closureVal.ToFunction()
	require.True(t, ok)
	assert.Equal(t, 1, len(fn.Upvalues))
	assert.Same(t, closureVal, fn.Upvalues[0].Value)
}

func TestClosure_MutableUpvalueSharesSameCell(t *testing.T) {
	pool := bytecode.NewConstantPool()
	parent := bytecode.NewPrototype("outer", pool)
	parent.RegisterCount = 2
	child := bytecode.NewPrototype("inner", pool)
	child.Upvalues = []bytecode.UpvalueDescriptor{{FromParentLocal: true, Index: 0, Mutable: true}}
	parent.Functions = []*bytecode.Prototype{child}

	frame := newFrame(parent, nil, nil)
	ref := values.NewMutableRef(values.Number(1))
	require.NoError(t, frame.set(0, ref))

	vm := New(nil)
	require.NoError(t, vm.execClosure(frame, 1, 0))

	closureVal, err := frame.get(1)
	require.NoError(t, err)
	fn, _ := closureVal.ToFunction()
	refCell, _ := ref.ToMutableRef()
	assert.Same(t, refCell, fn.Upvalues[0])

	refCell.Value = values.Number(2)
	n, _ := fn.Upvalues[0].Value.ToFloat()
	assert.Equal(t, 2.0, n)
}

func TestClosure_TransitiveUpvalueReusesParentCell(t *testing.T) {
	pool := bytecode.NewConstantPool()
	grandparent := bytecode.NewPrototype("g", pool)
	parent := bytecode.NewPrototype("p", pool)
	parent.RegisterCount = 1
	parent.Upvalues = []bytecode.UpvalueDescriptor{{FromParentLocal: true, Index: 0, Mutable: true}}
	child := bytecode.NewPrototype("c", pool)
	child.Upvalues = []bytecode.UpvalueDescriptor{{FromParentLocal: false, Index: 0}}
	parent.Functions = []*bytecode.Prototype{child}
	grandparent.Functions = []*bytecode.Prototype{parent}

	outerFrame := newFrame(grandparent, nil, nil)
	outerFrame.Regs = make([]*values.Value, 2)
	ref := values.NewMutableRef(values.Number(5))
	outerFrame.Regs[0] = ref

	vm := New(nil)
	require.NoError(t, vm.execClosure(outerFrame, 1, 0))
	parentClosure, _ := outerFrame.get(1)
	parentFn, _ := parentClosure.ToFunction()

	parentFrame := newFrame(parent, parentFn.Upvalues, nil)
	require.NoError(t, vm.execClosure(parentFrame, 0, 0))
	childClosure, _ := parentFrame.get(0)
	childFn, _ := childClosure.ToFunction()

	refCell, _ := ref.ToMutableRef()
	assert.Same(t, refCell, childFn.Upvalues[0])
}

func TestClosure_InvalidIndexErrors(t *testing.T) {
	pool := bytecode.NewConstantPool()
	parent := bytecode.NewPrototype("outer", pool)
	frame := newFrame(parent, nil, nil)
	vm := New(nil)
	err := vm.execClosure(frame, 0, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFunction)
}

func TestOpcode_ClosureDispatchBuildsFunction(t *testing.T) {
	pool := bytecode.NewConstantPool()
	main := bytecode.NewPrototype("main", pool)
	main.RegisterCount = 2
	child := bytecode.NewPrototype("f", pool)
	child.Code = []opcodes.Instruction{
		opcodes.EncodeABC(opcodes.ReturnNull, 0, 0, 0),
	}
	main.Functions = []*bytecode.Prototype{child}
	main.Code = []opcodes.Instruction{
		opcodes.EncodeABx(opcodes.Closure, 0, 0),
		opcodes.EncodeABC(opcodes.Return, 0, 0, 0),
	}
	mod := bytecode.NewModule("test", main, pool)

	v, err := New(nil).Execute(mod)
	require.NoError(t, err)
	fn, ok := v.ToFunction()
	require.True(t, ok)
	assert.Equal(t, "f", fn.Name)
}
