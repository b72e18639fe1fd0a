package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achronyme/achronyme-core-sub001/bytecode"
	"github.com/achronyme/achronyme-core-sub001/opcodes"
	"github.com/achronyme/achronyme-core-sub001/values"
)

// TestTailCall_SumsWithoutGoStackGrowth builds a self-recursive `count`
// prototype (params n, acc) that TailCalls itself via its Self upvalue
// until n<=0, then returns acc. Because every recursive step replaces
// vm.stack.frames[floor] in place rather than pushing, this runs to
// completion for a large n using a single CallFrame slot.
func TestTailCall_SumsWithoutGoStackGrowth(t *testing.T) {
	pool := bytecode.NewConstantPool()
	i0, _ := pool.AddConstant(values.Number(0))
	negOne := uint16(uint8(int8(-1)))

	count := bytecode.NewPrototype("count", pool)
	count.RegisterCount = 7
	count.ParamCount = 2
	count.Upvalues = []bytecode.UpvalueDescriptor{{Self: true}}
	count.Code = []opcodes.Instruction{
		opcodes.EncodeABx(opcodes.LoadConst, 5, uint16(i0)),             // 0: R5 = 0
		opcodes.EncodeABC(opcodes.Le, 6, 0, 5),                          // 1: R6 = n <= 0
		opcodes.EncodeABx(opcodes.JumpIfFalse, 6, opcodes.EncodeSignedBx(1)), // 2: if !R6, ip += 1 (recurse)
		opcodes.EncodeABC(opcodes.Return, 1, 0, 0),                      // 3: base case: return acc
		opcodes.EncodeABC(opcodes.Add, 4, 1, 0),                         // 4: R4 = acc + n
		opcodes.EncodeABC(opcodes.Move, 3, 0, 0),                        // 5: R3 = n
		opcodes.EncodeABx(opcodes.AddImm, 3, negOne),                    // 6: R3 += -1
		opcodes.EncodeABC(opcodes.GetUpvalue, 2, 0, 0),                  // 7: R2 = self
		opcodes.EncodeABC(opcodes.TailCall, 0, 2, 2),                    // 8: tailcall self(R3, R4)
	}

	main := bytecode.NewPrototype("main", pool)
	main.RegisterCount = 4
	main.Functions = []*bytecode.Prototype{count}
	n := 1000.0
	iN, _ := pool.AddConstant(values.Number(n))
	main.Code = []opcodes.Instruction{
		opcodes.EncodeABx(opcodes.Closure, 0, 0),    // 0: R0 = closure(count)
		opcodes.EncodeABx(opcodes.LoadConst, 1, uint16(iN)), // 1: R1 = n
		opcodes.EncodeABx(opcodes.LoadConst, 2, uint16(i0)), // 2: R2 = 0 (acc)
		opcodes.EncodeABC(opcodes.Call, 3, 0, 2),    // 3: R3 = count(R1, R2)
		opcodes.EncodeABC(opcodes.Return, 3, 0, 0),  // 4
	}
	mod := bytecode.NewModule("test", main, pool)

	v, err := New(nil).Execute(mod)
	require.NoError(t, err)
	got, _ := v.ToFloat()
	assert.Equal(t, n*(n+1)/2, got)
}

// TestThrow_UnwindsAcrossNestedCallsToOuterHandler builds Main -> f -> g,
// each an ordinary (non-tail) Call, with g throwing and only Main having
// an installed handler. This exercises errStackCollapsed crossing two Go
// recursion levels (invoke->run->invoke->run) to land back in Main's own
// run() loop.
func TestThrow_UnwindsAcrossNestedCallsToOuterHandler(t *testing.T) {
	pool := bytecode.NewConstantPool()
	i42, _ := pool.AddConstant(values.Number(42))

	g := bytecode.NewPrototype("g", pool)
	g.RegisterCount = 1
	g.Code = []opcodes.Instruction{
		opcodes.EncodeABx(opcodes.LoadConst, 0, uint16(i42)), // 0: R0 = 42
		opcodes.EncodeABC(opcodes.Throw, 0, 0, 0),            // 1: throw R0
	}

	f := bytecode.NewPrototype("f", pool)
	f.RegisterCount = 2
	f.Functions = []*bytecode.Prototype{g}
	f.Code = []opcodes.Instruction{
		opcodes.EncodeABx(opcodes.Closure, 0, 0), // 0: R0 = closure(g)
		opcodes.EncodeABC(opcodes.Call, 1, 0, 0), // 1: R1 = g()
		opcodes.EncodeABC(opcodes.Return, 1, 0, 0),
	}

	main := bytecode.NewPrototype("main", pool)
	main.RegisterCount = 3
	main.Functions = []*bytecode.Prototype{f}
	main.Code = []opcodes.Instruction{
		opcodes.EncodeABx(opcodes.Closure, 0, 0),                     // 0: R0 = closure(f)
		opcodes.EncodeABx(opcodes.PushHandler, 1, opcodes.EncodeSignedBx(2)), // 1: catch -> ip+2 = index4
		opcodes.EncodeABC(opcodes.Call, 2, 0, 0),                     // 2: R2 = f()
		opcodes.EncodeABx(opcodes.Jump, 0, opcodes.EncodeSignedBx(1)),// 3: skip catch target on normal return
		opcodes.EncodeABC(opcodes.Return, 1, 0, 0),                   // 4: catch target: return caught value
		opcodes.EncodeABC(opcodes.ReturnNull, 0, 0, 0),               // 5
	}
	mod := bytecode.NewModule("test", main, pool)

	v, err := New(nil).Execute(mod)
	require.NoError(t, err)
	n, ok := v.ToFloat()
	require.True(t, ok)
	assert.Equal(t, 42.0, n)
}

// TestThrow_UncaughtPropagatesAsVMError confirms that a throw with no
// installed handler anywhere on the stack surfaces as a terminal
// ErrUncaughtException carrying the thrown Value.
func TestThrow_UncaughtPropagatesAsVMError(t *testing.T) {
	pool := bytecode.NewConstantPool()
	iErr, _ := pool.AddConstant(values.String("boom"))
	proto := bytecode.NewPrototype("main", pool)
	proto.RegisterCount = 1
	proto.Code = []opcodes.Instruction{
		opcodes.EncodeABx(opcodes.LoadConst, 0, uint16(iErr)),
		opcodes.EncodeABC(opcodes.Throw, 0, 0, 0),
	}
	mod := bytecode.NewModule("test", proto, pool)

	_, err := New(nil).Execute(mod)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUncaughtException)
	ve, ok := err.(*VMError)
	require.True(t, ok)
	require.NotNil(t, ve.Exception)
	s, _ := ve.Exception.ToString()
	assert.Equal(t, "boom", s)
}

func TestProfiler_CountsInstructionsAndStampsTraceID(t *testing.T) {
	pool := bytecode.NewConstantPool()
	iErr, _ := pool.AddConstant(values.String("boom"))
	proto := bytecode.NewPrototype("main", pool)
	proto.RegisterCount = 1
	proto.Code = []opcodes.Instruction{
		opcodes.EncodeABx(opcodes.LoadConst, 0, uint16(iErr)),
		opcodes.EncodeABC(opcodes.Throw, 0, 0, 0),
	}
	mod := bytecode.NewModule("test", proto, pool)

	vm := New(nil)
	prof := NewProfiler(DebugLevelBasic)
	vm.SetProfiler(prof)

	_, err := vm.Execute(mod)
	require.Error(t, err)
	ve, ok := err.(*VMError)
	require.True(t, ok)
	assert.Equal(t, prof.TraceID(), ve.TraceID)
	assert.NotEmpty(t, prof.HotSpots(0))
}
