// Package vm implements Achronyme's register-based bytecode interpreter:
// the dispatch loop, call stack, exception unwinding, and the built-in
// call context the registry dispatches through.
package vm

import (
	"errors"

	"github.com/achronyme/achronyme-core-sub001/bytecode"
	"github.com/achronyme/achronyme-core-sub001/opcodes"
	"github.com/achronyme/achronyme-core-sub001/registry"
	"github.com/achronyme/achronyme-core-sub001/values"
)

// errStackCollapsed is an internal sentinel: it never reaches a host. It
// signals that a Throw somewhere below the current run() invocation's own
// frame has already found its handler and truncated vm.stack, and that
// this run() must unwind (without producing a value) until control
// reaches the run() invocation whose own frame is the new stack top.
var errStackCollapsed = errors.New("vm: stack collapsed by exception unwind")

// VM executes one bytecode.Module (or, via CallValue, re-enters to run a
// single Function value to completion) against a shared call stack.
type VM struct {
	reg   *registry.Registry
	stack *CallStack
	prof  *Profiler
}

// New returns a VM dispatching built-ins through reg (registry.Default if
// nil).
func New(reg *registry.Registry) *VM {
	if reg == nil {
		reg = registry.Default
	}
	return &VM{reg: reg, stack: newCallStack()}
}

// SetProfiler installs a hot-spot/breakpoint profiler the dispatch loop
// samples on every instruction; pass nil to disable.
func (vm *VM) SetProfiler(p *Profiler) { vm.prof = p }

// Execute runs module's entry prototype to completion, synchronously,
// returning its final Value or the VmError that terminated it.
func (vm *VM) Execute(module *bytecode.Module) (*values.Value, error) {
	frame := newFrame(module.Main, nil, nil)
	floor := vm.stack.depth()
	if err := vm.stack.push(frame); err != nil {
		return nil, err
	}
	v, yielded, err := vm.run(floor)
	if yielded {
		return nil, errors.New("vm: yield escaped a non-generator frame")
	}
	return v, vm.stampTrace(err)
}

// stampTrace tags an uncaught exception with the attached Profiler's trace
// id, if one is installed, so a host can match a diagnostic back to its
// profiler report.
func (vm *VM) stampTrace(err error) error {
	if err == nil || vm.prof == nil {
		return err
	}
	if ve, ok := err.(*VMError); ok {
		ve.TraceID = vm.prof.TraceID()
	}
	return err
}

// CallValue re-enters the VM to invoke fn (closure or built-in) with args,
// synchronously, for use by higher-order built-ins (map/filter/reduce)
// and host event callbacks.
func (vm *VM) CallValue(fn *values.Value, args []*values.Value) (*values.Value, error) {
	f, ok := fn.Deref().ToFunction()
	if !ok {
		return nil, &VMError{Type: ErrInvalidFunction, Message: "CallValue target is not a Function"}
	}
	return vm.invoke(f, args)
}

// invoke dispatches a built-in directly, or builds a frame for a user
// closure: a generator/async-flagged prototype never runs inline — its
// frame is wrapped into a suspended Generator Value and returned
// immediately (§4.4's "Call on a closure flagged generator/async produces
// a Generator Value without running the body").
func (vm *VM) invoke(fn *values.Function, args []*values.Value) (*values.Value, error) {
	if fn.IsBuiltin {
		if fn.BuiltinID == registry.YieldBuiltinID {
			return nil, errors.New("vm: yield invoked outside a generator frame")
		}
		return vm.reg.Dispatch(vm.ctx(), fn.BuiltinID, args)
	}
	proto, ok := fn.Prototype.(*bytecode.Prototype)
	if !ok {
		return nil, errors.New("vm: closure has no prototype")
	}
	if len(args) > proto.ParamCount {
		return nil, newVMError(ErrArity, nil, opcodes.Call, 0, "%s: expected at most %d argument(s), got %d", proto.Name, proto.ParamCount, len(args))
	}
	frame := newFrame(proto, fn.Upvalues, args)
	if err := vm.fillParamDefaults(frame, len(args)); err != nil {
		return nil, err
	}
	if proto.IsGenerator || proto.IsAsync {
		return values.NewGenerator(frame), nil
	}
	floor := vm.stack.depth()
	if err := vm.stack.push(frame); err != nil {
		return nil, err
	}
	v, yielded, err := vm.run(floor)
	if yielded {
		return nil, errors.New("vm: yield escaped a non-generator frame")
	}
	return v, vm.stampTrace(err)
}

// run executes instructions of the single stack slot at index floor
// (vm.stack.frames[floor]) until it returns a value or an unrecoverable
// error. The slot's occupant may be replaced in place any number of times
// by TailCall; ordinary (non-tail) Call recurses into a nested run() via
// invoke, so only tail-recursive self-calls avoid growing the Go stack.
func (vm *VM) run(floor int) (*values.Value, bool, error) {
	for {
		if vm.stack.depth() <= floor {
			// Some enclosing frame's handler already claimed control; this
			// slot no longer exists. Propagate until the owning run() sees it.
			return nil, false, errStackCollapsed
		}
		frame := vm.stack.frames[floor]

		if frame.IP >= len(frame.Proto.Code) {
			vm.stack.frames = vm.stack.frames[:floor]
			return values.Null(), false, nil
		}
		if vm.prof != nil {
			vm.prof.onInstruction(frame)
		}

		instr := frame.Proto.Code[frame.IP]
		frame.IP++
		op := instr.Op()

		var err error
		switch op {
		case opcodes.LoadConst:
			_, a, bx := opcodes.DecodeABx(instr)
			if !frame.Proto.Pool.ValidConstant(int(bx)) {
				err = newVMError(ErrInvalidConstant, frame, op, frame.IP-1, "index %d", bx)
			} else {
				err = frame.set(a, frame.Proto.Pool.Constant(int(bx)))
			}
		case opcodes.LoadNull:
			_, a, _, _ := opcodes.DecodeABC(instr)
			err = frame.set(a, values.Null())
		case opcodes.LoadTrue:
			_, a, _, _ := opcodes.DecodeABC(instr)
			err = frame.set(a, values.Boolean(true))
		case opcodes.LoadFalse:
			_, a, _, _ := opcodes.DecodeABC(instr)
			err = frame.set(a, values.Boolean(false))
		case opcodes.LoadImmI8:
			_, a, bx := opcodes.DecodeABx(instr)
			err = frame.set(a, values.Number(float64(int8(bx))))
		case opcodes.Move:
			_, a, b, _ := opcodes.DecodeABC(instr)
			var v *values.Value
			if v, err = frame.get(b); err == nil {
				err = frame.set(a, v)
			}

		case opcodes.GetUpvalue:
			_, a, b, _ := opcodes.DecodeABC(instr)
			if int(b) >= len(frame.Upvalues) {
				err = newVMError(ErrInvalidRegister, frame, op, frame.IP-1, "upvalue %d", b)
			} else {
				err = frame.set(a, frame.Upvalues[b].Value)
			}
		case opcodes.SetUpvalue:
			_, a, b, _ := opcodes.DecodeABC(instr)
			var v *values.Value
			if v, err = frame.get(a); err == nil {
				if int(b) >= len(frame.Upvalues) {
					err = newVMError(ErrInvalidRegister, frame, op, frame.IP-1, "upvalue %d", b)
				} else {
					frame.Upvalues[b].Value = v
				}
			}

		case opcodes.Add, opcodes.Sub, opcodes.Mul, opcodes.Div, opcodes.Mod, opcodes.Pow, opcodes.Neg:
			err = vm.execArith(frame, op, instr)
		case opcodes.Eq, opcodes.Ne, opcodes.Lt, opcodes.Le, opcodes.Gt, opcodes.Ge:
			err = vm.execCompare(frame, op, instr)

		case opcodes.Jump:
			_, _, bx := opcodes.DecodeABx(instr)
			frame.IP += int(opcodes.SignedBx(bx))
		case opcodes.JumpIfTrue:
			_, a, bx := opcodes.DecodeABx(instr)
			var v *values.Value
			if v, err = frame.get(a); err == nil && v.IsTruthy() {
				frame.IP += int(opcodes.SignedBx(bx))
			}
		case opcodes.JumpIfFalse:
			_, a, bx := opcodes.DecodeABx(instr)
			var v *values.Value
			if v, err = frame.get(a); err == nil && !v.IsTruthy() {
				frame.IP += int(opcodes.SignedBx(bx))
			}
		case opcodes.JumpIfNull:
			_, a, bx := opcodes.DecodeABx(instr)
			var v *values.Value
			if v, err = frame.get(a); err == nil && v.Deref().IsNull() {
				frame.IP += int(opcodes.SignedBx(bx))
			}

		case opcodes.Closure:
			_, a, bx := opcodes.DecodeABx(instr)
			err = vm.execClosure(frame, a, int(bx))

		case opcodes.Call:
			_, a, b, c := opcodes.DecodeABC(instr)
			err = vm.execCall(frame, a, b, c)
		case opcodes.TailCall:
			_, _, b, c := opcodes.DecodeABC(instr)
			var next *CallFrame
			if next, err = vm.prepareTailCall(frame, b, c); err == nil {
				vm.stack.frames[floor] = next
			}
		case opcodes.Return:
			_, a, _, _ := opcodes.DecodeABC(instr)
			v, gerr := frame.get(a)
			if gerr != nil {
				return nil, false, gerr
			}
			vm.stack.frames = vm.stack.frames[:floor]
			return v, false, nil
		case opcodes.ReturnNull:
			vm.stack.frames = vm.stack.frames[:floor]
			return values.Null(), false, nil

		case opcodes.NewVector, opcodes.VecPush, opcodes.VecGet, opcodes.VecSet, opcodes.VecSlice,
			opcodes.NewRecord, opcodes.GetField, opcodes.SetField:
			err = vm.execAggregate(frame, op, instr)

		case opcodes.MatchType, opcodes.MatchLit, opcodes.DestructureVec, opcodes.DestructureRec:
			err = vm.execPattern(frame, op, instr)

		case opcodes.IterInit:
			_, a, b, _ := opcodes.DecodeABC(instr)
			err = vm.execIterInit(frame, a, b)
		case opcodes.IterNext:
			_, a, b, _ := opcodes.DecodeABC(instr)
			err = vm.execIterNext(frame, a, b)
		case opcodes.BuildInit:
			_, a, b, _ := opcodes.DecodeABC(instr)
			err = vm.execBuildInit(frame, a, b)
		case opcodes.BuildPush:
			_, a, b, _ := opcodes.DecodeABC(instr)
			err = vm.execBuildPush(frame, a, b)
		case opcodes.BuildEnd:
			_, a, b, _ := opcodes.DecodeABC(instr)
			err = vm.execBuildEnd(frame, a, b)

		case opcodes.PushHandler:
			_, a, bx := opcodes.DecodeABx(instr)
			catchIP := frame.IP + int(opcodes.SignedBx(bx))
			frame.Handlers = append(frame.Handlers, Handler{CatchIP: catchIP, ErrorReg: a})
		case opcodes.PopHandler:
			if len(frame.Handlers) > 0 {
				frame.Handlers = frame.Handlers[:len(frame.Handlers)-1]
			}
		case opcodes.Throw:
			_, a, _, _ := opcodes.DecodeABC(instr)
			v, gerr := frame.get(a)
			if gerr != nil {
				return nil, false, gerr
			}
			err = vm.doThrow(v)

		case opcodes.CallBuiltin:
			_, a, b, c := opcodes.DecodeABC(instr)
			err = vm.execCallBuiltin(frame, a, b, c)

		case opcodes.AddImm:
			_, a, bx := opcodes.DecodeABx(instr)
			var v *values.Value
			if v, err = frame.get(a); err == nil {
				n, ok := v.Deref().ToFloat()
				if !ok {
					err = typeError(frame, op, frame.IP-1, "Number", v)
				} else {
					err = frame.set(a, values.Number(n+float64(int8(bx))))
				}
			}
		case opcodes.JumpIfEqConst:
			_, a, _, c := opcodes.DecodeABC(instr)
			constWord := frame.Proto.Code[frame.IP]
			frame.IP++
			_, _, bx := opcodes.DecodeABx(constWord)
			var v *values.Value
			if v, err = frame.get(a); err == nil {
				if frame.Proto.Pool.ValidConstant(int(bx)) && values.Equal(v, frame.Proto.Pool.Constant(int(bx))) {
					frame.IP += int(int8(c))
				}
			}

		default:
			err = newVMError(ErrInvalidOpcode, frame, op, frame.IP-1, "opcode %s", op)
		}

		if err != nil {
			if ys, ok := err.(*yieldSignal); ok {
				return ys.value, true, nil
			}
			if err == errStackCollapsed {
				if vm.stack.depth() > floor {
					continue
				}
				return nil, false, err
			}
			return nil, false, err
		}
	}
}

// doThrow searches vm.stack top-down for the nearest frame with an active
// handler, truncating everything above it and resuming there; if no
// frame has one, it empties the stack and converts v into the terminal
// UncaughtException VmError.
func (vm *VM) doThrow(v *values.Value) error {
	for i := len(vm.stack.frames) - 1; i >= 0; i-- {
		f := vm.stack.frames[i]
		if len(f.Handlers) == 0 {
			continue
		}
		h := f.Handlers[len(f.Handlers)-1]
		f.Handlers = f.Handlers[:len(f.Handlers)-1]
		f.IP = h.CatchIP
		if err := f.set(h.ErrorReg, v); err != nil {
			return err
		}
		vm.stack.frames = vm.stack.frames[:i+1]
		return errStackCollapsed
	}
	vm.stack.frames = vm.stack.frames[:0]
	return uncaughtException(v)
}

// execCall resolves R[b] to a Function and invokes it with args R[b+1 ..
// b+1+c), writing the result into R[a].
func (vm *VM) execCall(frame *CallFrame, a, b, c uint8) error {
	calleeVal, err := frame.get(b)
	if err != nil {
		return err
	}
	calleeVal = calleeVal.Deref()
	fn, ok := calleeVal.ToFunction()
	if !ok {
		return typeError(frame, opcodes.Call, frame.IP-1, "Function", calleeVal)
	}
	args := make([]*values.Value, c)
	for i := 0; i < int(c); i++ {
		v, err := frame.get(b + 1 + uint8(i))
		if err != nil {
			return err
		}
		args[i] = v
	}
	result, err := vm.invoke(fn, args)
	if err != nil {
		return err
	}
	return frame.set(a, result)
}

// prepareTailCall resolves R[b] to a Function (always the enclosing
// closure itself, `rec`, per the compiler's conservative tail-call
// promotion) and builds a replacement frame in place of the current one.
func (vm *VM) prepareTailCall(frame *CallFrame, b, c uint8) (*CallFrame, error) {
	calleeVal, err := frame.get(b)
	if err != nil {
		return nil, err
	}
	calleeVal = calleeVal.Deref()
	fn, ok := calleeVal.ToFunction()
	if !ok {
		return nil, typeError(frame, opcodes.TailCall, frame.IP-1, "Function", calleeVal)
	}
	if fn.IsBuiltin {
		return nil, newVMError(ErrInvalidFunction, frame, opcodes.TailCall, frame.IP-1, "tail call target is a built-in")
	}
	proto, ok := fn.Prototype.(*bytecode.Prototype)
	if !ok {
		return nil, newVMError(ErrInvalidFunction, frame, opcodes.TailCall, frame.IP-1, "closure has no prototype")
	}
	args := make([]*values.Value, c)
	for i := 0; i < int(c); i++ {
		v, err := frame.get(b + 1 + uint8(i))
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	if int(c) > proto.ParamCount {
		return nil, newVMError(ErrArity, frame, opcodes.TailCall, frame.IP-1, "%s: expected at most %d argument(s), got %d", proto.Name, proto.ParamCount, c)
	}
	next := newFrame(proto, fn.Upvalues, args)
	if err := vm.fillParamDefaults(next, int(c)); err != nil {
		return nil, err
	}
	return next, nil
}

// execCallBuiltin special-cases the reserved YieldBuiltinID (see
// generator.go) and otherwise dispatches through the registry, per the
// ground-truth register layout the compiler actually emits: args occupy
// R[a .. a+c) and the result overwrites R[a].
func (vm *VM) execCallBuiltin(frame *CallFrame, a, b, c uint8) error {
	if int(b) == registry.YieldBuiltinID {
		return vm.execYield(frame, a, c)
	}
	args := make([]*values.Value, c)
	for i := 0; i < int(c); i++ {
		v, err := frame.get(a + uint8(i))
		if err != nil {
			return err
		}
		args[i] = v
	}
	result, err := vm.reg.Dispatch(vm.ctx(), int(b), args)
	if err != nil {
		return err
	}
	return frame.set(a, result)
}

// ctx returns the BuiltinCallContext bound to this VM, used by every
// registry dispatch.
func (vm *VM) ctx() registry.BuiltinCallContext { return builtinContext{vm} }

// builtinContext is the small adapter handing built-in implementations
// re-entrant access back into the VM, deliberately tiny to avoid a
// registry<->vm import cycle.
type builtinContext struct{ vm *VM }

func (b builtinContext) CallValue(fn *values.Value, args []*values.Value) (*values.Value, error) {
	return b.vm.CallValue(fn, args)
}
func (b builtinContext) Throw(v *values.Value) error { return b.vm.doThrow(v) }
func (b builtinContext) Registry() *registry.Registry { return b.vm.reg }
