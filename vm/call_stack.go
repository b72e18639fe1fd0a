package vm

import (
	"github.com/achronyme/achronyme-core-sub001/bytecode"
	"github.com/achronyme/achronyme-core-sub001/values"
)

// MaxCallDepth is the fixed frame-depth ceiling from the data model's
// "Stack limits" clause; exceeding it raises ErrStackOverflow.
const MaxCallDepth = 10000

// Handler is one entry of a frame's exception-handler stack, installed by
// PushHandler and consulted by Throw.
type Handler struct {
	CatchIP  int
	ErrorReg uint8
}

// CallFrame is one activation of a Prototype: its register window, the
// upvalue cells it closed over, the instruction pointer, and the
// currently-installed exception handlers. Unlike the teacher's PHP frame,
// there is no GlobalSlots bookkeeping — Achronyme has no mutable-by-name
// global namespace; module-level bindings are just registers in the
// top-level frame, resolved the same way any other local is.
type CallFrame struct {
	Proto    *bytecode.Prototype
	Regs     []*values.Value
	Upvalues []*values.MutableRef
	IP       int
	Handlers []Handler

	// Name labels the frame for error context and disassembly; it mirrors
	// Proto.Name but survives independently of the prototype for frames
	// built for param-default and generate-block sub-prototypes.
	Name string

	// IsGenerator marks a frame built for a generator/async prototype so the
	// VM's Call handler can recognize it should be suspended rather than
	// run inline (see generator.go).
	IsGenerator bool
}

// fillParamDefaults evaluates proto.ParamDefaults for every parameter index
// at or beyond argc (an omitted trailing argument), running each
// zero-parameter default sub-prototype against frame's own registers and
// upvalues (so a default expression may reference an earlier parameter or
// an enclosing capture, per §4.4) and storing its result into the
// parameter's register. Defaults fill left to right so a later default may
// in turn observe an earlier parameter's freshly-filled value.
func (vm *VM) fillParamDefaults(frame *CallFrame, argc int) error {
	for i, defIdx := range frame.Proto.ParamDefaults {
		if defIdx < 0 || i < argc {
			continue
		}
		defProto := frame.Proto.Functions[defIdx]
		cells, err := buildUpvalueCells(frame, defProto.Upvalues)
		if err != nil {
			return err
		}
		defFrame := newFrame(defProto, cells, nil)
		floor := vm.stack.depth()
		if err := vm.stack.push(defFrame); err != nil {
			return err
		}
		v, yielded, err := vm.run(floor)
		if yielded {
			return newVMError(ErrInvalidFunction, frame, 0, frame.IP, "yield in a parameter-default expression")
		}
		if err != nil {
			return err
		}
		if err := frame.set(uint8(i), v); err != nil {
			return err
		}
	}
	return nil
}

// newFrame allocates a fresh frame over proto, filling register 0..argc-1
// from args (missing trailing args left Null so fillParamDefaults can fill
// them in) and the remaining registers with Null.
func newFrame(proto *bytecode.Prototype, upvalues []*values.MutableRef, args []*values.Value) *CallFrame {
	n := proto.EffectiveRegisterCount()
	if n < proto.ParamCount {
		n = proto.ParamCount
	}
	regs := make([]*values.Value, n)
	for i := range regs {
		regs[i] = values.Null()
	}
	for i := 0; i < proto.ParamCount && i < len(args); i++ {
		regs[i] = args[i]
	}
	return &CallFrame{
		Proto:       proto,
		Regs:        regs,
		Upvalues:    upvalues,
		Name:        proto.Name,
		IsGenerator: proto.IsGenerator,
	}
}

// get/set provide bounds-checked register access, converting an
// out-of-range index into ErrInvalidRegister instead of a Go panic — a
// well-formed module never emits one, but a VmError still needs to be
// produced for a corrupted or hand-assembled bytecode stream.
func (f *CallFrame) get(r uint8) (*values.Value, error) {
	if int(r) >= len(f.Regs) {
		return nil, &VMError{Type: ErrInvalidRegister, Message: "register out of range", Frame: f, IP: f.IP}
	}
	return f.Regs[r], nil
}

func (f *CallFrame) set(r uint8, v *values.Value) error {
	if int(r) >= len(f.Regs) {
		return &VMError{Type: ErrInvalidRegister, Message: "register out of range", Frame: f, IP: f.IP}
	}
	f.Regs[r] = v
	return nil
}

// CallStack is the VM's explicit frame stack, used instead of Go-stack
// recursion for ordinary Call so TailCall can replace the top frame in
// place without growing it (see vm.go's run loop).
type CallStack struct {
	frames []*CallFrame
}

func newCallStack() *CallStack {
	return &CallStack{frames: make([]*CallFrame, 0, 64)}
}

func (cs *CallStack) push(f *CallFrame) error {
	if len(cs.frames) >= MaxCallDepth {
		return &VMError{Type: ErrStackOverflow, Message: "max call depth exceeded", Frame: f}
	}
	cs.frames = append(cs.frames, f)
	return nil
}

func (cs *CallStack) pop() *CallFrame {
	if len(cs.frames) == 0 {
		return nil
	}
	idx := len(cs.frames) - 1
	f := cs.frames[idx]
	cs.frames = cs.frames[:idx]
	return f
}

func (cs *CallStack) top() *CallFrame {
	if len(cs.frames) == 0 {
		return nil
	}
	return cs.frames[len(cs.frames)-1]
}

func (cs *CallStack) depth() int { return len(cs.frames) }
