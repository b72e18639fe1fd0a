package vm

import (
	"github.com/achronyme/achronyme-core-sub001/values"
)

// yieldSignal is the internal control-flow error execYield raises to stop
// run() without popping the current frame, so resumeGenerator can put it
// back on the stack later and continue exactly where it left off. It must
// never reach a host — Execute/invoke/CallValue treat a yielded result as
// a runtime error, since `yield` can only legally appear inside a
// generator/async body per the compiler's YieldOutsideGenerator check.
type yieldSignal struct{ value *values.Value }

func (y *yieldSignal) Error() string { return "vm: generator yield" }

// execYield is CallBuiltin's special case for the reserved __yield id (see
// vm.go's execCallBuiltin): the sole argument is the yielded value; R[a]
// is zeroed to Null rather than holding a result, since resume_generator
// carries no send-value protocol back into the suspended expression.
func (vm *VM) execYield(frame *CallFrame, a, c uint8) error {
	if c < 1 {
		return newVMError(ErrRuntime, frame, 0, frame.IP-1, "yield requires one argument")
	}
	val, err := frame.get(a)
	if err != nil {
		return err
	}
	if err := frame.set(a, values.Null()); err != nil {
		return err
	}
	return &yieldSignal{value: val}
}

// resumeGenerator implements the host's resume_generator(gen) API and the
// IterGenerator iteration kind: it re-pushes the generator's suspended
// frame as the stack top, runs until the next yield or a true return, and
// reports {value, done} without ever leaving the frame on vm.stack
// between resumes (per §3.5/§4.4: "resumption re-pushes the frame;
// suspension pops-and-stores").
func (vm *VM) resumeGenerator(genVal *values.Value) (*values.Value, bool, error) {
	if genVal.Type != values.TypeGenerator {
		return nil, false, newVMError(ErrInvalidGenerator, nil, 0, 0, "resume target is not a Generator")
	}
	gen := genVal.Data.(*values.Generator)
	if gen.Done {
		return values.Null(), true, nil
	}
	frame, ok := gen.Frame.(*CallFrame)
	if !ok {
		return nil, false, newVMError(ErrInvalidGenerator, nil, 0, 0, "generator has no suspended frame")
	}

	floor := vm.stack.depth()
	if err := vm.stack.push(frame); err != nil {
		return nil, false, err
	}
	value, yielded, err := vm.run(floor)
	if err != nil {
		vm.stack.frames = vm.stack.frames[:floor]
		return nil, false, err
	}
	if yielded {
		vm.stack.frames = vm.stack.frames[:floor]
		gen.LastReturn = value
		return value, false, nil
	}
	gen.Done = true
	gen.LastReturn = value
	return value, true, nil
}

// ResumeGenerator is the exported host-facing equivalent of
// resume_generator(gen), usable by cmd/achronyme and builtins alike.
func (vm *VM) ResumeGenerator(gen *values.Value) (*values.Value, bool, error) {
	return vm.resumeGenerator(gen)
}
