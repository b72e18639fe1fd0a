package vm

import (
	"errors"
	"fmt"

	"github.com/achronyme/achronyme-core-sub001/opcodes"
	"github.com/achronyme/achronyme-core-sub001/values"
)

// Pre-defined VM error types, one per VmError variant from the data model.
var (
	ErrStackOverflow     = errors.New("stack overflow")
	ErrStackUnderflow    = errors.New("stack underflow")
	ErrInvalidRegister   = errors.New("invalid register")
	ErrInvalidConstant   = errors.New("invalid constant")
	ErrInvalidFunction   = errors.New("invalid function")
	ErrInvalidOpcode     = errors.New("invalid opcode")
	ErrTypeMismatch      = errors.New("type error")
	ErrDivisionByZero    = errors.New("division by zero")
	ErrModuloByZero      = errors.New("modulo by zero")
	ErrInvalidGenerator  = errors.New("invalid generator")
	ErrGeneratorExhausted = errors.New("generator exhausted")
	ErrUncaughtException = errors.New("uncaught exception")
	ErrRuntime           = errors.New("runtime error")
	ErrArity             = errors.New("wrong number of arguments")
)

// VMError wraps one of the sentinel errors above with the frame/opcode/IP
// context active when it was raised.
type VMError struct {
	Type    error
	Message string
	Context string
	Frame   *CallFrame
	Opcode  opcodes.Opcode
	IP      int

	// Exception carries the thrown Value for ErrUncaughtException; nil for
	// every other Type.
	Exception *values.Value

	// TraceID is stamped by Execute/invoke from the attached Profiler, if
	// any, so a host can correlate an uncaught-exception report with the
	// profiler trace that produced it.
	TraceID string
}

func (e *VMError) Error() string {
	prefix := "vm error"
	if e.TraceID != "" {
		prefix = fmt.Sprintf("vm error [%s]", e.TraceID)
	}
	if e.Context != "" {
		return fmt.Sprintf("%s in %s: %s: %s", prefix, e.Context, e.Type.Error(), e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", prefix, e.Type.Error(), e.Message)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Type.Error())
}

func (e *VMError) Unwrap() error { return e.Type }

func (e *VMError) Is(target error) bool { return errors.Is(e.Type, target) }

// newVMError builds a VMError stamped with the current frame/opcode/ip, the
// shape every opcode handler in vm.go uses to report a failure.
func newVMError(base error, frame *CallFrame, op opcodes.Opcode, ip int, format string, args ...interface{}) *VMError {
	return &VMError{
		Type:    base,
		Message: fmt.Sprintf(format, args...),
		Frame:   frame,
		Opcode:  op,
		IP:      ip,
	}
}

// TypeError builds the {op, expected, got} shape the data model requires
// for ErrTypeMismatch.
func typeError(frame *CallFrame, op opcodes.Opcode, ip int, expected string, got *values.Value) *VMError {
	return newVMError(ErrTypeMismatch, frame, op, ip, "expected %s, got %s", expected, got.TypeName())
}

// uncaughtException converts a Throw that unwound every frame into the
// terminal VmError the host receives.
func uncaughtException(v *values.Value) *VMError {
	return &VMError{Type: ErrUncaughtException, Message: values.Inspect(v), Exception: v}
}
