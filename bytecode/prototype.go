package bytecode

import "github.com/achronyme/achronyme-core-sub001/opcodes"

// UpvalueDescriptor tells a closure's Closure opcode where to find a
// captured cell: either directly in the parent frame's register window
// (FromParentLocal) or transitively through the parent's own upvalue
// array (FromParentUpvalue).
type UpvalueDescriptor struct {
	FromParentLocal bool
	Index           uint8 // register index (if FromParentLocal) or upvalue index
	Mutable         bool

	// Self marks upvalue slot 0 of a recursive function's `rec`
	// self-reference. The VM does not resolve it from the parent frame at
	// all: per the two-step cycle-breaking protocol, it allocates the cell
	// defaulted to Null, constructs the Closure Value, then overwrites the
	// cell in place with that same Value.
	Self bool
}

// LineEntry maps a code offset to a source line, for disassembly and
// error reporting. Sparse: a prototype may omit debug info entirely.
type LineEntry struct {
	CodeOffset int
	Line       int
}

// Prototype is an immutable compiled function: code buffer, upvalue
// descriptors, nested prototypes, parameter/register counts, optional
// per-parameter default-value prototype indices, and generator/async
// flags. Once emitted by the compiler it is never mutated; it may be
// shared by many closures.
type Prototype struct {
	Name string

	Code []opcodes.Instruction

	ParamCount    int // <= 256
	RegisterCount int // <= 256; 255 means exactly 256, per the data model

	Upvalues []UpvalueDescriptor

	// Functions holds nested prototypes referenced by Closure's Bx operand.
	Functions []*Prototype

	// ParamDefaults[i], if non-negative, indexes into Functions: the
	// zero-parameter prototype invoked when parameter i is not supplied.
	ParamDefaults []int

	IsGenerator bool
	IsAsync     bool

	Lines []LineEntry

	Pool *ConstantPool
}

// EffectiveRegisterCount returns the real register window size, honoring
// the sentinel-255-means-256 convention from the data model.
func (p *Prototype) EffectiveRegisterCount() int {
	if p.RegisterCount == 255 {
		return 256
	}
	return p.RegisterCount
}

// LineFor returns the best-known source line for a code offset, or 0 if no
// debug info was recorded.
func (p *Prototype) LineFor(offset int) int {
	line := 0
	for _, e := range p.Lines {
		if e.CodeOffset > offset {
			break
		}
		line = e.Line
	}
	return line
}

// NewPrototype constructs an empty prototype sharing the given pool.
func NewPrototype(name string, pool *ConstantPool) *Prototype {
	return &Prototype{Name: name, Pool: pool}
}
