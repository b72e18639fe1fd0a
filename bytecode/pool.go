// Package bytecode implements the compiled-artifact layer between the
// compiler and the VM: the constant pool, function prototypes, and the
// top-level Module, plus a disassembler for debugging.
package bytecode

import (
	"errors"
	"fmt"

	"github.com/achronyme/achronyme-core-sub001/values"
)

// Capacity limits from the data model: exceeding either is a CompileError
// raised by the caller (the compiler), not by the pool itself — the pool
// only reports when a caller is about to cross the line.
const (
	MaxConstants = 65536
	MaxStrings   = 256
)

var (
	ErrTooManyConstants = errors.New("constant pool exceeds 65536 entries")
	ErrTooManyStrings   = errors.New("constant pool exceeds 256 interned strings")
)

// ConstantPool is the indexed, interned store of literal Values and
// strings shared by a module and every prototype nested within it.
// Strings are deduplicated by content; insertion is idempotent.
type ConstantPool struct {
	constants []*values.Value
	strings   []string
	stringIDs map[string]int
}

// NewConstantPool returns an empty pool.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{
		stringIDs: make(map[string]int),
	}
}

// AddConstant interns a non-string literal Value and returns its index.
// Unlike AddString, non-string constants are not deduplicated by content —
// scalar literals are cheap enough that re-adding is harmless, and
// deduplicating Vector/Record constants would violate their shared-mutable
// identity semantics.
func (p *ConstantPool) AddConstant(v *values.Value) (int, error) {
	if len(p.constants) >= MaxConstants {
		return 0, ErrTooManyConstants
	}
	p.constants = append(p.constants, v)
	return len(p.constants) - 1, nil
}

// AddString interns a string by content, returning the same id for
// identical content on repeated calls (idempotent, per the data model's
// testable invariant).
func (p *ConstantPool) AddString(s string) (int, error) {
	if id, ok := p.stringIDs[s]; ok {
		return id, nil
	}
	if len(p.strings) >= MaxStrings {
		return 0, ErrTooManyStrings
	}
	id := len(p.strings)
	p.strings = append(p.strings, s)
	p.stringIDs[s] = id
	return id, nil
}

// Constant fetches a constant by index, panicking on out-of-range access
// since a well-formed module (the invariant the compiler guarantees) never
// emits an out-of-range LoadConst; the VM converts an out-of-range index
// observed at runtime into a VmError before calling this.
func (p *ConstantPool) Constant(idx int) *values.Value {
	return p.constants[idx]
}

// ConstantLen reports the number of interned constants.
func (p *ConstantPool) ConstantLen() int { return len(p.constants) }

// StringAt fetches an interned string by id.
func (p *ConstantPool) StringAt(id int) string { return p.strings[id] }

// ValidConstant reports whether idx addresses a live constant.
func (p *ConstantPool) ValidConstant(idx int) bool {
	return idx >= 0 && idx < len(p.constants)
}

// ValidString reports whether id addresses a live interned string.
func (p *ConstantPool) ValidString(id int) bool {
	return id >= 0 && id < len(p.strings)
}

func (p *ConstantPool) String() string {
	return fmt.Sprintf("ConstantPool{constants=%d, strings=%d}", len(p.constants), len(p.strings))
}
