package compiler

import "github.com/achronyme/achronyme-core-sub001/bytecode"

// registerAllocator is a stack-like allocator: allocate() returns the next
// free index, allocate_many(n) returns a contiguous block, free(i)
// releases the top of the stack. It tracks a high-water mark that becomes
// the prototype's register_count.
type registerAllocator struct {
	next     int
	highWater int
}

func newRegisterAllocator() *registerAllocator {
	return &registerAllocator{}
}

// allocate returns the next free register, erroring past 256.
func (r *registerAllocator) allocate() (uint8, error) {
	if r.next >= 256 {
		return 0, ErrTooManyRegisters
	}
	idx := r.next
	r.next++
	if r.next > r.highWater {
		r.highWater = r.next
	}
	return uint8(idx), nil
}

// allocateMany returns the first register of a contiguous block of n.
func (r *registerAllocator) allocateMany(n int) (uint8, error) {
	if r.next+n > 256 {
		return 0, ErrTooManyRegisters
	}
	idx := r.next
	r.next += n
	if r.next > r.highWater {
		r.highWater = r.next
	}
	return uint8(idx), nil
}

// free releases temporaries back to (at most) the given mark. Named
// bindings never get freed this way — they stay pinned until scope exit,
// which rewinds r.next directly.
func (r *registerAllocator) freeTo(mark int) {
	if mark < r.next {
		r.next = mark
	}
}

func (r *registerAllocator) mark() int { return r.next }

// registerCount returns the prototype register_count value: the
// allocator's high-water mark, stored as is (no "255 means 256" sentinel
// encoding is applied here).
func (r *registerAllocator) registerCount() int { return r.highWater }

// symbolInfo is one lexical binding: its register, mutability, and an
// optional type annotation carried for future type-checking collaborators
// (the compiler itself does not enforce types beyond MatchType lowering).
type symbolInfo struct {
	Register uint8
	Mutable  bool
	Type     string
}

// lexicalScope is one `push_scope`/`pop_scope` level.
type lexicalScope struct {
	symbols map[string]symbolInfo
	parent  *lexicalScope
}

func newLexicalScope(parent *lexicalScope) *lexicalScope {
	return &lexicalScope{symbols: make(map[string]symbolInfo), parent: parent}
}

func (s *lexicalScope) define(name string, reg uint8, mutable bool, typ string) {
	s.symbols[name] = symbolInfo{Register: reg, Mutable: mutable, Type: typ}
}

// lookupLocal searches this scope chain only (no parent-compiler upvalue
// resolution); returns ok=false if name is unbound in the current function.
func (s *lexicalScope) lookupLocal(name string) (symbolInfo, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if info, ok := sc.symbols[name]; ok {
			return info, true
		}
	}
	return symbolInfo{}, false
}

// loopContext is one entry of the loop-context stack: continueIP is the
// jump target for `continue`; breakPatches accumulates the instruction
// indices of `break`-emitted Jump words awaiting patching once the loop's
// end address is known.
type loopContext struct {
	continueIP    int
	breakPatches  []int
}

// typeAliasRegistry records `type T = …` aliases. Aliases do not flow to
// runtime checks except where the compiler lowers a type pattern into
// MatchType.
type typeAliasRegistry struct {
	aliases map[string]string
}

func newTypeAliasRegistry() *typeAliasRegistry {
	return &typeAliasRegistry{aliases: make(map[string]string)}
}

func (t *typeAliasRegistry) define(name, def string) { t.aliases[name] = def }
func (t *typeAliasRegistry) resolve(name string) (string, bool) {
	def, ok := t.aliases[name]
	return def, ok
}

// exportTable records `export { X, Y as Z }` bindings, resolved to
// registers once compilation of the module body completes.
type exportTable struct {
	entries map[string]bytecode.ExportBinding
}

func newExportTable() *exportTable {
	return &exportTable{entries: make(map[string]bytecode.ExportBinding)}
}
