package bytecode

// Module is the compiler's top-level output: a named entry prototype plus
// the constant pool it and every nested prototype share, and an export
// table mapping exported names to the register (in main's frame) that
// holds their value at the end of module execution.
type Module struct {
	Name    string
	Main    *Prototype
	Pool    *ConstantPool
	Exports map[string]ExportBinding
}

// ExportBinding records where an exported name's value lives once the
// module's top-level code has finished running.
type ExportBinding struct {
	Register  uint8
	Alias     string // re-export name (export { X as Z }); equals the key if absent
	TypeAlias bool   // true if this export re-exports a type alias, not a value
}

// NewModule wires a fresh module around the given entry prototype.
func NewModule(name string, main *Prototype, pool *ConstantPool) *Module {
	return &Module{
		Name:    name,
		Main:    main,
		Pool:    pool,
		Exports: make(map[string]ExportBinding),
	}
}
