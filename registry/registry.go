// Package registry implements Achronyme's built-in registry: the
// name -> (id, arity, fn_ptr) table the compiler consults to resolve
// CallBuiltin operands at compile time, and the VM consults to dispatch
// them at run time.
package registry

import (
	"errors"
	"sync"

	"github.com/achronyme/achronyme-core-sub001/values"
)

// ErrUnknownBuiltinID is returned by Dispatch when the VM's CallBuiltin
// operand does not address a registered built-in — a well-formed module
// never emits one (the compiler resolves ids at compile time), so this
// only fires on a corrupted or hand-assembled bytecode stream.
var ErrUnknownBuiltinID = errors.New("registry: unknown builtin id")

// BuiltinCallContext is the minimal surface a built-in implementation
// needs back into the VM, mirroring the teacher's BuiltinCallContext
// shape kept deliberately small to avoid a registry<->vm import cycle.
type BuiltinCallContext interface {
	// CallValue re-enters the VM to invoke a Function value (closure or
	// builtin) with args, used by higher-order built-ins like map/filter.
	CallValue(fn *values.Value, args []*values.Value) (*values.Value, error)
	// Throw raises a catchable user-level error from within a built-in.
	Throw(v *values.Value) error
	// Registry exposes the active registry for built-ins that need to
	// inspect or re-dispatch by name (rare; mostly debug/reflection builtins).
	Registry() *Registry
}

// BuiltinImplementation is the signature every registered built-in must
// satisfy.
type BuiltinImplementation func(ctx BuiltinCallContext, args []*values.Value) (*values.Value, error)

// entry is one registered built-in.
type entry struct {
	ID   int
	Name string
	// Arity is the expected argument count; -1 means variadic.
	Arity int
	Impl  BuiltinImplementation
}

// Registry is the thread-safe name/id -> built-in table.
type Registry struct {
	mu        sync.RWMutex
	byName    map[string]*entry
	byID      []*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*entry)}
}

// Register assigns the next sequential id to name and records impl. It
// panics on a duplicate name, since duplicate registration is always a
// programming error in an init()-time call graph (never a user-triggerable
// condition).
func (r *Registry) Register(name string, arity int, impl BuiltinImplementation) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		panic("registry: duplicate built-in name " + name)
	}
	id := len(r.byID)
	e := &entry{ID: id, Name: name, Arity: arity, Impl: impl}
	r.byName[name] = e
	r.byID = append(r.byID, e)
	return id
}

// Lookup resolves a built-in by name, used by the compiler to resolve a
// CallBuiltin operand.
func (r *Registry) Lookup(name string) (id int, arity int, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	if !ok {
		return 0, 0, false
	}
	return e.ID, e.Arity, true
}

// Dispatch invokes the built-in at id, used by the VM's CallBuiltin
// handler.
func (r *Registry) Dispatch(ctx BuiltinCallContext, id int, args []*values.Value) (*values.Value, error) {
	r.mu.RLock()
	if id < 0 || id >= len(r.byID) {
		r.mu.RUnlock()
		return nil, ErrUnknownBuiltinID
	}
	e := r.byID[id]
	r.mu.RUnlock()
	return e.Impl(ctx, args)
}

// NameOf returns the registered name for id.
func (r *Registry) NameOf(id int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || id >= len(r.byID) {
		return "", false
	}
	return r.byID[id].Name, true
}

// Default is the process-wide registry populated by reserved internal
// built-ins here and by the builtins package's init() functions. The
// compiler's LookupCompileTime and the VM's default construction both
// consult it, so CallBuiltin ids stay consistent between compile time and
// run time as long as the built-ins package is linked in (imported,
// possibly blank) before compilation.
var Default = NewRegistry()

// Reserved internal builtin ids. These are registered first (in this
// init(), before any user-facing builtins.* package runs its own init())
// so their ids are stable at 0 through 6 regardless of registration order
// elsewhere.
const (
	yieldName         = "__yield"
	makeMutableRefName = "__make_mutable_ref"
)

var (
	// YieldBuiltinID is the reserved CallBuiltin id the compiler emits for
	// `yield expr` inside a generator body; the VM intercepts this id
	// specially (see vm/generator.go) rather than treating it as an
	// ordinary built-in dispatch.
	YieldBuiltinID int
	// MakeMutableRefBuiltinID is the reserved CallBuiltin id the compiler
	// emits to box a `mut` binding's initializer into a MutableRef cell.
	MakeMutableRefBuiltinID int
	// DerefBuiltinID unwraps a MutableRef to its current value. Every
	// `mut` binding is boxed uniformly at creation (whether or not a
	// closure ever captures it), so every read of a local mutable binding
	// passes through this built-in. Upvalue reads do not: GetUpvalue
	// already yields the cell's current value.
	DerefBuiltinID int
	// SetMutableRefBuiltinID writes a new value into a MutableRef cell in
	// place (args[0]=ref, args[1]=newValue) and returns the new value, so
	// compound/plain assignment to a `mut` binding can chain.
	SetMutableRefBuiltinID int
	// MakeRangeBuiltinID constructs a runtime Range value (args: start,
	// end, inclusive) for RangeExpr with non-literal endpoints, since no
	// dedicated opcode builds a Range.
	MakeRangeBuiltinID int
	// MakeEdgeBuiltinID constructs a runtime Edge value (args: from, to,
	// directed, properties-record) for EdgeLiteral, since no dedicated
	// opcode builds an Edge.
	MakeEdgeBuiltinID int
	// ToDisplayStringBuiltinID coerces any Value to its unquoted display
	// string, used by interpolated-string lowering to stringify embedded
	// expressions before pushing them into a String builder.
	ToDisplayStringBuiltinID int
)

func init() {
	YieldBuiltinID = Default.Register(yieldName, 1, func(ctx BuiltinCallContext, args []*values.Value) (*values.Value, error) {
		// Never actually dispatched: the VM special-cases YieldBuiltinID
		// before reaching ordinary CallBuiltin dispatch. Present so
		// Default.Lookup/NameOf still resolve it.
		return args[0], nil
	})
	MakeMutableRefBuiltinID = Default.Register(makeMutableRefName, 1, func(ctx BuiltinCallContext, args []*values.Value) (*values.Value, error) {
		return values.NewMutableRef(args[0]), nil
	})
	DerefBuiltinID = Default.Register("__deref", 1, func(ctx BuiltinCallContext, args []*values.Value) (*values.Value, error) {
		return args[0].Deref(), nil
	})
	SetMutableRefBuiltinID = Default.Register("__set_mutable_ref", 2, func(ctx BuiltinCallContext, args []*values.Value) (*values.Value, error) {
		args[0].Set(args[1])
		return args[1], nil
	})
	MakeRangeBuiltinID = Default.Register("__make_range", 3, func(ctx BuiltinCallContext, args []*values.Value) (*values.Value, error) {
		start, _ := args[0].ToFloat()
		end, _ := args[1].ToFloat()
		return values.NewRange(start, end, args[2].IsTruthy()), nil
	})
	MakeEdgeBuiltinID = Default.Register("__make_edge", 4, func(ctx BuiltinCallContext, args []*values.Value) (*values.Value, error) {
		edge := values.NewEdge(args[0], args[1], args[2].IsTruthy())
		if props, ok := args[3].ToRecord(); ok {
			e, _ := edge.Data.(*values.Edge)
			e.Properties = props
		}
		return edge, nil
	})
	ToDisplayStringBuiltinID = Default.Register("__to_display_string", 1, func(ctx BuiltinCallContext, args []*values.Value) (*values.Value, error) {
		return values.String(values.Display(args[0])), nil
	})
}

// LookupCompileTime resolves name against Default, for the compiler.
func LookupCompileTime(name string) (id int, arity int, ok bool) {
	return Default.Lookup(name)
}
