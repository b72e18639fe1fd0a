package vm

import (
	"github.com/achronyme/achronyme-core-sub001/bytecode"
	"github.com/achronyme/achronyme-core-sub001/values"
)

// execClosure builds a closure over frame.Proto.Functions[idx], resolving
// each upvalue descriptor per the four capture rules the compiler's
// descriptor list distinguishes:
//
//   - Self: the recursive `rec` self-reference. A fresh cell is allocated
//     defaulted to Null, the Closure Value is built referencing it, and
//     then the cell is overwritten in place with that same Value —
//     breaking the construction cycle.
//   - FromParentLocal, Mutable: the parent register holds a boxed
//     TypeMutableRef Value (a `mut` binding). The SAME underlying
//     *MutableRef cell is reused, not rewrapped, so writes through
//     __set_mutable_ref are observed by every closure that captured it.
//   - FromParentLocal, not Mutable: the parent register holds a plain
//     value with no further writes expected; it is wrapped in a fresh
//     cell.
//   - !FromParentLocal: the descriptor transitively reaches through the
//     parent frame's own upvalue array; the same cell is reused.
func (vm *VM) execClosure(frame *CallFrame, a uint8, idx int) error {
	if idx < 0 || idx >= len(frame.Proto.Functions) {
		return newVMError(ErrInvalidFunction, frame, 0, frame.IP-1, "function index %d", idx)
	}
	child := frame.Proto.Functions[idx]

	cells, err := buildUpvalueCells(frame, child.Upvalues)
	if err != nil {
		return err
	}

	closureVal := values.NewClosure(child.Name, child, cells)
	for i, d := range child.Upvalues {
		if d.Self {
			cells[i].Value = closureVal
		}
	}
	return frame.set(a, closureVal)
}

// buildUpvalueCells resolves descs against frame's registers/upvalues, per
// the four capture rules a descriptor list distinguishes:
//
//   - Self: a fresh cell defaulted to Null (the caller patches it in place
//     once the referencing Value exists, breaking the construction cycle
//     for a recursive closure; left untouched for a parameter-default
//     sub-prototype, which has no such Value).
//   - FromParentLocal, Mutable: the parent register holds a boxed
//     TypeMutableRef Value (a `mut` binding). The SAME underlying
//     *MutableRef cell is reused, not rewrapped, so writes through
//     SetUpvalue/__set_mutable_ref are observed by every capture of it.
//   - FromParentLocal, not Mutable: the parent register holds a plain
//     value with no further writes expected; it is wrapped in a fresh
//     cell.
//   - !FromParentLocal: the descriptor transitively reaches through the
//     parent frame's own upvalue array; the same cell is reused.
func buildUpvalueCells(frame *CallFrame, descs []bytecode.UpvalueDescriptor) ([]*values.MutableRef, error) {
	cells := make([]*values.MutableRef, len(descs))
	for i, d := range descs {
		switch {
		case d.Self:
			cells[i] = &values.MutableRef{Value: values.Null()}
		case d.FromParentLocal:
			regVal, err := frame.get(d.Index)
			if err != nil {
				return nil, err
			}
			if d.Mutable {
				if ref, ok := regVal.ToMutableRef(); ok {
					cells[i] = ref
					continue
				}
			}
			cells[i] = &values.MutableRef{Value: regVal}
		default:
			if int(d.Index) >= len(frame.Upvalues) {
				return nil, newVMError(ErrInvalidRegister, frame, 0, frame.IP-1, "upvalue %d", d.Index)
			}
			cells[i] = frame.Upvalues[d.Index]
		}
	}
	return cells, nil
}
