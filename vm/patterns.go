package vm

import (
	"github.com/achronyme/achronyme-core-sub001/opcodes"
	"github.com/achronyme/achronyme-core-sub001/values"
)

// execPattern handles the refutable-test opcodes (MatchType/MatchLit) and
// the irrefutable destructuring opcodes (DestructureVec/DestructureRec).
// Destructuring never fails: a missing element or field is filled with
// Null, matching the compiler's applyDefault convention of testing the
// target register for Null afterward.
func (vm *VM) execPattern(frame *CallFrame, op opcodes.Opcode, instr opcodes.Instruction) error {
	switch op {
	case opcodes.MatchType:
		_, a, b, c := opcodes.DecodeABC(instr)
		v, err := frame.get(b)
		if err != nil {
			return err
		}
		if !frame.Proto.Pool.ValidString(int(c)) {
			return newVMError(ErrInvalidConstant, frame, op, frame.IP-1, "string id %d", c)
		}
		name := frame.Proto.Pool.StringAt(int(c))
		return frame.set(a, values.Boolean(v.Deref().TypeName() == name))

	case opcodes.MatchLit:
		_, a, b, c := opcodes.DecodeABC(instr)
		v, err := frame.get(b)
		if err != nil {
			return err
		}
		if !frame.Proto.Pool.ValidConstant(int(c)) {
			return newVMError(ErrInvalidConstant, frame, op, frame.IP-1, "index %d", c)
		}
		lit := frame.Proto.Pool.Constant(int(c))
		return frame.set(a, values.Boolean(values.Equal(v, lit)))

	case opcodes.DestructureVec:
		_, a, b, c := opcodes.DecodeABC(instr)
		v, err := frame.get(b)
		if err != nil {
			return err
		}
		vec, ok := v.Deref().ToVector()
		if !ok {
			return typeError(frame, op, frame.IP-1, "Vector", v)
		}
		for i := 0; i < int(c); i++ {
			var elem *values.Value
			if i < len(vec.Elements) {
				elem = vec.Elements[i]
			} else {
				elem = values.Null()
			}
			if err := frame.set(a+uint8(i), elem); err != nil {
				return err
			}
		}
		return nil

	case opcodes.DestructureRec:
		_, a, b, c := opcodes.DecodeABC(instr)
		v, err := frame.get(b)
		if err != nil {
			return err
		}
		rec, ok := v.Deref().ToRecord()
		if !ok {
			return typeError(frame, op, frame.IP-1, "Record", v)
		}
		if !frame.Proto.Pool.ValidConstant(int(c)) {
			return newVMError(ErrInvalidConstant, frame, op, frame.IP-1, "index %d", c)
		}
		namesVal := frame.Proto.Pool.Constant(int(c))
		names, ok := namesVal.ToVector()
		if !ok {
			return newVMError(ErrInvalidConstant, frame, op, frame.IP-1, "field-name constant is not a Vector")
		}
		for i, nameVal := range names.Elements {
			name, _ := nameVal.ToString()
			fieldVal, ok := rec.Get(name)
			if !ok {
				fieldVal = values.Null()
			}
			if err := frame.set(a+uint8(i), fieldVal); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}
