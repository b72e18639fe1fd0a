package vm

import (
	"github.com/achronyme/achronyme-core-sub001/opcodes"
	"github.com/achronyme/achronyme-core-sub001/values"
)

// execAggregate handles the Vector/Record aggregate opcode group.
func (vm *VM) execAggregate(frame *CallFrame, op opcodes.Opcode, instr opcodes.Instruction) error {
	switch op {
	case opcodes.NewVector:
		_, a, _, _ := opcodes.DecodeABC(instr)
		return frame.set(a, values.NewVector(nil))

	case opcodes.VecPush:
		_, a, b, _ := opcodes.DecodeABC(instr)
		vecVal, err := frame.get(a)
		if err != nil {
			return err
		}
		elem, err := frame.get(b)
		if err != nil {
			return err
		}
		vec, ok := vecVal.Deref().ToVector()
		if !ok {
			return typeError(frame, op, frame.IP-1, "Vector", vecVal)
		}
		vec.Elements = append(vec.Elements, elem)
		return nil

	case opcodes.VecGet:
		_, a, b, c := opcodes.DecodeABC(instr)
		objVal, err := frame.get(b)
		if err != nil {
			return err
		}
		keyVal, err := frame.get(c)
		if err != nil {
			return err
		}
		result, err := vm.dynamicIndex(frame, op, objVal.Deref(), keyVal.Deref())
		if err != nil {
			return err
		}
		return frame.set(a, result)

	case opcodes.VecSet:
		_, a, b, c := opcodes.DecodeABC(instr)
		objVal, err := frame.get(a)
		if err != nil {
			return err
		}
		keyVal, err := frame.get(b)
		if err != nil {
			return err
		}
		newVal, err := frame.get(c)
		if err != nil {
			return err
		}
		return vm.dynamicIndexSet(frame, op, objVal.Deref(), keyVal.Deref(), newVal)

	case opcodes.VecSlice:
		_, a, b, c := opcodes.DecodeABC(instr)
		vecVal, err := frame.get(b)
		if err != nil {
			return err
		}
		startVal, err := frame.get(c)
		if err != nil {
			return err
		}
		endVal, err := frame.get(c + 1)
		if err != nil {
			return err
		}
		vec, ok := vecVal.Deref().ToVector()
		if !ok {
			return typeError(frame, op, frame.IP-1, "Vector", vecVal)
		}
		n := len(vec.Elements)
		start := 0
		if !startVal.Deref().IsNull() {
			f, ok := startVal.Deref().ToFloat()
			if !ok {
				return typeError(frame, op, frame.IP-1, "Number", startVal)
			}
			start = normalizeIndex(int(f), n)
		}
		end := n
		if !endVal.Deref().IsNull() {
			f, ok := endVal.Deref().ToFloat()
			if !ok {
				return typeError(frame, op, frame.IP-1, "Number", endVal)
			}
			end = normalizeIndex(int(f), n)
		}
		if start < 0 {
			start = 0
		}
		if end > n {
			end = n
		}
		if start > end {
			start = end
		}
		sliced := make([]*values.Value, end-start)
		copy(sliced, vec.Elements[start:end])
		return frame.set(a, values.NewVector(sliced))

	case opcodes.NewRecord:
		_, a, _, _ := opcodes.DecodeABC(instr)
		return frame.set(a, values.NewRecord())

	case opcodes.GetField:
		_, a, b, c := opcodes.DecodeABC(instr)
		recVal, err := frame.get(b)
		if err != nil {
			return err
		}
		rec, ok := recVal.Deref().ToRecord()
		if !ok {
			return typeError(frame, op, frame.IP-1, "Record", recVal)
		}
		if !frame.Proto.Pool.ValidString(int(c)) {
			return newVMError(ErrInvalidConstant, frame, op, frame.IP-1, "string id %d", c)
		}
		name := frame.Proto.Pool.StringAt(int(c))
		v, ok := rec.Get(name)
		if !ok {
			v = values.Null()
		}
		return frame.set(a, v)

	case opcodes.SetField:
		_, a, b, c := opcodes.DecodeABC(instr)
		recVal, err := frame.get(a)
		if err != nil {
			return err
		}
		rec, ok := recVal.Deref().ToRecord()
		if !ok {
			return typeError(frame, op, frame.IP-1, "Record", recVal)
		}
		if !frame.Proto.Pool.ValidString(int(b)) {
			return newVMError(ErrInvalidConstant, frame, op, frame.IP-1, "string id %d", b)
		}
		name := frame.Proto.Pool.StringAt(int(b))
		newVal, err := frame.get(c)
		if err != nil {
			return err
		}
		rec.Set(name, newVal)
		if vm.prof != nil {
			vm.prof.onFieldWrite(name, frame)
		}
		return nil
	}
	return nil
}

// dynamicIndex implements `v[i]` for both Vector (Number key, negative
// wraparound) and Record (String key) since the compiler collapses both
// onto one VecGet opcode, dispatching on the operand's runtime type. A
// 1-dimensional Tensor also indexes by flat position, returning a Number;
// multi-axis tensor indexing is rejected at compile time.
func (vm *VM) dynamicIndex(frame *CallFrame, op opcodes.Opcode, obj, key *values.Value) (*values.Value, error) {
	switch {
	case obj.IsVector():
		vec, _ := obj.ToVector()
		f, ok := key.ToFloat()
		if !ok {
			return nil, typeError(frame, op, frame.IP-1, "Number", key)
		}
		idx := normalizeIndex(int(f), len(vec.Elements))
		if idx < 0 || idx >= len(vec.Elements) {
			return nil, newVMError(ErrRuntime, frame, op, frame.IP-1, "index %d out of range", int(f))
		}
		return vec.Elements[idx], nil
	case obj.IsRecord():
		rec, _ := obj.ToRecord()
		s, ok := key.ToString()
		if !ok {
			return nil, typeError(frame, op, frame.IP-1, "String", key)
		}
		v, ok := rec.Get(s)
		if !ok {
			return values.Null(), nil
		}
		return v, nil
	case obj.IsTensor():
		t, _ := obj.ToTensor()
		if len(t.Shape) != 1 {
			return nil, newVMError(ErrTypeMismatch, frame, op, frame.IP-1, "multi-axis tensor indexing is not supported")
		}
		f, ok := key.ToFloat()
		if !ok {
			return nil, typeError(frame, op, frame.IP-1, "Number", key)
		}
		idx := normalizeIndex(int(f), len(t.Data))
		if idx < 0 || idx >= len(t.Data) {
			return nil, newVMError(ErrRuntime, frame, op, frame.IP-1, "index %d out of range", int(f))
		}
		return values.Number(t.Data[idx]), nil
	default:
		return nil, typeError(frame, op, frame.IP-1, "Vector or Record", obj)
	}
}

func (vm *VM) dynamicIndexSet(frame *CallFrame, op opcodes.Opcode, obj, key, newVal *values.Value) error {
	switch {
	case obj.IsVector():
		vec, _ := obj.ToVector()
		f, ok := key.ToFloat()
		if !ok {
			return typeError(frame, op, frame.IP-1, "Number", key)
		}
		idx := normalizeIndex(int(f), len(vec.Elements))
		if idx < 0 || idx >= len(vec.Elements) {
			return newVMError(ErrRuntime, frame, op, frame.IP-1, "index %d out of range", int(f))
		}
		vec.Elements[idx] = newVal
		return nil
	case obj.IsRecord():
		rec, _ := obj.ToRecord()
		s, ok := key.ToString()
		if !ok {
			return typeError(frame, op, frame.IP-1, "String", key)
		}
		rec.Set(s, newVal)
		return nil
	default:
		return typeError(frame, op, frame.IP-1, "Vector or Record", obj)
	}
}

func normalizeIndex(i, n int) int {
	if i < 0 {
		return n + i
	}
	return i
}
