package vm

import (
	"github.com/achronyme/achronyme-core-sub001/values"
)

// execIterInit builds an Iterator over R[B]'s runtime type, matching the
// kinds values.IterKind distinguishes: Vector, String (pre-collected into
// Unicode scalars by values.NewIterator), Tensor, Range, or a Generator
// (driven by resuming its suspended frame).
func (vm *VM) execIterInit(frame *CallFrame, a, b uint8) error {
	src, err := frame.get(b)
	if err != nil {
		return err
	}
	src = src.Deref()
	var kind values.IterKind
	switch {
	case src.IsVector():
		kind = values.IterVector
	case src.IsString():
		kind = values.IterString
	case src.IsTensor():
		kind = values.IterTensor
	case src.Type == values.TypeRange:
		kind = values.IterRange
	case src.Type == values.TypeGenerator:
		kind = values.IterGenerator
	default:
		return typeError(frame, 0, frame.IP-1, "Vector, String, Tensor, Range or Generator", src)
	}
	return frame.set(a, values.NewIterator(kind, src))
}

// execIterNext advances Iterator(R[B]) and, on success, writes the
// produced value into R[A] and advances the instruction pointer one extra
// word to skip the unconditional Jump the compiler always emits
// immediately after IterNext (landing in the loop body). On exhaustion it
// leaves the IP untouched so execution falls straight into that Jump,
// which unconditionally exits the loop.
func (vm *VM) execIterNext(frame *CallFrame, a, b uint8) error {
	iterVal, err := frame.get(b)
	if err != nil {
		return err
	}
	iterVal = iterVal.Deref()
	if iterVal.Type != values.TypeIterator {
		return typeError(frame, 0, frame.IP-1, "Iterator", iterVal)
	}
	it := iterVal.Data.(*values.Iterator)

	val, ok, err := vm.iteratorNext(it)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := frame.set(a, val); err != nil {
		return err
	}
	frame.IP++
	return nil
}

func (vm *VM) iteratorNext(it *values.Iterator) (*values.Value, bool, error) {
	switch it.Kind {
	case values.IterVector:
		vec, _ := it.Source.ToVector()
		if it.Index >= len(vec.Elements) {
			return nil, false, nil
		}
		v := vec.Elements[it.Index]
		it.Index++
		return v, true, nil

	case values.IterString:
		if it.Index >= len(it.Runes) {
			return nil, false, nil
		}
		v := values.String(string(it.Runes[it.Index]))
		it.Index++
		return v, true, nil

	case values.IterTensor:
		t, _ := it.Source.ToTensor()
		if it.Index >= len(t.Data) {
			return nil, false, nil
		}
		v := values.Number(t.Data[it.Index])
		it.Index++
		return v, true, nil

	case values.IterRange:
		r := it.Source.Data.(*values.Range)
		cur := r.Start + float64(it.Index)
		if r.Inclusive {
			if cur > r.End {
				return nil, false, nil
			}
		} else if cur >= r.End {
			return nil, false, nil
		}
		it.Index++
		return values.Number(cur), true, nil

	case values.IterGenerator:
		v, done, err := vm.resumeGenerator(it.Source)
		if err != nil {
			return nil, false, err
		}
		if done {
			return nil, false, nil
		}
		return v, true, nil
	}
	return nil, false, nil
}

// execBuildInit speculatively picks a Builder kind from the hint value's
// runtime type: String hints build a string, Number hints build a Tensor
// (subject to decay on the first non-Number push), anything else
// (including Null) builds a plain Vector. Interpolated-string lowering
// passes an explicit String hint.
func (vm *VM) execBuildInit(frame *CallFrame, a, b uint8) error {
	hint, err := frame.get(b)
	if err != nil {
		return err
	}
	hint = hint.Deref()
	var kind values.BuildKind
	switch {
	case hint.IsString():
		kind = values.BuildString
	case hint.IsNumber():
		kind = values.BuildTensor
	default:
		kind = values.BuildVector
	}
	return frame.set(a, values.NewBuilder(kind))
}

// execBuildPush appends R[B] to Builder(R[A]), decaying a Tensor builder
// to Vector irreversibly on the first non-Number push.
func (vm *VM) execBuildPush(frame *CallFrame, a, b uint8) error {
	builderVal, err := frame.get(a)
	if err != nil {
		return err
	}
	elem, err := frame.get(b)
	if err != nil {
		return err
	}
	builderVal = builderVal.Deref()
	if builderVal.Type != values.TypeBuilder {
		return typeError(frame, 0, frame.IP-1, "Builder", builderVal)
	}
	bld := builderVal.Data.(*values.Builder)
	elemDeref := elem.Deref()

	switch bld.Kind {
	case values.BuildString:
		s, ok := elemDeref.ToString()
		if !ok {
			return typeError(frame, 0, frame.IP-1, "String", elemDeref)
		}
		bld.Runes = append(bld.Runes, []rune(s)...)

	case values.BuildTensor:
		if n, ok := elemDeref.ToFloat(); ok {
			bld.Nums = append(bld.Nums, n)
			return nil
		}
		bld.Elements = make([]*values.Value, len(bld.Nums))
		for i, n := range bld.Nums {
			bld.Elements[i] = values.Number(n)
		}
		bld.Nums = nil
		bld.Kind = values.BuildVector
		bld.Elements = append(bld.Elements, elemDeref)

	case values.BuildVector:
		bld.Elements = append(bld.Elements, elemDeref)
	}
	return nil
}

// execBuildEnd materializes Builder(R[B]) into its final Value.
func (vm *VM) execBuildEnd(frame *CallFrame, a, b uint8) error {
	builderVal, err := frame.get(b)
	if err != nil {
		return err
	}
	builderVal = builderVal.Deref()
	if builderVal.Type != values.TypeBuilder {
		return typeError(frame, 0, frame.IP-1, "Builder", builderVal)
	}
	bld := builderVal.Data.(*values.Builder)
	var result *values.Value
	switch bld.Kind {
	case values.BuildString:
		result = values.String(string(bld.Runes))
	case values.BuildTensor:
		data := make([]float64, len(bld.Nums))
		copy(data, bld.Nums)
		result = values.NewTensor(data, []int{len(data)})
	default:
		elems := make([]*values.Value, len(bld.Elements))
		copy(elems, bld.Elements)
		result = values.NewVector(elems)
	}
	return frame.set(a, result)
}
