package vm

import (
	"math"

	"github.com/achronyme/achronyme-core-sub001/opcodes"
	"github.com/achronyme/achronyme-core-sub001/values"
)

// execArith handles Add/Sub/Mul/Div/Mod/Pow/Neg. Number operands follow
// IEEE-754 exactly: `x / 0.0` yields signed Infinity, `0.0 / 0.0` yields
// NaN, and only Mod by zero raises ErrModuloByZero. Complex operands
// participate in Add/Sub/Mul/Div/Neg (promoting a mixed Number operand),
// per the Complex built-in namespace's re/im/conj/arg/magnitude surface.
func (vm *VM) execArith(frame *CallFrame, op opcodes.Opcode, instr opcodes.Instruction) error {
	if op == opcodes.Neg {
		_, a, b, _ := opcodes.DecodeABC(instr)
		v, err := frame.get(b)
		if err != nil {
			return err
		}
		v = v.Deref()
		switch {
		case v.IsNumber():
			n, _ := v.ToFloat()
			return frame.set(a, values.Number(-n))
		case v.IsComplex():
			c, _ := v.ToComplex()
			return frame.set(a, values.ComplexValue(-c.Re, -c.Im))
		default:
			return typeError(frame, op, frame.IP-1, "Number", v)
		}
	}

	_, a, b, c := opcodes.DecodeABC(instr)
	lv, err := frame.get(b)
	if err != nil {
		return err
	}
	rv, err := frame.get(c)
	if err != nil {
		return err
	}
	lv, rv = lv.Deref(), rv.Deref()

	if lv.IsComplex() || rv.IsComplex() {
		lc, ok1 := asComplex(lv)
		rc, ok2 := asComplex(rv)
		if !ok1 {
			return typeError(frame, op, frame.IP-1, "Number or Complex", lv)
		}
		if !ok2 {
			return typeError(frame, op, frame.IP-1, "Number or Complex", rv)
		}
		result, err := complexArith(op, lc, rc)
		if err != nil {
			return newVMError(err, frame, op, frame.IP-1, "")
		}
		return frame.set(a, values.ComplexValue(result.Re, result.Im))
	}

	ln, ok := lv.ToFloat()
	if !ok {
		return typeError(frame, op, frame.IP-1, "Number", lv)
	}
	rn, ok := rv.ToFloat()
	if !ok {
		return typeError(frame, op, frame.IP-1, "Number", rv)
	}

	var result float64
	switch op {
	case opcodes.Add:
		result = ln + rn
	case opcodes.Sub:
		result = ln - rn
	case opcodes.Mul:
		result = ln * rn
	case opcodes.Div:
		result = ln / rn // IEEE-754: ±Inf or NaN on zero divisor, never an error
	case opcodes.Mod:
		if rn == 0 {
			return newVMError(ErrModuloByZero, frame, op, frame.IP-1, "")
		}
		result = math.Mod(ln, rn)
	case opcodes.Pow:
		result = math.Pow(ln, rn)
	}
	return frame.set(a, values.Number(result))
}

func asComplex(v *values.Value) (values.Complex, bool) {
	if v.IsComplex() {
		c, _ := v.ToComplex()
		return c, true
	}
	if v.IsNumber() {
		n, _ := v.ToFloat()
		return values.Complex{Re: n}, true
	}
	return values.Complex{}, false
}

func complexArith(op opcodes.Opcode, a, b values.Complex) (values.Complex, error) {
	switch op {
	case opcodes.Add:
		return values.Complex{Re: a.Re + b.Re, Im: a.Im + b.Im}, nil
	case opcodes.Sub:
		return values.Complex{Re: a.Re - b.Re, Im: a.Im - b.Im}, nil
	case opcodes.Mul:
		return values.Complex{Re: a.Re*b.Re - a.Im*b.Im, Im: a.Re*b.Im + a.Im*b.Re}, nil
	case opcodes.Div:
		denom := b.Re*b.Re + b.Im*b.Im
		return values.Complex{
			Re: (a.Re*b.Re + a.Im*b.Im) / denom,
			Im: (a.Im*b.Re - a.Re*b.Im) / denom,
		}, nil
	default:
		return values.Complex{}, ErrTypeMismatch
	}
}

// execCompare handles Eq/Ne (structural, via values.Equal) and the
// ordering comparisons Lt/Le/Gt/Ge, defined over Number and String.
func (vm *VM) execCompare(frame *CallFrame, op opcodes.Opcode, instr opcodes.Instruction) error {
	_, a, b, c := opcodes.DecodeABC(instr)
	lv, err := frame.get(b)
	if err != nil {
		return err
	}
	rv, err := frame.get(c)
	if err != nil {
		return err
	}

	if op == opcodes.Eq {
		return frame.set(a, values.Boolean(values.Equal(lv, rv)))
	}
	if op == opcodes.Ne {
		return frame.set(a, values.Boolean(!values.Equal(lv, rv)))
	}

	lv, rv = lv.Deref(), rv.Deref()
	var less, equal bool
	switch {
	case lv.IsNumber() && rv.IsNumber():
		ln, _ := lv.ToFloat()
		rn, _ := rv.ToFloat()
		less, equal = ln < rn, ln == rn
	case lv.IsString() && rv.IsString():
		ls, _ := lv.ToString()
		rs, _ := rv.ToString()
		less, equal = ls < rs, ls == rs
	default:
		return typeError(frame, op, frame.IP-1, "Number or String", lv)
	}

	var result bool
	switch op {
	case opcodes.Lt:
		result = less
	case opcodes.Le:
		result = less || equal
	case opcodes.Gt:
		result = !less && !equal
	case opcodes.Ge:
		result = !less || equal
	}
	return frame.set(a, values.Boolean(result))
}
