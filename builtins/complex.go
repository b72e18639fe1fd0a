package builtins

import (
	"fmt"
	"math"

	"github.com/achronyme/achronyme-core-sub001/registry"
	"github.com/achronyme/achronyme-core-sub001/values"
)

func init() {
	registry.Default.Register("re", 1, reHandler)
	registry.Default.Register("im", 1, imHandler)
	registry.Default.Register("conj", 1, conjHandler)
	registry.Default.Register("arg", 1, argHandler)
	registry.Default.Register("magnitude", 1, magnitudeHandler)
}

func asComplexOrNumber(name string, v *values.Value) (values.Complex, error) {
	v = v.Deref()
	if c, ok := v.ToComplex(); ok {
		return c, nil
	}
	if n, ok := v.ToFloat(); ok {
		return values.Complex{Re: n}, nil
	}
	return values.Complex{}, fmt.Errorf("%s() expects a Complex or Number, got %s", name, v.Type)
}

func reHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	c, err := asComplexOrNumber("re", args[0])
	if err != nil {
		return nil, err
	}
	return values.Number(c.Re), nil
}

func imHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	c, err := asComplexOrNumber("im", args[0])
	if err != nil {
		return nil, err
	}
	return values.Number(c.Im), nil
}

func conjHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	c, err := asComplexOrNumber("conj", args[0])
	if err != nil {
		return nil, err
	}
	return values.ComplexValue(c.Re, -c.Im), nil
}

func argHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	c, err := asComplexOrNumber("arg", args[0])
	if err != nil {
		return nil, err
	}
	return values.Number(math.Atan2(c.Im, c.Re)), nil
}

func magnitudeHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	c, err := asComplexOrNumber("magnitude", args[0])
	if err != nil {
		return nil, err
	}
	return values.Number(math.Hypot(c.Re, c.Im)), nil
}
