package builtins

import (
	"fmt"
	"math"

	"github.com/achronyme/achronyme-core-sub001/registry"
	"github.com/achronyme/achronyme-core-sub001/values"
)

func init() {
	registry.Default.Register("sqrt", 1, unaryMath(math.Sqrt))
	registry.Default.Register("abs", 1, unaryMath(math.Abs))
	registry.Default.Register("floor", 1, unaryMath(math.Floor))
	registry.Default.Register("ceil", 1, unaryMath(math.Ceil))
	registry.Default.Register("round", 1, unaryMath(math.Round))
	registry.Default.Register("sin", 1, unaryMath(math.Sin))
	registry.Default.Register("cos", 1, unaryMath(math.Cos))
	registry.Default.Register("tan", 1, unaryMath(math.Tan))
	registry.Default.Register("log", 1, unaryMath(math.Log))
	registry.Default.Register("exp", 1, unaryMath(math.Exp))
	registry.Default.Register("min", 2, minHandler)
	registry.Default.Register("max", 2, maxHandler)
	registry.Default.Register("clamp", 3, clampHandler)
}

func asNumber(name string, v *values.Value) (float64, error) {
	n, ok := v.Deref().ToFloat()
	if !ok {
		return 0, fmt.Errorf("%s() expects a Number, got %s", name, v.Type)
	}
	return n, nil
}

// unaryMath lifts a math.* function into a registry.BuiltinImplementation,
// matching the teacher's thin-wrapper handler shape.
func unaryMath(fn func(float64) float64) registry.BuiltinImplementation {
	return func(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
		n, ok := args[0].Deref().ToFloat()
		if !ok {
			return nil, fmt.Errorf("expects a Number, got %s", args[0].Type)
		}
		return values.Number(fn(n)), nil
	}
}

func minHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	a, err := asNumber("min", args[0])
	if err != nil {
		return nil, err
	}
	b, err := asNumber("min", args[1])
	if err != nil {
		return nil, err
	}
	return values.Number(math.Min(a, b)), nil
}

func maxHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	a, err := asNumber("max", args[0])
	if err != nil {
		return nil, err
	}
	b, err := asNumber("max", args[1])
	if err != nil {
		return nil, err
	}
	return values.Number(math.Max(a, b)), nil
}

func clampHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	n, err := asNumber("clamp", args[0])
	if err != nil {
		return nil, err
	}
	lo, err := asNumber("clamp", args[1])
	if err != nil {
		return nil, err
	}
	hi, err := asNumber("clamp", args[2])
	if err != nil {
		return nil, err
	}
	return values.Number(math.Min(math.Max(n, lo), hi)), nil
}
