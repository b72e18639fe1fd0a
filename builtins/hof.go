package builtins

import (
	"fmt"
	"sort"

	"github.com/achronyme/achronyme-core-sub001/registry"
	"github.com/achronyme/achronyme-core-sub001/values"
)

func init() {
	registry.Default.Register("map", 2, mapHandler)
	registry.Default.Register("filter", 2, filterHandler)
	registry.Default.Register("reduce", 3, reduceHandler)
	registry.Default.Register("any", 2, anyHandler)
	registry.Default.Register("all", 2, allHandler)
	registry.Default.Register("find", 2, findHandler)
	registry.Default.Register("findIndex", 2, findIndexHandler)
	registry.Default.Register("count", 2, countHandler)
	registry.Default.Register("pipe", -1, pipeHandler)
	registry.Default.Register("zip", -1, zipHandler)
	registry.Default.Register("flatten", 1, flattenHandler)
	registry.Default.Register("sort", -1, sortHandler)
	registry.Default.Register("reverse", 1, reverseHandler)
}

func asVectorElements(v *values.Value) ([]*values.Value, bool) {
	vec, ok := v.Deref().ToVector()
	if !ok {
		return nil, false
	}
	return vec.Elements, true
}

func mapHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	elems, ok := asVectorElements(args[0])
	if !ok {
		return nil, fmt.Errorf("map() expects a Vector, got %s", args[0].Type)
	}
	out := make([]*values.Value, len(elems))
	for i, e := range elems {
		r, err := ctx.CallValue(args[1], []*values.Value{e})
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return values.NewVector(out), nil
}

func filterHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	elems, ok := asVectorElements(args[0])
	if !ok {
		return nil, fmt.Errorf("filter() expects a Vector, got %s", args[0].Type)
	}
	out := make([]*values.Value, 0, len(elems))
	for _, e := range elems {
		r, err := ctx.CallValue(args[1], []*values.Value{e})
		if err != nil {
			return nil, err
		}
		if r.IsTruthy() {
			out = append(out, e)
		}
	}
	return values.NewVector(out), nil
}

func reduceHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	elems, ok := asVectorElements(args[0])
	if !ok {
		return nil, fmt.Errorf("reduce() expects a Vector, got %s", args[0].Type)
	}
	acc := args[2]
	for _, e := range elems {
		r, err := ctx.CallValue(args[1], []*values.Value{acc, e})
		if err != nil {
			return nil, err
		}
		acc = r
	}
	return acc, nil
}

func anyHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	elems, ok := asVectorElements(args[0])
	if !ok {
		return nil, fmt.Errorf("any() expects a Vector, got %s", args[0].Type)
	}
	for _, e := range elems {
		r, err := ctx.CallValue(args[1], []*values.Value{e})
		if err != nil {
			return nil, err
		}
		if r.IsTruthy() {
			return values.Boolean(true), nil
		}
	}
	return values.Boolean(false), nil
}

func allHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	elems, ok := asVectorElements(args[0])
	if !ok {
		return nil, fmt.Errorf("all() expects a Vector, got %s", args[0].Type)
	}
	for _, e := range elems {
		r, err := ctx.CallValue(args[1], []*values.Value{e})
		if err != nil {
			return nil, err
		}
		if !r.IsTruthy() {
			return values.Boolean(false), nil
		}
	}
	return values.Boolean(true), nil
}

func findHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	elems, ok := asVectorElements(args[0])
	if !ok {
		return nil, fmt.Errorf("find() expects a Vector, got %s", args[0].Type)
	}
	for _, e := range elems {
		r, err := ctx.CallValue(args[1], []*values.Value{e})
		if err != nil {
			return nil, err
		}
		if r.IsTruthy() {
			return e, nil
		}
	}
	return values.Null(), nil
}

func findIndexHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	elems, ok := asVectorElements(args[0])
	if !ok {
		return nil, fmt.Errorf("findIndex() expects a Vector, got %s", args[0].Type)
	}
	for i, e := range elems {
		r, err := ctx.CallValue(args[1], []*values.Value{e})
		if err != nil {
			return nil, err
		}
		if r.IsTruthy() {
			return values.Number(float64(i)), nil
		}
	}
	return values.Number(-1), nil
}

func countHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	elems, ok := asVectorElements(args[0])
	if !ok {
		return nil, fmt.Errorf("count() expects a Vector, got %s", args[0].Type)
	}
	n := 0
	for _, e := range elems {
		r, err := ctx.CallValue(args[1], []*values.Value{e})
		if err != nil {
			return nil, err
		}
		if r.IsTruthy() {
			n++
		}
	}
	return values.Number(float64(n)), nil
}

// pipeHandler threads args[0] through the remaining args in order, each a
// unary Function, returning the final result: pipe(x, f, g) == g(f(x)).
func pipeHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("pipe() expects at least 1 parameter, %d given", len(args))
	}
	acc := args[0]
	for _, fn := range args[1:] {
		r, err := ctx.CallValue(fn, []*values.Value{acc})
		if err != nil {
			return nil, err
		}
		acc = r
	}
	return acc, nil
}

// zipHandler combines N Vectors positionally into a Vector of Vectors,
// truncating to the shortest input.
func zipHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("zip() expects at least 1 parameter, %d given", len(args))
	}
	vecs := make([][]*values.Value, len(args))
	n := -1
	for i, a := range args {
		elems, ok := asVectorElements(a)
		if !ok {
			return nil, fmt.Errorf("zip() expects Vector arguments, got %s", a.Type)
		}
		vecs[i] = elems
		if n == -1 || len(elems) < n {
			n = len(elems)
		}
	}
	out := make([]*values.Value, n)
	for i := 0; i < n; i++ {
		tuple := make([]*values.Value, len(vecs))
		for j, v := range vecs {
			tuple[j] = v[i]
		}
		out[i] = values.NewVector(tuple)
	}
	return values.NewVector(out), nil
}

// flattenHandler flattens one level of nested Vectors.
func flattenHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	elems, ok := asVectorElements(args[0])
	if !ok {
		return nil, fmt.Errorf("flatten() expects a Vector, got %s", args[0].Type)
	}
	out := make([]*values.Value, 0, len(elems))
	for _, e := range elems {
		if inner, ok := e.Deref().ToVector(); ok {
			out = append(out, inner.Elements...)
		} else {
			out = append(out, e)
		}
	}
	return values.NewVector(out), nil
}

// sortHandler sorts a Vector by natural Number/String ordering, or, given
// a second Function argument, by the comparator's return value (negative,
// zero, positive). sort is registered variadic, so the compiler does not
// check its argument count; this handler rejects anything but 1 or 2 args.
func sortHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	if len(args) != 1 && len(args) != 2 {
		return nil, fmt.Errorf("sort() expects 1 or 2 parameters, %d given", len(args))
	}
	elems, ok := asVectorElements(args[0])
	if !ok {
		return nil, fmt.Errorf("sort() expects a Vector, got %s", args[0].Type)
	}
	out := make([]*values.Value, len(elems))
	copy(out, elems)

	if len(args) == 2 {
		cmp := args[1]
		var sortErr error
		sort.SliceStable(out, func(i, j int) bool {
			if sortErr != nil {
				return false
			}
			r, err := ctx.CallValue(cmp, []*values.Value{out[i], out[j]})
			if err != nil {
				sortErr = err
				return false
			}
			n, _ := r.Deref().ToFloat()
			return n < 0
		})
		if sortErr != nil {
			return nil, sortErr
		}
		return values.NewVector(out), nil
	}

	var cmpErr error
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Deref(), out[j].Deref()
		switch {
		case a.IsNumber() && b.IsNumber():
			an, _ := a.ToFloat()
			bn, _ := b.ToFloat()
			return an < bn
		case a.IsString() && b.IsString():
			as, _ := a.ToString()
			bs, _ := b.ToString()
			return as < bs
		default:
			cmpErr = fmt.Errorf("sort() cannot compare %s and %s without a comparator", a.Type, b.Type)
			return false
		}
	})
	if cmpErr != nil {
		return nil, cmpErr
	}
	return values.NewVector(out), nil
}

func reverseHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	elems, ok := asVectorElements(args[0])
	if !ok {
		return nil, fmt.Errorf("reverse() expects a Vector, got %s", args[0].Type)
	}
	out := make([]*values.Value, len(elems))
	for i, e := range elems {
		out[len(elems)-1-i] = e
	}
	return values.NewVector(out), nil
}
