package builtins

import (
	"fmt"
	"math"

	"github.com/achronyme/achronyme-core-sub001/registry"
	"github.com/achronyme/achronyme-core-sub001/values"
)

func init() {
	registry.Default.Register("sum", 1, sumHandler)
	registry.Default.Register("mean", 1, meanHandler)
	registry.Default.Register("dot", 2, dotHandler)
	registry.Default.Register("norm", 1, normHandler)
	registry.Default.Register("shape", 1, shapeHandler)
	registry.Default.Register("reshape", 2, reshapeHandler)
	registry.Default.Register("transpose", 1, transposeHandler)
}

// numericData extracts a flat []float64 view of v, which must be a Tensor
// or a Vector whose elements are all Numbers. shape is the Tensor's own
// shape, or [len(data)] for a Vector.
func numericData(name string, v *values.Value) (data []float64, shape []int, err error) {
	v = v.Deref()
	if t, ok := v.ToTensor(); ok {
		return t.Data, t.Shape, nil
	}
	if vec, ok := v.ToVector(); ok {
		data = make([]float64, len(vec.Elements))
		for i, e := range vec.Elements {
			n, ok := e.Deref().ToFloat()
			if !ok {
				return nil, nil, fmt.Errorf("%s() expects a Vector of Numbers, got %s at index %d", name, e.Type, i)
			}
			data[i] = n
		}
		return data, []int{len(data)}, nil
	}
	return nil, nil, fmt.Errorf("%s() expects a Vector or Tensor, got %s", name, v.Type)
}

func sumHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	data, _, err := numericData("sum", args[0])
	if err != nil {
		return nil, err
	}
	var total float64
	for _, n := range data {
		total += n
	}
	return values.Number(total), nil
}

func meanHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	data, _, err := numericData("mean", args[0])
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return values.Number(math.NaN()), nil
	}
	var total float64
	for _, n := range data {
		total += n
	}
	return values.Number(total / float64(len(data))), nil
}

func dotHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	a, _, err := numericData("dot", args[0])
	if err != nil {
		return nil, err
	}
	b, _, err := numericData("dot", args[1])
	if err != nil {
		return nil, err
	}
	if len(a) != len(b) {
		return nil, fmt.Errorf("dot() operands must have equal length, got %d and %d", len(a), len(b))
	}
	var total float64
	for i := range a {
		total += a[i] * b[i]
	}
	return values.Number(total), nil
}

func normHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	data, _, err := numericData("norm", args[0])
	if err != nil {
		return nil, err
	}
	var sumSq float64
	for _, n := range data {
		sumSq += n * n
	}
	return values.Number(math.Sqrt(sumSq)), nil
}

func shapeHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	_, shape, err := numericData("shape", args[0])
	if err != nil {
		return nil, err
	}
	out := make([]*values.Value, len(shape))
	for i, d := range shape {
		out[i] = values.Number(float64(d))
	}
	return values.NewVector(out), nil
}

func reshapeHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	data, _, err := numericData("reshape", args[0])
	if err != nil {
		return nil, err
	}
	shapeElems, ok := asVectorElements(args[1])
	if !ok {
		return nil, fmt.Errorf("reshape() expects its second argument to be a Vector of Numbers")
	}
	newShape := make([]int, len(shapeElems))
	size := 1
	for i, e := range shapeElems {
		n, ok := e.Deref().ToFloat()
		if !ok {
			return nil, fmt.Errorf("reshape() expects a Vector of Numbers for shape, got %s at index %d", e.Type, i)
		}
		newShape[i] = int(n)
		size *= int(n)
	}
	if size != len(data) {
		return nil, fmt.Errorf("reshape() cannot reshape %d elements into shape %v", len(data), newShape)
	}
	out := make([]float64, len(data))
	copy(out, data)
	return values.NewTensor(out, newShape), nil
}

func transposeHandler(ctx registry.BuiltinCallContext, args []*values.Value) (*values.Value, error) {
	data, shape, err := numericData("transpose", args[0])
	if err != nil {
		return nil, err
	}
	if len(shape) != 2 {
		return nil, fmt.Errorf("transpose() only supports 2-dimensional Tensors, got shape %v", shape)
	}
	rows, cols := shape[0], shape[1]
	out := make([]float64, len(data))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[c*rows+r] = data[r*cols+c]
		}
	}
	return values.NewTensor(out, []int{cols, rows}), nil
}
