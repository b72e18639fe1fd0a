package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceSemanticsVector(t *testing.T) {
	a := NewVector([]*Value{Number(1)})
	b := a // same handle, per language semantics around `let b = a`
	vec, ok := b.ToVector()
	require.True(t, ok)
	vec.Elements[0] = Number(9)

	aVec, _ := a.ToVector()
	assert.Equal(t, float64(9), aVec.Elements[0].Data.(float64))
}

func TestValueSemanticsNumber(t *testing.T) {
	a := Number(1)
	b := a
	b = Number(9) // rebinding b does not mutate a
	assert.Equal(t, float64(1), a.Data.(float64))
	assert.Equal(t, float64(9), b.Data.(float64))
}

func TestMutableRefSet(t *testing.T) {
	ref := NewMutableRef(Number(0))
	ok := ref.Set(Number(42))
	require.True(t, ok)
	assert.Equal(t, float64(42), ref.Deref().Data.(float64))

	notRef := Number(1)
	assert.False(t, notRef.Set(Number(2)))
}

func TestEqualReferenceIdentity(t *testing.T) {
	a := NewVector(nil)
	b := NewVector(nil)
	assert.False(t, Equal(a, b), "distinct Vector handles must not be equal even with identical contents")
	c := a
	assert.True(t, Equal(a, c))
}

func TestCloneTensorIsIndependent(t *testing.T) {
	orig := NewTensor([]float64{1, 2, 3}, []int{3})
	clone := Clone(orig)
	clone.Data.(*Tensor).Data[0] = 99
	assert.Equal(t, float64(1), orig.Data.(*Tensor).Data[0])
}

func TestBuilderTensorDecay(t *testing.T) {
	b := NewBuilder(BuildTensor)
	builder := b.Data.(*Builder)
	builder.Nums = append(builder.Nums, 1, 2, 3)

	// simulate VM-side decay on first non-Number push
	builder.Elements = make([]*Value, len(builder.Nums))
	for i, n := range builder.Nums {
		builder.Elements[i] = Number(n)
	}
	builder.Nums = nil
	builder.Kind = BuildVector
	builder.Elements = append(builder.Elements, String("x"))

	assert.Equal(t, BuildVector, builder.Kind)
	assert.Len(t, builder.Elements, 4)
}

func TestInspectCircularVector(t *testing.T) {
	v := NewVector(nil)
	vec, _ := v.ToVector()
	vec.Elements = append(vec.Elements, v)
	out := Inspect(v)
	assert.Contains(t, out, "<circular>")
}

func TestIsInternalMarkerNeverPublic(t *testing.T) {
	markers := []*Value{
		TailCallMarker(nil, nil),
		EarlyReturnMarker(Null()),
		GeneratorYieldMarker(Null()),
		LoopBreakMarker(Null()),
		LoopContinueMarker(),
	}
	for _, m := range markers {
		assert.True(t, m.IsInternalMarker())
	}
	assert.False(t, Number(1).IsInternalMarker())
}
