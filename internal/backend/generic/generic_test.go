package generic

import (
	"testing"

	"github.com/unbound-ml/unbound/errors"
	"github.com/unbound-ml/unbound/internal/array"
	"github.com/unbound-ml/unbound/internal/capmode"
	"github.com/unbound-ml/unbound/internal/dispatch"
)

// newTestRegistry returns a registry carrying only the structural
// fallbacks, so every call below resolves through this package.
func newTestRegistry() *dispatch.Registry {
	r := dispatch.New()
	Register(r)
	return r
}

func wrapMock[T array.DType](t *testing.T, data []T, shape array.Shape) *array.Array[T] {
	t.Helper()
	return array.Wrap[T](array.MockFromSlice(data, shape))
}

func float32SliceEqual(a, b []float32) bool {
	const epsilon = 1e-6
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		diff := a[i] - b[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > epsilon {
			return false
		}
	}
	return true
}

func TestFallbackAdd(t *testing.T) {
	r := newTestRegistry()

	a := wrapMock(t, []float32{1, 2, 3, 4}, array.Shape{2, 2})
	b := wrapMock(t, []float32{5, 6, 7, 8}, array.Shape{2, 2})

	res, err := r.Call(array.OpAdd, a, b)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	out, ok := res.(*array.Array[float32])
	if !ok {
		t.Fatalf("Expected *array.Array[float32], got %T", res)
	}

	// The fallback allocates through the operand's Similar, so the result
	// stays in the operand's storage family.
	if _, ok := out.Unwrap().(*array.MockStorage); !ok {
		t.Errorf("Result storage is %T, expected *array.MockStorage", out.Unwrap())
	}

	if !float32SliceEqual(out.Data(), []float32{6, 8, 10, 12}) {
		t.Errorf("Add produced %v", out.Data())
	}
}

func TestFallbackAddBroadcasting(t *testing.T) {
	r := newTestRegistry()

	a := wrapMock(t, []float32{1, 2, 3}, array.Shape{3, 1})
	b := wrapMock(t, []float32{10, 20}, array.Shape{2})

	res, err := r.Call(array.OpAdd, a, b)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	out := res.(*array.Array[float32])

	if !out.Shape().Equal(array.Shape{3, 2}) {
		t.Fatalf("Expected shape [3 2], got %v", out.Shape())
	}
	expected := []float32{11, 21, 12, 22, 13, 23}
	if !float32SliceEqual(out.Data(), expected) {
		t.Errorf("Broadcast add produced %v, expected %v", out.Data(), expected)
	}
}

func TestFallbackDTypeMismatch(t *testing.T) {
	r := newTestRegistry()

	a := wrapMock(t, []float32{1, 2}, array.Shape{2})
	b := wrapMock(t, []int32{1, 2}, array.Shape{2})

	if _, err := r.Call(array.OpAdd, a, b); err == nil {
		t.Error("Expected dtype mismatch error")
	}
}

func TestFallbackAddInplaceKeepsIdentity(t *testing.T) {
	r := newTestRegistry()

	a := wrapMock(t, []float32{1, 2, 3}, array.Shape{3})
	b := wrapMock(t, []float32{10, 20, 30}, array.Shape{3})

	res, err := r.Call(array.OpAddInPlace, a, b)
	if err != nil {
		t.Fatalf("add.inplace failed: %v", err)
	}
	if res.(*array.Array[float32]) != a {
		t.Error("In-place add should hand back the receiver's wrapper")
	}
	if !float32SliceEqual(a.Data(), []float32{11, 22, 33}) {
		t.Errorf("In-place add produced %v", a.Data())
	}
}

func TestFallbackScale(t *testing.T) {
	r := newTestRegistry()

	a := wrapMock(t, []float32{1, 2, 3}, array.Shape{3})
	res, err := r.Call(array.OpScale, a, float32(3))
	if err != nil {
		t.Fatalf("scale failed: %v", err)
	}
	out := res.(*array.Array[float32])
	if !float32SliceEqual(out.Data(), []float32{3, 6, 9}) {
		t.Errorf("Scale produced %v", out.Data())
	}
}

func TestFallbackSumReturnsBareScalar(t *testing.T) {
	r := newTestRegistry()

	a := wrapMock(t, []float32{6, 8, 10, 12}, array.Shape{2, 2})
	res, err := r.Call(array.OpSum, a)
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	got, ok := res.(float32)
	if !ok {
		t.Fatalf("Expected bare float32, got %T", res)
	}
	if got != 36 {
		t.Errorf("Expected 36, got %v", got)
	}
}

func TestFallbackSumDim(t *testing.T) {
	r := newTestRegistry()

	a := wrapMock(t, []float32{1, 2, 3, 4, 5, 6}, array.Shape{2, 3})
	res, err := r.Call(array.OpSumDim, a, 1)
	if err != nil {
		t.Fatalf("sumdim failed: %v", err)
	}
	out := res.(*array.Array[float32])
	if !out.Shape().Equal(array.Shape{2}) {
		t.Fatalf("Expected shape [2], got %v", out.Shape())
	}
	if !float32SliceEqual(out.Data(), []float32{6, 15}) {
		t.Errorf("SumDim produced %v", out.Data())
	}
}

func TestFallbackArgMax(t *testing.T) {
	r := newTestRegistry()

	a := wrapMock(t, []int64{5, 1, 9, 3}, array.Shape{4})
	res, err := r.Call(array.OpArgMax, a)
	if err != nil {
		t.Fatalf("argmax failed: %v", err)
	}
	if idx := res.(int); idx != 2 {
		t.Errorf("Expected index 2, got %d", idx)
	}
}

func TestFallbackMatMul(t *testing.T) {
	r := newTestRegistry()

	a := wrapMock(t, []float64{1, 2, 3, 4}, array.Shape{2, 2})
	b := wrapMock(t, []float64{5, 6, 7, 8}, array.Shape{2, 2})

	res, err := r.Call(array.OpMatMul, a, b)
	if err != nil {
		t.Fatalf("matmul failed: %v", err)
	}
	out := res.(*array.Array[float64])
	expected := []float64{19, 22, 43, 50}
	for i, v := range out.Data() {
		if v != expected[i] {
			t.Fatalf("MatMul produced %v, expected %v", out.Data(), expected)
		}
	}
}

func TestFallbackTranspose(t *testing.T) {
	r := newTestRegistry()

	a := wrapMock(t, []int32{1, 2, 3, 4, 5, 6}, array.Shape{2, 3})
	res, err := r.Call(array.OpTranspose, a, []int(nil))
	if err != nil {
		t.Fatalf("transpose failed: %v", err)
	}
	out := res.(*array.Array[int32])
	if !out.Shape().Equal(array.Shape{3, 2}) {
		t.Fatalf("Expected shape [3 2], got %v", out.Shape())
	}
	expected := []int32{1, 4, 2, 5, 3, 6}
	for i, v := range out.Data() {
		if v != expected[i] {
			t.Fatalf("Transpose produced %v", out.Data())
		}
	}
}

func TestFallbackTransposeExactForWideInts(t *testing.T) {
	r := newTestRegistry()

	// Byte-for-byte movement must not round values a float64 cannot hold.
	big := int64(1)<<62 + 1
	a := wrapMock(t, []int64{big, 2, 3, 4}, array.Shape{2, 2})

	res, err := r.Call(array.OpTranspose, a, []int(nil))
	if err != nil {
		t.Fatalf("transpose failed: %v", err)
	}
	out := res.(*array.Array[int64])
	if out.At(0, 0) != big {
		t.Errorf("Transpose rounded %d to %d", big, out.At(0, 0))
	}
}

func TestFallbackReshape(t *testing.T) {
	r := newTestRegistry()

	a := wrapMock(t, []float32{1, 2, 3, 4, 5, 6}, array.Shape{2, 3})
	res, err := r.Call(array.OpReshape, a, array.Shape{3, 2})
	if err != nil {
		t.Fatalf("reshape failed: %v", err)
	}
	out := res.(*array.Array[float32])
	if !out.Shape().Equal(array.Shape{3, 2}) {
		t.Fatalf("Expected shape [3 2], got %v", out.Shape())
	}
	if !float32SliceEqual(out.Data(), []float32{1, 2, 3, 4, 5, 6}) {
		t.Errorf("Reshape reordered elements: %v", out.Data())
	}
}

func TestFallbackCast(t *testing.T) {
	r := newTestRegistry()

	a := wrapMock(t, []float32{1.5, 2.5}, array.Shape{2})
	res, err := r.Call(array.OpCast, a, array.Float64)
	if err != nil {
		t.Fatalf("cast failed: %v", err)
	}
	out, ok := res.(*array.Array[float64])
	if !ok {
		t.Fatalf("Expected *array.Array[float64], got %T", res)
	}
	if out.At(0) != 1.5 || out.At(1) != 2.5 {
		t.Errorf("Cast produced %v", out.Data())
	}
	if _, ok := out.Unwrap().(*array.MockStorage); !ok {
		t.Errorf("Cast left the operand's storage family: %T", out.Unwrap())
	}
}

func TestFallbackFillKeepsIdentity(t *testing.T) {
	r := newTestRegistry()

	a := wrapMock(t, []float32{1, 2, 3}, array.Shape{3})
	res, err := r.Call(array.OpFill, a, float32(7))
	if err != nil {
		t.Fatalf("fill failed: %v", err)
	}
	if res.(*array.Array[float32]) != a {
		t.Error("Fill should hand back the receiver's wrapper")
	}
	if !float32SliceEqual(a.Data(), []float32{7, 7, 7}) {
		t.Errorf("Fill produced %v", a.Data())
	}
}

func TestFallbackGatedByExplicitMode(t *testing.T) {
	r := newTestRegistry()
	defer capmode.Set(capmode.Structural)

	a := wrapMock(t, []float32{1, 2}, array.Shape{2})
	b := wrapMock(t, []float32{3, 4}, array.Shape{2})

	capmode.Set(capmode.Explicit)
	_, err := r.Call(array.OpAdd, a, b)
	if !errors.Is(err, dispatch.ErrNoMatchingRule) {
		t.Fatalf("Expected ErrNoMatchingRule under Explicit mode, got %v", err)
	}

	capmode.Set(capmode.Structural)
	if _, err := r.Call(array.OpAdd, a, b); err != nil {
		t.Errorf("Structural mode should reach the fallback: %v", err)
	}
}
