package linalg

import (
	"math"
	"testing"

	"github.com/unbound-ml/unbound/internal/array"
	"github.com/unbound-ml/unbound/internal/backend/dense"
	"github.com/unbound-ml/unbound/internal/dispatch"
)

func newTestRegistry(t *testing.T) *dispatch.Registry {
	t.Helper()
	r := dispatch.New()
	if err := RegisterRules(r); err != nil {
		t.Fatalf("RegisterRules failed: %v", err)
	}
	return r
}

func matrix(t *testing.T, data []float64, shape array.Shape) *array.Array[float64] {
	t.Helper()
	a, err := dense.FromSlice(data, shape)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	return a
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRuleSolve(t *testing.T) {
	r := newTestRegistry(t)

	// 2x + y = 5, x + 3y = 10 -> x = 1, y = 3
	a := matrix(t, []float64{2, 1, 1, 3}, array.Shape{2, 2})
	b := matrix(t, []float64{5, 10}, array.Shape{2, 1})

	res, err := r.Call(OpSolve, a, b)
	if err != nil {
		t.Fatalf("solve failed: %v", err)
	}
	x := res.(*array.Array[float64])

	if !closeTo(x.At(0, 0), 1) || !closeTo(x.At(1, 0), 3) {
		t.Errorf("Solve produced %v", x.Data())
	}
}

func TestRuleSolveSingular(t *testing.T) {
	r := newTestRegistry(t)

	a := matrix(t, []float64{1, 2, 2, 4}, array.Shape{2, 2})
	b := matrix(t, []float64{1, 2}, array.Shape{2, 1})

	if _, err := r.Call(OpSolve, a, b); err == nil {
		t.Error("Expected error for singular system")
	}
}

func TestRuleDet(t *testing.T) {
	r := newTestRegistry(t)

	a := matrix(t, []float64{1, 2, 3, 4}, array.Shape{2, 2})
	res, err := r.Call(OpDet, a)
	if err != nil {
		t.Fatalf("det failed: %v", err)
	}
	if got := res.(float64); !closeTo(got, -2) {
		t.Errorf("Expected det -2, got %v", got)
	}
}

func TestRuleDetRequiresSquare(t *testing.T) {
	r := newTestRegistry(t)

	a := matrix(t, []float64{1, 2, 3, 4, 5, 6}, array.Shape{2, 3})
	if _, err := r.Call(OpDet, a); err == nil {
		t.Error("Expected error for non-square matrix")
	}
}

func TestRuleInverse(t *testing.T) {
	r := newTestRegistry(t)

	a := matrix(t, []float64{4, 7, 2, 6}, array.Shape{2, 2})
	res, err := r.Call(OpInverse, a)
	if err != nil {
		t.Fatalf("inverse failed: %v", err)
	}
	inv := res.(*array.Array[float64])

	// A @ A^-1 = I, checked by hand.
	expected := []float64{0.6, -0.7, -0.2, 0.4}
	for i, v := range inv.Data() {
		if !closeTo(v, expected[i]) {
			t.Fatalf("Inverse produced %v, expected %v", inv.Data(), expected)
		}
	}
}

func TestRuleDot(t *testing.T) {
	r := newTestRegistry(t)

	a := matrix(t, []float64{1, 2, 3}, array.Shape{3})
	b := matrix(t, []float64{4, 5, 6}, array.Shape{3})

	res, err := r.Call(OpDot, a, b)
	if err != nil {
		t.Fatalf("dot failed: %v", err)
	}
	if got := res.(float64); !closeTo(got, 32) {
		t.Errorf("Expected 32, got %v", got)
	}
}

func TestRuleDotRejectsMatrices(t *testing.T) {
	r := newTestRegistry(t)

	a := matrix(t, []float64{1, 2, 3, 4}, array.Shape{2, 2})
	b := matrix(t, []float64{1, 2, 3, 4}, array.Shape{2, 2})

	if _, err := r.Call(OpDot, a, b); err == nil {
		t.Error("Expected rank error for rank-2 operands")
	}
}

func TestRuleLUHandlePassesThrough(t *testing.T) {
	r := newTestRegistry(t)

	a := matrix(t, []float64{2, 1, 1, 3}, array.Shape{2, 2})
	res, err := r.Call(OpLU, a)
	if err != nil {
		t.Fatalf("lu failed: %v", err)
	}

	// The handle is not a storage, so it crosses the boundary unwrapped
	// even though the operand was wrapped.
	f, ok := res.(*Factorization)
	if !ok {
		t.Fatalf("Expected *Factorization, got %T", res)
	}
	if f.Order() != 2 {
		t.Errorf("Expected order 2, got %d", f.Order())
	}
	if !closeTo(f.Det(), 5) {
		t.Errorf("Expected det 5, got %v", f.Det())
	}
}

func TestRuleLUSolve(t *testing.T) {
	r := newTestRegistry(t)

	a := matrix(t, []float64{2, 1, 1, 3}, array.Shape{2, 2})
	res, err := r.Call(OpLU, a)
	if err != nil {
		t.Fatalf("lu failed: %v", err)
	}
	f := res.(*Factorization)

	b := matrix(t, []float64{5, 10}, array.Shape{2, 1})
	res, err = r.Call(OpLUSolve, f, b)
	if err != nil {
		t.Fatalf("lusolve failed: %v", err)
	}
	x := res.(*array.Array[float64])

	if !closeTo(x.At(0, 0), 1) || !closeTo(x.At(1, 0), 3) {
		t.Errorf("LUSolve produced %v", x.Data())
	}

	// Same factorization, different right-hand side.
	b2 := matrix(t, []float64{4, 2}, array.Shape{2, 1})
	res, err = r.Call(OpLUSolve, f, b2)
	if err != nil {
		t.Fatalf("lusolve failed: %v", err)
	}
	x2 := res.(*array.Array[float64])
	if !closeTo(x2.At(0, 0), 2) || !closeTo(x2.At(1, 0), 0) {
		t.Errorf("LUSolve produced %v", x2.Data())
	}
}

func TestRuleLUSolveOrderMismatch(t *testing.T) {
	r := newTestRegistry(t)

	a := matrix(t, []float64{2, 1, 1, 3}, array.Shape{2, 2})
	res, err := r.Call(OpLU, a)
	if err != nil {
		t.Fatalf("lu failed: %v", err)
	}
	f := res.(*Factorization)

	b := matrix(t, []float64{1, 2, 3}, array.Shape{3, 1})
	if _, err := r.Call(OpLUSolve, f, b); err == nil {
		t.Error("Expected order mismatch error")
	}
}

func TestRejectsFloat32(t *testing.T) {
	r := newTestRegistry(t)

	// The rules key on the dense storage type; the float64 requirement is
	// checked inside the bridge.
	a, _ := dense.FromSlice([]float32{1, 2, 3, 4}, array.Shape{2, 2})
	if _, err := r.Call(OpDet, a); err == nil {
		t.Error("Expected dtype error for float32 operand")
	}
}
