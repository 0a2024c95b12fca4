package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unbound-ml/unbound/errors"
	"github.com/unbound-ml/unbound/internal/array"
	"github.com/unbound-ml/unbound/internal/capmode"
)

// addFloat32 is a specialized test rule: same-shape elementwise add over
// two mock storages.
func addFloat32(args []any) (any, error) {
	a := array.Wrap[float32](args[0].(array.Storage))
	b := array.Wrap[float32](args[1].(array.Storage))

	out, err := a.Similar(a.Shape(), a.DType())
	if err != nil {
		return nil, err
	}
	o := array.Wrap[float32](out)
	for i := 0; i < a.Len(); i++ {
		o.SetFlat(i, a.Flat(i)+b.Flat(i))
	}
	return out, nil
}

// sumFloat32 reduces to an unwrapped scalar.
func sumFloat32(args []any) (any, error) {
	a := array.Wrap[float32](args[0].(array.Storage))
	var total float32
	for i := 0; i < a.Len(); i++ {
		total += a.Flat(i)
	}
	return total, nil
}

func mockPair(t *testing.T) (*array.Array[float32], *array.Array[float32]) {
	t.Helper()
	a := array.Wrap[float32](array.MockFromSlice([]float32{1, 2, 3, 4}, array.Shape{2, 2}))
	b := array.Wrap[float32](array.MockFromSlice([]float32{5, 6, 7, 8}, array.Shape{2, 2}))
	return a, b
}

func TestExactRuleDispatch(t *testing.T) {
	r := New()
	var sawTypes []any
	require.NoError(t, r.Register(Rule{
		Op:       "add",
		Patterns: []Pattern{Exact((*array.MockStorage)(nil)), Exact((*array.MockStorage)(nil))},
		Fn: func(args []any) (any, error) {
			sawTypes = append(sawTypes, args[0], args[1])
			return addFloat32(args)
		},
	}))

	a, b := mockPair(t)
	res, err := r.Call("add", a, b)
	require.NoError(t, err)

	// The rule saw unwrapped storages, not wrappers.
	require.Len(t, sawTypes, 2)
	_, isRaw := sawTypes[0].(*array.MockStorage)
	assert.True(t, isRaw, "rule received %T, want *array.MockStorage", sawTypes[0])

	// Wrapped operands give a wrapped result.
	out, ok := res.(*array.Array[float32])
	require.True(t, ok, "result is %T, want *array.Array[float32]", res)
	assert.Equal(t, []float32{6, 8, 10, 12}, out.Data())
}

func TestScalarResultPassesThroughUnwrapped(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Rule{
		Op:       "sum",
		Patterns: []Pattern{Exact((*array.MockStorage)(nil))},
		Fn:       sumFloat32,
	}))

	a, _ := mockPair(t)
	res, err := r.Call("sum", a)
	require.NoError(t, err)
	assert.Equal(t, float32(10), res, "scalar stays a bare scalar, never wrapped")
}

func TestMonotonicWrapping(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Rule{
		Op:       "add",
		Patterns: []Pattern{Exact((*array.MockStorage)(nil)), Exact((*array.MockStorage)(nil))},
		Fn:       addFloat32,
	}))

	wrapped := array.Wrap[float32](array.MockFromSlice([]float32{1, 2}, array.Shape{2}))
	raw := array.MockFromSlice([]float32{10, 20}, array.Shape{2})

	// One wrapped operand is enough to wrap the result.
	res, err := r.Call("add", wrapped, raw)
	require.NoError(t, err)
	_, isWrapped := res.(*array.Array[float32])
	assert.True(t, isWrapped, "mixed operands must give a wrapped result, got %T", res)

	// Order does not matter.
	res, err = r.Call("add", raw, wrapped)
	require.NoError(t, err)
	_, isWrapped = res.(*array.Array[float32])
	assert.True(t, isWrapped, "mixed operands must give a wrapped result, got %T", res)

	// All-unwrapped operands give an unwrapped result.
	res, err = r.Call("add", raw, raw)
	require.NoError(t, err)
	_, isRaw := res.(*array.MockStorage)
	assert.True(t, isRaw, "unwrapped operands must give an unwrapped result, got %T", res)
}

func TestRankReducingResultRewrapsAtNewRank(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Rule{
		Op:       "sumdim",
		Patterns: []Pattern{Exact((*array.MockStorage)(nil)), AnyArg()},
		Fn: func(args []any) (any, error) {
			// Collapse the first of three dimensions.
			s := args[0].(array.Storage)
			return s.Similar(s.Shape()[1:], s.DType())
		},
	}))

	a := array.Wrap[float32](array.NewMock(array.Shape{2, 3, 4}, array.Float32))
	res, err := r.Call("sumdim", a, 0)
	require.NoError(t, err)

	out, ok := res.(*array.Array[float32])
	require.True(t, ok, "reduced result is %T, want wrapped", res)
	assert.Equal(t, 2, out.Rank(), "rank comes from the output, not the input")
	assert.True(t, out.Shape().Equal(array.Shape{3, 4}))
}

func TestInPlaceRuleKeepsWrapperIdentity(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Rule{
		Op:       "fill",
		Patterns: []Pattern{Exact((*array.MockStorage)(nil)), AnyArg()},
		Fn: func(args []any) (any, error) {
			s := args[0].(array.Storage)
			w := array.Wrap[float32](s)
			v := args[1].(float32)
			for i := 0; i < w.Len(); i++ {
				w.SetFlat(i, v)
			}
			return s, nil // mutated receiver storage
		},
	}))

	a, _ := mockPair(t)
	res, err := r.Call("fill", a, float32(7))
	require.NoError(t, err)
	assert.Same(t, a, res, "in-place result must be the receiver wrapper itself")
	assert.Equal(t, float32(7), a.At(1, 1))
}

func TestSpecificityExactBeatsInterface(t *testing.T) {
	r := New()
	var picked string
	require.NoError(t, r.Register(Rule{
		Op:       "norm",
		Patterns: []Pattern{Impl[array.Linear]()},
		Fn: func(args []any) (any, error) {
			picked = "interface"
			return float64(0), nil
		},
	}))
	require.NoError(t, r.Register(Rule{
		Op:       "norm",
		Patterns: []Pattern{Exact((*array.MockStorage)(nil))},
		Fn: func(args []any) (any, error) {
			picked = "exact"
			return float64(0), nil
		},
	}))

	a, _ := mockPair(t)
	_, err := r.Call("norm", a)
	require.NoError(t, err)
	assert.Equal(t, "exact", picked, "the pointwise more specific rule wins")
}

func TestSpecificityRegistrationOrderIrrelevant(t *testing.T) {
	// Same rules as above registered in the opposite order.
	r := New()
	var picked string
	require.NoError(t, r.Register(Rule{
		Op:       "norm",
		Patterns: []Pattern{Exact((*array.MockStorage)(nil))},
		Fn: func(args []any) (any, error) {
			picked = "exact"
			return float64(0), nil
		},
	}))
	require.NoError(t, r.Register(Rule{
		Op:       "norm",
		Patterns: []Pattern{Impl[array.Linear]()},
		Fn: func(args []any) (any, error) {
			picked = "interface"
			return float64(0), nil
		},
	}))

	a, _ := mockPair(t)
	_, err := r.Call("norm", a)
	require.NoError(t, err)
	assert.Equal(t, "exact", picked)
}

func TestAmbiguousRegistrationIdenticalPatterns(t *testing.T) {
	r := New()
	fn := func(args []any) (any, error) { return nil, nil }

	require.NoError(t, r.Register(Rule{
		Op:       "op",
		Patterns: []Pattern{Exact((*array.MockStorage)(nil))},
		Fn:       fn,
	}))

	err := r.Register(Rule{
		Op:       "op",
		Patterns: []Pattern{Exact((*array.MockStorage)(nil))},
		Fn:       fn,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmbiguousRule), "identical tuples are ambiguous: %v", err)

	var ambiguous *AmbiguousRuleError
	require.True(t, errors.As(err, &ambiguous))
	assert.Equal(t, "op", ambiguous.Op)
}

func TestAmbiguousRegistrationIncomparablePatterns(t *testing.T) {
	r := New()
	fn := func(args []any) (any, error) { return nil, nil }

	require.NoError(t, r.Register(Rule{
		Op:       "op",
		Patterns: []Pattern{Exact((*array.MockStorage)(nil)), AnyArg()},
		Fn:       fn,
	}))

	// Neither tuple dominates the other, and both match (mock, mock).
	err := r.Register(Rule{
		Op:       "op",
		Patterns: []Pattern{AnyArg(), Exact((*array.MockStorage)(nil))},
		Fn:       fn,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmbiguousRule), "incomparable overlap detected at registration: %v", err)
}

func TestDifferentArityRulesCoexist(t *testing.T) {
	r := New()
	fn := func(args []any) (any, error) { return nil, nil }

	require.NoError(t, r.Register(Rule{Op: "op", Patterns: []Pattern{AnyArg()}, Fn: fn}))
	require.NoError(t, r.Register(Rule{Op: "op", Patterns: []Pattern{AnyArg(), AnyArg()}, Fn: fn}))
}

func TestCallTimeAmbiguityBackstop(t *testing.T) {
	// Two interface patterns that registration must treat as disjoint, both
	// satisfied by MockStorage. Resolution reports the tie.
	r := New()
	fn := func(args []any) (any, error) { return nil, nil }

	require.NoError(t, r.Register(Rule{Op: "op", Patterns: []Pattern{Impl[array.Linear]()}, Fn: fn}))
	require.NoError(t, r.Register(Rule{Op: "op", Patterns: []Pattern{Impl[array.Storage]()}, Fn: fn}))

	a, _ := mockPair(t)
	_, err := r.Call("op", a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmbiguousRule))
}

func TestModeGatedFallback(t *testing.T) {
	defer capmode.Set(capmode.Structural)

	r := New()
	r.RegisterGeneric("add", addFloat32)

	a, b := mockPair(t)

	// Explicit mode: a miss is a hard failure carrying diagnostics.
	capmode.Set(capmode.Explicit)
	_, err := r.Call("add", a, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoMatchingRule))

	var miss *NoMatchingRuleError
	require.True(t, errors.As(err, &miss))
	assert.Equal(t, "add", miss.Op)
	require.Len(t, miss.Signature, 2)
	assert.Equal(t, "*array.MockStorage", miss.Signature[0])

	// Structural mode: the same call now degrades to the generic path.
	// The failed resolution was not cached.
	capmode.Set(capmode.Structural)
	res, err := r.Call("add", a, b)
	require.NoError(t, err)
	out, ok := res.(*array.Array[float32])
	require.True(t, ok)
	assert.Equal(t, []float32{6, 8, 10, 12}, out.Data())
}

func TestPlansFreezeModeDecisions(t *testing.T) {
	defer capmode.Set(capmode.Structural)

	r := New()
	r.RegisterGeneric("add", addFloat32)

	a, b := mockPair(t)

	// Plan the call under Structural.
	capmode.Set(capmode.Structural)
	_, err := r.Call("add", a, b)
	require.NoError(t, err)

	// Flipping to Explicit does not disturb the already planned path.
	capmode.Set(capmode.Explicit)
	_, err = r.Call("add", a, b)
	require.NoError(t, err, "existing plans keep the decision they were built under")

	// Re-specializing picks up the new mode.
	r.ResetPlans()
	_, err = r.Call("add", a, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoMatchingRule))
}

func TestRegisterInvalidatesAffectedPlans(t *testing.T) {
	r := New()
	r.RegisterGeneric("add", addFloat32)

	a, b := mockPair(t)

	// First call plans the generic path.
	_, err := r.Call("add", a, b)
	require.NoError(t, err)

	// Registering a specialized rule displaces the cached generic plan.
	called := false
	require.NoError(t, r.Register(Rule{
		Op:       "add",
		Patterns: []Pattern{Exact((*array.MockStorage)(nil)), Exact((*array.MockStorage)(nil))},
		Fn: func(args []any) (any, error) {
			called = true
			return addFloat32(args)
		},
	}))

	_, err = r.Call("add", a, b)
	require.NoError(t, err)
	assert.True(t, called, "new rule must be visible after registration")
}

func TestMissWithoutGenericIsNoMatchingRule(t *testing.T) {
	r := New()
	a, _ := mockPair(t)

	_, err := r.Call("does-not-exist", a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoMatchingRule))
}

func TestMultiResultWrapsEachStorage(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Rule{
		Op:       "chunk",
		Patterns: []Pattern{Exact((*array.MockStorage)(nil))},
		Fn: func(args []any) (any, error) {
			s := args[0].(array.Storage)
			h1, _ := s.Similar(array.Shape{2}, s.DType())
			h2, _ := s.Similar(array.Shape{2}, s.DType())
			return []array.Storage{h1, h2}, nil
		},
	}))

	a := array.Wrap[float32](array.NewMock(array.Shape{4}, array.Float32))
	res, err := r.Call("chunk", a)
	require.NoError(t, err)

	parts, ok := res.([]any)
	require.True(t, ok, "multi-result is %T", res)
	require.Len(t, parts, 2)
	for i, p := range parts {
		_, wrapped := p.(*array.Array[float32])
		assert.True(t, wrapped, "part %d is %T, want wrapped", i, p)
	}
}

func TestNilArgumentMatchesOnlyAny(t *testing.T) {
	r := New()
	var viaAny bool
	require.NoError(t, r.Register(Rule{
		Op:       "op",
		Patterns: []Pattern{Exact((*array.MockStorage)(nil)), AnyArg()},
		Fn: func(args []any) (any, error) {
			viaAny = true
			return nil, nil
		},
	}))

	a, _ := mockPair(t)
	_, err := r.Call("op", a, nil)
	require.NoError(t, err)
	assert.True(t, viaAny)
}

func TestOpsListsRulesAndGenerics(t *testing.T) {
	r := New()
	r.RegisterGeneric("zeta", func(args []any) (any, error) { return nil, nil })
	require.NoError(t, r.Register(Rule{
		Op:       "alpha",
		Patterns: []Pattern{AnyArg()},
		Fn:       func(args []any) (any, error) { return nil, nil },
	}))

	assert.Equal(t, []string{"alpha", "zeta"}, r.Ops())
}
