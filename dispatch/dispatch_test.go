// Copyright 2026 Unbound ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unbound-ml/unbound/array"
	"github.com/unbound-ml/unbound/backend/dense"
	"github.com/unbound-ml/unbound/backend/sparse"
	"github.com/unbound-ml/unbound/dispatch"
)

// TestRegistryImplementsEngine verifies the registry plugs into the
// wrapper layer.
func TestRegistryImplementsEngine(_ *testing.T) {
	var _ array.Engine = (*dispatch.Registry)(nil)
}

func TestNewRegistryCatalog(t *testing.T) {
	reg, err := dispatch.NewRegistry()
	require.NoError(t, err)

	ops := reg.Ops()
	for _, op := range []string{
		array.OpAdd,
		array.OpMatMul,
		array.OpSum,
		sparse.OpNNZ,
		"linalg.solve",
		"snapshot.save",
		"snapshot.load",
	} {
		assert.Contains(t, ops, op)
	}
}

// csrPair builds two 3x3 sparse matrices with a few overlapping entries.
func csrPair(t *testing.T) (*sparse.CSR, *sparse.CSR) {
	t.Helper()
	a, err := sparse.NewCSR(3, 3)
	require.NoError(t, err)
	a.Set(0, 0, 1)
	a.Set(1, 1, 2)
	a.Set(2, 0, 3)

	b, err := sparse.NewCSR(3, 3)
	require.NoError(t, err)
	b.Set(0, 0, 10)
	b.Set(2, 2, 5)
	return a, b
}

// TestModeGovernsFallback walks the full capability-mode lifecycle:
// a miss under Explicit, the structural fallback after flipping the
// mode, a cached plan surviving the flip back, and ResetPlans making
// the mode bite again.
func TestModeGovernsFallback(t *testing.T) {
	reg := dispatch.MustNewRegistry()
	a, b := csrPair(t)
	wa := array.Wrap[float64](a)
	wb := array.Wrap[float64](b)

	array.SetCapabilityMode(array.Explicit)
	defer array.SetCapabilityMode(array.Structural)

	// No rule covers CSR+CSR addition, and Explicit forbids the generic.
	_, err := reg.Call(array.OpAdd, wa, wb)
	require.Error(t, err)
	assert.ErrorIs(t, err, dispatch.ErrNoMatchingRule)
	var nm *dispatch.NoMatchingRuleError
	require.ErrorAs(t, err, &nm)
	assert.Equal(t, array.OpAdd, nm.Op)

	// The failure was not cached: flipping the mode is enough.
	array.SetCapabilityMode(array.Structural)
	res, err := reg.Call(array.OpAdd, wa, wb)
	require.NoError(t, err)
	require.True(t, array.IsWrapped(res))

	sum, ok := array.UnwrapValue(res).(*sparse.CSR)
	require.True(t, ok, "fallback result should stay in the operand's storage family, got %T", array.UnwrapValue(res))
	assert.InDelta(t, 11.0, sum.At(0, 0), 1e-12)
	assert.InDelta(t, 2.0, sum.At(1, 1), 1e-12)
	assert.InDelta(t, 5.0, sum.At(2, 2), 1e-12)

	// The successful plan is cached, so the old decision survives the
	// flip back to Explicit.
	array.SetCapabilityMode(array.Explicit)
	_, err = reg.Call(array.OpAdd, wa, wb)
	require.NoError(t, err)

	// Discarding the plans makes the mode bite again.
	reg.ResetPlans()
	_, err = reg.Call(array.OpAdd, wa, wb)
	assert.ErrorIs(t, err, dispatch.ErrNoMatchingRule)
}

func TestAmbiguousRegistration(t *testing.T) {
	reg := dispatch.New()

	err := reg.Register(dispatch.Rule{
		Op:       "frob",
		Patterns: []dispatch.Pattern{dispatch.AnyArg(), dispatch.AnyArg()},
		Fn:       func(args []any) (any, error) { return nil, nil },
	})
	require.NoError(t, err)

	err = reg.Register(dispatch.Rule{
		Op:       "frob",
		Patterns: []dispatch.Pattern{dispatch.AnyArg(), dispatch.AnyArg()},
		Fn:       func(args []any) (any, error) { return nil, nil },
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, dispatch.ErrAmbiguousRule)
	var amb *dispatch.AmbiguousRuleError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, "frob", amb.Op)
}

// TestSpecificityOrder verifies Exact beats Impl beats AnyArg through
// the public constructors.
func TestSpecificityOrder(t *testing.T) {
	reg := dispatch.New()

	reg.MustRegister(dispatch.Rule{
		Op:       "describe",
		Patterns: []dispatch.Pattern{dispatch.Exact((*dense.Storage)(nil))},
		Fn:       func(args []any) (any, error) { return "exact", nil },
	})
	reg.MustRegister(dispatch.Rule{
		Op:       "describe",
		Patterns: []dispatch.Pattern{dispatch.Impl[array.Storage]()},
		Fn:       func(args []any) (any, error) { return "impl", nil },
	})
	reg.MustRegister(dispatch.Rule{
		Op:       "describe",
		Patterns: []dispatch.Pattern{dispatch.AnyArg()},
		Fn:       func(args []any) (any, error) { return "any", nil },
	})

	ds, err := dense.New(array.Shape{2}, array.Float32)
	require.NoError(t, err)
	cs, err := sparse.NewCSR(2, 2)
	require.NoError(t, err)

	res, err := reg.Call("describe", ds)
	require.NoError(t, err)
	assert.Equal(t, "exact", res)

	res, err = reg.Call("describe", cs)
	require.NoError(t, err)
	assert.Equal(t, "impl", res)

	res, err = reg.Call("describe", 42)
	require.NoError(t, err)
	assert.Equal(t, "any", res)
}

// TestInstall verifies the two-line wiring makes wrapper methods and Do
// work.
func TestInstall(t *testing.T) {
	dispatch.Install(dispatch.MustNewRegistry())
	defer array.SetEngine(nil)

	a, err := array.FromSlice([]float32{1, 2}, array.Shape{2})
	require.NoError(t, err)
	b, err := array.FromSlice([]float32{3, 4}, array.Shape{2})
	require.NoError(t, err)

	z, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, float32(4), z.Flat(0))
	assert.Equal(t, float32(6), z.Flat(1))

	c, _ := csrPair(t)
	w := array.Wrap[float64](c)
	res, err := w.Do(sparse.OpNNZ)
	require.NoError(t, err)
	assert.Equal(t, 3, res)
}
