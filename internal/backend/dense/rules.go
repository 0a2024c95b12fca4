package dense

import (
	"github.com/unbound-ml/unbound/errors"
	"github.com/unbound-ml/unbound/internal/array"
	"github.com/unbound-ml/unbound/internal/dispatch"
)

// arithDType reports whether the dtype has arithmetic kernels.
func arithDType(dt array.DataType) bool {
	switch dt {
	case array.Float32, array.Float64, array.Int32, array.Int64:
		return true
	default:
		return false
	}
}

func coerceFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint8:
		return float64(x), true
	default:
		return 0, false
	}
}

// binaryOp runs an elementwise kernel with the broadcast slow path. Error
// texts carry no operation prefix; the forwarder adds it.
func binaryOp(a, b *Storage, vec func(result, a, b *Storage), bcast func(result, a, b *Storage, outShape array.Shape)) (any, error) {
	if a.DType() != b.DType() {
		return nil, errors.Newf("dtype mismatch: %s vs %s", a.DType(), b.DType())
	}
	if !arithDType(a.DType()) {
		return nil, errors.Newf("unsupported dtype %s", a.DType())
	}

	outShape, needsBroadcast, err := array.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		return nil, err
	}

	result, err := New(outShape, a.DType())
	if err != nil {
		return nil, err
	}

	if !needsBroadcast && a.Shape().Equal(b.Shape()) {
		vec(result, a, b)
	} else {
		bcast(result, a, b, outShape)
	}
	return result, nil
}

func ruleAdd(args []any) (any, error) {
	return binaryOp(args[0].(*Storage), args[1].(*Storage), addVectorized, addWithBroadcast)
}

func ruleSub(args []any) (any, error) {
	return binaryOp(args[0].(*Storage), args[1].(*Storage), subVectorized, subWithBroadcast)
}

func ruleMul(args []any) (any, error) {
	return binaryOp(args[0].(*Storage), args[1].(*Storage), mulVectorized, mulWithBroadcast)
}

func ruleDiv(args []any) (any, error) {
	return binaryOp(args[0].(*Storage), args[1].(*Storage), divVectorized, divWithBroadcast)
}

// ruleAddInplace accumulates b into a and returns a itself, which is how
// the forwarder recognizes an in-place result.
func ruleAddInplace(args []any) (any, error) {
	a, b := args[0].(*Storage), args[1].(*Storage)
	if a.DType() != b.DType() {
		return nil, errors.Newf("dtype mismatch: %s vs %s", a.DType(), b.DType())
	}
	if !arithDType(a.DType()) {
		return nil, errors.Newf("unsupported dtype %s", a.DType())
	}
	if !a.Shape().Equal(b.Shape()) {
		return nil, errors.Newf("shape mismatch: %v vs %v", a.Shape(), b.Shape())
	}

	addInplace(a, b)
	return a, nil
}

func ruleScale(args []any) (any, error) {
	a := args[0].(*Storage)
	if !arithDType(a.DType()) {
		return nil, errors.Newf("unsupported dtype %s", a.DType())
	}
	factor, ok := coerceFloat(args[1])
	if !ok {
		return nil, errors.Newf("non-numeric factor %T", args[1])
	}

	result, err := New(a.Shape(), a.DType())
	if err != nil {
		return nil, err
	}
	scaleData(result, a, factor)
	return result, nil
}

func ruleSum(args []any) (any, error) {
	a := args[0].(*Storage)
	if !arithDType(a.DType()) {
		return nil, errors.Newf("unsupported dtype %s", a.DType())
	}
	return sumData(a), nil
}

func ruleSumDim(args []any) (any, error) {
	a, dim := args[0].(*Storage), args[1].(int)
	if !arithDType(a.DType()) {
		return nil, errors.Newf("unsupported dtype %s", a.DType())
	}

	shape := a.Shape()
	ndim := shape.Rank()
	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		return nil, errors.Newf("dimension %d out of range for rank %d", dim, ndim)
	}

	outShape := make(array.Shape, 0, ndim-1)
	for i := 0; i < ndim; i++ {
		if i != dim {
			outShape = append(outShape, shape[i])
		}
	}

	result, err := New(outShape, a.DType())
	if err != nil {
		return nil, err
	}
	sumDimData(result, a, dim)
	return result, nil
}

func ruleArgMax(args []any) (any, error) {
	a := args[0].(*Storage)
	if !arithDType(a.DType()) {
		return nil, errors.Newf("unsupported dtype %s", a.DType())
	}
	if a.Len() == 0 {
		return nil, errors.New("empty array")
	}
	return argmaxData(a), nil
}

func ruleMatMul(args []any) (any, error) {
	a, b := args[0].(*Storage), args[1].(*Storage)
	if a.DType() != b.DType() {
		return nil, errors.Newf("dtype mismatch: %s vs %s", a.DType(), b.DType())
	}
	if !arithDType(a.DType()) {
		return nil, errors.Newf("unsupported dtype %s", a.DType())
	}

	aShape, bShape := a.Shape(), b.Shape()
	if aShape.Rank() != 2 || bShape.Rank() != 2 {
		return nil, errors.Newf("only rank-2 arrays supported, got rank %d and %d", aShape.Rank(), bShape.Rank())
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]
	if k != kAlt {
		return nil, errors.Newf("shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n)
	}

	result, err := New(array.Shape{m, n}, a.DType())
	if err != nil {
		return nil, err
	}
	matmulData(result, a, b, m, k, n)
	return result, nil
}

func ruleTranspose(args []any) (any, error) {
	a, axes := args[0].(*Storage), args[1].([]int)

	shape := a.Shape()
	ndim := shape.Rank()

	// Default: reverse all dimensions.
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		return nil, errors.Newf("axes length %d != rank %d", len(axes), ndim)
	}
	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			return nil, errors.Newf("invalid axis %d for rank %d", ax, ndim)
		}
		if seen[ax] {
			return nil, errors.Newf("duplicate axis %d", ax)
		}
		seen[ax] = true
	}

	newShape := make(array.Shape, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}

	result, err := New(newShape, a.DType())
	if err != nil {
		return nil, err
	}
	transposeData(result, a, axes)
	return result, nil
}

// ruleReshape shares the buffer under the new shape instead of copying.
func ruleReshape(args []any) (any, error) {
	a, shape := args[0].(*Storage), args[1].(array.Shape)
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if a.Len() != shape.NumElements() {
		return nil, errors.Newf("incompatible shapes: %v -> %v (different number of elements)", a.Shape(), shape)
	}
	return a.withShape(shape), nil
}

func ruleCast(args []any) (any, error) {
	a, dtype := args[0].(*Storage), args[1].(array.DataType)
	if a.DType() == dtype {
		return a, nil
	}

	result, err := New(a.Shape(), dtype)
	if err != nil {
		return nil, err
	}
	castData(result, a)
	return result, nil
}

func ruleFill(args []any) (any, error) {
	a := args[0].(*Storage)

	switch a.DType() {
	case array.Bool:
		v, ok := args[1].(bool)
		if !ok {
			return nil, errors.Newf("cannot fill bool array with %T", args[1])
		}
		fillVec(a.AsBool(), v)
	default:
		f, ok := coerceFloat(args[1])
		if !ok {
			return nil, errors.Newf("non-numeric fill value %T", args[1])
		}
		switch a.DType() {
		case array.Float32:
			fillVec(a.AsFloat32(), float32(f))
		case array.Float64:
			fillVec(a.AsFloat64(), f)
		case array.Int32:
			fillVec(a.AsInt32(), int32(f))
		case array.Int64:
			fillVec(a.AsInt64(), int64(f))
		case array.Uint8:
			fillVec(a.AsUint8(), uint8(f))
		}
	}
	return a, nil
}

// RegisterRules installs the dense specializations. Every rule keys on the
// concrete storage type, so they win over interface-pattern rules wherever
// both match.
func RegisterRules(r *dispatch.Registry) error {
	st := dispatch.Exact((*Storage)(nil))

	rules := []dispatch.Rule{
		{Op: array.OpAdd, Patterns: []dispatch.Pattern{st, st}, Fn: ruleAdd},
		{Op: array.OpAddInPlace, Patterns: []dispatch.Pattern{st, st}, Fn: ruleAddInplace},
		{Op: array.OpSub, Patterns: []dispatch.Pattern{st, st}, Fn: ruleSub},
		{Op: array.OpMul, Patterns: []dispatch.Pattern{st, st}, Fn: ruleMul},
		{Op: array.OpDiv, Patterns: []dispatch.Pattern{st, st}, Fn: ruleDiv},
		{Op: array.OpScale, Patterns: []dispatch.Pattern{st, dispatch.AnyArg()}, Fn: ruleScale},
		{Op: array.OpMatMul, Patterns: []dispatch.Pattern{st, st}, Fn: ruleMatMul},
		{Op: array.OpSum, Patterns: []dispatch.Pattern{st}, Fn: ruleSum},
		{Op: array.OpSumDim, Patterns: []dispatch.Pattern{st, dispatch.Exact(0)}, Fn: ruleSumDim},
		{Op: array.OpArgMax, Patterns: []dispatch.Pattern{st}, Fn: ruleArgMax},
		{Op: array.OpTranspose, Patterns: []dispatch.Pattern{st, dispatch.Exact([]int(nil))}, Fn: ruleTranspose},
		{Op: array.OpReshape, Patterns: []dispatch.Pattern{st, dispatch.Exact(array.Shape(nil))}, Fn: ruleReshape},
		{Op: array.OpCast, Patterns: []dispatch.Pattern{st, dispatch.Exact(array.Float32)}, Fn: ruleCast},
		{Op: array.OpFill, Patterns: []dispatch.Pattern{st, dispatch.AnyArg()}, Fn: ruleFill},
	}

	for _, rule := range rules {
		if err := r.Register(rule); err != nil {
			return err
		}
	}
	return nil
}
