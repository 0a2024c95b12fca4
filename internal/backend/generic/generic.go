// Package generic implements the structural fallbacks: one implementation
// per operation, written against the storage contract alone, so any storage
// kind an operand brings along can be computed with.
//
// Arithmetic stages element values through float64; data movement copies
// elements byte-for-byte. Results are allocated through the operand's own
// Similar, so a fallback keeps its results in the operand's storage family.
package generic

import (
	"unsafe"

	"github.com/unbound-ml/unbound/errors"
	"github.com/unbound-ml/unbound/internal/array"
	"github.com/unbound-ml/unbound/internal/dispatch"
)

// Register installs the structural fallback for every operation the wrapper
// layer dispatches.
func Register(r *dispatch.Registry) {
	r.RegisterGeneric(array.OpAdd, ewise(func(x, y float64) float64 { return x + y }))
	r.RegisterGeneric(array.OpSub, ewise(func(x, y float64) float64 { return x - y }))
	r.RegisterGeneric(array.OpMul, ewise(func(x, y float64) float64 { return x * y }))
	r.RegisterGeneric(array.OpDiv, ewise(func(x, y float64) float64 { return x / y }))
	r.RegisterGeneric(array.OpAddInPlace, addInplace)
	r.RegisterGeneric(array.OpScale, scale)
	r.RegisterGeneric(array.OpMatMul, matmul)
	r.RegisterGeneric(array.OpSum, sum)
	r.RegisterGeneric(array.OpSumDim, sumDim)
	r.RegisterGeneric(array.OpArgMax, argmax)
	r.RegisterGeneric(array.OpTranspose, transpose)
	r.RegisterGeneric(array.OpReshape, reshape)
	r.RegisterGeneric(array.OpCast, cast)
	r.RegisterGeneric(array.OpFill, fill)
}

// loadFloat reads element i of s staged through float64.
func loadFloat(s array.Storage, i int) float64 {
	switch s.DType() {
	case array.Float32:
		var v float32
		s.Load(i, unsafe.Pointer(&v))
		return float64(v)
	case array.Float64:
		var v float64
		s.Load(i, unsafe.Pointer(&v))
		return v
	case array.Int32:
		var v int32
		s.Load(i, unsafe.Pointer(&v))
		return float64(v)
	case array.Int64:
		var v int64
		s.Load(i, unsafe.Pointer(&v))
		return float64(v)
	case array.Uint8:
		var v uint8
		s.Load(i, unsafe.Pointer(&v))
		return float64(v)
	case array.Bool:
		var v bool
		s.Load(i, unsafe.Pointer(&v))
		if v {
			return 1
		}
		return 0
	default:
		panic("loadFloat: unsupported dtype")
	}
}

// storeFloat writes f into element i of s, converting to s's dtype.
func storeFloat(s array.Storage, i int, f float64) {
	switch s.DType() {
	case array.Float32:
		v := float32(f)
		s.Store(i, unsafe.Pointer(&v))
	case array.Float64:
		s.Store(i, unsafe.Pointer(&f))
	case array.Int32:
		v := int32(f)
		s.Store(i, unsafe.Pointer(&v))
	case array.Int64:
		v := int64(f)
		s.Store(i, unsafe.Pointer(&v))
	case array.Uint8:
		v := uint8(f)
		s.Store(i, unsafe.Pointer(&v))
	case array.Bool:
		v := f != 0
		s.Store(i, unsafe.Pointer(&v))
	default:
		panic("storeFloat: unsupported dtype")
	}
}

// moveElem copies one element between same-dtype storages without
// interpreting it.
func moveElem(dst array.Storage, di int, src array.Storage, si int) {
	var scratch [8]byte
	p := unsafe.Pointer(&scratch[0])
	src.Load(si, p)
	dst.Store(di, p)
}

// scalarOf converts a staged float64 back to a bare scalar of the dtype.
func scalarOf(dt array.DataType, f float64) any {
	switch dt {
	case array.Float32:
		return float32(f)
	case array.Float64:
		return f
	case array.Int32:
		return int32(f)
	case array.Int64:
		return int64(f)
	case array.Uint8:
		return uint8(f)
	default:
		panic("scalarOf: unsupported dtype")
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

func storageArg(args []any, i int) (array.Storage, error) {
	s, ok := args[i].(array.Storage)
	if !ok {
		return nil, errors.Newf("argument %d is %T, not a storage", i, args[i])
	}
	return s, nil
}

func storagePair(args []any) (array.Storage, array.Storage, error) {
	a, err := storageArg(args, 0)
	if err != nil {
		return nil, nil, err
	}
	b, err := storageArg(args, 1)
	if err != nil {
		return nil, nil, err
	}
	if a.DType() != b.DType() {
		return nil, nil, errors.Newf("dtype mismatch: %s vs %s", a.DType(), b.DType())
	}
	return a, b, nil
}

// ewise builds the broadcasting elementwise fallback for one operator.
func ewise(f func(x, y float64) float64) dispatch.RuleFunc {
	return func(args []any) (any, error) {
		a, b, err := storagePair(args)
		if err != nil {
			return nil, err
		}

		outShape, _, err := array.BroadcastShapes(a.Shape(), b.Shape())
		if err != nil {
			return nil, err
		}

		out, err := a.Similar(outShape, a.DType())
		if err != nil {
			return nil, err
		}

		n := outShape.NumElements()
		for i := 0; i < n; i++ {
			x := loadFloat(a, array.BroadcastIndex(i, outShape, a.Shape()))
			y := loadFloat(b, array.BroadcastIndex(i, outShape, b.Shape()))
			storeFloat(out, i, f(x, y))
		}
		return out, nil
	}
}

func addInplace(args []any) (any, error) {
	a, b, err := storagePair(args)
	if err != nil {
		return nil, err
	}
	if !a.Shape().Equal(b.Shape()) {
		return nil, errors.Newf("shape mismatch: %v vs %v", a.Shape(), b.Shape())
	}

	n := a.Len()
	for i := 0; i < n; i++ {
		storeFloat(a, i, loadFloat(a, i)+loadFloat(b, i))
	}
	return a, nil
}

func scale(args []any) (any, error) {
	a, err := storageArg(args, 0)
	if err != nil {
		return nil, err
	}
	factor, ok := coerceFloat(args[1])
	if !ok {
		return nil, errors.Newf("non-numeric factor %T", args[1])
	}

	out, err := a.Similar(a.Shape(), a.DType())
	if err != nil {
		return nil, err
	}

	n := a.Len()
	for i := 0; i < n; i++ {
		storeFloat(out, i, loadFloat(a, i)*factor)
	}
	return out, nil
}

func matmul(args []any) (any, error) {
	a, b, err := storagePair(args)
	if err != nil {
		return nil, err
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

	out, err := a.Similar(array.Shape{m, n}, a.DType())
	if err != nil {
		return nil, err
	}

	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			sum := 0.0
			for kIdx := 0; kIdx < k; kIdx++ {
				sum += loadFloat(a, i*k+kIdx) * loadFloat(b, kIdx*n+j)
			}
			storeFloat(out, i*n+j, sum)
		}
	}
	return out, nil
}

func sum(args []any) (any, error) {
	a, err := storageArg(args, 0)
	if err != nil {
		return nil, err
	}
	if a.DType() == array.Bool {
		return nil, errors.Newf("unsupported dtype %s", a.DType())
	}

	acc := 0.0
	n := a.Len()
	for i := 0; i < n; i++ {
		acc += loadFloat(a, i)
	}
	return scalarOf(a.DType(), acc), nil
}

func sumDim(args []any) (any, error) {
	a, err := storageArg(args, 0)
	if err != nil {
		return nil, err
	}
	dim, ok := args[1].(int)
	if !ok {
		return nil, errors.Newf("dimension is %T, not int", args[1])
	}
	if a.DType() == array.Bool {
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

	out, err := a.Similar(outShape, a.DType())
	if err != nil {
		return nil, err
	}
	outLen := outShape.NumElements()
	for i := 0; i < outLen; i++ {
		storeFloat(out, i, 0)
	}

	strides := shape.ComputeStrides()
	keptShape := shape.Clone()
	keptShape[dim] = 1
	keptStrides := keptShape.ComputeStrides()

	n := shape.NumElements()
	for i := 0; i < n; i++ {
		outIdx := 0
		temp := i
		for d := 0; d < ndim; d++ {
			coord := temp / strides[d]
			temp %= strides[d]
			if d != dim {
				outIdx += coord * keptStrides[d]
			}
		}
		storeFloat(out, outIdx, loadFloat(out, outIdx)+loadFloat(a, i))
	}
	return out, nil
}

func argmax(args []any) (any, error) {
	a, err := storageArg(args, 0)
	if err != nil {
		return nil, err
	}
	if a.DType() == array.Bool {
		return nil, errors.Newf("unsupported dtype %s", a.DType())
	}
	n := a.Len()
	if n == 0 {
		return nil, errors.New("empty array")
	}

	maxIdx := 0
	maxVal := loadFloat(a, 0)
	for i := 1; i < n; i++ {
		if v := loadFloat(a, i); v > maxVal {
			maxVal = v
			maxIdx = i
		}
	}
	return maxIdx, nil
}

func transpose(args []any) (any, error) {
	a, err := storageArg(args, 0)
	if err != nil {
		return nil, err
	}
	axes, ok := args[1].([]int)
	if !ok {
		return nil, errors.Newf("axes are %T, not []int", args[1])
	}

	shape := a.Shape()
	ndim := shape.Rank()

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

	outShape := make(array.Shape, ndim)
	for i, ax := range axes {
		outShape[i] = shape[ax]
	}

	out, err := a.Similar(outShape, a.DType())
	if err != nil {
		return nil, err
	}

	srcStrides := shape.ComputeStrides()
	dstStrides := outShape.ComputeStrides()

	n := shape.NumElements()
	coords := make([]int, ndim)
	for i := 0; i < n; i++ {
		idx := i
		for d := 0; d < ndim; d++ {
			coords[d] = idx / srcStrides[d]
			idx %= srcStrides[d]
		}

		dstIdx := 0
		for dstDim, srcDim := range axes {
			dstIdx += coords[srcDim] * dstStrides[dstDim]
		}
		moveElem(out, dstIdx, a, i)
	}
	return out, nil
}

func reshape(args []any) (any, error) {
	a, err := storageArg(args, 0)
	if err != nil {
		return nil, err
	}
	shape, ok := args[1].(array.Shape)
	if !ok {
		return nil, errors.Newf("shape is %T, not array.Shape", args[1])
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if a.Len() != shape.NumElements() {
		return nil, errors.Newf("incompatible shapes: %v -> %v (different number of elements)", a.Shape(), shape)
	}

	out, err := a.Similar(shape, a.DType())
	if err != nil {
		return nil, err
	}
	n := a.Len()
	for i := 0; i < n; i++ {
		moveElem(out, i, a, i)
	}
	return out, nil
}

func cast(args []any) (any, error) {
	a, err := storageArg(args, 0)
	if err != nil {
		return nil, err
	}
	dtype, ok := args[1].(array.DataType)
	if !ok {
		return nil, errors.Newf("target dtype is %T, not array.DataType", args[1])
	}
	if a.DType() == dtype {
		return a, nil
	}

	out, err := a.Similar(a.Shape(), dtype)
	if err != nil {
		return nil, err
	}
	n := a.Len()
	for i := 0; i < n; i++ {
		storeFloat(out, i, loadFloat(a, i))
	}
	return out, nil
}

func fill(args []any) (any, error) {
	a, err := storageArg(args, 0)
	if err != nil {
		return nil, err
	}

	n := a.Len()
	if a.DType() == array.Bool {
		v, ok := args[1].(bool)
		if !ok {
			return nil, errors.Newf("cannot fill bool array with %T", args[1])
		}
		for i := 0; i < n; i++ {
			a.Store(i, unsafe.Pointer(&v))
		}
		return a, nil
	}

	f, ok := coerceFloat(args[1])
	if !ok {
		return nil, errors.Newf("non-numeric fill value %T", args[1])
	}
	for i := 0; i < n; i++ {
		storeFloat(a, i, f)
	}
	return a, nil
}
