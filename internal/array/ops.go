package array

import (
	"github.com/unbound-ml/unbound/errors"
)

// Operation identifiers understood by the installed engine. Backends
// register rules against these names; the generic fallback covers the same
// set.
const (
	OpAdd        = "add"
	OpAddInPlace = "add.inplace"
	OpSub        = "sub"
	OpMul        = "mul"
	OpDiv        = "div"
	OpScale      = "scale"
	OpMatMul     = "matmul"
	OpSum        = "sum"
	OpSumDim     = "sumdim"
	OpArgMax     = "argmax"
	OpTranspose  = "transpose"
	OpReshape    = "reshape"
	OpCast       = "cast"
	OpFill       = "fill"
)

func (a *Array[T]) derived(op string, args ...any) (*Array[T], error) {
	res, err := call(op, args...)
	if err != nil {
		return nil, err
	}
	out, ok := res.(*Array[T])
	if !ok {
		return nil, errors.AssertionFailedf("%s: unexpected result type %T", op, res)
	}
	return out, nil
}

// Add returns a + b, element-wise with broadcasting.
func (a *Array[T]) Add(b *Array[T]) (*Array[T], error) {
	return a.derived(OpAdd, a, b)
}

// AddInPlace accumulates b into a and returns a itself.
func (a *Array[T]) AddInPlace(b *Array[T]) (*Array[T], error) {
	return a.derived(OpAddInPlace, a, b)
}

// Sub returns a - b, element-wise with broadcasting.
func (a *Array[T]) Sub(b *Array[T]) (*Array[T], error) {
	return a.derived(OpSub, a, b)
}

// Mul returns a * b, element-wise with broadcasting.
func (a *Array[T]) Mul(b *Array[T]) (*Array[T], error) {
	return a.derived(OpMul, a, b)
}

// Div returns a / b, element-wise with broadcasting.
func (a *Array[T]) Div(b *Array[T]) (*Array[T], error) {
	return a.derived(OpDiv, a, b)
}

// Scale multiplies every element by v.
func (a *Array[T]) Scale(v T) (*Array[T], error) {
	return a.derived(OpScale, a, v)
}

// MatMul returns the matrix product a @ b for rank-2 arrays.
func (a *Array[T]) MatMul(b *Array[T]) (*Array[T], error) {
	return a.derived(OpMatMul, a, b)
}

// Sum reduces all elements to a single scalar of the element type.
func (a *Array[T]) Sum() (T, error) {
	var zero T
	res, err := call(OpSum, a)
	if err != nil {
		return zero, err
	}
	out, ok := res.(T)
	if !ok {
		return zero, errors.AssertionFailedf("sum: unexpected result type %T", res)
	}
	return out, nil
}

// SumDim sums along one dimension, producing an array of rank one lower.
func (a *Array[T]) SumDim(dim int) (*Array[T], error) {
	return a.derived(OpSumDim, a, dim)
}

// ArgMax returns the row-major flat index of the largest element.
func (a *Array[T]) ArgMax() (int, error) {
	res, err := call(OpArgMax, a)
	if err != nil {
		return 0, err
	}
	out, ok := res.(int)
	if !ok {
		return 0, errors.AssertionFailedf("argmax: unexpected result type %T", res)
	}
	return out, nil
}

// Transpose permutes dimensions. Without arguments all dimensions are
// reversed.
func (a *Array[T]) Transpose(axes ...int) (*Array[T], error) {
	return a.derived(OpTranspose, a, axes)
}

// Reshape returns an array with the same elements and a new shape.
func (a *Array[T]) Reshape(shape Shape) (*Array[T], error) {
	return a.derived(OpReshape, a, shape)
}

// AsType converts elements to the given type. The result is a wrapper whose
// element type is only known at runtime, so it is returned as any; callers
// assert the instantiation they expect.
func (a *Array[T]) AsType(dtype DataType) (any, error) {
	return call(OpCast, a, dtype)
}

// Do forwards a named operation with the receiver as the first argument.
// It is the escape hatch for operations registered by extension backends
// that have no wrapper method. The result crosses the wrapping boundary
// like any other: storages come back wrapped, scalars and opaque handles
// come back bare.
func (a *Array[T]) Do(op string, extra ...any) (any, error) {
	args := make([]any, 0, len(extra)+1)
	args = append(args, any(a))
	args = append(args, extra...)
	return call(op, args...)
}

// Fill sets every element to v in place.
func (a *Array[T]) Fill(v T) error {
	_, err := call(OpFill, a, v)
	return err
}
