package dense

import (
	"fmt"

	"github.com/unbound-ml/unbound/internal/array"
	"github.com/unbound-ml/unbound/internal/parallel"
)

// par is the chunking config shared by the elementwise kernels.
var par = parallel.DefaultConfig()

// SetParallelism replaces the chunking config used by the kernels.
// Call it during startup, before any operations run; the kernels read
// the config without synchronization.
func SetParallelism(cfg parallel.Config) {
	par = cfg
}

// number covers the dtypes with arithmetic kernels.
type number interface {
	~float32 | ~float64 | ~int32 | ~int64
}

// scalar additionally covers uint8, which can be cast but has no
// arithmetic kernels.
type scalar interface {
	number | ~uint8
}

// broadcastStrides computes strides for broadcasting inShape to outShape.
// Dimensions of size 1 (and left-padded dimensions) get stride 0.
func broadcastStrides(inShape, outShape array.Shape) []int {
	outDim := len(outShape)
	strides := make([]int, outDim)

	inDim := len(inShape)
	offset := outDim - inDim

	origStrides := inShape.ComputeStrides()

	for i := 0; i < outDim; i++ {
		inIdx := i - offset
		switch {
		case inIdx < 0 || inIdx >= inDim:
			strides[i] = 0
		case inShape[inIdx] == 1:
			strides[i] = 0
		default:
			strides[i] = origStrides[inIdx]
		}
	}

	return strides
}

// flatIndex maps an output flat index to a source flat index using
// broadcast-adjusted strides.
func flatIndex(outIdx int, outStrides, inStrides []int) int {
	ndim := len(outStrides)
	idx := 0

	for i := 0; i < ndim; i++ {
		coord := outIdx / outStrides[i]
		outIdx %= outStrides[i]
		idx += coord * inStrides[i]
	}

	return idx
}

// Vectorized elementwise kernels. Disjoint index writes, safe to chunk.

func addVec[T number](dst, a, b []T) {
	parallel.For(len(dst), func(i int) {
		dst[i] = a[i] + b[i]
	}, par)
}

func subVec[T number](dst, a, b []T) {
	parallel.For(len(dst), func(i int) {
		dst[i] = a[i] - b[i]
	}, par)
}

func mulVec[T number](dst, a, b []T) {
	parallel.For(len(dst), func(i int) {
		dst[i] = a[i] * b[i]
	}, par)
}

func divVec[T number](dst, a, b []T) {
	parallel.For(len(dst), func(i int) {
		dst[i] = a[i] / b[i]
	}, par)
}

func addInplaceVec[T number](a, b []T) {
	parallel.For(len(a), func(i int) {
		a[i] += b[i]
	}, par)
}

// Broadcasting kernels. Index math per element, kept sequential.

func addBcast[T number](dst, a, b []T, aShape, bShape, outShape array.Shape) {
	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)

	n := outShape.NumElements()
	for i := 0; i < n; i++ {
		dst[i] = a[flatIndex(i, outStrides, aStrides)] + b[flatIndex(i, outStrides, bStrides)]
	}
}

func subBcast[T number](dst, a, b []T, aShape, bShape, outShape array.Shape) {
	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)

	n := outShape.NumElements()
	for i := 0; i < n; i++ {
		dst[i] = a[flatIndex(i, outStrides, aStrides)] - b[flatIndex(i, outStrides, bStrides)]
	}
}

func mulBcast[T number](dst, a, b []T, aShape, bShape, outShape array.Shape) {
	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)

	n := outShape.NumElements()
	for i := 0; i < n; i++ {
		dst[i] = a[flatIndex(i, outStrides, aStrides)] * b[flatIndex(i, outStrides, bStrides)]
	}
}

func divBcast[T number](dst, a, b []T, aShape, bShape, outShape array.Shape) {
	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)

	n := outShape.NumElements()
	for i := 0; i < n; i++ {
		dst[i] = a[flatIndex(i, outStrides, aStrides)] / b[flatIndex(i, outStrides, bStrides)]
	}
}

func scaleVec[T number](dst, src []T, factor T) {
	parallel.For(len(dst), func(i int) {
		dst[i] = src[i] * factor
	}, par)
}

func fillVec[T any](dst []T, v T) {
	for i := range dst {
		dst[i] = v
	}
}

func sumVec[T number](src []T) T {
	var sum T
	for _, v := range src {
		sum += v
	}
	return sum
}

// sumDimKernel reduces data along dim into result, which holds the shape
// with dim removed.
func sumDimKernel[T number](data, result []T, shape array.Shape, dim int) {
	for i := range result {
		result[i] = 0
	}

	strides := shape.ComputeStrides()
	numElements := shape.NumElements()

	outShape := shape.Clone()
	outShape[dim] = 1
	outStrides := outShape.ComputeStrides()

	for i := 0; i < numElements; i++ {
		outIdx := 0
		temp := i
		for d := 0; d < len(shape); d++ {
			coord := temp / strides[d]
			temp %= strides[d]

			if d != dim {
				outIdx += coord * outStrides[d]
			}
		}

		result[outIdx] += data[i]
	}
}

// argmaxFlat returns the flat index of the largest element.
func argmaxFlat[T number](data []T) int {
	maxIdx := 0
	maxVal := data[0]
	for i := 1; i < len(data); i++ {
		if data[i] > maxVal {
			maxVal = data[i]
			maxIdx = i
		}
	}
	return maxIdx
}

// matmulKernel computes C[i,j] = sum_k A[i,k] * B[k,j], chunked by row.
func matmulKernel[T number](c, a, b []T, m, k, n int) {
	parallel.ForRows(m, k*n, func(i int) {
		for j := 0; j < n; j++ {
			var sum T
			for kIdx := 0; kIdx < k; kIdx++ {
				sum += a[i*k+kIdx] * b[kIdx*n+j]
			}
			c[i*n+j] = sum
		}
	}, par)
}

// transposeKernel permutes src's dimensions into dst according to axes.
func transposeKernel[T any](dst, src []T, shape array.Shape, axes []int) {
	ndim := len(shape)
	srcStrides := shape.ComputeStrides()

	dstShape := make(array.Shape, ndim)
	for i, ax := range axes {
		dstShape[i] = shape[ax]
	}
	dstStrides := dstShape.ComputeStrides()

	n := shape.NumElements()
	coords := make([]int, ndim)
	for i := 0; i < n; i++ {
		idx := i
		for dim := 0; dim < ndim; dim++ {
			coords[dim] = idx / srcStrides[dim]
			idx %= srcStrides[dim]
		}

		dstIdx := 0
		for dstDim, srcDim := range axes {
			dstIdx += coords[srcDim] * dstStrides[dstDim]
		}

		dst[dstIdx] = src[i]
	}
}

func castSlice[D, S scalar](dst []D, src []S) {
	for i, v := range src {
		dst[i] = D(v)
	}
}

func numToBool[S scalar](dst []bool, src []S) {
	for i, v := range src {
		dst[i] = v != 0
	}
}

func boolToNum[D scalar](dst []D, src []bool) {
	for i, v := range src {
		if v {
			dst[i] = 1
		} else {
			dst[i] = 0
		}
	}
}

// Dtype dispatchers. The rules validate dtypes before calling these, so the
// default branches are unreachable safeguards.

func addVectorized(result, a, b *Storage) {
	switch a.DType() {
	case array.Float32:
		addVec(result.AsFloat32(), a.AsFloat32(), b.AsFloat32())
	case array.Float64:
		addVec(result.AsFloat64(), a.AsFloat64(), b.AsFloat64())
	case array.Int32:
		addVec(result.AsInt32(), a.AsInt32(), b.AsInt32())
	case array.Int64:
		addVec(result.AsInt64(), a.AsInt64(), b.AsInt64())
	default:
		panic("addVectorized: unsupported dtype")
	}
}

func subVectorized(result, a, b *Storage) {
	switch a.DType() {
	case array.Float32:
		subVec(result.AsFloat32(), a.AsFloat32(), b.AsFloat32())
	case array.Float64:
		subVec(result.AsFloat64(), a.AsFloat64(), b.AsFloat64())
	case array.Int32:
		subVec(result.AsInt32(), a.AsInt32(), b.AsInt32())
	case array.Int64:
		subVec(result.AsInt64(), a.AsInt64(), b.AsInt64())
	default:
		panic("subVectorized: unsupported dtype")
	}
}

func mulVectorized(result, a, b *Storage) {
	switch a.DType() {
	case array.Float32:
		mulVec(result.AsFloat32(), a.AsFloat32(), b.AsFloat32())
	case array.Float64:
		mulVec(result.AsFloat64(), a.AsFloat64(), b.AsFloat64())
	case array.Int32:
		mulVec(result.AsInt32(), a.AsInt32(), b.AsInt32())
	case array.Int64:
		mulVec(result.AsInt64(), a.AsInt64(), b.AsInt64())
	default:
		panic("mulVectorized: unsupported dtype")
	}
}

func divVectorized(result, a, b *Storage) {
	switch a.DType() {
	case array.Float32:
		divVec(result.AsFloat32(), a.AsFloat32(), b.AsFloat32())
	case array.Float64:
		divVec(result.AsFloat64(), a.AsFloat64(), b.AsFloat64())
	case array.Int32:
		divVec(result.AsInt32(), a.AsInt32(), b.AsInt32())
	case array.Int64:
		divVec(result.AsInt64(), a.AsInt64(), b.AsInt64())
	default:
		panic("divVectorized: unsupported dtype")
	}
}

func addInplace(a, b *Storage) {
	switch a.DType() {
	case array.Float32:
		addInplaceVec(a.AsFloat32(), b.AsFloat32())
	case array.Float64:
		addInplaceVec(a.AsFloat64(), b.AsFloat64())
	case array.Int32:
		addInplaceVec(a.AsInt32(), b.AsInt32())
	case array.Int64:
		addInplaceVec(a.AsInt64(), b.AsInt64())
	default:
		panic("addInplace: unsupported dtype")
	}
}

func addWithBroadcast(result, a, b *Storage, outShape array.Shape) {
	switch a.DType() {
	case array.Float32:
		addBcast(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape)
	case array.Float64:
		addBcast(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape)
	case array.Int32:
		addBcast(result.AsInt32(), a.AsInt32(), b.AsInt32(), a.Shape(), b.Shape(), outShape)
	case array.Int64:
		addBcast(result.AsInt64(), a.AsInt64(), b.AsInt64(), a.Shape(), b.Shape(), outShape)
	default:
		panic("addWithBroadcast: unsupported dtype")
	}
}

func subWithBroadcast(result, a, b *Storage, outShape array.Shape) {
	switch a.DType() {
	case array.Float32:
		subBcast(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape)
	case array.Float64:
		subBcast(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape)
	case array.Int32:
		subBcast(result.AsInt32(), a.AsInt32(), b.AsInt32(), a.Shape(), b.Shape(), outShape)
	case array.Int64:
		subBcast(result.AsInt64(), a.AsInt64(), b.AsInt64(), a.Shape(), b.Shape(), outShape)
	default:
		panic("subWithBroadcast: unsupported dtype")
	}
}

func mulWithBroadcast(result, a, b *Storage, outShape array.Shape) {
	switch a.DType() {
	case array.Float32:
		mulBcast(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape)
	case array.Float64:
		mulBcast(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape)
	case array.Int32:
		mulBcast(result.AsInt32(), a.AsInt32(), b.AsInt32(), a.Shape(), b.Shape(), outShape)
	case array.Int64:
		mulBcast(result.AsInt64(), a.AsInt64(), b.AsInt64(), a.Shape(), b.Shape(), outShape)
	default:
		panic("mulWithBroadcast: unsupported dtype")
	}
}

func divWithBroadcast(result, a, b *Storage, outShape array.Shape) {
	switch a.DType() {
	case array.Float32:
		divBcast(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape)
	case array.Float64:
		divBcast(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape)
	case array.Int32:
		divBcast(result.AsInt32(), a.AsInt32(), b.AsInt32(), a.Shape(), b.Shape(), outShape)
	case array.Int64:
		divBcast(result.AsInt64(), a.AsInt64(), b.AsInt64(), a.Shape(), b.Shape(), outShape)
	default:
		panic("divWithBroadcast: unsupported dtype")
	}
}

func scaleData(result, x *Storage, factor float64) {
	switch x.DType() {
	case array.Float32:
		scaleVec(result.AsFloat32(), x.AsFloat32(), float32(factor))
	case array.Float64:
		scaleVec(result.AsFloat64(), x.AsFloat64(), factor)
	case array.Int32:
		scaleVec(result.AsInt32(), x.AsInt32(), int32(factor))
	case array.Int64:
		scaleVec(result.AsInt64(), x.AsInt64(), int64(factor))
	default:
		panic("scaleData: unsupported dtype")
	}
}

func sumData(x *Storage) any {
	switch x.DType() {
	case array.Float32:
		return sumVec(x.AsFloat32())
	case array.Float64:
		return sumVec(x.AsFloat64())
	case array.Int32:
		return sumVec(x.AsInt32())
	case array.Int64:
		return sumVec(x.AsInt64())
	default:
		panic("sumData: unsupported dtype")
	}
}

func sumDimData(result, x *Storage, dim int) {
	switch x.DType() {
	case array.Float32:
		sumDimKernel(x.AsFloat32(), result.AsFloat32(), x.Shape(), dim)
	case array.Float64:
		sumDimKernel(x.AsFloat64(), result.AsFloat64(), x.Shape(), dim)
	case array.Int32:
		sumDimKernel(x.AsInt32(), result.AsInt32(), x.Shape(), dim)
	case array.Int64:
		sumDimKernel(x.AsInt64(), result.AsInt64(), x.Shape(), dim)
	default:
		panic("sumDimData: unsupported dtype")
	}
}

func argmaxData(x *Storage) int {
	switch x.DType() {
	case array.Float32:
		return argmaxFlat(x.AsFloat32())
	case array.Float64:
		return argmaxFlat(x.AsFloat64())
	case array.Int32:
		return argmaxFlat(x.AsInt32())
	case array.Int64:
		return argmaxFlat(x.AsInt64())
	default:
		panic("argmaxData: unsupported dtype")
	}
}

func matmulData(result, a, b *Storage, m, k, n int) {
	switch a.DType() {
	case array.Float32:
		matmulKernel(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n)
	case array.Float64:
		matmulKernel(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), m, k, n)
	case array.Int32:
		matmulKernel(result.AsInt32(), a.AsInt32(), b.AsInt32(), m, k, n)
	case array.Int64:
		matmulKernel(result.AsInt64(), a.AsInt64(), b.AsInt64(), m, k, n)
	default:
		panic("matmulData: unsupported dtype")
	}
}

func transposeData(result, src *Storage, axes []int) {
	switch src.DType() {
	case array.Float32:
		transposeKernel(result.AsFloat32(), src.AsFloat32(), src.Shape(), axes)
	case array.Float64:
		transposeKernel(result.AsFloat64(), src.AsFloat64(), src.Shape(), axes)
	case array.Int32:
		transposeKernel(result.AsInt32(), src.AsInt32(), src.Shape(), axes)
	case array.Int64:
		transposeKernel(result.AsInt64(), src.AsInt64(), src.Shape(), axes)
	case array.Uint8:
		transposeKernel(result.AsUint8(), src.AsUint8(), src.Shape(), axes)
	case array.Bool:
		transposeKernel(result.AsBool(), src.AsBool(), src.Shape(), axes)
	default:
		panic("transposeData: unsupported dtype")
	}
}

// castFromSlice converts src into dst's dtype.
func castFromSlice[S scalar](dst *Storage, src []S) {
	switch dst.DType() {
	case array.Float32:
		castSlice(dst.AsFloat32(), src)
	case array.Float64:
		castSlice(dst.AsFloat64(), src)
	case array.Int32:
		castSlice(dst.AsInt32(), src)
	case array.Int64:
		castSlice(dst.AsInt64(), src)
	case array.Uint8:
		castSlice(dst.AsUint8(), src)
	case array.Bool:
		numToBool(dst.AsBool(), src)
	default:
		panic(fmt.Sprintf("cast: unsupported target dtype %v", dst.DType()))
	}
}

func castFromBool(dst *Storage, src []bool) {
	switch dst.DType() {
	case array.Float32:
		boolToNum(dst.AsFloat32(), src)
	case array.Float64:
		boolToNum(dst.AsFloat64(), src)
	case array.Int32:
		boolToNum(dst.AsInt32(), src)
	case array.Int64:
		boolToNum(dst.AsInt64(), src)
	case array.Uint8:
		boolToNum(dst.AsUint8(), src)
	default:
		panic(fmt.Sprintf("cast: unsupported target dtype %v from bool", dst.DType()))
	}
}

func castData(result, x *Storage) {
	switch x.DType() {
	case array.Float32:
		castFromSlice(result, x.AsFloat32())
	case array.Float64:
		castFromSlice(result, x.AsFloat64())
	case array.Int32:
		castFromSlice(result, x.AsInt32())
	case array.Int64:
		castFromSlice(result, x.AsInt64())
	case array.Uint8:
		castFromSlice(result, x.AsUint8())
	case array.Bool:
		castFromBool(result, x.AsBool())
	default:
		panic(fmt.Sprintf("cast: unsupported source dtype %v", x.DType()))
	}
}
