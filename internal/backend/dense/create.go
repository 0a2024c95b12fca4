package dense

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/unbound-ml/unbound/internal/array"
)

// oneOf returns the multiplicative identity for T.
func oneOf[T array.DType]() T {
	var dummy T
	var one any
	switch any(dummy).(type) {
	case float32:
		one = float32(1)
	case float64:
		one = float64(1)
	case int32:
		one = int32(1)
	case int64:
		one = int64(1)
	case uint8:
		one = uint8(1)
	case bool:
		one = true
	}
	return one.(T)
}

// Zeros creates a dense array filled with zeros.
//
// Example:
//
//	a := dense.Zeros[float32](array.Shape{3, 4})
func Zeros[T array.DType](shape array.Shape) *array.Array[T] {
	s, err := New(shape, array.TypeOf[T]())
	if err != nil {
		panic(err) // Shape validation should prevent this
	}

	// Data is already zero-initialized by make()
	return array.Wrap[T](s)
}

// Ones creates a dense array filled with ones.
func Ones[T array.DType](shape array.Shape) *array.Array[T] {
	a := Zeros[T](shape)
	data := a.Data()

	one := oneOf[T]()
	for i := range data {
		data[i] = one
	}
	return a
}

// Full creates a dense array filled with a specific value.
//
// Example:
//
//	a := dense.Full[float32](array.Shape{3, 3}, 3.14)
func Full[T array.DType](shape array.Shape, value T) *array.Array[T] {
	a := Zeros[T](shape)
	data := a.Data()
	for i := range data {
		data[i] = value
	}
	return a
}

// FromSlice creates a dense array from a Go slice.
// The slice is copied into the array's memory.
func FromSlice[T array.DType](data []T, shape array.Shape) (*array.Array[T], error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	a := Zeros[T](shape)
	copy(a.Data(), data)
	return a, nil
}

// Arange creates a 1D dense array with values from start to end (exclusive).
// Only works with numeric types (not bool).
//
// Example:
//
//	a := dense.Arange[int32](0, 10) // [0, 1, 2, ..., 9]
//
//nolint:gocyclo,cyclop // Type-specific logic for each supported numeric type
func Arange[T array.DType](start, end T) *array.Array[T] {
	var numElements int
	switch any(start).(type) {
	case float32:
		numElements = int(any(end).(float32) - any(start).(float32))
	case float64:
		numElements = int(any(end).(float64) - any(start).(float64))
	case int32:
		numElements = int(any(end).(int32) - any(start).(int32))
	case int64:
		numElements = int(any(end).(int64) - any(start).(int64))
	case uint8:
		numElements = int(any(end).(uint8) - any(start).(uint8))
	default:
		panic("Arange not supported for this type")
	}

	if numElements <= 0 {
		panic("end must be greater than start")
	}

	a := Zeros[T](array.Shape{numElements})
	data := a.Data()

	switch any(start).(type) {
	case float32:
		dataF32 := any(data).([]float32)
		startF32 := any(start).(float32)
		for i := range dataF32 {
			dataF32[i] = startF32 + float32(i)
		}
	case float64:
		dataF64 := any(data).([]float64)
		startF64 := any(start).(float64)
		for i := range dataF64 {
			dataF64[i] = startF64 + float64(i)
		}
	case int32:
		dataI32 := any(data).([]int32)
		startI32 := any(start).(int32)
		for i := range dataI32 {
			dataI32[i] = startI32 + int32(i) //nolint:gosec // G115: i is within valid range.
		}
	case int64:
		dataI64 := any(data).([]int64)
		startI64 := any(start).(int64)
		for i := range dataI64 {
			dataI64[i] = startI64 + int64(i)
		}
	case uint8:
		dataU8 := any(data).([]uint8)
		startU8 := any(start).(uint8)
		for i := range dataU8 {
			dataU8[i] = startU8 + uint8(i) //nolint:gosec // G115: i is within valid range.
		}
	}
	return a
}

// Eye creates a 2D identity matrix.
//
// Example:
//
//	a := dense.Eye[float32](3) // 3x3 identity matrix
func Eye[T array.DType](n int) *array.Array[T] {
	a := Zeros[T](array.Shape{n, n})

	one := oneOf[T]()
	for i := 0; i < n; i++ {
		a.Set(one, i, i)
	}
	return a
}

// Randn creates a dense array with random values from a normal distribution
// (mean=0, std=1). Uses Box-Muller transform.
// Only works with float types.
func Randn[T array.DType](shape array.Shape) *array.Array[T] {
	a := Zeros[T](shape)
	data := a.Data()

	var dummy T
	switch any(dummy).(type) {
	case float32:
		dataF32 := any(data).([]float32)
		for i := 0; i < len(dataF32); i += 2 {
			u1 := rand.Float64() //nolint:gosec // G404: statistical use, reproducibility matters
			u2 := rand.Float64() //nolint:gosec // G404: statistical use, reproducibility matters
			z0 := math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)
			z1 := math.Sqrt(-2.0*math.Log(u1)) * math.Sin(2.0*math.Pi*u2)
			dataF32[i] = float32(z0)
			if i+1 < len(dataF32) {
				dataF32[i+1] = float32(z1)
			}
		}
	case float64:
		dataF64 := any(data).([]float64)
		for i := 0; i < len(dataF64); i += 2 {
			u1 := rand.Float64() //nolint:gosec // G404: statistical use, reproducibility matters
			u2 := rand.Float64() //nolint:gosec // G404: statistical use, reproducibility matters
			z0 := math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)
			z1 := math.Sqrt(-2.0*math.Log(u1)) * math.Sin(2.0*math.Pi*u2)
			dataF64[i] = z0
			if i+1 < len(dataF64) {
				dataF64[i+1] = z1
			}
		}
	default:
		panic("Randn only supports float32 and float64 types")
	}
	return a
}

// Rand creates a dense array with random values uniformly distributed in [0, 1).
// Only works with float types.
func Rand[T array.DType](shape array.Shape) *array.Array[T] {
	a := Zeros[T](shape)
	data := a.Data()

	var dummy T
	switch any(dummy).(type) {
	case float32:
		dataF32 := any(data).([]float32)
		for i := range dataF32 {
			dataF32[i] = float32(rand.Float64()) //nolint:gosec // G404: statistical use
		}
	case float64:
		dataF64 := any(data).([]float64)
		for i := range dataF64 {
			dataF64[i] = rand.Float64() //nolint:gosec // G404: statistical use
		}
	default:
		panic("Rand only supports float32 and float64 types")
	}
	return a
}
