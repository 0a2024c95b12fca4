// Copyright 2026 Unbound ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package array

import (
	"github.com/unbound-ml/unbound/internal/backend/dense"
)

// Creation functions. All of them allocate dense storage; other
// backends expose their own constructors.

// Zeros creates an array filled with zeros.
//
// Example:
//
//	x := array.Zeros[float32](array.Shape{2, 3})
func Zeros[T DType](shape Shape) *Array[T] {
	return dense.Zeros[T](shape)
}

// Ones creates an array filled with ones.
//
// Example:
//
//	x := array.Ones[float32](array.Shape{2, 3})
func Ones[T DType](shape Shape) *Array[T] {
	return dense.Ones[T](shape)
}

// Full creates an array filled with a specific value.
//
// Example:
//
//	x := array.Full[float32](array.Shape{2, 3}, 3.14)
func Full[T DType](shape Shape, value T) *Array[T] {
	return dense.Full[T](shape, value)
}

// FromSlice creates an array from a Go slice. The slice length must
// match the number of elements the shape describes; the data is copied.
//
// Example:
//
//	data := []float32{1, 2, 3, 4, 5, 6}
//	x, err := array.FromSlice(data, array.Shape{2, 3})
func FromSlice[T DType](data []T, shape Shape) (*Array[T], error) {
	return dense.FromSlice[T](data, shape)
}

// Arange creates a 1D array with values from start to end (exclusive).
//
// Example:
//
//	x := array.Arange[float32](0, 10) // [0, 1, 2, ..., 9]
func Arange[T DType](start, end T) *Array[T] {
	return dense.Arange[T](start, end)
}

// Eye creates a 2D identity matrix.
//
// Example:
//
//	identity := array.Eye[float32](3) // 3x3 identity matrix
func Eye[T DType](n int) *Array[T] {
	return dense.Eye[T](n)
}

// Randn creates an array filled with random values from the standard
// normal distribution N(0, 1).
func Randn[T DType](shape Shape) *Array[T] {
	return dense.Randn[T](shape)
}

// Rand creates an array filled with random values from the uniform
// distribution U(0, 1).
func Rand[T DType](shape Shape) *Array[T] {
	return dense.Rand[T](shape)
}
