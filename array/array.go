// Copyright 2026 Unbound ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package array provides the public API for bounds-unchecked array
// operations in the Unbound framework.
//
// The package defines the core wrapper type and its collaborators:
//   - Array[T]: generic wrapper over array-like storage with unchecked
//     element access
//   - Storage, Linear: interfaces implemented by storage backends
//   - Wrapped: the marker interface the dispatch layer uses to recognize
//     wrappers of any element type
//   - Shape, DataType: core type definitions
//
// Element accessors (At, Set, Flat, SetFlat) perform no bounds checking;
// passing an out-of-range index is undefined behavior. Callers that need
// validation check against Shape() themselves.
//
// Operations are executed by an engine installed at process start,
// normally the rule registry from the dispatch package:
//
//	reg, err := dispatch.NewRegistry()
//	if err != nil {
//		log.Fatal(err)
//	}
//	dispatch.Install(reg)
//
//	x := array.Zeros[float32](array.Shape{2, 3})
//	y := array.Ones[float32](array.Shape{2, 3})
//	z, err := x.Add(y) // element-wise addition
package array

import (
	"github.com/unbound-ml/unbound/internal/array"
)

// Type aliases for public API

// DType is a constraint for array element types.
// Supported types: float32, float64, int32, int64, uint8, bool.
type DType = array.DType

// DataType represents the runtime element type of a storage.
type DataType = array.DataType

// Data type constants.
const (
	Float32 DataType = array.Float32
	Float64 DataType = array.Float64
	Int32   DataType = array.Int32
	Int64   DataType = array.Int64
	Uint8   DataType = array.Uint8
	Bool    DataType = array.Bool
)

// Shape represents the dimensions of an array.
// Example: Shape{2, 3, 4} represents a 3D array with dimensions 2×3×4.
type Shape = array.Shape

// Storage is the interface array backends implement. Anything that can
// report its shape and element type and move scalars in and out of flat
// positions can sit behind an Array.
type Storage = array.Storage

// Linear is implemented by storages whose elements live in one flat
// buffer addressed by base offset and per-dimension strides. Wrappers
// use it to cache direct-indexing metadata.
type Linear = array.Linear

// Wrapped is the element-type-agnostic view of a wrapper. The dispatch
// layer matches and unwraps operands through it without knowing T.
type Wrapped = array.Wrapped

// Array is a generic wrapper over array-like storage.
//
// T is the element type (float32, float64, int32, int64, uint8, bool).
//
// Wrapping is idempotent and total: Wrap never fails and never nests,
// and Unwrap always returns the underlying storage. Operation methods
// forward to the installed engine and re-wrap storage results, so
// results of wrapped operands come back wrapped.
//
// Example:
//
//	x := array.Zeros[float32](array.Shape{2, 3})
//	y := array.Ones[float32](array.Shape{2, 3})
//	z, err := x.Add(y)
type Array[T DType] = array.Array[T]

// Engine executes named operations on behalf of wrapper methods. The
// dispatch package provides the standard implementation.
type Engine = array.Engine

// ErrNoEngine is returned by operation methods before an engine is
// installed.
var ErrNoEngine = array.ErrNoEngine

// Operation names used by the wrapper methods. Rule authors key their
// registrations on these.
const (
	OpAdd        = array.OpAdd
	OpAddInPlace = array.OpAddInPlace
	OpSub        = array.OpSub
	OpMul        = array.OpMul
	OpDiv        = array.OpDiv
	OpScale      = array.OpScale
	OpMatMul     = array.OpMatMul
	OpSum        = array.OpSum
	OpSumDim     = array.OpSumDim
	OpArgMax     = array.OpArgMax
	OpTranspose  = array.OpTranspose
	OpReshape    = array.OpReshape
	OpCast       = array.OpCast
	OpFill       = array.OpFill
)

// Wrap returns s wrapped as an Array[T]. Wrapping an existing wrapper
// returns it unchanged rather than nesting. Wrap panics if the
// storage's element type does not match T.
//
// Example:
//
//	s, err := dense.New(array.Shape{2, 2}, array.Float32)
//	a := array.Wrap[float32](s)
//	same := array.Wrap[float32](a) // same == a
func Wrap[T DType](s Storage) *Array[T] {
	return array.Wrap[T](s)
}

// UnwrapValue strips one wrapper layer from v if it is wrapped, and
// returns v unchanged otherwise. It never fails.
func UnwrapValue(v any) any {
	return array.UnwrapValue(v)
}

// IsWrapped reports whether v is a wrapper.
func IsWrapped(v any) bool {
	return array.IsWrapped(v)
}

// SetEngine installs the operation engine used by all wrapper methods.
//
// This is a low-level function. Most users should call dispatch.Install
// with a configured registry instead.
func SetEngine(e Engine) {
	array.SetEngine(e)
}

// InstalledEngine returns the current engine, or nil if none is
// installed.
func InstalledEngine() Engine {
	return array.InstalledEngine()
}

// Utility functions

// BroadcastShapes computes the broadcast shape for two shapes following
// NumPy broadcasting rules. Returns the resulting shape and a flag
// indicating whether any broadcasting is needed.
//
// Example:
//
//	shape, needsBroadcast, err := array.BroadcastShapes(
//	    array.Shape{3, 1},
//	    array.Shape{3, 4},
//	)
//	// shape = [3, 4], needsBroadcast = true
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return array.BroadcastShapes(a, b)
}

// ParseDataType converts a string name like "float32" to its DataType.
func ParseDataType(s string) (DataType, error) {
	return array.ParseDataType(s)
}

// TypeOf returns the DataType for the compile-time element type T.
func TypeOf[T DType]() DataType {
	return array.TypeOf[T]()
}

// Contiguous reports whether l is laid out contiguously in row-major
// order starting at its base offset.
func Contiguous(l Linear) bool {
	return array.Contiguous(l)
}
