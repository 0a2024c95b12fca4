package array

import "unsafe"

// Storage is the structural contract a backing store must satisfy to be
// wrapped. It is deliberately small: shape, element type, flat element
// transfer, and similar-storage construction. Everything else (vectorized
// kernels, device placement, compression) belongs to the concrete backend
// and is reached through dispatch rules, not through this interface.
//
// Load and Store transfer exactly one element between the storage and the
// memory dst/src points at. They perform no bounds validation: a flat index
// outside [0, Len()) is undefined behavior. A storage whose own access path
// validates internally (a delegating or checked store) keeps that behavior;
// the wrapper never adds a second check on top.
type Storage interface {
	// Shape returns the logical dimensions.
	Shape() Shape

	// DType returns the runtime element type.
	DType() DataType

	// Len returns the total number of elements.
	Len() int

	// Similar allocates a new uninitialized storage of the same concrete
	// kind with the given shape and element type.
	Similar(shape Shape, dtype DataType) (Storage, error)

	// Load copies element i (row-major flat order) into dst.
	Load(i int, dst unsafe.Pointer)

	// Store copies src into element i (row-major flat order).
	Store(i int, src unsafe.Pointer)
}

// Linear is implemented by storages whose elements live in one contiguous
// or strided block of addressable memory. Wrapping a Linear storage caches
// Base and Strides so element access is pointer arithmetic with no call
// through the interface.
//
// Strides are in elements, not bytes, and describe the step per dimension
// of Shape. A freshly allocated storage has row-major strides; views may
// not.
type Linear interface {
	Storage

	// Base returns the address of element (0, ..., 0).
	Base() unsafe.Pointer

	// Strides returns the per-dimension element strides.
	Strides() []int
}

// Contiguous reports whether a Linear storage's strides are exactly the
// row-major strides of its shape, meaning flat order equals memory order.
func Contiguous(l Linear) bool {
	want := l.Shape().ComputeStrides()
	got := l.Strides()
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if want[i] != got[i] {
			return false
		}
	}
	return true
}
