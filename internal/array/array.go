package array

import (
	"fmt"
	"strings"
	"unsafe"
)

// Array wraps a Storage and elides bounds checking on element access. The
// wrapper owns no data of its own: it caches the storage's shape, logical
// strides, and (for Linear storages) base pointer and memory strides at
// construction, so indexed access is raw address arithmetic.
//
// Access with out-of-range indices is undefined behavior. That is the
// contract, not an oversight: the caller asserts validity, the wrapper
// removes the checks. Storages that validate internally keep their own
// behavior; the wrapper adds nothing on top.
//
// Two wrappers over the same storage alias the same memory. Coordinating
// concurrent mutation across aliases is the caller's responsibility.
type Array[T DType] struct {
	storage Storage
	shape   Shape
	strides []int // row-major logical strides of shape

	// Linear fast path, nil/empty when the storage is not Linear
	base     unsafe.Pointer
	lstrides []int
	contig   bool

	elemSize uintptr
}

// Wrapped is satisfied by every Array instantiation. It lets code that
// handles values of unknown element type detect and open wrappers without
// knowing T.
type Wrapped interface {
	// Unwrap returns the wrapped storage.
	Unwrap() Storage

	// DType returns the wrapped storage's element type.
	DType() DataType
}

// Wrap returns a bounds-unchecked wrapper around s.
//
// Wrap is idempotent: wrapping an *Array[T] returns it unchanged, and
// wrapping any other wrapper collapses to a single wrapper around the
// innermost storage. A wrapper of a wrapper never exists.
//
// Wrap panics if the storage's element type does not match T.
func Wrap[T DType](s Storage) *Array[T] {
	if a, ok := s.(*Array[T]); ok {
		return a
	}
	if w, ok := s.(Wrapped); ok {
		s = w.Unwrap()
	}
	if want := TypeOf[T](); s.DType() != want {
		panic(fmt.Sprintf("array: storage dtype is %s, not %s", s.DType(), want))
	}

	var zero T
	a := &Array[T]{
		storage:  s,
		shape:    s.Shape().Clone(),
		elemSize: unsafe.Sizeof(zero),
	}
	a.strides = a.shape.ComputeStrides()

	if lin, ok := s.(Linear); ok {
		a.base = lin.Base()
		a.lstrides = lin.Strides()
		a.contig = Contiguous(lin)
	}
	return a
}

// UnwrapValue removes one wrapper if v is wrapped and returns v unchanged
// otherwise. It is total: any value is a valid argument and the result is
// never an error.
func UnwrapValue(v any) any {
	if w, ok := v.(Wrapped); ok {
		return w.Unwrap()
	}
	return v
}

// IsWrapped reports whether v is a wrapper of any element type.
func IsWrapped(v any) bool {
	_, ok := v.(Wrapped)
	return ok
}

// Unwrap returns the wrapped storage.
func (a *Array[T]) Unwrap() Storage {
	return a.storage
}

// Shape returns the array's shape.
func (a *Array[T]) Shape() Shape {
	return a.shape
}

// Rank returns the number of dimensions.
func (a *Array[T]) Rank() int {
	return len(a.shape)
}

// DType returns the runtime element type.
func (a *Array[T]) DType() DataType {
	return a.storage.DType()
}

// Len returns the total number of elements.
func (a *Array[T]) Len() int {
	return a.shape.NumElements()
}

// Similar delegates similar-storage construction to the wrapped storage.
func (a *Array[T]) Similar(shape Shape, dtype DataType) (Storage, error) {
	return a.storage.Similar(shape, dtype)
}

// Load copies element i into dst. Part of the Storage contract: a wrapper
// is itself a storage-shaped value, which is what makes Wrap total.
func (a *Array[T]) Load(i int, dst unsafe.Pointer) {
	a.storage.Load(i, dst)
}

// Store copies src into element i.
func (a *Array[T]) Store(i int, src unsafe.Pointer) {
	a.storage.Store(i, src)
}

// At returns the element at the given indices without bounds checking.
// Out-of-range indices are undefined behavior.
func (a *Array[T]) At(indices ...int) T {
	if a.base != nil {
		off := 0
		for k, idx := range indices {
			off += idx * a.lstrides[k]
		}
		return *(*T)(unsafe.Add(a.base, uintptr(off)*a.elemSize))
	}
	var v T
	a.storage.Load(a.flatIndex(indices), unsafe.Pointer(&v))
	return v
}

// Set writes the element at the given indices without bounds checking.
// Out-of-range indices are undefined behavior.
func (a *Array[T]) Set(v T, indices ...int) {
	if a.base != nil {
		off := 0
		for k, idx := range indices {
			off += idx * a.lstrides[k]
		}
		*(*T)(unsafe.Add(a.base, uintptr(off)*a.elemSize)) = v
		return
	}
	a.storage.Store(a.flatIndex(indices), unsafe.Pointer(&v))
}

// Flat returns element i in row-major flat order without bounds checking.
func (a *Array[T]) Flat(i int) T {
	if a.contig {
		return *(*T)(unsafe.Add(a.base, uintptr(i)*a.elemSize))
	}
	if a.base != nil {
		return *(*T)(unsafe.Add(a.base, uintptr(a.memOffset(i))*a.elemSize))
	}
	var v T
	a.storage.Load(i, unsafe.Pointer(&v))
	return v
}

// SetFlat writes element i in row-major flat order without bounds checking.
func (a *Array[T]) SetFlat(i int, v T) {
	if a.contig {
		*(*T)(unsafe.Add(a.base, uintptr(i)*a.elemSize)) = v
		return
	}
	if a.base != nil {
		*(*T)(unsafe.Add(a.base, uintptr(a.memOffset(i))*a.elemSize)) = v
		return
	}
	a.storage.Store(i, unsafe.Pointer(&v))
}

// Data returns the elements as a typed slice sharing the storage's memory.
// Panics if the storage is not contiguous Linear memory.
func (a *Array[T]) Data() []T {
	if a.base == nil || !a.contig {
		panic("array: Data requires contiguous linear storage")
	}
	return unsafe.Slice((*T)(a.base), a.Len())
}

// flatIndex folds multi-dimensional indices into row-major flat order using
// the logical strides. No validation; excess indices hit Go's own slice
// bounds on strides.
func (a *Array[T]) flatIndex(indices []int) int {
	flat := 0
	for k, idx := range indices {
		flat += idx * a.strides[k]
	}
	return flat
}

// memOffset converts a row-major flat index into a memory element offset
// for non-contiguous linear storages.
func (a *Array[T]) memOffset(flat int) int {
	off := 0
	rem := flat
	for k := 0; k < len(a.strides); k++ {
		idx := rem / a.strides[k]
		rem %= a.strides[k]
		off += idx * a.lstrides[k]
	}
	return off
}

// String renders a short description, not the elements.
func (a *Array[T]) String() string {
	dims := make([]string, len(a.shape))
	for i, d := range a.shape {
		dims[i] = fmt.Sprint(d)
	}
	return fmt.Sprintf("Array[%s](%s)", a.DType(), strings.Join(dims, "x"))
}
