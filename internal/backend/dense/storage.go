// Package dense implements the contiguous row-major storage backend.
//
// A dense Storage owns a reference-counted byte buffer. Buffers are shared
// on Clone and on zero-copy reshape, and released when the last holder drops
// them. Refcounting also tells the kernels when a buffer is uniquely held.
package dense

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/unbound-ml/unbound/internal/array"
)

// buffer is a reference-counted shared byte buffer.
type buffer struct {
	data     []byte
	refCount atomic.Int32
	mu       sync.Mutex // For safe deallocation
}

// newBuffer creates a new reference-counted buffer with refCount = 1.
func newBuffer(size int) *buffer {
	b := &buffer{
		data: make([]byte, size),
	}
	b.refCount.Store(1)
	return b
}

// addRef increments the reference count (for Clone and shared views).
func (b *buffer) addRef() {
	b.refCount.Add(1)
}

// release decrements the reference count and deallocates if it reaches 0.
func (b *buffer) release() {
	if b.refCount.Add(-1) == 0 {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.data = nil
	}
}

// isUnique returns true if this buffer has only one reference.
func (b *buffer) isUnique() bool {
	return b.refCount.Load() == 1
}

// Storage is a contiguous row-major block of elements.
type Storage struct {
	buf     *buffer
	shape   array.Shape
	strides []int
	dtype   array.DataType
	offset  int
}

// New creates a zero-initialized dense storage with the given shape and type.
func New(shape array.Shape, dtype array.DataType) (*Storage, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	numElements := shape.NumElements()
	byteSize := numElements * dtype.Size()

	return &Storage{
		buf:     newBuffer(byteSize),
		shape:   shape.Clone(),
		strides: shape.ComputeStrides(),
		dtype:   dtype,
		offset:  0,
	}, nil
}

// Shape returns the storage's shape.
func (s *Storage) Shape() array.Shape {
	return s.shape
}

// DType returns the storage's data type.
func (s *Storage) DType() array.DataType {
	return s.dtype
}

// Len returns the total number of elements.
func (s *Storage) Len() int {
	return s.shape.NumElements()
}

// Strides returns the storage's memory strides in elements.
func (s *Storage) Strides() []int {
	return s.strides
}

// Base returns the address of the first element.
func (s *Storage) Base() unsafe.Pointer {
	if len(s.buf.data) == 0 {
		return nil
	}
	return unsafe.Pointer(&s.buf.data[s.offset])
}

// Similar allocates a fresh dense storage with the given shape and type.
func (s *Storage) Similar(shape array.Shape, dtype array.DataType) (array.Storage, error) {
	return New(shape, dtype)
}

// Load copies the element at flat index i into dst. The index is not
// validated.
func (s *Storage) Load(i int, dst unsafe.Pointer) {
	sz := s.dtype.Size()
	src := s.buf.data[s.offset+i*sz:]
	copy(unsafe.Slice((*byte)(dst), sz), src[:sz])
}

// Store copies the element at src into flat index i. The index is not
// validated.
func (s *Storage) Store(i int, src unsafe.Pointer) {
	sz := s.dtype.Size()
	dst := s.buf.data[s.offset+i*sz:]
	copy(dst[:sz], unsafe.Slice((*byte)(src), sz))
}

// ByteSize returns the total memory size in bytes.
func (s *Storage) ByteSize() int {
	return s.Len() * s.dtype.Size()
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (s *Storage) Data() []byte {
	return s.buf.data[s.offset:]
}

// AsFloat32 interprets the data as []float32.
// Panics if the storage's dtype is not Float32.
func (s *Storage) AsFloat32() []float32 {
	if s.dtype != array.Float32 {
		panic(fmt.Sprintf("storage dtype is %s, not float32", s.dtype))
	}
	data := s.buf.data[s.offset:]
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), s.Len())
}

// AsFloat64 interprets the data as []float64.
// Panics if the storage's dtype is not Float64.
func (s *Storage) AsFloat64() []float64 {
	if s.dtype != array.Float64 {
		panic(fmt.Sprintf("storage dtype is %s, not float64", s.dtype))
	}
	data := s.buf.data[s.offset:]
	return unsafe.Slice((*float64)(unsafe.Pointer(&data[0])), s.Len())
}

// AsInt32 interprets the data as []int32.
// Panics if the storage's dtype is not Int32.
func (s *Storage) AsInt32() []int32 {
	if s.dtype != array.Int32 {
		panic(fmt.Sprintf("storage dtype is %s, not int32", s.dtype))
	}
	data := s.buf.data[s.offset:]
	return unsafe.Slice((*int32)(unsafe.Pointer(&data[0])), s.Len())
}

// AsInt64 interprets the data as []int64.
// Panics if the storage's dtype is not Int64.
func (s *Storage) AsInt64() []int64 {
	if s.dtype != array.Int64 {
		panic(fmt.Sprintf("storage dtype is %s, not int64", s.dtype))
	}
	data := s.buf.data[s.offset:]
	return unsafe.Slice((*int64)(unsafe.Pointer(&data[0])), s.Len())
}

// AsUint8 interprets the data as []uint8.
// Panics if the storage's dtype is not Uint8.
func (s *Storage) AsUint8() []uint8 {
	if s.dtype != array.Uint8 {
		panic(fmt.Sprintf("storage dtype is %s, not uint8", s.dtype))
	}
	return s.buf.data[s.offset:] // Already []byte = []uint8
}

// AsBool interprets the data as []bool.
// Panics if the storage's dtype is not Bool.
func (s *Storage) AsBool() []bool {
	if s.dtype != array.Bool {
		panic(fmt.Sprintf("storage dtype is %s, not bool", s.dtype))
	}
	data := s.buf.data[s.offset:]
	return unsafe.Slice((*bool)(unsafe.Pointer(&data[0])), s.Len())
}

// Clone creates a shallow copy that shares the buffer with reference
// counting. The clone sees every write made through the original.
func (s *Storage) Clone() *Storage {
	s.buf.addRef()
	return &Storage{
		buf:     s.buf,
		shape:   s.shape.Clone(),
		strides: append([]int(nil), s.strides...),
		dtype:   s.dtype,
		offset:  s.offset,
	}
}

// Release decrements the reference count and deallocates if it reaches 0.
func (s *Storage) Release() {
	s.buf.release()
}

// IsUnique returns true if this storage is the only reference to the buffer.
// When true, kernels may reuse the buffer instead of allocating.
func (s *Storage) IsUnique() bool {
	return s.buf.isUnique()
}

// withShape returns a storage sharing this buffer under a different shape.
// The element counts must already be known to match.
func (s *Storage) withShape(shape array.Shape) *Storage {
	s.buf.addRef()
	return &Storage{
		buf:     s.buf,
		shape:   shape.Clone(),
		strides: shape.ComputeStrides(),
		dtype:   s.dtype,
		offset:  s.offset,
	}
}

var (
	_ array.Storage = (*Storage)(nil)
	_ array.Linear  = (*Storage)(nil)
)
