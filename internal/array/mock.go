package array

import (
	"fmt"
	"unsafe"
)

// Verify the mock storages satisfy their contracts.
var (
	_ Linear  = (*MockStorage)(nil)
	_ Storage = (*CheckedStorage)(nil)
)

// MockStorage is a minimal contiguous Linear storage used by tests across
// the module. It is not optimized; the dense backend is the real thing.
type MockStorage struct {
	data  []byte
	shape Shape
	dtype DataType
}

// NewMock allocates a zeroed MockStorage.
func NewMock(shape Shape, dtype DataType) *MockStorage {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("mock storage: %v", err))
	}
	return &MockStorage{
		data:  make([]byte, shape.NumElements()*dtype.Size()),
		shape: shape.Clone(),
		dtype: dtype,
	}
}

// MockFromSlice builds a MockStorage holding the given elements.
func MockFromSlice[T DType](data []T, shape Shape) *MockStorage {
	s := NewMock(shape, TypeOf[T]())
	dst := unsafe.Slice((*T)(unsafe.Pointer(&s.data[0])), shape.NumElements())
	copy(dst, data)
	return s
}

func (s *MockStorage) Shape() Shape         { return s.shape }
func (s *MockStorage) DType() DataType      { return s.dtype }
func (s *MockStorage) Len() int             { return s.shape.NumElements() }
func (s *MockStorage) Base() unsafe.Pointer { return unsafe.Pointer(&s.data[0]) }
func (s *MockStorage) Strides() []int       { return s.shape.ComputeStrides() }

func (s *MockStorage) Similar(shape Shape, dtype DataType) (Storage, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return NewMock(shape, dtype), nil
}

func (s *MockStorage) Load(i int, dst unsafe.Pointer) {
	sz := s.dtype.Size()
	copy(unsafe.Slice((*byte)(dst), sz), s.data[i*sz:(i+1)*sz])
}

func (s *MockStorage) Store(i int, src unsafe.Pointer) {
	sz := s.dtype.Size()
	copy(s.data[i*sz:(i+1)*sz], unsafe.Slice((*byte)(src), sz))
}

// CheckedStorage wraps a MockStorage and validates every flat index,
// panicking on out-of-range access. It is deliberately not Linear: it
// stands in for delegating storages whose own access path performs
// validation, which the wrapper passes through unchanged.
type CheckedStorage struct {
	inner *MockStorage
}

// NewChecked builds a validating storage over a fresh MockStorage.
func NewChecked(shape Shape, dtype DataType) *CheckedStorage {
	return &CheckedStorage{inner: NewMock(shape, dtype)}
}

func (s *CheckedStorage) Shape() Shape    { return s.inner.Shape() }
func (s *CheckedStorage) DType() DataType { return s.inner.DType() }
func (s *CheckedStorage) Len() int        { return s.inner.Len() }

func (s *CheckedStorage) Similar(shape Shape, dtype DataType) (Storage, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return NewChecked(shape, dtype), nil
}

func (s *CheckedStorage) Load(i int, dst unsafe.Pointer) {
	if i < 0 || i >= s.Len() {
		panic(fmt.Sprintf("checked storage: index %d out of range [0, %d)", i, s.Len()))
	}
	s.inner.Load(i, dst)
}

func (s *CheckedStorage) Store(i int, src unsafe.Pointer) {
	if i < 0 || i >= s.Len() {
		panic(fmt.Sprintf("checked storage: index %d out of range [0, %d)", i, s.Len()))
	}
	s.inner.Store(i, src)
}
