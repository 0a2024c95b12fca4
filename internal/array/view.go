package array

import "unsafe"

// linearView is a strided window into a Linear parent's memory. It holds
// the parent storage only to pin its lifetime; access goes straight through
// the retargeted base pointer.
type linearView struct {
	parent  Storage
	base    unsafe.Pointer
	shape   Shape
	strides []int // element strides into parent memory
	dtype   DataType
	logical []int // row-major strides of shape, for flat decomposition
}

func (v *linearView) Shape() Shape         { return v.shape }
func (v *linearView) DType() DataType      { return v.dtype }
func (v *linearView) Len() int             { return v.shape.NumElements() }
func (v *linearView) Base() unsafe.Pointer { return v.base }
func (v *linearView) Strides() []int       { return v.strides }

func (v *linearView) Similar(shape Shape, dtype DataType) (Storage, error) {
	return v.parent.Similar(shape, dtype)
}

func (v *linearView) Load(i int, dst unsafe.Pointer) {
	sz := uintptr(v.dtype.Size())
	src := unsafe.Add(v.base, uintptr(v.memOffset(i))*sz)
	copyElem(dst, src, sz)
}

func (v *linearView) Store(i int, src unsafe.Pointer) {
	sz := uintptr(v.dtype.Size())
	dst := unsafe.Add(v.base, uintptr(v.memOffset(i))*sz)
	copyElem(dst, src, sz)
}

func (v *linearView) memOffset(flat int) int {
	off := 0
	rem := flat
	for k := 0; k < len(v.logical); k++ {
		idx := rem / v.logical[k]
		rem %= v.logical[k]
		off += idx * v.strides[k]
	}
	return off
}

// chainView remaps flat indices into a delegating parent's flat order.
// Chains of chainViews compose at construction, so depth stays at one.
type chainView struct {
	parent  Storage
	offset  int   // parent flat element offset
	shape   Shape
	strides []int // steps in the parent's flat index space
	logical []int
}

func (v *chainView) Shape() Shape    { return v.shape }
func (v *chainView) DType() DataType { return v.parent.DType() }
func (v *chainView) Len() int        { return v.shape.NumElements() }

func (v *chainView) Similar(shape Shape, dtype DataType) (Storage, error) {
	return v.parent.Similar(shape, dtype)
}

func (v *chainView) Load(i int, dst unsafe.Pointer) {
	v.parent.Load(v.parentIndex(i), dst)
}

func (v *chainView) Store(i int, src unsafe.Pointer) {
	v.parent.Store(v.parentIndex(i), src)
}

func (v *chainView) parentIndex(flat int) int {
	idx := v.offset
	rem := flat
	for k := 0; k < len(v.logical); k++ {
		d := rem / v.logical[k]
		rem %= v.logical[k]
		idx += d * v.strides[k]
	}
	return idx
}

func copyElem(dst, src unsafe.Pointer, sz uintptr) {
	copy(unsafe.Slice((*byte)(dst), sz), unsafe.Slice((*byte)(src), sz))
}

// Slice returns a view of dimension dim restricted to the half-open range
// [lo, hi). The view shares the parent's memory and keeps the unchecked
// access contract: the range is not validated against the parent shape, an
// out-of-range slice is undefined behavior exactly like an out-of-range
// element access. The view's validity is bounded by the parent storage's
// lifetime, which the view pins.
func (a *Array[T]) Slice(dim, lo, hi int) *Array[T] {
	shape := a.shape.Clone()
	shape[dim] = hi - lo

	if a.base != nil {
		parent := a.storage
		if lv, ok := parent.(*linearView); ok {
			// Keep the original memory alive, not the intermediate view.
			parent = lv.parent
		}
		var zero T
		v := &linearView{
			parent:  parent,
			base:    unsafe.Add(a.base, uintptr(lo*a.lstrides[dim])*unsafe.Sizeof(zero)),
			shape:   shape,
			strides: append([]int(nil), a.lstrides...),
			dtype:   a.DType(),
			logical: shape.ComputeStrides(),
		}
		return Wrap[T](v)
	}

	if cv, ok := a.storage.(*chainView); ok {
		v := &chainView{
			parent:  cv.parent,
			offset:  cv.offset + lo*cv.strides[dim],
			shape:   shape,
			strides: append([]int(nil), cv.strides...),
			logical: shape.ComputeStrides(),
		}
		return Wrap[T](v)
	}

	v := &chainView{
		parent:  a.storage,
		offset:  lo * a.strides[dim],
		shape:   shape,
		strides: append([]int(nil), a.strides...),
		logical: shape.ComputeStrides(),
	}
	return Wrap[T](v)
}
