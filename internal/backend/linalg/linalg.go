// Package linalg bridges dense float64 storages to gonum's mat package for
// the decompositions a naive kernel cannot reasonably provide: solving,
// determinants, inversion and LU factorization.
package linalg

import (
	"gonum.org/v1/gonum/mat"

	"github.com/unbound-ml/unbound/errors"
	"github.com/unbound-ml/unbound/internal/array"
	"github.com/unbound-ml/unbound/internal/backend/dense"
)

// Factorization is an opaque LU handle. The wrapper layer treats it as a
// plain value: a result carrying one passes through unwrapped, and a rule
// can key on its concrete type to consume it again.
type Factorization struct {
	lu *mat.LU
	n  int
}

// Order returns the dimension of the factorized matrix.
func (f *Factorization) Order() int {
	return f.n
}

// Det returns the determinant from the factorization.
func (f *Factorization) Det() float64 {
	return f.lu.Det()
}

// toMat views a rank-2 float64 storage as a gonum matrix. The data is
// copied; gonum owns its backing slice.
func toMat(s *dense.Storage) (*mat.Dense, error) {
	if s.DType() != array.Float64 {
		return nil, errors.Newf("float64 required, got %s", s.DType())
	}
	shape := s.Shape()
	if shape.Rank() != 2 {
		return nil, errors.Newf("rank-2 array required, got shape %v", shape)
	}
	data := append([]float64(nil), s.AsFloat64()...)
	return mat.NewDense(shape[0], shape[1], data), nil
}

// fromMat copies a gonum matrix into a fresh dense storage.
func fromMat(m *mat.Dense) (*dense.Storage, error) {
	r, c := m.Dims()
	out, err := dense.New(array.Shape{r, c}, array.Float64)
	if err != nil {
		return nil, err
	}

	raw := m.RawMatrix()
	data := out.AsFloat64()
	for i := 0; i < r; i++ {
		copy(data[i*c:(i+1)*c], raw.Data[i*raw.Stride:i*raw.Stride+c])
	}
	return out, nil
}

// toVec views a rank-1 float64 storage as a gonum vector.
func toVec(s *dense.Storage) (*mat.VecDense, error) {
	if s.DType() != array.Float64 {
		return nil, errors.Newf("float64 required, got %s", s.DType())
	}
	shape := s.Shape()
	if shape.Rank() != 1 {
		return nil, errors.Newf("rank-1 array required, got shape %v", shape)
	}
	data := append([]float64(nil), s.AsFloat64()...)
	return mat.NewVecDense(shape[0], data), nil
}
