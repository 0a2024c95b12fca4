// Package sparse implements a compressed sparse row storage for float64
// matrices. A CSR satisfies the storage contract, so wrappers, views and
// the structural fallbacks all work over it; the rules in this package add
// the specializations where sparsity pays off.
package sparse

import (
	"fmt"
	"unsafe"

	"github.com/unbound-ml/unbound/internal/array"
)

// CSR is a rank-2 float64 matrix in compressed sparse row form. Column
// indices within a row are kept sorted.
type CSR struct {
	rows, cols int
	rowPtr     []int // len rows+1, rowPtr[r]..rowPtr[r+1] indexes the row's entries
	colInd     []int
	values     []float64
}

var _ array.Storage = (*CSR)(nil)

// NewCSR creates an empty (all-zero) rows x cols matrix.
func NewCSR(rows, cols int) (*CSR, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", rows, cols)
	}
	return &CSR{
		rows:   rows,
		cols:   cols,
		rowPtr: make([]int, rows+1),
	}, nil
}

// Shape returns {rows, cols}.
func (c *CSR) Shape() array.Shape {
	return array.Shape{c.rows, c.cols}
}

// DType always reports Float64; CSR stores nothing else.
func (c *CSR) DType() array.DataType {
	return array.Float64
}

// Len returns rows*cols, the logical element count including zeros.
func (c *CSR) Len() int {
	return c.rows * c.cols
}

// NNZ returns the number of stored entries.
func (c *CSR) NNZ() int {
	return len(c.values)
}

// Similar allocates an empty CSR. Only rank-2 float64 layouts exist in this
// family.
func (c *CSR) Similar(shape array.Shape, dtype array.DataType) (array.Storage, error) {
	if dtype != array.Float64 {
		return nil, fmt.Errorf("csr holds float64 only, not %s", dtype)
	}
	if shape.Rank() != 2 {
		return nil, fmt.Errorf("csr is rank-2 only, got shape %v", shape)
	}
	return NewCSR(shape[0], shape[1])
}

// Load reads the element at flat index i. The index is not validated.
func (c *CSR) Load(i int, dst unsafe.Pointer) {
	row, col := i/c.cols, i%c.cols
	v := 0.0
	for idx := c.rowPtr[row]; idx < c.rowPtr[row+1]; idx++ {
		if c.colInd[idx] == col {
			v = c.values[idx]
			break
		}
		if c.colInd[idx] > col {
			break
		}
	}
	*(*float64)(dst) = v
}

// Store writes the element at flat index i, inserting an entry when the
// position was structurally zero. The index is not validated.
func (c *CSR) Store(i int, src unsafe.Pointer) {
	v := *(*float64)(src)
	row, col := i/c.cols, i%c.cols

	idx := c.rowPtr[row]
	hi := c.rowPtr[row+1]
	for idx < hi && c.colInd[idx] < col {
		idx++
	}
	if idx < hi && c.colInd[idx] == col {
		c.values[idx] = v
		return
	}
	if v == 0 {
		return
	}

	c.colInd = append(c.colInd, 0)
	copy(c.colInd[idx+1:], c.colInd[idx:])
	c.colInd[idx] = col

	c.values = append(c.values, 0)
	copy(c.values[idx+1:], c.values[idx:])
	c.values[idx] = v

	for r := row + 1; r <= c.rows; r++ {
		c.rowPtr[r]++
	}
}

// Set writes value at (row, col) through the insertion path.
func (c *CSR) Set(row, col int, v float64) {
	c.Store(row*c.cols+col, unsafe.Pointer(&v))
}

// At reads the value at (row, col).
func (c *CSR) At(row, col int) float64 {
	var v float64
	c.Load(row*c.cols+col, unsafe.Pointer(&v))
	return v
}

// FromStorage compresses any rank-2 float64 storage into a CSR.
func FromStorage(s array.Storage) (*CSR, error) {
	shape := s.Shape()
	if shape.Rank() != 2 {
		return nil, fmt.Errorf("csr is rank-2 only, got shape %v", shape)
	}
	if s.DType() != array.Float64 {
		return nil, fmt.Errorf("csr holds float64 only, not %s", s.DType())
	}

	rows, cols := shape[0], shape[1]
	c, err := NewCSR(rows, cols)
	if err != nil {
		return nil, err
	}

	var v float64
	for r := 0; r < rows; r++ {
		for col := 0; col < cols; col++ {
			s.Load(r*cols+col, unsafe.Pointer(&v))
			if v != 0 {
				c.colInd = append(c.colInd, col)
				c.values = append(c.values, v)
			}
		}
		c.rowPtr[r+1] = len(c.values)
	}
	return c, nil
}

// String reports the matrix layout for logs and test failures.
func (c *CSR) String() string {
	return fmt.Sprintf("CSR(%dx%d, nnz=%d)", c.rows, c.cols, c.NNZ())
}
