package sparse

import (
	"github.com/unbound-ml/unbound/errors"
	"github.com/unbound-ml/unbound/internal/array"
	"github.com/unbound-ml/unbound/internal/backend/dense"
	"github.com/unbound-ml/unbound/internal/dispatch"
	"github.com/unbound-ml/unbound/internal/parallel"
)

// Operations specific to the sparse family. The shared operations (matmul,
// sum) reuse the wrapper layer's identifiers, so a CSR operand routes
// through its specialization transparently.
const (
	OpToDense   = "sparse.todense"
	OpFromDense = "sparse.fromdense"
	OpNNZ       = "sparse.nnz"
)

var par = parallel.DefaultConfig()

// SetParallelism replaces the chunking config used by the sparse kernels.
// Call it during startup, before any operations run.
func SetParallelism(cfg parallel.Config) {
	par = cfg
}

// ruleMatMul multiplies a CSR by a dense matrix, row by row over the stored
// entries only.
func ruleMatMul(args []any) (any, error) {
	a, b := args[0].(*CSR), args[1].(*dense.Storage)
	if b.DType() != array.Float64 {
		return nil, errors.Newf("dtype mismatch: %s vs %s", array.Float64, b.DType())
	}

	bShape := b.Shape()
	if bShape.Rank() != 2 {
		return nil, errors.Newf("only rank-2 arrays supported, got rank %d", bShape.Rank())
	}
	m, k := a.rows, a.cols
	if bShape[0] != k {
		return nil, errors.Newf("shape mismatch [%d,%d] @ [%d,%d]", m, k, bShape[0], bShape[1])
	}
	n := bShape[1]

	result, err := dense.New(array.Shape{m, n}, array.Float64)
	if err != nil {
		return nil, err
	}

	out := result.AsFloat64()
	bData := b.AsFloat64()
	parallel.ForRows(m, n, func(row int) {
		for idx := a.rowPtr[row]; idx < a.rowPtr[row+1]; idx++ {
			kIdx, v := a.colInd[idx], a.values[idx]
			for j := 0; j < n; j++ {
				out[row*n+j] += v * bData[kIdx*n+j]
			}
		}
	}, par)

	return result, nil
}

// ruleSum folds the stored entries; structural zeros contribute nothing.
func ruleSum(args []any) (any, error) {
	a := args[0].(*CSR)
	sum := 0.0
	for _, v := range a.values {
		sum += v
	}
	return sum, nil
}

func ruleToDense(args []any) (any, error) {
	a := args[0].(*CSR)

	result, err := dense.New(a.Shape(), array.Float64)
	if err != nil {
		return nil, err
	}

	out := result.AsFloat64()
	for row := 0; row < a.rows; row++ {
		for idx := a.rowPtr[row]; idx < a.rowPtr[row+1]; idx++ {
			out[row*a.cols+a.colInd[idx]] = a.values[idx]
		}
	}
	return result, nil
}

func ruleFromDense(args []any) (any, error) {
	return FromStorage(args[0].(*dense.Storage))
}

func ruleNNZ(args []any) (any, error) {
	return args[0].(*CSR).NNZ(), nil
}

// RegisterRules installs the sparse specializations.
func RegisterRules(r *dispatch.Registry) error {
	cs := dispatch.Exact((*CSR)(nil))
	ds := dispatch.Exact((*dense.Storage)(nil))

	rules := []dispatch.Rule{
		{Op: array.OpMatMul, Patterns: []dispatch.Pattern{cs, ds}, Fn: ruleMatMul},
		{Op: array.OpSum, Patterns: []dispatch.Pattern{cs}, Fn: ruleSum},
		{Op: OpToDense, Patterns: []dispatch.Pattern{cs}, Fn: ruleToDense},
		{Op: OpFromDense, Patterns: []dispatch.Pattern{ds}, Fn: ruleFromDense},
		{Op: OpNNZ, Patterns: []dispatch.Pattern{cs}, Fn: ruleNNZ},
	}

	for _, rule := range rules {
		if err := r.Register(rule); err != nil {
			return err
		}
	}
	return nil
}
