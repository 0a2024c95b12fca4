package linalg

import (
	"gonum.org/v1/gonum/mat"

	"github.com/unbound-ml/unbound/errors"
	"github.com/unbound-ml/unbound/internal/backend/dense"
	"github.com/unbound-ml/unbound/internal/dispatch"
)

// Operations served by the gonum bridge.
const (
	OpSolve   = "linalg.solve"
	OpDet     = "linalg.det"
	OpInverse = "linalg.inverse"
	OpDot     = "linalg.dot"
	OpLU      = "linalg.lu"
	OpLUSolve = "linalg.lusolve"
)

// ruleSolve solves A @ X = B for X.
func ruleSolve(args []any) (any, error) {
	a, err := toMat(args[0].(*dense.Storage))
	if err != nil {
		return nil, err
	}
	b, err := toMat(args[1].(*dense.Storage))
	if err != nil {
		return nil, err
	}

	var x mat.Dense
	if err := x.Solve(a, b); err != nil {
		return nil, errors.Wrap(err, "solve")
	}
	return fromMat(&x)
}

func ruleDet(args []any) (any, error) {
	a, err := toMat(args[0].(*dense.Storage))
	if err != nil {
		return nil, err
	}
	r, c := a.Dims()
	if r != c {
		return nil, errors.Newf("square matrix required, got %dx%d", r, c)
	}
	return mat.Det(a), nil
}

func ruleInverse(args []any) (any, error) {
	a, err := toMat(args[0].(*dense.Storage))
	if err != nil {
		return nil, err
	}

	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return nil, errors.Wrap(err, "inverse")
	}
	return fromMat(&inv)
}

func ruleDot(args []any) (any, error) {
	a, err := toVec(args[0].(*dense.Storage))
	if err != nil {
		return nil, err
	}
	b, err := toVec(args[1].(*dense.Storage))
	if err != nil {
		return nil, err
	}
	if a.Len() != b.Len() {
		return nil, errors.Newf("length mismatch: %d vs %d", a.Len(), b.Len())
	}
	return mat.Dot(a, b), nil
}

// ruleLU factorizes a square matrix into an opaque handle for repeated
// solves against the same system.
func ruleLU(args []any) (any, error) {
	a, err := toMat(args[0].(*dense.Storage))
	if err != nil {
		return nil, err
	}
	r, c := a.Dims()
	if r != c {
		return nil, errors.Newf("square matrix required, got %dx%d", r, c)
	}

	lu := &mat.LU{}
	lu.Factorize(a)
	return &Factorization{lu: lu, n: r}, nil
}

func ruleLUSolve(args []any) (any, error) {
	f := args[0].(*Factorization)
	b, err := toMat(args[1].(*dense.Storage))
	if err != nil {
		return nil, err
	}
	br, _ := b.Dims()
	if br != f.n {
		return nil, errors.Newf("system order %d does not match rhs rows %d", f.n, br)
	}

	var x mat.Dense
	if err := f.lu.SolveTo(&x, false, b); err != nil {
		return nil, errors.Wrap(err, "lusolve")
	}
	return fromMat(&x)
}

// RegisterRules installs the gonum-backed specializations. They key on the
// dense storage type; other families convert first.
func RegisterRules(r *dispatch.Registry) error {
	ds := dispatch.Exact((*dense.Storage)(nil))
	fz := dispatch.Exact((*Factorization)(nil))

	rules := []dispatch.Rule{
		{Op: OpSolve, Patterns: []dispatch.Pattern{ds, ds}, Fn: ruleSolve},
		{Op: OpDet, Patterns: []dispatch.Pattern{ds}, Fn: ruleDet},
		{Op: OpInverse, Patterns: []dispatch.Pattern{ds}, Fn: ruleInverse},
		{Op: OpDot, Patterns: []dispatch.Pattern{ds, ds}, Fn: ruleDot},
		{Op: OpLU, Patterns: []dispatch.Pattern{ds}, Fn: ruleLU},
		{Op: OpLUSolve, Patterns: []dispatch.Pattern{fz, ds}, Fn: ruleLUSolve},
	}

	for _, rule := range rules {
		if err := r.Register(rule); err != nil {
			return err
		}
	}
	return nil
}
