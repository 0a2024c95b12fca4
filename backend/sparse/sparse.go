// Copyright 2026 Unbound ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package sparse

import (
	"github.com/unbound-ml/unbound/array"
	"github.com/unbound-ml/unbound/dispatch"
	internalsparse "github.com/unbound-ml/unbound/internal/backend/sparse"
)

// CSR is a compressed-sparse-row float64 matrix storage.
//
// CSR implements array.Storage but not array.Linear, so wrappers reach
// its elements through Load and Store rather than direct indexing.
// Stored entries cost memory; zeros do not.
type CSR = internalsparse.CSR

// Compile-time check that CSR implements the storage contract.
var _ array.Storage = (*CSR)(nil)

// Operation names specific to sparse storage.
const (
	OpToDense   = internalsparse.OpToDense
	OpFromDense = internalsparse.OpFromDense
	OpNNZ       = internalsparse.OpNNZ
)

// NewCSR creates an empty rows×cols sparse matrix.
//
// Example:
//
//	m, err := sparse.NewCSR(1000, 1000)
//	m.Set(3, 7, 2.5)
//	a := array.Wrap[float64](m)
func NewCSR(rows, cols int) (*CSR, error) {
	return internalsparse.NewCSR(rows, cols)
}

// FromStorage converts any float64 2D storage to CSR, keeping only the
// nonzero entries.
func FromStorage(s array.Storage) (*CSR, error) {
	return internalsparse.FromStorage(s)
}

// RegisterRules adds the sparse forwarding rules to a registry. The
// standard registry from dispatch.NewRegistry already includes them.
func RegisterRules(r *dispatch.Registry) error {
	return internalsparse.RegisterRules(r)
}
