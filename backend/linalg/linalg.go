// Copyright 2026 Unbound ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package linalg

import (
	"github.com/unbound-ml/unbound/dispatch"
	internallinalg "github.com/unbound-ml/unbound/internal/backend/linalg"
)

// Factorization is an opaque LU decomposition handle.
//
// A Factorization is not a storage, so the dispatch layer passes it
// across the wrapping boundary untouched: operations return it bare and
// accept it bare. It exists to amortize one decomposition over many
// solves.
//
// Example:
//
//	f, err := a.Do("linalg.lu") // returns *linalg.Factorization
//	x1, err := a.Do("linalg.lusolve", f, b1)
//	x2, err := a.Do("linalg.lusolve", f, b2)
type Factorization = internallinalg.Factorization

// Operation names served by the linear-algebra bridge. All of them
// require float64 dense operands.
const (
	OpSolve   = internallinalg.OpSolve
	OpDet     = internallinalg.OpDet
	OpInverse = internallinalg.OpInverse
	OpDot     = internallinalg.OpDot
	OpLU      = internallinalg.OpLU
	OpLUSolve = internallinalg.OpLUSolve
)

// RegisterRules adds the linear-algebra forwarding rules to a registry.
// The standard registry from dispatch.NewRegistry already includes
// them.
func RegisterRules(r *dispatch.Registry) error {
	return internallinalg.RegisterRules(r)
}
