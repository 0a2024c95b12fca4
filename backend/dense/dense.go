// Copyright 2026 Unbound ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package dense

import (
	"github.com/unbound-ml/unbound/array"
	"github.com/unbound-ml/unbound/dispatch"
	internaldense "github.com/unbound-ml/unbound/internal/backend/dense"
	"github.com/unbound-ml/unbound/internal/parallel"
)

// Storage is the dense row-major storage backend.
//
// Elements live in one contiguous reference-counted buffer; views
// produced by reshape and transpose share it. Storage implements both
// array.Storage and array.Linear, so wrappers take the direct-indexing
// fast path over it.
type Storage = internaldense.Storage

// Compile-time checks that Storage implements the storage contracts.
var (
	_ array.Storage = (*Storage)(nil)
	_ array.Linear  = (*Storage)(nil)
)

// New creates zero-filled dense storage with the given shape and
// element type.
//
// Example:
//
//	s, err := dense.New(array.Shape{2, 3}, array.Float32)
func New(shape array.Shape, dtype array.DataType) (*Storage, error) {
	return internaldense.New(shape, dtype)
}

// RegisterRules adds the dense forwarding rules to a registry. The
// standard registry from dispatch.NewRegistry already includes them.
func RegisterRules(r *dispatch.Registry) error {
	return internaldense.RegisterRules(r)
}

// SetParallelism replaces the worker-pool settings used by the dense
// kernels: up to workers goroutines, splitting only ranges of at least
// minChunkSize elements. workers <= 1 forces sequential execution.
// Call it during startup, before any operations run.
func SetParallelism(workers, minChunkSize int) {
	cfg := parallel.DefaultConfig()
	cfg.Enabled = workers > 1
	if workers > 0 {
		cfg.NumWorkers = workers
	}
	if minChunkSize > 0 {
		cfg.MinChunkSize = minChunkSize
	}
	internaldense.SetParallelism(cfg)
}
