// Copyright 2026 Unbound ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package array

import (
	"github.com/unbound-ml/unbound/internal/capmode"
)

// Mode selects how the dispatch layer treats operations that have no
// registered forwarding rule.
type Mode = capmode.Mode

// Capability mode constants.
const (
	// Structural lets unmatched operations fall back to the generic
	// implementation, treating every wrapper as an ordinary array.
	// This is the default.
	Structural Mode = capmode.Structural

	// Explicit requires a registered rule for every operation and fails
	// fast when one is missing.
	Explicit Mode = capmode.Explicit
)

// CapabilityMode returns the process-wide capability mode.
func CapabilityMode() Mode {
	return capmode.Get()
}

// SetCapabilityMode changes the process-wide capability mode.
//
// The mode is consulted only when the dispatch layer builds a fresh
// execution plan; plans already cached keep the decision they were
// built under. A process that must fully adopt a new mode resets its
// plan cache or restarts.
//
// Example:
//
//	array.SetCapabilityMode(array.Explicit)
func SetCapabilityMode(m Mode) {
	capmode.Set(m)
}

// ParseMode maps a configuration name ("structural" or "explicit") to
// its Mode.
func ParseMode(s string) (Mode, error) {
	return capmode.Parse(s)
}
