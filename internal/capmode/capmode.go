// Package capmode holds the process-wide capability mode.
//
// The mode decides what happens when dispatch finds no explicit forwarding
// rule for an operation: Structural falls back to the generic
// capability-contract implementation, Explicit fails the call. Reads are a
// single atomic load so the dispatch miss path stays cheap; writes are rare
// administrative events.
//
// The dispatch layer consults the mode only when it builds a fresh
// execution plan. Plans already cached keep the decision they were built
// under; a process that must fully adopt a new mode resets its plans or
// restarts. Persisting the mode across restarts is the config package's
// job, not this one's.
package capmode

import (
	"sync/atomic"

	"github.com/unbound-ml/unbound/errors"
)

// Mode selects how unmatched operations are handled.
type Mode int32

const (
	// Structural makes wrappers satisfy the generic array contract, so
	// unmatched operations degrade to the generic implementation.
	Structural Mode = iota

	// Explicit requires a registered forwarding rule for every operation
	// and fails fast when one is missing.
	Explicit
)

// String returns the mode's configuration name.
func (m Mode) String() string {
	switch m {
	case Structural:
		return "structural"
	case Explicit:
		return "explicit"
	default:
		return "unknown"
	}
}

// Parse maps a configuration name to its Mode.
func Parse(s string) (Mode, error) {
	switch s {
	case "structural":
		return Structural, nil
	case "explicit":
		return Explicit, nil
	default:
		return 0, errors.Newf("unknown capability mode %q (want structural or explicit)", s)
	}
}

var current atomic.Int32 // zero value is Structural, the default

// Get returns the current capability mode.
func Get() Mode {
	return Mode(current.Load())
}

// Set stores a new capability mode. New dispatch plans see the new value;
// existing plans are unaffected.
func Set(m Mode) {
	current.Store(int32(m))
}
