package dispatch

import (
	"fmt"
	"strings"

	"github.com/unbound-ml/unbound/errors"
)

// Sentinels for errors.Is checks across package boundaries. The concrete
// error types below carry the diagnostic detail.
var (
	// ErrNoMatchingRule reports a dispatch miss that the capability mode
	// did not permit to fall back.
	ErrNoMatchingRule = errors.New("no matching forwarding rule")

	// ErrAmbiguousRule reports two forwarding rules that cannot be ordered
	// by specificity.
	ErrAmbiguousRule = errors.New("ambiguous forwarding rules")
)

// NoMatchingRuleError carries the operation identifier and the argument
// type signature of a failed resolution.
type NoMatchingRuleError struct {
	Op        string
	Signature []string
}

func (e *NoMatchingRuleError) Error() string {
	return fmt.Sprintf("no matching forwarding rule for %q with argument types (%s)",
		e.Op, strings.Join(e.Signature, ", "))
}

func (e *NoMatchingRuleError) Unwrap() error { return ErrNoMatchingRule }

// AmbiguousRuleError reports two rules of equal specificity for the same
// operation. Raised at registration for every statically decidable
// overlap; raised at resolution only for the interface-pattern overlaps
// registration cannot decide.
type AmbiguousRuleError struct {
	Op   string
	A, B string // the two pattern tuples
}

func (e *AmbiguousRuleError) Error() string {
	return fmt.Sprintf("ambiguous forwarding rules for %q: (%s) vs (%s)", e.Op, e.A, e.B)
}

func (e *AmbiguousRuleError) Unwrap() error { return ErrAmbiguousRule }
