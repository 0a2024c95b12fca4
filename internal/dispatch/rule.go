package dispatch

import (
	"reflect"
	"strings"

	"github.com/unbound-ml/unbound/errors"
)

// RuleFunc executes one forwarding rule. Arguments arrive fully unwrapped:
// wrapped operands are opened to their storages before the call, in
// argument order. The result goes through the result-wrapping policy, so a
// RuleFunc returns plain storages and scalars, never wrappers.
//
// A mutating rule returns the storage it mutated (its first argument);
// result identity is how the forwarder knows to hand back the receiver's
// original wrapper.
type RuleFunc func(args []any) (any, error)

// Rule is one forwarding entry: an operation identifier, one pattern per
// argument position, and the specialized implementation to forward to.
type Rule struct {
	Op       string
	Patterns []Pattern
	Fn       RuleFunc
}

func (r *Rule) validate() error {
	if r.Op == "" {
		return errors.New("dispatch: rule without operation identifier")
	}
	if r.Fn == nil {
		return errors.Newf("dispatch: rule for %q without implementation", r.Op)
	}
	return nil
}

// matches reports whether every argument position accepts the given types.
// Arity must agree exactly.
func (r *Rule) matches(types []reflect.Type) bool {
	if len(types) != len(r.Patterns) {
		return false
	}
	for i, p := range r.Patterns {
		if !p.Matches(types[i]) {
			return false
		}
	}
	return true
}

// dominates reports whether r is pointwise at least as specific as other
// and strictly more specific in at least one position.
func (r *Rule) dominates(other *Rule) bool {
	strict := false
	for i := range r.Patterns {
		a := r.Patterns[i].specificity()
		b := other.Patterns[i].specificity()
		if a < b {
			return false
		}
		if a > b {
			strict = true
		}
	}
	return strict
}

// conflictsWith reports whether some call could match both rules without
// one being strictly more specific than the other. Such pairs are rejected
// at registration.
func (r *Rule) conflictsWith(other *Rule) bool {
	if len(r.Patterns) != len(other.Patterns) {
		return false
	}
	for i := range r.Patterns {
		if !r.Patterns[i].overlaps(other.Patterns[i]) {
			return false
		}
	}
	// Overlapping tuples are fine only when strictly ordered.
	return !r.dominates(other) && !other.dominates(r)
}

func (r *Rule) signature() string {
	parts := make([]string, len(r.Patterns))
	for i, p := range r.Patterns {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}
