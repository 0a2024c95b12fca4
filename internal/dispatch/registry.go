package dispatch

import (
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/unbound-ml/unbound/errors"
	"github.com/unbound-ml/unbound/internal/array"
	"github.com/unbound-ml/unbound/internal/capmode"
	"github.com/unbound-ml/unbound/logger"
)

// Registry resolves operations against forwarding rules and generic
// fallbacks. It implements array.Engine, so installing a registry makes
// wrapper methods dispatch through it.
//
// Resolution is planned once per (operation, argument type signature) and
// cached. The capability mode is consulted only while building a plan:
// flipping the mode afterwards leaves existing plans untouched, the same
// way already-specialized call paths survive a mode change until the
// process re-specializes. ResetPlans discards every cached decision.
type Registry struct {
	mu       sync.RWMutex
	rules    map[string][]*Rule
	generics map[string]RuleFunc

	plans sync.Map // planKey -> *plan
}

var _ array.Engine = (*Registry)(nil)

type planKey struct {
	op  string
	sig string
}

// plan is a frozen resolution: either a specialized rule or the generic
// fallback the mode permitted when the plan was built.
type plan struct {
	rule    *Rule
	generic RuleFunc
}

// New creates an empty registry. Backend catalogs populate it through
// Register and RegisterGeneric.
func New() *Registry {
	return &Registry{
		rules:    make(map[string][]*Rule),
		generics: make(map[string]RuleFunc),
	}
}

// Register adds a forwarding rule. It fails with AmbiguousRuleError when
// the rule cannot be ordered by specificity against an already registered
// rule for the same operation, and invalidates cached plans for the
// operation so the new rule is visible to later calls.
func (r *Registry) Register(rule Rule) error {
	if err := rule.validate(); err != nil {
		return err
	}
	added := &Rule{Op: rule.Op, Patterns: append([]Pattern(nil), rule.Patterns...), Fn: rule.Fn}

	r.mu.Lock()
	for _, existing := range r.rules[added.Op] {
		if existing.conflictsWith(added) {
			r.mu.Unlock()
			return &AmbiguousRuleError{Op: added.Op, A: existing.signature(), B: added.signature()}
		}
	}
	r.rules[added.Op] = append(r.rules[added.Op], added)
	r.mu.Unlock()

	r.invalidate(added.Op)
	logger.Debugw("registered forwarding rule", "op", added.Op, "patterns", added.signature())
	return nil
}

// MustRegister is Register for wiring-time catalogs, where a conflict is a
// programming error.
func (r *Registry) MustRegister(rule Rule) {
	if err := r.Register(rule); err != nil {
		panic(err)
	}
}

// RegisterGeneric installs the structural-fallback implementation for an
// operation. The fallback works through the storage contract alone, so one
// implementation serves every storage kind.
func (r *Registry) RegisterGeneric(op string, fn RuleFunc) {
	r.mu.Lock()
	r.generics[op] = fn
	r.mu.Unlock()
	r.invalidate(op)
}

// Ops returns every operation with at least one rule or a generic
// fallback, sorted.
func (r *Registry) Ops() []string {
	r.mu.RLock()
	seen := make(map[string]struct{}, len(r.rules)+len(r.generics))
	for op := range r.rules {
		seen[op] = struct{}{}
	}
	for op := range r.generics {
		seen[op] = struct{}{}
	}
	r.mu.RUnlock()

	ops := make([]string, 0, len(seen))
	for op := range seen {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// ResetPlans discards all cached dispatch decisions. After a capability
// mode change this is the in-process equivalent of restarting.
func (r *Registry) ResetPlans() {
	r.plans.Range(func(k, _ any) bool {
		r.plans.Delete(k)
		return true
	})
}

func (r *Registry) invalidate(op string) {
	r.plans.Range(func(k, _ any) bool {
		if k.(planKey).op == op {
			r.plans.Delete(k)
		}
		return true
	})
}

// Call resolves and executes an operation. Wrapped arguments are opened to
// their storages before matching; the result goes back through the
// wrapping policy. Call mutates no registry state beyond the plan cache
// and reads the capability mode only on a cache miss.
func (r *Registry) Call(op string, args ...any) (any, error) {
	unwrapped := make([]any, len(args))
	anyWrapped := false
	var receiver array.Wrapped
	for i, a := range args {
		if w, ok := a.(array.Wrapped); ok {
			anyWrapped = true
			if i == 0 {
				receiver = w
			}
			unwrapped[i] = w.Unwrap()
		} else {
			unwrapped[i] = a
		}
	}

	types := typesOf(unwrapped)
	key := planKey{op: op, sig: joinTypeNames(types)}

	p, err := r.planFor(key, op, types)
	if err != nil {
		return nil, err
	}

	var out any
	if p.rule != nil {
		out, err = p.rule.Fn(unwrapped)
	} else {
		out, err = p.generic(unwrapped)
	}
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	// A rule that hands back the receiver's own storage mutated in place
	// keeps the receiver's wrapper identity.
	if receiver != nil {
		if s, ok := out.(array.Storage); ok && s == receiver.Unwrap() {
			return receiver, nil
		}
	}
	return applyPolicy(out, anyWrapped), nil
}

// planFor returns the cached plan or builds one. Failed resolutions are
// never cached: a miss under Explicit mode must succeed again as soon as
// the mode allows it.
func (r *Registry) planFor(key planKey, op string, types []reflect.Type) (*plan, error) {
	if cached, ok := r.plans.Load(key); ok {
		return cached.(*plan), nil
	}

	built, err := r.buildPlan(op, types)
	if err != nil {
		return nil, err
	}
	actual, _ := r.plans.LoadOrStore(key, built)
	return actual.(*plan), nil
}

func (r *Registry) buildPlan(op string, types []reflect.Type) (*plan, error) {
	r.mu.RLock()
	var matches []*Rule
	for _, rule := range r.rules[op] {
		if rule.matches(types) {
			matches = append(matches, rule)
		}
	}
	generic := r.generics[op]
	r.mu.RUnlock()

	if len(matches) > 0 {
		best, err := mostSpecific(op, matches)
		if err != nil {
			return nil, err
		}
		return &plan{rule: best}, nil
	}

	if capmode.Get() == capmode.Explicit || generic == nil {
		return nil, &NoMatchingRuleError{Op: op, Signature: typeNames(types)}
	}
	return &plan{generic: generic}, nil
}

// mostSpecific picks the rule dominating every other match. Registration
// guarantees an order for every statically decidable overlap; the
// remaining case (one concrete type satisfying two distinct interface
// patterns) surfaces here.
func mostSpecific(op string, matches []*Rule) (*Rule, error) {
	best := matches[0]
	for _, m := range matches[1:] {
		if m.dominates(best) {
			best = m
		}
	}
	for _, m := range matches {
		if m != best && !best.dominates(m) {
			return nil, &AmbiguousRuleError{Op: op, A: best.signature(), B: m.signature()}
		}
	}
	return best, nil
}

func typesOf(args []any) []reflect.Type {
	types := make([]reflect.Type, len(args))
	for i, a := range args {
		types[i] = reflect.TypeOf(a) // nil for untyped nil
	}
	return types
}

func typeNames(types []reflect.Type) []string {
	names := make([]string, len(types))
	for i, t := range types {
		if t == nil {
			names[i] = "<nil>"
		} else {
			names[i] = t.String()
		}
	}
	return names
}

func joinTypeNames(types []reflect.Type) string {
	return strings.Join(typeNames(types), "|")
}
