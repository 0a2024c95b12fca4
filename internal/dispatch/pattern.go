// Package dispatch resolves named operations against registered forwarding
// rules, falls back to generic implementations by capability mode, and
// re-wraps results.
package dispatch

import (
	"fmt"
	"reflect"
)

type patternKind int

// Specificity tiers, least specific first. The numeric order is the
// specificity order used for dominance comparison.
const (
	kindAny patternKind = iota
	kindImpl
	kindExact
)

// Pattern matches one argument position of a forwarding rule. A pattern is
// one of three kinds: Exact (one concrete type), Impl (any type satisfying
// an interface), or AnyArg (anything). Exact beats Impl beats AnyArg when
// several rules match the same call.
type Pattern struct {
	kind patternKind
	typ  reflect.Type
}

// Exact matches exactly the dynamic type of prototype. The prototype's
// value is ignored; pass a zero value, typically a nil typed pointer.
func Exact(prototype any) Pattern {
	t := reflect.TypeOf(prototype)
	if t == nil {
		panic("dispatch: Exact needs a typed prototype, got untyped nil")
	}
	return Pattern{kind: kindExact, typ: t}
}

// ExactType matches exactly the given reflect.Type.
func ExactType(t reflect.Type) Pattern {
	if t == nil {
		panic("dispatch: ExactType(nil)")
	}
	return Pattern{kind: kindExact, typ: t}
}

// Impl matches any type implementing the interface I.
func Impl[I any]() Pattern {
	t := reflect.TypeOf((*I)(nil)).Elem()
	if t.Kind() != reflect.Interface {
		panic(fmt.Sprintf("dispatch: Impl requires an interface type, got %s", t))
	}
	return Pattern{kind: kindImpl, typ: t}
}

// AnyArg matches every argument, including nil.
func AnyArg() Pattern {
	return Pattern{kind: kindAny}
}

// Matches reports whether the pattern accepts an argument of dynamic type
// t. A nil t (an untyped nil argument) only matches AnyArg.
func (p Pattern) Matches(t reflect.Type) bool {
	switch p.kind {
	case kindAny:
		return true
	case kindImpl:
		return t != nil && t.Implements(p.typ)
	case kindExact:
		return t == p.typ
	default:
		return false
	}
}

// specificity is the dominance score of this pattern alone.
func (p Pattern) specificity() int {
	return int(p.kind)
}

// overlaps reports whether some concrete argument type could match both
// patterns. Distinct interface patterns are treated as disjoint: their true
// overlap is undecidable without a concrete type, so registration lets them
// coexist and resolution reports ambiguity if a call ever matches both.
func (p Pattern) overlaps(q Pattern) bool {
	if p.kind == kindAny || q.kind == kindAny {
		return true
	}
	if p.kind == kindExact && q.kind == kindExact {
		return p.typ == q.typ
	}
	if p.kind == kindImpl && q.kind == kindImpl {
		return p.typ == q.typ
	}
	// One Exact, one Impl: they overlap iff the concrete type satisfies
	// the interface.
	if p.kind == kindExact {
		return p.typ.Implements(q.typ)
	}
	return q.typ.Implements(p.typ)
}

// String renders the pattern for diagnostics.
func (p Pattern) String() string {
	switch p.kind {
	case kindAny:
		return "_"
	case kindImpl:
		return "impl(" + p.typ.String() + ")"
	case kindExact:
		return p.typ.String()
	default:
		return "?"
	}
}
