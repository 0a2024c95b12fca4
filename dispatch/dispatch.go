// Copyright 2026 Unbound ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package dispatch provides the public API for the forwarding-rule
// registry in the Unbound framework.
//
// A Registry maps (operation, argument type pattern) pairs to forwarding
// rules. Calls resolve to the most specific matching rule; when no rule
// matches, the process-wide capability mode decides between the generic
// structural fallback and a NoMatchingRuleError.
//
// Most programs need exactly two lines of wiring:
//
//	reg, err := dispatch.NewRegistry()
//	if err != nil {
//		log.Fatal(err)
//	}
//	dispatch.Install(reg)
//
// After Install, array wrapper methods route through the registry.
// Custom backends add their own rules with Register:
//
//	err := reg.Register(dispatch.Rule{
//	    Op:       array.OpAdd,
//	    Patterns: []dispatch.Pattern{dispatch.Exact((*mypkg.Storage)(nil)), dispatch.Exact((*mypkg.Storage)(nil))},
//	    Fn:       mypkg.Add,
//	})
package dispatch

import (
	"github.com/unbound-ml/unbound/array"
	"github.com/unbound-ml/unbound/internal/backend/dense"
	"github.com/unbound-ml/unbound/internal/backend/generic"
	"github.com/unbound-ml/unbound/internal/backend/linalg"
	"github.com/unbound-ml/unbound/internal/backend/sparse"
	"github.com/unbound-ml/unbound/internal/dispatch"
	"github.com/unbound-ml/unbound/internal/snapshot"
)

// Type aliases for public API

// Registry resolves operations against forwarding rules and generic
// fallbacks. It implements array.Engine.
type Registry = dispatch.Registry

// Rule binds an operation name and argument type patterns to a
// forwarding function.
type Rule = dispatch.Rule

// RuleFunc executes an operation on unwrapped arguments.
type RuleFunc = dispatch.RuleFunc

// Pattern matches one argument position of a rule.
type Pattern = dispatch.Pattern

// NoMatchingRuleError carries the operation identifier and argument type
// signature of a failed resolution.
type NoMatchingRuleError = dispatch.NoMatchingRuleError

// AmbiguousRuleError reports two rules of equal specificity for the same
// operation.
type AmbiguousRuleError = dispatch.AmbiguousRuleError

// Sentinels for errors.Is checks.
var (
	// ErrNoMatchingRule reports a dispatch miss that the capability mode
	// did not permit to fall back.
	ErrNoMatchingRule = dispatch.ErrNoMatchingRule

	// ErrAmbiguousRule reports two forwarding rules that cannot be
	// ordered by specificity.
	ErrAmbiguousRule = dispatch.ErrAmbiguousRule
)

// Pattern constructors

// Exact matches arguments whose dynamic type equals the prototype's
// type. Exact is the most specific pattern kind.
//
// Example:
//
//	dispatch.Exact((*dense.Storage)(nil)) // matches *dense.Storage
//	dispatch.Exact("")                    // matches string
func Exact(prototype any) Pattern {
	return dispatch.Exact(prototype)
}

// Impl matches arguments whose dynamic type implements the interface I.
// Impl ranks between Exact and AnyArg.
//
// Example:
//
//	dispatch.Impl[array.Storage]() // matches any storage backend
func Impl[I any]() Pattern {
	return dispatch.Impl[I]()
}

// AnyArg matches every argument. It is the least specific pattern kind.
func AnyArg() Pattern {
	return dispatch.AnyArg()
}

// New creates an empty registry. Most users want NewRegistry, which
// returns one with the standard rule catalogs already installed.
func New() *Registry {
	return dispatch.New()
}

// NewRegistry creates a registry wired with the standard catalogs: the
// dense and sparse storage rules, the linear-algebra bridge, snapshot
// persistence, and the generic structural fallbacks.
func NewRegistry() (*Registry, error) {
	r := dispatch.New()
	if err := dense.RegisterRules(r); err != nil {
		return nil, err
	}
	if err := sparse.RegisterRules(r); err != nil {
		return nil, err
	}
	if err := linalg.RegisterRules(r); err != nil {
		return nil, err
	}
	if err := snapshot.RegisterRules(r); err != nil {
		return nil, err
	}
	generic.Register(r)
	return r, nil
}

// MustNewRegistry is NewRegistry for program wiring, where a rule
// conflict in the standard catalogs is a programming error.
func MustNewRegistry() *Registry {
	r, err := NewRegistry()
	if err != nil {
		panic(err)
	}
	return r
}

// Install makes r the engine behind array wrapper methods.
func Install(r *Registry) {
	array.SetEngine(r)
}
