// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines FunctionSpec, the format-agnostic representation of one
// declared function: its identity, signature, natural-language specification,
// embedded checks, and the content hash that drives cache invalidation.
//
// Why hash only the specification text and the signature?
//
// The hash is the sole cache-invalidation signal. It deliberately excludes the
// check blocks: tightening or loosening the checks should not by itself throw
// away a verified implementation, exactly as adding a test case does not
// change what a function means. Any edit to the specification text or to the
// declared signature changes the hash and forces regeneration.
package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Check is one named assertion from a `check` block. The expression is held
// lazily so that calls to the self-reference handle are only evaluated inside
// the verification harness, never at decode time.
type Check struct {
	// Name is the check block's label, e.g. `check "basic" {}`.
	Name string

	// Expr is the unevaluated assertion expression.
	Expr hcl.Expression

	// Source is the literal expression text as written in the declaration
	// file. It is embedded verbatim in oracle prompts.
	Source string
}

// FunctionSpec is the parsed declaration of a single function.
type FunctionSpec struct {
	// Namespace is the dotted namespace derived from the declaration file's
	// path relative to the declarations root, e.g. "util.strings".
	Namespace string

	// Name is the function block's label.
	Name string

	// Spec is the natural-language specification driving synthesis.
	Spec string

	// Frozen pins the cached implementation: a frozen function never
	// regenerates, even when its specification changes.
	Frozen bool

	// Params holds every declared parameter in declaration order, including
	// the reserved self-reference slot when present.
	Params []Param

	// ReturnType is the declared return type constraint, or
	// cty.DynamicPseudoType when the declaration omits `returns`.
	ReturnType cty.Type

	// Checks are the embedded assertions, in declaration order.
	Checks []Check

	// DeclRange locates the function block for diagnostics.
	DeclRange hcl.Range
}

// FullName returns the globally unique "<namespace>.<name>" identity.
func (s *FunctionSpec) FullName() string {
	return s.Namespace + "." + s.Name
}

// ValueParams returns the externally callable parameters, excluding the
// self-reference slot, in declaration order.
func (s *FunctionSpec) ValueParams() []Param {
	out := make([]Param, 0, len(s.Params))
	for _, p := range s.Params {
		if p.Kind == ParamValue {
			out = append(out, p)
		}
	}
	return out
}

// SelfParam returns the reserved self-reference parameter, or nil when the
// declaration does not use one.
func (s *FunctionSpec) SelfParam() *Param {
	for i := range s.Params {
		if s.Params[i].Kind == ParamSelfRef {
			return &s.Params[i]
		}
	}
	return nil
}

// Signature renders the canonical signature string used as hash input. The
// rendering is deterministic: declaration order for params, GoString for
// types and defaults.
func (s *FunctionSpec) Signature() string {
	var b strings.Builder
	b.WriteString("(")
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		if p.Kind == ParamSelfRef {
			b.WriteString("*")
			continue
		}
		b.WriteString(":")
		b.WriteString(p.Type.GoString())
		if p.Default != nil {
			b.WriteString("=")
			b.WriteString(p.Default.GoString())
		}
	}
	b.WriteString(") -> ")
	b.WriteString(s.ReturnType.GoString())
	return b.String()
}

// Hash computes the deterministic specification hash from the specification
// text and the canonical signature. It is stable across process restarts for
// identical declarations.
func (s *FunctionSpec) Hash() string {
	sum := xxhash.Sum64String(s.Spec + "|" + s.Signature())
	return fmt.Sprintf("%016x", sum)
}

// CheckSource returns the literal assertion block: every check's source text,
// one per line, in declaration order.
func (s *FunctionSpec) CheckSource() string {
	lines := make([]string, 0, len(s.Checks))
	for _, c := range s.Checks {
		lines = append(lines, c.Source)
	}
	return strings.Join(lines, "\n")
}

// Namespaces returns the distinct namespaces of the given specs, in first-seen
// order.
func Namespaces(specs []*FunctionSpec) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range specs {
		if !seen[s.Namespace] {
			seen[s.Namespace] = true
			out = append(out, s.Namespace)
		}
	}
	return out
}

// SortByFullName sorts specs lexically by full name. Used where deterministic
// output matters more than declaration order, e.g. summaries.
func SortByFullName(specs []*FunctionSpec) {
	sort.Slice(specs, func(i, j int) bool {
		return specs[i].FullName() < specs[j].FullName()
	})
}
