// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file models a single declared parameter of a function.
//
// Why a ParamKind enum?
//
// A declaration may reserve one parameter slot for the self-reference handle:
// the stand-in that check expressions use to call "the implementation under
// test" before any implementation exists. That slot is recognized once, at
// parse time, by its reserved label and tagged with a kind. Everything
// downstream (the harness, the dispatcher, the oracle prompt builder) branches
// on the kind, never on the parameter's name, so renaming the convention later
// is a one-line change here.
package model

import (
	"github.com/zclconf/go-cty/cty"
)

// SelfRefName is the reserved parameter label bound to the self-reference
// handle. It never appears in an externally callable signature.
const SelfRefName = "fn"

// ParamKind distinguishes ordinary value parameters from the reserved
// self-reference slot.
type ParamKind int

const (
	// ParamValue is a regular parameter supplied by real callers.
	ParamValue ParamKind = iota

	// ParamSelfRef is the reserved slot bound to a recursive handle on the
	// implementation under test during verification.
	ParamSelfRef
)

// String returns a human-readable name for the kind.
func (k ParamKind) String() string {
	switch k {
	case ParamValue:
		return "value"
	case ParamSelfRef:
		return "self-reference"
	default:
		return "unknown"
	}
}

// Param is one declared parameter, in declaration order.
type Param struct {
	// Name is the parameter's label, e.g. `param "n" {}` has Name "n".
	Name string

	// Kind tags the reserved self-reference slot; all other params are
	// ParamValue.
	Kind ParamKind

	// Type is the declared cty type constraint. Defaults to
	// cty.DynamicPseudoType when the declaration omits a `type` attribute.
	Type cty.Type

	// Default is an optional literal used when a caller omits the argument.
	// A nil Default makes the parameter required.
	Default *cty.Value
}
