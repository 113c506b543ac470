// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file implements the verification harness: the isolated execution that
// decides whether a candidate implementation satisfies a declaration's
// embedded checks.
//
// Why bind the self-reference before any implementation is deployed?
//
// Check expressions call the function under test through the reserved
// self-reference name. The harness builds that stand-in from the candidate
// text itself, so the checks exercise the exact implementation being judged,
// including recursively, without the function ever being registered or
// cached first.
package harness

import (
	"context"
	"fmt"

	"github.com/vk/parablock/internal/ctxlog"
	"github.com/vk/parablock/internal/executor"
	"github.com/vk/parablock/internal/model"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
)

// Harness verifies candidate implementations against declared checks.
type Harness struct {
	exec executor.Executor
}

// New creates a Harness using the given executor.
func New(exec executor.Executor) *Harness {
	return &Harness{exec: exec}
}

// RunTest evaluates every check expression of the spec with the candidate
// implementation bound under the self-reference name. It returns pass=true
// when all checks hold. On failure the diagnostic names the first failing
// check and carries enough detail to drive the next synthesis attempt.
//
// A declaration with no checks passes vacuously: there is nothing to verify.
func (h *Harness) RunTest(ctx context.Context, spec *model.FunctionSpec, candidate string) (bool, string) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Running verification checks", "function", spec.FullName(), "checks", len(spec.Checks))

	self := h.exec.Bind(ctx, spec, candidate)
	ectx := h.exec.EvalContext(nil, map[string]function.Function{
		model.SelfRefName: self,
	})

	for _, check := range spec.Checks {
		val, diags := check.Expr.Value(ectx)
		if diags.HasErrors() {
			return false, fmt.Sprintf("check %q (%s) failed to evaluate: %s", check.Name, check.Source, diags.Error())
		}

		result, err := convert.Convert(val, cty.Bool)
		if err != nil {
			return false, fmt.Sprintf("check %q (%s) produced a non-boolean value %s", check.Name, check.Source, val.GoString())
		}
		if result.IsNull() {
			return false, fmt.Sprintf("check %q (%s) produced a null value", check.Name, check.Source)
		}
		if result.False() {
			return false, fmt.Sprintf("check %q failed: %s evaluated to false", check.Name, check.Source)
		}
	}

	return true, ""
}
