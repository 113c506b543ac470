// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file implements the sandboxed implementation executor: the single
// boundary through which generated implementation text is ever evaluated.
//
// Why an explicit executor boundary?
//
// Implementation text comes from an external oracle and is untrusted. It is
// never spliced into ambient program state: every evaluation builds a fresh
// hcl.EvalContext containing exactly the caller's argument variables and a
// fixed table of pure stdlib functions. Evaluated code cannot reach the file
// system, the network, or any process state. The Executor interface keeps the
// strategy pluggable; the HCL evaluator is the only implementation today.
package executor

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/parablock/internal/ctxlog"
	"github.com/vk/parablock/internal/model"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
)

// Executor evaluates implementation text against a set of named arguments.
type Executor interface {
	// Evaluate parses body as a single expression and evaluates it with the
	// given variables and extra functions visible. fullName is used only for
	// diagnostics.
	Evaluate(ctx context.Context, fullName, body string, vars map[string]cty.Value, funcs map[string]function.Function) (cty.Value, error)

	// Bind wraps an implementation body as a callable over the spec's value
	// parameters. The returned function is recursive: the body may call
	// itself through the reserved self-reference name.
	Bind(ctx context.Context, spec *model.FunctionSpec, body string) function.Function

	// EvalContext builds the evaluation context used for check expressions,
	// with the stdlib table plus any extra functions.
	EvalContext(vars map[string]cty.Value, funcs map[string]function.Function) *hcl.EvalContext
}

// HCLExecutor evaluates implementations written as HCL expressions.
type HCLExecutor struct {
	funcs map[string]function.Function
}

// New creates an HCLExecutor with the standard pure function table.
func New() *HCLExecutor {
	return &HCLExecutor{funcs: stdlibFunctions()}
}

// EvalContext builds a fresh evaluation context. The stdlib table is shared
// (it is immutable); variables and extra functions are the caller's.
func (e *HCLExecutor) EvalContext(vars map[string]cty.Value, funcs map[string]function.Function) *hcl.EvalContext {
	merged := make(map[string]function.Function, len(e.funcs)+len(funcs))
	for name, fn := range e.funcs {
		merged[name] = fn
	}
	for name, fn := range funcs {
		merged[name] = fn
	}
	return &hcl.EvalContext{
		Variables: vars,
		Functions: merged,
	}
}

// Evaluate parses and evaluates one implementation expression.
func (e *HCLExecutor) Evaluate(ctx context.Context, fullName, body string, vars map[string]cty.Value, funcs map[string]function.Function) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Evaluating implementation expression", "function", fullName)

	expr, diags := hclsyntax.ParseExpression([]byte(body), fullName, hcl.Pos{Line: 1, Column: 1, Byte: 0})
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("implementation of %s does not parse: %s", fullName, diags.Error())
	}

	val, diags := expr.Value(e.EvalContext(vars, funcs))
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("implementation of %s failed to evaluate: %s", fullName, diags.Error())
	}
	return val, nil
}

// Bind builds the callable for a spec's implementation body. The function's
// parameters are exactly the spec's value parameters, in declaration order;
// the self-reference slot is not part of the signature. The body sees the
// callable itself under the reserved name, so recursive implementations and
// recursive check expressions both work.
func (e *HCLExecutor) Bind(ctx context.Context, spec *model.FunctionSpec, body string) function.Function {
	valueParams := spec.ValueParams()
	fnParams := make([]function.Parameter, len(valueParams))
	for i, p := range valueParams {
		fnParams[i] = function.Parameter{
			Name: p.Name,
			Type: p.Type,
		}
	}

	var self function.Function
	self = function.New(&function.Spec{
		Description: spec.Spec,
		Params:      fnParams,
		Type:        function.StaticReturnType(spec.ReturnType),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			vars := make(map[string]cty.Value, len(args))
			for i, arg := range args {
				vars[valueParams[i].Name] = arg
			}
			val, err := e.Evaluate(ctx, spec.FullName(), body, vars, map[string]function.Function{
				model.SelfRefName: self,
			})
			if err != nil {
				return cty.NilVal, err
			}
			return convert.Convert(val, retType)
		},
	})
	return self
}
