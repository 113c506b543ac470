// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file decodes `function` blocks from a declaration file into
// FunctionSpec values.
//
// Why manual body schemas instead of a single gohcl struct?
//
// Check expressions must stay unevaluated (they call the self-reference
// handle, which only exists inside the verification harness) and their literal
// source text must be captured from the file bytes for oracle prompts. Both
// needs require working at the hcl.Body/hcl.Expression level rather than
// decoding straight into Go values.
package model

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/vk/parablock/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// functionRootSchema expects one or more top-level 'function' blocks.
type functionRootSchema struct {
	Functions []*hclFunction `hcl:"function,block"`
}

// hclFunction is a single 'function' block, body kept raw for manual decoding.
type hclFunction struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// functionBodySchema is the schema for the body of a 'function' block.
var functionBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "spec", Required: true},
		{Name: "returns"},
		{Name: "frozen"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "param", LabelNames: []string{"name"}},
		{Type: "check", LabelNames: []string{"name"}},
	},
}

// paramBodySchema is the schema for the body of a 'param' block.
var paramBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "type"},
		{Name: "default"},
	},
}

// checkBodySchema is the schema for the body of a 'check' block.
var checkBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "expr", Required: true},
	},
}

// ParseFunctionFile decodes every 'function' block in an HCL file into
// FunctionSpecs belonging to the given namespace. The file's source bytes are
// needed to extract literal check sources.
func ParseFunctionFile(ctx context.Context, hclFile *hcl.File, namespace string) ([]*FunctionSpec, hcl.Diagnostics) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Parsing function declarations", "namespace", namespace)

	var allDiags hcl.Diagnostics
	if hclFile == nil {
		allDiags = append(allDiags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "HCL file is nil",
		})
		return nil, allDiags
	}

	root := &functionRootSchema{}
	diags := gohcl.DecodeBody(hclFile.Body, nil, root)
	allDiags = append(allDiags, diags...)
	if diags.HasErrors() {
		return nil, allDiags
	}

	specs := make([]*FunctionSpec, 0, len(root.Functions))
	for _, fn := range root.Functions {
		spec, fnDiags := parseFunction(fn, hclFile.Bytes, namespace)
		allDiags = append(allDiags, fnDiags...)
		if fnDiags.HasErrors() {
			continue // skip this function but keep parsing its siblings
		}
		specs = append(specs, spec)
	}

	if allDiags.HasErrors() {
		return nil, allDiags
	}

	logger.Debug("Parsed function declarations", "namespace", namespace, "count", len(specs))
	return specs, allDiags
}

// parseFunction decodes the body of one 'function' block.
func parseFunction(fn *hclFunction, src []byte, namespace string) (*FunctionSpec, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	content, contentDiags := fn.Body.Content(functionBodySchema)
	diags = append(diags, contentDiags...)
	if contentDiags.HasErrors() {
		return nil, diags
	}

	spec := &FunctionSpec{
		Namespace:  namespace,
		Name:       fn.Name,
		ReturnType: cty.DynamicPseudoType,
	}

	specAttr := content.Attributes["spec"]
	specDiags := gohcl.DecodeExpression(specAttr.Expr, nil, &spec.Spec)
	diags = append(diags, specDiags...)
	spec.DeclRange = specAttr.Range

	if attr, exists := content.Attributes["returns"]; exists {
		ty, tyDiags := typeexpr.TypeConstraint(attr.Expr)
		diags = append(diags, tyDiags...)
		if !tyDiags.HasErrors() {
			spec.ReturnType = ty
		}
	}

	if attr, exists := content.Attributes["frozen"]; exists {
		frozenDiags := gohcl.DecodeExpression(attr.Expr, nil, &spec.Frozen)
		diags = append(diags, frozenDiags...)
	}

	var paramDiags hcl.Diagnostics
	spec.Params, paramDiags = parseParams(content.Blocks)
	diags = append(diags, paramDiags...)

	var checkDiags hcl.Diagnostics
	spec.Checks, checkDiags = parseChecks(content.Blocks, src)
	diags = append(diags, checkDiags...)

	if diags.HasErrors() {
		return nil, diags
	}
	return spec, diags
}

// parseParams decodes all 'param' blocks, preserving declaration order and
// tagging the reserved self-reference slot.
func parseParams(blocks hcl.Blocks) ([]Param, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	var params []Param
	seen := make(map[string]bool)
	selfSeen := false

	for _, block := range blocks.OfType("param") {
		name := block.Labels[0]
		if seen[name] {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate parameter",
				Detail:   fmt.Sprintf("A parameter named '%s' has already been declared.", name),
				Subject:  &block.DefRange,
			})
			continue
		}
		seen[name] = true

		content, contentDiags := block.Body.Content(paramBodySchema)
		diags = append(diags, contentDiags...)
		if contentDiags.HasErrors() {
			continue
		}

		param := Param{Name: name, Kind: ParamValue, Type: cty.DynamicPseudoType}
		if name == SelfRefName {
			if selfSeen {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate self-reference parameter",
					Subject:  &block.DefRange,
				})
				continue
			}
			selfSeen = true
			param.Kind = ParamSelfRef
			params = append(params, param)
			continue
		}

		if attr, exists := content.Attributes["type"]; exists {
			ty, tyDiags := typeexpr.TypeConstraint(attr.Expr)
			diags = append(diags, tyDiags...)
			if !tyDiags.HasErrors() {
				param.Type = ty
			}
		}

		if attr, exists := content.Attributes["default"]; exists {
			// Defaults must be literal values, so no eval context is given.
			val, valDiags := attr.Expr.Value(nil)
			diags = append(diags, valDiags...)
			if !valDiags.HasErrors() {
				param.Default = &val
			}
		}

		params = append(params, param)
	}

	return params, diags
}

// parseChecks decodes all 'check' blocks. The expression stays unevaluated and
// its literal text is cut out of the source bytes by range.
func parseChecks(blocks hcl.Blocks, src []byte) ([]Check, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	var checks []Check

	for _, block := range blocks.OfType("check") {
		content, contentDiags := block.Body.Content(checkBodySchema)
		diags = append(diags, contentDiags...)
		if contentDiags.HasErrors() {
			continue
		}

		attr := content.Attributes["expr"]
		checks = append(checks, Check{
			Name:   block.Labels[0],
			Expr:   attr.Expr,
			Source: sourceForRange(src, attr.Expr.Range()),
		})
	}

	return checks, diags
}

// sourceForRange slices the literal text of a range out of the file bytes.
func sourceForRange(src []byte, rng hcl.Range) string {
	if src == nil || rng.Start.Byte < 0 || rng.End.Byte > len(src) || rng.Start.Byte > rng.End.Byte {
		return ""
	}
	return string(src[rng.Start.Byte:rng.End.Byte])
}
