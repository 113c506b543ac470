// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file builds the synthesis request text from a function specification.
package oracle

import (
	"fmt"
	"strings"

	"github.com/vk/parablock/internal/model"
)

// systemPrompt frames every request. The oracle answers with a single HCL
// expression, nothing else.
const systemPrompt = "You are an expert in the HCL expression language. " +
	"Generate correct, minimal HCL expressions from requirements. " +
	"Reply with exactly one HCL expression and no surrounding prose."

// buildPrompt renders the user message for one synthesis attempt.
func buildPrompt(spec *model.FunctionSpec, priorFeedback string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write the implementation of the function %q as a single HCL expression.\n\n", spec.Name)
	fmt.Fprintf(&b, "Specification:\n%s\n\n", spec.Spec)

	params := spec.ValueParams()
	if len(params) > 0 {
		b.WriteString("Parameters, available as variables in your expression:\n")
		for _, p := range params {
			fmt.Fprintf(&b, "- %s: %s", p.Name, p.Type.FriendlyName())
			if p.Default != nil {
				fmt.Fprintf(&b, " (default: %s)", p.Default.GoString())
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	} else {
		b.WriteString("The function takes no parameters.\n\n")
	}

	fmt.Fprintf(&b, "Return type: %s\n\n", spec.ReturnType.FriendlyName())

	if checks := spec.CheckSource(); checks != "" {
		fmt.Fprintf(&b, "Your expression must satisfy these checks, where %s() calls your implementation:\n%s\n\n",
			model.SelfRefName, checks)
	}

	fmt.Fprintf(&b, "You may call %s(...) recursively and use standard HCL functions "+
		"(upper, lower, format, length, element, range, join, split, substr, ...) "+
		"and the conditional operator.\n", model.SelfRefName)

	if priorFeedback != "" {
		fmt.Fprintf(&b, "\nYour previous attempt failed verification:\n%s\n\n"+
			"Fix the problem and reply with a corrected expression.\n", priorFeedback)
	}

	b.WriteString("\nReply with the bare expression only: no code fences, no assignment, no explanation.")
	return b.String()
}
