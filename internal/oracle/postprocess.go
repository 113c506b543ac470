// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file normalizes raw oracle output into bare implementation text.
//
// Why so much scrubbing?
//
// Models are asked for a bare expression but routinely echo framing anyway:
// code fences, an `implementation = ...` assignment, or comment lines
// restating the specification. The scrubbed result is re-indented to a
// canonical baseline so callers can embed it at any indentation level.
package oracle

import (
	"regexp"
	"strings"
)

// assignmentPrefix matches an echoed attribute assignment such as
// `implementation = expr` at the start of the response.
var assignmentPrefix = regexp.MustCompile(`^(implementation|expression|expr|body|result)\s*=\s*`)

// ExtractExpression strips non-code framing from a raw oracle response and
// returns the implementation text at baseline indentation.
func ExtractExpression(raw string) string {
	text := strings.TrimSpace(raw)
	text = unwrapFences(text)
	text = stripCommentPreamble(text)
	text = assignmentPrefix.ReplaceAllString(text, "")
	return dedent(text)
}

// unwrapFences removes a surrounding markdown code fence, with or without a
// language tag. Responses without fences pass through unchanged.
func unwrapFences(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	var body []string
	inside := false
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if inside {
				break // closing fence: ignore any trailing prose
			}
			inside = true
			continue
		}
		if inside {
			body = append(body, line)
		}
	}
	if len(body) == 0 {
		// Fence markers without a body; fall back to removing the markers.
		return strings.ReplaceAll(text, "```", "")
	}
	return strings.TrimSpace(strings.Join(body, "\n"))
}

// stripCommentPreamble drops leading comment lines (restated specification
// text) before the first code line.
func stripCommentPreamble(text string) string {
	lines := strings.Split(text, "\n")
	start := 0
	for start < len(lines) {
		trimmed := strings.TrimSpace(lines[start])
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
			start++
			continue
		}
		break
	}
	return strings.Join(lines[start:], "\n")
}

// dedent removes the common leading indentation from all non-empty lines and
// trims trailing whitespace.
func dedent(text string) string {
	lines := strings.Split(text, "\n")

	minIndent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if minIndent < 0 || indent < minIndent {
			minIndent = indent
		}
	}
	if minIndent <= 0 {
		return strings.TrimSpace(text)
	}

	for i, line := range lines {
		if len(line) >= minIndent {
			lines[i] = line[minIndent:]
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
