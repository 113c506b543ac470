// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the synthesis oracle contract. The oracle is an external
// collaborator: given a function's specification it proposes implementation
// text, or fails. Everything behind the interface (transport, model choice,
// prompt wording) is an implementation detail of the adapter.
package oracle

import (
	"context"
	"fmt"

	"github.com/vk/parablock/internal/model"
)

// Oracle proposes implementation text for a function specification.
// priorFeedback carries the diagnostic from the previous failed verification
// attempt, or "" on the first attempt.
type Oracle interface {
	Generate(ctx context.Context, spec *model.FunctionSpec, priorFeedback string) (string, error)
}

// SynthesisError reports that the oracle was unreachable or returned an
// unusable response. It aborts the affected function's processing; it is not
// retried at the orchestration level.
type SynthesisError struct {
	FullName string
	Err      error
}

// Error implements the error interface.
func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis failed for %s: %v", e.FullName, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *SynthesisError) Unwrap() error {
	return e.Err
}
