// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file adapts an OpenAI-compatible chat-completions endpoint to the
// Oracle interface.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vk/parablock/internal/ctxlog"
	"github.com/vk/parablock/internal/model"
	"resty.dev/v3"
)

// HTTPConfig configures the chat-completions adapter.
type HTTPConfig struct {
	// BaseURL is the API root, e.g. "https://api.openai.com/v1".
	BaseURL string

	// APIKey is sent as a bearer token. May be empty for local endpoints.
	APIKey string

	// Model is the model identifier requested from the endpoint.
	Model string

	// Timeout bounds one generation call. A timeout is an oracle failure.
	Timeout time.Duration
}

// HTTPOracle calls a chat-completions endpoint over HTTP.
type HTTPOracle struct {
	client *resty.Client
	model  string
}

// NewHTTP creates an HTTPOracle from config.
func NewHTTP(cfg HTTPConfig) *HTTPOracle {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &HTTPOracle{client: client, model: cfg.Model}
}

// Close releases the underlying HTTP client resources.
func (o *HTTPOracle) Close() error {
	return o.client.Close()
}

// chatRequest is the minimal chat-completions request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

// chatMessage is one message in a chat-completions conversation.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the subset of the chat-completions response we consume.
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements Oracle. Transport failures, error statuses, and empty
// completions all surface as SynthesisError.
func (o *HTTPOracle) Generate(ctx context.Context, spec *model.FunctionSpec, priorFeedback string) (string, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Calling synthesis oracle", "function", spec.FullName(), "model", o.model, "retry", priorFeedback != "")

	body := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(spec, priorFeedback)},
		},
		Temperature: 0.1,
	}

	var out chatResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post("/chat/completions")
	if err != nil {
		return "", &SynthesisError{FullName: spec.FullName(), Err: err}
	}
	if !resp.IsSuccess() {
		detail := resp.Status()
		if out.Error != nil && out.Error.Message != "" {
			detail = fmt.Sprintf("%s: %s", resp.Status(), out.Error.Message)
		}
		return "", &SynthesisError{FullName: spec.FullName(), Err: errors.New(detail)}
	}
	if len(out.Choices) == 0 {
		return "", &SynthesisError{FullName: spec.FullName(), Err: errors.New("response contained no choices")}
	}

	implementation := ExtractExpression(out.Choices[0].Message.Content)
	if implementation == "" {
		return "", &SynthesisError{FullName: spec.FullName(), Err: errors.New("response contained no code")}
	}

	logger.Debug("Oracle returned candidate implementation", "function", spec.FullName(), "bytes", len(implementation))
	return implementation, nil
}
