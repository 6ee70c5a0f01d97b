// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package oracle provides the reasoning-oracle client for the audit loop.
//
// The oracle is an opaque structured-reasoning service: each phase sends a
// system prompt plus a phase prompt and expects a single JSON document back.
// This package defines the transport contract; parsing and validation of the
// phase-shaped replies happens at the phase boundary, not here.
//
// Thread Safety:
//
//	All types in this package are designed for concurrent use.
package oracle

import (
	"context"
	"time"
)

// Client defines the interface for oracle interactions.
//
// Implementations must be safe for concurrent use.
type Client interface {
	// Complete sends a prompt to the oracle and returns a response.
	//
	// Inputs:
	//   ctx - Context for cancellation and timeout
	//   request - The completion request
	//
	// Outputs:
	//   *Response - The oracle response
	//   error - Non-nil if the request failed
	Complete(ctx context.Context, request *Request) (*Response, error)

	// Name returns the provider name (e.g., "openai", "mock").
	Name() string

	// Model returns the model being used.
	Model() string
}

// Request represents a completion request to the oracle.
type Request struct {
	// SystemPrompt is the system message framing the audit task.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Prompt is the phase prompt.
	Prompt string `json:"prompt"`

	// MaxTokens limits the response length.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0-1.0).
	Temperature float32 `json:"temperature,omitempty"`
}

// Response represents an oracle response.
type Response struct {
	// Content is the raw text response. Expected to contain one JSON
	// document, possibly wrapped in markdown fences.
	Content string `json:"content"`

	// TokensUsed is the total tokens consumed (input + output).
	TokensUsed int `json:"tokens_used"`

	// Duration is how long the request took.
	Duration time.Duration `json:"duration"`

	// Model is the model that generated this response.
	Model string `json:"model,omitempty"`
}
