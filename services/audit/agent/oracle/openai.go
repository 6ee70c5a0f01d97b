// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// DefaultRequestTimeout bounds a single oracle call.
const DefaultRequestTimeout = 60 * time.Second

// OpenAIClient implements Client against the OpenAI chat-completion API.
//
// Thread Safety:
//
//	OpenAIClient is safe for concurrent use.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	timeout time.Duration
	log     *slog.Logger
}

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithModel overrides the model name.
func WithModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.model = model
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps float64, burst int) OpenAIOption {
	return func(c *OpenAIClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRequestTimeout overrides the per-call timeout.
func WithRequestTimeout(d time.Duration) OpenAIOption {
	return func(c *OpenAIClient) {
		c.timeout = d
	}
}

// WithOpenAILogger sets the structured logger.
func WithOpenAILogger(log *slog.Logger) OpenAIOption {
	return func(c *OpenAIClient) {
		c.log = log
	}
}

// NewOpenAIClient creates an oracle client backed by the OpenAI API.
//
// Description:
//
//	Reads the API key from OPENAI_API_KEY, falling back to the container
//	secret at /run/secrets/openai_api_key. The model defaults to the
//	OPENAI_MODEL environment variable, then to gpt-4o-mini.
func NewOpenAIClient(opts ...OpenAIOption) (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err != nil {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set and secret not found at %s", secretPath)
		}
		apiKey = strings.TrimSpace(string(apiKeyBytes))
	}

	c := &OpenAIClient{
		client:  openai.NewClient(apiKey),
		model:   os.Getenv("OPENAI_MODEL"),
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		timeout: DefaultRequestTimeout,
		log:     slog.Default(),
	}
	if c.model == "" {
		c.model = "gpt-4o-mini"
	}
	for _, opt := range opts {
		opt(c)
	}

	c.log.Info("oracle client initialized", "provider", "openai", "model", c.model)
	return c, nil
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, request *Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("oracle rate limit: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if request.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: request.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: request.Prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: request.Temperature,
	}
	if request.MaxTokens > 0 {
		req.MaxCompletionTokens = request.MaxTokens
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.log.Error("oracle call failed", "model", c.model, "error", err)
		return nil, fmt.Errorf("oracle call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("oracle returned no choices")
	}

	c.log.Debug("oracle response received",
		"model", c.model,
		"finish_reason", resp.Choices[0].FinishReason,
		"tokens", resp.Usage.TotalTokens)

	return &Response{
		Content:    resp.Choices[0].Message.Content,
		TokensUsed: resp.Usage.TotalTokens,
		Duration:   time.Since(start),
		Model:      resp.Model,
	}, nil
}

// Name implements Client.
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Model implements Client.
func (c *OpenAIClient) Model() string {
	return c.model
}
