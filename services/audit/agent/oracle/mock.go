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
	"sync"
	"time"
)

// MockClient is a mock oracle client for testing.
//
// Thread Safety:
//
//	MockClient is safe for concurrent use.
type MockClient struct {
	mu sync.RWMutex

	name  string
	model string

	// responses are queued responses returned in FIFO order.
	responses []*Response

	// defaultResponse is returned when no queued responses remain.
	defaultResponse *Response

	// calls records all calls made to Complete.
	calls []CompletionCall

	// responseFunc allows dynamic response generation.
	responseFunc func(*Request) (*Response, error)

	// errorToReturn causes Complete to return this error.
	errorToReturn error
}

// CompletionCall records a call to Complete.
type CompletionCall struct {
	Request   *Request
	Timestamp time.Time
}

// NewMockClient creates a new mock oracle client.
func NewMockClient() *MockClient {
	return &MockClient{
		name:  "mock",
		model: "mock-model",
		defaultResponse: &Response{
			Content:    "{}",
			TokensUsed: 100,
		},
	}
}

// WithResponseFunc sets a dynamic response function.
func (c *MockClient) WithResponseFunc(f func(*Request) (*Response, error)) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responseFunc = f
	return c
}

// WithError configures the client to return an error.
func (c *MockClient) WithError(err error) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorToReturn = err
	return c
}

// QueueResponse adds a response to the queue.
func (c *MockClient) QueueResponse(response *Response) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, response)
	return c
}

// QueueContent queues a text response.
func (c *MockClient) QueueContent(content string) *MockClient {
	return c.QueueResponse(&Response{
		Content:    content,
		TokensUsed: 100 + len(content)/4,
	})
}

// Complete implements Client.
func (c *MockClient) Complete(ctx context.Context, request *Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, CompletionCall{Request: request, Timestamp: time.Now()})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.errorToReturn != nil {
		return nil, c.errorToReturn
	}
	if c.responseFunc != nil {
		return c.responseFunc(request)
	}

	if len(c.responses) > 0 {
		response := c.responses[0]
		c.responses = c.responses[1:]
		response.Model = c.model
		return response, nil
	}

	response := *c.defaultResponse
	response.Model = c.model
	return &response, nil
}

// Name implements Client.
func (c *MockClient) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// Model implements Client.
func (c *MockClient) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// CallCount returns the number of calls made.
func (c *MockClient) CallCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.calls)
}

// LastRequest returns the most recent request, or nil.
func (c *MockClient) LastRequest() *Request {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.calls) == 0 {
		return nil
	}
	return c.calls[len(c.calls)-1].Request
}

// Verify ensures all queued responses were consumed.
func (c *MockClient) Verify() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.responses) > 0 {
		return fmt.Errorf("mock: %d queued responses not consumed", len(c.responses))
	}
	return nil
}
