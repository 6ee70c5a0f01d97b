// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var registryTracer = otel.Tracer("audit.tools.registry")

// DefaultToolTimeout bounds tool executions that do not declare their own.
const DefaultToolTimeout = 30 * time.Second

// Registry is the single authoritative catalog of analysis functions.
//
// The registry is constructed once at process start; after startup it is
// effectively read-only and shared across concurrent sessions. Register is
// insertion-only with last-write-wins semantics; nothing is ever removed.
//
// The core safety property lives in Execute: no tool failure — unknown name,
// returned error, panic, or timeout — ever propagates to the caller. Every
// path returns a ToolResult with timing recorded, so repeated failures stay
// observable and attributable in the exploration log.
//
// Thread Safety: Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*ToolDefinition
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*ToolDefinition),
	}
}

// Register inserts or replaces a definition keyed by name.
//
// Description:
//
//	Last write wins. No validation is performed beyond the definition
//	invariant: a malformed definition fails at its first execution, not at
//	registration. Registration outside process startup is discouraged; the
//	catalog is meant to be a closed, auditable dispatch surface.
//
// Thread Safety: This method is safe for concurrent use.
func (r *Registry) Register(def *ToolDefinition) {
	if def == nil || def.Name == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[def.Name]; ok {
		slog.Warn("Replacing registered tool", slog.String("tool", def.Name))
	}
	r.tools[def.Name] = def
}

// Names returns all registered tool names in sorted order.
//
// Thread Safety: This method is safe for concurrent use.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a tool is registered under the given name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// ByCategory returns the definitions in a category, sorted by name.
//
// Thread Safety: This method is safe for concurrent use.
func (r *Registry) ByCategory(category Category) []*ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var defs []*ToolDefinition
	for _, def := range r.tools {
		if def.Category == category {
			defs = append(defs, def)
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Schemas returns the machine-readable description of every registered tool.
//
// Description:
//
//	This is the exact shape the reasoning oracle is given for tool
//	selection. Ordering is by name so that identical catalogs always
//	produce identical prompts.
//
// Thread Safety: This method is safe for concurrent use.
func (r *Registry) Schemas() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	schemas := make([]Schema, 0, len(names))
	for _, name := range names {
		def := r.tools[name]
		required := make([]string, len(def.Required))
		copy(required, def.Required)
		sort.Strings(required)

		schemas = append(schemas, Schema{
			Name:        def.Name,
			Description: def.Description,
			Category:    def.Category,
			Parameters: ObjectSchema{
				Type:       "object",
				Properties: def.Parameters,
				Required:   required,
			},
		})
	}
	return schemas
}

// Execute looks up a tool and runs it with full failure isolation.
//
// Description:
//
//	An unknown name, an invalid definition, missing required parameters, a
//	handler error, a handler panic, and a timeout all return a failed
//	ToolResult instead of an error. Execution time is measured on every
//	path. A single faulty analysis function must not abort the workflow.
//
// Inputs:
//
//	ctx - Context for cancellation; a per-tool timeout is layered on top.
//	name - The registered tool name.
//	params - Named arguments for the tool.
//
// Outputs:
//
//	*ToolResult - Never nil.
//
// Thread Safety: This method is safe for concurrent use.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) *ToolResult {
	ctx, span := registryTracer.Start(ctx, "tools.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("tool", name))

	start := time.Now()

	r.mu.RLock()
	def, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		toolExecutions.WithLabelValues(name, "unknown").Inc()
		res := FailedResult(name, fmt.Sprintf("unknown tool %q", name))
		res.Duration = time.Since(start)
		return res
	}

	if err := def.Validate(); err != nil {
		toolExecutions.WithLabelValues(name, "invalid").Inc()
		res := FailedResult(name, err.Error())
		res.Duration = time.Since(start)
		return res
	}

	if missing := missingRequired(def, params); missing != "" {
		toolExecutions.WithLabelValues(name, "bad_params").Inc()
		res := FailedResult(name, fmt.Sprintf("missing required parameter %q", missing))
		res.Duration = time.Since(start)
		return res
	}

	timeout := def.Timeout
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := r.invoke(ctx, def, params)
	result.Duration = time.Since(start)

	if ctx.Err() == context.DeadlineExceeded && result.Success {
		// Handler returned after the deadline without noticing it.
		result = FailedResult(name, fmt.Sprintf("timed out after %v", timeout))
		result.Duration = time.Since(start)
	}

	outcome := "ok"
	if !result.Success {
		outcome = "error"
	}
	toolExecutions.WithLabelValues(name, outcome).Inc()
	toolDuration.WithLabelValues(name).Observe(result.Duration.Seconds())

	slog.Debug("Tool executed",
		slog.String("tool", name),
		slog.Bool("success", result.Success),
		slog.Duration("duration", result.Duration),
	)

	return result
}

// invoke runs the handler, converting errors and panics into failed results.
func (r *Registry) invoke(ctx context.Context, def *ToolDefinition, params map[string]any) (result *ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Tool panicked",
				slog.String("tool", def.Name),
				slog.Any("panic", rec),
			)
			result = FailedResult(def.Name, fmt.Sprintf("panic: %v", rec))
		}
	}()

	res, err := def.Handler(ctx, params)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return FailedResult(def.Name, fmt.Sprintf("timed out: %v", err))
		}
		return FailedResult(def.Name, err.Error())
	}
	if res == nil {
		return FailedResult(def.Name, "tool returned no result")
	}

	res.ToolName = def.Name
	if res.Data == nil {
		res.Data = make(map[string]any)
	}
	if !res.Success && res.Error == "" {
		res.Error = "tool reported failure without a message"
	}
	res.Summary = truncate(res.Summary, MaxSummaryLen)
	return res
}

// missingRequired returns the first required parameter absent from params.
func missingRequired(def *ToolDefinition, params map[string]any) string {
	for _, name := range def.Required {
		if _, ok := params[name]; !ok {
			return name
		}
	}
	return ""
}
