// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools provides the analysis-tool registry and execution framework
// for the audit engine.
//
// Tools are deterministic analysis functions over the transactional dataset.
// Each tool is described by a ToolDefinition that binds a stable name to a
// parameter schema and an implementation, and every execution produces a
// ToolResult regardless of outcome: tool failures are data, not control flow.
//
// Thread Safety:
//
//	All exported types in this package are safe for concurrent use.
package tools

import (
	"context"
	"encoding/json"
	"time"
)

// ScopeParam is the dataset temporal scope parameter. Every registered tool
// must list it among its required parameters so that no analysis runs
// unscoped against the full ledger.
const ScopeParam = "period"

// MaxEvidenceRefs bounds the number of evidence references serialized per
// result. Additional references are kept in memory but dropped on marshal.
const MaxEvidenceRefs = 10

// MaxSummaryLen bounds the human-readable summary of a ToolResult.
const MaxSummaryLen = 2000

// Category groups tools by the ledger area they analyze.
type Category string

const (
	// CategoryPayments covers disbursement and payment-stream analyses.
	CategoryPayments Category = "payments"

	// CategoryJournals covers journal-entry analyses.
	CategoryJournals Category = "journals"

	// CategoryVendors covers vendor and counterparty analyses.
	CategoryVendors Category = "vendors"

	// CategoryAccounts covers account-level analyses.
	CategoryAccounts Category = "accounts"

	// CategoryTemporal covers time-pattern analyses.
	CategoryTemporal Category = "temporal"
)

// String returns the string representation of the category.
func (c Category) String() string {
	return string(c)
}

// ParamDef describes a single tool parameter.
type ParamDef struct {
	// Type is the JSON-schema type name ("string", "integer", "number",
	// "boolean").
	Type string `json:"type"`

	// Description explains what the parameter is for.
	Description string `json:"description"`
}

// ToolFunc is the implementation contract every analysis function satisfies.
//
// Implementations must report domain errors through ToolResult.Error rather
// than the error return; the registry tolerates both errors and panics, but
// only results carrying their own error message stay attributable.
type ToolFunc func(ctx context.Context, params map[string]any) (*ToolResult, error)

// ToolDefinition binds a tool name to its schema and implementation.
//
// Invariant: Required is a subset of the keys of Parameters and always
// contains ScopeParam. Definitions are registered once at startup and are
// immutable thereafter.
type ToolDefinition struct {
	// Name is the unique tool identifier.
	Name string `json:"name"`

	// Description explains what the tool analyzes. This text is shown to
	// the reasoning oracle verbatim, so it should state what the tool
	// returns, not how it is implemented.
	Description string `json:"description"`

	// Category is the ledger area this tool belongs to.
	Category Category `json:"category"`

	// Parameters maps parameter names to their definitions.
	Parameters map[string]ParamDef `json:"parameters"`

	// Required lists parameter names that must be provided.
	Required []string `json:"required"`

	// Timeout bounds a single execution. Zero means the registry default.
	Timeout time.Duration `json:"-"`

	// Handler is the callable implementation.
	Handler ToolFunc `json:"-"`
}

// Validate checks the definition invariant.
//
// Outputs:
//
//	error - Non-nil if Required names a parameter absent from Parameters,
//	        ScopeParam is not required, or the handler is missing.
func (d *ToolDefinition) Validate() error {
	if d.Name == "" {
		return ErrUnnamedTool
	}
	if d.Handler == nil {
		return ErrNilHandler
	}
	scoped := false
	for _, name := range d.Required {
		if _, ok := d.Parameters[name]; !ok {
			return &DefinitionError{Tool: d.Name, Param: name}
		}
		if name == ScopeParam {
			scoped = true
		}
	}
	if !scoped {
		return &DefinitionError{Tool: d.Name, Param: ScopeParam, Missing: true}
	}
	return nil
}

// Schema is the machine-readable tool description handed to the reasoning
// oracle for tool selection. The shape mirrors JSON Schema object parameters.
type Schema struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    Category     `json:"category"`
	Parameters  ObjectSchema `json:"parameters"`
}

// ObjectSchema is the parameters block of a tool schema.
type ObjectSchema struct {
	Type       string              `json:"type"`
	Properties map[string]ParamDef `json:"properties"`
	Required   []string            `json:"required"`
}

// ToolResult is the standardized output of one tool invocation.
//
// Invariant: Success == false implies Error != ""; Data is always non-nil.
// Results are immutable after creation.
type ToolResult struct {
	// ToolName is the tool that produced this result.
	ToolName string `json:"tool_name"`

	// Success indicates whether the analysis ran to completion.
	Success bool `json:"success"`

	// Summary is a bounded human-readable description of the outcome.
	Summary string `json:"summary"`

	// KeyFindings lists short findings in the order they were produced.
	KeyFindings []string `json:"key_findings"`

	// Evidence holds references to the underlying records. Only the first
	// MaxEvidenceRefs entries survive serialization.
	Evidence []string `json:"evidence"`

	// Data is a free-form structured payload. Never nil.
	Data map[string]any `json:"data"`

	// Error carries the failure message when Success is false.
	Error string `json:"error,omitempty"`

	// Duration is how long the execution took, recorded on every path
	// including failures.
	Duration time.Duration `json:"duration"`
}

// NewResult creates a successful ToolResult with a non-nil data payload.
func NewResult(toolName, summary string) *ToolResult {
	return &ToolResult{
		ToolName: toolName,
		Success:  true,
		Summary:  truncate(summary, MaxSummaryLen),
		Data:     make(map[string]any),
	}
}

// FailedResult creates a failed ToolResult carrying the given error message.
//
// The invariant that failures always carry an error message is enforced
// here: an empty message is replaced with a generic one.
func FailedResult(toolName, errMsg string) *ToolResult {
	if errMsg == "" {
		errMsg = "tool execution failed"
	}
	return &ToolResult{
		ToolName: toolName,
		Success:  false,
		Summary:  truncate("failed: "+errMsg, MaxSummaryLen),
		Data:     make(map[string]any),
		Error:    errMsg,
	}
}

// MarshalJSON caps evidence references at MaxEvidenceRefs.
func (r *ToolResult) MarshalJSON() ([]byte, error) {
	type alias ToolResult
	out := alias(*r)
	if len(out.Evidence) > MaxEvidenceRefs {
		out.Evidence = out.Evidence[:MaxEvidenceRefs]
	}
	if out.Data == nil {
		out.Data = make(map[string]any)
	}
	return json.Marshal(out)
}

// truncate bounds s to max bytes, marking the cut.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
