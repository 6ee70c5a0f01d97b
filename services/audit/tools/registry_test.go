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
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"
)

func testTool(name string, handler ToolFunc) *ToolDefinition {
	return &ToolDefinition{
		Name:        name,
		Description: "test tool",
		Category:    CategoryPayments,
		Parameters: map[string]ParamDef{
			ScopeParam: {Type: "string", Description: "period"},
		},
		Required: []string{ScopeParam},
		Handler:  handler,
	}
}

func okHandler(summary string) ToolFunc {
	return func(ctx context.Context, params map[string]any) (*ToolResult, error) {
		res := NewResult("", summary)
		return res, nil
	}
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()

	res := r.Execute(context.Background(), "nonexistent", map[string]any{ScopeParam: "2025-Q1"})
	if res == nil {
		t.Fatal("Execute returned nil result")
	}
	if res.Success {
		t.Error("expected failure for unknown tool")
	}
	if !strings.Contains(res.Error, "nonexistent") {
		t.Errorf("error should name the missing tool, got %q", res.Error)
	}
	if res.Data == nil {
		t.Error("Data must be non-nil on failure")
	}
}

func TestRegistry_ExecuteIsolatesErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler ToolFunc
		wantErr string
	}{
		{
			name: "handler_error",
			handler: func(ctx context.Context, params map[string]any) (*ToolResult, error) {
				return nil, errors.New("query failed")
			},
			wantErr: "query failed",
		},
		{
			name: "handler_panic",
			handler: func(ctx context.Context, params map[string]any) (*ToolResult, error) {
				panic("index out of range")
			},
			wantErr: "panic",
		},
		{
			name: "nil_result",
			handler: func(ctx context.Context, params map[string]any) (*ToolResult, error) {
				return nil, nil
			},
			wantErr: "no result",
		},
		{
			name: "failure_without_message",
			handler: func(ctx context.Context, params map[string]any) (*ToolResult, error) {
				return &ToolResult{Success: false}, nil
			},
			wantErr: "without a message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			r.Register(testTool("faulty", tt.handler))

			res := r.Execute(context.Background(), "faulty", map[string]any{ScopeParam: "2025-Q1"})
			if res.Success {
				t.Fatal("expected failure")
			}
			if res.Error == "" {
				t.Fatal("failed result must carry an error message")
			}
			if !strings.Contains(res.Error, tt.wantErr) {
				t.Errorf("error %q does not contain %q", res.Error, tt.wantErr)
			}
			if res.Duration <= 0 {
				t.Error("duration must be recorded on failure")
			}
		})
	}
}

func TestRegistry_ExecuteMissingRequiredParam(t *testing.T) {
	r := NewRegistry()
	r.Register(testTool("scoped", okHandler("ok")))

	res := r.Execute(context.Background(), "scoped", map[string]any{})
	if res.Success {
		t.Fatal("expected failure without the scope parameter")
	}
	if !strings.Contains(res.Error, ScopeParam) {
		t.Errorf("error should name %q, got %q", ScopeParam, res.Error)
	}
}

func TestRegistry_ExecuteTimeout(t *testing.T) {
	r := NewRegistry()
	def := testTool("slow", func(ctx context.Context, params map[string]any) (*ToolResult, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return NewResult("slow", "finished"), nil
		}
	})
	def.Timeout = 20 * time.Millisecond
	r.Register(def)

	res := r.Execute(context.Background(), "slow", map[string]any{ScopeParam: "2025-Q1"})
	if res.Success {
		t.Fatal("expected timeout failure")
	}
	if !strings.Contains(res.Error, "timed out") {
		t.Errorf("expected timeout error, got %q", res.Error)
	}
}

func TestRegistry_RegisterLastWriteWins(t *testing.T) {
	r := NewRegistry()
	r.Register(testTool("dupe", okHandler("first")))
	r.Register(testTool("dupe", okHandler("second")))

	res := r.Execute(context.Background(), "dupe", map[string]any{ScopeParam: "2025-Q1"})
	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	if res.Summary != "second" {
		t.Errorf("expected the later registration to win, got summary %q", res.Summary)
	}
}

func TestRegistry_SchemasDeterministic(t *testing.T) {
	build := func() *Registry {
		r := NewRegistry()
		// Insertion order differs from name order on purpose.
		r.Register(testTool("zeta", okHandler("z")))
		r.Register(testTool("alpha", okHandler("a")))
		r.Register(testTool("mid", okHandler("m")))
		return r
	}

	first := build().Schemas()
	second := build().Schemas()

	if !reflect.DeepEqual(first, second) {
		t.Fatal("schemas are not deterministic across identical registries")
	}

	wantOrder := []string{"alpha", "mid", "zeta"}
	for i, schema := range first {
		if schema.Name != wantOrder[i] {
			t.Errorf("schema %d = %q, want %q", i, schema.Name, wantOrder[i])
		}
		if schema.Parameters.Type != "object" {
			t.Errorf("schema %s parameters type = %q, want object", schema.Name, schema.Parameters.Type)
		}
		if len(schema.Parameters.Required) == 0 || schema.Parameters.Required[0] != ScopeParam {
			t.Errorf("schema %s must require %q", schema.Name, ScopeParam)
		}
	}
}

func TestToolDefinition_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ToolDefinition)
		wantErr bool
	}{
		{"valid", func(d *ToolDefinition) {}, false},
		{"no_name", func(d *ToolDefinition) { d.Name = "" }, true},
		{"no_handler", func(d *ToolDefinition) { d.Handler = nil }, true},
		{"required_not_declared", func(d *ToolDefinition) { d.Required = append(d.Required, "ghost") }, true},
		{"scope_not_required", func(d *ToolDefinition) { d.Required = []string{} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := testTool("t", okHandler("ok"))
			tt.mutate(def)
			err := def.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestToolResult_EvidenceCapOnSerialization(t *testing.T) {
	res := NewResult("capped", "many refs")
	for i := 0; i < 25; i++ {
		res.Evidence = append(res.Evidence, fmt.Sprintf("ref-%02d", i))
	}

	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded struct {
		Evidence []string `json:"evidence"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Evidence) != MaxEvidenceRefs {
		t.Errorf("serialized evidence = %d entries, want %d", len(decoded.Evidence), MaxEvidenceRefs)
	}
	// The in-memory result keeps everything.
	if len(res.Evidence) != 25 {
		t.Errorf("in-memory evidence mutated: %d entries", len(res.Evidence))
	}
}

func TestBuiltinCatalog_DefinitionsValid(t *testing.T) {
	for _, spec := range builtinCatalog {
		t.Run(spec.name, func(t *testing.T) {
			def := newAggregateTool(spec, nil)
			if err := def.Validate(); err != nil {
				t.Errorf("builtin %s invalid: %v", spec.name, err)
			}
		})
	}
}

func TestBuiltinCatalog_IncludesVelocityOutliers(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r, nil)

	for _, schema := range r.Schemas() {
		if schema.Name != "velocity_outliers" {
			continue
		}
		if len(schema.Parameters.Required) == 0 || schema.Parameters.Required[0] != ScopeParam {
			t.Errorf("velocity_outliers must require %q", ScopeParam)
		}
		return
	}
	t.Error("velocity_outliers is not in the catalog")
}

func TestBuiltinCatalog_DormantAccountsDerivePriorPeriod(t *testing.T) {
	var spec builtinSpec
	for _, s := range builtinCatalog {
		if s.name == "dormant_account_activity" {
			spec = s
		}
	}
	if spec.queryArgs == nil {
		t.Fatal("dormant_account_activity must derive the prior period label")
	}

	args, err := spec.queryArgs("2025-Q1")
	if err != nil {
		t.Fatalf("queryArgs: %v", err)
	}
	if len(args) != 1 || args[0] != "2024-Q4" {
		t.Errorf("queryArgs(2025-Q1) = %v, want [2024-Q4]", args)
	}

	// Range scopes have no prior period; the call must fail before the
	// database is touched.
	r := NewRegistry()
	RegisterBuiltins(r, nil)
	res := r.Execute(context.Background(), "dormant_account_activity",
		map[string]any{ScopeParam: "2025-01..2025-06"})
	if res.Success {
		t.Fatal("expected failure for a range scope")
	}
	if !strings.Contains(res.Error, "prior period") {
		t.Errorf("error = %q, want prior-period message", res.Error)
	}
}
