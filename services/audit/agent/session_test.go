// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"errors"
	"testing"

	"github.com/AleutianAI/AuditPilot/services/audit/dataset"
	"github.com/AleutianAI/AuditPilot/services/audit/tools"
)

func newTestSession(t *testing.T, cfg SessionConfig) *Session {
	t.Helper()
	session, err := NewSession(dataset.Scope{Period: "2025-Q3"}, cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return session
}

func TestNewSession_RequiresPeriod(t *testing.T) {
	_, err := NewSession(dataset.Scope{}, DefaultSessionConfig())
	if !errors.Is(err, ErrEmptyScope) {
		t.Fatalf("error = %v, want ErrEmptyScope", err)
	}
}

func TestNewSession_RejectsMalformedScope(t *testing.T) {
	if _, err := NewSession(dataset.Scope{Period: "Q3-ish"}, DefaultSessionConfig()); err == nil {
		t.Error("expected error for malformed period")
	}
	if _, err := NewSession(dataset.Scope{Period: "2025-Q3", Entity: "x'; --"}, DefaultSessionConfig()); err == nil {
		t.Error("expected error for malformed entity")
	}
}

func TestSession_ChargeStepEnforcesBudget(t *testing.T) {
	session := newTestSession(t, SessionConfig{MaxSteps: 3})

	for i := 0; i < 3; i++ {
		if err := session.ChargeStep(); err != nil {
			t.Fatalf("step %d: %v", i+1, err)
		}
	}
	err := session.ChargeStep()
	if !errors.Is(err, ErrMaxStepsExceeded) {
		t.Fatalf("4th step error = %v, want ErrMaxStepsExceeded", err)
	}
	if got := session.StepCount(); got != 3 {
		t.Errorf("StepCount = %d, want 3", got)
	}
}

func TestSession_AddHypothesesAssignsIDsAndEnforcesBudget(t *testing.T) {
	session := newTestSession(t, SessionConfig{MaxHypotheses: 2})

	batch := []*Hypothesis{
		{Title: "A", Description: "a"},
		{Title: "B", Description: "b"},
	}
	if err := session.AddHypotheses(batch); err != nil {
		t.Fatalf("AddHypotheses: %v", err)
	}

	got := session.Hypotheses()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "H-001" || got[1].ID != "H-002" {
		t.Errorf("IDs = %s, %s", got[0].ID, got[1].ID)
	}
	for _, h := range got {
		if h.Status != StatusPending {
			t.Errorf("%s status = %s, want pending", h.ID, h.Status)
		}
	}

	err := session.AddHypotheses([]*Hypothesis{{Title: "C", Description: "c"}})
	if !errors.Is(err, ErrMaxHypothesesExceeded) {
		t.Fatalf("over-budget error = %v, want ErrMaxHypothesesExceeded", err)
	}
}

func TestSession_ApplyVerification(t *testing.T) {
	session := newTestSession(t, DefaultSessionConfig())
	if err := session.AddHypotheses([]*Hypothesis{{Title: "A", Description: "a"}}); err != nil {
		t.Fatal(err)
	}

	err := session.ApplyVerification("H-001", 0.9, []string{"strong signal"}, nil)
	if err != nil {
		t.Fatalf("ApplyVerification: %v", err)
	}

	h, ok := session.Hypothesis("H-001")
	if !ok {
		t.Fatal("hypothesis not found")
	}
	if h.Status != StatusSupported {
		t.Errorf("status = %s, want supported", h.Status)
	}
	if h.GroundingScore != 0.9 {
		t.Errorf("score = %v, want 0.9", h.GroundingScore)
	}
	if len(h.EvidenceFor) != 1 || h.EvidenceFor[0] != "strong signal" {
		t.Errorf("evidence = %v", h.EvidenceFor)
	}

	if err := session.ApplyVerification("H-999", 0.5, nil, nil); err == nil {
		t.Error("expected error for unknown hypothesis")
	}
}

func TestSession_ApprovalSemantics(t *testing.T) {
	t.Run("nil ids approves all", func(t *testing.T) {
		session := newTestSession(t, DefaultSessionConfig())
		if err := session.AddHypotheses([]*Hypothesis{
			{Title: "A", Description: "a"},
			{Title: "B", Description: "b"},
		}); err != nil {
			t.Fatal(err)
		}

		session.SetAwaitingApproval()
		if err := session.ApplyApproval(Approval{Feedback: "looks good"}); err != nil {
			t.Fatalf("ApplyApproval: %v", err)
		}
		if session.AwaitingApproval() {
			t.Error("still awaiting approval")
		}
		if got := len(session.ApprovedHypotheses()); got != 2 {
			t.Errorf("approved = %d, want 2", got)
		}
		if session.HumanFeedback() != "looks good" {
			t.Errorf("feedback = %q", session.HumanFeedback())
		}
	})

	t.Run("subset ids approve only those", func(t *testing.T) {
		session := newTestSession(t, DefaultSessionConfig())
		if err := session.AddHypotheses([]*Hypothesis{
			{Title: "A", Description: "a"},
			{Title: "B", Description: "b"},
		}); err != nil {
			t.Fatal(err)
		}

		session.SetAwaitingApproval()
		if err := session.ApplyApproval(Approval{ApprovedIDs: []string{"H-002"}}); err != nil {
			t.Fatal(err)
		}
		approved := session.ApprovedHypotheses()
		if len(approved) != 1 || approved[0].ID != "H-002" {
			t.Errorf("approved = %+v", approved)
		}
	})

	t.Run("empty non-nil ids approve none", func(t *testing.T) {
		session := newTestSession(t, DefaultSessionConfig())
		if err := session.AddHypotheses([]*Hypothesis{{Title: "A", Description: "a"}}); err != nil {
			t.Fatal(err)
		}

		session.SetAwaitingApproval()
		if err := session.ApplyApproval(Approval{ApprovedIDs: []string{}}); err != nil {
			t.Fatal(err)
		}
		if got := len(session.ApprovedHypotheses()); got != 0 {
			t.Errorf("approved = %d, want 0", got)
		}
	})

	t.Run("approval without checkpoint", func(t *testing.T) {
		session := newTestSession(t, DefaultSessionConfig())
		err := session.ApplyApproval(Approval{})
		if !errors.Is(err, ErrNotAwaitingApproval) {
			t.Errorf("error = %v, want ErrNotAwaitingApproval", err)
		}
	})
}

func TestSession_ExplorationLogPreservesOrder(t *testing.T) {
	session := newTestSession(t, DefaultSessionConfig())

	session.RecordToolCall("H-001", "first", map[string]any{"period": "2025-Q3"}, tools.NewResult("first", "ok"))
	session.RecordToolCall("H-002", "second", map[string]any{"period": "2025-Q3"}, tools.NewResult("second", "ok"))
	session.RecordToolCall("H-001", "third", map[string]any{"period": "2025-Q3"}, tools.FailedResult("third", "boom"))

	log := session.ToolCalls()
	if len(log) != 3 {
		t.Fatalf("log length = %d, want 3", len(log))
	}
	for i, rec := range log {
		if rec.Step != i {
			t.Errorf("log[%d].Step = %d", i, rec.Step)
		}
	}

	forFirst := session.ToolCallsFor("H-001")
	if len(forFirst) != 2 {
		t.Fatalf("calls for H-001 = %d, want 2", len(forFirst))
	}
	if forFirst[0].ToolName != "first" || forFirst[1].ToolName != "third" {
		t.Errorf("order = %s, %s", forFirst[0].ToolName, forFirst[1].ToolName)
	}
}

func TestSession_TryAcquire(t *testing.T) {
	session := newTestSession(t, DefaultSessionConfig())

	if !session.TryAcquire() {
		t.Fatal("first acquire failed")
	}
	if session.TryAcquire() {
		t.Fatal("second acquire succeeded while held")
	}
	session.Release()
	if !session.TryAcquire() {
		t.Fatal("acquire after release failed")
	}
}

func TestSession_SnapshotRoundTrip(t *testing.T) {
	session := newTestSession(t, SessionConfig{MaxSteps: 7})
	if err := session.AddHypotheses([]*Hypothesis{{Title: "A", Description: "a"}}); err != nil {
		t.Fatal(err)
	}
	if err := session.ChargeStep(); err != nil {
		t.Fatal(err)
	}
	session.SetPatterns([]string{"p1", "p2"})
	session.SetPhase(PhaseHypothesize, "test")
	session.RecordToolCall("H-001", "t", map[string]any{"period": "2025-Q3"}, tools.NewResult("t", "ok"))

	restored := RestoreSession(session.Snapshot())

	if restored.ID() != session.ID() {
		t.Errorf("ID mismatch: %s vs %s", restored.ID(), session.ID())
	}
	if restored.GetPhase() != PhaseHypothesize {
		t.Errorf("phase = %s", restored.GetPhase())
	}
	if restored.StepCount() != 1 {
		t.Errorf("steps = %d", restored.StepCount())
	}
	if got := restored.Patterns(); len(got) != 2 {
		t.Errorf("patterns = %v", got)
	}
	if got := restored.Hypotheses(); len(got) != 1 || got[0].ID != "H-001" {
		t.Errorf("hypotheses = %+v", got)
	}
	if got := restored.ToolCalls(); len(got) != 1 {
		t.Errorf("tool calls = %d", len(got))
	}
	if restored.Config().MaxSteps != 7 {
		t.Errorf("MaxSteps = %d", restored.Config().MaxSteps)
	}

	// Restored session is independent of the original.
	restored.SetPatterns([]string{"changed"})
	if got := session.Patterns(); len(got) != 2 {
		t.Errorf("original mutated: %v", got)
	}
}
