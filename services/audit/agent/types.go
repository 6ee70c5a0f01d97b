// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agent provides the phase-driven hypothesis-testing engine that
// coordinates the reasoning oracle, the analysis-tool registry, and the
// session state for one audit run.
//
// The engine is a finite state machine over the phases OBSERVE, HYPOTHESIZE,
// EXPLORE, VERIFY, SYNTHESIZE, COMPLETE, and ERROR. Phase transitions are
// driven by structured oracle output, parsed and validated at each boundary;
// malformed output, exhausted retries, and budget violations terminate the
// run in ERROR rather than propagating exceptions to the caller.
//
// Thread Safety:
//
//	All exported types in this package are designed for concurrent use.
//	Sessions are protected by internal synchronization.
package agent

import (
	"fmt"
	"time"

	"github.com/AleutianAI/AuditPilot/services/audit/tools"
)

// Phase represents a state in the audit workflow state machine.
type Phase string

const (
	// PhaseObserve reviews dataset statistics for notable patterns.
	PhaseObserve Phase = "OBSERVE"

	// PhaseHypothesize generates falsifiable hypotheses from observations.
	PhaseHypothesize Phase = "HYPOTHESIZE"

	// PhaseExplore runs analysis tools selected by the oracle.
	PhaseExplore Phase = "EXPLORE"

	// PhaseVerify scores each hypothesis against collected evidence.
	PhaseVerify Phase = "VERIFY"

	// PhaseSynthesize folds verified hypotheses into reportable insights.
	PhaseSynthesize Phase = "SYNTHESIZE"

	// PhaseComplete indicates a successful run.
	PhaseComplete Phase = "COMPLETE"

	// PhaseError indicates the run terminated unrecoverably.
	PhaseError Phase = "ERROR"
)

// String returns the phase as a string.
func (p Phase) String() string {
	return string(p)
}

// IsTerminal returns true for COMPLETE and ERROR.
func (p Phase) IsTerminal() bool {
	return p == PhaseComplete || p == PhaseError
}

// IsValid reports whether p is one of the defined phases.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseObserve, PhaseHypothesize, PhaseExplore, PhaseVerify,
		PhaseSynthesize, PhaseComplete, PhaseError:
		return true
	default:
		return false
	}
}

// AllPhases returns all valid phases in workflow order.
func AllPhases() []Phase {
	return []Phase{
		PhaseObserve,
		PhaseHypothesize,
		PhaseExplore,
		PhaseVerify,
		PhaseSynthesize,
		PhaseComplete,
		PhaseError,
	}
}

// HypothesisStatus is the lifecycle status of a hypothesis.
type HypothesisStatus string

const (
	// StatusPending marks a hypothesis awaiting exploration.
	StatusPending HypothesisStatus = "pending"

	// StatusTesting marks a hypothesis currently being explored.
	StatusTesting HypothesisStatus = "testing"

	// StatusSupported marks evidence strongly supporting the claim.
	StatusSupported HypothesisStatus = "supported"

	// StatusPartiallySupported marks mixed but favorable evidence.
	StatusPartiallySupported HypothesisStatus = "partially_supported"

	// StatusInconclusive marks evidence too weak to decide either way.
	StatusInconclusive HypothesisStatus = "inconclusive"

	// StatusRefuted marks evidence contradicting the claim.
	StatusRefuted HypothesisStatus = "refuted"
)

// Verdict score bands. Boundaries are inclusive on the upper band: a score of
// exactly 0.70 is supported, 0.40 partially supported, 0.20 inconclusive.
const (
	SupportedThreshold    = 0.70
	PartialThreshold      = 0.40
	InconclusiveThreshold = 0.20
)

// StatusForScore maps a grounding score in [0,1] to its verdict band.
//
// The status is set from the band, never from the oracle's free-text verdict.
func StatusForScore(score float64) HypothesisStatus {
	switch {
	case score >= SupportedThreshold:
		return StatusSupported
	case score >= PartialThreshold:
		return StatusPartiallySupported
	case score >= InconclusiveThreshold:
		return StatusInconclusive
	default:
		return StatusRefuted
	}
}

// Hypothesis is a falsifiable claim under test.
//
// Hypotheses are created during HYPOTHESIZE and mutated during VERIFY (status,
// grounding score, evidence lists). Once the status leaves "testing" the
// record is immutable except for re-verification. A hypothesis is owned
// exclusively by the session that created it.
type Hypothesis struct {
	// ID is stable and sortable, sequence-coded per session (H-001, H-002…).
	ID string `json:"id"`

	// Title is a short name for the claim.
	Title string `json:"title"`

	// Description states the claim precisely.
	Description string `json:"description"`

	// Rationale explains why the claim is worth testing.
	Rationale string `json:"rationale"`

	// TestApproach describes how the tools will exercise the claim.
	TestApproach string `json:"test_approach"`

	// ToolsToUse lists registry tool names, in intended order.
	ToolsToUse []string `json:"tools_to_use"`

	// Priority orders hypotheses; lower is more urgent. Always positive.
	Priority int `json:"priority"`

	// Status is the lifecycle status.
	Status HypothesisStatus `json:"status"`

	// EvidenceFor accumulates supporting evidence text, in arrival order.
	EvidenceFor []string `json:"evidence_for"`

	// EvidenceAgainst accumulates contradicting evidence text.
	EvidenceAgainst []string `json:"evidence_against"`

	// GroundingScore is the verification confidence in [0,1].
	GroundingScore float64 `json:"grounding_score"`
}

// HypothesisID formats the sequence-coded identifier for index i (0-based).
func HypothesisID(i int) string {
	return fmt.Sprintf("H-%03d", i+1)
}

// Severity ranks an insight's importance.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// IsValid reports whether s is a defined severity.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	default:
		return false
	}
}

// AuditInsight is a synthesized, reportable finding.
//
// Insights are created only during SYNTHESIZE, from one or more supported or
// partially supported hypotheses, and are immutable once created.
type AuditInsight struct {
	// ID is the insight identifier (I-001, I-002…).
	ID string `json:"id"`

	// Title is a short name for the finding.
	Title string `json:"title"`

	// Description explains the finding.
	Description string `json:"description"`

	// Category is the finding category (e.g. "disbursements").
	Category string `json:"category"`

	// Severity ranks the finding.
	Severity Severity `json:"severity"`

	// Evidence lists the supporting evidence text.
	Evidence []string `json:"evidence"`

	// GroundingScore carries the evidence strength in [0,1], using the
	// same band semantics as hypothesis verdicts.
	GroundingScore float64 `json:"grounding_score"`

	// AffectedAmount is the monetary exposure attributed to the finding.
	AffectedAmount float64 `json:"affected_amount"`

	// AffectedCount is the number of records involved.
	AffectedCount int64 `json:"affected_count"`

	// Recommendations lists suggested follow-up actions.
	Recommendations []string `json:"recommendations"`

	// HypothesisIDs references the contributing hypotheses. Never empty.
	HypothesisIDs []string `json:"hypothesis_ids"`

	// Data is a free-form supporting payload.
	Data map[string]any `json:"data,omitempty"`
}

// PhaseRecord is one append-only phase-history entry.
type PhaseRecord struct {
	// Phase is the phase that was entered.
	Phase Phase `json:"phase"`

	// Timestamp is when the transition occurred.
	Timestamp time.Time `json:"timestamp"`

	// Summary describes what the transition was about.
	Summary string `json:"summary"`
}

// ToolCallRecord is one exploration-log entry linking a hypothesis to a tool
// invocation and its result. The log preserves call order for audit.
type ToolCallRecord struct {
	// HypothesisID is the hypothesis the call was issued for.
	HypothesisID string `json:"hypothesis_id"`

	// ToolName is the registry name invoked.
	ToolName string `json:"tool_name"`

	// Params are the named arguments the oracle selected.
	Params map[string]any `json:"params"`

	// Step is the 0-indexed position in the exploration log.
	Step int `json:"step"`

	// Result is the outcome of the invocation. Never nil once recorded.
	Result *tools.ToolResult `json:"result"`
}

// Approval is the human-approval channel payload.
//
// A nil ApprovedIDs slice means "approve all pending hypotheses"; an empty
// non-nil slice approves none.
type Approval struct {
	ApprovedIDs []string `json:"approved_hypothesis_ids"`
	Feedback    string   `json:"feedback,omitempty"`
}

// ApprovalRequest describes the HITL checkpoint handed to the caller.
type ApprovalRequest struct {
	// SessionID identifies the suspended session.
	SessionID string `json:"session_id"`

	// Hypotheses are the pending hypotheses awaiting approval.
	Hypotheses []Hypothesis `json:"hypotheses"`
}

// RunResult is the outcome of a Run or Resume call.
type RunResult struct {
	// Phase is the phase the session ended the call in.
	Phase Phase `json:"phase"`

	// StepsTaken is the number of oracle calls consumed so far.
	StepsTaken int `json:"steps_taken"`

	// Insights are the synthesized findings (COMPLETE only).
	Insights []AuditInsight `json:"insights,omitempty"`

	// ExecutiveSummary is the run summary (COMPLETE only).
	ExecutiveSummary string `json:"executive_summary,omitempty"`

	// NeedsApproval is set when the session suspended for HITL approval.
	NeedsApproval *ApprovalRequest `json:"needs_approval,omitempty"`

	// Error carries the failure (ERROR only).
	Error *AuditError `json:"error,omitempty"`
}

// AuditError is the structured terminal error for the ERROR phase.
//
// AuditError implements the error interface so it can travel as a standard
// Go error while remaining serializable in Session State.
type AuditError struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is the human-readable message.
	Message string `json:"message"`

	// Recoverable indicates whether a fresh run might succeed.
	Recoverable bool `json:"recoverable"`
}

// Error implements the error interface.
func (e *AuditError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
