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
	"slices"
	"time"

	"github.com/AleutianAI/AuditPilot/services/audit/dataset"
)

// SessionSnapshot is the serializable image of a session.
//
// Snapshots are the unit of persistence and the read-only view handed to
// external callers; mutating a snapshot never affects the live session.
type SessionSnapshot struct {
	ID               string              `json:"id"`
	Scope            dataset.Scope       `json:"scope"`
	Config           SessionConfig       `json:"config"`
	CreatedAt        time.Time           `json:"created_at"`
	LastActiveAt     time.Time           `json:"last_active_at"`
	Phase            Phase               `json:"phase"`
	PhaseHistory     []PhaseRecord       `json:"phase_history"`
	Statistics       *dataset.Statistics `json:"statistics,omitempty"`
	Patterns         []string            `json:"patterns,omitempty"`
	Hypotheses       []Hypothesis        `json:"hypotheses,omitempty"`
	ApprovedIDs      []string            `json:"approved_hypothesis_ids,omitempty"`
	ApprovalSet      bool                `json:"approval_set,omitempty"`
	ToolCalls        []ToolCallRecord    `json:"tool_calls,omitempty"`
	Insights         []AuditInsight      `json:"insights,omitempty"`
	ExecutiveSummary string              `json:"executive_summary,omitempty"`
	StepCount        int                 `json:"step_count"`
	AwaitingApproval bool                `json:"awaiting_approval"`
	HumanFeedback    string              `json:"human_feedback,omitempty"`
	Error            *AuditError         `json:"error,omitempty"`
}

// Snapshot captures the full session state under a single read lock.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := SessionSnapshot{
		ID:               s.id,
		Scope:            s.scope,
		Config:           s.config,
		CreatedAt:        s.createdAt,
		LastActiveAt:     s.lastActiveAt,
		Phase:            s.phase,
		PhaseHistory:     slices.Clone(s.phaseHistory),
		Statistics:       s.statistics,
		Patterns:         slices.Clone(s.patterns),
		ApprovedIDs:      slices.Clone(s.approvedIDs),
		ApprovalSet:      s.approvalSet,
		ToolCalls:        slices.Clone(s.toolCalls),
		ExecutiveSummary: s.executiveSummary,
		StepCount:        s.stepCount,
		AwaitingApproval: s.awaitingApproval,
		HumanFeedback:    s.humanFeedback,
		Error:            s.auditErr,
	}
	for _, h := range s.hypotheses {
		snap.Hypotheses = append(snap.Hypotheses, *h)
	}
	for _, in := range s.insights {
		snap.Insights = append(snap.Insights, *in)
	}
	return snap
}

// RestoreSession rebuilds a live session from a snapshot.
func RestoreSession(snap SessionSnapshot) *Session {
	s := &Session{
		id:               snap.ID,
		scope:            snap.Scope,
		config:           snap.Config.withDefaults(),
		createdAt:        snap.CreatedAt,
		lastActiveAt:     snap.LastActiveAt,
		phase:            snap.Phase,
		phaseHistory:     slices.Clone(snap.PhaseHistory),
		statistics:       snap.Statistics,
		patterns:         slices.Clone(snap.Patterns),
		approvedIDs:      slices.Clone(snap.ApprovedIDs),
		approvalSet:      snap.ApprovalSet,
		toolCalls:        slices.Clone(snap.ToolCalls),
		executiveSummary: snap.ExecutiveSummary,
		stepCount:        snap.StepCount,
		awaitingApproval: snap.AwaitingApproval,
		humanFeedback:    snap.HumanFeedback,
		auditErr:         snap.Error,
	}
	for i := range snap.Hypotheses {
		h := snap.Hypotheses[i]
		s.hypotheses = append(s.hypotheses, &h)
	}
	for i := range snap.Insights {
		in := snap.Insights[i]
		s.insights = append(s.insights, &in)
	}
	return s
}
