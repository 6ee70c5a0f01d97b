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
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AuditPilot/pkg/validation"
	"github.com/AleutianAI/AuditPilot/services/audit/dataset"
	"github.com/AleutianAI/AuditPilot/services/audit/tools"
)

// Default budget values applied when SessionConfig leaves a field zero.
const (
	DefaultMaxSteps              = 12
	DefaultMaxHypotheses         = 5
	DefaultMaxToolsPerHypothesis = 3
	DefaultMaxParseRetries       = 2
	DefaultSessionTimeout        = 10 * time.Minute
)

// SessionConfig holds the per-session budgets and knobs.
type SessionConfig struct {
	// MaxSteps bounds the total oracle calls for the run.
	MaxSteps int `json:"max_steps" yaml:"max_steps"`

	// MaxHypotheses bounds how many hypotheses one run may carry.
	MaxHypotheses int `json:"max_hypotheses" yaml:"max_hypotheses"`

	// MaxToolsPerHypothesis bounds tool calls charged to one hypothesis.
	MaxToolsPerHypothesis int `json:"max_tools_per_hypothesis" yaml:"max_tools_per_hypothesis"`

	// MaxParseRetries bounds re-prompts after malformed oracle output.
	MaxParseRetries int `json:"max_parse_retries" yaml:"max_parse_retries"`

	// RequireApproval suspends the run after HYPOTHESIZE for human sign-off.
	RequireApproval bool `json:"require_approval" yaml:"require_approval"`

	// SessionTimeout bounds the wall-clock duration of one Run call.
	SessionTimeout time.Duration `json:"session_timeout" yaml:"session_timeout"`
}

// DefaultSessionConfig returns the default budgets.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxSteps:              DefaultMaxSteps,
		MaxHypotheses:         DefaultMaxHypotheses,
		MaxToolsPerHypothesis: DefaultMaxToolsPerHypothesis,
		MaxParseRetries:       DefaultMaxParseRetries,
		SessionTimeout:        DefaultSessionTimeout,
	}
}

// withDefaults fills zero-valued budgets from the defaults.
func (c SessionConfig) withDefaults() SessionConfig {
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if c.MaxHypotheses <= 0 {
		c.MaxHypotheses = DefaultMaxHypotheses
	}
	if c.MaxToolsPerHypothesis <= 0 {
		c.MaxToolsPerHypothesis = DefaultMaxToolsPerHypothesis
	}
	if c.MaxParseRetries < 0 {
		c.MaxParseRetries = DefaultMaxParseRetries
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = DefaultSessionTimeout
	}
	return c
}

// Session is the aggregate root for one audit run.
//
// Description:
//
//	Session owns all mutable run state: the current phase, the append-only
//	phase history, observations and notable patterns, the hypothesis set,
//	the exploration log, synthesized insights, budget counters, and the
//	human-approval flags. All cross-cutting state lives here; phases and
//	the controller read and write exclusively through the accessor methods.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. Accessors that return slices
//	or maps return copies.
type Session struct {
	mu sync.RWMutex

	id        string
	scope     dataset.Scope
	config    SessionConfig
	createdAt time.Time

	phase        Phase
	phaseHistory []PhaseRecord

	statistics *dataset.Statistics
	patterns   []string

	hypotheses  []*Hypothesis
	approvedIDs []string
	approvalSet bool

	toolCalls []ToolCallRecord

	insights         []*AuditInsight
	executiveSummary string

	stepCount        int
	awaitingApproval bool
	humanFeedback    string

	auditErr *AuditError

	inProgress   bool
	lastActiveAt time.Time
}

// NewSession creates a session in the OBSERVE phase for the given scope.
//
// Outputs:
//
//	*Session - Initialized session with a fresh UUID
//	error - ErrEmptyScope if the scope has no audit period, or a
//	validation error for a malformed period or entity
func NewSession(scope dataset.Scope, config SessionConfig) (*Session, error) {
	if scope.Period == "" {
		return nil, ErrEmptyScope
	}
	if err := validation.ValidatePeriod(scope.Period); err != nil {
		return nil, fmt.Errorf("scope: %w", err)
	}
	if err := validation.ValidateEntity(scope.Entity); err != nil {
		return nil, fmt.Errorf("scope: %w", err)
	}

	now := time.Now()
	s := &Session{
		id:           uuid.NewString(),
		scope:        scope,
		config:       config.withDefaults(),
		createdAt:    now,
		lastActiveAt: now,
		phase:        PhaseObserve,
	}
	s.phaseHistory = append(s.phaseHistory, PhaseRecord{
		Phase:     PhaseObserve,
		Timestamp: now,
		Summary:   "Session created",
	})
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Scope returns the audit scope.
func (s *Session) Scope() dataset.Scope {
	return s.scope
}

// Config returns the session budgets.
func (s *Session) Config() SessionConfig {
	return s.config
}

// CreatedAt returns the creation time.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// GetPhase returns the current phase.
func (s *Session) GetPhase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// SetPhase updates the phase and appends a phase-history record.
//
// Callers should prefer StateMachine.Transition, which validates first.
func (s *Session) SetPhase(phase Phase, summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
	s.lastActiveAt = time.Now()
	s.phaseHistory = append(s.phaseHistory, PhaseRecord{
		Phase:     phase,
		Timestamp: s.lastActiveAt,
		Summary:   summary,
	})
}

// PhaseHistory returns a copy of the append-only phase history.
func (s *Session) PhaseHistory() []PhaseRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.phaseHistory)
}

// SetStatistics records the dataset statistics observed for the scope.
func (s *Session) SetStatistics(stats *dataset.Statistics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statistics = stats
}

// Statistics returns the observed dataset statistics, or nil before OBSERVE.
func (s *Session) Statistics() *dataset.Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statistics
}

// SetPatterns records the notable patterns identified during OBSERVE.
func (s *Session) SetPatterns(patterns []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = slices.Clone(patterns)
}

// Patterns returns a copy of the notable patterns.
func (s *Session) Patterns() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.patterns)
}

// AddHypotheses appends a batch of hypotheses, assigning sequence-coded IDs
// and pending status.
//
// Outputs:
//
//	error - ErrMaxHypothesesExceeded if the batch would exceed the budget
func (s *Session) AddHypotheses(batch []*Hypothesis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.hypotheses)+len(batch) > s.config.MaxHypotheses {
		return fmt.Errorf("%w: %d existing + %d new > %d",
			ErrMaxHypothesesExceeded, len(s.hypotheses), len(batch), s.config.MaxHypotheses)
	}

	for _, h := range batch {
		h.ID = HypothesisID(len(s.hypotheses))
		h.Status = StatusPending
		if h.Priority <= 0 {
			h.Priority = len(s.hypotheses) + 1
		}
		s.hypotheses = append(s.hypotheses, h)
	}
	return nil
}

// Hypotheses returns copies of all hypotheses, in creation order.
func (s *Session) Hypotheses() []Hypothesis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Hypothesis, 0, len(s.hypotheses))
	for _, h := range s.hypotheses {
		out = append(out, *h)
	}
	return out
}

// Hypothesis returns a copy of the hypothesis with the given ID.
func (s *Session) Hypothesis(id string) (Hypothesis, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.hypotheses {
		if h.ID == id {
			return *h, true
		}
	}
	return Hypothesis{}, false
}

// ApprovedHypotheses returns copies of the hypotheses selected for
// exploration. Before any approval decision, all pending hypotheses are
// in scope; after one, only the approved IDs are.
func (s *Session) ApprovedHypotheses() []Hypothesis {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Hypothesis, 0, len(s.hypotheses))
	for _, h := range s.hypotheses {
		if s.approvalSet && !slices.Contains(s.approvedIDs, h.ID) {
			continue
		}
		out = append(out, *h)
	}
	return out
}

// MarkTesting moves a hypothesis into the testing status.
func (s *Session) MarkTesting(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.hypotheses {
		if h.ID == id {
			h.Status = StatusTesting
			return
		}
	}
}

// ApplyVerification records a verification verdict for a hypothesis.
//
// Description:
//
//	Clamps the score to [0,1], derives the status from the score band, and
//	appends the evidence lists. The free-text verdict from the oracle is
//	never trusted for the status.
//
// Outputs:
//
//	error - ErrSessionNotFound-style miss if the ID is unknown
func (s *Session) ApplyVerification(id string, score float64, evidenceFor, evidenceAgainst []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	score = min(max(score, 0), 1)
	for _, h := range s.hypotheses {
		if h.ID != id {
			continue
		}
		h.GroundingScore = score
		h.Status = StatusForScore(score)
		h.EvidenceFor = append(h.EvidenceFor, evidenceFor...)
		h.EvidenceAgainst = append(h.EvidenceAgainst, evidenceAgainst...)
		return nil
	}
	return fmt.Errorf("apply verification: unknown hypothesis %q", id)
}

// SetAwaitingApproval raises the human-approval flag.
func (s *Session) SetAwaitingApproval() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.awaitingApproval = true
	s.lastActiveAt = time.Now()
}

// AwaitingApproval reports whether the session is suspended at the
// approval checkpoint.
func (s *Session) AwaitingApproval() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.awaitingApproval
}

// ApplyApproval records a human-approval decision and clears the flag.
//
// A nil ApprovedIDs slice approves every pending hypothesis; an empty
// non-nil slice approves none, in which case the run proceeds with an
// empty exploration set.
//
// Outputs:
//
//	error - ErrNotAwaitingApproval if no checkpoint is pending
func (s *Session) ApplyApproval(approval Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.awaitingApproval {
		return ErrNotAwaitingApproval
	}

	if approval.ApprovedIDs != nil {
		s.approvedIDs = slices.Clone(approval.ApprovedIDs)
		s.approvalSet = true
	}
	s.humanFeedback = approval.Feedback
	s.awaitingApproval = false
	s.lastActiveAt = time.Now()
	return nil
}

// HumanFeedback returns the free-text feedback recorded at approval.
func (s *Session) HumanFeedback() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.humanFeedback
}

// ChargeStep consumes one unit of the oracle-call budget.
//
// Outputs:
//
//	error - ErrMaxStepsExceeded once the budget is exhausted
func (s *Session) ChargeStep() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stepCount >= s.config.MaxSteps {
		return fmt.Errorf("%w: %d of %d used", ErrMaxStepsExceeded, s.stepCount, s.config.MaxSteps)
	}
	s.stepCount++
	s.lastActiveAt = time.Now()
	return nil
}

// StepCount returns the number of oracle calls consumed so far.
func (s *Session) StepCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stepCount
}

// RecordToolCall appends one exploration-log entry, preserving call order.
func (s *Session) RecordToolCall(hypothesisID, toolName string, params map[string]any, result *tools.ToolResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolCalls = append(s.toolCalls, ToolCallRecord{
		HypothesisID: hypothesisID,
		ToolName:     toolName,
		Params:       params,
		Step:         len(s.toolCalls),
		Result:       result,
	})
	s.lastActiveAt = time.Now()
}

// ToolCalls returns a copy of the exploration log, in call order.
func (s *Session) ToolCalls() []ToolCallRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.toolCalls)
}

// ToolCallsFor returns the exploration-log entries charged to one hypothesis.
func (s *Session) ToolCallsFor(hypothesisID string) []ToolCallRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ToolCallRecord
	for _, rec := range s.toolCalls {
		if rec.HypothesisID == hypothesisID {
			out = append(out, rec)
		}
	}
	return out
}

// AddInsights appends synthesized insights, assigning sequence-coded IDs.
func (s *Session) AddInsights(batch []*AuditInsight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range batch {
		in.ID = fmt.Sprintf("I-%03d", len(s.insights)+1)
		s.insights = append(s.insights, in)
	}
}

// Insights returns copies of the synthesized insights.
func (s *Session) Insights() []AuditInsight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AuditInsight, 0, len(s.insights))
	for _, in := range s.insights {
		out = append(out, *in)
	}
	return out
}

// SetExecutiveSummary records the run summary from SYNTHESIZE.
func (s *Session) SetExecutiveSummary(summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executiveSummary = summary
}

// ExecutiveSummary returns the run summary.
func (s *Session) ExecutiveSummary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.executiveSummary
}

// SetError records the terminal failure for the ERROR phase.
func (s *Session) SetError(err *AuditError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditErr = err
}

// Err returns the terminal failure, or nil.
func (s *Session) Err() *AuditError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auditErr
}

// TryAcquire claims the session for a run. Returns false if a run is
// already in progress.
func (s *Session) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inProgress {
		return false
	}
	s.inProgress = true
	return true
}

// Release releases the run claim.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inProgress = false
	s.lastActiveAt = time.Now()
}

// LastActive returns the last mutation time.
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActiveAt
}
