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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrApprovalRequired is returned by a phase executor to suspend the run at
// the human-approval checkpoint. The loop treats it as a pause, not a failure.
var ErrApprovalRequired = errors.New("human approval required")

// AuditLoop defines the interface for running audit sessions.
//
// The loop orchestrates the state machine, phases, tools, and reasoning
// oracle to drive one session from OBSERVE to a terminal phase.
type AuditLoop interface {
	// Run drives a session until COMPLETE, ERROR, or the approval
	// checkpoint.
	//
	// Thread Safety: This method is safe for concurrent use with
	// different sessions.
	Run(ctx context.Context, session *Session) (*RunResult, error)

	// Resume continues a session suspended at the approval checkpoint.
	//
	// Thread Safety: This method is safe for concurrent use.
	Resume(ctx context.Context, sessionID string, approval Approval) (*RunResult, error)

	// Abort terminates a session by forcing it into ERROR. Aborting a
	// session already in a terminal phase is a no-op.
	Abort(ctx context.Context, sessionID string) error

	// GetState returns a point-in-time snapshot of a session.
	GetState(ctx context.Context, sessionID string) (SessionSnapshot, error)

	// CloseSession removes a session from the store.
	CloseSession(ctx context.Context, sessionID string) error
}

// PhaseRegistry provides access to phase implementations.
type PhaseRegistry interface {
	// GetPhase returns the phase implementation for an active phase.
	GetPhase(phase Phase) (PhaseExecutor, bool)
}

// PhaseExecutor executes one phase against a session and names the next.
type PhaseExecutor interface {
	// Execute runs the phase. It returns the next phase, or an error:
	// ErrApprovalRequired suspends the run, anything else terminates
	// it in ERROR.
	Execute(ctx context.Context, session *Session) (Phase, error)

	// Name returns the phase name.
	Name() string
}

// DefaultAuditLoop implements the AuditLoop interface.
//
// Thread Safety: DefaultAuditLoop is safe for concurrent use.
type DefaultAuditLoop struct {
	mu sync.Mutex

	sessions      SessionStore
	stateMachine  *StateMachine
	phaseRegistry PhaseRegistry
	log           *slog.Logger

	// active holds the IDs of sessions currently running a phase. The
	// session store may hand out a fresh instance per Get, so the
	// per-instance latch alone cannot serialize runs of the same
	// persisted session.
	active map[string]struct{}

	// maxConcurrent limits concurrent runs (0 = unlimited).
	maxConcurrent int
	activeRuns    int
}

// LoopOption configures a DefaultAuditLoop.
type LoopOption func(*DefaultAuditLoop)

// WithSessionStore sets the session store.
func WithSessionStore(store SessionStore) LoopOption {
	return func(l *DefaultAuditLoop) {
		l.sessions = store
	}
}

// WithPhaseRegistry sets the phase registry.
func WithPhaseRegistry(registry PhaseRegistry) LoopOption {
	return func(l *DefaultAuditLoop) {
		l.phaseRegistry = registry
	}
}

// WithStateMachine overrides the default state machine.
func WithStateMachine(sm *StateMachine) LoopOption {
	return func(l *DefaultAuditLoop) {
		l.stateMachine = sm
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) LoopOption {
	return func(l *DefaultAuditLoop) {
		l.log = log
	}
}

// WithMaxConcurrentRuns limits concurrent runs (0 = unlimited).
func WithMaxConcurrentRuns(max int) LoopOption {
	return func(l *DefaultAuditLoop) {
		l.maxConcurrent = max
	}
}

// NewDefaultAuditLoop creates a new audit loop.
//
// Description:
//
//	Creates a loop with the specified options. If no session store is
//	provided, an in-memory store is used. A phase registry is required
//	before Run is called.
func NewDefaultAuditLoop(opts ...LoopOption) *DefaultAuditLoop {
	l := &DefaultAuditLoop{
		sessions:     NewMemorySessionStore(),
		stateMachine: DefaultStateMachine,
		log:          slog.Default(),
		active:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run implements AuditLoop.
//
// Description:
//
//	Drives the session through the phase sequence until it reaches a
//	terminal phase or suspends for human approval. Phase failures and
//	budget violations are converted into the ERROR phase with a
//	structured AuditError; Run returns an error only for caller
//	mistakes (nil session, busy session, terminal session).
func (l *DefaultAuditLoop) Run(ctx context.Context, session *Session) (*RunResult, error) {
	if session == nil {
		return nil, errors.New("nil session")
	}
	if session.GetPhase().IsTerminal() {
		return nil, ErrSessionTerminal
	}
	if session.AwaitingApproval() {
		return nil, ErrAwaitingApproval
	}

	if !l.acquireSession(session.ID()) {
		return nil, ErrSessionInProgress
	}
	defer l.releaseSession(session.ID())

	if !session.TryAcquire() {
		return nil, ErrSessionInProgress
	}
	defer session.Release()

	if err := l.acquireSlot(); err != nil {
		return nil, err
	}
	defer l.releaseSlot()

	if err := l.sessions.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	return l.runLoop(ctx, session)
}

// Resume implements AuditLoop.
//
// Description:
//
//	Applies the human-approval decision and continues the run from the
//	HYPOTHESIZE checkpoint toward EXPLORE. Only valid while the session
//	is awaiting approval.
func (l *DefaultAuditLoop) Resume(ctx context.Context, sessionID string, approval Approval) (*RunResult, error) {
	if !l.acquireSession(sessionID) {
		return nil, ErrSessionInProgress
	}
	defer l.releaseSession(sessionID)

	// Fetch after the ID latch: a concurrent Resume must not see a
	// stale pre-approval snapshot of the same session.
	session, err := l.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !session.TryAcquire() {
		return nil, ErrSessionInProgress
	}
	defer session.Release()

	if err := l.acquireSlot(); err != nil {
		return nil, err
	}
	defer l.releaseSlot()

	if err := session.ApplyApproval(approval); err != nil {
		return nil, err
	}

	l.log.Info("session resumed",
		"session_id", sessionID,
		"approved", len(approval.ApprovedIDs),
		"feedback", approval.Feedback != "")

	if err := l.transition(session, PhaseExplore); err != nil {
		return l.failSession(ctx, session, err), nil
	}

	return l.runLoop(ctx, session)
}

// Abort implements AuditLoop.
func (l *DefaultAuditLoop) Abort(ctx context.Context, sessionID string) error {
	session, err := l.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	if session.GetPhase().IsTerminal() {
		return nil
	}

	session.SetError(&AuditError{
		Code:        ErrCodeCanceled,
		Message:     "session aborted by user",
		Recoverable: false,
	})
	session.SetPhase(PhaseError, "Session aborted by user")
	l.persist(ctx, session)
	return nil
}

// GetState implements AuditLoop.
func (l *DefaultAuditLoop) GetState(ctx context.Context, sessionID string) (SessionSnapshot, error) {
	session, err := l.sessions.Get(ctx, sessionID)
	if err != nil {
		return SessionSnapshot{}, err
	}
	return session.Snapshot(), nil
}

// CloseSession implements AuditLoop.
func (l *DefaultAuditLoop) CloseSession(ctx context.Context, sessionID string) error {
	return l.sessions.Delete(ctx, sessionID)
}

// acquireSession latches a session ID for exclusive execution. It returns
// false if another Run or Resume already holds the ID, regardless of which
// store instance the caller's session came from.
func (l *DefaultAuditLoop) acquireSession(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.active[id]; busy {
		return false
	}
	l.active[id] = struct{}{}
	return true
}

// releaseSession releases the ID latch taken by acquireSession.
func (l *DefaultAuditLoop) releaseSession(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, id)
}

// acquireSlot attempts to acquire a concurrent run slot.
func (l *DefaultAuditLoop) acquireSlot() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxConcurrent > 0 && l.activeRuns >= l.maxConcurrent {
		return fmt.Errorf("maximum concurrent runs reached (%d)", l.maxConcurrent)
	}
	l.activeRuns++
	return nil
}

// releaseSlot releases a concurrent run slot.
func (l *DefaultAuditLoop) releaseSlot() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.activeRuns--
}

// transition attempts a validated phase transition.
func (l *DefaultAuditLoop) transition(session *Session, to Phase) error {
	from := session.GetPhase()
	if err := l.stateMachine.Transition(session, to); err != nil {
		return err
	}
	l.log.Debug("phase transition",
		"session_id", session.ID(),
		"from", from.String(),
		"to", to.String())
	return nil
}

// runLoop executes the main phase loop.
func (l *DefaultAuditLoop) runLoop(ctx context.Context, session *Session) (*RunResult, error) {
	tracer := otel.Tracer("audit.agent.loop")
	ctx, span := tracer.Start(ctx, "audit.run",
		trace.WithAttributes(attribute.String("session.id", session.ID())))
	defer span.End()

	startTime := time.Now()
	timeout := session.Config().SessionTimeout

	for {
		if err := ctx.Err(); err != nil {
			return l.failSession(ctx, session, err), nil
		}

		if timeout > 0 && time.Since(startTime) > timeout {
			return l.failSession(ctx, session, fmt.Errorf("session timeout after %s", timeout)), nil
		}

		current := session.GetPhase()

		if current.IsTerminal() {
			l.persist(ctx, session)
			return l.buildResult(session), nil
		}

		executor, ok := l.phaseRegistry.GetPhase(current)
		if !ok {
			return l.failSession(ctx, session, fmt.Errorf("no phase registered for %s", current)), nil
		}

		next, err := executor.Execute(ctx, session)
		if err != nil {
			if errors.Is(err, ErrApprovalRequired) {
				session.SetAwaitingApproval()
				l.persist(ctx, session)
				return l.buildApprovalResult(session), nil
			}
			return l.failSession(ctx, session, err), nil
		}

		if err := l.transition(session, next); err != nil {
			return l.failSession(ctx, session, err), nil
		}
		l.persist(ctx, session)
	}
}

// persist writes the session back to the store, logging on failure.
func (l *DefaultAuditLoop) persist(ctx context.Context, session *Session) {
	if err := l.sessions.Put(ctx, session); err != nil {
		l.log.Warn("session persist failed",
			"session_id", session.ID(),
			"error", err)
	}
}

// failSession moves the session into ERROR and builds the result.
func (l *DefaultAuditLoop) failSession(ctx context.Context, session *Session, cause error) *RunResult {
	auditErr := ClassifyError(cause)
	session.SetError(auditErr)
	session.SetPhase(PhaseError, auditErr.Message)
	l.persist(ctx, session)

	l.log.Error("session failed",
		"session_id", session.ID(),
		"code", auditErr.Code,
		"error", auditErr.Message)

	return l.buildResult(session)
}

// buildResult creates a RunResult for a terminal session.
func (l *DefaultAuditLoop) buildResult(session *Session) *RunResult {
	result := &RunResult{
		Phase:      session.GetPhase(),
		StepsTaken: session.StepCount(),
		Error:      session.Err(),
	}
	if result.Phase == PhaseComplete {
		result.Insights = session.Insights()
		result.ExecutiveSummary = session.ExecutiveSummary()
	}
	return result
}

// buildApprovalResult creates a RunResult for a suspended session.
func (l *DefaultAuditLoop) buildApprovalResult(session *Session) *RunResult {
	return &RunResult{
		Phase:      session.GetPhase(),
		StepsTaken: session.StepCount(),
		NeedsApproval: &ApprovalRequest{
			SessionID:  session.ID(),
			Hypotheses: session.Hypotheses(),
		},
	}
}
