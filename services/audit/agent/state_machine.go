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
	"sync"
)

// StateMachine manages valid phase transitions for the audit loop.
//
// The state machine enforces the following transition graph:
//
//	OBSERVE → HYPOTHESIZE        : Notable patterns identified
//	HYPOTHESIZE → EXPLORE        : Hypotheses accepted (or approved by human)
//	EXPLORE → VERIFY             : Exploration evidence collected
//	VERIFY → SYNTHESIZE          : Hypotheses scored against evidence
//	SYNTHESIZE → COMPLETE        : Insights synthesized
//	* → ERROR                    : Any non-terminal phase can fail
//
// The human-approval checkpoint between HYPOTHESIZE and EXPLORE is a
// suspension of the session, not a distinct phase: the session stays in
// HYPOTHESIZE with its awaiting-approval flag set until resumed.
//
// Thread Safety:
//
//	StateMachine is safe for concurrent use.
type StateMachine struct {
	mu sync.RWMutex

	// transitions maps (from, to) pairs that are valid.
	transitions map[Phase]map[Phase]bool
}

// NewStateMachine creates a new state machine with all valid transitions.
func NewStateMachine() *StateMachine {
	sm := &StateMachine{
		transitions: make(map[Phase]map[Phase]bool),
	}

	for _, phase := range AllPhases() {
		sm.transitions[phase] = make(map[Phase]bool)
	}

	sm.addTransition(PhaseObserve, PhaseHypothesize)
	sm.addTransition(PhaseHypothesize, PhaseExplore)
	sm.addTransition(PhaseExplore, PhaseVerify)
	sm.addTransition(PhaseVerify, PhaseSynthesize)
	sm.addTransition(PhaseSynthesize, PhaseComplete)

	// Every non-terminal phase may fail into ERROR.
	for _, phase := range AllPhases() {
		if !phase.IsTerminal() {
			sm.addTransition(phase, PhaseError)
		}
	}

	return sm
}

// addTransition registers a valid transition.
func (sm *StateMachine) addTransition(from, to Phase) {
	sm.transitions[from][to] = true
}

// CanTransition checks if a transition from one phase to another is valid.
//
// Thread Safety: This method is safe for concurrent use.
func (sm *StateMachine) CanTransition(from, to Phase) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if toMap, ok := sm.transitions[from]; ok {
		return toMap[to]
	}
	return false
}

// Transition attempts to transition a session from its current phase.
//
// Description:
//
//	Validates the transition and, if valid, updates the session phase and
//	appends a phase-history record with the transition reason. Returns an
//	error without mutating the session if the transition is not allowed.
//
// Inputs:
//
//	session - The session to transition
//	to - Target phase
//
// Outputs:
//
//	error - ErrInvalidTransition if transition not allowed
//
// Thread Safety: This method is safe for concurrent use.
func (sm *StateMachine) Transition(session *Session, to Phase) error {
	from := session.GetPhase()

	if !sm.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	session.SetPhase(to, sm.TransitionReason(from, to))
	return nil
}

// ValidTransitionsFrom returns all valid transitions from a given phase.
//
// Thread Safety: This method is safe for concurrent use.
func (sm *StateMachine) ValidTransitionsFrom(from Phase) []Phase {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	var result []Phase
	if toMap, ok := sm.transitions[from]; ok {
		for phase, valid := range toMap {
			if valid {
				result = append(result, phase)
			}
		}
	}
	return result
}

// TransitionReason provides a human-readable description of a transition.
func (sm *StateMachine) TransitionReason(from, to Phase) string {
	key := from.String() + "->" + to.String()

	reasons := map[string]string{
		"OBSERVE->HYPOTHESIZE": "Notable patterns identified",
		"HYPOTHESIZE->EXPLORE": "Hypotheses accepted for exploration",
		"EXPLORE->VERIFY":      "Exploration evidence collected",
		"VERIFY->SYNTHESIZE":   "Hypotheses scored against evidence",
		"SYNTHESIZE->COMPLETE": "Insights synthesized",
		"OBSERVE->ERROR":       "Observation failed unrecoverably",
		"HYPOTHESIZE->ERROR":   "Hypothesis generation failed unrecoverably",
		"EXPLORE->ERROR":       "Exploration failed unrecoverably",
		"VERIFY->ERROR":        "Verification failed unrecoverably",
		"SYNTHESIZE->ERROR":    "Synthesis failed unrecoverably",
	}

	if reason, ok := reasons[key]; ok {
		return reason
	}
	return "Unknown transition"
}

// DefaultStateMachine is the shared state machine instance.
var DefaultStateMachine = NewStateMachine()

// Transition is a convenience function using the default state machine.
func Transition(session *Session, to Phase) error {
	return DefaultStateMachine.Transition(session, to)
}

// CanTransition is a convenience function using the default state machine.
func CanTransition(from, to Phase) bool {
	return DefaultStateMachine.CanTransition(from, to)
}
