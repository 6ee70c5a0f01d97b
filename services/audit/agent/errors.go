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
)

// Sentinel errors for session and controller operations.
var (
	// ErrSessionNotFound indicates the session ID is unknown to the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionInProgress indicates a concurrent run on the same session.
	ErrSessionInProgress = errors.New("session already in progress")

	// ErrSessionTerminal indicates the session already reached COMPLETE or ERROR.
	ErrSessionTerminal = errors.New("session is in a terminal phase")

	// ErrInvalidTransition indicates a phase transition not in the table.
	ErrInvalidTransition = errors.New("invalid phase transition")

	// ErrNotAwaitingApproval indicates Resume was called without a pending
	// approval checkpoint.
	ErrNotAwaitingApproval = errors.New("session is not awaiting approval")

	// ErrAwaitingApproval indicates Run was called while the session is
	// suspended at the approval checkpoint.
	ErrAwaitingApproval = errors.New("session is awaiting approval")

	// ErrMaxStepsExceeded indicates the oracle-call budget is exhausted.
	ErrMaxStepsExceeded = errors.New("maximum oracle steps exceeded")

	// ErrMaxHypothesesExceeded indicates the hypothesis budget is exhausted.
	ErrMaxHypothesesExceeded = errors.New("maximum hypotheses exceeded")

	// ErrMaxToolsExceeded indicates the per-hypothesis tool budget is
	// exhausted.
	ErrMaxToolsExceeded = errors.New("maximum tool calls per hypothesis exceeded")

	// ErrOracleParse indicates oracle output stayed malformed after retries.
	ErrOracleParse = errors.New("oracle response could not be parsed")

	// ErrEmptyScope indicates the session was created without an audit period.
	ErrEmptyScope = errors.New("audit scope has no period")
)

// Error codes carried on AuditError in the ERROR phase.
const (
	ErrCodeBudget     = "BUDGET_EXCEEDED"
	ErrCodeOracle     = "ORACLE_FAILURE"
	ErrCodeParse      = "PARSE_FAILURE"
	ErrCodeDataset    = "DATASET_FAILURE"
	ErrCodeCanceled   = "CANCELED"
	ErrCodeTransition = "INVALID_TRANSITION"
	ErrCodeInternal   = "INTERNAL"
)

// NewAuditError builds an AuditError from a code and wrapped cause.
func NewAuditError(code string, recoverable bool, cause error) *AuditError {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return &AuditError{Code: code, Message: msg, Recoverable: recoverable}
}

// ClassifyError maps a run-loop error to its AuditError for the ERROR phase.
func ClassifyError(err error) *AuditError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrMaxStepsExceeded) || errors.Is(err, ErrMaxHypothesesExceeded) ||
		errors.Is(err, ErrMaxToolsExceeded):
		return NewAuditError(ErrCodeBudget, false, err)
	case errors.Is(err, ErrOracleParse):
		return NewAuditError(ErrCodeParse, true, err)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return NewAuditError(ErrCodeCanceled, true, err)
	case errors.Is(err, ErrInvalidTransition):
		return NewAuditError(ErrCodeTransition, false, err)
	default:
		return NewAuditError(ErrCodeInternal, true, err)
	}
}
