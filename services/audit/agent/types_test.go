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

import "testing"

func TestStatusForScore(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  HypothesisStatus
	}{
		{"strong support", 0.85, StatusSupported},
		{"partial support", 0.55, StatusPartiallySupported},
		{"inconclusive", 0.30, StatusInconclusive},
		{"refuted", 0.10, StatusRefuted},

		// Band boundaries are inclusive on the upper band.
		{"supported boundary", 0.70, StatusSupported},
		{"partial boundary", 0.40, StatusPartiallySupported},
		{"inconclusive boundary", 0.20, StatusInconclusive},

		{"just below supported", 0.699, StatusPartiallySupported},
		{"just below partial", 0.399, StatusInconclusive},
		{"just below inconclusive", 0.199, StatusRefuted},

		{"perfect score", 1.0, StatusSupported},
		{"zero score", 0.0, StatusRefuted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusForScore(tt.score); got != tt.want {
				t.Errorf("StatusForScore(%v) = %s, want %s", tt.score, got, tt.want)
			}
		})
	}
}

func TestHypothesisID(t *testing.T) {
	if got := HypothesisID(0); got != "H-001" {
		t.Errorf("HypothesisID(0) = %s, want H-001", got)
	}
	if got := HypothesisID(11); got != "H-012" {
		t.Errorf("HypothesisID(11) = %s, want H-012", got)
	}
}

func TestAuditError_Error(t *testing.T) {
	err := &AuditError{Code: "BUDGET_EXCEEDED", Message: "too many steps"}
	if got := err.Error(); got != "BUDGET_EXCEEDED: too many steps" {
		t.Errorf("Error() = %q", got)
	}

	bare := &AuditError{Message: "plain"}
	if got := bare.Error(); got != "plain" {
		t.Errorf("Error() = %q", got)
	}
}

func TestPhase_IsTerminal(t *testing.T) {
	for _, phase := range AllPhases() {
		terminal := phase == PhaseComplete || phase == PhaseError
		if phase.IsTerminal() != terminal {
			t.Errorf("%s.IsTerminal() = %t, want %t", phase, phase.IsTerminal(), terminal)
		}
	}
}
