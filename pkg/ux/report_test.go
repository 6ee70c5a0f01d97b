// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"strings"
	"testing"
)

func sampleReport() Report {
	return Report{
		SessionID:        "S-1",
		Period:           "2025-Q3",
		Phase:            "COMPLETE",
		StepsTaken:       6,
		ExecutiveSummary: "Duplicate vendor payments concentrated in Q3.",
		Hypotheses: []HypothesisView{
			{ID: "H-001", Title: "Duplicate payments to ACME", Status: "supported", GroundingScore: 0.9},
			{ID: "H-002", Title: "Round-number invoices", Status: "inconclusive", GroundingScore: 0.3},
		},
		Insights: []InsightView{
			{
				ID:              "I-001",
				Title:           "Duplicate payments detected",
				Description:     "Seven invoice pairs share amount and vendor within 3 days.",
				Category:        "duplicate_payment",
				Severity:        "HIGH",
				AffectedAmount:  48200.00,
				AffectedCount:   14,
				Recommendations: []string{"Review vendor ACME invoices 4711 and 4718."},
				HypothesisIDs:   []string{"H-001"},
				GroundingScore:  0.9,
			},
		},
	}
}

func TestRenderReportIncludesSections(t *testing.T) {
	out := RenderReport(sampleReport())

	for _, want := range []string{
		"S-1",
		"2025-Q3",
		"Duplicate vendor payments concentrated in Q3.",
		"H-001",
		"SUPPORTED",
		"INCONCLUSIVE",
		"I-001",
		"Duplicate payments detected",
		"Review vendor ACME invoices 4711 and 4718.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestRenderReportNoFindings(t *testing.T) {
	r := sampleReport()
	r.Insights = nil
	out := RenderReport(r)
	if !strings.Contains(out, "No findings.") {
		t.Error("expected empty-findings marker")
	}
}

func TestSeverityBadgeUnknownPassesThrough(t *testing.T) {
	if got := SeverityBadge("BOGUS"); got != "BOGUS" {
		t.Errorf("SeverityBadge(BOGUS) = %q", got)
	}
}
