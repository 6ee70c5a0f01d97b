// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// HypothesisView carries the display fields for a tested hypothesis.
type HypothesisView struct {
	ID             string
	Title          string
	Status         string
	GroundingScore float64
}

// InsightView carries the display fields for an audit finding.
type InsightView struct {
	ID              string
	Title           string
	Description     string
	Category        string
	Severity        string
	AffectedAmount  float64
	AffectedCount   int
	Recommendations []string
	HypothesisIDs   []string
	GroundingScore  float64
}

// Report is the renderable outcome of an audit run.
type Report struct {
	SessionID        string
	Period           string
	Phase            string
	StepsTaken       int
	ExecutiveSummary string
	Hypotheses       []HypothesisView
	Insights         []InsightView
}

// verdictLabels maps hypothesis verdicts to display labels.
var verdictLabels = map[string]string{
	"supported":           "SUPPORTED",
	"partially_supported": "PARTIALLY SUPPORTED",
	"inconclusive":        "INCONCLUSIVE",
	"refuted":             "REFUTED",
	"pending":             "PENDING",
	"testing":             "TESTING",
}

// RenderReport formats a completed run for terminal display.
//
// Description:
//
//	Produces a styled report with the executive summary in a box,
//	hypothesis verdicts, and one section per insight ordered as the
//	engine emitted them. Styling degrades gracefully when the output
//	is not a terminal because lipgloss detects the color profile.
func RenderReport(r Report) string {
	var b strings.Builder

	b.WriteString(Styles.Title.Render(fmt.Sprintf("Audit Report — session %s", r.SessionID)))
	b.WriteString("\n")
	b.WriteString(Styles.Muted.Render(fmt.Sprintf("period %s | phase %s | %d oracle steps", r.Period, r.Phase, r.StepsTaken)))
	b.WriteString("\n\n")

	if r.ExecutiveSummary != "" {
		b.WriteString(Styles.Box.Render(r.ExecutiveSummary))
		b.WriteString("\n\n")
	}

	if len(r.Hypotheses) > 0 {
		b.WriteString(Styles.Subtitle.Render("Hypotheses"))
		b.WriteString("\n")
		for _, h := range r.Hypotheses {
			label := verdictLabels[h.Status]
			if label == "" {
				label = strings.ToUpper(h.Status)
			}
			b.WriteString(fmt.Sprintf("  %s  %s  %s (%.2f)\n",
				Styles.Bold.Render(h.ID), h.Title, verdictStyle(h.Status).Render(label), h.GroundingScore))
		}
		b.WriteString("\n")
	}

	if len(r.Insights) == 0 {
		b.WriteString(Styles.Muted.Render("No findings."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(Styles.Subtitle.Render(fmt.Sprintf("Findings (%d)", len(r.Insights))))
	b.WriteString("\n")
	for _, in := range r.Insights {
		b.WriteString(fmt.Sprintf("\n%s %s  %s\n", SeverityBadge(in.Severity), Styles.Bold.Render(in.ID), in.Title))
		b.WriteString(indent(in.Description, 2))
		b.WriteString("\n")
		detail := fmt.Sprintf("category %s | grounding %.2f | hypotheses %s",
			in.Category, in.GroundingScore, strings.Join(in.HypothesisIDs, ", "))
		if in.AffectedAmount != 0 {
			detail += fmt.Sprintf(" | amount %.2f", in.AffectedAmount)
		}
		if in.AffectedCount != 0 {
			detail += fmt.Sprintf(" | %d transactions", in.AffectedCount)
		}
		b.WriteString(indent(Styles.Muted.Render(detail), 2))
		b.WriteString("\n")
		for _, rec := range in.Recommendations {
			b.WriteString(fmt.Sprintf("  → %s\n", rec))
		}
	}
	return b.String()
}

func verdictStyle(status string) lipgloss.Style {
	switch status {
	case "supported":
		return Styles.Success
	case "partially_supported":
		return Styles.Warning
	case "refuted":
		return Styles.Error
	default:
		return Styles.Muted
	}
}

func indent(text string, spaces int) string {
	pad := strings.Repeat(" ", spaces)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = pad + line
		}
	}
	return strings.Join(lines, "\n")
}
