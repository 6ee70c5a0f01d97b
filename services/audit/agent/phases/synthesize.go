// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package phases

import (
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/AuditPilot/services/audit/agent"
)

// SynthesizePhase folds verified hypotheses into reportable insights.
//
// Description:
//
//	Supplies all verified hypotheses and a condensed tool-result summary to
//	the oracle and parses the insight list plus the executive summary. Each
//	insight must cite at least one contributing hypothesis. A session with
//	no active hypotheses completes with zero insights and a fixed summary,
//	without an oracle call.
type SynthesizePhase struct {
	deps *Dependencies
}

// Name implements agent.PhaseExecutor.
func (p *SynthesizePhase) Name() string {
	return agent.PhaseSynthesize.String()
}

// Execute implements agent.PhaseExecutor.
func (p *SynthesizePhase) Execute(ctx context.Context, session *agent.Session) (agent.Phase, error) {
	active := session.ApprovedHypotheses()
	if len(active) == 0 {
		session.SetExecutiveSummary(fmt.Sprintf(
			"No hypotheses were approved for exploration in period %s; the run produced no findings.",
			session.Scope().Period))
		return agent.PhaseComplete, nil
	}

	known := make(map[string]bool, len(active))
	for _, h := range active {
		known[h.ID] = true
	}

	prompt := buildSynthesizePrompt(active, condenseToolLog(session))
	reply, err := completeParsed(ctx, p.deps, session, systemPrompt, prompt,
		func(content string) (*synthesizeReply, error) {
			return parseSynthesis(content, func(id string) bool { return known[id] })
		})
	if err != nil {
		return "", err
	}

	insights := make([]*agent.AuditInsight, 0, len(reply.Insights))
	for _, item := range reply.Insights {
		insights = append(insights, &agent.AuditInsight{
			Title:           item.Title,
			Description:     item.Description,
			Category:        item.Category,
			Severity:        agent.Severity(item.Severity),
			Evidence:        item.Evidence,
			GroundingScore:  min(max(item.GroundingScore, 0), 1),
			AffectedAmount:  item.AffectedAmount,
			AffectedCount:   item.AffectedCount,
			Recommendations: item.Recommendations,
			HypothesisIDs:   item.HypothesisIDs,
		})
	}
	session.AddInsights(insights)
	session.SetExecutiveSummary(reply.ExecutiveSummary)

	p.deps.logger().Info("synthesis complete",
		"session_id", session.ID(),
		"insights", len(insights))

	return agent.PhaseComplete, nil
}

// condenseToolLog renders the exploration log as one line per call.
func condenseToolLog(session *agent.Session) string {
	var sb strings.Builder
	for _, rec := range session.ToolCalls() {
		if rec.Result == nil {
			continue
		}
		fmt.Fprintf(&sb, "  [%s] %s success=%t: %s\n",
			rec.HypothesisID, rec.ToolName, rec.Result.Success, rec.Result.Summary)
	}
	return sb.String()
}
