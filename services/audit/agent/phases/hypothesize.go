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

	"github.com/AleutianAI/AuditPilot/services/audit/agent"
)

// HypothesizePhase turns notable patterns into falsifiable hypotheses.
//
// Description:
//
//	Supplies the observed patterns and the full tool schema catalog to the
//	oracle and parses a bounded hypothesis list. Every hypothesis must name
//	at least one registered tool. A batch larger than the session budget is
//	a budget violation, not a truncation. When approval is required the
//	phase suspends the run instead of advancing.
type HypothesizePhase struct {
	deps *Dependencies
}

// Name implements agent.PhaseExecutor.
func (p *HypothesizePhase) Name() string {
	return agent.PhaseHypothesize.String()
}

// Execute implements agent.PhaseExecutor.
func (p *HypothesizePhase) Execute(ctx context.Context, session *agent.Session) (agent.Phase, error) {
	prompt := buildHypothesizePrompt(
		session.Patterns(),
		p.deps.Registry.Schemas(),
		session.Config().MaxHypotheses,
		session.HumanFeedback(),
	)

	batch, err := completeParsed(ctx, p.deps, session, systemPrompt, prompt,
		func(content string) ([]*agent.Hypothesis, error) {
			return parseHypotheses(content, p.deps.Registry.Has)
		})
	if err != nil {
		return "", err
	}

	if err := session.AddHypotheses(batch); err != nil {
		return "", err
	}

	p.deps.logger().Info("hypotheses generated",
		"session_id", session.ID(),
		"count", len(batch))

	if session.Config().RequireApproval {
		return "", agent.ErrApprovalRequired
	}
	return agent.PhaseExplore, nil
}
