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

// VerifyPhase scores each hypothesis against its collected evidence.
//
// Description:
//
//	Supplies every approved hypothesis and its tool results to the oracle
//	in a single call and parses one verification per hypothesis. The status
//	is derived from the grounding-score band, never from the oracle's
//	free-text verdict; evidence lists are copied verbatim. With no active
//	hypotheses the phase advances without an oracle call.
type VerifyPhase struct {
	deps *Dependencies
}

// Name implements agent.PhaseExecutor.
func (p *VerifyPhase) Name() string {
	return agent.PhaseVerify.String()
}

// Execute implements agent.PhaseExecutor.
func (p *VerifyPhase) Execute(ctx context.Context, session *agent.Session) (agent.Phase, error) {
	active := session.ApprovedHypotheses()
	if len(active) == 0 {
		return agent.PhaseSynthesize, nil
	}

	wanted := make([]string, 0, len(active))
	for _, h := range active {
		wanted = append(wanted, h.ID)
	}

	prompt := buildVerifyPrompt(active, session.ToolCallsFor)
	verifications, err := completeParsed(ctx, p.deps, session, systemPrompt, prompt,
		func(content string) ([]verificationItem, error) {
			return parseVerifications(content, wanted)
		})
	if err != nil {
		return "", err
	}

	for _, v := range verifications {
		if err := session.ApplyVerification(v.HypothesisID, v.Score, v.EvidenceFor, v.EvidenceAgainst); err != nil {
			return "", err
		}
		p.deps.logger().Debug("hypothesis verified",
			"session_id", session.ID(),
			"hypothesis", v.HypothesisID,
			"score", v.Score,
			"status", agent.StatusForScore(v.Score))
	}

	return agent.PhaseSynthesize, nil
}
