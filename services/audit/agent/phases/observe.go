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

	"github.com/AleutianAI/AuditPilot/services/audit/agent"
)

// ObservePhase consumes dataset statistics and extracts notable patterns.
//
// Description:
//
//	Fetches the aggregate statistics for the session scope from the
//	statistics provider (unless a collaborator already attached them to the
//	session), prompts the oracle for 3-5 notable patterns, and records them
//	on the session. Always advances to HYPOTHESIZE on success.
type ObservePhase struct {
	deps *Dependencies
}

// Name implements agent.PhaseExecutor.
func (p *ObservePhase) Name() string {
	return agent.PhaseObserve.String()
}

// Execute implements agent.PhaseExecutor.
func (p *ObservePhase) Execute(ctx context.Context, session *agent.Session) (agent.Phase, error) {
	stats := session.Statistics()
	if stats == nil {
		if p.deps.Stats == nil {
			return "", fmt.Errorf("no dataset statistics available for session %s", session.ID())
		}
		var err error
		stats, err = p.deps.Stats.Statistics(ctx, session.Scope())
		if err != nil {
			return "", fmt.Errorf("fetch dataset statistics: %w", err)
		}
		session.SetStatistics(stats)
	}

	prompt := buildObservePrompt(session.Scope(), stats)
	patterns, err := completeParsed(ctx, p.deps, session, systemPrompt, prompt, parseObserve)
	if err != nil {
		return "", err
	}

	session.SetPatterns(patterns)
	p.deps.logger().Info("observation complete",
		"session_id", session.ID(),
		"patterns", len(patterns))

	return agent.PhaseHypothesize, nil
}
