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
	"github.com/AleutianAI/AuditPilot/services/audit/cache"
	"github.com/AleutianAI/AuditPilot/services/audit/tools"
)

// ExplorePhase runs oracle-selected tool calls against each hypothesis.
//
// Description:
//
//	For every approved hypothesis, in priority order, asks the oracle to
//	select tool calls not already executed in this session, executes them
//	through the registry, and appends every result to the exploration log.
//	The loop ends for a hypothesis when its tool budget is reached or the
//	oracle proposes no new calls. Tool failures are recorded, never fatal;
//	proposing more calls than the remaining budget is a budget violation.
type ExplorePhase struct {
	deps *Dependencies
}

// Name implements agent.PhaseExecutor.
func (p *ExplorePhase) Name() string {
	return agent.PhaseExplore.String()
}

// Execute implements agent.PhaseExecutor.
func (p *ExplorePhase) Execute(ctx context.Context, session *agent.Session) (agent.Phase, error) {
	active := session.ApprovedHypotheses()
	schemas := p.deps.Registry.Schemas()
	budget := session.Config().MaxToolsPerHypothesis

	// Session-wide dedupe over (tool, params).
	executed := make(map[string]bool)
	for _, rec := range session.ToolCalls() {
		executed[cache.Key(rec.ToolName, rec.Params)] = true
	}

	for _, h := range active {
		session.MarkTesting(h.ID)

		for {
			remaining := budget - len(session.ToolCallsFor(h.ID))
			if remaining <= 0 {
				break
			}

			prompt := buildExplorePrompt(h, session.ToolCalls(), remaining, schemas)
			calls, err := completeParsed(ctx, p.deps, session, systemPrompt, prompt,
				func(content string) ([]toolCallItem, error) {
					return parseToolCalls(content, p.deps.Registry.Has)
				})
			if err != nil {
				return "", err
			}
			if len(calls) == 0 {
				break
			}
			if len(calls) > remaining {
				return "", fmt.Errorf("%w: hypothesis %s proposed %d calls with %d remaining",
					agent.ErrMaxToolsExceeded, h.ID, len(calls), remaining)
			}

			ranNew := false
			for _, call := range calls {
				if call.Params == nil {
					call.Params = make(map[string]any)
				}
				if _, ok := call.Params[tools.ScopeParam]; !ok {
					call.Params[tools.ScopeParam] = session.Scope().Period
				}

				key := cache.Key(call.Tool, call.Params)
				if executed[key] {
					continue
				}
				executed[key] = true
				ranNew = true

				result := p.deps.Registry.Execute(ctx, call.Tool, call.Params)
				session.RecordToolCall(h.ID, call.Tool, call.Params, result)

				p.deps.logger().Debug("tool executed",
					"session_id", session.ID(),
					"hypothesis", h.ID,
					"tool", call.Tool,
					"success", result.Success)
			}
			if !ranNew {
				// The oracle only repeated known calls; stop probing.
				break
			}
		}
	}

	p.deps.logger().Info("exploration complete",
		"session_id", session.ID(),
		"tool_calls", len(session.ToolCalls()))

	return agent.PhaseVerify, nil
}
