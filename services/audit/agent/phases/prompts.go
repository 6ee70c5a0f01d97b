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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AleutianAI/AuditPilot/services/audit/agent"
	"github.com/AleutianAI/AuditPilot/services/audit/dataset"
	"github.com/AleutianAI/AuditPilot/services/audit/tools"
)

// systemPrompt frames every oracle call for the run.
const systemPrompt = `You are an experienced financial auditor analyzing a transactional dataset.
You reason in discrete phases: observe statistics, form falsifiable hypotheses,
select analysis tools to test them, weigh the evidence, and synthesize findings.
Always reply with exactly one JSON document matching the shape requested for the
current phase. Cite concrete figures from the data wherever possible. Do not
include any prose outside the JSON document.`

// buildObservePrompt renders the OBSERVE phase prompt.
func buildObservePrompt(scope dataset.Scope, stats *dataset.Statistics) string {
	statsJSON, _ := json.MarshalIndent(stats, "", "  ")

	var sb strings.Builder
	sb.WriteString("PHASE: OBSERVE\n\n")
	fmt.Fprintf(&sb, "Audit period: %s\n", scope.Period)
	if scope.Entity != "" {
		fmt.Fprintf(&sb, "Entity: %s\n", scope.Entity)
	}
	sb.WriteString("\nAggregate statistics for the dataset in scope:\n")
	sb.Write(statsJSON)
	sb.WriteString("\n\nIdentify 3 to 5 notable patterns worth investigating. Each pattern must cite concrete figures from the statistics above.\n")
	sb.WriteString("\nReply shape:\n{\"notable_patterns\": [\"...\", \"...\"]}\n")
	return sb.String()
}

// buildHypothesizePrompt renders the HYPOTHESIZE phase prompt.
func buildHypothesizePrompt(patterns []string, schemas []tools.Schema, maxHypotheses int, feedback string) string {
	schemaJSON, _ := json.MarshalIndent(schemas, "", "  ")

	var sb strings.Builder
	sb.WriteString("PHASE: HYPOTHESIZE\n\nNotable patterns from observation:\n")
	for i, p := range patterns {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, p)
	}
	if feedback != "" {
		fmt.Fprintf(&sb, "\nAuditor feedback to incorporate:\n%s\n", feedback)
	}
	sb.WriteString("\nAvailable analysis tools:\n")
	sb.Write(schemaJSON)
	fmt.Fprintf(&sb, "\n\nPropose at most %d falsifiable hypotheses explaining the patterns. Each hypothesis must name at least one tool from the catalog above in tools_to_use.\n", maxHypotheses)
	sb.WriteString("\nReply shape:\n{\"hypotheses\": [{\"title\": \"...\", \"description\": \"...\", \"rationale\": \"...\", \"test_approach\": \"...\", \"tools_to_use\": [\"...\"], \"priority\": 1}]}\n")
	return sb.String()
}

// buildExplorePrompt renders one EXPLORE selection prompt for a hypothesis.
func buildExplorePrompt(h agent.Hypothesis, executed []agent.ToolCallRecord, remaining int, schemas []tools.Schema) string {
	schemaJSON, _ := json.MarshalIndent(schemas, "", "  ")

	var sb strings.Builder
	sb.WriteString("PHASE: EXPLORE\n\nHypothesis under test:\n")
	fmt.Fprintf(&sb, "  %s: %s\n  %s\n", h.ID, h.Title, h.Description)
	fmt.Fprintf(&sb, "  Planned approach: %s\n  Suggested tools: %s\n", h.TestApproach, strings.Join(h.ToolsToUse, ", "))

	if len(executed) > 0 {
		sb.WriteString("\nTool calls already executed in this session (do not repeat):\n")
		for _, rec := range executed {
			paramsJSON, _ := json.Marshal(rec.Params)
			summary := ""
			if rec.Result != nil {
				summary = rec.Result.Summary
			}
			fmt.Fprintf(&sb, "  - %s %s => %s\n", rec.ToolName, paramsJSON, summary)
		}
	}

	sb.WriteString("\nAvailable analysis tools:\n")
	sb.Write(schemaJSON)
	fmt.Fprintf(&sb, "\n\nSelect up to %d new tool calls that would best test this hypothesis. Return an empty list if no further call is useful.\n", remaining)
	sb.WriteString("\nReply shape:\n{\"tool_calls\": [{\"tool\": \"...\", \"params\": {\"period\": \"...\"}}]}\n")
	return sb.String()
}

// buildVerifyPrompt renders the VERIFY phase prompt.
func buildVerifyPrompt(hypotheses []agent.Hypothesis, callsFor func(string) []agent.ToolCallRecord) string {
	var sb strings.Builder
	sb.WriteString("PHASE: VERIFY\n\nWeigh each hypothesis against the evidence collected for it.\n")

	for _, h := range hypotheses {
		fmt.Fprintf(&sb, "\nHypothesis %s: %s\n  %s\n  Evidence collected:\n", h.ID, h.Title, h.Description)
		calls := callsFor(h.ID)
		if len(calls) == 0 {
			sb.WriteString("    (none)\n")
			continue
		}
		for _, rec := range calls {
			if rec.Result == nil {
				continue
			}
			fmt.Fprintf(&sb, "    - %s (success=%t): %s\n", rec.ToolName, rec.Result.Success, rec.Result.Summary)
			for _, finding := range rec.Result.KeyFindings {
				fmt.Fprintf(&sb, "        * %s\n", finding)
			}
		}
	}

	sb.WriteString("\nFor every hypothesis above, return a grounding score in [0,1], a verdict, and the evidence for and against.\n")
	sb.WriteString("\nReply shape:\n{\"verifications\": [{\"hypothesis_id\": \"H-001\", \"score\": 0.0, \"verdict\": \"...\", \"evidence_for\": [\"...\"], \"evidence_against\": [\"...\"]}]}\n")
	return sb.String()
}

// buildSynthesizePrompt renders the SYNTHESIZE phase prompt.
func buildSynthesizePrompt(hypotheses []agent.Hypothesis, toolSummary string) string {
	var sb strings.Builder
	sb.WriteString("PHASE: SYNTHESIZE\n\nVerified hypotheses:\n")

	for _, h := range hypotheses {
		fmt.Fprintf(&sb, "\n%s: %s [status=%s score=%.2f]\n  %s\n", h.ID, h.Title, h.Status, h.GroundingScore, h.Description)
		for _, ev := range h.EvidenceFor {
			fmt.Fprintf(&sb, "  + %s\n", ev)
		}
		for _, ev := range h.EvidenceAgainst {
			fmt.Fprintf(&sb, "  - %s\n", ev)
		}
	}

	if toolSummary != "" {
		sb.WriteString("\nCondensed tool-result log:\n")
		sb.WriteString(toolSummary)
	}

	sb.WriteString("\nProduce reportable audit insights from the supported and partially supported hypotheses, plus one executive summary of roughly 300-500 characters. Each insight must cite the contributing hypothesis IDs and carry a severity of CRITICAL, HIGH, MEDIUM, LOW, or INFO.\n")
	sb.WriteString("\nReply shape:\n{\"insights\": [{\"title\": \"...\", \"description\": \"...\", \"category\": \"...\", \"severity\": \"HIGH\", \"evidence\": [\"...\"], \"grounding_score\": 0.0, \"affected_amount\": 0.0, \"affected_count\": 0, \"recommendations\": [\"...\"], \"hypothesis_ids\": [\"H-001\"]}], \"executive_summary\": \"...\"}\n")
	return sb.String()
}
