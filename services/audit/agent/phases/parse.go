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
)

// minPatterns and maxPatterns bound the notable patterns kept from OBSERVE.
// The prompt asks for three to five; fewer means the oracle skimped and the
// reply goes back for a re-prompt.
const (
	minPatterns = 3
	maxPatterns = 5
)

// extractJSON strips markdown fences and isolates the outermost JSON object.
func extractJSON(content string) (string, error) {
	s := strings.TrimSpace(content)

	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object found in reply")
	}
	return s[start : end+1], nil
}

// observeReply is the OBSERVE phase reply shape.
type observeReply struct {
	NotablePatterns []string `json:"notable_patterns"`
}

// parseObserve extracts the notable patterns from an OBSERVE reply.
func parseObserve(content string) ([]string, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	var reply observeReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, fmt.Errorf("decode notable_patterns: %w", err)
	}

	patterns := make([]string, 0, len(reply.NotablePatterns))
	for _, p := range reply.NotablePatterns {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	if len(patterns) < minPatterns {
		return nil, fmt.Errorf("notable_patterns has %d entries, need at least %d", len(patterns), minPatterns)
	}
	if len(patterns) > maxPatterns {
		patterns = patterns[:maxPatterns]
	}
	return patterns, nil
}

// hypothesisItem is one entry of the HYPOTHESIZE reply.
type hypothesisItem struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Rationale    string   `json:"rationale"`
	TestApproach string   `json:"test_approach"`
	ToolsToUse   []string `json:"tools_to_use"`
	Priority     int      `json:"priority"`
}

// hypothesesReply is the HYPOTHESIZE phase reply shape.
type hypothesesReply struct {
	Hypotheses []hypothesisItem `json:"hypotheses"`
}

// parseHypotheses extracts hypotheses from a HYPOTHESIZE reply.
//
// Each hypothesis must carry a title, a description, and at least one tool
// name that exists in the registry; anything else is a parse failure.
func parseHypotheses(content string, knownTool func(string) bool) ([]*agent.Hypothesis, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	var reply hypothesesReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, fmt.Errorf("decode hypotheses: %w", err)
	}
	if len(reply.Hypotheses) == 0 {
		return nil, fmt.Errorf("hypotheses is empty")
	}

	out := make([]*agent.Hypothesis, 0, len(reply.Hypotheses))
	for i, item := range reply.Hypotheses {
		if strings.TrimSpace(item.Title) == "" {
			return nil, fmt.Errorf("hypothesis %d has no title", i)
		}
		if strings.TrimSpace(item.Description) == "" {
			return nil, fmt.Errorf("hypothesis %d has no description", i)
		}

		var known []string
		for _, tool := range item.ToolsToUse {
			if knownTool(tool) {
				known = append(known, tool)
			}
		}
		if len(known) == 0 {
			return nil, fmt.Errorf("hypothesis %d (%s) names no registered tool", i, item.Title)
		}

		out = append(out, &agent.Hypothesis{
			Title:        item.Title,
			Description:  item.Description,
			Rationale:    item.Rationale,
			TestApproach: item.TestApproach,
			ToolsToUse:   known,
			Priority:     item.Priority,
		})
	}
	return out, nil
}

// toolCallItem is one entry of the EXPLORE reply.
type toolCallItem struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

// toolCallsReply is the EXPLORE phase reply shape.
type toolCallsReply struct {
	ToolCalls []toolCallItem `json:"tool_calls"`
}

// parseToolCalls extracts tool selections from an EXPLORE reply.
//
// An empty list is valid and means the oracle proposes no further calls.
// Unknown tool names are a parse failure.
func parseToolCalls(content string, knownTool func(string) bool) ([]toolCallItem, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	var reply toolCallsReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, fmt.Errorf("decode tool_calls: %w", err)
	}

	for i, call := range reply.ToolCalls {
		if strings.TrimSpace(call.Tool) == "" {
			return nil, fmt.Errorf("tool_calls[%d] has no tool name", i)
		}
		if !knownTool(call.Tool) {
			return nil, fmt.Errorf("tool_calls[%d] names unknown tool %q", i, call.Tool)
		}
	}
	return reply.ToolCalls, nil
}

// verificationItem is one entry of the VERIFY reply.
type verificationItem struct {
	HypothesisID    string   `json:"hypothesis_id"`
	Score           float64  `json:"score"`
	Verdict         string   `json:"verdict"`
	EvidenceFor     []string `json:"evidence_for"`
	EvidenceAgainst []string `json:"evidence_against"`
}

// verificationsReply is the VERIFY phase reply shape.
type verificationsReply struct {
	Verifications []verificationItem `json:"verifications"`
}

// parseVerifications extracts verdicts from a VERIFY reply.
//
// Every hypothesis in wanted must appear exactly once; the free-text verdict
// field is accepted but never trusted, the status is derived from the score.
func parseVerifications(content string, wanted []string) ([]verificationItem, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	var reply verificationsReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, fmt.Errorf("decode verifications: %w", err)
	}

	seen := make(map[string]bool, len(reply.Verifications))
	for i, v := range reply.Verifications {
		if v.HypothesisID == "" {
			return nil, fmt.Errorf("verifications[%d] has no hypothesis_id", i)
		}
		if seen[v.HypothesisID] {
			return nil, fmt.Errorf("verifications[%d] repeats hypothesis %s", i, v.HypothesisID)
		}
		if v.Score < 0 || v.Score > 1 {
			return nil, fmt.Errorf("verifications[%d] score %v out of [0,1]", i, v.Score)
		}
		seen[v.HypothesisID] = true
	}

	for _, id := range wanted {
		if !seen[id] {
			return nil, fmt.Errorf("verifications is missing hypothesis %s", id)
		}
	}
	return reply.Verifications, nil
}

// insightItem is one entry of the SYNTHESIZE reply.
type insightItem struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	Severity        string   `json:"severity"`
	Evidence        []string `json:"evidence"`
	GroundingScore  float64  `json:"grounding_score"`
	AffectedAmount  float64  `json:"affected_amount"`
	AffectedCount   int64    `json:"affected_count"`
	Recommendations []string `json:"recommendations"`
	HypothesisIDs   []string `json:"hypothesis_ids"`
}

// synthesizeReply is the SYNTHESIZE phase reply shape.
type synthesizeReply struct {
	Insights         []insightItem `json:"insights"`
	ExecutiveSummary string        `json:"executive_summary"`
}

// parseSynthesis extracts insights and the executive summary from a
// SYNTHESIZE reply.
//
// Each insight must cite at least one known hypothesis ID and carry a valid
// severity. The insight list may be empty; the summary may not.
func parseSynthesis(content string, knownHypothesis func(string) bool) (*synthesizeReply, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	var reply synthesizeReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, fmt.Errorf("decode synthesis: %w", err)
	}
	if strings.TrimSpace(reply.ExecutiveSummary) == "" {
		return nil, fmt.Errorf("executive_summary is empty")
	}

	for i := range reply.Insights {
		in := &reply.Insights[i]
		if strings.TrimSpace(in.Title) == "" {
			return nil, fmt.Errorf("insights[%d] has no title", i)
		}
		in.Severity = strings.ToUpper(strings.TrimSpace(in.Severity))
		if !agent.Severity(in.Severity).IsValid() {
			return nil, fmt.Errorf("insights[%d] has invalid severity %q", i, in.Severity)
		}
		if len(in.HypothesisIDs) == 0 {
			return nil, fmt.Errorf("insights[%d] cites no hypothesis", i)
		}
		for _, id := range in.HypothesisIDs {
			if !knownHypothesis(id) {
				return nil, fmt.Errorf("insights[%d] cites unknown hypothesis %q", i, id)
			}
		}
	}
	return &reply, nil
}
