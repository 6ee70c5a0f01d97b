// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AuditPilot/pkg/ux"
	"github.com/AleutianAI/AuditPilot/services/audit/agent"
)

var (
	flagApprove  []string
	flagAll      bool
	flagNone     bool
	flagFeedback string
)

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Resume a session suspended at the approval checkpoint",
	Long: `Resumes a persisted session that paused after forming hypotheses.
Without flags the approval decision is collected interactively; with
--all, --none, or --approve the decision comes from the command line.
Requires a persistent session store (store.path in the config).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagAll && flagNone || flagAll && len(flagApprove) > 0 || flagNone && len(flagApprove) > 0 {
			return fmt.Errorf("--all, --none, and --approve are mutually exclusive")
		}

		eng, err := buildEngine(cfg, logger)
		if err != nil {
			return err
		}
		defer eng.Close()

		ctx := cmd.Context()
		sessionID := args[0]

		snap, err := eng.loop.GetState(ctx, sessionID)
		if err != nil {
			return err
		}
		if !snap.AwaitingApproval {
			return fmt.Errorf("session %s is not awaiting approval (phase %s)", sessionID, snap.Phase)
		}

		approval, err := resolveApproval(snap)
		if err != nil {
			return err
		}

		result, err := eng.loop.Resume(ctx, sessionID, approval)
		if err != nil {
			return err
		}
		return printOutcome(ctx, eng, sessionID, result)
	},
}

func init() {
	resumeCmd.Flags().StringSliceVar(&flagApprove, "approve", nil, "Hypothesis IDs to approve, e.g. H-001,H-003")
	resumeCmd.Flags().BoolVar(&flagAll, "all", false, "Approve every pending hypothesis")
	resumeCmd.Flags().BoolVar(&flagNone, "none", false, "Reject every pending hypothesis")
	resumeCmd.Flags().StringVar(&flagFeedback, "feedback", "", "Feedback to thread into the remaining phases")
}

// resolveApproval maps the resume flags onto an approval decision,
// falling back to the interactive prompt when no flag was given.
func resolveApproval(snap agent.SessionSnapshot) (agent.Approval, error) {
	switch {
	case flagAll:
		return agent.Approval{ApprovedIDs: nil, Feedback: flagFeedback}, nil
	case flagNone:
		return agent.Approval{ApprovedIDs: []string{}, Feedback: flagFeedback}, nil
	case len(flagApprove) > 0:
		known := make(map[string]bool, len(snap.Hypotheses))
		for _, h := range snap.Hypotheses {
			known[h.ID] = true
		}
		for _, id := range flagApprove {
			if !known[id] {
				return agent.Approval{}, fmt.Errorf("unknown hypothesis ID %q", id)
			}
		}
		return agent.Approval{ApprovedIDs: flagApprove, Feedback: flagFeedback}, nil
	}

	items := make([]ux.ApprovalItem, 0, len(snap.Hypotheses))
	for _, h := range snap.Hypotheses {
		items = append(items, ux.ApprovalItem{
			ID:          h.ID,
			Title:       h.Title,
			Description: h.Description,
			Rationale:   h.Rationale,
		})
	}
	decision, err := ux.PromptApproval(items)
	if err != nil {
		return agent.Approval{}, err
	}
	feedback := decision.Feedback
	if flagFeedback != "" {
		feedback = flagFeedback
	}
	return agent.Approval{ApprovedIDs: decision.ApprovedIDs, Feedback: feedback}, nil
}
