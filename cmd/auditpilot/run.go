// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AuditPilot/pkg/ux"
	"github.com/AleutianAI/AuditPilot/services/audit/agent"
	"github.com/AleutianAI/AuditPilot/services/audit/dataset"
)

var (
	flagPeriod          string
	flagEntity          string
	flagRequireApproval bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an audit session over a ledger period",
	Long: `Starts a new audit session scoped to the given period and runs the
engine until it completes, fails, or suspends for hypothesis approval.
With --require-approval the engine pauses after forming hypotheses and
asks which ones to explore.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cfg, logger)
		if err != nil {
			return err
		}
		defer eng.Close()

		sessionCfg := cfg.SessionConfig()
		if flagRequireApproval {
			sessionCfg.RequireApproval = true
		}

		scope := dataset.Scope{Period: flagPeriod, Entity: flagEntity}
		session, err := agent.NewSession(scope, sessionCfg)
		if err != nil {
			return err
		}
		logger.Info("session created", "session_id", session.ID(), "period", flagPeriod)

		ctx := cmd.Context()
		result, err := eng.loop.Run(ctx, session)
		if err != nil {
			return err
		}

		if result.NeedsApproval != nil {
			result, err = collectApproval(ctx, eng, result.NeedsApproval)
			if err != nil {
				return err
			}
		}

		return printOutcome(ctx, eng, session.ID(), result)
	},
}

func init() {
	runCmd.Flags().StringVar(&flagPeriod, "period", "", "Ledger period to audit, e.g. 2025-Q3 (required)")
	runCmd.Flags().StringVar(&flagEntity, "entity", "", "Restrict the audit to one legal entity")
	runCmd.Flags().BoolVar(&flagRequireApproval, "require-approval", false, "Pause for hypothesis approval before exploring")
	runCmd.MarkFlagRequired("period")
}

// collectApproval prompts the auditor and resumes the suspended session.
func collectApproval(ctx context.Context, eng *engine, req *agent.ApprovalRequest) (*agent.RunResult, error) {
	items := make([]ux.ApprovalItem, 0, len(req.Hypotheses))
	for _, h := range req.Hypotheses {
		items = append(items, ux.ApprovalItem{
			ID:          h.ID,
			Title:       h.Title,
			Description: h.Description,
			Rationale:   h.Rationale,
		})
	}

	decision, err := ux.PromptApproval(items)
	if err != nil {
		return nil, err
	}
	logger.Info("approval collected",
		"session_id", req.SessionID,
		"approved", len(decision.ApprovedIDs),
		"offered", len(items))

	return eng.loop.Resume(ctx, req.SessionID, agent.Approval{
		ApprovedIDs: decision.ApprovedIDs,
		Feedback:    decision.Feedback,
	})
}

// printOutcome renders the final report, or the failure if the session
// ended in the error phase.
func printOutcome(ctx context.Context, eng *engine, sessionID string, result *agent.RunResult) error {
	snap, err := eng.loop.GetState(ctx, sessionID)
	if err != nil {
		return err
	}

	if result.NeedsApproval != nil {
		ux.PrintWarning(fmt.Sprintf("session %s is suspended awaiting approval; resume with: auditpilot resume %s", sessionID, sessionID))
		return nil
	}

	fmt.Print(ux.RenderReport(snapshotReport(snap)))

	if result.Error != nil {
		return fmt.Errorf("session %s failed: %s", sessionID, result.Error.Error())
	}
	return nil
}

// snapshotReport converts a session snapshot into the renderable report.
func snapshotReport(snap agent.SessionSnapshot) ux.Report {
	report := ux.Report{
		SessionID:        snap.ID,
		Period:           snap.Scope.Period,
		Phase:            snap.Phase.String(),
		StepsTaken:       snap.StepCount,
		ExecutiveSummary: snap.ExecutiveSummary,
	}
	for _, h := range snap.Hypotheses {
		report.Hypotheses = append(report.Hypotheses, ux.HypothesisView{
			ID:             h.ID,
			Title:          h.Title,
			Status:         string(h.Status),
			GroundingScore: h.GroundingScore,
		})
	}
	for _, in := range snap.Insights {
		report.Insights = append(report.Insights, ux.InsightView{
			ID:              in.ID,
			Title:           in.Title,
			Description:     in.Description,
			Category:        in.Category,
			Severity:        string(in.Severity),
			AffectedAmount:  in.AffectedAmount,
			AffectedCount:   int(in.AffectedCount),
			Recommendations: in.Recommendations,
			HypothesisIDs:   in.HypothesisIDs,
			GroundingScore:  in.GroundingScore,
		})
	}
	return report
}
