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

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect persisted audit sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted session IDs with phase and scope",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSessionStore()
		if err != nil {
			return err
		}
		defer store.Close()

		ids, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("No sessions.")
			return nil
		}

		for _, id := range ids {
			session, err := store.Get(cmd.Context(), id)
			if err != nil {
				logger.Warn("skipping unreadable session", "session_id", id, "error", err)
				continue
			}
			snap := session.Snapshot()
			status := snap.Phase.String()
			if snap.AwaitingApproval {
				status += " (awaiting approval)"
			}
			fmt.Printf("%s  %-12s  period %s  %d insights\n",
				snap.ID, status, snap.Scope.Period, len(snap.Insights))
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Render the report for a persisted session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSessionStore()
		if err != nil {
			return err
		}
		defer store.Close()

		session, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Print(ux.RenderReport(snapshotReport(session.Snapshot())))
		return nil
	},
}

// openSessionStore opens the configured Badger store. Session inspection
// does not need the dataset or the oracle, so the full engine is skipped.
func openSessionStore() (*agent.BadgerSessionStore, error) {
	if cfg.Store.Path == "" {
		return nil, fmt.Errorf("no persistent session store configured; set store.path in the config")
	}
	return agent.OpenBadgerSessionStore(cfg.Store.Path, logger.Slog())
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
}
