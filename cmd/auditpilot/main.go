// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command auditpilot runs the autonomous audit analysis engine.
//
// AuditPilot explores a transactional ledger the way a junior auditor
// would: it observes aggregate statistics, forms hypotheses about
// anomalies, tests them with read-only analysis tools, verifies the
// evidence, and synthesizes findings into a report.
//
// Usage:
//
//	auditpilot run --period 2025-Q3
//	auditpilot run --period 2025-Q3 --require-approval
//	auditpilot resume <session-id>
//	auditpilot sessions list
//	auditpilot sessions show <session-id>
//
// The reasoning oracle requires OPENAI_API_KEY (or a Docker secret at
// /run/secrets/openai_api_key).
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AuditPilot/pkg/logging"
	"github.com/AleutianAI/AuditPilot/pkg/ux"
	"github.com/AleutianAI/AuditPilot/services/audit/config"
	"github.com/AleutianAI/AuditPilot/services/audit/telemetry"
)

var (
	flagConfig   string
	flagLogLevel string
	flagLogDir   string
	flagTrace    string

	cfg    *config.Config
	logger *logging.Logger

	telemetryShutdown func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "auditpilot",
	Short: "Autonomous hypothesis-driven audit analysis for transactional ledgers",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(flagLogLevel)
		if err != nil {
			return err
		}
		logger = logging.New(logging.Config{
			Level:   level,
			LogDir:  flagLogDir,
			Service: "auditpilot",
		})

		loaded, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		cfg = loaded

		tcfg := telemetry.DefaultConfig()
		if flagTrace != "" {
			tcfg.TraceExporter = flagTrace
		}
		shutdown, err := telemetry.Init(cmd.Context(), tcfg)
		if err != nil {
			return err
		}
		telemetryShutdown = shutdown
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if telemetryShutdown != nil {
			if err := telemetryShutdown(context.Background()); err != nil {
				logger.Warn("telemetry shutdown", "error", err)
			}
		}
		if logger != nil {
			logger.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a YAML config overlay (defaults are embedded)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogDir, "log-dir", "", "Directory for JSON log files (stderr only when empty)")
	rootCmd.PersistentFlags().StringVar(&flagTrace, "trace", "", "Trace exporter: stdout or none")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		ux.PrintError(err.Error())
		os.Exit(1)
	}
}
