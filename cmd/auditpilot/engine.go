// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/AleutianAI/AuditPilot/pkg/logging"
	"github.com/AleutianAI/AuditPilot/services/audit/agent"
	"github.com/AleutianAI/AuditPilot/services/audit/agent/oracle"
	"github.com/AleutianAI/AuditPilot/services/audit/agent/phases"
	"github.com/AleutianAI/AuditPilot/services/audit/cache"
	"github.com/AleutianAI/AuditPilot/services/audit/config"
	"github.com/AleutianAI/AuditPilot/services/audit/dataset"
	"github.com/AleutianAI/AuditPilot/services/audit/tools"
)

// engine bundles the wired audit components for one CLI invocation.
type engine struct {
	loop    *agent.DefaultAuditLoop
	dataset *dataset.Store
	badger  *agent.BadgerSessionStore
}

// buildEngine wires the full stack: dataset, tool registry, response
// cache, oracle client, phase registry, session store, and audit loop.
func buildEngine(cfg *config.Config, logger *logging.Logger) (*engine, error) {
	store, err := dataset.Open(cfg.Dataset.DSN)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}

	registry := tools.NewRegistry()
	tools.RegisterBuiltins(registry, store)

	oracleClient, err := buildOracle(cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	responseCache := cache.New(cfg.Cache.MaxSize, cfg.Cache.TTL.Std())

	phaseRegistry := phases.NewRegistry(&phases.Dependencies{
		Oracle:   oracleClient,
		Registry: registry,
		Cache:    responseCache,
		Stats:    store,
		Log:      logger.Slog(),
	})

	opts := []agent.LoopOption{
		agent.WithPhaseRegistry(phaseRegistry),
		agent.WithLogger(logger.Slog()),
	}

	var badgerStore *agent.BadgerSessionStore
	if cfg.Store.Path != "" {
		badgerStore, err = agent.OpenBadgerSessionStore(cfg.Store.Path, logger.Slog())
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("open session store: %w", err)
		}
		opts = append(opts, agent.WithSessionStore(badgerStore))
	}

	return &engine{
		loop:    agent.NewDefaultAuditLoop(opts...),
		dataset: store,
		badger:  badgerStore,
	}, nil
}

// buildOracle selects the reasoning-oracle client per the config.
func buildOracle(cfg *config.Config, logger *logging.Logger) (oracle.Client, error) {
	switch cfg.Oracle.Provider {
	case "mock":
		return oracle.NewMockClient(), nil
	default:
		client, err := oracle.NewOpenAIClient(
			oracle.WithModel(cfg.Oracle.Model),
			oracle.WithRateLimit(cfg.Oracle.RateLimitPerSecond, cfg.Oracle.RateBurst),
			oracle.WithRequestTimeout(cfg.Oracle.RequestTimeout.Std()),
			oracle.WithOpenAILogger(logger.Slog()),
		)
		if err != nil {
			return nil, fmt.Errorf("oracle client: %w", err)
		}
		return client, nil
	}
}

// Close releases the engine's database handles.
func (e *engine) Close() {
	if e.badger != nil {
		if err := e.badger.Close(); err != nil {
			logger.Warn("closing session store", "error", err)
		}
	}
	if err := e.dataset.Close(); err != nil {
		logger.Warn("closing dataset", "error", err)
	}
}
