// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package phases implements the audit phase executors.
//
// Each phase builds a deterministic prompt from session state, calls the
// reasoning oracle, parses the structured reply at the boundary, and records
// the outcome on the session. Untyped oracle output never flows past this
// package: anything that fails schema validation is re-prompted a bounded
// number of times and then promoted to a parse failure.
package phases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AuditPilot/services/audit/agent"
	"github.com/AleutianAI/AuditPilot/services/audit/agent/oracle"
	"github.com/AleutianAI/AuditPilot/services/audit/cache"
	"github.com/AleutianAI/AuditPilot/services/audit/dataset"
	"github.com/AleutianAI/AuditPilot/services/audit/tools"
)

// parseRetryBackoff is the pause before re-prompting after a bad reply.
const parseRetryBackoff = 500 * time.Millisecond

// Dependencies contains the collaborators shared by all phase executors.
type Dependencies struct {
	// Oracle is the reasoning oracle client.
	Oracle oracle.Client

	// Registry is the analysis-tool registry. Read-only after startup.
	Registry *tools.Registry

	// Cache deduplicates identical oracle calls. Optional.
	Cache *cache.ResponseCache

	// Stats supplies the dataset statistics consumed by OBSERVE.
	Stats dataset.StatisticsProvider

	// Log is the structured logger.
	Log *slog.Logger
}

// logger returns the configured logger or the process default.
func (d *Dependencies) logger() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}

// complete performs one budgeted oracle call, deduplicated through the
// response cache when one is configured.
//
// The step budget is charged before the oracle is contacted, so an exhausted
// budget fails without performing the call. A cache hit performs no call and
// charges no step.
func (d *Dependencies) complete(ctx context.Context, session *agent.Session, systemPrompt, prompt string) (string, error) {
	call := func(ctx context.Context) (any, error) {
		if err := session.ChargeStep(); err != nil {
			return nil, err
		}
		resp, err := d.Oracle.Complete(ctx, &oracle.Request{
			SystemPrompt: systemPrompt,
			Prompt:       prompt,
		})
		if err != nil {
			oracleCalls.WithLabelValues("error").Inc()
			return nil, err
		}
		oracleCalls.WithLabelValues("success").Inc()
		return resp.Content, nil
	}

	var (
		v   any
		err error
	)
	if d.Cache != nil {
		key := cache.Key("oracle", d.Oracle.Model(), systemPrompt, prompt)
		v, err = d.Cache.Do(ctx, key, call)
	} else {
		v, err = call(ctx)
	}
	if err != nil {
		return "", err
	}
	content, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("unexpected cached oracle value %T", v)
	}
	return content, nil
}

// completeParsed calls the oracle and parses the reply, re-prompting with the
// parse error surfaced back to the oracle on malformed output.
//
// Description:
//
//	Runs up to MaxParseRetries+1 attempts. Transport failures and oracle
//	timeouts consume the same retry budget as parse failures. Budget
//	violations and context cancellation abort immediately. Exhausting the
//	retries returns an error wrapping agent.ErrOracleParse.
func completeParsed[T any](
	ctx context.Context,
	d *Dependencies,
	session *agent.Session,
	systemPrompt, prompt string,
	parse func(string) (T, error),
) (T, error) {
	var zero T

	attempts := session.Config().MaxParseRetries + 1
	next := prompt
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			oracleRetries.Inc()
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(parseRetryBackoff):
			}
			next = fmt.Sprintf("%s\n\nYour previous reply could not be used: %s\nReply again with a single valid JSON document and nothing else.",
				prompt, lastErr)
		}

		content, err := d.complete(ctx, session, systemPrompt, next)
		if err != nil {
			if errors.Is(err, agent.ErrMaxStepsExceeded) || ctx.Err() != nil {
				return zero, err
			}
			lastErr = err
			d.logger().Warn("oracle call failed, retrying",
				"session_id", session.ID(), "attempt", attempt+1, "error", err)
			continue
		}

		parsed, err := parse(content)
		if err != nil {
			lastErr = err
			d.logger().Warn("oracle reply rejected, retrying",
				"session_id", session.ID(), "attempt", attempt+1, "error", err)
			continue
		}
		return parsed, nil
	}

	return zero, fmt.Errorf("%w after %d attempts: %v", agent.ErrOracleParse, attempts, lastErr)
}

// Registry maps phases to their executors.
//
// Registry implements agent.PhaseRegistry.
type Registry struct {
	executors map[agent.Phase]agent.PhaseExecutor
}

// NewRegistry wires the five phase executors against shared dependencies.
func NewRegistry(deps *Dependencies) *Registry {
	return &Registry{
		executors: map[agent.Phase]agent.PhaseExecutor{
			agent.PhaseObserve:     timed{&ObservePhase{deps: deps}},
			agent.PhaseHypothesize: timed{&HypothesizePhase{deps: deps}},
			agent.PhaseExplore:     timed{&ExplorePhase{deps: deps}},
			agent.PhaseVerify:      timed{&VerifyPhase{deps: deps}},
			agent.PhaseSynthesize:  timed{&SynthesizePhase{deps: deps}},
		},
	}
}

// GetPhase implements agent.PhaseRegistry.
func (r *Registry) GetPhase(phase agent.Phase) (agent.PhaseExecutor, bool) {
	executor, ok := r.executors[phase]
	return executor, ok
}

// timed records the execution duration of the wrapped phase.
type timed struct {
	agent.PhaseExecutor
}

func (t timed) Execute(ctx context.Context, session *agent.Session) (agent.Phase, error) {
	start := time.Now()
	next, err := t.PhaseExecutor.Execute(ctx, session)
	phaseDuration.WithLabelValues(t.Name()).Observe(time.Since(start).Seconds())
	return next, err
}
