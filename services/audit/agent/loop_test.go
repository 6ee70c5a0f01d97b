// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubPhase struct {
	name string
	fn   func(ctx context.Context, session *Session) (Phase, error)
}

func (p *stubPhase) Execute(ctx context.Context, session *Session) (Phase, error) {
	return p.fn(ctx, session)
}

func (p *stubPhase) Name() string {
	return p.name
}

type stubPhaseRegistry map[Phase]PhaseExecutor

func (r stubPhaseRegistry) GetPhase(phase Phase) (PhaseExecutor, bool) {
	p, ok := r[phase]
	return p, ok
}

// next returns a stub executor that immediately hands off to the given phase.
func next(name string, to Phase) PhaseExecutor {
	return &stubPhase{name: name, fn: func(context.Context, *Session) (Phase, error) {
		return to, nil
	}}
}

// Badger hands out a fresh Session instance on every Get, so two Resume
// calls for the same persisted session hold independent instances. The
// loop must still run their phases one at a time.
func TestResume_SerializesStoreRestoredSessions(t *testing.T) {
	ctx := context.Background()

	store, err := OpenBadgerSessionStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	session := newTestSession(t, DefaultSessionConfig())
	session.SetPhase(PhaseHypothesize, "test")
	if err := session.AddHypotheses([]*Hypothesis{{Title: "round amounts cluster"}}); err != nil {
		t.Fatalf("AddHypotheses: %v", err)
	}
	session.SetAwaitingApproval()
	if err := store.Put(ctx, session); err != nil {
		t.Fatalf("Put: %v", err)
	}

	started := make(chan struct{}, 2)
	gate := make(chan struct{})
	registry := stubPhaseRegistry{
		PhaseExplore: &stubPhase{name: "EXPLORE", fn: func(context.Context, *Session) (Phase, error) {
			started <- struct{}{}
			<-gate
			return PhaseVerify, nil
		}},
		PhaseVerify:     next("VERIFY", PhaseSynthesize),
		PhaseSynthesize: next("SYNTHESIZE", PhaseComplete),
	}

	loop := NewDefaultAuditLoop(
		WithSessionStore(store),
		WithPhaseRegistry(registry),
	)

	type outcome struct {
		result *RunResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := loop.Resume(ctx, session.ID(), Approval{})
		done <- outcome{result, err}
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first resume never reached EXPLORE")
	}

	// The first resume is parked mid-phase. A second resume of the same
	// session ID must be turned away, not given its own restored copy.
	_, err = loop.Resume(ctx, session.ID(), Approval{})
	if !errors.Is(err, ErrSessionInProgress) {
		t.Fatalf("concurrent resume error = %v, want ErrSessionInProgress", err)
	}

	close(gate)
	select {
	case out := <-done:
		if out.err != nil {
			t.Fatalf("Resume: %v", out.err)
		}
		if out.result.Phase != PhaseComplete {
			t.Errorf("phase = %s, want %s", out.result.Phase, PhaseComplete)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first resume never finished")
	}

	// The latch must be released once the run finishes.
	restored, err := store.Get(ctx, session.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if restored.GetPhase() != PhaseComplete {
		t.Errorf("persisted phase = %s, want %s", restored.GetPhase(), PhaseComplete)
	}
	if _, err := loop.Resume(ctx, session.ID(), Approval{}); !errors.Is(err, ErrNotAwaitingApproval) {
		t.Errorf("post-completion resume error = %v, want ErrNotAwaitingApproval", err)
	}
}
