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
)

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	session := newTestSession(t, DefaultSessionConfig())

	if err := store.Put(ctx, session); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, session.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != session {
		t.Error("memory store should return the same instance")
	}

	ids, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 1 || ids[0] != session.ID() {
		t.Errorf("List = %v", ids)
	}

	if err := store.Delete(ctx, session.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = store.Get(ctx, session.ID())
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestBadgerSessionStore_RoundTrip(t *testing.T) {
	ctx := context.Background()

	store, err := OpenBadgerSessionStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	session := newTestSession(t, DefaultSessionConfig())
	session.SetPatterns([]string{"spike in manual journals"})
	session.SetPhase(PhaseHypothesize, "test")

	if err := store.Put(ctx, session); err != nil {
		t.Fatalf("Put: %v", err)
	}

	restored, err := store.Get(ctx, session.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if restored.ID() != session.ID() {
		t.Errorf("ID = %s, want %s", restored.ID(), session.ID())
	}
	if restored.GetPhase() != PhaseHypothesize {
		t.Errorf("phase = %s", restored.GetPhase())
	}
	if got := restored.Patterns(); len(got) != 1 {
		t.Errorf("patterns = %v", got)
	}

	ids, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 1 || ids[0] != session.ID() {
		t.Errorf("List = %v", ids)
	}

	if err := store.Delete(ctx, session.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = store.Get(ctx, session.ID())
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("error = %v, want ErrSessionNotFound", err)
	}
}
