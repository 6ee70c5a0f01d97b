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
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
)

// SessionStore persists sessions across runs.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use.
type SessionStore interface {
	// Put upserts the session.
	Put(ctx context.Context, session *Session) error

	// Get returns the session by ID, or ErrSessionNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes the session. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)
}

// MemorySessionStore is an in-process SessionStore.
//
// Sessions are held live, not as snapshots, so a Get returns the same
// mutable instance that Put stored.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*Session)}
}

// Put implements SessionStore.
func (m *MemorySessionStore) Put(_ context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID()] = session
	return nil
}

// Get implements SessionStore.
func (m *MemorySessionStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Delete implements SessionStore.
func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// List implements SessionStore.
func (m *MemorySessionStore) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

// badgerSessionPrefix namespaces session keys in the shared database.
const badgerSessionPrefix = "audit/session/"

// BadgerSessionStore persists session snapshots in a Badger database.
//
// Description:
//
//	Each session is stored as the JSON encoding of its snapshot under
//	"audit/session/<id>". Get rebuilds a live session from the snapshot,
//	so a restored session is a distinct instance from the one persisted.
type BadgerSessionStore struct {
	db  *badger.DB
	log *slog.Logger
}

// NewBadgerSessionStore wraps an open Badger database.
func NewBadgerSessionStore(db *badger.DB, log *slog.Logger) *BadgerSessionStore {
	if log == nil {
		log = slog.Default()
	}
	return &BadgerSessionStore{db: db, log: log}
}

// OpenBadgerSessionStore opens (or creates) a Badger database at dir.
func OpenBadgerSessionStore(dir string, log *slog.Logger) (*BadgerSessionStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return NewBadgerSessionStore(db, log), nil
}

// Close closes the underlying database.
func (b *BadgerSessionStore) Close() error {
	return b.db.Close()
}

// Put implements SessionStore.
func (b *BadgerSessionStore) Put(_ context.Context, session *Session) error {
	snap := session.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", snap.ID, err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerSessionPrefix+snap.ID), data)
	})
	if err != nil {
		return fmt.Errorf("persist session %s: %w", snap.ID, err)
	}

	b.log.Debug("session persisted", "session_id", snap.ID, "phase", snap.Phase)
	return nil
}

// Get implements SessionStore.
func (b *BadgerSessionStore) Get(_ context.Context, id string) (*Session, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerSessionPrefix + id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	var snap SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return RestoreSession(snap), nil
}

// Delete implements SessionStore.
func (b *BadgerSessionStore) Delete(_ context.Context, id string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(badgerSessionPrefix + id))
	})
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// List implements SessionStore.
func (b *BadgerSessionStore) List(_ context.Context) ([]string, error) {
	var ids []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(badgerSessionPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return ids, nil
}
