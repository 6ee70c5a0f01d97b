// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dataset provides read access to the transactional store under audit.
//
// The engine core treats this package as an external collaborator: it supplies
// the aggregate statistics consumed by the Observe phase and the query surface
// the concrete analysis tools aggregate over. The schema it assumes is a flat
// `transactions` table keyed by posting date.
//
// Thread Safety:
//
//	Store is safe for concurrent use; it delegates to database/sql's
//	connection pool.
package dataset

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	// Postgres driver, registered for sqlx.Open("postgres", ...).
	_ "github.com/lib/pq"
)

// Scope identifies the slice of the ledger a session analyzes.
type Scope struct {
	// Period is the temporal scope expressed as an inclusive date range
	// label (e.g. "2025-Q3" or "2025-01..2025-06"). It is passed to every
	// tool as the required scope parameter.
	Period string `json:"period"`

	// Entity optionally restricts the analysis to one legal entity.
	Entity string `json:"entity,omitempty"`
}

// Statistics is the flat record of aggregate figures handed to the Observe
// phase. The reasoning oracle sees these serialized; field names are part of
// the prompt surface and should stay stable.
type Statistics struct {
	TransactionCount int64   `db:"transaction_count" json:"transaction_count"`
	TotalAmount      float64 `db:"total_amount" json:"total_amount"`
	MeanAmount       float64 `db:"mean_amount" json:"mean_amount"`
	MaxAmount        float64 `db:"max_amount" json:"max_amount"`
	DistinctAccounts int64   `db:"distinct_accounts" json:"distinct_accounts"`
	DistinctVendors  int64   `db:"distinct_vendors" json:"distinct_vendors"`
	DistinctUsers    int64   `db:"distinct_users" json:"distinct_users"`
	FirstPosting     string  `db:"first_posting" json:"first_posting"`
	LastPosting      string  `db:"last_posting" json:"last_posting"`
	ManualEntryCount int64   `db:"manual_entry_count" json:"manual_entry_count"`
	WeekendCount     int64   `db:"weekend_count" json:"weekend_count"`
}

// StatisticsProvider supplies the Observe-phase input.
//
// Implementations must be safe for concurrent use.
type StatisticsProvider interface {
	Statistics(ctx context.Context, scope Scope) (*Statistics, error)
}

// Store wraps the transactional database.
type Store struct {
	db *sqlx.DB
}

// Open connects to the transactional store.
//
// Inputs:
//
//	dsn - Postgres connection string.
//
// Outputs:
//
//	*Store - The connected store.
//	error - Non-nil if the connection could not be established.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection. Used by tests with a stub driver.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Statistics implements StatisticsProvider.
//
// Description:
//
//	Computes the aggregate figures for the scoped period in a single
//	query. The period label is matched against the `audit_period` column
//	maintained by the ingestion job.
//
// Thread Safety: This method is safe for concurrent use.
func (s *Store) Statistics(ctx context.Context, scope Scope) (*Statistics, error) {
	const q = `
		SELECT
			COUNT(*)                                            AS transaction_count,
			COALESCE(SUM(amount), 0)                            AS total_amount,
			COALESCE(AVG(amount), 0)                            AS mean_amount,
			COALESCE(MAX(amount), 0)                            AS max_amount,
			COUNT(DISTINCT account)                             AS distinct_accounts,
			COUNT(DISTINCT vendor)                              AS distinct_vendors,
			COUNT(DISTINCT created_by)                          AS distinct_users,
			COALESCE(MIN(posted_at)::text, '')                  AS first_posting,
			COALESCE(MAX(posted_at)::text, '')                  AS last_posting,
			COUNT(*) FILTER (WHERE entry_type = 'manual')       AS manual_entry_count,
			COUNT(*) FILTER (WHERE EXTRACT(ISODOW FROM posted_at) > 5) AS weekend_count
		FROM transactions
		WHERE audit_period = $1`

	var stats Statistics
	if err := s.db.GetContext(ctx, &stats, q, scope.Period); err != nil {
		return nil, fmt.Errorf("dataset statistics for %s: %w", scope.Period, err)
	}
	return &stats, nil
}

// AggregateRow is a generic name/count/amount aggregation row shared by the
// analysis tools.
type AggregateRow struct {
	Key    string  `db:"key" json:"key"`
	Count  int64   `db:"count" json:"count"`
	Amount float64 `db:"amount" json:"amount"`
}

// Aggregate runs an aggregation query returning AggregateRow records.
//
// The query must select columns named key, count, and amount and take the
// period label as its first bind parameter.
func (s *Store) Aggregate(ctx context.Context, query, period string, args ...any) ([]AggregateRow, error) {
	bind := append([]any{period}, args...)
	var rows []AggregateRow
	if err := s.db.SelectContext(ctx, &rows, query, bind...); err != nil {
		return nil, fmt.Errorf("dataset aggregate: %w", err)
	}
	return rows, nil
}
