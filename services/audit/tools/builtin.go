// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"fmt"

	"github.com/AleutianAI/AuditPilot/services/audit/dataset"
)

// builtinSpec describes one catalog entry. The catalog is a closed table so
// the dispatch surface stays auditable; adding a tool means adding a row
// here, not registering from a request path.
type builtinSpec struct {
	name        string
	description string
	category    Category
	query       string
	rowLabel    string
	extraParams map[string]ParamDef

	// queryArgs derives additional bind parameters ($2 onward) from the
	// period label. A derivation error fails the call before it reaches
	// the database.
	queryArgs func(period string) ([]any, error)
}

// builtinCatalog is the fixed set of analysis functions.
//
// Every query selects key/count/amount aggregation rows and binds the period
// label as $1; specs with a queryArgs derivation bind further labels from $2
// on. Numerical thresholds are deliberately simple; the engine cares about
// the registry contract, not statistical rigor.
var builtinCatalog = []builtinSpec{
	{
		name:        "duplicate_payments",
		description: "Finds vendor payments sharing amount and date, a common signal for double disbursement.",
		category:    CategoryPayments,
		rowLabel:    "duplicate group",
		query: `
			SELECT vendor || ' @ ' || amount::text AS key, COUNT(*) AS count, SUM(amount) AS amount
			FROM transactions
			WHERE audit_period = $1 AND entry_type = 'payment'
			GROUP BY vendor, amount, posted_at::date
			HAVING COUNT(*) > 1
			ORDER BY SUM(amount) DESC
			LIMIT 50`,
	},
	{
		name:        "round_amounts",
		description: "Counts postings with suspiciously round amounts (multiples of 1000) per account.",
		category:    CategoryAccounts,
		rowLabel:    "account",
		query: `
			SELECT account AS key, COUNT(*) AS count, SUM(amount) AS amount
			FROM transactions
			WHERE audit_period = $1 AND amount >= 1000 AND amount::bigint % 1000 = 0
			GROUP BY account
			ORDER BY COUNT(*) DESC
			LIMIT 50`,
	},
	{
		name:        "weekend_postings",
		description: "Aggregates transactions posted on weekends by the user who created them.",
		category:    CategoryTemporal,
		rowLabel:    "user",
		query: `
			SELECT created_by AS key, COUNT(*) AS count, SUM(amount) AS amount
			FROM transactions
			WHERE audit_period = $1 AND EXTRACT(ISODOW FROM posted_at) > 5
			GROUP BY created_by
			ORDER BY COUNT(*) DESC
			LIMIT 50`,
	},
	{
		name:        "after_hours_postings",
		description: "Aggregates transactions posted outside business hours (before 07:00 or after 20:00) by user.",
		category:    CategoryTemporal,
		rowLabel:    "user",
		query: `
			SELECT created_by AS key, COUNT(*) AS count, SUM(amount) AS amount
			FROM transactions
			WHERE audit_period = $1
			  AND (EXTRACT(HOUR FROM posted_at) < 7 OR EXTRACT(HOUR FROM posted_at) >= 20)
			GROUP BY created_by
			ORDER BY COUNT(*) DESC
			LIMIT 50`,
	},
	{
		name:        "velocity_outliers",
		description: "Flags users whose posting volume in the period far exceeds the per-user average.",
		category:    CategoryTemporal,
		rowLabel:    "user",
		query: `
			SELECT created_by AS key, COUNT(*) AS count, SUM(amount) AS amount
			FROM transactions
			WHERE audit_period = $1
			GROUP BY created_by
			HAVING COUNT(*) > 3 * (
			    SELECT COUNT(*)::numeric / GREATEST(COUNT(DISTINCT created_by), 1)
			    FROM transactions
			    WHERE audit_period = $1
			)
			ORDER BY COUNT(*) DESC
			LIMIT 50`,
	},
	{
		name:        "vendor_concentration",
		description: "Ranks vendors by share of total disbursement volume to surface concentration risk.",
		category:    CategoryVendors,
		rowLabel:    "vendor",
		query: `
			SELECT vendor AS key, COUNT(*) AS count, SUM(amount) AS amount
			FROM transactions
			WHERE audit_period = $1 AND entry_type = 'payment'
			GROUP BY vendor
			ORDER BY SUM(amount) DESC
			LIMIT 25`,
	},
	{
		name:        "benford_first_digit",
		description: "Compares the first-digit distribution of amounts against the Benford expectation per account.",
		category:    CategoryAccounts,
		rowLabel:    "first digit",
		query: `
			SELECT LEFT(ABS(amount)::bigint::text, 1) AS key, COUNT(*) AS count, SUM(amount) AS amount
			FROM transactions
			WHERE audit_period = $1 AND ABS(amount) >= 1
			GROUP BY LEFT(ABS(amount)::bigint::text, 1)
			ORDER BY key`,
	},
	{
		name:        "approval_limit_breaches",
		description: "Finds payments approved by users at or above their single-transaction approval limit.",
		category:    CategoryPayments,
		rowLabel:    "approver",
		query: `
			SELECT t.approved_by AS key, COUNT(*) AS count, SUM(t.amount) AS amount
			FROM transactions t
			JOIN approval_limits l ON l.user_name = t.approved_by
			WHERE t.audit_period = $1 AND t.amount > l.single_limit
			GROUP BY t.approved_by
			ORDER BY SUM(t.amount) DESC
			LIMIT 50`,
	},
	{
		name:        "invoice_sequence_gaps",
		description: "Detects gaps in per-vendor invoice number sequences that may indicate suppressed records.",
		category:    CategoryVendors,
		rowLabel:    "vendor",
		query: `
			SELECT vendor AS key,
			       MAX(invoice_seq) - MIN(invoice_seq) + 1 - COUNT(DISTINCT invoice_seq) AS count,
			       SUM(amount) AS amount
			FROM transactions
			WHERE audit_period = $1 AND invoice_seq IS NOT NULL
			GROUP BY vendor
			HAVING MAX(invoice_seq) - MIN(invoice_seq) + 1 - COUNT(DISTINCT invoice_seq) > 0
			ORDER BY 2 DESC
			LIMIT 50`,
	},
	{
		name:        "dormant_account_activity",
		description: "Finds accounts with postings in the period but none in the preceding period.",
		category:    CategoryAccounts,
		rowLabel:    "account",
		query: `
			SELECT account AS key, COUNT(*) AS count, SUM(amount) AS amount
			FROM transactions
			WHERE audit_period = $1
			  AND account NOT IN (
			      SELECT DISTINCT account FROM transactions WHERE audit_period = $2
			  )
			GROUP BY account
			ORDER BY SUM(amount) DESC
			LIMIT 50`,
		queryArgs: func(period string) ([]any, error) {
			prior, err := dataset.PriorPeriod(period)
			if err != nil {
				return nil, err
			}
			return []any{prior}, nil
		},
	},
	{
		name:        "manual_journal_volume",
		description: "Aggregates manual journal entries by the user who created them.",
		category:    CategoryJournals,
		rowLabel:    "user",
		query: `
			SELECT created_by AS key, COUNT(*) AS count, SUM(amount) AS amount
			FROM transactions
			WHERE audit_period = $1 AND entry_type = 'manual'
			GROUP BY created_by
			ORDER BY COUNT(*) DESC
			LIMIT 50`,
	},
	{
		name:        "split_transactions",
		description: "Finds same-day same-vendor payment groups that sum just below an approval threshold.",
		category:    CategoryPayments,
		rowLabel:    "vendor/day",
		query: `
			SELECT vendor || ' ' || posted_at::date::text AS key, COUNT(*) AS count, SUM(amount) AS amount
			FROM transactions
			WHERE audit_period = $1 AND entry_type = 'payment'
			GROUP BY vendor, posted_at::date
			HAVING COUNT(*) >= 2 AND SUM(amount) BETWEEN 9000 AND 10000
			ORDER BY SUM(amount) DESC
			LIMIT 50`,
	},
	{
		name:        "period_end_spike",
		description: "Compares posting volume in the final three days of the period against the period average.",
		category:    CategoryTemporal,
		rowLabel:    "day",
		query: `
			SELECT posted_at::date::text AS key, COUNT(*) AS count, SUM(amount) AS amount
			FROM transactions
			WHERE audit_period = $1
			  AND posted_at::date > (SELECT MAX(posted_at)::date - 3 FROM transactions WHERE audit_period = $1)
			GROUP BY posted_at::date
			ORDER BY posted_at::date`,
	},
	{
		name:        "account_pairings",
		description: "Surfaces debit/credit account pairings that appear rarely, which can indicate miscoding.",
		category:    CategoryJournals,
		rowLabel:    "pairing",
		query: `
			SELECT account || ' -> ' || offset_account AS key, COUNT(*) AS count, SUM(amount) AS amount
			FROM transactions
			WHERE audit_period = $1 AND offset_account IS NOT NULL
			GROUP BY account, offset_account
			HAVING COUNT(*) <= 3
			ORDER BY SUM(amount) DESC
			LIMIT 50`,
	},
}

// RegisterBuiltins registers the full analysis catalog against a dataset
// store. Call once at process startup.
func RegisterBuiltins(r *Registry, store *dataset.Store) {
	for _, spec := range builtinCatalog {
		r.Register(newAggregateTool(spec, store))
	}
}

// newAggregateTool builds a ToolDefinition whose handler runs the spec's
// aggregation query and folds the rows into the standard result shape.
func newAggregateTool(spec builtinSpec, store *dataset.Store) *ToolDefinition {
	params := map[string]ParamDef{
		ScopeParam: {Type: "string", Description: "Audit period label, e.g. 2025-Q3"},
	}
	for name, def := range spec.extraParams {
		params[name] = def
	}

	return &ToolDefinition{
		Name:        spec.name,
		Description: spec.description,
		Category:    spec.category,
		Parameters:  params,
		Required:    []string{ScopeParam},
		Handler: func(ctx context.Context, args map[string]any) (*ToolResult, error) {
			period, ok := args[ScopeParam].(string)
			if !ok || period == "" {
				return FailedResult(spec.name, "period must be a non-empty string"), nil
			}

			var extra []any
			if spec.queryArgs != nil {
				var err error
				extra, err = spec.queryArgs(period)
				if err != nil {
					return FailedResult(spec.name, err.Error()), nil
				}
			}

			rows, err := store.Aggregate(ctx, spec.query, period, extra...)
			if err != nil {
				return FailedResult(spec.name, err.Error()), nil
			}

			res := NewResult(spec.name, fmt.Sprintf("%d %s groups matched in %s", len(rows), spec.rowLabel, period))
			res.Data["rows"] = rows
			res.Data["period"] = period

			for i, row := range rows {
				if i < 5 {
					res.KeyFindings = append(res.KeyFindings,
						fmt.Sprintf("%s %s: %d records totaling %.2f", spec.rowLabel, row.Key, row.Count, row.Amount))
				}
				res.Evidence = append(res.Evidence, fmt.Sprintf("%s:%s:%s", spec.name, period, row.Key))
			}
			return res, nil
		},
	}
}
