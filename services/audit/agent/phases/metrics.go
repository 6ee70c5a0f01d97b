// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package phases

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	oracleCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_oracle_calls_total",
		Help: "Total reasoning-oracle calls by outcome",
	}, []string{"outcome"})

	oracleRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_oracle_retries_total",
		Help: "Oracle re-prompts after transport or parse failures",
	})

	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "audit_phase_duration_seconds",
		Help:    "Phase execution duration",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 120, 300},
	}, []string{"phase"})
)
