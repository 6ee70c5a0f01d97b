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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	toolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_tool_executions_total",
		Help: "Total tool executions by tool and outcome",
	}, []string{"tool", "outcome"})

	toolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "audit_tool_duration_seconds",
		Help:    "Tool execution duration",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30},
	}, []string{"tool"})
)
