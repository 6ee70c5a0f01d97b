// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package telemetry wires OpenTelemetry tracing and Prometheus metrics
// for the audit engine.
//
// Spans are emitted by the agent loop and the tool registry through the
// global tracer provider installed here. Tool execution counters register
// with the default Prometheus registry; MetricsHandler exposes them over
// HTTP for scraping.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

var (
	// ErrNilContext is returned when Init is called with a nil context.
	ErrNilContext = errors.New("telemetry: nil context")

	// ErrUnknownExporter is returned for an unrecognized exporter name.
	ErrUnknownExporter = errors.New("telemetry: unknown exporter")
)

// Config controls telemetry behavior.
type Config struct {
	// ServiceName identifies this process in traces.
	ServiceName string `json:"service_name"`

	// ServiceVersion is the version string for this process.
	ServiceVersion string `json:"service_version"`

	// Environment identifies the deployment environment.
	Environment string `json:"environment"`

	// TraceExporter selects the trace exporter: "stdout" or "none".
	TraceExporter string `json:"trace_exporter"`
}

// DefaultConfig returns defaults suitable for local runs.
//
// OTEL_TRACES_EXPORTER overrides the trace exporter selection and
// AUDITPILOT_ENV overrides the environment name.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "auditpilot",
		ServiceVersion: "1.0.0",
		Environment:    getEnvOr("AUDITPILOT_ENV", "development"),
		TraceExporter:  getEnvOr("OTEL_TRACES_EXPORTER", "none"),
	}
}

// Init installs the global tracer provider per the config.
//
// Description:
//
//	After Init returns successfully, otel.Tracer() spans created anywhere
//	in the process flow through the configured exporter. The returned
//	shutdown function flushes pending spans and must be called on exit.
//
// Thread Safety: Call once at application startup.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	if cfg.TraceExporter == "none" {
		return func(context.Context) error { return nil }, nil
	}

	var exporter trace.SpanExporter
	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.TraceExporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// MetricsHandler returns the HTTP handler serving Prometheus metrics.
//
// Tool execution counters register with the default registry at package
// init, so the handler always has data once tools have run.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
