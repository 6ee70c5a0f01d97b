// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config provides configuration loading for the audit engine.
//
// Defaults are embedded in the binary; an optional YAML file overlays them.
// Every loaded configuration is validated before use.
//
// Thread Safety:
//
//	A Config is immutable after Load returns.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AuditPilot/services/audit/agent"
)

// MaxYAMLFileSize is the maximum allowed config file size (1MB).
const MaxYAMLFileSize = 1024 * 1024

//go:embed defaults.yaml
var defaultsYAML []byte

// Duration wraps time.Duration with YAML string parsing ("5m", "60s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// SessionSection holds the per-session budgets.
type SessionSection struct {
	MaxSteps              int      `yaml:"max_steps" validate:"gte=1,lte=1000"`
	MaxHypotheses         int      `yaml:"max_hypotheses" validate:"gte=1,lte=100"`
	MaxToolsPerHypothesis int      `yaml:"max_tools_per_hypothesis" validate:"gte=1,lte=50"`
	MaxParseRetries       int      `yaml:"max_parse_retries" validate:"gte=0,lte=10"`
	RequireApproval       bool     `yaml:"require_approval"`
	SessionTimeout        Duration `yaml:"session_timeout"`
}

// CacheSection sizes the shared response cache.
type CacheSection struct {
	MaxSize int      `yaml:"max_size" validate:"gte=1"`
	TTL     Duration `yaml:"ttl"`
}

// OracleSection configures the reasoning-oracle client.
type OracleSection struct {
	Provider           string   `yaml:"provider" validate:"oneof=openai mock"`
	Model              string   `yaml:"model"`
	RequestTimeout     Duration `yaml:"request_timeout"`
	RateLimitPerSecond float64  `yaml:"rate_limit_per_second" validate:"gt=0"`
	RateBurst          int      `yaml:"rate_burst" validate:"gte=1"`
}

// DatasetSection configures the transactional dataset connection.
type DatasetSection struct {
	DSN string `yaml:"dsn" validate:"required"`
}

// StoreSection configures session persistence. An empty path selects the
// in-memory store.
type StoreSection struct {
	Path string `yaml:"path"`
}

// Config is the full engine configuration.
type Config struct {
	Session SessionSection `yaml:"session" validate:"required"`
	Cache   CacheSection   `yaml:"cache" validate:"required"`
	Oracle  OracleSection  `yaml:"oracle" validate:"required"`
	Dataset DatasetSection `yaml:"dataset" validate:"required"`
	Store   StoreSection   `yaml:"store"`
}

// Load builds the configuration from the embedded defaults, overlaid with
// the optional YAML file at path.
//
// Outputs:
//
//	*Config - The validated configuration
//	error - Non-nil on read, parse, or validation failure
func Load(path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		return nil, fmt.Errorf("parse embedded defaults: %w", err)
	}

	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if info.Size() > MaxYAMLFileSize {
			return nil, fmt.Errorf("config file %s exceeds %d bytes", path, MaxYAMLFileSize)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// SessionConfig converts the session section into the agent's budget record.
func (c *Config) SessionConfig() agent.SessionConfig {
	return agent.SessionConfig{
		MaxSteps:              c.Session.MaxSteps,
		MaxHypotheses:         c.Session.MaxHypotheses,
		MaxToolsPerHypothesis: c.Session.MaxToolsPerHypothesis,
		MaxParseRetries:       c.Session.MaxParseRetries,
		RequireApproval:       c.Session.RequireApproval,
		SessionTimeout:        c.Session.SessionTimeout.Std(),
	}
}
