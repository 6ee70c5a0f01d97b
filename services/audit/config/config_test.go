// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Session.MaxSteps)
	assert.Equal(t, 5, cfg.Session.MaxHypotheses)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL.Std())
	assert.Equal(t, "openai", cfg.Oracle.Provider)
}

func TestLoad_OverlayFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.yaml")
	overlay := "session:\n  max_steps: 3\n  require_approval: true\n"
	require.NoError(t, os.WriteFile(path, []byte(overlay), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Session.MaxSteps)
	assert.True(t, cfg.Session.RequireApproval)
	// Untouched sections keep their defaults.
	assert.Equal(t, 5, cfg.Session.MaxHypotheses)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  max_steps: 0\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err, "max_steps=0 must fail validation")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSessionConfig_Conversion(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	sc := cfg.SessionConfig()
	assert.Equal(t, cfg.Session.MaxSteps, sc.MaxSteps)
	assert.Equal(t, cfg.Session.MaxParseRetries, sc.MaxParseRetries)
	assert.Equal(t, 10*time.Minute, sc.SessionTimeout)
}
