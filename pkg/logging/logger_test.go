// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"", LevelInfo, false},
		{"WARN", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tc := range cases {
		got, err := ParseLevel(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseLevel(%q): expected error", tc.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLevel(%q): unexpected error: %v", tc.input, err)
		}
		if got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestNewStderrOnly(t *testing.T) {
	logger := New(Config{Level: LevelDebug})
	defer logger.Close()

	logger.Debug("debug message", "key", "value")
	logger.Info("info message")

	if logger.file != nil {
		t.Error("expected no log file without LogDir")
	}
}

func TestNewWithFileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Level: LevelInfo, LogDir: dir, Service: "testsvc"})

	logger.Info("persisted line", "session_id", "S-1")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	name := "testsvc_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "persisted line") {
		t.Error("expected file to contain the logged message")
	}
	if !strings.Contains(string(data), `"service":"testsvc"`) {
		t.Error("expected service attribute in JSON output")
	}
}

func TestNewCreatesLogDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	logger := New(Config{LogDir: dir, Service: "testsvc"})
	defer logger.Close()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("expected log directory to be created: %v", err)
	}
}

func TestWithPreservesFile(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{LogDir: dir, Service: "testsvc"})
	defer logger.Close()

	child := logger.With("component", "loop")
	if child.file != logger.file {
		t.Error("expected derived logger to share the parent's file")
	}
	child.Info("from child")
}
