// Copyright (C) 2026 Seabird Labs (oss@seabirdlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/seabird-labs/cormorant/services/retrieval"
)

func TestLoadConfig_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Server.Port != "12310" {
		t.Errorf("port = %q, want 12310", cfg.Server.Port)
	}
	want := retrieval.DefaultConfig()
	if !cfg.Orchestrator.EnableRetries || !cfg.Orchestrator.EnableMetrics || !cfg.Orchestrator.EnableLogging {
		t.Errorf("toggles = %+v, want retries/metrics/logging on", cfg.Orchestrator)
	}
	if cfg.Orchestrator.MaxRetries != want.MaxRetries || cfg.Orchestrator.DefaultTimeout != want.DefaultTimeout {
		t.Errorf("orchestrator = %+v, want library defaults", cfg.Orchestrator)
	}
}

func TestLoadConfig_PartialFilePreservesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	partial := "server:\n  port: \"9000\"\norchestrator:\n  max_retries: 5\n"
	if err := os.WriteFile(path, []byte(partial), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Server.Port != "9000" {
		t.Errorf("port = %q, want 9000", cfg.Server.Port)
	}
	if cfg.Orchestrator.MaxRetries != 5 {
		t.Errorf("max_retries = %d, want 5", cfg.Orchestrator.MaxRetries)
	}
	// Everything the file does not mention keeps the library defaults,
	// toggles included.
	if !cfg.Orchestrator.EnableRetries || !cfg.Orchestrator.EnableMetrics || !cfg.Orchestrator.EnableLogging {
		t.Errorf("toggles = %+v, want retries/metrics/logging still on", cfg.Orchestrator)
	}
	if cfg.Orchestrator.DefaultTimeout != 30*time.Second {
		t.Errorf("default_timeout = %v, want 30s", cfg.Orchestrator.DefaultTimeout)
	}
	if cfg.Orchestrator.Breaker.FailureThreshold != 3 {
		t.Errorf("failure_threshold = %d, want 3", cfg.Orchestrator.Breaker.FailureThreshold)
	}
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not: a: mapping"), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Error("expected parse error for malformed YAML")
	}
}
