// Copyright (C) 2026 Seabird Labs (oss@seabirdlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/seabird-labs/cormorant/services/retrieval"
)

// Config is the service configuration loaded from YAML. Secrets (the
// OpenAI API key) come from the environment, never from this file.
type Config struct {
	Server struct {
		// Port for the HTTP API. Default: 12310.
		Port string `yaml:"port"`
	} `yaml:"server"`

	Logging struct {
		Level  string `yaml:"level"`
		LogDir string `yaml:"log_dir"`
		JSON   bool   `yaml:"json"`
		Quiet  bool   `yaml:"quiet"`
	} `yaml:"logging"`

	// Orchestrator holds the execution engine settings; zero fields take
	// the library defaults.
	Orchestrator retrieval.Config `yaml:"orchestrator"`

	Weaviate struct {
		// URL of the Weaviate instance, e.g. "http://localhost:8080".
		// Empty disables the Weaviate-backed techniques.
		URL string `yaml:"url"`
	} `yaml:"weaviate"`

	OpenAI struct {
		// Enabled turns the LLM-backed techniques on. The API key comes
		// from OPENAI_API_KEY.
		Enabled bool `yaml:"enabled"`
	} `yaml:"openai"`

	Telemetry struct {
		// OTLPEndpoint is the gRPC collector address for trace export.
		// Empty disables export.
		OTLPEndpoint string `yaml:"otlp_endpoint"`
	} `yaml:"telemetry"`
}

// loadConfig reads and parses the YAML config. A missing file is not an
// error; defaults apply.
//
// The orchestrator section is seeded with the library defaults before
// unmarshalling so that an absent or partial file keeps retries, metrics,
// and logging on rather than silently zeroing the toggles.
func loadConfig(path string) (Config, error) {
	var cfg Config
	cfg.Server.Port = "12310"
	cfg.Orchestrator = retrieval.DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "12310"
	}
	return cfg, nil
}
