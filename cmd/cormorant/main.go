// Copyright (C) 2026 Seabird Labs (oss@seabirdlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var (
	configPath string
	config     Config
)

var rootCmd = &cobra.Command{
	Use:   "cormorant",
	Short: "Retrieval technique orchestration service",
	Long: "Cormorant registers retrieval techniques (vector, keyword, hybrid, " +
		"LLM expansion and rerank), schedules them under concurrency limits " +
		"with per-technique circuit breaking, and serves results over HTTP.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the cormorant version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("cormorant", version)
	},
}

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml",
		"path to the YAML configuration file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}
