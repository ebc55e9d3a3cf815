// Package main provides the entry point for the autonomous job application agent.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath     string
	logLevel       string
	logDevelopment bool
)

var rootCmd = &cobra.Command{
	Use:   "apply_agent",
	Short: "Autonomous job application agent",
	Long: `apply_agent scores stored job postings against the candidate profile, resolves the
official apply target, optionally tailors the resume and drives a browser through the
application form. Runs are controlled through a REST API or directly from the CLI.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json file (values can be overridden by flags and environment)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&logDevelopment, "log-dev", false, "Human-readable console logs")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
