// =============================================================================
// Aging Report Converter - Main Entry Point
// =============================================================================
//
// This is the main entry point for the Aging Report Converter CLI application.
// It initializes the Cobra CLI framework and delegates command execution to
// the cmd package.
//
// USAGE:
//   agingconv convert FILE   - Convert one aging report
//   agingconv process        - Convert every report in the input directory
//   agingconv profiles       - List the input profiles
//   agingconv validate       - Validate configuration and input files
//   agingconv version        - Display the application version
//
// ARCHITECTURE:
//   This application follows a modular design where:
//   - cmd/           : Contains all CLI command definitions (Cobra)
//   - internal/      : Contains core business logic (not for external import)
//   - pkg/           : Contains shared utilities
//   - profiles/      : Contains custom input profiles (YAML)
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/aging-to-qb-converter/cmd"
)

// main is the entry point of the application.
// It simply calls the Execute function from the cmd package, which
// initializes and runs the Cobra CLI.
func main() {
	cmd.Execute()
}
