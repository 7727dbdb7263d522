// =============================================================================
// Aging Report Converter - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (agingconv)
//   ├── convertCmd  (agingconv convert FILE)
//   ├── processCmd  (agingconv process)
//   ├── profilesCmd (agingconv profiles)
//   ├── validateCmd (agingconv validate [FILE...])
//   └── versionCmd  (agingconv version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose, --log-level)
//   2. Loading the main configuration and the input profiles
//   3. Setting up logging
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/ginjaninja78/aging-to-qb-converter/internal/config"
	"github.com/ginjaninja78/aging-to-qb-converter/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
// This can be overridden using the --config flag.
var cfgFile string

// verbose enables verbose logging when set to true.
var verbose bool

// logLevel overrides the log_level of the main configuration.
var logLevel string

// appState is everything loaded before a command runs.
type appState struct {
	cfg      *config.MainConfig
	registry *config.Registry
	closeLog func() error
}

// app is filled in by loadApp.
var app appState

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "agingconv",
	Short: "Aging Report Converter - Turn vendor aging exports into bill import files",
	Long: `Aging Report Converter reads the vendor aging report of an accounting
package (CSV or XLSX) and reshapes it into CSV files that can be imported as
bills and vendor credits.

Key Features:
  - Built-in input profiles for the common export layouts, plus auto-detection
  - Custom input profiles in YAML
  - Optional "Select" column to pick which rows are imported
  - Bills and vendor credits written to separate files
  - Batch processing of a whole input directory with archival

Example Usage:
  agingconv convert aging.csv               # Convert one file with auto-detection
  agingconv convert aging.csv -p fixed11-select --preview
  agingconv process                         # Convert every file in the input directory
  agingconv validate aging.csv              # Check a file without writing output`,

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadApp(cmd)
	},

	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app.closeLog != nil {
			return app.closeLog()
		}
		return nil
	},

	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is provided, print the help message.
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// init sets up the global flags.
func init() {
	// --config flag: A missing file is only an error when the flag is given.
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	// --verbose flag: Enables debug logging.
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)

	// --log-level flag: Overrides log_level from the configuration.
	rootCmd.PersistentFlags().StringVar(
		&logLevel,
		"log-level",
		"",
		"Log level: debug, info, warn, error (overrides the configuration)",
	)
}

// loadApp loads configuration, profiles and the logger, and stores the
// logger in the command context.
func loadApp(cmd *cobra.Command) error {
	required := cmd.Flags().Changed("config")

	cfg, err := config.LoadMainConfig(cfgFile, required)
	if err != nil {
		return fmt.Errorf("failed to load main config: %w", err)
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log, closeLog, err := logger.NewWithFile(cfg.LogLevel, verbose, cfg.LogFile)
	if err != nil {
		return err
	}

	custom, err := config.LoadProfiles(cfg.ProfilesDir)
	if err != nil {
		closeLog()
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	registry := config.NewRegistry(custom)
	if _, err := registry.Get(cfg.DefaultProfile); err != nil {
		closeLog()
		return fmt.Errorf("invalid default_profile: %w", err)
	}

	app = appState{
		cfg:      cfg,
		registry: registry,
		closeLog: closeLog,
	}

	log.Debug().
		Str("config", cfgFile).
		Int("custom_profiles", len(custom)).
		Str("default_profile", cfg.DefaultProfile).
		Msg("Configuration loaded")

	cmd.SetContext(logger.WithContext(cmd.Context(), log))
	return nil
}

// commandLogger returns the logger stored by loadApp.
func commandLogger(cmd *cobra.Command) zerolog.Logger {
	return logger.FromContext(cmd.Context())
}

// resolveProfile picks the input profile for a file: an explicit name
// first, then the file matching patterns, then the default profile.
func resolveProfile(registry *config.Registry, explicit, filePath, defaultName string) (*config.Profile, error) {
	if explicit != "" {
		return registry.Get(explicit)
	}
	if filePath != "" {
		if p := registry.Match(filePath); p != nil {
			return p, nil
		}
	}
	return registry.Get(defaultName)
}
