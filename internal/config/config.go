// =============================================================================
// Aging Report Converter - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing all configuration files.
// It handles both the main application configuration and the optional
// user-defined input profiles.
//
// CONFIGURATION FILES:
//   1. Main Config (config.yaml): Global application settings
//   2. Profile Configs (profiles/*.yaml): Extra input profiles
//
// The main config file is optional. When the default path does not exist,
// built-in defaults are used so that a single "convert" works out of the box.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
// This is loaded from the main config.yaml file.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is where the batch "process" command looks for aging exports.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir is where converted import files are written.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// InputArchiveDir receives processed input files.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir"`

	// OutputArchiveDir receives a copy of every generated file.
	// Default: "./output_archive"
	OutputArchiveDir string `yaml:"output_archive_dir"`

	// ProfilesDir contains user-defined input profiles (*.yaml / *.yml).
	// A missing directory is not an error.
	// Default: "./profiles"
	ProfilesDir string `yaml:"profiles_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogFile, when set, receives a copy of all log output.
	LogFile string `yaml:"log_file"`

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// =========================================================================
	// CONVERSION SETTINGS
	// =========================================================================

	// DefaultProfile is the input profile used when no file pattern matches
	// and no --profile flag is given.
	// Default: "auto"
	DefaultProfile string `yaml:"default_profile"`

	// WriteBOM prefixes every generated file with a UTF-8 byte-order mark,
	// which spreadsheet and accounting tools use to detect the encoding.
	// Default: true
	WriteBOM *bool `yaml:"write_bom"`

	// BillsFileName is the name of the bill import file. Non-split profiles
	// write all records to this file.
	// Default: "converted_for_qb_import.csv"
	BillsFileName string `yaml:"bills_file_name"`

	// CreditsFileName is the name of the vendor credit import file.
	// Default: "vendor_credits_for_qb.csv"
	CreditsFileName string `yaml:"credits_file_name"`

	// Encoding is the default text encoding of CSV inputs.
	// Valid values: "UTF-8", "Windows-1252", "ISO-8859-1"
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`

	// Delimiter is the default field separator of CSV inputs.
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// =========================================================================
	// BATCH PROCESSING SETTINGS
	// =========================================================================

	// DirNameFormat names the per-input output subdirectory in batch mode.
	// Placeholders:
	//   {original}  - Input file name without extension
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {date}      - Current date (YYYYMMDD)
	//   {uuid}      - A random UUID
	// Default: "{original}"
	DirNameFormat string `yaml:"dir_name_format"`

	// MaxConcurrency is the maximum number of files converted at once.
	// Set to 1 for sequential processing.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// ContinueOnError keeps processing the remaining files after a failure.
	// Default: true
	ContinueOnError *bool `yaml:"continue_on_error"`

	// ArchiveOnSuccess moves converted inputs to InputArchiveDir and copies
	// outputs to OutputArchiveDir.
	// Default: true
	ArchiveOnSuccess *bool `yaml:"archive_on_success"`

	// ArchiveByDate files archived copies under YYYY/MM/DD subdirectories.
	// Default: false
	ArchiveByDate bool `yaml:"archive_by_date"`

	// ArchiveRetentionDays removes archived files older than this many days
	// at the start of every batch run. 0 keeps archives forever.
	// Default: 0
	ArchiveRetentionDays int `yaml:"archive_retention_days"`
}

// BOM reports whether generated files carry a byte-order mark.
func (c *MainConfig) BOM() bool {
	return c.WriteBOM == nil || *c.WriteBOM
}

// ShouldContinueOnError reports whether batch processing survives a failed file.
func (c *MainConfig) ShouldContinueOnError() bool {
	return c.ContinueOnError == nil || *c.ContinueOnError
}

// ShouldArchive reports whether processed files are archived.
func (c *MainConfig) ShouldArchive() bool {
	return c.ArchiveOnSuccess == nil || *c.ArchiveOnSuccess
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns a MainConfig with every default applied.
func Default() *MainConfig {
	cfg := &MainConfig{}
	applyMainConfigDefaults(cfg)
	return cfg
}

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file.
//   - required: When false, a missing file yields the defaults instead of an error.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be read, parsed or validated.
func LoadMainConfig(configPath string, required bool) (*MainConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config MainConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}
	if config.OutputArchiveDir == "" {
		config.OutputArchiveDir = "./output_archive"
	}
	if config.ProfilesDir == "" {
		config.ProfilesDir = "./profiles"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.DefaultProfile == "" {
		config.DefaultProfile = ProfileAuto
	}
	if config.BillsFileName == "" {
		config.BillsFileName = "converted_for_qb_import.csv"
	}
	if config.CreditsFileName == "" {
		config.CreditsFileName = "vendor_credits_for_qb.csv"
	}
	if config.Encoding == "" {
		config.Encoding = EncodingUTF8
	}
	if config.Delimiter == "" {
		config.Delimiter = ","
	}
	if config.DirNameFormat == "" {
		config.DirNameFormat = "{original}"
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 4
	}
}

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	switch strings.ToLower(config.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log_level %q", config.LogLevel)
	}

	if _, err := NormalizeEncoding(config.Encoding); err != nil {
		return err
	}

	if config.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1, got %d", config.MaxConcurrency)
	}

	if config.ArchiveRetentionDays < 0 {
		return fmt.Errorf("archive_retention_days must not be negative, got %d", config.ArchiveRetentionDays)
	}

	if config.BillsFileName == config.CreditsFileName {
		return fmt.Errorf("bills_file_name and credits_file_name must differ (both %q)", config.BillsFileName)
	}

	return nil
}

// =============================================================================
// ENCODINGS
// =============================================================================

// Supported input encodings.
const (
	EncodingUTF8        = "UTF-8"
	EncodingWindows1252 = "Windows-1252"
	EncodingISO88591    = "ISO-8859-1"
)

// NormalizeEncoding maps the accepted spellings of an encoding name to its
// canonical form.
func NormalizeEncoding(name string) (string, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", "utf-8", "utf8":
		return EncodingUTF8, nil
	case "windows-1252", "cp1252":
		return EncodingWindows1252, nil
	case "iso-8859-1", "latin1", "latin-1":
		return EncodingISO88591, nil
	default:
		return "", fmt.Errorf("unsupported encoding %q", name)
	}
}

// =============================================================================
// PROFILE LOADING
// =============================================================================

// LoadProfiles loads all user-defined profiles from a directory.
//
// PARAMETERS:
//   - profilesDir: The directory containing profile files.
//
// RETURNS:
//   - A map of profiles keyed by profile name. Empty if the directory is missing.
//   - An error if any file cannot be parsed or describes an invalid profile.
func LoadProfiles(profilesDir string) (map[string]*Profile, error) {
	profiles := make(map[string]*Profile)

	if _, err := os.Stat(profilesDir); errors.Is(err, os.ErrNotExist) {
		return profiles, nil
	}

	files, err := filepath.Glob(filepath.Join(profilesDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}

	// Also check for .yml extension.
	ymlFiles, err := filepath.Glob(filepath.Join(profilesDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}
	files = append(files, ymlFiles...)

	for _, file := range files {
		profile, err := loadProfile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}

		// If no name is specified, use the file name.
		if profile.Name == "" {
			profile.Name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		}

		if _, dup := profiles[profile.Name]; dup {
			return nil, fmt.Errorf("duplicate profile name %q in %s", profile.Name, file)
		}

		if err := profile.Validate(); err != nil {
			return nil, fmt.Errorf("invalid profile in %s: %w", file, err)
		}

		profiles[profile.Name] = profile
	}

	return profiles, nil
}

// loadProfile loads a single profile file.
func loadProfile(filePath string) (*Profile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}

	applyProfileDefaults(&profile)

	return &profile, nil
}
