// =============================================================================
// Aging Report Converter - Validate Command
// =============================================================================
//
// This file defines the 'validate' command. It checks the configuration and
// the custom profiles, and dry-runs the conversion of any files given.
//
// COMMAND USAGE:
//   agingconv validate [FILE...] [-p profile]
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/ginjaninja78/aging-to-qb-converter/internal/config"
	"github.com/ginjaninja78/aging-to-qb-converter/internal/converter"
	"github.com/ginjaninja78/aging-to-qb-converter/internal/validation"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// validateProfile applies one profile to every file when set.
var validateProfile string

// validateCmd represents the 'validate' command.
var validateCmd = &cobra.Command{
	Use:   "validate [FILE...]",
	Short: "Validate the configuration and check aging reports without writing output",
	Long: `The validate command loads the main configuration and every custom profile,
reporting the first problem found. Each FILE given is then converted in
memory: the command prints the record counts, or every error that would stop
the conversion. Nothing is written.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		custom := 0
		for _, name := range app.registry.Names() {
			if app.registry.IsCustom(name) {
				custom++
			}
		}
		fmt.Fprintf(out, "Configuration OK: %d profile(s), %d custom, default %q\n",
			len(app.registry.Names()), custom, app.cfg.DefaultProfile)

		failed := validateFiles(out, commandLogger(cmd), app.cfg, app.registry, validateProfile, args)
		if failed > 0 {
			return fmt.Errorf("%d of %d file(s) failed validation", failed, len(args))
		}
		return nil
	},
}

// init registers the validate command with the root command.
func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateProfile, "profile", "p", "", "Input profile to apply to every file")
}

// validateFiles converts every file without writing and reports the outcome.
//
// RETURNS:
//   - The number of files that would fail to convert.
func validateFiles(w io.Writer, log zerolog.Logger, cfg *config.MainConfig, registry *config.Registry, profileName string, files []string) int {
	failed := 0

	for _, file := range files {
		name := filepath.Base(file)

		profile, err := resolveProfile(registry, profileName, file, cfg.DefaultProfile)
		if err != nil {
			fmt.Fprintf(w, "  ✗ %s: %v\n", name, err)
			failed++
			continue
		}

		conv, err := converter.New(converter.OptionsFromConfig(cfg, profile), log)
		if err != nil {
			fmt.Fprintf(w, "  ✗ %s: %v\n", name, err)
			failed++
			continue
		}

		result, err := conv.ConvertFile(file)
		if err != nil {
			fmt.Fprintf(w, "  ✗ %s [%s]\n", name, profile.Name)
			fmt.Fprint(w, validation.FormatErrors(err))
			failed++
			continue
		}

		fmt.Fprintf(w, "  ✓ %s [%s]: %s\n", name, result.Profile, describeCounts(result))
		printWarnings(w, result)
	}

	return failed
}
