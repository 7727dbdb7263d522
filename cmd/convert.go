// =============================================================================
// Aging Report Converter - Convert Command
// =============================================================================
//
// This file defines the 'convert' command, which converts a single vendor
// aging report into bill import files.
//
// COMMAND USAGE:
//   agingconv convert FILE [flags]
//
// FLAGS:
//   -p, --profile : Input profile to apply (default: file pattern match, then default_profile)
//   -o, --output  : Output directory (default: output_dir from the configuration)
//   --no-bom      : Write the files without a UTF-8 byte-order mark
//   --split       : Force separate bill and vendor credit files
//   --no-split    : Force a single import file
//   --sheet       : Worksheet to read from an XLSX input
//   --preview     : Print the converted records before writing
//   --dry-run     : Convert and report without writing output files
//
// FILE may be "-" to read a CSV or XLSX report from standard input.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/ginjaninja78/aging-to-qb-converter/internal/converter"
	"github.com/ginjaninja78/aging-to-qb-converter/internal/csvwriter"
	"github.com/ginjaninja78/aging-to-qb-converter/internal/report"
	"github.com/ginjaninja78/aging-to-qb-converter/internal/validation"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// convertFlags holds the flags of the convert command.
type convertFlags struct {
	profile   string
	outputDir string
	noBOM     bool
	split     bool
	noSplit   bool
	sheet     string
	preview   bool
	dryRun    bool
}

var convertOpts convertFlags

// stdinName is the FILE argument that reads from standard input.
const stdinName = "-"

// =============================================================================
// CONVERT COMMAND DEFINITION
// =============================================================================

// convertCmd represents the 'convert' command.
var convertCmd = &cobra.Command{
	Use:   "convert FILE",
	Short: "Convert one aging report into bill import files",
	Long: `The convert command reads one vendor aging report (CSV or XLSX), applies an
input profile, and writes the import file(s).

Profiles that split credits write positive balances to the bill import file
and negative balances to the vendor credit file. A file is not written when
its record set is empty; a warning is printed instead.

If any row has an unparseable amount or no vendor, nothing is written and
every bad row is listed.`,

	Args: cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd, args[0])
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// init registers the convert command with the root command and sets up flags.
func init() {
	rootCmd.AddCommand(convertCmd)

	flags := convertCmd.Flags()
	flags.StringVarP(&convertOpts.profile, "profile", "p", "", "Input profile to apply (see 'agingconv profiles')")
	flags.StringVarP(&convertOpts.outputDir, "output", "o", "", "Output directory (default: output_dir from the configuration)")
	flags.BoolVar(&convertOpts.noBOM, "no-bom", false, "Write the files without a UTF-8 byte-order mark")
	flags.BoolVar(&convertOpts.split, "split", false, "Write bills and vendor credits to separate files")
	flags.BoolVar(&convertOpts.noSplit, "no-split", false, "Write all records to a single file")
	flags.StringVar(&convertOpts.sheet, "sheet", "", "Worksheet to read from an XLSX input")
	flags.BoolVar(&convertOpts.preview, "preview", false, "Print the converted records")
	flags.BoolVar(&convertOpts.dryRun, "dry-run", false, "Convert without writing output files")

	convertCmd.MarkFlagsMutuallyExclusive("split", "no-split")
}

// =============================================================================
// MAIN CONVERSION FUNCTION
// =============================================================================

// runConvert converts one file and writes its import files.
func runConvert(cmd *cobra.Command, input string) error {
	runID := uuid.New().String()
	log := commandLogger(cmd).With().Str("run_id", runID).Logger()
	out := cmd.OutOrStdout()

	matchPath := input
	if input == stdinName {
		matchPath = ""
	}

	profile, err := resolveProfile(app.registry, convertOpts.profile, matchPath, app.cfg.DefaultProfile)
	if err != nil {
		return err
	}

	opts := converter.OptionsFromConfig(app.cfg, profile)
	opts.Sheet = convertOpts.sheet
	if convertOpts.split || convertOpts.noSplit {
		split := convertOpts.split
		opts.Split = &split
	}

	conv, err := converter.New(opts, log)
	if err != nil {
		return err
	}

	result, err := convertInput(conv, input, cmd.InOrStdin())
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), validation.FormatErrors(err))
		return fmt.Errorf("conversion of %s failed", displayName(input))
	}

	printWarnings(out, result)

	if convertOpts.preview {
		printPreview(out, result, previewRows)
	}

	if convertOpts.dryRun {
		fmt.Fprintf(out, "Dry run: %s would be written (profile %s)\n", describeCounts(result), result.Profile)
		return nil
	}

	outputDir := convertOpts.outputDir
	if outputDir == "" {
		outputDir = app.cfg.OutputDir
	}

	paths, err := csvwriter.WriteFiles(outputDir, result, csvwriter.Options{
		WriteBOM: app.cfg.BOM() && !convertOpts.noBOM,
	})
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	removed, err := csvwriter.RemoveStale(outputDir, result)
	if err != nil {
		return err
	}
	for _, path := range removed {
		fmt.Fprintf(out, "Removed %s left by an earlier run\n", path)
	}

	log.Info().
		Str("file", displayName(input)).
		Str("profile", result.Profile).
		Int("records", result.Stats.RecordsProduced).
		Strs("outputs", paths).
		Msg("Conversion complete")

	fmt.Fprintf(out, "✓ Conversion successful: %s (profile %s)\n", describeCounts(result), result.Profile)
	for _, path := range paths {
		fmt.Fprintf(out, "  -> %s\n", path)
	}

	return nil
}

// convertInput converts a file, or standard input for "-".
func convertInput(conv *converter.Converter, input string, stdin io.Reader) (*report.Result, error) {
	if input == stdinName {
		return conv.ConvertReader(stdin)
	}

	if _, err := os.Stat(input); err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return conv.ConvertFile(input)
}

// displayName names the input in messages.
func displayName(input string) string {
	if input == stdinName {
		return "standard input"
	}
	return input
}
