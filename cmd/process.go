// =============================================================================
// Aging Report Converter - Process Command
// =============================================================================
//
// This file defines the 'process' command, which converts every aging report
// in the input directory. It orchestrates the batch pipeline.
//
// COMMAND USAGE:
//   agingconv process [flags]
//
// FLAGS:
//   --dry-run : Convert and report without writing, archiving or logging
//   --profile : Apply one input profile to every file
//
// PROCESSING PIPELINE:
//   1. Discover CSV and XLSX files in the input directory
//   2. Pick an input profile for each file and name its output subdirectory
//   3. For each file (concurrently, at most max_concurrency at a time):
//      a. Convert the report
//      b. Write the import file(s) to output_dir/<dir_name_format>/
//      c. Archive the input and a copy of the outputs
//   4. Write the error log and the processing summary
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/ginjaninja78/aging-to-qb-converter/internal/config"
	"github.com/ginjaninja78/aging-to-qb-converter/internal/converter"
	"github.com/ginjaninja78/aging-to-qb-converter/internal/csvwriter"
	"github.com/ginjaninja78/aging-to-qb-converter/internal/logger"
	"github.com/ginjaninja78/aging-to-qb-converter/internal/report"
	"github.com/ginjaninja78/aging-to-qb-converter/internal/validation"
	"github.com/ginjaninja78/aging-to-qb-converter/pkg/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// processDryRun simulates processing without writing output files.
var processDryRun bool

// processProfile applies one profile to every file when set.
var processProfile string

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

// processCmd represents the 'process' command.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Convert every aging report in the input directory",
	Long: `The process command scans the input directory for CSV and XLSX files, picks
an input profile for each one (--profile, then the file matching patterns of
the custom profiles, then default_profile), and converts them.

Files are converted concurrently. Each file gets its own subdirectory of the
output directory, named by dir_name_format.

On successful processing:
  - The import files are placed in the output subdirectory
  - The original report is moved to the input archive
  - A copy of the import files is placed in the output archive

On error:
  - The error is added to the error log in the output directory
  - The original report remains in the input directory
  - Processing continues for other files unless continue_on_error is false`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd)
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// init registers the process command with the root command and sets up flags.
func init() {
	rootCmd.AddCommand(processCmd)

	// --dry-run flag: Simulate processing without writing output files.
	processCmd.Flags().BoolVar(
		&processDryRun,
		"dry-run",
		false,
		"Convert without writing output files, archiving or logs",
	)

	// --profile flag: Use one profile for every file.
	processCmd.Flags().StringVar(
		&processProfile,
		"profile",
		"",
		"Input profile to apply to every file",
	)
}

// =============================================================================
// BATCH PROCESSOR
// =============================================================================

// batchJob is one input file with its resolved profile and output subdirectory.
type batchJob struct {
	inputFile string
	profile   *config.Profile
	subDir    string
	err       error
}

// fileOutcome is the result of processing one input file.
type fileOutcome struct {
	inputFile   string
	profile     string
	result      *report.Result
	outputs     []string
	archivePath string
	err         error
	skipped     bool
	duration    time.Duration
}

// batchProcessor converts a set of files with shared settings.
type batchProcessor struct {
	cfg      *config.MainConfig
	registry *config.Registry
	fm       *utils.FileManager
	profile  string
	dryRun   bool
	logger   zerolog.Logger
}

// plan resolves the profile and output subdirectory of every file.
// Subdirectory names are made unique within the run.
func (b *batchProcessor) plan(files []string) []batchJob {
	jobs := make([]batchJob, len(files))
	used := make(map[string]int)

	for i, file := range files {
		jobs[i].inputFile = file

		profile, err := resolveProfile(b.registry, b.profile, file, b.cfg.DefaultProfile)
		if err != nil {
			jobs[i].err = err
			continue
		}
		jobs[i].profile = profile

		name := utils.GenerateOutputDirName(b.cfg.DirNameFormat, map[string]string{
			"original": utils.OriginalName(file),
			"profile":  profile.Name,
		})
		used[name]++
		if n := used[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		jobs[i].subDir = name
	}

	return jobs
}

// run processes the jobs concurrently and returns one outcome per job, in
// job order. When continue_on_error is off, jobs not yet started after a
// failure are marked skipped.
func (b *batchProcessor) run(ctx context.Context, jobs []batchJob) []fileOutcome {
	outcomes := make([]fileOutcome, len(jobs))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The semaphore bounds the number of files converted at once.
	sem := make(chan struct{}, b.cfg.MaxConcurrency)
	var wg sync.WaitGroup

	for i, job := range jobs {
		if ctx.Err() != nil {
			outcomes[i] = fileOutcome{inputFile: job.inputFile, skipped: true}
			continue
		}

		sem <- struct{}{}
		if ctx.Err() != nil {
			<-sem
			outcomes[i] = fileOutcome{inputFile: job.inputFile, skipped: true}
			continue
		}

		wg.Add(1)
		go func(i int, job batchJob) {
			defer wg.Done()
			defer func() { <-sem }()

			outcomes[i] = b.processFile(job)
			if outcomes[i].err != nil && !b.cfg.ShouldContinueOnError() {
				cancel()
			}
		}(i, job)
	}

	wg.Wait()
	return outcomes
}

// processFile converts, writes and archives one file.
func (b *batchProcessor) processFile(job batchJob) fileOutcome {
	start := time.Now()
	outcome := fileOutcome{inputFile: job.inputFile}

	if job.err != nil {
		outcome.err = job.err
		outcome.duration = time.Since(start)
		return outcome
	}

	log := logger.WithFields(b.logger, map[string]interface{}{
		"file":   filepath.Base(job.inputFile),
		"subdir": job.subDir,
	})
	outcome.profile = job.profile.Name

	conv, err := converter.New(converter.OptionsFromConfig(b.cfg, job.profile), log)
	if err != nil {
		outcome.err = err
		outcome.duration = time.Since(start)
		return outcome
	}

	result, err := conv.ConvertFile(job.inputFile)
	if err != nil {
		log.Error().Err(err).Msg("Conversion failed")
		outcome.err = err
		outcome.duration = time.Since(start)
		return outcome
	}
	outcome.result = result
	outcome.profile = result.Profile

	if b.dryRun {
		outcome.duration = time.Since(start)
		return outcome
	}

	outputDir := filepath.Join(b.cfg.OutputDir, job.subDir)
	paths, err := csvwriter.WriteFiles(outputDir, result, csvwriter.Options{WriteBOM: b.cfg.BOM()})
	outcome.outputs = paths
	if err != nil {
		outcome.err = err
		outcome.duration = time.Since(start)
		return outcome
	}

	removed, err := csvwriter.RemoveStale(outputDir, result)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to remove stale import file")
	}
	for _, path := range removed {
		log.Info().Str("path", path).Msg("Removed import file left by an earlier run")
	}

	// Archive failures are logged but do not fail the file.
	for _, path := range paths {
		if _, err := b.fm.ArchiveOutputFile(path, job.subDir); err != nil {
			log.Warn().Err(err).Str("output", path).Msg("Failed to archive output file")
		}
	}

	archived, err := b.fm.ArchiveInputFile(job.inputFile)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to archive input file")
	} else if archived != job.inputFile {
		outcome.archivePath = archived
	}

	log.Info().
		Str("profile", result.Profile).
		Int("records", result.Stats.RecordsProduced).
		Msg("File processed")

	outcome.duration = time.Since(start)
	return outcome
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runProcess is the main function that orchestrates the batch pipeline.
func runProcess(cmd *cobra.Command) error {
	startTime := time.Now()
	runID := uuid.New().String()
	cfg := app.cfg
	out := cmd.OutOrStdout()

	log := logger.WithFields(commandLogger(cmd), map[string]interface{}{
		"run_id":  runID,
		"command": "process",
	})

	fmt.Fprintln(out, "=== Aging Report Converter ===")

	// =========================================================================
	// STEP 1: PREPARE DIRECTORIES
	// =========================================================================

	fm := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.OutputArchiveDir)
	fm.ArchiveOnSuccess = cfg.ShouldArchive() && !processDryRun
	fm.UseTimestampSubdirs = cfg.ArchiveByDate

	if err := fm.EnsureDirectories(); err != nil {
		return err
	}

	if cfg.ArchiveRetentionDays > 0 && !processDryRun {
		maxAge := time.Duration(cfg.ArchiveRetentionDays) * 24 * time.Hour
		for _, dir := range []string{cfg.InputArchiveDir, cfg.OutputArchiveDir} {
			removed, err := utils.CleanOldArchives(dir, maxAge)
			if err != nil {
				log.Warn().Err(err).Str("dir", dir).Msg("Failed to clean archive")
				continue
			}
			if removed > 0 {
				log.Info().Int("removed", removed).Str("dir", dir).Msg("Removed old archived files")
			}
		}
	}

	// =========================================================================
	// STEP 2: DISCOVER INPUT FILES
	// =========================================================================

	inputFiles, err := fm.DiscoverInputFiles(utils.InputExtensions)
	if err != nil {
		return fmt.Errorf("failed to discover input files: %w", err)
	}

	if len(inputFiles) == 0 {
		fmt.Fprintln(out, "No aging reports found in the input directory.")
		return nil
	}

	fmt.Fprintf(out, "Found %d file(s) to process\n", len(inputFiles))
	log.Info().Int("files", len(inputFiles)).Bool("dry_run", processDryRun).Msg("Starting batch")

	// =========================================================================
	// STEP 3: PROCESS FILES CONCURRENTLY
	// =========================================================================

	batch := &batchProcessor{
		cfg:      cfg,
		registry: app.registry,
		fm:       fm,
		profile:  processProfile,
		dryRun:   processDryRun,
		logger:   log,
	}

	outcomes := batch.run(cmd.Context(), batch.plan(inputFiles))

	// =========================================================================
	// STEP 4: REPORT
	// =========================================================================

	summary, entries := summarize(runID, startTime, outcomes)
	printOutcomes(out, outcomes)

	elapsed := time.Since(startTime)
	fmt.Fprintln(out, "\n=== Processing Complete ===")
	fmt.Fprintf(out, "Total files:     %d\n", summary.TotalFiles)
	fmt.Fprintf(out, "Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Fprintf(out, "Errors:          %d\n", summary.FailedFiles)
	fmt.Fprintf(out, "Bills:           %d\n", summary.TotalBills)
	fmt.Fprintf(out, "Vendor credits:  %d\n", summary.TotalCredits)
	fmt.Fprintf(out, "Time elapsed:    %s\n", elapsed)

	if !processDryRun {
		logPath, err := utils.WriteErrorLog(entries, cfg.OutputDir)
		if err != nil {
			log.Error().Err(err).Msg("Failed to write error log")
		} else if logPath != "" {
			fmt.Fprintf(out, "\nErrors have been logged to %s\n", logPath)
		}

		summaryPath, err := utils.WriteSummaryLog(summary, cfg.OutputDir)
		if err != nil {
			log.Error().Err(err).Msg("Failed to write processing summary")
		} else {
			log.Info().Str("summary", summaryPath).Msg("Processing summary written")
		}
	}

	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d of %d file(s) failed", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// summarize builds the processing summary and the error log entries.
func summarize(runID string, startTime time.Time, outcomes []fileOutcome) (utils.ProcessingSummary, []utils.ErrorLogEntry) {
	summary := utils.ProcessingSummary{
		RunID:      runID,
		StartTime:  startTime,
		EndTime:    time.Now(),
		TotalFiles: len(outcomes),
	}
	var entries []utils.ErrorLogEntry

	for _, o := range outcomes {
		switch {
		case o.skipped:
			summary.FailedFiles++
			summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
				InputFile:    o.inputFile,
				ErrorType:    "skipped",
				ErrorMessage: "not processed after an earlier failure",
			})

		case o.err != nil:
			summary.FailedFiles++
			summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
				InputFile:    o.inputFile,
				ErrorType:    errorType(o.err),
				ErrorMessage: o.err.Error(),
			})
			entries = append(entries, errorEntries(o.inputFile, o.err)...)

		default:
			bills, credits, records := countSets(o.result)
			warnings := make([]string, 0, len(o.result.Warnings))
			for _, w := range o.result.Warnings {
				warnings = append(warnings, w.Message)
			}

			summary.SuccessfulFiles++
			summary.TotalRows += o.result.Stats.RowsRead
			summary.TotalBills += bills
			summary.TotalCredits += credits
			summary.TotalRecords += records
			summary.Warnings += len(warnings)
			summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
				InputFile:   o.inputFile,
				Profile:     o.profile,
				OutputFiles: o.outputs,
				ArchivePath: o.archivePath,
				Rows:        o.result.Stats.RowsRead,
				Bills:       bills,
				Credits:     credits,
				Records:     records,
				Warnings:    warnings,
				ProcessTime: o.duration,
			})
		}
	}

	return summary, entries
}

// printOutcomes prints one line per file.
func printOutcomes(w io.Writer, outcomes []fileOutcome) {
	for _, o := range outcomes {
		name := filepath.Base(o.inputFile)
		switch {
		case o.skipped:
			fmt.Fprintf(w, "  - %s: skipped\n", name)
		case o.err != nil:
			fmt.Fprintf(w, "  ✗ %s: %v\n", name, o.err)
		default:
			fmt.Fprintf(w, "  ✓ %s [%s]: %s\n", name, o.profile, describeCounts(o.result))
			for _, path := range o.outputs {
				fmt.Fprintf(w, "      -> %s\n", path)
			}
		}
	}
}

// errorType classifies a conversion error for the logs.
func errorType(err error) string {
	var schemaErr *validation.SchemaError
	var numErr *validation.NumericParseError
	var valErr *validation.ValidationError

	switch {
	case errors.As(err, &schemaErr):
		return "schema"
	case errors.As(err, &numErr):
		return "numeric_parse"
	case errors.As(err, &valErr):
		return "validation"
	default:
		return "conversion"
	}
}

// errorEntries turns a conversion error into error log entries, one per
// failed row when the error carries row errors.
func errorEntries(inputFile string, err error) []utils.ErrorLogEntry {
	now := time.Now()
	fileName := filepath.Base(inputFile)

	var entries []utils.ErrorLogEntry
	for _, e := range validation.Unjoin(err) {
		entry := utils.ErrorLogEntry{
			Timestamp:    now,
			FileName:     fileName,
			ErrorType:    errorType(e),
			ErrorMessage: e.Error(),
		}

		var numErr *validation.NumericParseError
		var valErr *validation.ValidationError
		switch {
		case errors.As(e, &numErr):
			entry.RowNumber = numErr.Line
			entry.FieldName = numErr.Column
			entry.FieldValue = numErr.Value
		case errors.As(e, &valErr):
			entry.RowNumber = valErr.Line
			entry.FieldName = valErr.Field
			entry.FieldValue = valErr.Value
		}

		entries = append(entries, entry)
	}

	return entries
}
