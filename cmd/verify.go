package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/config"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/errors"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/report"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/types"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the parts of a split against the original",
	Long: `Verify that the parts of a split honor the policy and hold the original.

Checks:
  bounds     every part within --max-bytes and --max-lines (always)
  headers    every part starts with the original header (--check-headers)
  reconcile  1 + sum(part lines - 1) equals the original line count (--recombine)

--write-recombined also writes the recombined file into the report directory
and compares its content with the original. The command exits non-zero when
any requested check fails or no parts are found.

Examples:
  filesplit verify --original-file data.csv --parts-dir out --max-bytes 1048576 --max-lines 10000
  filesplit verify --original-file data.csv --parts-dir out --max-bytes 1048576 --max-lines 10000 --check-headers --recombine
  filesplit verify --original-file data.csv --parts-dir out --max-bytes 1048576 --max-lines 10000 --format json`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	flags := verifyCmd.Flags()
	flags.String("original-file", "", "the file that was split")
	flags.String("parts-dir", "", "directory holding the parts (default: the original's directory)")
	flags.String("pattern", "", "glob matching the parts (default <stem>-part*<ext>)")
	addPolicyFlags(flags)
	addEncodingFlags(flags)
	flags.Bool("check-headers", false, "check that every part starts with the original header")
	flags.Bool("recombine", false, "reconcile the original line count with the parts")
	flags.Bool("write-recombined", false, "write the recombined file to the report directory and compare content")
	flags.String("report-dir", "", "directory for sanity_report.json and sanity_report.txt (default sanity_checks)")
	flags.String("format", "", "output format ("+report.FormatNames()+")")

	bindKey(flags, "original-file", "verify.original_file")
	bindKey(flags, "parts-dir", "verify.parts_dir")
	bindKey(flags, "pattern", "verify.pattern")
	bindKey(flags, "check-headers", "verify.check_headers")
	bindKey(flags, "recombine", "verify.recombine")
	bindKey(flags, "write-recombined", "verify.write_recombined")
	bindKey(flags, "report-dir", "verify.report_dir")
	bindKey(flags, "format", "verify.format")
	AddFlagValidation(flags, "format", ValidateFormat)
}

func runVerify(cmd *cobra.Command, _ []string) error {
	cfg := appConfig
	if cfg.Verify.OriginalFile == "" {
		return errors.NewValidationError(errors.ErrCodeConfigInvalid, "--original-file is required")
	}

	format, err := report.ParseFormat(cfg.Verify.Format)
	if err != nil {
		return err
	}

	return verifyAndReport(cmd, cfg, cfg.Verify.OriginalFile, format, verify.Options{
		PartsDir:     cfg.Verify.PartsDir,
		Pattern:      cfg.Verify.Pattern,
		CheckHeaders: cfg.Verify.CheckHeaders,
		Recombine:    cfg.Verify.Recombine,
		NoHeader:     cfg.Split.NoHeader,
		Encoding:     cfg.Split.Encoding,
	})
}

// verifyAndReport runs the verifier, prints the result in format, writes the
// report files and turns a failed verdict into errors.ErrVerificationFailed.
func verifyAndReport(cmd *cobra.Command, cfg *config.Config, original string, format report.Format, opts verify.Options) error {
	reportDir := cfg.Verify.ReportDir
	if cfg.Verify.WriteRecombined && reportDir != "" {
		_, ext := types.StemAndExt(original)
		opts.RecombinedPath = filepath.Join(reportDir, "recombined"+ext)
	}

	verifier, err := verify.New(cfg.Policy(), opts, appLogger)
	if err != nil {
		return err
	}

	result, err := verifier.Verify(cmd.Context(), original)
	if err != nil {
		return err
	}

	if err := report.Render(cmd.OutOrStdout(), result, format); err != nil {
		return err
	}

	if reportDir != "" {
		paths, err := report.Write(reportDir, result)
		if err != nil {
			return err
		}
		appLogger.Info(cmd.Context(), "Sanity reports written", "paths", paths)
	}

	if !result.Passed {
		return errors.ErrVerificationFailed.WithContext("run_id", result.RunID)
	}
	return nil
}

// verdictLine summarizes a result in one line for the watch log.
func verdictLine(result *verify.SanityResult) string {
	status := "passed"
	if !result.Passed {
		status = "failed"
	}
	return fmt.Sprintf("%s: %d parts, verification %s", filepath.Base(result.OriginalFile), result.TotalParts, status)
}
