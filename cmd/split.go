package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/errors"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/report"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/split"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/verify"
)

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Split a file into parts bounded by bytes and lines",
	Long: `Split a delimited text file into parts named <stem>-part<N><ext>.

Every part stays within --max-bytes and --max-lines, header included, and
starts with the source header. A row too large to fit even alone is written
into its own part and reported as oversized.

Examples:
  filesplit split --input-file data.csv --output-dir out --max-bytes 1048576 --max-lines 10000
  filesplit split --input-file data.csv --output-dir out --max-bytes 1048576 --max-lines 10000 --clean --verify
  filesplit split --input-file export.txt --output-dir out --max-bytes 65536 --max-lines 500 --encoding windows-1252`,
	Args: cobra.NoArgs,
	RunE: runSplit,
}

var splitFormat string

func init() {
	rootCmd.AddCommand(splitCmd)

	flags := splitCmd.Flags()
	flags.StringP("input-file", "i", "", "file to split")
	flags.StringP("output-dir", "o", "", "directory receiving the parts (created if missing)")
	addPolicyFlags(flags)
	addEncodingFlags(flags)
	flags.Bool("clean", false, "remove existing parts of the same file before writing")
	flags.Bool("verify", false, "verify the parts after splitting")
	flags.String("report-dir", "", "directory for sanity reports when --verify is set")
	flags.StringVarP(&splitFormat, "format", "f", "text", "summary format ("+report.FormatNames()+")")

	bindKey(flags, "input-file", "split.input_file")
	bindKey(flags, "output-dir", "split.output_dir")
	bindKey(flags, "clean", "split.clean")
	bindKey(flags, "verify", "split.verify")
	bindKey(flags, "report-dir", "verify.report_dir")
	AddFlagValidation(flags, "format", ValidateFormat)
}

func runSplit(cmd *cobra.Command, _ []string) error {
	cfg := appConfig
	ctx := cmd.Context()

	if cfg.Split.InputFile == "" {
		return errors.NewValidationError(errors.ErrCodeConfigInvalid, "--input-file is required")
	}
	if cfg.Split.OutputDir == "" {
		return errors.NewValidationError(errors.ErrCodeConfigInvalid, "--output-dir is required")
	}
	format, err := report.ParseFormat(splitFormat)
	if err != nil {
		return err
	}

	splitter, err := split.New(cfg.Policy(), split.Options{
		NoHeader: cfg.Split.NoHeader,
		Encoding: cfg.Split.Encoding,
		Clean:    cfg.Split.Clean,
	}, appLogger)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Split.OutputDir, 0o755); err != nil {
		return errors.ErrDestUnwritable(cfg.Split.OutputDir, err)
	}

	result, err := splitter.Split(ctx, cfg.Split.InputFile, cfg.Split.OutputDir)
	if err != nil {
		return err
	}
	if err := report.RenderSplit(cmd.OutOrStdout(), result, format); err != nil {
		return err
	}

	if !cfg.Split.Verify {
		return nil
	}
	// A verification right after a split runs every check and prints in the
	// split's format.
	return verifyAndReport(cmd, cfg, cfg.Split.InputFile, format, verify.Options{
		PartsDir:     cfg.Split.OutputDir,
		CheckHeaders: true,
		Recombine:    true,
		NoHeader:     cfg.Split.NoHeader,
		Encoding:     cfg.Split.Encoding,
	})
}
