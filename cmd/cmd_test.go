package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/config"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/errors"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/report"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/split"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/testutils"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/types"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/version"
)

// resetFlags puts every flag of cmd and its children back to its default so
// that executions within one test binary do not leak into each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		value := f.Value
		if v, ok := value.(*validatingValue); ok {
			value = v.Value
		}
		_ = value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

func executeContext(ctx context.Context, t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	viper.Reset()
	t.Cleanup(viper.Reset)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := executeContext(context.Background(), t, args...)
	return stdout, err
}

func writeSample(t *testing.T, rows int) string {
	t.Helper()
	return testutils.WriteSource(t, t.TempDir(), "data.csv", testutils.CSV("id,name", rows)...)
}

func TestSplitCommand(t *testing.T) {
	src := writeSample(t, 10)
	out := filepath.Join(t.TempDir(), "out")

	stdout, err := executeCommand(t, "split",
		"--input-file", src,
		"--output-dir", out,
		"--max-bytes", "1000",
		"--max-lines", "4",
	)
	require.NoError(t, err)

	assert.Len(t, testutils.PartPaths(t, out, src), 4)
	assert.Contains(t, stdout, "4 parts written")
	assert.Equal(t, testutils.CSV("id,name", 10)[1:], testutils.DataRows(testutils.ReadParts(t, out, src)))
}

func TestSplitCommandJSON(t *testing.T) {
	src := writeSample(t, 10)
	out := t.TempDir()

	stdout, err := executeCommand(t, "split", "-i", src, "-o", out,
		"--max-bytes", "1000", "--max-lines", "4", "--format", "json")
	require.NoError(t, err)

	var result split.Result
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Len(t, result.Parts, 4)
	assert.EqualValues(t, 10, result.DataRows)
	assert.EqualValues(t, 11, result.SourceLines)
	assert.True(t, result.Header)
}

func TestSplitCommandRequiresInput(t *testing.T) {
	_, err := executeCommand(t, "split", "--output-dir", t.TempDir(), "--max-bytes", "10", "--max-lines", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--input-file is required")
}

func TestSplitCommandRejectsNonPositiveBounds(t *testing.T) {
	src := writeSample(t, 3)
	_, err := executeCommand(t, "split", "-i", src, "-o", t.TempDir(), "--max-bytes", "0", "--max-lines", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a positive integer")
}

func TestSplitCommandMissingPolicy(t *testing.T) {
	src := writeSample(t, 3)
	_, err := executeCommand(t, "split", "-i", src, "-o", t.TempDir(), "--max-lines", "2")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidPolicy, errors.CodeOf(err))
}

func TestSplitCommandWithVerify(t *testing.T) {
	src := writeSample(t, 25)
	out := t.TempDir()
	reports := t.TempDir()

	stdout, err := executeCommand(t, "split", "-i", src, "-o", out,
		"--max-bytes", "80", "--max-lines", "6",
		"--verify", "--report-dir", reports)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Overall: PASSED")
	assert.FileExists(t, filepath.Join(reports, report.JSONReportName))
	assert.FileExists(t, filepath.Join(reports, report.TextReportName))
}

func TestSplitCommandWithVerifyUsesSplitFormat(t *testing.T) {
	src := writeSample(t, 9)

	stdout, err := executeCommand(t, "split", "-i", src, "-o", t.TempDir(),
		"--max-bytes", "1000", "--max-lines", "4",
		"--verify", "--report-dir", t.TempDir(), "--format", "json")
	require.NoError(t, err)

	dec := json.NewDecoder(strings.NewReader(stdout))
	var splitDoc split.Result
	require.NoError(t, dec.Decode(&splitDoc))
	assert.Len(t, splitDoc.Parts, 3)

	var verifyDoc map[string]interface{}
	require.NoError(t, dec.Decode(&verifyDoc))
	assert.Equal(t, true, verifyDoc["passed"])
	assert.False(t, dec.More())
}

func TestVerifyCommand(t *testing.T) {
	src := writeSample(t, 12)
	out := t.TempDir()
	_, err := executeCommand(t, "split", "-i", src, "-o", out, "--max-bytes", "1000", "--max-lines", "5")
	require.NoError(t, err)

	t.Run("passes on an untouched split", func(t *testing.T) {
		reports := t.TempDir()
		stdout, err := executeCommand(t, "verify",
			"--original-file", src, "--parts-dir", out,
			"--max-bytes", "1000", "--max-lines", "5",
			"--check-headers", "--recombine", "--write-recombined",
			"--report-dir", reports)
		require.NoError(t, err)
		assert.Contains(t, stdout, "Overall: PASSED")
		assert.FileExists(t, filepath.Join(reports, "recombined.csv"))

		recombined, err := os.ReadFile(filepath.Join(reports, "recombined.csv"))
		require.NoError(t, err)
		original, err := os.ReadFile(src)
		require.NoError(t, err)
		assert.Equal(t, original, recombined)
	})

	t.Run("fails when a row goes missing", func(t *testing.T) {
		parts := testutils.PartPaths(t, out, src)
		require.Len(t, parts, 3)
		testutils.RewriteFile(t, parts[1], func(lines []string) []string { return lines[:len(lines)-1] })

		stdout, err := executeCommand(t, "verify",
			"--original-file", src, "--parts-dir", out,
			"--max-bytes", "1000", "--max-lines", "5",
			"--recombine", "--format", "json", "--report-dir", t.TempDir())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrVerificationFailed))

		var doc map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
		assert.Equal(t, false, doc["passed"])
	})
}

func TestVerifyCommandNoParts(t *testing.T) {
	src := writeSample(t, 3)
	_, err := executeCommand(t, "verify",
		"--original-file", src, "--parts-dir", t.TempDir(),
		"--max-bytes", "100", "--max-lines", "5", "--report-dir", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoParts, errors.CodeOf(err))
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	src := writeSample(t, 9)
	out := t.TempDir()
	t.Setenv("FILESPLIT_SPLIT_MAX_BYTES", "1000")
	t.Setenv("FILESPLIT_SPLIT_MAX_LINES", "4")

	_, err := executeCommand(t, "split", "-i", src, "-o", out)
	require.NoError(t, err)
	assert.Len(t, testutils.PartPaths(t, out, src), 3)
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	src := writeSample(t, 9)
	out := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "filesplit.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("split:\n  max_bytes: 1000\n  max_lines: 4\n"), 0o644))

	_, err := executeCommand(t, "--config", cfgPath, "split", "-i", src, "-o", out)
	require.NoError(t, err)
	assert.Len(t, testutils.PartPaths(t, out, src), 3)

	out = t.TempDir()
	_, err = executeCommand(t, "--config", cfgPath, "split", "-i", src, "-o", out, "--max-lines", "10")
	require.NoError(t, err)
	assert.Len(t, testutils.PartPaths(t, out, src), 1)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := executeCommand(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestInvalidConfigFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "filesplit.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("split:\n  max_bytes: -5\n"), 0o644))

	_, err := executeCommand(t, "--config", cfgPath, "config", "validate")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))
}

func TestConfigShow(t *testing.T) {
	stdout, err := executeCommand(t, "config", "show", "--format", "json")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(stdout), &cfg))
	assert.Equal(t, "sanity_checks", cfg.Verify.ReportDir)
	assert.Equal(t, "*.csv", cfg.Watch.Pattern)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)

	stdout, err = executeCommand(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "report_dir: sanity_checks")
}

func TestConfigValidateAndKeys(t *testing.T) {
	stdout, err := executeCommand(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, stdout, "is valid")

	stdout, err = executeCommand(t, "config", "keys")
	require.NoError(t, err)
	assert.Contains(t, stdout, "split.max_bytes")
	assert.Contains(t, stdout, "FILESPLIT_SPLIT_MAX_BYTES")
	assert.Contains(t, stdout, "FILESPLIT_WATCH_DEBOUNCE")
}

func TestVersionCommand(t *testing.T) {
	stdout, err := executeCommand(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Get().Short()+"\n", stdout)

	stdout, err = executeCommand(t, "version", "--format", "json")
	require.NoError(t, err)
	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, version.Get().GoVersion, info.GoVersion)

	_, err = executeCommand(t, "version", "--format", "xml")
	require.Error(t, err)
}

func TestWatchCommandSplitsExistingFiles(t *testing.T) {
	inbox := t.TempDir()
	out := t.TempDir()
	src := testutils.WriteSource(t, inbox, "orders.csv", testutils.CSV("id,name", 7)...)
	testutils.WriteSource(t, inbox, ".hidden.csv", testutils.CSV("id,name", 7)...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, _, err := executeContext(ctx, t, "watch",
			"--inbox", inbox, "--output-dir", out,
			"--max-bytes", "1000", "--max-lines", "3",
			"--debounce", "20ms")
		done <- err
	}()

	partsDir := filepath.Join(out, "orders")
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(partsDir, types.PartName(src, 3)))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}

	assert.Len(t, testutils.PartPaths(t, partsDir, src), 4)
	assert.NoDirExists(t, filepath.Join(out, ".hidden"))
}

func TestWatchCommandRequiresInbox(t *testing.T) {
	_, err := executeCommand(t, "watch", "--output-dir", t.TempDir(), "--max-bytes", "10", "--max-lines", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--inbox is required")
}
