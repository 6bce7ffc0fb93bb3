package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/logging"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/report"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/textenc"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		writeIssues(&builder, vr.Errors)
	}
	if len(vr.Warnings) > 0 {
		if len(vr.Errors) > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString("Validation warnings:\n")
		writeIssues(&builder, vr.Warnings)
	}
	return builder.String()
}

func writeIssues(b *strings.Builder, issues []ValidationError) {
	for _, issue := range issues {
		fmt.Fprintf(b, "  - %s: %s\n", issue.Field, issue.Message)
		for _, suggestion := range issue.Suggestions {
			fmt.Fprintf(b, "    hint: %s\n", suggestion)
		}
	}
}

func (vr *ValidationResult) addError(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

// Validate checks every section and collects errors and warnings. A zero
// policy bound is only a warning here: commands that need a policy reject it
// when they build their splitter or verifier.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateSplitConfig(&c.Split, result)
	validateVerifyConfig(&c.Verify, result)
	validateWatchConfig(&c.Watch, &c.Split, result)
	validateLogConfig(&c.Log, result)

	result.Valid = !result.HasErrors()
	return result
}

func validateSplitConfig(cfg *SplitConfig, result *ValidationResult) {
	validateBound("split.max_bytes", cfg.MaxBytes, result, "Use a size such as 10485760 for 10 MiB parts")
	validateBound("split.max_lines", cfg.MaxLines, result, "Use a row budget such as 100000")

	if _, err := textenc.Resolve(cfg.Encoding); err != nil {
		result.addError("split.encoding", cfg.Encoding, fmt.Sprintf("unknown encoding %q", cfg.Encoding),
			"Use a WHATWG label such as utf-8, windows-1252, iso-8859-1 or utf-16le")
	}

	validatePath("split.input_file", cfg.InputFile, result)
	validatePath("split.output_dir", cfg.OutputDir, result)
}

func validateBound(field string, value int64, result *ValidationResult, suggestion string) {
	switch {
	case value < 0:
		result.addError(field, value, fmt.Sprintf("must be a positive integer, got %d", value), suggestion)
	case value == 0:
		result.addWarning(field, value, "not set; split and verify require it", suggestion)
	}
}

func validateVerifyConfig(cfg *VerifyConfig, result *ValidationResult) {
	if _, err := report.ParseFormat(cfg.Format); err != nil {
		result.addError("verify.format", cfg.Format, fmt.Sprintf("unsupported format %q", cfg.Format),
			"Supported formats: "+report.FormatNames())
	}

	validatePattern("verify.pattern", cfg.Pattern, result)
	validatePath("verify.original_file", cfg.OriginalFile, result)
	validatePath("verify.parts_dir", cfg.PartsDir, result)
	validatePath("verify.report_dir", cfg.ReportDir, result)

	if cfg.WriteRecombined && cfg.ReportDir == "" {
		result.addError("verify.report_dir", cfg.ReportDir, "write_recombined needs a report directory",
			"Set verify.report_dir or pass --report-dir")
	}
}

func validateWatchConfig(cfg *WatchConfig, split *SplitConfig, result *ValidationResult) {
	validatePattern("watch.pattern", cfg.Pattern, result)
	validatePath("watch.inbox", cfg.Inbox, result)

	if cfg.Debounce < 0 {
		result.addError("watch.debounce", cfg.Debounce, "must not be negative", "Use a duration such as 500ms")
	} else if cfg.Debounce > time.Minute {
		result.addWarning("watch.debounce", cfg.Debounce, "files will wait more than a minute before being split")
	}

	if cfg.Inbox != "" && split.OutputDir != "" && filepath.Clean(cfg.Inbox) == filepath.Clean(split.OutputDir) {
		result.addError("watch.inbox", cfg.Inbox, "inbox and output directory are the same; parts would be split again",
			"Write parts to a directory outside the inbox")
	}
}

func validateLogConfig(cfg *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(cfg.Level); err != nil {
		result.addError("log.level", cfg.Level, fmt.Sprintf("unknown log level %q", cfg.Level),
			"Use one of debug, info, warn, error")
	}
	switch strings.ToLower(cfg.Format) {
	case "text", "json":
	default:
		result.addError("log.format", cfg.Format, fmt.Sprintf("unknown log format %q", cfg.Format),
			"Use text or json")
	}
}

func validatePattern(field, pattern string, result *ValidationResult) {
	if pattern == "" {
		return
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		result.addError(field, pattern, fmt.Sprintf("malformed glob pattern %q", pattern),
			"Escape literal brackets with a backslash")
	}
	if strings.ContainsRune(pattern, filepath.Separator) {
		result.addWarning(field, pattern, "pattern is matched against file names only")
	}
}

// validatePath rejects paths that cannot name a file.
func validatePath(field, path string, result *ValidationResult) {
	if path == "" {
		return
	}
	if strings.ContainsAny(path, "\x00\n\r") {
		result.addError(field, path, "path contains control characters")
		return
	}
	if strings.TrimSpace(path) != path {
		result.addWarning(field, path, "path has leading or trailing whitespace")
	}
}
