// Package report renders split and verification results for people and
// machines, and writes the sanity report files next to a verification run.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/errors"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/split"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/verify"
)

// Format is an output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// File names written by Write.
const (
	JSONReportName = "sanity_report.json"
	TextReportName = "sanity_report.txt"
)

// Formats lists every supported format.
var Formats = []Format{FormatText, FormatJSON, FormatYAML, FormatTOML}

// ParseFormat resolves a format name; the empty string means text.
func ParseFormat(name string) (Format, error) {
	if name == "" {
		return FormatText, nil
	}
	f := Format(strings.ToLower(name))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", errors.NewValidationError(errors.ErrCodeConfigInvalid,
		fmt.Sprintf("unsupported format %q (want one of %s)", name, FormatNames()))
}

// FormatNames returns the supported format names joined for help text.
func FormatNames() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, "|")
}

// Render writes a verification result in the given format.
func Render(w io.Writer, res *verify.SanityResult, format Format) error {
	if format == FormatText {
		return renderSanityText(w, res)
	}
	return encode(w, res, format)
}

// RenderSplit writes a split result in the given format.
func RenderSplit(w io.Writer, res *split.Result, format Format) error {
	if format == FormatText {
		return renderSplitText(w, res)
	}
	return encode(w, res, format)
}

// Write stores the JSON and text sanity reports in dir, creating it when
// needed, and returns the paths written.
func Write(dir string, res *verify.SanityResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.ErrDestUnwritable(dir, err)
	}

	targets := []struct {
		name   string
		format Format
	}{
		{JSONReportName, FormatJSON},
		{TextReportName, FormatText},
	}

	paths := make([]string, 0, len(targets))
	for _, target := range targets {
		path := filepath.Join(dir, target.name)
		if err := writeFile(path, res, target.format); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, res *verify.SanityResult, format Format) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.ErrDestUnwritable(path, err)
	}
	if err := Render(f, res, format); err != nil {
		f.Close()
		return errors.ErrDestUnwritable(path, err)
	}
	if err := f.Close(); err != nil {
		return errors.ErrDestUnwritable(path, err)
	}
	return nil
}

func encode(w io.Writer, v interface{}, format Format) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(v)
	case FormatTOML:
		encoder := toml.NewEncoder(w)
		encoder.SetIndentTables(true)
		return encoder.Encode(v)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func verdict(passed bool) string {
	if passed {
		return "PASSED"
	}
	return "FAILED"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func renderSanityText(w io.Writer, res *verify.SanityResult) error {
	p := message.NewPrinter(language.English)

	p.Fprintf(w, "Sanity report %s\n", res.RunID)
	p.Fprintf(w, "Generated:  %s\n", res.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	p.Fprintf(w, "Original:   %s\n", res.OriginalFile)
	p.Fprintf(w, "Parts:      %d in %s (%s)\n", res.TotalParts, res.PartsDir, res.Pattern)
	p.Fprintf(w, "Policy:     max %d bytes, max %d lines\n", res.Policy.MaxBytes, res.Policy.MaxLines)
	p.Fprintf(w, "Encoding:   %s, header %s\n", res.Encoding, yesNo(res.Header))
	if len(res.MissingIndices) > 0 {
		p.Fprintf(w, "Missing:    %v\n", res.MissingIndices)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tPART\tBYTES\tLINES\tBOUNDS\tHEADER")
	for _, pc := range res.Parts {
		header := "-"
		if pc.HeaderMatches != nil {
			header = yesNo(*pc.HeaderMatches)
		}
		bounds := "ok"
		switch {
		case !pc.Readable():
			bounds = "unreadable"
		case !pc.BytesOK && !pc.LinesOK:
			bounds = "bytes+lines"
		case !pc.BytesOK:
			bounds = "bytes"
		case !pc.LinesOK:
			bounds = "lines"
		}
		p.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\n",
			pc.Index, filepath.Base(pc.Path), pc.Bytes, pc.Lines, bounds, header)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)

	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tSTATUS\tDETAILS")
	for _, c := range res.Checks() {
		p.Fprintf(tw, "%s\t%s\t%s\n", c.Name, c.Status, counters(p, c.Counters))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, path := range res.Bounds.Violations {
		fmt.Fprintf(w, "  bound violation: %s\n", path)
	}
	for _, path := range res.Headers.Mismatches {
		fmt.Fprintf(w, "  header mismatch: %s\n", path)
	}
	for _, path := range res.Reconcile.UnreadableParts {
		fmt.Fprintf(w, "  unreadable: %s\n", path)
	}
	if res.Reconcile.RecombinedPath != "" {
		fmt.Fprintf(w, "  recombined file: %s\n", res.Reconcile.RecombinedPath)
	}

	_, err := fmt.Fprintf(w, "\nOverall: %s\n", verdict(res.Passed))
	return err
}

func renderSplitText(w io.Writer, res *split.Result) error {
	p := message.NewPrinter(language.English)

	p.Fprintf(w, "Split %s\n", res.RunID)
	p.Fprintf(w, "Source:     %s (%d lines, %d data rows)\n", res.Source, res.SourceLines, res.DataRows)
	p.Fprintf(w, "Output:     %s\n", res.OutputDir)
	p.Fprintf(w, "Policy:     max %d bytes, max %d lines\n", res.Policy.MaxBytes, res.Policy.MaxLines)
	p.Fprintf(w, "Encoding:   %s, header %s\n", res.Encoding, yesNo(res.Header))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tPART\tBYTES\tLINES\tROWS\tOVERSIZED")
	for _, part := range res.Parts {
		p.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%s\n",
			part.Index, filepath.Base(part.Path), part.ByteSize, part.LineCount, part.DataRows, yesNo(part.Oversized))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := p.Fprintf(w, "\n%d parts written in %s\n", len(res.Parts), res.Duration.Round(time.Millisecond))
	return err
}

func counters(p *message.Printer, c map[string]int64) string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = p.Sprintf("%s=%d", k, c[k])
	}
	return strings.Join(parts, " ")
}
