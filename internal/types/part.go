// Package types holds the value types shared by the splitter and the
// verifier: the split policy, the description of an output part, and the
// on-disk naming convention that is the only contract between the two.
package types

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/errors"
)

// SplitPolicy bounds every output part. Both limits apply to the part as a
// whole, duplicated header included.
type SplitPolicy struct {
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes" toml:"max_bytes"`
	MaxLines int64 `json:"max_lines" yaml:"max_lines" toml:"max_lines"`
}

// Validate checks that both bounds are positive.
func (p SplitPolicy) Validate() error {
	if p.MaxBytes <= 0 {
		return errors.ErrInvalidPolicy(fmt.Sprintf("max_bytes must be a positive integer, got %d", p.MaxBytes)).
			WithContext("field", "max_bytes")
	}
	if p.MaxLines <= 0 {
		return errors.ErrInvalidPolicy(fmt.Sprintf("max_lines must be a positive integer, got %d", p.MaxLines)).
			WithContext("field", "max_lines")
	}
	return nil
}

// Fits reports whether a part of the given size stays within both bounds.
func (p SplitPolicy) Fits(bytes, lines int64) bool {
	return bytes <= p.MaxBytes && lines <= p.MaxLines
}

// OutputPart describes one file written by the splitter.
type OutputPart struct {
	Index     int    `json:"index" yaml:"index" toml:"index"`
	Path      string `json:"path" yaml:"path" toml:"path"`
	ByteSize  int64  `json:"byte_size" yaml:"byte_size" toml:"byte_size"`
	LineCount int64  `json:"line_count" yaml:"line_count" toml:"line_count"`
	DataRows  int64  `json:"data_rows" yaml:"data_rows" toml:"data_rows"`
	// Oversized is set when a single row could not fit within the policy
	// even alone and was emitted in its own part anyway.
	Oversized bool `json:"oversized" yaml:"oversized" toml:"oversized"`
}

// StemAndExt splits a file name into its stem and extension the way the
// naming convention expects: "data.csv" -> ("data", ".csv"). Dot files such
// as ".env" have no extension.
func StemAndExt(path string) (string, string) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext == base {
		return base, ""
	}
	return strings.TrimSuffix(base, ext), ext
}

// PartName returns the file name of the part with the given index for a
// source file, e.g. "data.csv", 2 -> "data-part2.csv".
func PartName(source string, index int) string {
	stem, ext := StemAndExt(source)
	return stem + "-part" + strconv.Itoa(index) + ext
}

// DefaultPattern returns the glob that matches every part produced from
// source, e.g. "data.csv" -> "data-part*.csv".
func DefaultPattern(source string) string {
	stem, ext := StemAndExt(source)
	return escapeGlob(stem) + "-part*" + escapeGlob(ext)
}

var partIndexRe = regexp.MustCompile(`part(\d+)`)

// ParsePartIndex recovers the numeric index from a part file name. The last
// "part<N>" in the stem wins, so "q1-part-report-part7.csv" yields 7.
func ParsePartIndex(name string) (int, bool) {
	stem, _ := StemAndExt(name)
	matches := partIndexRe.FindAllStringSubmatch(stem, -1)
	if len(matches) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func escapeGlob(s string) string {
	if filepath.Separator == '\\' {
		// filepath.Match has no escape character on Windows.
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
