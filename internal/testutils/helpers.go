// Package testutils provides fixtures shared by the splitter, verifier and
// command tests.
package testutils

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/types"
	"github.com/stretchr/testify/require"
)

// WriteSource writes lines verbatim (terminators included) to dir/name and
// returns the path.
func WriteSource(t testing.TB, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "")), 0o644))
	return path
}

// CSV builds a source with a header and n rows of the form "<i>,<name><i>\n".
func CSV(header string, n int) []string {
	lines := make([]string, 0, n+1)
	lines = append(lines, header+"\n")
	for i := 1; i <= n; i++ {
		lines = append(lines, fmt.Sprintf("%d,name%d\n", i, i))
	}
	return lines
}

// SplitLines splits content after every "\n", keeping terminators. A final
// unterminated line is kept as is.
func SplitLines(content []byte) []string {
	var lines []string
	for len(content) > 0 {
		i := bytes.IndexByte(content, '\n')
		if i < 0 {
			lines = append(lines, string(content))
			break
		}
		lines = append(lines, string(content[:i+1]))
		content = content[i+1:]
	}
	return lines
}

// PartPaths returns the parts of source found in dir, ordered by index.
func PartPaths(t testing.TB, dir, source string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, types.DefaultPattern(source)))
	require.NoError(t, err)
	sort.Slice(matches, func(i, j int) bool {
		a, _ := types.ParsePartIndex(filepath.Base(matches[i]))
		b, _ := types.ParsePartIndex(filepath.Base(matches[j]))
		return a < b
	})
	return matches
}

// ReadParts returns the lines of every part of source in dir, in index order.
func ReadParts(t testing.TB, dir, source string) [][]string {
	t.Helper()
	var parts [][]string
	for _, p := range PartPaths(t, dir, source) {
		content, err := os.ReadFile(p)
		require.NoError(t, err)
		parts = append(parts, SplitLines(content))
	}
	return parts
}

// DataRows concatenates the lines of every part after the first line of each.
func DataRows(parts [][]string) []string {
	rows := []string{}
	for _, p := range parts {
		if len(p) > 1 {
			rows = append(rows, p[1:]...)
		}
	}
	return rows
}

// RewriteFile applies fn to the lines of path and writes the result back.
func RewriteFile(t testing.TB, path string, fn func(lines []string) []string) {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	out := fn(SplitLines(content))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(out, "")), 0o644))
}
