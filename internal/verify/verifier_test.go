package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/errors"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/split"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/testutils"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/types"
)

var testPolicy = types.SplitPolicy{MaxBytes: 10_000, MaxLines: 3}

// splitFixture splits lines with policy and returns the source path and the
// parts directory.
func splitFixture(t *testing.T, policy types.SplitPolicy, opts split.Options, lines ...string) (string, string) {
	t.Helper()
	src := testutils.WriteSource(t, t.TempDir(), "data.csv", lines...)
	s, err := split.New(policy, opts, nil)
	require.NoError(t, err)
	out := t.TempDir()
	_, err = s.Split(context.Background(), src, out)
	require.NoError(t, err)
	return src, out
}

func runVerify(t *testing.T, policy types.SplitPolicy, opts Options, src string) *SanityResult {
	t.Helper()
	v, err := New(policy, opts, nil)
	require.NoError(t, err)
	res, err := v.Verify(context.Background(), src)
	require.NoError(t, err)
	return res
}

func allChecks(dir string) Options {
	return Options{PartsDir: dir, CheckHeaders: true, Recombine: true}
}

func TestVerifyCleanSplitPasses(t *testing.T) {
	src, out := splitFixture(t, testPolicy, split.Options{}, testutils.CSV("id,name", 7)...)

	res := runVerify(t, testPolicy, allChecks(out), src)

	assert.True(t, res.Passed)
	assert.Equal(t, 4, res.TotalParts)
	assert.Empty(t, res.MissingIndices)
	assert.True(t, res.Bounds.Passed)
	assert.Empty(t, res.Bounds.Violations)
	assert.True(t, res.Headers.Checked)
	assert.True(t, res.Headers.Passed)
	assert.Equal(t, "id,name", res.Headers.Header)
	assert.True(t, res.Reconcile.Passed)
	assert.Equal(t, int64(8), res.Reconcile.OriginalLines)
	assert.Equal(t, int64(8), res.Reconcile.RecombinedLines)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "data-part*.csv", res.Pattern)

	for i, pc := range res.Parts {
		assert.Equal(t, i, pc.Index)
		assert.True(t, pc.BytesOK)
		assert.True(t, pc.LinesOK)
		require.NotNil(t, pc.HeaderMatches)
		assert.True(t, *pc.HeaderMatches)
	}
}

func TestVerifyDeletedRowFailsReconciliation(t *testing.T) {
	src, out := splitFixture(t, testPolicy, split.Options{}, testutils.CSV("id,name", 6)...)
	testutils.RewriteFile(t, filepath.Join(out, "data-part1.csv"), func(lines []string) []string {
		return lines[:len(lines)-1]
	})

	res := runVerify(t, testPolicy, allChecks(out), src)

	assert.False(t, res.Passed)
	assert.True(t, res.Bounds.Passed)
	assert.True(t, res.Headers.Passed)
	assert.False(t, res.Reconcile.Passed)
	assert.Equal(t, int64(7), res.Reconcile.OriginalLines)
	assert.Equal(t, int64(6), res.Reconcile.RecombinedLines)
}

func TestVerifyAlteredHeaderFailsHeaderCheck(t *testing.T) {
	src, out := splitFixture(t, testPolicy, split.Options{}, testutils.CSV("id,name", 6)...)
	altered := filepath.Join(out, "data-part2.csv")
	testutils.RewriteFile(t, altered, func(lines []string) []string {
		lines[0] = "ID,NAME\n"
		return lines
	})

	res := runVerify(t, testPolicy, allChecks(out), src)

	assert.False(t, res.Passed)
	assert.True(t, res.Bounds.Passed)
	assert.False(t, res.Headers.Passed)
	assert.Equal(t, []string{altered}, res.Headers.Mismatches)
	assert.False(t, *res.Parts[2].HeaderMatches)
	assert.True(t, *res.Parts[0].HeaderMatches)
	assert.True(t, res.Reconcile.Passed)
}

func TestVerifyHeaderOnlySource(t *testing.T) {
	src, out := splitFixture(t, testPolicy, split.Options{}, "id,name\n")

	res := runVerify(t, testPolicy, allChecks(out), src)

	assert.True(t, res.Passed)
	require.Len(t, res.Parts, 1)
	assert.Equal(t, int64(1), res.Parts[0].Lines)
	assert.Equal(t, int64(1), res.Reconcile.OriginalLines)
	assert.Equal(t, int64(1), res.Reconcile.RecombinedLines)
}

func TestVerifyBoundViolation(t *testing.T) {
	src, out := splitFixture(t, testPolicy, split.Options{}, testutils.CSV("id,name", 6)...)

	strict := types.SplitPolicy{MaxBytes: 10_000, MaxLines: 2}
	res := runVerify(t, strict, Options{PartsDir: out}, src)

	assert.False(t, res.Passed)
	assert.False(t, res.Bounds.Passed)
	assert.Len(t, res.Bounds.Violations, 3)
	for _, pc := range res.Parts {
		assert.True(t, pc.BytesOK)
		assert.False(t, pc.LinesOK)
	}
}

func TestVerifyByteBoundUsesSizeOnDisk(t *testing.T) {
	src, out := splitFixture(t, types.SplitPolicy{MaxBytes: 20, MaxLines: 100}, split.Options{}, testutils.CSV("id,name", 3)...)

	res := runVerify(t, types.SplitPolicy{MaxBytes: 20, MaxLines: 100}, Options{PartsDir: out}, src)
	require.True(t, res.Passed)
	for _, pc := range res.Parts {
		info, err := os.Stat(pc.Path)
		require.NoError(t, err)
		assert.Equal(t, info.Size(), pc.Bytes)
	}

	res = runVerify(t, types.SplitPolicy{MaxBytes: 15, MaxLines: 100}, Options{PartsDir: out}, src)
	assert.False(t, res.Bounds.Passed)
	assert.False(t, res.Parts[0].BytesOK)
	assert.True(t, res.Parts[0].LinesOK)
}

func TestVerifySkippedChecks(t *testing.T) {
	src, out := splitFixture(t, testPolicy, split.Options{}, testutils.CSV("id,name", 4)...)

	res := runVerify(t, testPolicy, Options{PartsDir: out}, src)

	assert.True(t, res.Passed)
	assert.False(t, res.Headers.Checked)
	assert.False(t, res.Reconcile.Checked)
	assert.Nil(t, res.Parts[0].HeaderMatches)

	checks := res.Checks()
	require.Len(t, checks, 3)
	assert.Equal(t, StatusPassed, checks[0].Status)
	assert.Equal(t, StatusSkipped, checks[1].Status)
	assert.Equal(t, StatusSkipped, checks[2].Status)
	assert.Equal(t, int64(2), checks[0].Counters["parts"])
}

func TestVerifyNoPartsIsAnError(t *testing.T) {
	src := testutils.WriteSource(t, t.TempDir(), "data.csv", testutils.CSV("id,name", 2)...)
	v, err := New(testPolicy, Options{PartsDir: t.TempDir()}, nil)
	require.NoError(t, err)

	res, err := v.Verify(context.Background(), src)

	assert.Nil(t, res)
	assert.True(t, errors.Is(err, errors.ErrNoParts))
}

func TestVerifyUnreadableOriginal(t *testing.T) {
	src, out := splitFixture(t, testPolicy, split.Options{}, testutils.CSV("id,name", 2)...)
	require.NoError(t, os.Remove(src))

	v, err := New(testPolicy, Options{PartsDir: out}, nil)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), src)

	assert.Equal(t, errors.ErrCodeSourceUnreadable, errors.CodeOf(err))
}

func TestVerifyUnreadablePartFailsWithoutAborting(t *testing.T) {
	src, out := splitFixture(t, testPolicy, split.Options{}, testutils.CSV("id,name", 4)...)
	dangling := filepath.Join(out, "data-part2.csv")
	require.NoError(t, os.Symlink(filepath.Join(out, "missing"), dangling))

	res := runVerify(t, testPolicy, allChecks(out), src)

	require.Len(t, res.Parts, 3)
	assert.False(t, res.Parts[2].Readable())
	assert.Contains(t, res.Parts[2].Error, errors.ErrCodePartUnreadable)
	assert.Equal(t, []string{dangling}, res.Bounds.Violations)
	assert.Equal(t, []string{dangling}, res.Headers.Mismatches)
	assert.Equal(t, []string{dangling}, res.Reconcile.UnreadableParts)
	assert.False(t, res.Reconcile.Passed)
	assert.False(t, res.Passed)
}

func TestVerifyReportsMissingIndices(t *testing.T) {
	src, out := splitFixture(t, types.SplitPolicy{MaxBytes: 10_000, MaxLines: 2}, split.Options{}, testutils.CSV("id,name", 5)...)
	require.NoError(t, os.Remove(filepath.Join(out, "data-part1.csv")))
	require.NoError(t, os.Remove(filepath.Join(out, "data-part3.csv")))

	res := runVerify(t, types.SplitPolicy{MaxBytes: 10_000, MaxLines: 2}, allChecks(out), src)

	assert.Equal(t, []int{1, 3}, res.MissingIndices)
	assert.True(t, res.Bounds.Passed)
	assert.False(t, res.Reconcile.Passed)
}

func TestVerifyOrdersPartsNumerically(t *testing.T) {
	src, out := splitFixture(t, types.SplitPolicy{MaxBytes: 10_000, MaxLines: 2}, split.Options{}, testutils.CSV("id,name", 12)...)

	res := runVerify(t, types.SplitPolicy{MaxBytes: 10_000, MaxLines: 2}, Options{PartsDir: out}, src)

	require.Len(t, res.Parts, 12)
	for i, pc := range res.Parts {
		assert.Equal(t, i, pc.Index)
		assert.Equal(t, filepath.Join(out, types.PartName(src, i)), pc.Path)
	}
}

func TestVerifyCustomPattern(t *testing.T) {
	src, out := splitFixture(t, testPolicy, split.Options{}, testutils.CSV("id,name", 4)...)

	res := runVerify(t, testPolicy, Options{PartsDir: out, Pattern: "*-part0.csv"}, src)

	assert.Equal(t, 1, res.TotalParts)
	assert.Equal(t, "*-part0.csv", res.Pattern)
}

func TestVerifyWriteRecombined(t *testing.T) {
	lines := []string{"id,name\r\n", "1,a\r\n", "2,b\r\n", "3,c\r\n", "4,d"}
	src, out := splitFixture(t, testPolicy, split.Options{}, lines...)
	recombined := filepath.Join(t.TempDir(), "checks", "recombined.csv")

	res := runVerify(t, testPolicy, Options{PartsDir: out, RecombinedPath: recombined}, src)

	assert.True(t, res.Passed)
	assert.True(t, res.Reconcile.Checked)
	require.NotNil(t, res.Reconcile.ContentMatch)
	assert.True(t, *res.Reconcile.ContentMatch)
	assert.Equal(t, recombined, res.Reconcile.RecombinedPath)
	assert.Equal(t, int64(5), res.Reconcile.RecombinedLines)

	want, err := os.ReadFile(src)
	require.NoError(t, err)
	got, err := os.ReadFile(recombined)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestVerifyWriteRecombinedDetectsEditedRow(t *testing.T) {
	src, out := splitFixture(t, testPolicy, split.Options{}, testutils.CSV("id,name", 4)...)
	testutils.RewriteFile(t, filepath.Join(out, "data-part1.csv"), func(lines []string) []string {
		lines[1] = "3,nameX\n"
		return lines
	})
	recombined := filepath.Join(t.TempDir(), "recombined.csv")

	res := runVerify(t, testPolicy, Options{PartsDir: out, RecombinedPath: recombined}, src)

	assert.Equal(t, res.Reconcile.OriginalLines, res.Reconcile.RecombinedLines)
	require.NotNil(t, res.Reconcile.ContentMatch)
	assert.False(t, *res.Reconcile.ContentMatch)
	assert.False(t, res.Reconcile.Passed)
	assert.False(t, res.Passed)
}

func TestVerifyNoHeaderMode(t *testing.T) {
	src, out := splitFixture(t, testPolicy, split.Options{NoHeader: true}, "a\n", "b\n", "c\n", "d\n", "e\n")
	recombined := filepath.Join(t.TempDir(), "recombined.csv")

	res := runVerify(t, testPolicy, Options{
		PartsDir:       out,
		CheckHeaders:   true,
		RecombinedPath: recombined,
		NoHeader:       true,
	}, src)

	assert.True(t, res.Passed)
	assert.False(t, res.Header)
	assert.False(t, res.Headers.Checked)
	assert.Equal(t, int64(5), res.Reconcile.OriginalLines)
	assert.Equal(t, int64(5), res.Reconcile.RecombinedLines)
	assert.True(t, *res.Reconcile.ContentMatch)
}

func TestVerifyUTF16(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	var lines []string
	for _, l := range testutils.CSV("id,name", 5) {
		b, err := enc.Bytes([]byte(l))
		require.NoError(t, err)
		lines = append(lines, string(b))
	}
	src, out := splitFixture(t, testPolicy, split.Options{Encoding: "utf-16le"}, lines...)
	recombined := filepath.Join(t.TempDir(), "recombined.csv")

	res := runVerify(t, testPolicy, Options{
		PartsDir:       out,
		CheckHeaders:   true,
		RecombinedPath: recombined,
		Encoding:       "utf-16le",
	}, src)

	assert.True(t, res.Passed)
	assert.Equal(t, "utf-16le", res.Encoding)
	assert.Equal(t, "id,name", res.Headers.Header)
	assert.Equal(t, int64(6), res.Reconcile.OriginalLines)
	assert.True(t, *res.Reconcile.ContentMatch)
}

func TestVerifyLatin1ContentMatches(t *testing.T) {
	src, out := splitFixture(t, testPolicy, split.Options{Encoding: "latin1"},
		"h,x\n", "a,\x81\x9d\xe9\n", "b,\x8d\x8f\x90\n", "c,3\n")
	recombined := filepath.Join(t.TempDir(), "recombined.csv")

	res := runVerify(t, testPolicy, Options{
		PartsDir:       out,
		CheckHeaders:   true,
		RecombinedPath: recombined,
		Encoding:       "latin1",
	}, src)

	assert.True(t, res.Passed)
	assert.Equal(t, "h,x", res.Headers.Header)
	assert.True(t, *res.Reconcile.ContentMatch)
	original, err := os.ReadFile(src)
	require.NoError(t, err)
	written, err := os.ReadFile(recombined)
	require.NoError(t, err)
	assert.Equal(t, original, written)
}

func TestVerifyUTF16UnpairedSurrogate(t *testing.T) {
	src, out := splitFixture(t, types.SplitPolicy{MaxBytes: 1_000, MaxLines: 2}, split.Options{Encoding: "utf-16le"},
		string([]byte{0x68, 0x00, 0x0a, 0x00}),
		string([]byte{0x61, 0x00, 0x00, 0xd8, 0x0a, 0x00}),
		string([]byte{0x62, 0x00, 0x0a, 0x00}))

	res := runVerify(t, types.SplitPolicy{MaxBytes: 1_000, MaxLines: 2}, Options{
		PartsDir:       out,
		CheckHeaders:   true,
		RecombinedPath: filepath.Join(t.TempDir(), "recombined.csv"),
		Encoding:       "utf-16le",
	}, src)

	assert.True(t, res.Passed)
	assert.Equal(t, 2, res.TotalParts)
	assert.True(t, *res.Reconcile.ContentMatch)
}

func TestVerifyCROnlyLineEndings(t *testing.T) {
	src, out := splitFixture(t, types.SplitPolicy{MaxBytes: 1_000, MaxLines: 2}, split.Options{},
		"id\r", "1\r", "2\r", "3")

	res := runVerify(t, types.SplitPolicy{MaxBytes: 1_000, MaxLines: 2}, Options{
		PartsDir:       out,
		CheckHeaders:   true,
		RecombinedPath: filepath.Join(t.TempDir(), "recombined.csv"),
	}, src)

	assert.True(t, res.Passed)
	assert.Equal(t, 3, res.TotalParts)
	assert.Equal(t, int64(4), res.Reconcile.OriginalLines)
	assert.Equal(t, "id", res.Headers.Header)
	assert.True(t, *res.Reconcile.ContentMatch)
}

func TestVerifyCanceled(t *testing.T) {
	src, out := splitFixture(t, testPolicy, split.Options{}, testutils.CSV("id,name", 4)...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v, err := New(testPolicy, Options{PartsDir: out}, nil)
	require.NoError(t, err)
	_, err = v.Verify(ctx, src)

	assert.Equal(t, errors.ErrCodeCanceled, errors.CodeOf(err))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewRejectsInvalidInput(t *testing.T) {
	_, err := New(types.SplitPolicy{MaxBytes: 0, MaxLines: 1}, Options{}, nil)
	assert.Equal(t, errors.ErrCodeInvalidPolicy, errors.CodeOf(err))

	_, err = New(testPolicy, Options{Encoding: "klingon"}, nil)
	assert.Equal(t, errors.ErrCodeUnknownEncoding, errors.CodeOf(err))
}

func TestRecombinedPathImpliesRecombine(t *testing.T) {
	v, err := New(testPolicy, Options{RecombinedPath: "x.csv"}, nil)
	require.NoError(t, err)
	assert.True(t, v.opts.Recombine)
}
