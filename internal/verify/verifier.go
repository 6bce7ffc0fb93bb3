// Package verify re-derives, from the files on disk alone, whether a split
// honored its policy: every part within bounds, every part carrying the
// original header, and the parts together holding exactly the original's
// lines.
//
// The verifier shares nothing with the splitter but the part naming
// convention and the header duplication convention. Integrity mismatches are
// verdicts in the SanityResult; only an unreadable original, an empty match
// set or a failed recombination write are returned as errors.
package verify

import (
	"bytes"
	"context"
	"crypto/sha256"
	"hash"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/errors"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/logging"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/textenc"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/types"
)

// Options select which checks run and where parts are found.
type Options struct {
	// PartsDir holds the parts. Empty means the original's directory.
	PartsDir string
	// Pattern is the glob matched inside PartsDir. Empty means the naming
	// convention for the original, e.g. "data-part*.csv".
	Pattern string
	// CheckHeaders compares the first line of every part with the original's.
	CheckHeaders bool
	// Recombine reconciles the original's line count with the parts'.
	Recombine bool
	// RecombinedPath, when set, writes the recombined file there and compares
	// its content with the original. Implies Recombine.
	RecombinedPath string
	// NoHeader matches a split made without header duplication.
	NoHeader bool
	// Encoding of the original and the parts, used to find line terminators.
	// Empty means UTF-8.
	Encoding string
}

// Verifier checks parts against a policy.
type Verifier struct {
	policy types.SplitPolicy
	opts   Options
	codec  *textenc.Codec
	logger logging.Logger
}

// New validates the policy and options and returns a Verifier. A nil logger
// discards output.
func New(policy types.SplitPolicy, opts Options, logger logging.Logger) (*Verifier, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	codec, err := textenc.Resolve(opts.Encoding)
	if err != nil {
		return nil, err
	}
	if opts.RecombinedPath != "" {
		opts.Recombine = true
	}
	return &Verifier{
		policy: policy,
		opts:   opts,
		codec:  codec,
		logger: logging.OrNop(logger).WithComponent("verifier"),
	}, nil
}

// Verify checks the parts of original. It returns errors.ErrNoParts when the
// pattern matches nothing.
func (v *Verifier) Verify(ctx context.Context, original string) (*SanityResult, error) {
	dir := v.opts.PartsDir
	if dir == "" {
		dir = filepath.Dir(original)
	}
	pattern := v.opts.Pattern
	if pattern == "" {
		pattern = types.DefaultPattern(original)
	}
	log := v.logger.With("original", original, "parts_dir", dir)
	op := logging.StartOperation(log, "verify")

	refs, err := discover(dir, pattern)
	if err != nil {
		op.EndWithError(ctx, err)
		return nil, err
	}
	if len(refs) == 0 {
		err := errors.NewIntegrityError(errors.ErrCodeNoParts, "no parts matched").
			WithPath(dir).
			WithContext("pattern", pattern)
		op.EndWithError(ctx, err)
		return nil, err
	}

	// The original's raw bytes are hashed on the same pass when the
	// recombination will be compared by content.
	var sum hash.Hash
	var sink io.Writer
	if v.opts.RecombinedPath != "" {
		sum = sha256.New()
		sink = sum
	}
	orig, err := measure(original, v.codec, true, sink)
	if err != nil {
		err := errors.ErrSourceUnreadable(original, err)
		op.EndWithError(ctx, err)
		return nil, err
	}

	res := &SanityResult{
		RunID:          uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
		OriginalFile:   original,
		PartsDir:       dir,
		Pattern:        pattern,
		Encoding:       v.codec.Name(),
		Header:         !v.opts.NoHeader,
		Policy:         v.policy,
		TotalParts:     len(refs),
		MissingIndices: missingIndices(refs),
		Parts:          make([]PartCheck, 0, len(refs)),
		Reconcile:      ReconcileCheck{UnreadableParts: make([]string, 0)},
	}
	if len(res.MissingIndices) > 0 {
		log.Warn(ctx, nil, "Part indices are not contiguous", "missing", res.MissingIndices)
	}

	firsts, err := v.checkParts(ctx, log, res, refs)
	if err != nil {
		op.EndWithError(ctx, err)
		return nil, err
	}
	v.checkHeaders(ctx, log, res, orig.first, firsts)
	if v.opts.Recombine {
		if err := v.reconcile(ctx, log, res, refs, orig, sum); err != nil {
			op.EndWithError(ctx, err)
			return nil, err
		}
	}

	res.Passed = res.Bounds.Passed &&
		(!res.Headers.Checked || res.Headers.Passed) &&
		(!res.Reconcile.Checked || res.Reconcile.Passed)

	op.End(ctx,
		"parts", res.TotalParts,
		"bounds", statusOf(true, res.Bounds.Passed),
		"headers", statusOf(res.Headers.Checked, res.Headers.Passed),
		"reconcile", statusOf(res.Reconcile.Checked, res.Reconcile.Passed),
		"passed", res.Passed,
	)
	return res, nil
}

// checkParts measures every part, one open file at a time, and returns the
// raw first line of each part when headers are checked (nil for
// unreadable parts).
func (v *Verifier) checkParts(ctx context.Context, log logging.Logger, res *SanityResult, refs []partRef) ([][]byte, error) {
	wantFirst := v.opts.CheckHeaders && !v.opts.NoHeader
	res.Bounds = BoundsCheck{Passed: true, Violations: make([]string, 0)}

	var firsts [][]byte
	if wantFirst {
		firsts = make([][]byte, len(refs))
	}

	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.ErrCodeCanceled, "verify canceled")
		}

		pc := PartCheck{Index: ref.index, Path: ref.path}
		m, err := measure(ref.path, v.codec, wantFirst, nil)
		if err != nil {
			pc.Error = errors.ErrPartUnreadable(ref.path, err).Error()
			log.Warn(ctx, err, "Part unreadable", "path", ref.path)
		} else {
			pc.Bytes = m.bytes
			pc.Lines = m.lines
			pc.BytesOK = m.bytes <= v.policy.MaxBytes
			pc.LinesOK = m.lines <= v.policy.MaxLines
		}
		if wantFirst && err == nil {
			firsts[i] = m.first
		}
		res.Parts = append(res.Parts, pc)

		if !pc.WithinBounds() {
			res.Bounds.Passed = false
			res.Bounds.Violations = append(res.Bounds.Violations, ref.path)
			if pc.Readable() {
				log.Warn(ctx, nil, "Part exceeds policy",
					"path", ref.path,
					"bytes", pc.Bytes,
					"lines", pc.Lines,
					"max_bytes", v.policy.MaxBytes,
					"max_lines", v.policy.MaxLines,
				)
			}
		}
	}

	log.Info(ctx, "Bounds check complete",
		"status", statusOf(true, res.Bounds.Passed),
		"violations", len(res.Bounds.Violations),
	)
	return firsts, nil
}

// checkHeaders compares each part's first line with the original header.
// Unreadable parts count as mismatches.
func (v *Verifier) checkHeaders(ctx context.Context, log logging.Logger, res *SanityResult, header []byte, firsts [][]byte) {
	res.Headers = HeaderCheck{Mismatches: make([]string, 0)}
	if !v.opts.CheckHeaders {
		return
	}
	if v.opts.NoHeader {
		log.Info(ctx, "Header check skipped for a split without headers")
		return
	}

	res.Headers.Checked = true
	res.Headers.Header = v.codec.Text(header)
	for i := range res.Parts {
		pc := &res.Parts[i]
		match := pc.Readable() && bytes.Equal(firsts[i], header)
		pc.HeaderMatches = &match
		if !match {
			res.Headers.Mismatches = append(res.Headers.Mismatches, pc.Path)
		}
	}
	res.Headers.Passed = len(res.Headers.Mismatches) == 0

	log.Info(ctx, "Header check complete",
		"status", statusOf(true, res.Headers.Passed),
		"mismatches", len(res.Headers.Mismatches),
	)
}

// reconcile compares the original's line count with what the parts add up
// to, and optionally writes the recombination and compares content.
func (v *Verifier) reconcile(ctx context.Context, log logging.Logger, res *SanityResult, refs []partRef, orig measurement, sum hash.Hash) error {
	rc := ReconcileCheck{
		Checked:         true,
		OriginalLines:   orig.lines,
		UnreadableParts: make([]string, 0),
	}

	if !v.opts.NoHeader {
		rc.RecombinedLines = 1
	}
	for _, pc := range res.Parts {
		if !pc.Readable() {
			rc.UnreadableParts = append(rc.UnreadableParts, pc.Path)
			continue
		}
		if v.opts.NoHeader {
			rc.RecombinedLines += pc.Lines
		} else if pc.Lines > 1 {
			rc.RecombinedLines += pc.Lines - 1
		}
	}
	rc.Passed = len(rc.UnreadableParts) == 0 && rc.RecombinedLines == rc.OriginalLines

	if v.opts.RecombinedPath != "" && len(rc.UnreadableParts) == 0 {
		var header []byte
		if !v.opts.NoHeader {
			header = orig.first
		}
		rec, err := recombine(ctx, v.opts.RecombinedPath, v.codec, header, refs)
		if err != nil {
			return err
		}
		match := bytes.Equal(rec.sum, sum.Sum(nil))
		rc.RecombinedPath = v.opts.RecombinedPath
		rc.RecombinedLines = rec.lines
		rc.ContentMatch = &match
		rc.Passed = rc.Passed && rec.lines == rc.OriginalLines && match
	}
	res.Reconcile = rc

	log.Info(ctx, "Reconciliation complete",
		"status", statusOf(true, rc.Passed),
		"original_lines", rc.OriginalLines,
		"recombined_lines", rc.RecombinedLines,
		"unreadable", len(rc.UnreadableParts),
	)
	return nil
}
