// Package split partitions a delimited text file into parts bounded by a
// maximum byte size and a maximum line count, repeating the source header at
// the top of every part.
//
// The source is streamed one line at a time; memory use is bounded by the
// longest line, not by the file size. At most one part file is open at any
// moment.
//
// Policy decisions:
//   - A row that does not fit even alone with the header is written into its
//     own part, which is flagged Oversized, so the run always makes progress.
//   - A source holding only a header produces one header-only part. An empty
//     source produces no parts.
//   - A line ends after "\n", "\r\n" or a lone "\r". Lines are copied
//     verbatim with their own terminator, so the byte sizes computed here
//     equal the sizes later read from disk.
//   - Bytes are never transcoded. The encoding only tells how terminators
//     are encoded (one byte, or one UTF-16 code unit).
package split

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/errors"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/logging"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/textenc"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/types"
)

const (
	defaultBufSize = 64 * 1024
	// ctxCheckEvery is how many rows are processed between cancellation checks.
	ctxCheckEvery = 1024
)

// Options tune a Splitter beyond its policy.
type Options struct {
	// NoHeader treats the first line as data; nothing is repeated.
	NoHeader bool
	// Encoding of the source, used to find line terminators. Empty means
	// UTF-8.
	Encoding string
	// Clean removes existing parts of the same source from the destination
	// before writing.
	Clean bool
	// BufSize of the read and write buffers; <= 0 uses 64KiB.
	BufSize int
}

// Result summarizes one split run.
type Result struct {
	RunID       string             `json:"run_id" yaml:"run_id" toml:"run_id"`
	Source      string             `json:"source" yaml:"source" toml:"source"`
	OutputDir   string             `json:"output_dir" yaml:"output_dir" toml:"output_dir"`
	Encoding    string             `json:"encoding" yaml:"encoding" toml:"encoding"`
	Header      bool               `json:"header" yaml:"header" toml:"header"`
	Policy      types.SplitPolicy  `json:"policy" yaml:"policy" toml:"policy"`
	SourceLines int64              `json:"source_lines" yaml:"source_lines" toml:"source_lines"`
	DataRows    int64              `json:"data_rows" yaml:"data_rows" toml:"data_rows"`
	Parts       []types.OutputPart `json:"parts" yaml:"parts" toml:"parts"`
	Duration    time.Duration      `json:"duration" yaml:"duration" toml:"duration"`
}

// OversizedParts returns the indices of parts forced beyond the policy.
func (r *Result) OversizedParts() []int {
	var out []int
	for _, p := range r.Parts {
		if p.Oversized {
			out = append(out, p.Index)
		}
	}
	return out
}

// Splitter splits files according to an immutable policy.
type Splitter struct {
	policy types.SplitPolicy
	opts   Options
	codec  *textenc.Codec
	logger logging.Logger
}

// New validates the policy and options and returns a Splitter. A nil logger
// discards output.
func New(policy types.SplitPolicy, opts Options, logger logging.Logger) (*Splitter, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	codec, err := textenc.Resolve(opts.Encoding)
	if err != nil {
		return nil, err
	}
	if opts.BufSize <= 0 {
		opts.BufSize = defaultBufSize
	}
	return &Splitter{
		policy: policy,
		opts:   opts,
		codec:  codec,
		logger: logging.OrNop(logger).WithComponent("splitter"),
	}, nil
}

// Policy returns the policy the splitter enforces.
func (s *Splitter) Policy() types.SplitPolicy {
	return s.policy
}

// Split reads source and writes its parts into outputDir, which must exist.
//
// On an I/O error the part being written is discarded and the error is
// returned; parts committed before the failure stay on disk and their count
// is recorded in the error context under "parts_written".
func (s *Splitter) Split(ctx context.Context, source, outputDir string) (*Result, error) {
	start := time.Now()
	log := s.logger.With("source", source)

	info, err := os.Stat(outputDir)
	if err != nil {
		return nil, errors.ErrDestUnwritable(outputDir, err)
	}
	if !info.IsDir() {
		return nil, errors.ErrDestUnwritable(outputDir, fmt.Errorf("not a directory"))
	}

	in, err := os.Open(source)
	if err != nil {
		return nil, errors.ErrSourceUnreadable(source, err)
	}
	defer in.Close()

	if s.opts.Clean {
		if err := removeParts(source, outputDir); err != nil {
			return nil, errors.ErrDestUnwritable(outputDir, err)
		}
	}

	run := &splitRun{
		Splitter:  s,
		ctx:       ctx,
		log:       log,
		source:    source,
		outputDir: outputDir,
		result: &Result{
			RunID:     uuid.NewString(),
			Source:    source,
			OutputDir: outputDir,
			Encoding:  s.codec.Name(),
			Header:    !s.opts.NoHeader,
			Policy:    s.policy,
			Parts:     make([]types.OutputPart, 0),
		},
	}

	op := logging.StartOperation(log, "split")
	if err := run.stream(s.codec.NewLineReader(in, s.opts.BufSize)); err != nil {
		run.abort()
		op.EndWithError(ctx, err)
		return nil, err
	}

	run.result.Duration = time.Since(start)
	op.End(ctx,
		"parts", len(run.result.Parts),
		"data_rows", run.result.DataRows,
		"oversized", len(run.result.OversizedParts()),
	)
	return run.result, nil
}

// splitRun carries the mutable state of one Split call.
type splitRun struct {
	*Splitter
	ctx       context.Context
	log       logging.Logger
	source    string
	outputDir string
	result    *Result

	header []byte // raw header line, nil in no-header mode
	cur    *partFile
}

func (r *splitRun) stream(lr *textenc.LineReader) error {
	first := true
	for {
		line, readErr := lr.ReadLine()
		if len(line) > 0 {
			r.result.SourceLines++
			if first && !r.opts.NoHeader {
				r.header = append([]byte(nil), line...)
			} else if err := r.addRow(line); err != nil {
				return err
			}
			first = false
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return r.withProgress(errors.ErrSourceUnreadable(r.source, readErr))
		}
	}

	if r.cur != nil {
		return r.commit(false)
	}

	// Header-only source: one part holding just the header.
	if r.header != nil && len(r.result.Parts) == 0 {
		if err := r.open(); err != nil {
			return err
		}
		return r.commit(!r.policy.Fits(r.cur.bytes, r.cur.lines))
	}
	return nil
}

func (r *splitRun) addRow(row []byte) error {
	r.result.DataRows++
	if r.result.DataRows%ctxCheckEvery == 0 && r.ctx != nil {
		if err := r.ctx.Err(); err != nil {
			return r.withProgress(errors.Wrap(err, errors.ErrorTypeInternal, errors.ErrCodeCanceled, "split canceled"))
		}
	}

	rowBytes := int64(len(row))

	if r.cur != nil && r.policy.Fits(r.cur.bytes+rowBytes, r.cur.lines+1) {
		return r.write(row)
	}

	if r.cur != nil {
		if err := r.commit(false); err != nil {
			return err
		}
	}
	if err := r.open(); err != nil {
		return err
	}
	if err := r.write(row); err != nil {
		return err
	}

	if !r.policy.Fits(r.cur.bytes, r.cur.lines) {
		// The row cannot fit even alone; emit it by itself and move on.
		r.log.Warn(r.ctx, nil, "Row exceeds policy on its own, emitting forced part",
			"index", len(r.result.Parts),
			"row", r.result.DataRows,
			"bytes", r.cur.bytes,
			"lines", r.cur.lines,
			"max_bytes", r.policy.MaxBytes,
			"max_lines", r.policy.MaxLines,
		)
		return r.commit(true)
	}
	return nil
}

func (r *splitRun) open() error {
	name := types.PartName(r.source, len(r.result.Parts))
	p, err := createPart(r.outputDir, name, r.opts.BufSize)
	if err != nil {
		return r.withProgress(errors.ErrDestUnwritable(filepath.Join(r.outputDir, name), err))
	}
	r.cur = p
	if r.header != nil {
		if err := p.writeLine(r.header, false); err != nil {
			return r.withProgress(errors.ErrDestUnwritable(p.finalPath, err))
		}
	}
	return nil
}

func (r *splitRun) write(row []byte) error {
	if err := r.cur.writeLine(row, true); err != nil {
		return r.withProgress(errors.ErrDestUnwritable(r.cur.finalPath, err))
	}
	return nil
}

func (r *splitRun) commit(oversized bool) error {
	p := r.cur
	if err := p.commit(); err != nil {
		r.cur = nil
		return r.withProgress(errors.ErrDestUnwritable(p.finalPath, err))
	}
	r.cur = nil

	part := types.OutputPart{
		Index:     len(r.result.Parts),
		Path:      p.finalPath,
		ByteSize:  p.bytes,
		LineCount: p.lines,
		DataRows:  p.rows,
		Oversized: oversized,
	}
	r.result.Parts = append(r.result.Parts, part)

	r.log.Debug(r.ctx, "Part written",
		"index", part.Index,
		"path", part.Path,
		"bytes", part.ByteSize,
		"lines", part.LineCount,
		"oversized", part.Oversized,
	)
	return nil
}

func (r *splitRun) abort() {
	if r.cur != nil {
		r.cur.abort()
		r.cur = nil
	}
}

func (r *splitRun) withProgress(err *errors.Error) *errors.Error {
	return err.WithContext("parts_written", len(r.result.Parts))
}

// removeParts deletes files in dir that follow the naming convention for
// source.
func removeParts(source, dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, types.DefaultPattern(source)))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if _, ok := types.ParsePartIndex(filepath.Base(m)); !ok {
			continue
		}
		if err := os.Remove(m); err != nil {
			return err
		}
	}
	return nil
}
