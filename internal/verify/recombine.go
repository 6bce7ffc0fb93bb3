package verify

import (
	"bufio"
	"context"
	"crypto/sha256"
	"io"
	"os"
	"path/filepath"

	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/errors"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/textenc"
)

// recombination is the outcome of writing the parts back into one file.
type recombination struct {
	lines int64
	sum   []byte
}

// recombine writes header (when non-nil) followed by the data rows of every
// part in order into dst, and returns the line count and SHA-256 of the bytes
// written. In header mode the first line of each part is its header slot and
// is never copied.
func recombine(ctx context.Context, dst string, codec *textenc.Codec, header []byte, parts []partRef) (*recombination, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, errors.ErrDestUnwritable(dst, err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return nil, errors.ErrDestUnwritable(dst, err)
	}
	defer f.Close()

	hash := sha256.New()
	bw := bufio.NewWriterSize(io.MultiWriter(f, hash), readBufSize)
	rec := &recombination{}

	emit := func(line []byte) error {
		if _, err := bw.Write(line); err != nil {
			return errors.ErrDestUnwritable(dst, err)
		}
		rec.lines++
		return nil
	}

	if header != nil {
		if err := emit(header); err != nil {
			return nil, err
		}
	}

	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.ErrCodeCanceled, "recombination canceled")
		}
		if err := appendPart(p.path, codec, header != nil, emit); err != nil {
			return nil, err
		}
	}

	if err := bw.Flush(); err != nil {
		return nil, errors.ErrDestUnwritable(dst, err)
	}
	if err := f.Sync(); err != nil {
		return nil, errors.ErrDestUnwritable(dst, err)
	}
	rec.sum = hash.Sum(nil)
	return rec, nil
}

func appendPart(path string, codec *textenc.Codec, skipFirst bool, emit func([]byte) error) error {
	in, err := os.Open(path)
	if err != nil {
		return errors.ErrPartUnreadable(path, err)
	}
	defer in.Close()

	lr := codec.NewLineReader(in, readBufSize)
	first := true
	for {
		line, readErr := lr.ReadLine()
		if len(line) > 0 {
			if !(first && skipFirst) {
				if err := emit(line); err != nil {
					return err
				}
			}
			first = false
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return errors.ErrPartUnreadable(path, readErr)
		}
	}
}
