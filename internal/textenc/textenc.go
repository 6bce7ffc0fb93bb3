// Package textenc resolves the text encoding of source files and parts and
// finds line boundaries in it.
//
// Content is never transcoded. Lines are handed out as the raw bytes of the
// file, so every byte of a row reaches the parts unchanged whatever the
// encoding, including bytes the encoding has no character for. The encoding
// only decides how terminators look on disk: one byte for ASCII-compatible
// encodings (UTF-8, the single-byte code pages, the CJK multi-byte sets,
// none of which use 0x0A or 0x0D inside a multi-byte sequence) and one
// 16-bit code unit for UTF-16.
//
// A line ends after "\n", "\r\n" or a lone "\r". The terminator is part of
// the line.
package textenc

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/errors"
)

// Default is the encoding used when none is configured.
const Default = "utf-8"

// Codec locates lines in one text encoding.
type Codec struct {
	name string
	enc  encoding.Encoding
	// unit is the code unit size in bytes.
	unit int
	lf   []byte
	cr   []byte
}

// Resolve looks up an encoding by its WHATWG/IANA label ("utf-8", "latin1",
// "windows-1252", "utf-16le", ...). An empty name means Default.
func Resolve(name string) (*Codec, error) {
	label := strings.ToLower(strings.TrimSpace(name))
	if label == "" {
		label = Default
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, errors.ErrUnknownEncoding(name)
	}

	canonical, err := htmlindex.Name(enc)
	if err != nil {
		canonical = label
	}

	c := &Codec{name: canonical, enc: enc, unit: 1, lf: []byte{'\n'}, cr: []byte{'\r'}}
	switch canonical {
	case "utf-16le":
		c.unit, c.lf, c.cr = 2, []byte{'\n', 0}, []byte{'\r', 0}
	case "utf-16be":
		c.unit, c.lf, c.cr = 2, []byte{0, '\n'}, []byte{0, '\r'}
	}
	return c, nil
}

// MustResolve is Resolve for labels known to be valid.
func MustResolve(name string) *Codec {
	c, err := Resolve(name)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the canonical encoding name.
func (c *Codec) Name() string {
	return c.name
}

// UnitSize returns the size in bytes of one code unit: 2 for UTF-16, 1
// otherwise.
func (c *Codec) UnitSize() int {
	return c.unit
}

// Text decodes a line for display, dropping its terminator and any byte
// order mark. Undecodable bytes become U+FFFD; the result is never written
// back.
func (c *Codec) Text(line []byte) string {
	var s string
	if c.enc == unicode.UTF8 {
		s = string(line)
	} else if decoded, err := c.enc.NewDecoder().Bytes(line); err == nil {
		s = string(decoded)
	} else {
		s = string(line)
	}
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}

// NewLineReader returns a LineReader over r with a read buffer of size
// bytes.
func (c *Codec) NewLineReader(r io.Reader, size int) *LineReader {
	return &LineReader{
		br:    bufio.NewReaderSize(r, size),
		codec: c,
	}
}

// LineReader splits a stream into raw lines.
type LineReader struct {
	br    *bufio.Reader
	codec *Codec
	line  []byte
}

// ReadLine returns the next line including its terminator. A final line
// without a terminator is returned together with io.EOF; at the end of the
// stream it returns an empty line and io.EOF. The slice is only valid until
// the next call.
//
// In UTF-16 a trailing odd byte is returned as part of the last line.
func (lr *LineReader) ReadLine() ([]byte, error) {
	unit := lr.codec.unit
	lr.line = lr.line[:0]

	for {
		buf, err := lr.fill()
		if len(buf) == 0 {
			return lr.line, err
		}

		i := lr.terminator(buf)
		if i < 0 {
			lr.take(buf[:len(buf)-len(buf)%unit])
			continue
		}

		end := i + unit
		isCR := bytes.Equal(buf[i:end], lr.codec.cr)
		lr.take(buf[:end])
		if isCR {
			if next, err := lr.br.Peek(unit); err == nil && bytes.Equal(next, lr.codec.lf) {
				lr.take(next)
			}
		}
		return lr.line, nil
	}
}

// fill returns the buffered bytes, reading more when less than one code
// unit is buffered. At the end of the stream any leftover partial unit is
// moved into the line and an empty buffer is returned with the error.
func (lr *LineReader) fill() ([]byte, error) {
	unit := lr.codec.unit
	if lr.br.Buffered() < unit {
		if _, err := lr.br.Peek(unit); err != nil {
			rest, _ := lr.br.Peek(lr.br.Buffered())
			lr.take(rest)
			return nil, err
		}
	}
	return lr.br.Peek(lr.br.Buffered())
}

// terminator returns the offset of the first "\n" or "\r" code unit in buf,
// or -1.
func (lr *LineReader) terminator(buf []byte) int {
	c := lr.codec
	if c.unit == 1 {
		for i, b := range buf {
			if b == '\n' || b == '\r' {
				return i
			}
		}
		return -1
	}
	for i := 0; i+c.unit <= len(buf); i += c.unit {
		u := buf[i : i+c.unit]
		if bytes.Equal(u, c.lf) || bytes.Equal(u, c.cr) {
			return i
		}
	}
	return -1
}

func (lr *LineReader) take(b []byte) {
	lr.line = append(lr.line, b...)
	_, _ = lr.br.Discard(len(b))
}
