package verify

import (
	"io"
	"os"

	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/textenc"
)

const readBufSize = 64 * 1024

// measurement is what one streaming pass over a file yields.
type measurement struct {
	bytes int64
	lines int64
	// first is the raw first line including its terminator, nil when not
	// requested or the file is empty.
	first []byte
}

// measure streams path once, counting lines the way the splitter cuts them.
// A final line without a terminator counts as a line. When sink is non-nil
// the file bytes are copied to it.
func measure(path string, codec *textenc.Codec, wantFirst bool, sink io.Writer) (measurement, error) {
	var m measurement

	f, err := os.Open(path)
	if err != nil {
		return m, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return m, err
	}
	m.bytes = info.Size()

	var raw io.Reader = f
	if sink != nil {
		raw = io.TeeReader(f, sink)
	}
	lr := codec.NewLineReader(raw, readBufSize)

	for {
		line, err := lr.ReadLine()
		if len(line) > 0 {
			if wantFirst && m.lines == 0 {
				m.first = append([]byte(nil), line...)
			}
			m.lines++
		}
		if err == io.EOF {
			return m, nil
		}
		if err != nil {
			return m, err
		}
	}
}
