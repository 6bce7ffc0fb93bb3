package split

import (
	"bufio"
	"os"
	"path/filepath"
)

// partFile is one part being written. Content goes to a hidden temp file in
// the destination directory and only takes the part name on commit, so an
// aborted run never leaves a truncated file under a part name.
type partFile struct {
	finalPath string
	tmpPath   string
	file      *os.File
	bw        *bufio.Writer

	bytes int64
	lines int64
	rows  int64
}

func createPart(dir, name string, bufSize int) (*partFile, error) {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return nil, err
	}
	_ = os.Chmod(tmp.Name(), 0o644)

	return &partFile{
		finalPath: filepath.Join(dir, name),
		tmpPath:   tmp.Name(),
		file:      tmp,
		bw:        bufio.NewWriterSize(tmp, bufSize),
	}, nil
}

func (p *partFile) writeLine(line []byte, row bool) error {
	if _, err := p.bw.Write(line); err != nil {
		return err
	}
	p.bytes += int64(len(line))
	p.lines++
	if row {
		p.rows++
	}
	return nil
}

// commit flushes the part and renames it into place.
func (p *partFile) commit() error {
	if err := p.bw.Flush(); err != nil {
		p.abort()
		return err
	}
	if err := p.file.Sync(); err != nil {
		p.abort()
		return err
	}
	if err := p.file.Close(); err != nil {
		_ = os.Remove(p.tmpPath)
		return err
	}
	p.file = nil
	if err := os.Rename(p.tmpPath, p.finalPath); err != nil {
		_ = os.Remove(p.tmpPath)
		return err
	}
	return nil
}

// abort discards the part. Safe to call after a failed commit.
func (p *partFile) abort() {
	if p.file != nil {
		_ = p.file.Close()
		p.file = nil
	}
	_ = os.Remove(p.tmpPath)
}
