// Package export writes model time series to flat files: CSV, XLSX and PNG
// line charts. Paths ending in .gz or .zst are compressed transparently.
package export

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rotisserie/eris"
)

type compressedFile struct {
	io.WriteCloser
	f *os.File
}

func (c *compressedFile) Close() error {
	if err := c.WriteCloser.Close(); err != nil {
		c.f.Close()
		return err
	}
	return c.f.Close()
}

// Create creates path, and any missing parent directories, for writing.
func Create(path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "create dir %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "create %s", path)
	}

	switch {
	case strings.HasSuffix(path, ".gz"):
		return &compressedFile{WriteCloser: gzip.NewWriter(f), f: f}, nil
	case strings.HasSuffix(path, ".zst"):
		zw, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, eris.Wrap(err, "zstd writer")
		}
		return &compressedFile{WriteCloser: zw, f: f}, nil
	}
	return f, nil
}

type decompressedFile struct {
	io.Reader
	closeFn func()
	f       *os.File
}

func (d *decompressedFile) Close() error {
	if d.closeFn != nil {
		d.closeFn()
	}
	return d.f.Close()
}

// Open opens a file written by Create.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}

	switch {
	case strings.HasSuffix(path, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, eris.Wrap(err, "gzip reader")
		}
		return &decompressedFile{Reader: zr, closeFn: func() { zr.Close() }, f: f}, nil
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, eris.Wrap(err, "zstd reader")
		}
		return &decompressedFile{Reader: zr, closeFn: zr.Close, f: f}, nil
	}
	return f, nil
}
