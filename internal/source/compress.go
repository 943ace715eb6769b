package source

import (
	"errors"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Artifacts may be stored compressed; the codec is chosen by file suffix.
const (
	extGzip = ".gz"
	extZstd = ".zst"
	extLZ4  = ".lz4"
)

// Compressed reports whether name carries a known compression suffix.
func Compressed(name string) bool {
	return strings.HasSuffix(name, extGzip) || strings.HasSuffix(name, extZstd) || strings.HasSuffix(name, extLZ4)
}

// Decompress wraps rc in the decoder matching name's suffix. Closing the result closes rc.
// Names without a known suffix are returned unchanged.
func Decompress(name string, rc io.ReadCloser) (io.ReadCloser, error) {
	switch {
	case strings.HasSuffix(name, extGzip):
		zr, err := gzip.NewReader(rc)
		if err != nil {
			_ = rc.Close()
			return nil, err
		}
		return &stackedReader{Reader: zr, closers: []io.Closer{zr, rc}}, nil
	case strings.HasSuffix(name, extZstd):
		zr, err := zstd.NewReader(rc)
		if err != nil {
			_ = rc.Close()
			return nil, err
		}
		return &stackedReader{Reader: zr, closers: []io.Closer{zr.IOReadCloser(), rc}}, nil
	case strings.HasSuffix(name, extLZ4):
		return &stackedReader{Reader: lz4.NewReader(rc), closers: []io.Closer{rc}}, nil
	}
	return rc, nil
}

// Compress wraps w in the encoder matching name's suffix. The caller must Close the
// result to flush it; w itself is left open.
func Compress(name string, w io.Writer) (io.WriteCloser, error) {
	switch {
	case strings.HasSuffix(name, extGzip):
		return gzip.NewWriter(w), nil
	case strings.HasSuffix(name, extZstd):
		return zstd.NewWriter(w)
	case strings.HasSuffix(name, extLZ4):
		return lz4.NewWriter(w), nil
	}
	return nopWriteCloser{w}, nil
}

type stackedReader struct {
	io.Reader
	closers []io.Closer
}

func (r *stackedReader) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
