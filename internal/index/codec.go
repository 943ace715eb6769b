package index

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrBadFormat is returned by Read for input that is not an index artifact.
var ErrBadFormat = errors.New("not a songrec index")

// On-disk layout, little-endian: a header naming what comet needs to allocate the index
// before it can read its own serialisation, then comet's FlatIndex bytes.
//
//	magic    [4]byte "SRIX"
//	version  uint32 (2)
//	dim      uint32
//	metricN  uint32, metric [metricN]byte
//	count    uint32
//	payload  comet FlatIndex.WriteTo
var magic = [4]byte{'S', 'R', 'I', 'X'}

const (
	formatVersion = 2
	maxMetricLen  = 32
)

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteTo serialises the index. It implements io.WriterTo.
func (x *Index) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)

	write := func(v any) error { return binary.Write(bw, binary.LittleEndian, v) }

	if _, err := bw.Write(magic[:]); err != nil {
		return cw.n, fmt.Errorf("write magic: %w", err)
	}
	if err := write(uint32(formatVersion)); err != nil {
		return cw.n, fmt.Errorf("write version: %w", err)
	}
	if err := write(uint32(x.dim)); err != nil {
		return cw.n, fmt.Errorf("write dim: %w", err)
	}
	if err := write(uint32(len(x.metric))); err != nil {
		return cw.n, fmt.Errorf("write metric: %w", err)
	}
	if _, err := bw.WriteString(string(x.metric)); err != nil {
		return cw.n, fmt.Errorf("write metric: %w", err)
	}
	if err := write(uint32(x.count)); err != nil {
		return cw.n, fmt.Errorf("write count: %w", err)
	}
	if _, err := x.flat.WriteTo(bw); err != nil {
		return cw.n, fmt.Errorf("write vectors: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// Read decodes an index written by WriteTo and checks that its node ids are exactly the
// rows 0..count-1.
func Read(r io.Reader) (*Index, error) {
	br := bufio.NewReader(r)
	read := func(v any) error { return binary.Read(br, binary.LittleEndian, v) }

	var m [4]byte
	if _, err := io.ReadFull(br, m[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if m != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrBadFormat, m[:])
	}

	var version, dim, metricLen, count uint32
	if err := read(&version); err != nil {
		return nil, fmt.Errorf("%w: read version: %v", ErrBadFormat, err)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadFormat, version)
	}
	if err := read(&dim); err != nil {
		return nil, fmt.Errorf("%w: read dim: %v", ErrBadFormat, err)
	}
	if err := read(&metricLen); err != nil {
		return nil, fmt.Errorf("%w: read metric: %v", ErrBadFormat, err)
	}
	if metricLen == 0 || metricLen > maxMetricLen {
		return nil, fmt.Errorf("%w: metric name length %d", ErrBadFormat, metricLen)
	}
	name := make([]byte, metricLen)
	if _, err := io.ReadFull(br, name); err != nil {
		return nil, fmt.Errorf("%w: read metric: %v", ErrBadFormat, err)
	}
	metric, err := ParseMetric(string(name))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if err := read(&count); err != nil {
		return nil, fmt.Errorf("%w: read count: %v", ErrBadFormat, err)
	}

	idx, err := New(int(dim), metric)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if _, err := idx.flat.ReadFrom(br); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	idx.count = int(count)
	if err := idx.checkRows(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	return idx, nil
}

// checkRows asks comet for one more result than the header count; the answer must hold
// every row id in [0, count) exactly once.
func (x *Index) checkRows() error {
	if x.count == 0 {
		return nil
	}
	unit := make([]float32, x.dim)
	unit[0] = 1
	results, err := x.flat.NewSearch().WithQuery(unit).WithK(x.count + 1).Execute()
	if err != nil {
		return err
	}
	if len(results) != x.count {
		return fmt.Errorf("header says %d rows, payload holds %d", x.count, len(results))
	}
	seen := make([]bool, x.count)
	for _, r := range results {
		id := int(r.Node.ID())
		if id >= x.count || seen[id] {
			return fmt.Errorf("unexpected row id %d", id)
		}
		seen[id] = true
	}
	return nil
}
