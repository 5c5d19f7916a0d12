package codec

import (
	"bufio"
	"io"
	"os"

	"go.uber.org/multierr"

	"github.com/ajitpratap0/trackpool/pkg/compression"
	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/genome"
	"github.com/ajitpratap0/trackpool/pkg/track"
)

// Stdin is the path that reads a track from standard input.
const Stdin = "-"

const readBufferSize = 64 * 1024

// OpenStream opens path (or Stdin), decompresses it if needed and reads its
// header. The returned reader yields the remaining records in file order.
func OpenStream(path string, c Codec, fallback *genome.Dictionary) (track.FeatureReader, track.Opened, error) {
	var (
		src  io.Reader
		file *os.File
	)
	if path == Stdin {
		src = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, track.Opened{}, errors.Wrap(err, errors.ErrorTypeFile, "opening track file").
				WithDetail("path", path)
		}
		file, src = f, f
	}

	raw := bufio.NewReaderSize(src, readBufferSize)
	alg := compression.Detect(raw, path)
	dec, err := compression.NewReader(raw, alg)
	if err != nil {
		closeFile(file)
		return nil, track.Opened{}, err
	}

	r, opened, err := NewReader(dec, c, fallback)
	if err != nil {
		_ = multierr.Append(dec.Close(), closeFile(file))
		return nil, track.Opened{}, err
	}
	r.closers = append(r.closers, dec)
	if file != nil {
		r.closers = append(r.closers, file)
	}
	return r, opened, nil
}

// LineReader decodes records from an uncompressed line stream.
type LineReader struct {
	codec   Codec
	dict    *genome.Dictionary
	br      *bufio.Reader
	pending string
	line    int
	closers []io.Closer
	closed  bool
}

// NewReader reads the header from r and returns a reader over the records
// that follow it.
func NewReader(r io.Reader, c Codec, fallback *genome.Dictionary) (*LineReader, track.Opened, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, readBufferSize)
	}
	h, first, err := ReadHeader(br, c)
	if err != nil {
		return nil, track.Opened{}, err
	}
	dict, err := h.Dictionary(fallback)
	if err != nil {
		return nil, track.Opened{}, err
	}
	lr := &LineReader{
		codec:   c,
		dict:    dict,
		br:      br,
		pending: first,
		line:    len(h.Lines),
	}
	return lr, track.Opened{
		Header:     track.Header{Format: c.Name(), Lines: h.Lines},
		Dictionary: dict,
	}, nil
}

// Read implements track.FeatureReader.
func (r *LineReader) Read() (track.Feature, error) {
	if r.closed {
		return nil, errors.New(errors.ErrorTypeClosed, "reader is closed")
	}
	for {
		line, err := r.next()
		if err != nil {
			return nil, err
		}
		r.line++
		f, err := r.codec.Decode(trimEOL(line), r.dict)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "decoding record").
				WithDetail("line", r.line)
		}
		if f != nil {
			return f, nil
		}
	}
}

func (r *LineReader) next() (string, error) {
	if r.pending != "" {
		line := r.pending
		r.pending = ""
		return line, nil
	}
	line, err := r.br.ReadString('\n')
	if line != "" {
		return line, nil
	}
	if err == nil || err == io.EOF {
		return "", io.EOF
	}
	return "", errors.Wrap(err, errors.ErrorTypeFile, "reading track")
}

// Close releases the decompressor and the underlying file.
func (r *LineReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	var err error
	for _, c := range r.closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}

func closeFile(f *os.File) error {
	if f == nil {
		return nil
	}
	return f.Close()
}
