// Package compression wraps the codecs that track files and index sidecars
// may be stored with. Every algorithm is exposed as a stream (NewReader,
// NewWriter) and as whole-buffer Compress/Decompress helpers.
//
// # Algorithm Selection
//
//   - Gzip: what most annotation files ship as (.gz, .bgz)
//   - Zstd: best ratio, used for index sidecars
//   - S2/Snappy: fastest, framed stream format
//   - LZ4: fast, frame format
//
// Detection goes by magic bytes first (Sniff) and falls back to the file
// extension (FromPath).
package compression

import (
	"bytes"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/ajitpratap0/trackpool/pkg/errors"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents framed snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents framed s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
)

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

// ParseAlgorithm maps a configuration string to an Algorithm. The empty
// string is None.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(s); a {
	case "":
		return None, nil
	case None, Gzip, Snappy, LZ4, Zstd, S2:
		return a, nil
	}
	return "", errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", s)
}

var (
	zstdEncoders sync.Pool
	zstdDecoders = sync.Pool{New: func() interface{} {
		dec, _ := zstd.NewReader(nil)
		return dec
	}}
)

// Compress compresses data in alg's stream format.
func Compress(data []byte, alg Algorithm, level Level) ([]byte, error) {
	if alg == Zstd {
		enc, _ := zstdEncoders.Get().(*zstd.Encoder)
		if enc == nil {
			var err error
			if enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(mapZstdLevel(level))); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeInternal, "creating zstd encoder")
			}
		}
		defer zstdEncoders.Put(enc)
		return enc.EncodeAll(data, nil), nil
	}

	var buf bytes.Buffer
	w, err := NewWriter(&buf, alg, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "compressing with "+string(alg))
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "compressing with "+string(alg))
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(data []byte, alg Algorithm) ([]byte, error) {
	if alg == Zstd {
		dec := zstdDecoders.Get().(*zstd.Decoder)
		defer zstdDecoders.Put(dec)
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "decompressing zstd")
		}
		return out, nil
	}

	r, err := NewReader(bytes.NewReader(data), alg)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "decompressing "+string(alg))
	}
	return out, nil
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
