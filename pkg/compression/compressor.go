// Package compression wraps document input and export output in a
// compression codec chosen by file extension.
//
// # Overview
//
// Supported algorithms and their extensions:
//   - Gzip: .gz, .gzip
//   - Zstd: .zst, .zstd
//   - LZ4: .lz4
//   - Snappy: .sz (framed stream)
//   - S2: .s2
//   - Deflate: .zz, .deflate
//
// Anything else is read and written as-is.
//
// # Basic Usage
//
//	r, err := compression.Open("events.ndjson.zst")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//	a, err := json.Parse(r)
//
//	w, err := compression.Create("out.arrow.lz4", compression.Default)
//	defer w.Close()
package compression

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/tugtool/tugtool-sub001/pkg/errors"
	"github.com/tugtool/tugtool-sub001/pkg/mmap"
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
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
	// Deflate represents raw deflate compression
	Deflate Algorithm = "deflate"
)

// Level controls the trade-off between speed and ratio when writing.
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

var extensions = map[string]Algorithm{
	".gz":      Gzip,
	".gzip":    Gzip,
	".zst":     Zstd,
	".zstd":    Zstd,
	".lz4":     LZ4,
	".sz":      Snappy,
	".s2":      S2,
	".zz":      Deflate,
	".deflate": Deflate,
}

// Detect returns the algorithm implied by the extension of path, or None.
func Detect(path string) Algorithm {
	if alg, ok := extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return alg
	}
	return None
}

// TrimExt removes a compression extension from path, so "a.json.gz"
// becomes "a.json".
func TrimExt(path string) string {
	if Detect(path) == None {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// NewReader returns a reader that decompresses src with alg. Closing it
// does not close src.
func NewReader(src io.Reader, alg Algorithm) (io.ReadCloser, error) {
	switch alg {
	case None, "":
		return io.NopCloser(src), nil
	case Gzip:
		r, err := gzip.NewReader(src)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid gzip header")
		}
		return r, nil
	case Zstd:
		dec, err := zstd.NewReader(src)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to create zstd reader")
		}
		return dec.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(src)), nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(src)), nil
	case S2:
		return io.NopCloser(s2.NewReader(src)), nil
	case Deflate:
		return flate.NewReader(src), nil
	}
	return nil, errors.Newf(errors.ErrorTypeValidation, "unsupported compression algorithm: %s", alg)
}

// NewWriter returns a writer that compresses into dst with alg. Close
// flushes the codec but does not close dst.
func NewWriter(dst io.Writer, alg Algorithm, level Level) (io.WriteCloser, error) {
	switch alg {
	case None, "":
		return nopWriteCloser{dst}, nil
	case Gzip:
		w, err := gzip.NewWriterLevel(dst, mapGzipLevel(level))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create gzip writer")
		}
		return w, nil
	case Zstd:
		enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(mapZstdLevel(level)))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create zstd writer")
		}
		return enc, nil
	case LZ4:
		w := lz4.NewWriter(dst)
		if err := w.Apply(lz4.CompressionLevelOption(mapLZ4Level(level))); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to configure lz4 writer")
		}
		return w, nil
	case Snappy:
		return snappy.NewBufferedWriter(dst), nil
	case S2:
		return s2.NewWriter(dst), nil
	case Deflate:
		w, err := flate.NewWriter(dst, mapDeflateLevel(level))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create deflate writer")
		}
		return w, nil
	}
	return nil, errors.Newf(errors.ErrorTypeValidation, "unsupported compression algorithm: %s", alg)
}

// Open maps path into memory and decompresses it according to its
// extension. Closing the result unmaps the file.
func Open(path string) (io.ReadCloser, error) {
	f, err := mmap.NewReader(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f, Detect(path))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &stackedCloser{Reader: r, closers: []io.Closer{r, f}}, nil
}

// Create creates path and compresses everything written to it according
// to its extension. Close flushes the codec and closes the file.
func Create(path string, level Level) (io.WriteCloser, error) {
	f, err := os.Create(path) //nolint:gosec // G304: path is chosen by the caller
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output").WithDetail("path", path)
	}
	w, err := NewWriter(f, Detect(path), level)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &stackedCloser{Writer: w, closers: []io.Closer{w, f}}, nil
}

// Compress compresses data in memory.
func Compress(data []byte, alg Algorithm, level Level) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, alg, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(data []byte, alg Algorithm) ([]byte, error) {
	r, err := NewReader(bytes.NewReader(data), alg)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out, err := io.ReadAll(r) //nolint:gosec // G110: input size is bounded by the caller
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decompress").WithDetail("algorithm", alg)
	}
	return out, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// stackedCloser closes its codec before the underlying file.
type stackedCloser struct {
	io.Reader
	io.Writer
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
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

func mapDeflateLevel(level Level) int {
	switch level {
	case Fastest:
		return flate.BestSpeed
	case Best:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}
