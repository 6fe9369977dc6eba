// Package mmap provides read-only memory-mapped file access for document
// input.
package mmap

import (
	"bytes"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/tugtool/tugtool-sub001/pkg/errors"
	"github.com/tugtool/tugtool-sub001/pkg/logger"
)

// Reader exposes the contents of a memory-mapped file. It implements
// io.Reader over the mapping; ReadAll returns the mapping itself.
type Reader struct {
	*bytes.Reader

	file     *os.File
	data     []byte
	fileSize int64
	mapped   bool

	closeOnce sync.Once
	closeErr  error
}

// NewReader maps filename read-only. Empty files produce an empty reader
// without a mapping.
func NewReader(filename string) (*Reader, error) {
	file, err := os.Open(filename) //nolint:gosec // G304: path is chosen by the caller
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open file").WithDetail("path", filename)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat file").WithDetail("path", filename)
	}

	r := &Reader{file: file, fileSize: stat.Size()}
	if r.fileSize > 0 {
		data, err := mmap(file, int(r.fileSize))
		if err != nil {
			file.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to mmap file").WithDetail("path", filename)
		}
		r.data, r.mapped = data, true

		if err := madvise(data, MadvSequential); err != nil {
			logger.Debug("madvise failed", zap.String("path", filename), zap.Error(err))
		}
	}
	r.Reader = bytes.NewReader(r.data)
	return r, nil
}

// ReadAll returns the mapped bytes. They stay valid until Close.
func (r *Reader) ReadAll() []byte { return r.data }

// Size returns the file size in bytes.
func (r *Reader) Size() int64 { return r.fileSize }

// Close unmaps the file and closes it. Further calls return the first
// result.
func (r *Reader) Close() error {
	r.closeOnce.Do(func() {
		if r.mapped {
			r.closeErr = munmap(r.data)
		}
		if err := r.file.Close(); err != nil && r.closeErr == nil {
			r.closeErr = err
		}
		r.data = nil
		r.Reader = bytes.NewReader(nil)
	})
	return r.closeErr
}
