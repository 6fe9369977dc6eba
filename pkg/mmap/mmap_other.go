//go:build !linux && !darwin

package mmap

import (
	"io"
	"os"
)

// mmap reads the file into memory on platforms without a mapping here.
func mmap(f *os.File, length int) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := f.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

func munmap([]byte) error { return nil }

func madvise([]byte, int) error { return nil }

const MadvSequential = 0
