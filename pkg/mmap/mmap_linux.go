//go:build linux

package mmap

import (
	"os"
	"syscall"
)

// mmap maps length bytes of f read-only
func mmap(f *os.File, length int) ([]byte, error) {
	return syscall.Mmap(int(f.Fd()), 0, length, syscall.PROT_READ, syscall.MAP_SHARED)
}

// munmap wraps the munmap system call
func munmap(b []byte) error {
	return syscall.Munmap(b)
}

// madvise wraps the madvise system call
func madvise(b []byte, advice int) error {
	return syscall.Madvise(b, advice)
}

const (
	// Memory advice flags
	MadvSequential = syscall.MADV_SEQUENTIAL
)
