//go:build darwin

package mmap

import (
	"os"
	"syscall"
	"unsafe"
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
	// On macOS, we need to use the madvise system call directly
	_, _, err := syscall.Syscall(syscall.SYS_MADVISE, uintptr(unsafe.Pointer(&b[0])), uintptr(len(b)), uintptr(advice))
	if err != 0 {
		return err
	}
	return nil
}

const (
	// Memory advice flags
	MadvSequential = 2 // Sequential page references
)
