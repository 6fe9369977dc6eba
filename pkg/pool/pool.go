// Package pool provides typed object pooling and string interning for tabula.
//
// The package provides:
//   - Generic type-safe object pooling with Pool[T]
//   - Pre-configured pools for scratch buffers used by tabular operations
//   - Interner, the per-arena string pool that deduplicates field names and
//     string values while an arena is being built
//
// Example usage:
//
//	buf := pool.ByteSlicePool.Get()
//	defer pool.ByteSlicePool.Put(buf)
//
//	in := pool.NewInterner(64)
//	id := in.Intern("name")
//	in.Lookup(id) // "name"
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool represents a generic object pool with type safety.
// It wraps sync.Pool with statistics tracking and an optional reset
// function. The pool is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	new   func() T
	reset func(T) T
	stats struct {
		allocated int64
		inUse     int64
		hits      int64
	}
}

// New creates a new typed pool. reset, when non-nil, is applied to objects
// on Put and its result is what gets pooled, so slice types can be
// truncated to zero length.
//
// Example:
//
//	p := New(
//	    func() []int { return make([]int, 0, 256) },
//	    func(s []int) []int { return s[:0] },
//	)
func New[T any](new func() T, reset func(T) T) *Pool[T] {
	p := &Pool[T]{
		new:   new,
		reset: reset,
	}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return new()
	}
	return p
}

// Get retrieves an object from the pool, allocating a new one if needed.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	obj := p.pool.Get().(T)
	atomic.AddInt64(&p.stats.hits, 1)
	return obj
}

// Put returns an object to the pool for reuse.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		obj = p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns the number of objects allocated by the pool, currently
// checked out, and the number of Get calls served.
func (p *Pool[T]) Stats() (allocated, inUse, hits int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.hits)
}

const maxPooledCap = 1 << 20

var (
	// ByteSlicePool provides scratch byte slices for canonical key encoding.
	ByteSlicePool = New(
		func() []byte {
			return make([]byte, 0, 256)
		},
		func(b []byte) []byte {
			if cap(b) > maxPooledCap {
				return make([]byte, 0, 256)
			}
			return b[:0]
		},
	)

	// IntSlicePool provides scratch position slices.
	IntSlicePool = New(
		func() []int {
			return make([]int, 0, 256)
		},
		func(s []int) []int {
			if cap(s) > maxPooledCap {
				return make([]int, 0, 256)
			}
			return s[:0]
		},
	)
)
