package pool

import (
	"sync"
	"sync/atomic"
)

// Interner assigns dense uint32 ids to distinct strings. An arena builder
// owns one Interner; once the arena is finished the interner is frozen and
// only Lookup is used, so reads need no locking on the hot path.
type Interner struct {
	mu      sync.RWMutex
	ids     map[string]uint32
	strings []string
	frozen  bool
	hits    int64
	misses  int64
}

// NewInterner creates an interner with room for capacity strings.
func NewInterner(capacity int) *Interner {
	return &Interner{
		ids:     make(map[string]uint32, capacity),
		strings: make([]string, 0, capacity),
	}
}

// Intern returns the id of s, adding it if needed. It panics if the
// interner has been frozen.
func (p *Interner) Intern(s string) uint32 {
	// Fast path: check if already interned
	p.mu.RLock()
	if id, ok := p.ids[s]; ok {
		p.mu.RUnlock()
		atomic.AddInt64(&p.hits, 1)
		return id
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.frozen {
		panic("pool: intern into frozen interner")
	}

	// Double-check after acquiring write lock
	if id, ok := p.ids[s]; ok {
		atomic.AddInt64(&p.hits, 1)
		return id
	}

	id := uint32(len(p.strings))
	p.ids[s] = id
	p.strings = append(p.strings, s)
	atomic.AddInt64(&p.misses, 1)
	return id
}

// InternBytes interns a byte slice as a string.
func (p *Interner) InternBytes(b []byte) uint32 {
	return p.Intern(string(b))
}

// Lookup returns the string with the given id.
func (p *Interner) Lookup(id uint32) string {
	if p.frozen {
		return p.strings[id]
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.strings[id]
}

// Find returns the id of s without interning it.
func (p *Interner) Find(s string) (uint32, bool) {
	if !p.frozen {
		p.mu.RLock()
		defer p.mu.RUnlock()
	}
	id, ok := p.ids[s]
	return id, ok
}

// Freeze makes the interner read-only.
func (p *Interner) Freeze() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frozen = true
}

// Len returns the number of distinct strings.
func (p *Interner) Len() int {
	if !p.frozen {
		p.mu.RLock()
		defer p.mu.RUnlock()
	}
	return len(p.strings)
}

// Stats returns interner statistics.
func (p *Interner) Stats() (size, hits, misses int64) {
	return int64(p.Len()),
		atomic.LoadInt64(&p.hits),
		atomic.LoadInt64(&p.misses)
}

// MemoryUsage estimates the bytes held by interned strings.
func (p *Interner) MemoryUsage() int64 {
	var total int64
	for i := 0; i < p.Len(); i++ {
		total += int64(len(p.Lookup(uint32(i)))) + 16
	}
	return total
}
