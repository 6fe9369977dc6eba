package arena

import (
	"go.uber.org/zap"

	"github.com/tugtool/tugtool-sub001/pkg/logger"
	"github.com/tugtool/tugtool-sub001/pkg/metrics"
	"github.com/tugtool/tugtool-sub001/pkg/pool"
	"github.com/tugtool/tugtool-sub001/pkg/value"
)

// Builder writes documents into a new arena. A Builder is used by one
// goroutine and becomes unusable after Finish.
//
// Each container reserves the contiguous run for all its children before
// any child subtree is written, so children of one node are always
// adjacent even when they are containers themselves.
type Builder struct {
	a        *Arena
	finished bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		a: &Arena{
			strings: pool.NewInterner(64),
		},
	}
}

// AddDocument writes v as a new document and returns its root. Missing
// is written as Null. Missing fields of objects are omitted and Missing
// array elements are written as Null.
func (b *Builder) AddDocument(v value.Value) NodeID {
	id := b.alloc(1)
	b.set(id, v)
	b.a.roots = append(b.a.roots, id)
	return id
}

// CopyDocument copies the subtree rooted at id in src as a new document
// and returns its root.
func (b *Builder) CopyDocument(src *Arena, id NodeID) NodeID {
	root := b.alloc(1)
	b.copyNode(root, src, id)
	b.a.roots = append(b.a.roots, root)
	return root
}

// Len returns the number of nodes written so far.
func (b *Builder) Len() int { return len(b.a.nodes) }

// Finish seals the arena and returns it with one reference held.
func (b *Builder) Finish() *Arena {
	if b.finished {
		panic("arena: Finish called twice")
	}
	b.finished = true

	a := b.a
	b.a = nil
	a.strings.Freeze()
	a.id = storageIDs.Add(1)
	a.refs.Store(1)

	metrics.ArenasBuilt.Inc()
	metrics.NodesBuilt.Add(float64(len(a.nodes)))
	logger.Debug("arena finished",
		zap.Uint64("storage_id", a.id),
		zap.Int("nodes", len(a.nodes)),
		zap.Int("documents", len(a.roots)),
		zap.Int("strings", a.strings.Len()))
	return a
}

func (b *Builder) alloc(n int) NodeID {
	if b.finished {
		panic("arena: write after Finish")
	}
	start := NodeID(len(b.a.nodes))
	for i := 0; i < n; i++ {
		b.a.nodes = append(b.a.nodes, node{})
		b.a.keys = append(b.a.keys, noKey)
	}
	return start
}

func (b *Builder) setKey(id NodeID, name string) {
	b.a.keys[id] = b.a.strings.Intern(name)
}

func (b *Builder) setInt(id NodeID, tag value.Tag, i int64) {
	b.a.nodes[id] = node{tag: tag, data: uint32(len(b.a.ints))}
	b.a.ints = append(b.a.ints, i)
}

func (b *Builder) set(id NodeID, v value.Value) {
	tag, ok := v.Tag()
	if !ok {
		tag = value.TagNull
	}

	switch tag {
	case value.TagNull:
		b.a.nodes[id] = node{tag: value.TagNull}
	case value.TagBool:
		x, _ := v.AsBool()
		n := node{tag: value.TagBool}
		if x {
			n.data = 1
		}
		b.a.nodes[id] = n
	case value.TagInt64, value.TagDate, value.TagDateTime, value.TagDuration:
		b.setInt(id, tag, v.Raw())
	case value.TagFloat64:
		f, _ := v.AsFloat64()
		b.a.nodes[id] = node{tag: value.TagFloat64, data: uint32(len(b.a.floats))}
		b.a.floats = append(b.a.floats, f)
	case value.TagString:
		s, _ := v.AsString()
		b.a.nodes[id] = node{tag: value.TagString, data: b.a.strings.Intern(s)}
	case value.TagBinary:
		raw, _ := v.AsBinary()
		cp := make([]byte, len(raw))
		copy(cp, raw)
		b.a.nodes[id] = node{tag: value.TagBinary, data: uint32(len(b.a.binary))}
		b.a.binary = append(b.a.binary, cp)
	case value.TagArray:
		elems := v.Elems()
		start := b.alloc(len(elems))
		b.a.nodes[id] = node{tag: value.TagArray, data: uint32(start), count: uint32(len(elems))}
		for i, e := range elems {
			b.set(start+NodeID(i), e)
		}
	case value.TagObject:
		fields := make([]value.Field, 0, v.Len())
		for _, f := range v.Fields() {
			if f.Value.Present() {
				fields = append(fields, f)
			}
		}
		start := b.alloc(len(fields))
		b.a.nodes[id] = node{tag: value.TagObject, data: uint32(start), count: uint32(len(fields))}
		for i, f := range fields {
			b.setKey(start+NodeID(i), f.Name)
			b.set(start+NodeID(i), f.Value)
		}
	}
}

func (b *Builder) copyNode(dst NodeID, src *Arena, id NodeID) {
	n := src.nodes[id]
	switch n.tag {
	case value.TagNull, value.TagBool:
		b.a.nodes[dst] = n
	case value.TagInt64, value.TagDate, value.TagDateTime, value.TagDuration:
		b.setInt(dst, n.tag, src.ints[n.data])
	case value.TagFloat64:
		b.a.nodes[dst] = node{tag: value.TagFloat64, data: uint32(len(b.a.floats))}
		b.a.floats = append(b.a.floats, src.floats[n.data])
	case value.TagString:
		b.a.nodes[dst] = node{tag: value.TagString, data: b.a.strings.Intern(src.strings.Lookup(n.data))}
	case value.TagBinary:
		b.a.nodes[dst] = node{tag: value.TagBinary, data: uint32(len(b.a.binary))}
		b.a.binary = append(b.a.binary, src.binary[n.data])
	case value.TagArray, value.TagObject:
		start := b.alloc(int(n.count))
		b.a.nodes[dst] = node{tag: n.tag, data: uint32(start), count: n.count}
		for i := uint32(0); i < n.count; i++ {
			child := NodeID(n.data + i)
			if n.tag == value.TagObject {
				b.setKey(start+NodeID(i), src.strings.Lookup(src.keys[child]))
			}
			b.copyNode(start+NodeID(i), src, child)
		}
	}
}
