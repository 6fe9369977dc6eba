// Package arena implements the immutable node arena that stores trees of
// semi-structured documents.
//
// # Layout
//
// An Arena is a flat node table plus typed value pools:
//
//   - nodes: one entry per value, holding its tag, a payload word and a
//     child count
//   - keys: parallel to nodes; the interned field name of object children
//   - strings: a per-arena pool.Interner for string values and field names
//   - ints: Int64, Date (days), DateTime (microseconds), Duration (nanoseconds)
//   - floats, binary: Float64 and Binary payloads
//
// Container nodes own a contiguous run of child NodeIDs. Every offset
// computation above the arena (row access, column export) relies on it:
// the i-th element of an array node is FirstChild + i.
//
// # Lifecycle
//
// Arenas are produced by a Builder and never mutated afterwards, so any
// number of goroutines may read one concurrently. Handles that share an
// arena call Retain; Release drops a reference and frees the pools when the
// last one is gone.
package arena

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/tugtool/tugtool-sub001/pkg/pool"
	"github.com/tugtool/tugtool-sub001/pkg/value"
)

// NodeID is a positional reference into one arena's node table. It is
// meaningless outside the arena that produced it.
type NodeID uint32

// NoNode marks the absence of a node (a Missing cell).
const NoNode NodeID = math.MaxUint32

const noKey = math.MaxUint32

type node struct {
	tag   value.Tag
	data  uint32 // bool, pool index, or first child
	count uint32 // number of children for containers
}

var storageIDs atomic.Uint64

// Arena is an immutable node table with its value pools.
type Arena struct {
	id      uint64
	refs    atomic.Int64
	nodes   []node
	keys    []uint32
	strings *pool.Interner
	ints    []int64
	floats  []float64
	binary  [][]byte
	roots   []NodeID
}

// StorageID returns a process-unique identifier of this arena's storage.
// Two handles with the same StorageID share nodes and pools.
func (a *Arena) StorageID() uint64 { return a.id }

// Retain adds a reference and returns a.
func (a *Arena) Retain() *Arena {
	a.refs.Add(1)
	return a
}

// Release drops a reference and returns how many remain. The pools are
// dropped with the last reference. Releasing an arena with no references
// left panics.
func (a *Arena) Release() int64 {
	n := a.refs.Add(-1)
	if n < 0 {
		panic("arena: Release called more times than Retain")
	}
	if n == 0 {
		a.nodes, a.keys, a.ints, a.floats, a.binary, a.roots = nil, nil, nil, nil, nil, nil
		a.strings = pool.NewInterner(0)
	}
	return n
}

// Refs returns the current reference count.
func (a *Arena) Refs() int64 { return a.refs.Load() }

// Len returns the number of nodes.
func (a *Arena) Len() int { return len(a.nodes) }

// Roots returns the document roots in insertion order. The slice must not
// be modified.
func (a *Arena) Roots() []NodeID { return a.roots }

// Valid reports whether id addresses a node of this arena.
func (a *Arena) Valid(id NodeID) bool { return int64(id) < int64(len(a.nodes)) }

// Tag returns the tag of node id.
func (a *Arena) Tag(id NodeID) value.Tag { return a.nodes[id].tag }

// ChildCount returns the number of children of a container node, or 0.
func (a *Arena) ChildCount(id NodeID) int {
	n := a.nodes[id]
	if !n.tag.IsContainer() {
		return 0
	}
	return int(n.count)
}

// FirstChild returns the first child of a container node. Children occupy
// FirstChild .. FirstChild+ChildCount-1. For leaves and empty containers it
// returns NoNode.
func (a *Arena) FirstChild(id NodeID) NodeID {
	n := a.nodes[id]
	if !n.tag.IsContainer() || n.count == 0 {
		return NoNode
	}
	return NodeID(n.data)
}

// Child returns the i-th child of a container node.
func (a *Arena) Child(id NodeID, i int) (NodeID, bool) {
	n := a.nodes[id]
	if !n.tag.IsContainer() || i < 0 || i >= int(n.count) {
		return NoNode, false
	}
	return NodeID(n.data) + NodeID(i), true
}

// Key returns the field name of an object child.
func (a *Arena) Key(child NodeID) (string, bool) {
	k := a.keys[child]
	if k == noKey {
		return "", false
	}
	return a.strings.Lookup(k), true
}

// FieldNames returns the field names of an object node in document order.
func (a *Arena) FieldNames(id NodeID) []string {
	if a.Tag(id) != value.TagObject {
		return nil
	}
	n := a.nodes[id]
	names := make([]string, n.count)
	for i := range names {
		names[i] = a.strings.Lookup(a.keys[n.data+uint32(i)])
	}
	return names
}

// Lookup returns the child of object id stored under name.
func (a *Arena) Lookup(id NodeID, name string) (NodeID, bool) {
	n := a.nodes[id]
	if n.tag != value.TagObject {
		return NoNode, false
	}
	k, ok := a.strings.Find(name)
	if !ok {
		return NoNode, false
	}
	for i := uint32(0); i < n.count; i++ {
		if a.keys[n.data+i] == k {
			return NodeID(n.data + i), true
		}
	}
	return NoNode, false
}

// PoolIndex returns the position of a leaf's payload in its pool: the
// interner id for strings, the index into Ints, Floats or Binaries for the
// other pooled tags. Bool and Null have no pool and return the NodeID.
func (a *Arena) PoolIndex(id NodeID) uint32 {
	n := a.nodes[id]
	switch n.tag {
	case value.TagNull, value.TagBool:
		return uint32(id)
	}
	return n.data
}

// Ints returns the integer pool. It must not be modified.
func (a *Arena) Ints() []int64 { return a.ints }

// Floats returns the float pool. It must not be modified.
func (a *Arena) Floats() []float64 { return a.floats }

// Binaries returns the binary pool. It must not be modified.
func (a *Arena) Binaries() [][]byte { return a.binary }

// Strings returns the string interner.
func (a *Arena) Strings() *pool.Interner { return a.strings }

// Bool returns the payload of a Bool node.
func (a *Arena) Bool(id NodeID) (bool, bool) {
	n := a.nodes[id]
	return n.data != 0, n.tag == value.TagBool
}

// Int64 returns the payload of an Int64 node.
func (a *Arena) Int64(id NodeID) (int64, bool) {
	n := a.nodes[id]
	if n.tag != value.TagInt64 {
		return 0, false
	}
	return a.ints[n.data], true
}

// Float64 returns the payload of a Float64 node.
func (a *Arena) Float64(id NodeID) (float64, bool) {
	n := a.nodes[id]
	if n.tag != value.TagFloat64 {
		return 0, false
	}
	return a.floats[n.data], true
}

// String returns the payload of a String node.
func (a *Arena) String(id NodeID) (string, bool) {
	n := a.nodes[id]
	if n.tag != value.TagString {
		return "", false
	}
	return a.strings.Lookup(n.data), true
}

// Binary returns the payload of a Binary node.
func (a *Arena) Binary(id NodeID) ([]byte, bool) {
	n := a.nodes[id]
	if n.tag != value.TagBinary {
		return nil, false
	}
	return a.binary[n.data], true
}

// Raw returns the integer payload of Int64, Date, DateTime and Duration
// nodes.
func (a *Arena) Raw(id NodeID) (int64, bool) {
	n := a.nodes[id]
	switch n.tag {
	case value.TagInt64, value.TagDate, value.TagDateTime, value.TagDuration:
		return a.ints[n.data], true
	}
	return 0, false
}

// Value converts node id and its subtree to a value.Value. NoNode converts
// to Missing.
func (a *Arena) Value(id NodeID) value.Value {
	if id == NoNode {
		return value.Missing()
	}
	n := a.nodes[id]
	switch n.tag {
	case value.TagNull:
		return value.Null()
	case value.TagBool:
		return value.Bool(n.data != 0)
	case value.TagInt64:
		return value.Int64(a.ints[n.data])
	case value.TagFloat64:
		return value.Float64(a.floats[n.data])
	case value.TagString:
		return value.String(a.strings.Lookup(n.data))
	case value.TagBinary:
		return value.Binary(a.binary[n.data])
	case value.TagDate:
		return value.DateFromDays(a.ints[n.data])
	case value.TagDateTime:
		return value.DateTimeFromMicros(a.ints[n.data])
	case value.TagDuration:
		return value.Duration(time.Duration(a.ints[n.data]))
	case value.TagArray:
		elems := make([]value.Value, n.count)
		for i := range elems {
			elems[i] = a.Value(NodeID(n.data + uint32(i)))
		}
		return value.Array(elems...)
	case value.TagObject:
		fields := make([]value.Field, n.count)
		for i := range fields {
			child := NodeID(n.data + uint32(i))
			fields[i] = value.Field{Name: a.strings.Lookup(a.keys[child]), Value: a.Value(child)}
		}
		return value.Object(fields...)
	}
	return value.Missing()
}

// MemoryUsage estimates the bytes held by the arena.
func (a *Arena) MemoryUsage() int64 {
	total := int64(len(a.nodes))*12 + int64(len(a.keys))*4
	total += int64(len(a.ints))*8 + int64(len(a.floats))*8
	for _, b := range a.binary {
		total += int64(len(b)) + 24
	}
	total += a.strings.MemoryUsage()
	total += int64(len(a.roots)) * 4
	return total
}
