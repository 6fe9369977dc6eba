package tabular

import (
	"sync/atomic"

	"github.com/tugtool/tugtool-sub001/pkg/arena"
	"github.com/tugtool/tugtool-sub001/pkg/errors"
	"github.com/tugtool/tugtool-sub001/pkg/expr"
	"github.com/tugtool/tugtool-sub001/pkg/metrics"
	"github.com/tugtool/tugtool-sub001/pkg/value"
)

var collectionMetrics = metrics.NewCollector("collection")

// Collection is an ordered list of document roots in one arena. Row i of a
// collection is its i-th document; fields of the root object act as
// columns.
type Collection struct {
	arena  *arena.Arena
	roots  []arena.NodeID
	closed atomic.Bool
}

// NewCollection returns a collection over every document of a, in
// insertion order.
func NewCollection(a *arena.Arena) *Collection {
	return newCollection(a, a.Roots())
}

func newCollection(a *arena.Arena, roots []arena.NodeID) *Collection {
	return &Collection{arena: a.Retain(), roots: roots}
}

// Arena returns the backing arena.
func (c *Collection) Arena() *arena.Arena { return c.arena }

// StorageID identifies the backing storage. Collections derived by
// subsetting or reordering report the StorageID of their source.
func (c *Collection) StorageID() uint64 { return c.arena.StorageID() }

// Close releases this handle's reference to the arena. It is safe to call
// more than once.
func (c *Collection) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.arena.Release()
	}
}

// Len returns the number of documents.
func (c *Collection) Len() int { return len(c.roots) }

// Root returns the root node of document i.
func (c *Collection) Root(i int) (arena.NodeID, bool) {
	if i < 0 || i >= len(c.roots) {
		return arena.NoNode, false
	}
	return c.roots[i], true
}

// Roots returns the document roots. The slice must not be modified.
func (c *Collection) Roots() []arena.NodeID { return c.roots }

// Document returns document i as a value, or Missing if i is out of range.
func (c *Collection) Document(i int) value.Value {
	root, ok := c.Root(i)
	if !ok {
		return value.Missing()
	}
	return c.arena.Value(root)
}

// Row returns a handle on document i.
func (c *Collection) Row(i int) (Row, bool) {
	root, ok := c.Root(i)
	if !ok {
		return Row{}, false
	}
	return Row{a: c.arena, root: root, pos: i}, true
}

// Cell returns field name of document i. A document without the field
// yields Missing; an index out of range is an access error.
func (c *Collection) Cell(i int, name string) (value.Value, error) {
	row, ok := c.Row(i)
	if !ok {
		return value.Missing(), errors.Newf(errors.ErrorTypeAccess,
			"row %d out of range for collection of length %d", i, c.Len())
	}
	return row.Get(name), nil
}

// ColumnAsNodes returns the node of field name for every document, NoNode
// where a document lacks it. It fails if no document has the field.
func (c *Collection) ColumnAsNodes(name string) ([]arena.NodeID, error) {
	nodes := make([]arena.NodeID, len(c.roots))
	found := false
	for i, root := range c.roots {
		id, ok := c.arena.Lookup(root, name)
		if ok {
			found = true
		}
		nodes[i] = id
	}
	if !found {
		return nil, errors.Newf(errors.ErrorTypeAccess, "unknown column %q", name).
			WithDetail("column", name)
	}
	return nodes, nil
}

// ColumnAsArray exports field name across documents as a typed array.
func (c *Collection) ColumnAsArray(name string) (*ColumnArray, error) {
	nodes, err := c.ColumnAsNodes(name)
	if err != nil {
		return nil, err
	}
	return newColumnArray(c.arena, name, nodes)
}

func (c *Collection) exprRow(i int) expr.Row {
	return Row{a: c.arena, root: c.roots[i], pos: i}
}

func (c *Collection) derive(rows []int) *Collection {
	roots := make([]arena.NodeID, len(rows))
	for i, r := range rows {
		roots[i] = c.roots[r]
	}
	return newCollection(c.arena, roots)
}

func (c *Collection) collector() *metrics.Collector { return collectionMetrics }

// Head returns the first n documents.
func (c *Collection) Head(n int) *Collection { return head[*Collection](c, n) }

// Tail returns the last n documents.
func (c *Collection) Tail(n int) *Collection { return tail[*Collection](c, n) }

// Reverse returns the documents in reverse order.
func (c *Collection) Reverse() *Collection { return reverse[*Collection](c) }

// SliceByIndices returns the documents at idxs, in that order, repeats
// included.
func (c *Collection) SliceByIndices(idxs []int) (*Collection, error) {
	return sliceByIndices[*Collection](c, idxs)
}

// Slice returns documents [start, end) after clamping both bounds.
func (c *Collection) Slice(start, end int) *Collection { return slice[*Collection](c, start, end) }

// Filter keeps the documents for which pred evaluates to true.
func (c *Collection) Filter(pred expr.Expr) (*Collection, error) {
	return filter[*Collection](c, pred)
}

// SortBy stably sorts documents by keys.
func (c *Collection) SortBy(keys []expr.Expr, descending []bool) (*Collection, error) {
	return sortBy[*Collection](c, keys, descending)
}

// GroupBy partitions documents by the canonical value of keys.
func (c *Collection) GroupBy(keys []expr.Expr) (*GroupedTable[*Collection], error) {
	return groupBy[*Collection](c, keys)
}

// Distinct keeps the first document of every distinct key.
func (c *Collection) Distinct(keys []expr.Expr) (*Collection, error) {
	return distinct[*Collection](c, keys)
}
