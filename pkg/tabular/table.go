// Package tabular provides positional, zero-copy tables over documents
// stored in an arena.
//
// Two table types share one operations contract:
//
//   - Collection: an ordered list of document roots; row i is document i
//   - View: the array-valued fields of one object read as columns; row i
//     is the i-th element of every selected column
//
// Operations that only subset or reorder rows (Head, Tail, Reverse,
// SliceByIndices, Slice, Filter, SortBy, GroupBy, Distinct) return handles
// that share the source arena; StorageID is unchanged. Materialize is the
// only way to produce rows in new storage.
//
// # Missing and Null
//
// A cell with no node is Missing; a cell holding a Null node is Null. The
// two are never conflated: typed getters fail for both, sorting places
// Null after present values and Missing after Null, and grouping keeps them
// in separate groups.
package tabular

import (
	"github.com/tugtool/tugtool-sub001/pkg/expr"
	"github.com/tugtool/tugtool-sub001/pkg/value"
)

// Table is the operations contract shared by *Collection and *View. T is
// the concrete table type, so results keep their type.
type Table[T any] interface {
	Len() int
	Head(n int) T
	Tail(n int) T
	Reverse() T
	SliceByIndices(idxs []int) (T, error)
	Slice(start, end int) T
	Filter(pred expr.Expr) (T, error)
	SortBy(keys []expr.Expr, descending []bool) (T, error)
	GroupBy(keys []expr.Expr) (*GroupedTable[T], error)
	Distinct(keys []expr.Expr) (T, error)
}

var (
	_ Table[*Collection] = (*Collection)(nil)
	_ Table[*View]       = (*View)(nil)
)

// GroupedTable is the result of GroupBy: one key tuple per group, in the
// order keys were first seen, and the rows of each group in input order.
type GroupedTable[T any] struct {
	keys   [][]value.Value
	groups []T
}

// Len returns the number of groups.
func (g *GroupedTable[T]) Len() int { return len(g.groups) }

// Keys returns the key tuple of every group.
func (g *GroupedTable[T]) Keys() [][]value.Value { return g.keys }

// Key returns the key tuple of group i.
func (g *GroupedTable[T]) Key(i int) []value.Value { return g.keys[i] }

// Group returns group i.
func (g *GroupedTable[T]) Group(i int) T { return g.groups[i] }

// Groups returns all groups.
func (g *GroupedTable[T]) Groups() []T { return g.groups }

// Each calls fn for every group in order until fn returns false.
func (g *GroupedTable[T]) Each(fn func(key []value.Value, group T) bool) {
	for i := range g.groups {
		if !fn(g.keys[i], g.groups[i]) {
			return
		}
	}
}
