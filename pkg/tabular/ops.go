package tabular

import (
	"fmt"
	"slices"

	"github.com/tugtool/tugtool-sub001/pkg/errors"
	"github.com/tugtool/tugtool-sub001/pkg/expr"
	"github.com/tugtool/tugtool-sub001/pkg/metrics"
	"github.com/tugtool/tugtool-sub001/pkg/pool"
	"github.com/tugtool/tugtool-sub001/pkg/value"
)

// positional is what the shared operations need from a table: its length,
// an evaluation context per logical row and a constructor for a table over
// a list of logical rows of the same storage.
type positional[T any] interface {
	Len() int
	exprRow(i int) expr.Row
	derive(rows []int) T
	collector() *metrics.Collector
}

func record(c *metrics.Collector, timer *metrics.Timer, rows int) {
	c.RecordOperation(timer.Name(), rows, timer.Stop())
}

func span(start, end int) []int {
	rows := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		rows = append(rows, i)
	}
	return rows
}

func clamp(i, lo, hi int) int {
	if i < lo {
		return lo
	}
	if i > hi {
		return hi
	}
	return i
}

func head[T any](t positional[T], n int) T {
	timer := metrics.NewTimer("head")
	rows := span(0, clamp(n, 0, t.Len()))
	record(t.collector(), timer, len(rows))
	return t.derive(rows)
}

func tail[T any](t positional[T], n int) T {
	timer := metrics.NewTimer("tail")
	l := t.Len()
	rows := span(l-clamp(n, 0, l), l)
	record(t.collector(), timer, len(rows))
	return t.derive(rows)
}

func reverse[T any](t positional[T]) T {
	timer := metrics.NewTimer("reverse")
	l := t.Len()
	rows := make([]int, l)
	for i := range rows {
		rows[i] = l - 1 - i
	}
	record(t.collector(), timer, l)
	return t.derive(rows)
}

func sliceByIndices[T any](t positional[T], idxs []int) (T, error) {
	timer := metrics.NewTimer("slice_by_indices")
	l := t.Len()
	for pos, i := range idxs {
		if i < 0 || i >= l {
			var zero T
			return zero, errors.Newf(errors.ErrorTypeOperation,
				"index %d out of range for table of length %d", i, l).
				WithDetail("position", pos).
				WithDetail("index", i).
				WithDetail("len", l)
		}
	}
	rows := make([]int, len(idxs))
	copy(rows, idxs)
	record(t.collector(), timer, len(rows))
	return t.derive(rows), nil
}

func slice[T any](t positional[T], start, end int) T {
	l := t.Len()
	start = clamp(start, 0, l)
	end = clamp(end, start, l)
	// in range after clamping
	res, _ := sliceByIndices[T](t, span(start, end))
	return res
}

func filter[T any](t positional[T], pred expr.Expr) (T, error) {
	timer := metrics.NewTimer("filter")
	buf := pool.IntSlicePool.Get()
	defer func() { pool.IntSlicePool.Put(buf) }()

	for i := 0; i < t.Len(); i++ {
		v, err := pred.Eval(t.exprRow(i))
		if err != nil {
			var zero T
			return zero, errors.Wrap(err, errors.ErrorTypeOperation, "filter predicate failed").
				WithDetail("row", i)
		}
		if b, ok := v.AsBool(); ok && b {
			buf = append(buf, i)
		}
	}

	rows := make([]int, len(buf))
	copy(rows, buf)
	record(t.collector(), timer, len(rows))
	return t.derive(rows), nil
}

// evalKeys evaluates every key expression once per row.
func evalKeys[T any](t positional[T], op string, keys []expr.Expr) ([][]value.Value, error) {
	out := make([][]value.Value, t.Len())
	for i := range out {
		row := t.exprRow(i)
		vals := make([]value.Value, len(keys))
		for k, key := range keys {
			v, err := key.Eval(row)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeOperation, op+" key evaluation failed").
					WithDetail("row", i).
					WithDetail("key", k)
			}
			vals[k] = v
		}
		out[i] = vals
	}
	return out, nil
}

func sortBy[T any](t positional[T], keys []expr.Expr, descending []bool) (T, error) {
	var zero T
	timer := metrics.NewTimer("sort_by")
	if len(keys) != len(descending) {
		return zero, errors.Newf(errors.ErrorTypeOperation,
			"sort_by got %d keys and %d descending flags", len(keys), len(descending))
	}

	vals, err := evalKeys[T](t, "sort_by", keys)
	if err != nil {
		return zero, err
	}

	rows := span(0, t.Len())
	var cmpErr error
	slices.SortStableFunc(rows, func(x, y int) int {
		for k := range keys {
			c, err := value.CompareForSort(vals[x][k], vals[y][k], descending[k])
			if err != nil {
				if cmpErr == nil {
					cmpErr = errors.Wrap(err, errors.ErrorTypeOperation,
						fmt.Sprintf("sort_by key %d", k)).
						WithDetail("rows", []int{x, y})
				}
				return 0
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	if cmpErr != nil {
		return zero, cmpErr
	}

	record(t.collector(), timer, len(rows))
	return t.derive(rows), nil
}

// keyIndex assigns dense ids to key tuples by canonical equality, in
// first-seen order.
type keyIndex struct {
	buckets map[uint64][]int
	keys    []value.Key
}

func newKeyIndex(capacity int) *keyIndex {
	return &keyIndex{buckets: make(map[uint64][]int, capacity)}
}

// add returns the id of k and whether it was new.
func (ki *keyIndex) add(k value.Key) (int, bool) {
	h := k.Hash()
	for _, id := range ki.buckets[h] {
		if ki.keys[id].Equal(k) {
			return id, false
		}
	}
	id := len(ki.keys)
	ki.keys = append(ki.keys, k)
	ki.buckets[h] = append(ki.buckets[h], id)
	return id, true
}

func groupBy[T any](t positional[T], keys []expr.Expr) (*GroupedTable[T], error) {
	timer := metrics.NewTimer("group_by")
	vals, err := evalKeys[T](t, "group_by", keys)
	if err != nil {
		return nil, err
	}

	ki := newKeyIndex(len(vals))
	var members [][]int
	for i, v := range vals {
		id, isNew := ki.add(value.NewKey(v))
		if isNew {
			members = append(members, nil)
		}
		members[id] = append(members[id], i)
	}

	g := &GroupedTable[T]{
		keys:   make([][]value.Value, len(members)),
		groups: make([]T, len(members)),
	}
	for id, rows := range members {
		g.keys[id] = ki.keys[id].Values()
		g.groups[id] = t.derive(rows)
	}
	record(t.collector(), timer, len(vals))
	return g, nil
}

func distinct[T any](t positional[T], keys []expr.Expr) (T, error) {
	timer := metrics.NewTimer("distinct")
	vals, err := evalKeys[T](t, "distinct", keys)
	if err != nil {
		var zero T
		return zero, err
	}

	ki := newKeyIndex(len(vals))
	rows := make([]int, 0, len(vals))
	for i, v := range vals {
		if _, isNew := ki.add(value.NewKey(v)); isNew {
			rows = append(rows, i)
		}
	}
	record(t.collector(), timer, len(rows))
	return t.derive(rows), nil
}
