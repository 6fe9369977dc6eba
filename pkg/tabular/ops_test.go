package tabular

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tugtool/tugtool-sub001/pkg/errors"
	"github.com/tugtool/tugtool-sub001/pkg/expr"
	"github.com/tugtool/tugtool-sub001/pkg/value"
)

func column(t *testing.T, v *View, name string) []value.Value {
	t.Helper()
	out := make([]value.Value, v.Len())
	for i := range out {
		row, ok := v.Row(i)
		require.True(t, ok)
		out[i] = row.Get(name)
	}
	return out
}

func int64s(t *testing.T, v *View, name string) []int64 {
	t.Helper()
	var out []int64
	for _, x := range column(t, v, name) {
		n, ok := x.AsInt64()
		require.True(t, ok, "%s is not int64", x)
		out = append(out, n)
	}
	return out
}

func TestScenario_StrictView(t *testing.T) {
	v := abView(t)

	sorted, err := v.SortBy([]expr.Expr{expr.Path("a")}, []bool{true})
	require.NoError(t, err)
	assert.Equal(t, []int64{30, 20, 10}, int64s(t, sorted, "a"))
	assert.Equal(t, v.StorageID(), sorted.StorageID())

	filtered, err := v.Filter(expr.Gt(expr.Path("a"), expr.Lit(value.Int64(15))))
	require.NoError(t, err)
	assert.Equal(t, []int64{20, 30}, int64s(t, filtered, "a"))
	assert.Equal(t, v.StorageID(), filtered.StorageID())

	groups, err := v.GroupBy([]expr.Expr{expr.Path("b")})
	require.NoError(t, err)
	require.Equal(t, 3, groups.Len())
	for i, want := range []string{"x", "y", "z"} {
		s, ok := groups.Key(i)[0].AsString()
		require.True(t, ok)
		assert.Equal(t, want, s)
		assert.Equal(t, 1, groups.Group(i).Len())
		assert.Equal(t, v.StorageID(), groups.Group(i).StorageID())
	}
}

func TestHeadTailClamp(t *testing.T) {
	v := abView(t)

	assert.Equal(t, []int64{10, 20}, int64s(t, v.Head(2), "a"))
	assert.Equal(t, 3, v.Head(100).Len())
	assert.Equal(t, 0, v.Head(-1).Len())
	assert.Equal(t, []int64{20, 30}, int64s(t, v.Tail(2), "a"))
	assert.Equal(t, 3, v.Tail(7).Len())
	assert.Equal(t, []int64{30, 20, 10}, int64s(t, v.Reverse(), "a"))
	assert.Equal(t, []int64{20, 10}, int64s(t, v.Reverse().Tail(2), "a"))
}

func TestSliceByIndices(t *testing.T) {
	v := abView(t)

	sub, err := v.SliceByIndices([]int{2, 2, 0})
	require.NoError(t, err)
	assert.Equal(t, []int64{30, 30, 10}, int64s(t, sub, "a"))

	_, err = v.SliceByIndices([]int{0, 3})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeOperation))

	_, err = v.SliceByIndices([]int{-1})
	assert.Error(t, err)

	empty, err := v.SliceByIndices(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestSlice(t *testing.T) {
	v := abView(t)

	assert.Equal(t, []int64{20, 30}, int64s(t, v.Slice(1, 10), "a"))
	assert.Equal(t, 0, v.Slice(2, 1).Len())
	assert.Equal(t, 0, v.Slice(5, 9).Len())
	assert.Equal(t, []int64{10}, int64s(t, v.Slice(-4, 1), "a"))
}

func TestSlice_Idempotent(t *testing.T) {
	v := newView(t, value.Object(
		value.F("a", value.Array(value.Int64(1), value.Null(), value.Int64(3))),
		value.F("b", strs("p", "q")),
	), WithLengthPolicy(Ragged))

	for _, base := range []*View{v, v.Reverse()} {
		s := base.Slice(0, base.Len())
		require.Equal(t, base.Len(), s.Len())
		for _, name := range base.ColumnNames() {
			want := column(t, base, name)
			got := column(t, s, name)
			for i := range want {
				assert.Equal(t, want[i].Kind(), got[i].Kind())
				assert.True(t, value.Equal(want[i], got[i]))
			}
		}
	}
}

func TestFilter_NonTrueExcludesSilently(t *testing.T) {
	v := newView(t, value.Object(
		value.F("flag", value.Array(value.Bool(true), value.Bool(false), value.Null(), value.Int64(1), value.Bool(true))),
	))

	out, err := v.Filter(expr.Path("flag"))
	require.NoError(t, err)
	assert.Equal(t, 2, out.Len())
	r, _ := out.Row(1)
	assert.Equal(t, 4, r.Position())
}

func TestFilter_EvaluatorErrorPropagates(t *testing.T) {
	v := abView(t)
	boom := expr.Func(func(row expr.Row) (value.Value, error) {
		return value.Missing(), fmt.Errorf("boom")
	})

	_, err := v.Filter(boom)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeOperation))
	assert.Contains(t, err.Error(), "boom")

	_, err = v.Filter(expr.Lt(expr.Path("a"), expr.Path("b")))
	assert.Error(t, err, "ordering across types fails the filter")
}

func TestSortBy_StableMultiKey(t *testing.T) {
	v := newView(t, value.Object(
		value.F("k", strs("b", "a", "b", "a", "c")),
		value.F("n", ints(1, 2, 3, 4, 5)),
	))

	once, err := v.SortBy([]expr.Expr{expr.Path("k")}, []bool{false})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4, 1, 3, 5}, int64s(t, once, "n"))

	twice, err := v.SortBy([]expr.Expr{expr.Path("k")}, []bool{false})
	require.NoError(t, err)
	assert.Equal(t, int64s(t, once, "n"), int64s(t, twice, "n"))

	multi, err := v.SortBy([]expr.Expr{expr.Path("k"), expr.Path("n")}, []bool{true, true})
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 3, 1, 4, 2}, int64s(t, multi, "n"))
}

func TestSortBy_PlacementOfNullMissingNaN(t *testing.T) {
	v := newView(t, value.Object(
		value.F("x", value.Array(value.Null(), value.Float64(math.NaN()), value.Int64(2), value.Float64(0.5))),
		value.F("id", ints(0, 1, 2, 3, 4)),
	), WithLengthPolicy(Ragged))

	asc, err := v.SortBy([]expr.Expr{expr.Path("x")}, []bool{false})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1, 0, 4}, int64s(t, asc, "id"))

	desc, err := v.SortBy([]expr.Expr{expr.Path("x")}, []bool{true})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 1, 0, 4}, int64s(t, desc, "id"))
}

func TestSortBy_Errors(t *testing.T) {
	v := newView(t, value.Object(
		value.F("mixed", value.Array(value.Int64(1), value.String("x"))),
	))

	_, err := v.SortBy([]expr.Expr{expr.Path("mixed")}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeOperation))

	_, err = v.SortBy([]expr.Expr{expr.Path("mixed")}, []bool{false})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeOperation))
	assert.Contains(t, err.Error(), "cross-type")
}

func TestGroupBy_CanonicalKeys(t *testing.T) {
	v := newView(t, value.Object(
		value.F("k", value.Array(
			value.Int64(1),
			value.Float64(math.NaN()),
			value.Float64(1.0),
			value.Null(),
			value.Float64(math.NaN()),
		)),
		value.F("id", ints(0, 1, 2, 3, 4, 5)),
	), WithLengthPolicy(Ragged))

	groups, err := v.GroupBy([]expr.Expr{expr.Path("k")})
	require.NoError(t, err)
	require.Equal(t, 4, groups.Len())

	assert.Equal(t, []int64{0, 2}, int64s(t, groups.Group(0), "id"), "1 and 1.0 share a group")
	assert.Equal(t, []int64{1, 4}, int64s(t, groups.Group(1), "id"), "NaNs share a group")
	assert.Equal(t, []int64{3}, int64s(t, groups.Group(2), "id"))
	assert.Equal(t, []int64{5}, int64s(t, groups.Group(3), "id"))
	assert.True(t, groups.Key(2)[0].IsNull())
	assert.True(t, groups.Key(3)[0].IsMissing())

	seen := 0
	groups.Each(func(key []value.Value, g *View) bool {
		seen++
		return seen < 2
	})
	assert.Equal(t, 2, seen)
}

func TestDistinct(t *testing.T) {
	v := newView(t, value.Object(
		value.F("k", value.Array(value.String("b"), value.String("a"), value.String("b"), value.Null(), value.Null())),
		value.F("id", ints(0, 1, 2, 3, 4, 5)),
	), WithLengthPolicy(Ragged))

	out, err := v.Distinct([]expr.Expr{expr.Path("k")})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 3, 5}, int64s(t, out, "id"))
	assert.Equal(t, v.StorageID(), out.StorageID())

	all, err := v.Distinct([]expr.Expr{expr.This()})
	require.NoError(t, err)
	assert.Equal(t, 6, all.Len())
}

func TestOperations_ComposeOverIndexLists(t *testing.T) {
	v := newView(t, value.Object(
		value.F("n", ints(5, 3, 8, 1, 9, 2)),
	))

	top, err := v.SortBy([]expr.Expr{expr.Path("n")}, []bool{true})
	require.NoError(t, err)
	top = top.Head(4)

	odd, err := top.Filter(expr.Ne(expr.Path("n"), expr.Lit(value.Int64(8))))
	require.NoError(t, err)
	assert.Equal(t, []int64{9, 5, 3}, int64s(t, odd, "n"))

	again, err := odd.SliceByIndices([]int{2, 0})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 9}, int64s(t, again, "n"))
	assert.Equal(t, v.StorageID(), again.StorageID())
}
