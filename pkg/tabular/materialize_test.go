package tabular

import (
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tugtool/tugtool-sub001/pkg/errors"
	"github.com/tugtool/tugtool-sub001/pkg/expr"
	"github.com/tugtool/tugtool-sub001/pkg/metrics"
	"github.com/tugtool/tugtool-sub001/pkg/testutil"
	"github.com/tugtool/tugtool-sub001/pkg/value"
)

func TestMaterialize_AllocatesFreshStorage(t *testing.T) {
	testutil.TestLogger(t)
	v := newView(t, value.Object(
		value.F("a", value.Array(value.Int64(1), value.Null(), value.Int64(3))),
		value.F("b", strs("x")),
	), WithLengthPolicy(Ragged))

	c := v.Materialize()
	defer c.Close()

	assert.NotEqual(t, v.StorageID(), c.StorageID())
	require.Equal(t, 3, c.Len())

	d0 := c.Document(0)
	assert.Equal(t, 2, d0.Len())
	assert.True(t, value.Equal(value.String("x"), d0.Field("b")))

	d1 := c.Document(1)
	assert.True(t, d1.Field("a").IsNull(), "null stays an explicit null")
	assert.True(t, d1.Field("b").IsMissing(), "missing becomes an absent field")
	assert.Equal(t, 1, d1.Len())

	row, ok := c.Row(2)
	require.True(t, ok)
	n, ok := row.GetInt64("a")
	require.True(t, ok)
	assert.Equal(t, int64(3), n)
}

func TestMaterialize_CountsRows(t *testing.T) {
	v := abView(t)

	before := promtest.ToFloat64(metrics.MaterializedRows)
	c := v.Materialize()
	defer c.Close()
	assert.Equal(t, before+3, promtest.ToFloat64(metrics.MaterializedRows))

	one, err := v.MaterializeRow(1)
	require.NoError(t, err)
	defer one.Close()
	assert.Equal(t, before+4, promtest.ToFloat64(metrics.MaterializedRows))

	compact := c.Materialize()
	defer compact.Close()
	assert.Equal(t, before+7, promtest.ToFloat64(metrics.MaterializedRows))
}

func TestMaterialize_FollowsRowOrderAndColumnSelection(t *testing.T) {
	v := newView(t, value.Object(
		value.F("a", ints(1, 2, 3)),
		value.F("b", strs("x", "y", "z")),
		value.F("c", ints(7, 8, 9)),
	), WithColumns("c", "a"))

	sorted, err := v.SortBy([]expr.Expr{expr.Path("a")}, []bool{true})
	require.NoError(t, err)

	c, err := sorted.MaterializeRows([]int{0, 2})
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"c", "a"}, c.Arena().FieldNames(c.Roots()[0]))
	assert.True(t, value.Equal(value.Int64(3), c.Document(0).Field("a")))
	assert.True(t, value.Equal(value.Int64(7), c.Document(1).Field("c")))
}

func TestMaterialize_Errors(t *testing.T) {
	v := abView(t)

	_, err := v.MaterializeRow(3)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeOperation))

	_, err = v.MaterializeRows([]int{0, -1})
	assert.Error(t, err)

	empty, err := v.MaterializeRows(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
	assert.NotEqual(t, v.StorageID(), empty.StorageID())

	one, err := v.MaterializeRow(1)
	require.NoError(t, err)
	assert.Equal(t, 1, one.Len())
}

func TestMaterialize_ResultIsAnOrdinaryCollection(t *testing.T) {
	v := abView(t)
	c := v.Materialize()

	filtered, err := c.Filter(expr.Eq(expr.Path("b"), expr.Lit(value.String("z"))))
	require.NoError(t, err)
	require.Equal(t, 1, filtered.Len())
	assert.Equal(t, c.StorageID(), filtered.StorageID())

	col, err := c.ColumnAsArray("a")
	require.NoError(t, err)
	defer col.Close()
	vals, _, err := col.Int64s()
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, vals)
}

func TestCollection_MaterializeCompacts(t *testing.T) {
	a, _ := build(t,
		value.Object(value.F("big", ints(1, 2, 3, 4, 5, 6, 7, 8))),
		value.Object(value.F("small", value.Int64(1))),
	)
	c := NewCollection(a)
	defer c.Close()

	tail := c.Tail(1)
	compact := tail.Materialize()
	defer compact.Close()

	assert.NotEqual(t, c.StorageID(), compact.StorageID())
	assert.Less(t, compact.Arena().Len(), a.Len())
	assert.True(t, value.Equal(c.Document(1), compact.Document(0)))
}
