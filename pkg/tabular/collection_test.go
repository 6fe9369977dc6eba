package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tugtool/tugtool-sub001/pkg/errors"
	"github.com/tugtool/tugtool-sub001/pkg/expr"
	"github.com/tugtool/tugtool-sub001/pkg/value"
)

func people(t *testing.T) *Collection {
	t.Helper()
	a, _ := build(t,
		value.Object(value.F("name", value.String("ada")), value.F("team", value.String("core")), value.F("age", value.Int64(36))),
		value.Object(value.F("name", value.String("bob")), value.F("team", value.String("web")), value.F("age", value.Float64(29))),
		value.Object(value.F("name", value.String("cy")), value.F("team", value.String("core"))),
		value.Object(value.F("name", value.String("di")), value.F("team", value.Null()), value.F("age", value.Int64(41))),
	)
	c := NewCollection(a)
	t.Cleanup(c.Close)
	return c
}

func names(t *testing.T, c *Collection) []string {
	t.Helper()
	out := make([]string, c.Len())
	for i := range out {
		row, ok := c.Row(i)
		require.True(t, ok)
		out[i], ok = row.GetString("name")
		require.True(t, ok)
	}
	return out
}

func TestCollection_Rows(t *testing.T) {
	c := people(t)
	require.Equal(t, 4, c.Len())

	row, ok := c.Row(2)
	require.True(t, ok)
	assert.True(t, row.IsMissing("age"))
	assert.False(t, row.IsNull("age"))

	row, _ = c.Row(3)
	assert.True(t, row.IsNull("team"))
	tag, ok := row.Tag("age")
	require.True(t, ok)
	assert.Equal(t, value.TagInt64, tag)

	_, ok = c.Row(4)
	assert.False(t, ok)

	_, err := c.Cell(9, "name")
	assert.True(t, errors.IsType(err, errors.ErrorTypeAccess))

	v, err := c.Cell(1, "age")
	require.NoError(t, err)
	assert.True(t, value.Equal(value.Int64(29), v))

	assert.True(t, c.Document(9).IsMissing())
}

func TestCollection_Operations(t *testing.T) {
	c := people(t)

	assert.Equal(t, []string{"ada", "bob"}, names(t, c.Head(2)))
	assert.Equal(t, []string{"di"}, names(t, c.Tail(1)))
	assert.Equal(t, []string{"di", "cy", "bob", "ada"}, names(t, c.Reverse()))
	assert.Equal(t, []string{"bob", "cy"}, names(t, c.Slice(1, 3)))

	sub, err := c.SliceByIndices([]int{3, 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"di", "di"}, names(t, sub))

	_, err = c.SliceByIndices([]int{4})
	assert.True(t, errors.IsType(err, errors.ErrorTypeOperation))

	older, err := c.Filter(expr.Ge(expr.Path("age"), expr.Lit(value.Int64(30))))
	require.NoError(t, err)
	assert.Equal(t, []string{"ada", "di"}, names(t, older))

	byAge, err := c.SortBy([]expr.Expr{expr.Path("age")}, []bool{false})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "ada", "di", "cy"}, names(t, byAge))

	teams, err := c.GroupBy([]expr.Expr{expr.Path("team")})
	require.NoError(t, err)
	require.Equal(t, 3, teams.Len())
	assert.Equal(t, []string{"ada", "cy"}, names(t, teams.Group(0)))
	assert.True(t, teams.Key(2)[0].IsNull())

	uniq, err := c.Distinct([]expr.Expr{expr.Path("team")})
	require.NoError(t, err)
	assert.Equal(t, []string{"ada", "bob", "di"}, names(t, uniq))

	for _, derived := range []*Collection{older, byAge, uniq, teams.Group(1), sub} {
		assert.Equal(t, c.StorageID(), derived.StorageID())
	}
}

func TestCollection_ThisAsKey(t *testing.T) {
	a, _ := build(t,
		value.Object(value.F("x", value.Int64(1)), value.F("y", value.Int64(2))),
		value.Object(value.F("y", value.Float64(2)), value.F("x", value.Float64(1))),
		value.Object(value.F("x", value.Int64(1))),
	)
	c := NewCollection(a)
	defer c.Close()

	uniq, err := c.Distinct([]expr.Expr{expr.This()})
	require.NoError(t, err)
	assert.Equal(t, 2, uniq.Len(), "field order and numeric width do not matter")
}

func TestCollection_SharedArenaRefs(t *testing.T) {
	c := people(t)
	a := c.Arena()
	before := a.Refs()

	h := c.Head(1)
	assert.Equal(t, before+1, a.Refs())
	h.Close()
	h.Close()
	assert.Equal(t, before, a.Refs())
}
