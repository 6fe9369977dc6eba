package tabular

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tugtool/tugtool-sub001/pkg/arena"
	"github.com/tugtool/tugtool-sub001/pkg/errors"
	"github.com/tugtool/tugtool-sub001/pkg/testutil"
	"github.com/tugtool/tugtool-sub001/pkg/value"
)

func ints(xs ...int64) value.Value {
	elems := make([]value.Value, len(xs))
	for i, x := range xs {
		elems[i] = value.Int64(x)
	}
	return value.Array(elems...)
}

func strs(xs ...string) value.Value {
	elems := make([]value.Value, len(xs))
	for i, x := range xs {
		elems[i] = value.String(x)
	}
	return value.Array(elems...)
}

// build writes docs into a fresh arena and returns it with the roots.
func build(t *testing.T, docs ...value.Value) (*arena.Arena, []arena.NodeID) {
	t.Helper()
	b := arena.NewBuilder()
	roots := make([]arena.NodeID, len(docs))
	for i, d := range docs {
		roots[i] = b.AddDocument(d)
	}
	a := b.Finish()
	t.Cleanup(func() { a.Release() })
	return a, roots
}

func newView(t *testing.T, doc value.Value, opts ...ViewOption) *View {
	t.Helper()
	a, roots := build(t, doc)
	v, err := NewView(a, roots[0], opts...)
	require.NoError(t, err)
	t.Cleanup(v.Close)
	return v
}

func abView(t *testing.T) *View {
	return newView(t, value.Object(
		value.F("a", ints(10, 20, 30)),
		value.F("b", strs("x", "y", "z")),
	))
}

func TestNewView_Strict(t *testing.T) {
	testutil.TestLogger(t)
	v := abView(t)

	assert.Equal(t, 3, v.Len())
	assert.Equal(t, []string{"a", "b"}, v.ColumnNames())
	assert.Equal(t, Strict, v.Policy())
	assert.True(t, v.IsNatural())

	row, ok := v.Row(1)
	require.True(t, ok)
	s, ok := row.GetString("b")
	require.True(t, ok)
	assert.Equal(t, "y", s)

	_, ok = row.GetInt64("b")
	assert.False(t, ok, "tag mismatch")

	_, ok = v.Row(3)
	assert.False(t, ok)
	_, ok = v.Row(-1)
	assert.False(t, ok)

	col, ok := v.Column("a")
	require.True(t, ok)
	hint, ok := col.Hint()
	require.True(t, ok)
	assert.Equal(t, value.TagInt64, hint)
}

func TestNewView_StrictLengthMismatch(t *testing.T) {
	a, roots := build(t, value.Object(
		value.F("a", ints(1, 2)),
		value.F("b", strs("p")),
	))

	_, err := NewView(a, roots[0])
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConstruction))
	assert.Contains(t, err.Error(), "a=2")
	assert.Contains(t, err.Error(), "b=1")

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	lengths, ok := e.Detail("lengths")
	require.True(t, ok)
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, lengths)
}

func TestNewView_Ragged(t *testing.T) {
	v := newView(t, value.Object(
		value.F("a", ints(1, 2)),
		value.F("b", strs("p")),
	), WithLengthPolicy(Ragged))

	require.Equal(t, 2, v.Len())

	r0, _ := v.Row(0)
	s, ok := r0.GetString("b")
	require.True(t, ok)
	assert.Equal(t, "p", s)

	r1, _ := v.Row(1)
	assert.True(t, r1.IsMissing("b"))
	assert.False(t, r1.IsNull("b"))
	assert.True(t, r1.Get("b").IsMissing())
	_, ok = r1.GetString("b")
	assert.False(t, ok)
}

func TestNewView_RaggedMissingVersusNull(t *testing.T) {
	v := newView(t, value.Object(
		value.F("short", value.Array(value.Int64(1), value.Null(), value.Int64(3))),
		value.F("long", ints(1, 2, 3, 4, 5)),
	), WithLengthPolicy(Ragged))

	require.Equal(t, 5, v.Len())

	r4, _ := v.Row(4)
	assert.True(t, r4.IsMissing("short"))
	assert.False(t, r4.IsNull("short"))

	r1, _ := v.Row(1)
	assert.True(t, r1.IsNull("short"))
	assert.False(t, r1.IsMissing("short"))
	_, ok := r1.GetInt64("short")
	assert.False(t, ok, "typed getters fail on null")

	nodes, err := v.ColumnAsNodes("short")
	require.NoError(t, err)
	assert.Equal(t, arena.NoNode, nodes[4])
	assert.NotEqual(t, arena.NoNode, nodes[1])
}

func TestNewView_ConstructionErrors(t *testing.T) {
	a, roots := build(t,
		value.Object(value.F("a", ints(1)), value.F("n", value.Int64(5))),
		value.Array(ints(1)),
		value.Object(value.F("meta", value.String("x"))),
	)

	tests := []struct {
		name   string
		target arena.NodeID
		opts   []ViewOption
	}{
		{"non-object target", roots[1], nil},
		{"no array fields", roots[2], nil},
		{"unknown column", roots[0], []ViewOption{WithColumns("missing")}},
		{"non-array column", roots[0], []ViewOption{WithColumns("n")}},
		{"everything excluded", roots[0], []ViewOption{WithoutColumns("a")}},
		{"invalid node", arena.NodeID(a.Len() + 10), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewView(a, tt.target, tt.opts...)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConstruction), err.Error())
		})
	}
}

func TestNewView_ColumnSelection(t *testing.T) {
	doc := value.Object(
		value.F("id", value.String("batch-1")),
		value.F("a", ints(1, 2)),
		value.F("b", ints(3, 4)),
		value.F("c", ints(5, 6)),
	)

	v := newView(t, doc, WithColumns("c", "a"))
	assert.Equal(t, []string{"c", "a"}, v.ColumnNames())

	v = newView(t, doc, WithoutColumns("b"))
	assert.Equal(t, []string{"a", "c"}, v.ColumnNames())
}

func TestView_Select(t *testing.T) {
	v := abView(t)
	rev := v.Reverse()
	defer rev.Close()

	narrow, err := rev.Select(WithColumns("b"))
	require.NoError(t, err)
	defer narrow.Close()

	assert.Equal(t, []string{"b"}, narrow.ColumnNames())
	assert.Equal(t, v.StorageID(), narrow.StorageID())
	r0, _ := narrow.Row(0)
	s, _ := r0.GetString("b")
	assert.Equal(t, "z", s)
}

func TestViewOf(t *testing.T) {
	a, _ := build(t,
		value.Object(value.F("a", ints(1))),
		value.Object(value.F("a", ints(1, 2, 3))),
	)
	c := NewCollection(a)
	defer c.Close()

	v, err := ViewOf(c, 1)
	require.NoError(t, err)
	defer v.Close()
	assert.Equal(t, 3, v.Len())
	assert.Equal(t, c.StorageID(), v.StorageID())

	_, err = ViewOf(c, 2)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConstruction))
}

func TestView_Cell(t *testing.T) {
	v := abView(t)

	got, err := v.Cell(2, "a")
	require.NoError(t, err)
	assert.True(t, value.Equal(value.Int64(30), got))

	_, err = v.Cell(0, "nope")
	assert.True(t, errors.IsType(err, errors.ErrorTypeAccess))

	_, err = v.Cell(3, "a")
	assert.True(t, errors.IsType(err, errors.ErrorTypeAccess))
}

func TestView_ElementTypeHints(t *testing.T) {
	v := newView(t, value.Object(
		value.F("nulls", value.Array(value.Null(), value.Float64(1), value.Null())),
		value.F("mixed", value.Array(value.Int64(1), value.String("x"), value.Null())),
		value.F("allnull", value.Array(value.Null(), value.Null(), value.Null())),
	))

	c, _ := v.Column("nulls")
	hint, ok := c.Hint()
	assert.True(t, ok)
	assert.Equal(t, value.TagFloat64, hint)

	c, _ = v.Column("mixed")
	_, ok = c.Hint()
	assert.False(t, ok)

	c, _ = v.Column("allnull")
	_, ok = c.Hint()
	assert.False(t, ok)
}

func TestRow_TypedGetters(t *testing.T) {
	day := time.Date(2022, 2, 2, 0, 0, 0, 0, time.UTC)
	ts := day.Add(3*time.Hour + 1500*time.Microsecond)
	v := newView(t, value.Object(
		value.F("b", value.Array(value.Bool(true))),
		value.F("f", value.Array(value.Float64(2.5))),
		value.F("bin", value.Array(value.Binary([]byte("hi")))),
		value.F("d", value.Array(value.Date(day))),
		value.F("ts", value.Array(value.DateTime(ts))),
		value.F("dur", value.Array(value.Duration(90*time.Second))),
	))

	row, ok := v.Row(0)
	require.True(t, ok)

	b, ok := row.GetBool("b")
	assert.True(t, ok && b)
	f, ok := row.GetFloat64("f")
	assert.True(t, ok)
	assert.Equal(t, 2.5, f)
	bin, ok := row.GetBinary("bin")
	assert.True(t, ok)
	assert.Equal(t, []byte("hi"), bin)
	d, ok := row.GetDate("d")
	assert.True(t, ok)
	assert.Equal(t, day, d)
	got, ok := row.GetDateTime("ts")
	assert.True(t, ok)
	assert.True(t, ts.Equal(got))
	dur, ok := row.GetDuration("dur")
	assert.True(t, ok)
	assert.Equal(t, 90*time.Second, dur)

	_, ok = row.GetDate("ts")
	assert.False(t, ok)
	_, ok = row.GetBool("nope")
	assert.False(t, ok)

	obj := row.Value()
	assert.Equal(t, 6, obj.Len())
}

func TestView_RowMatchesDirectDereference(t *testing.T) {
	v := abView(t)
	idxs := []int{2, 0, 0, 1}
	sub, err := v.SliceByIndices(idxs)
	require.NoError(t, err)
	defer sub.Close()

	a := v.Arena()
	for _, name := range v.ColumnNames() {
		col, _ := v.Column(name)
		for i, pos := range idxs {
			row, ok := sub.Row(i)
			require.True(t, ok)
			direct := a.Value(col.Start() + arena.NodeID(pos))
			assert.True(t, value.Equal(direct, row.Get(name)), "%s[%d]", name, i)
			node, ok := row.Node(name)
			require.True(t, ok)
			assert.Equal(t, col.Start()+arena.NodeID(pos), node)
		}
	}
}

func TestParseLengthPolicy(t *testing.T) {
	p, err := ParseLengthPolicy("Ragged")
	require.NoError(t, err)
	assert.Equal(t, Ragged, p)
	assert.Equal(t, "ragged", p.String())

	p, err = ParseLengthPolicy("")
	require.NoError(t, err)
	assert.Equal(t, Strict, p)

	_, err = ParseLengthPolicy("loose")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestView_CloseReleasesOnce(t *testing.T) {
	a, roots := build(t, value.Object(value.F("a", ints(1))))
	before := a.Refs()

	v, err := NewView(a, roots[0])
	require.NoError(t, err)
	h := v.Head(1)
	assert.Equal(t, before+2, a.Refs())

	v.Close()
	v.Close()
	h.Close()
	assert.Equal(t, before, a.Refs())
}
