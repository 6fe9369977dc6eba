package tabular

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/tugtool/tugtool-sub001/pkg/arena"
	"github.com/tugtool/tugtool-sub001/pkg/errors"
	"github.com/tugtool/tugtool-sub001/pkg/value"
)

// ColumnArray is a homogeneous primitive column exported from a table. It
// references the arena's value pools through a gather map and converts to
// an Arrow array on demand. A ColumnArray holds its own reference to the
// arena; call Close when done with it.
type ColumnArray struct {
	arena  *arena.Arena
	name   string
	tag    value.Tag
	gather []int
	closed atomic.Bool
}

func newColumnArray(a *arena.Arena, name string, nodes []arena.NodeID) (*ColumnArray, error) {
	var (
		tag   value.Tag
		found bool
	)
	for _, id := range nodes {
		if id == arena.NoNode {
			continue
		}
		t := a.Tag(id)
		if t == value.TagNull {
			continue
		}
		if !t.IsPrimitive() {
			return nil, errors.Newf(errors.ErrorTypeAccess,
				"column %q holds %s values; use ColumnAsNodes", name, t).
				WithDetail("column", name)
		}
		if found && t != tag {
			return nil, errors.Newf(errors.ErrorTypeAccess,
				"column %q mixes %s and %s values", name, tag, t).
				WithDetail("column", name)
		}
		tag, found = t, true
	}
	if !found {
		return nil, errors.Newf(errors.ErrorTypeAccess, "column %q has no present values", name).
			WithDetail("column", name)
	}

	gather := make([]int, len(nodes))
	for i, id := range nodes {
		if id == arena.NoNode || a.Tag(id) == value.TagNull {
			gather[i] = -1
			continue
		}
		gather[i] = int(a.PoolIndex(id))
	}
	a.Retain()
	return &ColumnArray{arena: a, name: name, tag: tag, gather: gather}, nil
}

// Close releases the column's reference to the arena. It is safe to call
// more than once.
func (c *ColumnArray) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.arena.Release()
	}
}

// Name returns the column name.
func (c *ColumnArray) Name() string { return c.name }

// Tag returns the element tag shared by every present value.
func (c *ColumnArray) Tag() value.Tag { return c.tag }

// Len returns the number of rows.
func (c *ColumnArray) Len() int { return len(c.gather) }

// Arena returns the arena whose pools the gather map indexes.
func (c *ColumnArray) Arena() *arena.Arena { return c.arena }

// Gather returns, per row, the position of the value in its pool, or -1 for
// Null and Missing cells. Bool values have no pool; their position is the
// NodeID. The slice must not be modified.
func (c *ColumnArray) Gather() []int { return c.gather }

// DataType returns the Arrow type the column converts to.
func (c *ColumnArray) DataType() arrow.DataType {
	return ArrowType(c.tag)
}

// ArrowType maps a primitive tag to its Arrow type. Dates are date32,
// datetimes are UTC microsecond timestamps and durations are nanosecond
// durations.
func ArrowType(tag value.Tag) arrow.DataType {
	switch tag {
	case value.TagBool:
		return arrow.FixedWidthTypes.Boolean
	case value.TagInt64:
		return arrow.PrimitiveTypes.Int64
	case value.TagFloat64:
		return arrow.PrimitiveTypes.Float64
	case value.TagString:
		return arrow.BinaryTypes.String
	case value.TagBinary:
		return arrow.BinaryTypes.Binary
	case value.TagDate:
		return arrow.FixedWidthTypes.Date32
	case value.TagDateTime:
		return arrow.FixedWidthTypes.Timestamp_us
	case value.TagDuration:
		return arrow.FixedWidthTypes.Duration_ns
	}
	return arrow.Null
}

// ToArrow converts the column to an Arrow array allocated from mem. Null
// and Missing cells become Arrow nulls. The caller releases the array.
func (c *ColumnArray) ToArrow(mem memory.Allocator) (arrow.Array, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	a := c.arena

	switch c.tag {
	case value.TagBool:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		for _, g := range c.gather {
			if g < 0 {
				b.AppendNull()
				continue
			}
			v, _ := a.Bool(arena.NodeID(g))
			b.Append(v)
		}
		return b.NewArray(), nil

	case value.TagInt64:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		ints := a.Ints()
		for _, g := range c.gather {
			if g < 0 {
				b.AppendNull()
				continue
			}
			b.Append(ints[g])
		}
		return b.NewArray(), nil

	case value.TagFloat64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		floats := a.Floats()
		for _, g := range c.gather {
			if g < 0 {
				b.AppendNull()
				continue
			}
			b.Append(floats[g])
		}
		return b.NewArray(), nil

	case value.TagString:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		strs := a.Strings()
		for _, g := range c.gather {
			if g < 0 {
				b.AppendNull()
				continue
			}
			b.Append(strs.Lookup(uint32(g)))
		}
		return b.NewArray(), nil

	case value.TagBinary:
		b := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
		defer b.Release()
		bins := a.Binaries()
		for _, g := range c.gather {
			if g < 0 {
				b.AppendNull()
				continue
			}
			b.Append(bins[g])
		}
		return b.NewArray(), nil

	case value.TagDate:
		b := array.NewDate32Builder(mem)
		defer b.Release()
		ints := a.Ints()
		for i, g := range c.gather {
			if g < 0 {
				b.AppendNull()
				continue
			}
			days := ints[g]
			if days < math.MinInt32 || days > math.MaxInt32 {
				return nil, errors.Newf(errors.ErrorTypeAccess,
					"column %q row %d: date %d days from epoch overflows date32", c.name, i, days).
					WithDetail("column", c.name).
					WithDetail("row", i)
			}
			b.Append(arrow.Date32(days))
		}
		return b.NewArray(), nil

	case value.TagDateTime:
		b := array.NewTimestampBuilder(mem, arrow.FixedWidthTypes.Timestamp_us.(*arrow.TimestampType))
		defer b.Release()
		ints := a.Ints()
		for _, g := range c.gather {
			if g < 0 {
				b.AppendNull()
				continue
			}
			b.Append(arrow.Timestamp(ints[g]))
		}
		return b.NewArray(), nil

	case value.TagDuration:
		b := array.NewDurationBuilder(mem, arrow.FixedWidthTypes.Duration_ns.(*arrow.DurationType))
		defer b.Release()
		ints := a.Ints()
		for _, g := range c.gather {
			if g < 0 {
				b.AppendNull()
				continue
			}
			b.Append(arrow.Duration(ints[g]))
		}
		return b.NewArray(), nil
	}

	return nil, errors.Newf(errors.ErrorTypeInternal, "no arrow conversion for %s", c.tag)
}

func (c *ColumnArray) expect(tag value.Tag) error {
	if c.tag != tag {
		return errors.Newf(errors.ErrorTypeAccess, "column %q is %s, not %s", c.name, c.tag, tag).
			WithDetail("column", c.name)
	}
	return nil
}

// gatherInts resolves an integer-pooled column.
func (c *ColumnArray) gatherInts(tag value.Tag) ([]int64, []bool, error) {
	if err := c.expect(tag); err != nil {
		return nil, nil, err
	}
	ints := c.arena.Ints()
	vals := make([]int64, len(c.gather))
	valid := make([]bool, len(c.gather))
	for i, g := range c.gather {
		if g >= 0 {
			vals[i], valid[i] = ints[g], true
		}
	}
	return vals, valid, nil
}

// Int64s returns the values of an Int64 column and a validity mask.
func (c *ColumnArray) Int64s() ([]int64, []bool, error) {
	return c.gatherInts(value.TagInt64)
}

// Float64s returns the values of a Float64 column and a validity mask.
func (c *ColumnArray) Float64s() ([]float64, []bool, error) {
	if err := c.expect(value.TagFloat64); err != nil {
		return nil, nil, err
	}
	floats := c.arena.Floats()
	vals := make([]float64, len(c.gather))
	valid := make([]bool, len(c.gather))
	for i, g := range c.gather {
		if g >= 0 {
			vals[i], valid[i] = floats[g], true
		}
	}
	return vals, valid, nil
}

// Bools returns the values of a Bool column and a validity mask.
func (c *ColumnArray) Bools() ([]bool, []bool, error) {
	if err := c.expect(value.TagBool); err != nil {
		return nil, nil, err
	}
	vals := make([]bool, len(c.gather))
	valid := make([]bool, len(c.gather))
	for i, g := range c.gather {
		if g >= 0 {
			vals[i], valid[i] = c.arena.Bool(arena.NodeID(g))
		}
	}
	return vals, valid, nil
}

// Strings returns the values of a String column and a validity mask.
func (c *ColumnArray) Strings() ([]string, []bool, error) {
	if err := c.expect(value.TagString); err != nil {
		return nil, nil, err
	}
	strs := c.arena.Strings()
	vals := make([]string, len(c.gather))
	valid := make([]bool, len(c.gather))
	for i, g := range c.gather {
		if g >= 0 {
			vals[i], valid[i] = strs.Lookup(uint32(g)), true
		}
	}
	return vals, valid, nil
}

// Binaries returns the values of a Binary column and a validity mask. The
// byte slices are shared with the arena and must not be modified.
func (c *ColumnArray) Binaries() ([][]byte, []bool, error) {
	if err := c.expect(value.TagBinary); err != nil {
		return nil, nil, err
	}
	bins := c.arena.Binaries()
	vals := make([][]byte, len(c.gather))
	valid := make([]bool, len(c.gather))
	for i, g := range c.gather {
		if g >= 0 {
			vals[i], valid[i] = bins[g], true
		}
	}
	return vals, valid, nil
}

// Dates returns the values of a Date column as midnight UTC.
func (c *ColumnArray) Dates() ([]time.Time, []bool, error) {
	days, valid, err := c.gatherInts(value.TagDate)
	if err != nil {
		return nil, nil, err
	}
	vals := make([]time.Time, len(days))
	for i, d := range days {
		if valid[i] {
			vals[i] = time.Unix(d*86400, 0).UTC()
		}
	}
	return vals, valid, nil
}

// DateTimes returns the values of a DateTime column in UTC.
func (c *ColumnArray) DateTimes() ([]time.Time, []bool, error) {
	us, valid, err := c.gatherInts(value.TagDateTime)
	if err != nil {
		return nil, nil, err
	}
	vals := make([]time.Time, len(us))
	for i, u := range us {
		if valid[i] {
			vals[i] = time.UnixMicro(u).UTC()
		}
	}
	return vals, valid, nil
}

// Durations returns the values of a Duration column.
func (c *ColumnArray) Durations() ([]time.Duration, []bool, error) {
	ns, valid, err := c.gatherInts(value.TagDuration)
	if err != nil {
		return nil, nil, err
	}
	vals := make([]time.Duration, len(ns))
	for i, n := range ns {
		vals[i] = time.Duration(n)
	}
	return vals, valid, nil
}
