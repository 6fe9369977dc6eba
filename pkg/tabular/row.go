package tabular

import (
	"time"

	"github.com/tugtool/tugtool-sub001/pkg/arena"
	"github.com/tugtool/tugtool-sub001/pkg/value"
)

// Row is a positional handle on one row of a View or one document of a
// Collection. It is a small value and holds no copies of cell data.
//
// The typed getters return false when the cell is Missing, is Null, or
// holds a different tag.
type Row struct {
	a    *arena.Arena
	view *View
	root arena.NodeID
	pos  int
}

// Position returns the row's position in its columns for view rows, or the
// document index for collection rows.
func (r Row) Position() int { return r.pos }

// Node returns the node of cell name. It reports false when the cell is
// Missing.
func (r Row) Node(name string) (arena.NodeID, bool) {
	if r.view == nil {
		return r.a.Lookup(r.root, name)
	}
	ci, ok := r.view.byName[name]
	if !ok {
		return arena.NoNode, false
	}
	id := r.view.columns[ci].cell(r.pos)
	return id, id != arena.NoNode
}

// Get returns cell name, Missing if there is no node.
func (r Row) Get(name string) value.Value {
	id, ok := r.Node(name)
	if !ok {
		return value.Missing()
	}
	return r.a.Value(id)
}

// Value returns the row as an object: the selected columns of a view row
// in column order, Missing cells omitted, or the whole document of a
// collection row.
func (r Row) Value() value.Value {
	if r.view == nil {
		return r.a.Value(r.root)
	}
	fields := make([]value.Field, 0, len(r.view.columns))
	for _, c := range r.view.columns {
		if id := c.cell(r.pos); id != arena.NoNode {
			fields = append(fields, value.F(c.name, r.a.Value(id)))
		}
	}
	return value.Object(fields...)
}

// IsMissing reports whether cell name has no node.
func (r Row) IsMissing(name string) bool {
	_, ok := r.Node(name)
	return !ok
}

// IsNull reports whether cell name holds an explicit Null.
func (r Row) IsNull(name string) bool {
	id, ok := r.Node(name)
	return ok && r.a.Tag(id) == value.TagNull
}

// Tag returns the tag of cell name, false when Missing.
func (r Row) Tag(name string) (value.Tag, bool) {
	id, ok := r.Node(name)
	if !ok {
		return 0, false
	}
	return r.a.Tag(id), true
}

// GetBool returns a Bool cell.
func (r Row) GetBool(name string) (bool, bool) {
	id, ok := r.Node(name)
	if !ok {
		return false, false
	}
	return r.a.Bool(id)
}

// GetInt64 returns an Int64 cell.
func (r Row) GetInt64(name string) (int64, bool) {
	id, ok := r.Node(name)
	if !ok {
		return 0, false
	}
	return r.a.Int64(id)
}

// GetFloat64 returns a Float64 cell.
func (r Row) GetFloat64(name string) (float64, bool) {
	id, ok := r.Node(name)
	if !ok {
		return 0, false
	}
	return r.a.Float64(id)
}

// GetString returns a String cell.
func (r Row) GetString(name string) (string, bool) {
	id, ok := r.Node(name)
	if !ok {
		return "", false
	}
	return r.a.String(id)
}

// GetBinary returns a Binary cell.
func (r Row) GetBinary(name string) ([]byte, bool) {
	id, ok := r.Node(name)
	if !ok {
		return nil, false
	}
	return r.a.Binary(id)
}

func (r Row) raw(name string, tag value.Tag) (int64, bool) {
	id, ok := r.Node(name)
	if !ok || r.a.Tag(id) != tag {
		return 0, false
	}
	return r.a.Raw(id)
}

// GetDate returns a Date cell as midnight UTC.
func (r Row) GetDate(name string) (time.Time, bool) {
	days, ok := r.raw(name, value.TagDate)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(days*86400, 0).UTC(), true
}

// GetDateTime returns a DateTime cell in UTC.
func (r Row) GetDateTime(name string) (time.Time, bool) {
	us, ok := r.raw(name, value.TagDateTime)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMicro(us).UTC(), true
}

// GetDuration returns a Duration cell.
func (r Row) GetDuration(name string) (time.Duration, bool) {
	ns, ok := r.raw(name, value.TagDuration)
	if !ok {
		return 0, false
	}
	return time.Duration(ns), true
}
