package tabular

import (
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tugtool/tugtool-sub001/pkg/arena"
	"github.com/tugtool/tugtool-sub001/pkg/errors"
	"github.com/tugtool/tugtool-sub001/pkg/expr"
	"github.com/tugtool/tugtool-sub001/pkg/logger"
	"github.com/tugtool/tugtool-sub001/pkg/metrics"
	"github.com/tugtool/tugtool-sub001/pkg/value"
)

var viewMetrics = metrics.NewCollector("view")

// LengthPolicy decides how columns of different lengths are reconciled.
type LengthPolicy int

const (
	// Strict requires every selected column to have the same length.
	Strict LengthPolicy = iota
	// Ragged uses the longest column; shorter columns read as Missing past
	// their end.
	Ragged
)

func (p LengthPolicy) String() string {
	switch p {
	case Strict:
		return "strict"
	case Ragged:
		return "ragged"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParseLengthPolicy parses "strict" or "ragged".
func ParseLengthPolicy(s string) (LengthPolicy, error) {
	switch strings.ToLower(s) {
	case "strict", "":
		return Strict, nil
	case "ragged":
		return Ragged, nil
	}
	return Strict, errors.Newf(errors.ErrorTypeValidation, "unknown length policy %q", s)
}

// Column is one selected array-valued field of a View.
type Column struct {
	name    string
	node    arena.NodeID
	start   arena.NodeID
	length  int
	hint    value.Tag
	hasHint bool
}

// Name returns the field name.
func (c Column) Name() string { return c.name }

// Node returns the array node backing the column.
func (c Column) Node() arena.NodeID { return c.node }

// Start returns the first element node, or NoNode for an empty column.
func (c Column) Start() arena.NodeID { return c.start }

// Len returns the natural length of the column.
func (c Column) Len() int { return c.length }

// Hint returns the tag shared by every non-null element. It is absent for
// empty, all-null and mixed columns.
func (c Column) Hint() (value.Tag, bool) { return c.hint, c.hasHint }

// ViewOption configures NewView.
type ViewOption func(*viewConfig)

type viewConfig struct {
	policy  LengthPolicy
	include []string
	exclude []string
}

// WithLengthPolicy sets the length policy. The default is Strict.
func WithLengthPolicy(p LengthPolicy) ViewOption {
	return func(c *viewConfig) { c.policy = p }
}

// WithColumns narrows the selection to names, in that order. Every name
// must be an array-valued field.
func WithColumns(names ...string) ViewOption {
	return func(c *viewConfig) { c.include = append(c.include, names...) }
}

// WithoutColumns removes names from the selection.
func WithoutColumns(names ...string) ViewOption {
	return func(c *viewConfig) { c.exclude = append(c.exclude, names...) }
}

// View is a table over the array-valued fields of one object. It shares
// the arena of its source and optionally carries a list of row positions;
// without one rows are read in natural order.
type View struct {
	arena   *arena.Arena
	target  arena.NodeID
	columns []Column
	byName  map[string]int
	natural int
	rows    []int
	policy  LengthPolicy
	closed  atomic.Bool
}

// NewView builds a view over the object node target of a.
func NewView(a *arena.Arena, target arena.NodeID, opts ...ViewOption) (*View, error) {
	cfg := viewConfig{policy: Strict}
	for _, opt := range opts {
		opt(&cfg)
	}

	if !a.Valid(target) {
		return nil, errors.Newf(errors.ErrorTypeConstruction, "node %d does not exist", target)
	}
	if tag := a.Tag(target); tag != value.TagObject {
		return nil, errors.Newf(errors.ErrorTypeConstruction, "view target is %s, not object", tag).
			WithDetail("node", target)
	}

	columns, err := selectColumns(a, target, cfg)
	if err != nil {
		return nil, err
	}

	natural, err := rowCount(columns, cfg.policy)
	if err != nil {
		return nil, err
	}

	v := &View{
		arena:   a.Retain(),
		target:  target,
		columns: columns,
		byName:  make(map[string]int, len(columns)),
		natural: natural,
		policy:  cfg.policy,
	}
	for i, c := range columns {
		v.byName[c.name] = i
	}

	logger.Debug("view built",
		zap.Uint64("storage_id", a.StorageID()),
		zap.Strings("columns", v.ColumnNames()),
		zap.Int("rows", natural),
		zap.Stringer("policy", cfg.policy))
	return v, nil
}

// ViewOf builds a view over the root object of document doc of c.
func ViewOf(c *Collection, doc int, opts ...ViewOption) (*View, error) {
	root, ok := c.Root(doc)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConstruction,
			"document %d out of range for collection of length %d", doc, c.Len())
	}
	return NewView(c.arena, root, opts...)
}

func selectColumns(a *arena.Arena, target arena.NodeID, cfg viewConfig) ([]Column, error) {
	excluded := make(map[string]bool, len(cfg.exclude))
	for _, name := range cfg.exclude {
		excluded[name] = true
	}

	var columns []Column
	if len(cfg.include) > 0 {
		for _, name := range cfg.include {
			if excluded[name] {
				continue
			}
			id, ok := a.Lookup(target, name)
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeConstruction, "column %q not found", name).
					WithDetail("column", name)
			}
			if a.Tag(id) != value.TagArray {
				return nil, errors.Newf(errors.ErrorTypeConstruction,
					"column %q is %s, not array", name, a.Tag(id)).
					WithDetail("column", name)
			}
			columns = append(columns, newColumn(a, name, id))
		}
	} else {
		first := a.FirstChild(target)
		for i := 0; i < a.ChildCount(target); i++ {
			id := first + arena.NodeID(i)
			name, _ := a.Key(id)
			if a.Tag(id) != value.TagArray || excluded[name] {
				continue
			}
			columns = append(columns, newColumn(a, name, id))
		}
	}

	if len(columns) == 0 {
		return nil, errors.New(errors.ErrorTypeConstruction, "view selects no array-valued columns").
			WithDetail("node", target)
	}
	return columns, nil
}

func newColumn(a *arena.Arena, name string, id arena.NodeID) Column {
	c := Column{
		name:   name,
		node:   id,
		start:  a.FirstChild(id),
		length: a.ChildCount(id),
	}
	mixed := false
	for i := 0; i < c.length && !mixed; i++ {
		tag := a.Tag(c.start + arena.NodeID(i))
		switch {
		case tag == value.TagNull:
		case !c.hasHint:
			c.hint, c.hasHint = tag, true
		case tag != c.hint:
			mixed = true
		}
	}
	if mixed {
		c.hint, c.hasHint = 0, false
	}
	return c
}

func rowCount(columns []Column, policy LengthPolicy) (int, error) {
	longest := 0
	equal := true
	for _, c := range columns {
		if c.length != columns[0].length {
			equal = false
		}
		if c.length > longest {
			longest = c.length
		}
	}
	if equal || policy == Ragged {
		return longest, nil
	}

	lengths := make(map[string]int, len(columns))
	parts := make([]string, len(columns))
	for i, c := range columns {
		lengths[c.name] = c.length
		parts[i] = fmt.Sprintf("%s=%d", c.name, c.length)
	}
	return 0, errors.Newf(errors.ErrorTypeConstruction,
		"column lengths differ under strict policy: %s", strings.Join(parts, ", ")).
		WithDetail("lengths", lengths)
}

// Select re-indexes v with a different column selection over the same
// object. The row positions of v are kept.
func (v *View) Select(opts ...ViewOption) (*View, error) {
	all := append([]ViewOption{WithLengthPolicy(v.policy)}, opts...)
	nv, err := NewView(v.arena, v.target, all...)
	if err != nil {
		return nil, err
	}
	nv.rows = v.rows
	return nv, nil
}

// Arena returns the backing arena.
func (v *View) Arena() *arena.Arena { return v.arena }

// StorageID identifies the backing storage.
func (v *View) StorageID() uint64 { return v.arena.StorageID() }

// Target returns the object node the view reads.
func (v *View) Target() arena.NodeID { return v.target }

// Policy returns the length policy.
func (v *View) Policy() LengthPolicy { return v.policy }

// IsNatural reports whether rows are read in natural order without an
// explicit position list.
func (v *View) IsNatural() bool { return v.rows == nil }

// Close releases this handle's reference to the arena. It is safe to call
// more than once.
func (v *View) Close() {
	if v.closed.CompareAndSwap(false, true) {
		v.arena.Release()
	}
}

// Columns returns the selected columns in order.
func (v *View) Columns() []Column { return v.columns }

// ColumnNames returns the selected column names in order.
func (v *View) ColumnNames() []string {
	names := make([]string, len(v.columns))
	for i, c := range v.columns {
		names[i] = c.name
	}
	return names
}

// Column returns the named column.
func (v *View) Column(name string) (Column, bool) {
	i, ok := v.byName[name]
	if !ok {
		return Column{}, false
	}
	return v.columns[i], true
}

// Len returns the number of rows.
func (v *View) Len() int {
	if v.rows != nil {
		return len(v.rows)
	}
	return v.natural
}

// position maps logical row i to its position in the columns.
func (v *View) position(i int) int {
	if v.rows != nil {
		return v.rows[i]
	}
	return i
}

// Row returns row i.
func (v *View) Row(i int) (Row, bool) {
	if i < 0 || i >= v.Len() {
		return Row{}, false
	}
	return Row{a: v.arena, view: v, pos: v.position(i)}, true
}

// Cell returns the cell of column name at row i. Unknown columns and rows
// out of range are access errors; a Ragged shortfall is Missing.
func (v *View) Cell(i int, name string) (value.Value, error) {
	if _, ok := v.byName[name]; !ok {
		return value.Missing(), errors.Newf(errors.ErrorTypeAccess, "unknown column %q", name).
			WithDetail("columns", v.ColumnNames())
	}
	row, ok := v.Row(i)
	if !ok {
		return value.Missing(), errors.Newf(errors.ErrorTypeAccess,
			"row %d out of range for view of length %d", i, v.Len())
	}
	return row.Get(name), nil
}

// ColumnAsNodes returns the element node of column name for every row,
// NoNode where the cell is Missing.
func (v *View) ColumnAsNodes(name string) ([]arena.NodeID, error) {
	ci, ok := v.byName[name]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeAccess, "unknown column %q", name).
			WithDetail("columns", v.ColumnNames())
	}
	col := v.columns[ci]
	nodes := make([]arena.NodeID, v.Len())
	for i := range nodes {
		nodes[i] = col.cell(v.position(i))
	}
	return nodes, nil
}

// ColumnAsArray exports column name as a typed array.
func (v *View) ColumnAsArray(name string) (*ColumnArray, error) {
	nodes, err := v.ColumnAsNodes(name)
	if err != nil {
		return nil, err
	}
	return newColumnArray(v.arena, name, nodes)
}

func (c Column) cell(pos int) arena.NodeID {
	if pos >= c.length {
		return arena.NoNode
	}
	return c.start + arena.NodeID(pos)
}

func (v *View) exprRow(i int) expr.Row {
	return Row{a: v.arena, view: v, pos: v.position(i)}
}

func (v *View) derive(rows []int) *View {
	positions := make([]int, len(rows))
	for i, r := range rows {
		positions[i] = v.position(r)
	}
	return &View{
		arena:   v.arena.Retain(),
		target:  v.target,
		columns: v.columns,
		byName:  v.byName,
		natural: v.natural,
		rows:    positions,
		policy:  v.policy,
	}
}

func (v *View) collector() *metrics.Collector { return viewMetrics }

// Head returns the first n rows.
func (v *View) Head(n int) *View { return head[*View](v, n) }

// Tail returns the last n rows.
func (v *View) Tail(n int) *View { return tail[*View](v, n) }

// Reverse returns the rows in reverse order.
func (v *View) Reverse() *View { return reverse[*View](v) }

// SliceByIndices returns the rows at idxs, in that order, repeats included.
func (v *View) SliceByIndices(idxs []int) (*View, error) {
	return sliceByIndices[*View](v, idxs)
}

// Slice returns rows [start, end) after clamping both bounds.
func (v *View) Slice(start, end int) *View { return slice[*View](v, start, end) }

// Filter keeps the rows for which pred evaluates to true.
func (v *View) Filter(pred expr.Expr) (*View, error) { return filter[*View](v, pred) }

// SortBy stably sorts rows by keys.
func (v *View) SortBy(keys []expr.Expr, descending []bool) (*View, error) {
	return sortBy[*View](v, keys, descending)
}

// GroupBy partitions rows by the canonical value of keys.
func (v *View) GroupBy(keys []expr.Expr) (*GroupedTable[*View], error) {
	return groupBy[*View](v, keys)
}

// Distinct keeps the first row of every distinct key.
func (v *View) Distinct(keys []expr.Expr) (*View, error) { return distinct[*View](v, keys) }
