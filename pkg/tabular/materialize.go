package tabular

import (
	"go.uber.org/zap"

	"github.com/tugtool/tugtool-sub001/pkg/arena"
	"github.com/tugtool/tugtool-sub001/pkg/errors"
	"github.com/tugtool/tugtool-sub001/pkg/logger"
	"github.com/tugtool/tugtool-sub001/pkg/value"
)

// Materialize copies every row of v into a new Collection with one object
// document per row. Documents hold the selected columns in column order;
// Missing cells are omitted and Null cells are kept as Null.
func (v *View) Materialize() *Collection {
	rows := make([]int, v.Len())
	for i := range rows {
		rows[i] = i
	}
	c, _ := v.MaterializeRows(rows)
	return c
}

// MaterializeRow copies row i into a new single-document Collection.
func (v *View) MaterializeRow(i int) (*Collection, error) {
	return v.MaterializeRows([]int{i})
}

// MaterializeRows copies the rows at idxs, in that order, into a new
// Collection. The result never shares storage with v.
func (v *View) MaterializeRows(idxs []int) (*Collection, error) {
	for pos, i := range idxs {
		if i < 0 || i >= v.Len() {
			return nil, errors.Newf(errors.ErrorTypeOperation,
				"materialize index %d out of range for view of length %d", i, v.Len()).
				WithDetail("position", pos).
				WithDetail("index", i)
		}
	}

	b := arena.NewBuilder()
	for _, i := range idxs {
		row, _ := v.Row(i)
		fields := make([]value.Field, 0, len(v.columns))
		for _, c := range v.columns {
			if id := c.cell(row.pos); id != arena.NoNode {
				fields = append(fields, value.F(c.name, v.arena.Value(id)))
			}
		}
		b.AddDocument(value.Object(fields...))
	}

	return v.finishMaterialized(b, len(idxs)), nil
}

func (v *View) finishMaterialized(b *arena.Builder, rows int) *Collection {
	nodes := b.Len()
	a := b.Finish()
	c := NewCollection(a)
	// the collection holds its own reference
	a.Release()

	v.collector().RecordMaterialized(rows)
	logger.Debug("view materialized",
		zap.Uint64("source_storage_id", v.StorageID()),
		zap.Uint64("storage_id", a.StorageID()),
		zap.Int("rows", rows),
		zap.Int("nodes", nodes))
	return c
}

// Materialize copies the documents of c into a new, compacted arena. Nodes
// of documents not in c are dropped.
func (c *Collection) Materialize() *Collection {
	b := arena.NewBuilder()
	for _, root := range c.roots {
		b.CopyDocument(c.arena, root)
	}
	nodes := b.Len()
	a := b.Finish()
	out := NewCollection(a)
	a.Release()

	c.collector().RecordMaterialized(len(c.roots))
	logger.Debug("collection materialized",
		zap.Uint64("source_storage_id", c.StorageID()),
		zap.Uint64("storage_id", a.StorageID()),
		zap.Int("rows", len(c.roots)),
		zap.Int("nodes", nodes))
	return out
}
