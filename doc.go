// Package tabula stores JSON-like documents in a compact columnar arena and
// exposes their array-valued fields as zero-copy tables.
//
// # Architecture
//
// The module is organized in layers, each in its own package:
//
//   - value: the in-memory document model, with ordering, equality and
//     canonical keys
//   - arena: immutable flat node storage with per-type value pools and a
//     single-use Builder
//   - expr: row expressions used to filter, sort, group and deduplicate
//   - tabular: Collection (one row per document) and View (one row per
//     array index of an object's array fields), the shared operations,
//     column export, materialization and table discovery
//   - json, export, compression: JSON/NDJSON parsing and encoding, Apache
//     Arrow IPC output, and codec selection by file extension
//
// Every derived table shares the storage of its source. Rows are copied
// only by Materialize, which always allocates a new arena.
//
// # Quick Start
//
//	c, err := json.ParseCollection(strings.NewReader(`{"t":[1,2,3],"v":["a","b","c"]}`))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	v, err := tabular.ViewOf(c, 0)
//	if err != nil {
//	    return err
//	}
//	defer v.Close()
//
//	top, err := v.SortBy([]expr.Expr{expr.Path("t")}, []bool{true})
//	if err != nil {
//	    return err
//	}
//	row, _ := top.Row(0)
//	s, _ := row.GetString("v") // "c"
//
// # Command Line
//
// The tabula command in cmd/tabula wraps the same packages:
//
//	tabula discover report.json
//	tabula view events.ndjson.zst --path data --sort ts --desc --head 10
//	tabula export report.json --path data --out data.arrow --compression zstd
package tabula
