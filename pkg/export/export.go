// Package export writes the primitive columns of a View as Apache Arrow
// IPC data, either as a seekable file or as a stream.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/tugtool/tugtool-sub001/pkg/errors"
	"github.com/tugtool/tugtool-sub001/pkg/logger"
	"github.com/tugtool/tugtool-sub001/pkg/metrics"
	"github.com/tugtool/tugtool-sub001/pkg/tabular"
)

var exportMetrics = metrics.NewCollector("export")

// Format selects the IPC framing.
type Format string

const (
	// FormatFile is the random-access Arrow file format.
	FormatFile Format = "file"
	// FormatStream is the Arrow streaming format.
	FormatStream Format = "stream"
)

// Compression selects the IPC body compression codec.
type Compression string

const (
	None Compression = "none"
	LZ4  Compression = "lz4"
	Zstd Compression = "zstd"
)

// ParseFormat parses a format name. The empty string means FormatFile.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatFile:
		return FormatFile, nil
	case FormatStream:
		return FormatStream, nil
	}
	return "", errors.Newf(errors.ErrorTypeValidation, "unknown export format %q", s)
}

// ParseCompression parses a codec name. The empty string means None.
func ParseCompression(s string) (Compression, error) {
	switch Compression(strings.ToLower(s)) {
	case "", None:
		return None, nil
	case LZ4:
		return LZ4, nil
	case Zstd, "zstandard":
		return Zstd, nil
	}
	return "", errors.Newf(errors.ErrorTypeValidation, "unknown export compression %q", s)
}

// Options controls WriteArrow.
type Options struct {
	Format      Format
	Compression Compression
	// SkipUnsupported drops columns that hold containers, mixed tags or
	// no values at all instead of failing.
	SkipUnsupported bool
	Allocator       memory.Allocator
}

// Stats describes a finished export.
type Stats struct {
	Rows    int
	Columns []string
	Skipped []string
}

// Record converts the columns of v into one Arrow record, in row order.
// The caller releases the record.
func Record(v *tabular.View, opts Options) (arrow.Record, Stats, error) {
	mem := opts.Allocator
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	var (
		stats  = Stats{Rows: v.Len()}
		fields []arrow.Field
		cols   []arrow.Array
	)
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	for _, name := range v.ColumnNames() {
		col, err := v.ColumnAsArray(name)
		if err == nil {
			var arr arrow.Array
			arr, err = col.ToArrow(mem)
			col.Close()
			if err == nil {
				fields = append(fields, arrow.Field{Name: name, Type: arr.DataType(), Nullable: true})
				cols = append(cols, arr)
				stats.Columns = append(stats.Columns, name)
				continue
			}
		}
		if !opts.SkipUnsupported {
			return nil, stats, err
		}
		logger.Debug("skipping column", zap.String("column", name), zap.Error(err))
		stats.Skipped = append(stats.Skipped, name)
	}

	if len(cols) == 0 {
		return nil, stats, errors.New(errors.ErrorTypeOperation, "no exportable columns").
			WithDetail("skipped", stats.Skipped)
	}

	schema := arrow.NewSchema(fields, nil)
	return array.NewRecord(schema, cols, int64(v.Len())), stats, nil
}

// WriteArrow writes v as a single record batch to w.
func WriteArrow(w io.Writer, v *tabular.View, opts Options) (Stats, error) {
	timer := metrics.NewTimer("write_arrow")

	rec, stats, err := Record(v, opts)
	if err != nil {
		return stats, err
	}
	defer rec.Release()

	ipcOpts := []ipc.Option{ipc.WithSchema(rec.Schema())}
	if opts.Allocator != nil {
		ipcOpts = append(ipcOpts, ipc.WithAllocator(opts.Allocator))
	}
	switch opts.Compression {
	case "", None:
	case LZ4:
		ipcOpts = append(ipcOpts, ipc.WithLZ4())
	case Zstd:
		ipcOpts = append(ipcOpts, ipc.WithZstd())
	default:
		return stats, errors.Newf(errors.ErrorTypeValidation, "unknown export compression %q", opts.Compression)
	}

	var rw interface {
		Write(arrow.Record) error
		Close() error
	}
	switch opts.Format {
	case "", FormatFile:
		fw, err := ipc.NewFileWriter(w, ipcOpts...)
		if err != nil {
			return stats, errors.Wrap(err, errors.ErrorTypeFile, "failed to create Arrow writer")
		}
		rw = fw
	case FormatStream:
		rw = ipc.NewWriter(w, ipcOpts...)
	default:
		return stats, errors.Newf(errors.ErrorTypeValidation, "unknown export format %q", opts.Format)
	}

	if err := rw.Write(rec); err != nil {
		rw.Close()
		return stats, errors.Wrap(err, errors.ErrorTypeFile, "failed to write record batch")
	}
	if err := rw.Close(); err != nil {
		return stats, errors.Wrap(err, errors.ErrorTypeFile, "failed to close Arrow writer")
	}

	d := timer.Stop()
	exportMetrics.RecordOperation(timer.Name(), stats.Rows, d)
	logger.Debug("arrow export finished",
		zap.Int("rows", stats.Rows),
		zap.Strings("columns", stats.Columns),
		zap.Strings("skipped", stats.Skipped),
		zap.String("compression", string(opts.Compression)),
		zap.Duration("duration", d))
	return stats, nil
}

func (s Stats) String() string {
	return fmt.Sprintf("%d rows, %d columns", s.Rows, len(s.Columns))
}
