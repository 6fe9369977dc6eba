package json

import (
	"bytes"
	"encoding/base64"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/tugtool/tugtool-sub001/pkg/arena"
	"github.com/tugtool/tugtool-sub001/pkg/errors"
	"github.com/tugtool/tugtool-sub001/pkg/tabular"
	"github.com/tugtool/tugtool-sub001/pkg/value"
)

// AppendValue appends the JSON encoding of v to dst. Missing and
// non-finite floats encode as null, binary as base64, dates as
// "2006-01-02", datetimes as RFC 3339 and durations in time.Duration
// notation.
func AppendValue(dst []byte, v value.Value) []byte {
	tag, ok := v.Tag()
	if !ok {
		return append(dst, "null"...)
	}

	switch tag {
	case value.TagNull:
		return append(dst, "null"...)
	case value.TagBool:
		b, _ := v.AsBool()
		return strconv.AppendBool(dst, b)
	case value.TagInt64:
		i, _ := v.AsInt64()
		return strconv.AppendInt(dst, i, 10)
	case value.TagFloat64:
		f, _ := v.AsFloat64()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return append(dst, "null"...)
		}
		return strconv.AppendFloat(dst, f, 'g', -1, 64)
	case value.TagString:
		s, _ := v.AsString()
		return appendString(dst, s)
	case value.TagBinary:
		b, _ := v.AsBinary()
		return appendString(dst, base64.StdEncoding.EncodeToString(b))
	case value.TagDate:
		d, _ := v.AsDate()
		return appendString(dst, d.Format("2006-01-02"))
	case value.TagDateTime:
		t, _ := v.AsDateTime()
		return appendString(dst, t.Format(time.RFC3339Nano))
	case value.TagDuration:
		d, _ := v.AsDuration()
		return appendString(dst, d.String())
	case value.TagArray:
		dst = append(dst, '[')
		for i, e := range v.Elems() {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = AppendValue(dst, e)
		}
		return append(dst, ']')
	case value.TagObject:
		dst = append(dst, '{')
		first := true
		for _, f := range v.Fields() {
			if f.Value.IsMissing() {
				continue
			}
			if !first {
				dst = append(dst, ',')
			}
			first = false
			dst = appendString(dst, f.Name)
			dst = append(dst, ':')
			dst = AppendValue(dst, f.Value)
		}
		return append(dst, '}')
	}
	return append(dst, "null"...)
}

func appendString(dst []byte, s string) []byte {
	// strings always marshal
	b, _ := Marshal(s)
	return append(dst, b...)
}

// MarshalValue returns the JSON encoding of v.
func MarshalValue(v value.Value) []byte {
	return AppendValue(nil, v)
}

// EncodeNode writes the subtree rooted at id as one JSON value.
func EncodeNode(w io.Writer, a *arena.Arena, id arena.NodeID) error {
	buf := GetBuffer()
	defer PutBuffer(buf)
	buf.Write(AppendValue(buf.AvailableBuffer(), a.Value(id)))
	return write(w, buf)
}

// EncodeCollection writes every document of c as NDJSON.
func EncodeCollection(w io.Writer, c *tabular.Collection) error {
	return encodeLines(w, c.Len(), c.Document)
}

// EncodeView writes every row of v as an NDJSON object of its selected
// columns. Missing cells are left out.
func EncodeView(w io.Writer, v *tabular.View) error {
	return encodeLines(w, v.Len(), func(i int) value.Value {
		row, _ := v.Row(i)
		return row.Value()
	})
}

func encodeLines(w io.Writer, n int, doc func(int) value.Value) error {
	buf := GetBuffer()
	defer PutBuffer(buf)

	for i := 0; i < n; i++ {
		buf.Write(AppendValue(buf.AvailableBuffer(), doc(i)))
		buf.WriteByte('\n')
		if buf.Len() >= 64*1024 {
			if err := write(w, buf); err != nil {
				return err
			}
			buf.Reset()
		}
	}
	return write(w, buf)
}

func write(w io.Writer, buf *bytes.Buffer) error {
	if _, err := w.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write JSON")
	}
	return nil
}
