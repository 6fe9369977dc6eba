// Package value defines the tagged values stored in a document arena and the
// single ordering and equality relation used by every tabular operation.
//
// A Value is one of the node tags (Null, Bool, Int64, Float64, String, Date,
// DateTime, Duration, Binary, Array, Object) or Missing. The zero Value is
// Missing: no node exists at the logical position. Missing and Null are never
// interchangeable; sorting places Null after every present value and Missing
// after Null, and grouping keeps them in distinct groups.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Tag identifies the type of a stored node.
type Tag uint8

const (
	TagNull Tag = iota
	TagBool
	TagInt64
	TagFloat64
	TagString
	TagDate
	TagDateTime
	TagDuration
	TagBinary
	TagArray
	TagObject
)

var tagNames = [...]string{
	TagNull:     "null",
	TagBool:     "bool",
	TagInt64:    "int64",
	TagFloat64:  "float64",
	TagString:   "string",
	TagDate:     "date",
	TagDateTime: "datetime",
	TagDuration: "duration",
	TagBinary:   "binary",
	TagArray:    "array",
	TagObject:   "object",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return "tag(" + strconv.Itoa(int(t)) + ")"
}

// IsPrimitive reports whether t can be exported as a flat columnar array.
func (t Tag) IsPrimitive() bool {
	return t >= TagBool && t <= TagBinary
}

// IsContainer reports whether nodes of this tag own a run of children.
func (t Tag) IsContainer() bool {
	return t == TagArray || t == TagObject
}

// IsNumeric reports whether t belongs to the numeric family.
func (t Tag) IsNumeric() bool {
	return t == TagInt64 || t == TagFloat64
}

// Field is one named member of an object value.
type Field struct {
	Name  string
	Value Value
}

// Value is a tagged value or Missing. Values are immutable; container
// values share their element slices and must not be modified after
// construction.
type Value struct {
	tag     Tag
	present bool
	i       int64 // bool, int64, date days, datetime micros, duration nanos
	f       float64
	s       string
	b       []byte
	elems   []Value
	fields  []Field
}

// Missing returns the Missing value (no node present).
func Missing() Value { return Value{} }

// Null returns an explicit null.
func Null() Value { return Value{tag: TagNull, present: true} }

// Bool returns a Bool value.
func Bool(b bool) Value {
	v := Value{tag: TagBool, present: true}
	if b {
		v.i = 1
	}
	return v
}

// Int64 returns an Int64 value.
func Int64(i int64) Value { return Value{tag: TagInt64, present: true, i: i} }

// Float64 returns a Float64 value.
func Float64(f float64) Value { return Value{tag: TagFloat64, present: true, f: f} }

// String returns a String value.
func String(s string) Value { return Value{tag: TagString, present: true, s: s} }

// Binary returns a Binary value. The slice is retained.
func Binary(b []byte) Value { return Value{tag: TagBinary, present: true, b: b} }

// Date returns a Date value for the calendar day of t in UTC.
func Date(t time.Time) Value {
	return DateFromDays(floorDiv(t.UTC().Unix(), 86400))
}

// DateFromDays returns a Date value from days since the Unix epoch.
func DateFromDays(days int64) Value { return Value{tag: TagDate, present: true, i: days} }

// DateTime returns a DateTime value with microsecond precision.
func DateTime(t time.Time) Value {
	return DateTimeFromMicros(t.UnixMicro())
}

// DateTimeFromMicros returns a DateTime value from microseconds since the
// Unix epoch.
func DateTimeFromMicros(us int64) Value { return Value{tag: TagDateTime, present: true, i: us} }

// Duration returns a Duration value.
func Duration(d time.Duration) Value { return Value{tag: TagDuration, present: true, i: int64(d)} }

// Array returns an Array value over elems.
func Array(elems ...Value) Value { return Value{tag: TagArray, present: true, elems: elems} }

// Object returns an Object value with fields in the given order.
func Object(fields ...Field) Value { return Value{tag: TagObject, present: true, fields: fields} }

// F is shorthand for building object fields.
func F(name string, v Value) Field { return Field{Name: name, Value: v} }

// IsMissing reports whether no node is present.
func (v Value) IsMissing() bool { return !v.present }

// IsNull reports whether v is an explicit null.
func (v Value) IsNull() bool { return v.present && v.tag == TagNull }

// Present reports whether a node is present (including Null).
func (v Value) Present() bool { return v.present }

// Tag returns the tag of a present value. The second result is false for
// Missing.
func (v Value) Tag() (Tag, bool) { return v.tag, v.present }

// Kind returns a printable name of the tag, or "missing".
func (v Value) Kind() string {
	if !v.present {
		return "missing"
	}
	return v.tag.String()
}

func (v Value) is(t Tag) bool { return v.present && v.tag == t }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) { return v.i != 0, v.is(TagBool) }

// AsInt64 returns the Int64 payload.
func (v Value) AsInt64() (int64, bool) { return v.i, v.is(TagInt64) }

// AsFloat64 returns the Float64 payload.
func (v Value) AsFloat64() (float64, bool) { return v.f, v.is(TagFloat64) }

// AsString returns the String payload.
func (v Value) AsString() (string, bool) { return v.s, v.is(TagString) }

// AsBinary returns the Binary payload.
func (v Value) AsBinary() ([]byte, bool) { return v.b, v.is(TagBinary) }

// AsDate returns the Date payload as midnight UTC.
func (v Value) AsDate() (time.Time, bool) {
	return time.Unix(v.i*86400, 0).UTC(), v.is(TagDate)
}

// AsDateTime returns the DateTime payload in UTC.
func (v Value) AsDateTime() (time.Time, bool) {
	return time.UnixMicro(v.i).UTC(), v.is(TagDateTime)
}

// AsDuration returns the Duration payload.
func (v Value) AsDuration() (time.Duration, bool) {
	return time.Duration(v.i), v.is(TagDuration)
}

// Raw returns the integer payload shared by Int64, Date (days), DateTime
// (microseconds) and Duration (nanoseconds).
func (v Value) Raw() int64 { return v.i }

// Elems returns the elements of an Array value.
func (v Value) Elems() []Value {
	if !v.is(TagArray) {
		return nil
	}
	return v.elems
}

// Fields returns the fields of an Object value in document order.
func (v Value) Fields() []Field {
	if !v.is(TagObject) {
		return nil
	}
	return v.fields
}

// Field returns the named field of an Object value, or Missing.
func (v Value) Field(name string) Value {
	for _, f := range v.Fields() {
		if f.Name == name {
			return f.Value
		}
	}
	return Missing()
}

// Len returns the number of elements or fields of a container value.
func (v Value) Len() int {
	switch {
	case v.is(TagArray):
		return len(v.elems)
	case v.is(TagObject):
		return len(v.fields)
	}
	return 0
}

// Interface converts v to plain Go values: nil for Null and Missing,
// []interface{} for arrays and map[string]interface{} for objects.
func (v Value) Interface() interface{} {
	if !v.present {
		return nil
	}
	switch v.tag {
	case TagBool:
		return v.i != 0
	case TagInt64:
		return v.i
	case TagFloat64:
		return v.f
	case TagString:
		return v.s
	case TagBinary:
		return v.b
	case TagDate:
		t, _ := v.AsDate()
		return t
	case TagDateTime:
		t, _ := v.AsDateTime()
		return t
	case TagDuration:
		return time.Duration(v.i)
	case TagArray:
		out := make([]interface{}, len(v.elems))
		for i, e := range v.elems {
			out[i] = e.Interface()
		}
		return out
	case TagObject:
		out := make(map[string]interface{}, len(v.fields))
		for _, f := range v.fields {
			out[f.Name] = f.Value.Interface()
		}
		return out
	}
	return nil
}

// String renders v for logs and test failures.
func (v Value) String() string {
	var sb strings.Builder
	v.format(&sb)
	return sb.String()
}

func (v Value) format(sb *strings.Builder) {
	if !v.present {
		sb.WriteString("<missing>")
		return
	}
	switch v.tag {
	case TagNull:
		sb.WriteString("null")
	case TagBool:
		sb.WriteString(strconv.FormatBool(v.i != 0))
	case TagInt64:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case TagFloat64:
		if math.IsNaN(v.f) {
			sb.WriteString("NaN")
		} else {
			sb.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
		}
	case TagString:
		sb.WriteString(strconv.Quote(v.s))
	case TagBinary:
		fmt.Fprintf(sb, "0x%x", v.b)
	case TagDate:
		t, _ := v.AsDate()
		sb.WriteString(t.Format("2006-01-02"))
	case TagDateTime:
		t, _ := v.AsDateTime()
		sb.WriteString(t.Format(time.RFC3339Nano))
	case TagDuration:
		sb.WriteString(time.Duration(v.i).String())
	case TagArray:
		sb.WriteByte('[')
		for i, e := range v.elems {
			if i > 0 {
				sb.WriteByte(',')
			}
			e.format(sb)
		}
		sb.WriteByte(']')
	case TagObject:
		sb.WriteByte('{')
		for i, f := range v.fields {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(f.Name))
			sb.WriteByte(':')
			f.Value.format(sb)
		}
		sb.WriteByte('}')
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
