package value

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/tugtool/tugtool-sub001/pkg/pool"
)

// canonical key type codes
const (
	codeMissing  = 'M'
	codeNull     = 'N'
	codeBool     = 'b'
	codeInt      = 'i'
	codeFloat    = 'f'
	codeNaN      = 'q'
	codeString   = 's'
	codeBinary   = 'x'
	codeDate     = 'd'
	codeDateTime = 't'
	codeDuration = 'u'
	codeArray    = 'a'
	codeObject   = 'o'
)

// CanonicalKey returns the equality representative of v. Values that
// Compare equal produce identical keys: integral floats that fit in int64
// encode like the equal Int64, every NaN encodes identically, and objects
// encode their fields sorted by name. Null and Missing have distinct keys.
func CanonicalKey(v Value) []byte {
	return AppendCanonical(nil, v)
}

// AppendCanonical appends the canonical key of v to dst. Encodings are
// self-delimiting, so keys of several values can be concatenated.
func AppendCanonical(dst []byte, v Value) []byte {
	if !v.present {
		return append(dst, codeMissing)
	}
	switch v.tag {
	case TagNull:
		return append(dst, codeNull)
	case TagBool:
		return append(dst, codeBool, byte(v.i))
	case TagInt64:
		return appendInt(dst, codeInt, v.i)
	case TagFloat64:
		return appendFloat(dst, v.f)
	case TagString:
		return appendBytes(dst, codeString, []byte(v.s))
	case TagBinary:
		return appendBytes(dst, codeBinary, v.b)
	case TagDate:
		return appendInt(dst, codeDate, v.i)
	case TagDateTime:
		return appendInt(dst, codeDateTime, v.i)
	case TagDuration:
		return appendInt(dst, codeDuration, v.i)
	case TagArray:
		dst = append(dst, codeArray)
		dst = binary.AppendUvarint(dst, uint64(len(v.elems)))
		for _, e := range v.elems {
			dst = AppendCanonical(dst, e)
		}
		return dst
	case TagObject:
		fields := sortedFields(v.fields)
		dst = append(dst, codeObject)
		dst = binary.AppendUvarint(dst, uint64(len(fields)))
		for _, f := range fields {
			dst = binary.AppendUvarint(dst, uint64(len(f.Name)))
			dst = append(dst, f.Name...)
			dst = AppendCanonical(dst, f.Value)
		}
		return dst
	}
	return dst
}

func appendInt(dst []byte, code byte, i int64) []byte {
	dst = append(dst, code)
	return binary.BigEndian.AppendUint64(dst, uint64(i))
}

func appendFloat(dst []byte, f float64) []byte {
	if math.IsNaN(f) {
		return append(dst, codeNaN)
	}
	if f == math.Trunc(f) && f >= -twoTo63 && f < twoTo63 {
		return appendInt(dst, codeInt, int64(f))
	}
	dst = append(dst, codeFloat)
	return binary.BigEndian.AppendUint64(dst, math.Float64bits(f))
}

func appendBytes(dst []byte, code byte, b []byte) []byte {
	dst = append(dst, code)
	dst = binary.AppendUvarint(dst, uint64(len(b)))
	return append(dst, b...)
}

// Key is the canonical key of a tuple of values, as produced by evaluating
// the key expressions of group_by or distinct on one row.
type Key struct {
	canonical string
	values    []Value
}

// NewKey builds the key for values.
func NewKey(values []Value) Key {
	buf := pool.ByteSlicePool.Get()
	for _, v := range values {
		buf = AppendCanonical(buf, v)
	}
	k := Key{canonical: string(buf), values: values}
	pool.ByteSlicePool.Put(buf)
	return k
}

// Values returns the representative values of the key, taken from the first
// row that produced it.
func (k Key) Values() []Value { return k.values }

// Canonical returns the canonical encoding usable as a map key.
func (k Key) Canonical() string { return k.canonical }

// Hash returns a 64-bit hash of the canonical encoding.
func (k Key) Hash() uint64 { return xxhash.Sum64String(k.canonical) }

// Equal reports whether two keys are canonically equal.
func (k Key) Equal(o Key) bool { return k.canonical == o.canonical }
