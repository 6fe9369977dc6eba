package value

import (
	"bytes"
	"math"
	"sort"
	"strings"

	"github.com/tugtool/tugtool-sub001/pkg/errors"
)

// absence ranks: present values first, then Null, then Missing.
const (
	rankPresent = iota
	rankNull
	rankMissing
)

func rank(v Value) int {
	switch {
	case !v.present:
		return rankMissing
	case v.tag == TagNull:
		return rankNull
	default:
		return rankPresent
	}
}

// Compare orders two values and returns -1, 0 or +1.
//
// Present values of the same tag compare in their natural order. Int64 and
// Float64 form one numeric family compared by exact magnitude; NaN equals
// NaN and sorts after every other number. Any other pair of different tags
// is an operation error: there is no implicit cross-type order. Null sorts
// after every present value and Missing sorts after Null.
func Compare(a, b Value) (int, error) {
	ra, rb := rank(a), rank(b)
	if ra != rankPresent || rb != rankPresent {
		return cmpInt(int64(ra), int64(rb)), nil
	}

	if a.tag != b.tag {
		if a.tag.IsNumeric() && b.tag.IsNumeric() {
			return compareNumeric(a, b), nil
		}
		return 0, errors.Newf(errors.ErrorTypeOperation, "cross-type comparison between %s and %s", a.tag, b.tag).
			WithDetail("left", a.tag.String()).
			WithDetail("right", b.tag.String())
	}

	switch a.tag {
	case TagBool, TagInt64, TagDate, TagDateTime, TagDuration:
		return cmpInt(a.i, b.i), nil
	case TagFloat64:
		return compareFloat(a.f, b.f), nil
	case TagString:
		return strings.Compare(a.s, b.s), nil
	case TagBinary:
		return bytes.Compare(a.b, b.b), nil
	case TagArray:
		return compareElems(a.elems, b.elems)
	case TagObject:
		return compareFields(sortedFields(a.fields), sortedFields(b.fields))
	}
	return 0, nil
}

// CompareForSort orders a and b for one sort key. desc inverts only the
// comparison of two present non-NaN values; Null, Missing and NaN keep
// their trailing placement in both directions.
func CompareForSort(a, b Value, desc bool) (int, error) {
	ra, rb := rank(a), rank(b)
	if ra != rankPresent || rb != rankPresent {
		return cmpInt(int64(ra), int64(rb)), nil
	}

	na, nb := isNaN(a), isNaN(b)
	if na || nb {
		if na && nb {
			return 0, nil
		}
		if a.tag.IsNumeric() && b.tag.IsNumeric() {
			if na {
				return 1, nil
			}
			return -1, nil
		}
	}

	c, err := Compare(a, b)
	if err != nil {
		return 0, err
	}
	if desc {
		c = -c
	}
	return c, nil
}

// Equal reports whether a and b have the same canonical key.
func Equal(a, b Value) bool {
	return bytes.Equal(CanonicalKey(a), CanonicalKey(b))
}

func isNaN(v Value) bool {
	return v.present && v.tag == TagFloat64 && math.IsNaN(v.f)
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloat(a, b float64) int {
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareNumeric(a, b Value) int {
	if a.tag == TagInt64 {
		if b.tag == TagInt64 {
			return cmpInt(a.i, b.i)
		}
		return compareIntFloat(a.i, b.f)
	}
	if b.tag == TagInt64 {
		return -compareIntFloat(b.i, a.f)
	}
	return compareFloat(a.f, b.f)
}

// compareIntFloat compares an int64 with a float64 exactly, without
// rounding the integer through float64.
func compareIntFloat(i int64, f float64) int {
	switch {
	case math.IsNaN(f):
		return -1
	case f >= twoTo63:
		return -1
	case f < -twoTo63:
		return 1
	}
	t := math.Trunc(f)
	ti := int64(t)
	if c := cmpInt(i, ti); c != 0 {
		return c
	}
	switch frac := f - t; {
	case frac > 0:
		return -1
	case frac < 0:
		return 1
	}
	return 0
}

const twoTo63 = 9223372036854775808.0

func compareElems(a, b []Value) (int, error) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		c, err := Compare(a[i], b[i])
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return c, nil
		}
	}
	return cmpInt(int64(len(a)), int64(len(b))), nil
}

func compareFields(a, b []Field) (int, error) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := strings.Compare(a[i].Name, b[i].Name); c != 0 {
			return c, nil
		}
		c, err := Compare(a[i].Value, b[i].Value)
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return c, nil
		}
	}
	return cmpInt(int64(len(a)), int64(len(b))), nil
}

func sortedFields(fields []Field) []Field {
	if sort.SliceIsSorted(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name }) {
		return fields
	}
	out := make([]Field, len(fields))
	copy(out, fields)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
