// Package expr defines the predicate and key expressions evaluated against
// table rows, plus a minimal set of expression nodes.
//
// Tabular operations depend only on the Expr and Row interfaces; callers
// with a richer expression language implement Expr themselves.
package expr

import (
	"fmt"
	"strings"

	"github.com/tugtool/tugtool-sub001/pkg/errors"
	"github.com/tugtool/tugtool-sub001/pkg/value"
)

// Row is the evaluation context of one table row.
type Row interface {
	// Get returns the named field of the row, or Missing.
	Get(field string) value.Value
	// Value returns the whole row as a value: the document for collection
	// rows, an object of the selected columns for view rows.
	Value() value.Value
}

// Expr evaluates to a value for a row.
type Expr interface {
	Eval(row Row) (value.Value, error)
}

// Func adapts a function to Expr.
type Func func(row Row) (value.Value, error)

func (f Func) Eval(row Row) (value.Value, error) { return f(row) }

type path struct {
	fields []string
}

// Path returns the value at a dotted field path: the first field is read
// from the row, later fields descend into nested objects. A step through a
// non-object yields Missing.
func Path(fields ...string) Expr {
	return path{fields: fields}
}

// ParsePath splits a dotted path such as "meta.owner".
func ParsePath(s string) Expr {
	return Path(strings.Split(s, ".")...)
}

func (p path) Eval(row Row) (value.Value, error) {
	if len(p.fields) == 0 {
		return row.Value(), nil
	}
	v := row.Get(p.fields[0])
	for _, f := range p.fields[1:] {
		v = v.Field(f)
	}
	return v, nil
}

func (p path) String() string { return strings.Join(p.fields, ".") }

type lit struct{ v value.Value }

// Lit returns a constant.
func Lit(v value.Value) Expr { return lit{v: v} }

func (l lit) Eval(Row) (value.Value, error) { return l.v, nil }

type this struct{}

// This evaluates to the whole row.
func This() Expr { return this{} }

func (this) Eval(row Row) (value.Value, error) { return row.Value(), nil }

// Op is a comparison operator.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var opNames = [...]string{"==", "!=", "<", "<=", ">", ">="}

func (o Op) String() string { return opNames[o] }

type cmp struct {
	op          Op
	left, right Expr
}

// Compare returns an expression applying op to two operands. If either
// operand is Null or Missing the result is Null. Eq and Ne across
// incomparable types yield false and true; ordering operators across
// incomparable types fail.
func Compare(op Op, left, right Expr) Expr { return cmp{op: op, left: left, right: right} }

func Eq(l, r Expr) Expr { return Compare(OpEq, l, r) }
func Ne(l, r Expr) Expr { return Compare(OpNe, l, r) }
func Lt(l, r Expr) Expr { return Compare(OpLt, l, r) }
func Le(l, r Expr) Expr { return Compare(OpLe, l, r) }
func Gt(l, r Expr) Expr { return Compare(OpGt, l, r) }
func Ge(l, r Expr) Expr { return Compare(OpGe, l, r) }

func (c cmp) Eval(row Row) (value.Value, error) {
	l, err := c.left.Eval(row)
	if err != nil {
		return value.Missing(), err
	}
	r, err := c.right.Eval(row)
	if err != nil {
		return value.Missing(), err
	}
	if !l.Present() || !r.Present() || l.IsNull() || r.IsNull() {
		return value.Null(), nil
	}

	n, err := value.Compare(l, r)
	if err != nil {
		switch c.op {
		case OpEq:
			return value.Bool(false), nil
		case OpNe:
			return value.Bool(true), nil
		}
		return value.Missing(), errors.Wrap(err, errors.ErrorTypeOperation,
			fmt.Sprintf("cannot evaluate %s %s %s", l.Kind(), c.op, r.Kind()))
	}

	var res bool
	switch c.op {
	case OpEq:
		res = n == 0
	case OpNe:
		res = n != 0
	case OpLt:
		res = n < 0
	case OpLe:
		res = n <= 0
	case OpGt:
		res = n > 0
	case OpGe:
		res = n >= 0
	}
	return value.Bool(res), nil
}

type logical struct {
	and         bool
	left, right Expr
}

// And is the three-valued conjunction: false wins over Null, Null over
// true. Non-bool operands count as Null.
func And(l, r Expr) Expr { return logical{and: true, left: l, right: r} }

// Or is the three-valued disjunction: true wins over Null, Null over false.
func Or(l, r Expr) Expr { return logical{left: l, right: r} }

func (e logical) Eval(row Row) (value.Value, error) {
	l, err := e.left.Eval(row)
	if err != nil {
		return value.Missing(), err
	}
	lb, lok := l.AsBool()
	if lok && lb != e.and {
		return value.Bool(lb), nil
	}

	r, err := e.right.Eval(row)
	if err != nil {
		return value.Missing(), err
	}
	rb, rok := r.AsBool()
	if rok && rb != e.and {
		return value.Bool(rb), nil
	}
	if lok && rok {
		return value.Bool(e.and), nil
	}
	return value.Null(), nil
}

type not struct{ e Expr }

// Not negates a Bool; anything else evaluates to Null.
func Not(e Expr) Expr { return not{e: e} }

func (n not) Eval(row Row) (value.Value, error) {
	v, err := n.e.Eval(row)
	if err != nil {
		return value.Missing(), err
	}
	if b, ok := v.AsBool(); ok {
		return value.Bool(!b), nil
	}
	return value.Null(), nil
}

type isNull struct{ e Expr }

// IsNull is true when e evaluates to an explicit Null.
func IsNull(e Expr) Expr { return isNull{e: e} }

func (n isNull) Eval(row Row) (value.Value, error) {
	v, err := n.e.Eval(row)
	if err != nil {
		return value.Missing(), err
	}
	return value.Bool(v.IsNull()), nil
}

type isMissing struct{ e Expr }

// IsMissing is true when e evaluates to Missing.
func IsMissing(e Expr) Expr { return isMissing{e: e} }

func (n isMissing) Eval(row Row) (value.Value, error) {
	v, err := n.e.Eval(row)
	if err != nil {
		return value.Missing(), err
	}
	return value.Bool(v.IsMissing()), nil
}
