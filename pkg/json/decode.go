package json

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	gojson "github.com/goccy/go-json"

	"github.com/tugtool/tugtool-sub001/pkg/arena"
	"github.com/tugtool/tugtool-sub001/pkg/errors"
	"github.com/tugtool/tugtool-sub001/pkg/tabular"
	"github.com/tugtool/tugtool-sub001/pkg/value"
)

// ParseOption configures Parse.
type ParseOption func(*parseConfig)

type parseConfig struct {
	splitArray bool
	maxDepth   int
}

// SplitArray makes a top-level array contribute one document per element
// instead of a single array document.
func SplitArray() ParseOption {
	return func(c *parseConfig) { c.splitArray = true }
}

// MaxDepth limits nesting. The default is 512.
func MaxDepth(n int) ParseOption {
	return func(c *parseConfig) { c.maxDepth = n }
}

// Parse reads every top-level JSON value of r into one arena, one document
// per value. Concatenated values and NDJSON are both accepted.
func Parse(r io.Reader, opts ...ParseOption) (*arena.Arena, error) {
	cfg := parseConfig{maxDepth: 512}
	for _, opt := range opts {
		opt(&cfg)
	}

	dec := NewDecoder(r)
	b := arena.NewBuilder()
	for n := 0; ; n++ {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid JSON").
				WithDetail("document", n)
		}

		if delim, ok := tok.(gojson.Delim); ok && delim == '[' && cfg.splitArray {
			for dec.More() {
				v, err := readValue(dec, cfg.maxDepth, 1)
				if err != nil {
					return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid JSON").
						WithDetail("document", n)
				}
				b.AddDocument(v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeData, "unterminated array")
			}
			continue
		}

		v, err := fromToken(dec, tok, cfg.maxDepth, 0)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid JSON").
				WithDetail("document", n)
		}
		b.AddDocument(v)
	}
	return b.Finish(), nil
}

// ParseCollection parses r and returns a Collection over its documents.
func ParseCollection(r io.Reader, opts ...ParseOption) (*tabular.Collection, error) {
	a, err := Parse(r, opts...)
	if err != nil {
		return nil, err
	}
	c := tabular.NewCollection(a)
	a.Release()
	return c, nil
}

// ParseValue parses a single JSON value.
func ParseValue(data []byte) (value.Value, error) {
	dec := NewDecoder(bytes.NewReader(data))
	v, err := readValue(dec, 512, 0)
	if err != nil {
		return value.Missing(), errors.Wrap(err, errors.ErrorTypeData, "invalid JSON")
	}
	return v, nil
}

func readValue(dec *gojson.Decoder, maxDepth, depth int) (value.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return value.Missing(), err
	}
	return fromToken(dec, tok, maxDepth, depth)
}

func fromToken(dec *gojson.Decoder, tok interface{}, maxDepth, depth int) (value.Value, error) {
	switch t := tok.(type) {
	case nil:
		return value.Null(), nil
	case bool:
		return value.Bool(t), nil
	case string:
		return value.String(t), nil
	case gojson.Number:
		return number(t)
	case float64:
		return value.Float64(t), nil
	case gojson.Delim:
		if depth >= maxDepth {
			return value.Missing(), fmt.Errorf("nesting deeper than %d", maxDepth)
		}
		switch t {
		case '[':
			var elems []value.Value
			for dec.More() {
				v, err := readValue(dec, maxDepth, depth+1)
				if err != nil {
					return value.Missing(), err
				}
				elems = append(elems, v)
			}
			if _, err := dec.Token(); err != nil {
				return value.Missing(), err
			}
			return value.Array(elems...), nil
		case '{':
			var fields []value.Field
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return value.Missing(), err
				}
				key, ok := keyTok.(string)
				if !ok {
					return value.Missing(), fmt.Errorf("object key is %T", keyTok)
				}
				v, err := readValue(dec, maxDepth, depth+1)
				if err != nil {
					return value.Missing(), err
				}
				fields = append(fields, value.F(key, v))
			}
			if _, err := dec.Token(); err != nil {
				return value.Missing(), err
			}
			return value.Object(fields...), nil
		}
		return value.Missing(), fmt.Errorf("unexpected delimiter %q", rune(t))
	}
	return value.Missing(), fmt.Errorf("unexpected token %v", tok)
}

func number(n gojson.Number) (value.Value, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return value.Int64(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return value.Missing(), fmt.Errorf("invalid number %q: %w", s, err)
	}
	return value.Float64(f), nil
}
