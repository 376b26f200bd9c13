// Package document provides the unstructured items the command line tool feeds through pipelines:
// JSON-like maps with deterministic identity, deep copies and field access by JSONPath.
package document

import (
	"cmp"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ohler55/ojg/jp"
)

// ErrNoField is returned when a path does not resolve to a value.
var ErrNoField = errors.New("no such field")

// Document represents an unstructured document as map[string]any. It can contain embedded maps,
// slices and primitives (int64, float64, string, bool).
type Document = map[string]any

// Key returns a deterministic JSON representation of doc. Two documents are equal iff their keys
// are.
func Key(doc Document) (string, error) {
	// encoding/json sorts map keys, so the encoding is canonical
	b, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal document to JSON")
	}
	return string(b), nil
}

// DeepEqual checks if two documents are equal using JSON comparison.
func DeepEqual(a, b Document) bool {
	ka, err := Key(a)
	if err != nil {
		return false
	}
	kb, err := Key(b)
	if err != nil {
		return false
	}
	return ka == kb
}

// DeepCopy creates a deep copy of a document.
func DeepCopy(doc Document) Document {
	if doc == nil {
		return nil
	}
	return deepCopy(doc).(Document)
}

func deepCopy(val any) any {
	switch v := val.(type) {
	case map[string]any:
		ret := make(map[string]any, len(v))
		for k, sub := range v {
			ret[k] = deepCopy(sub)
		}
		return ret
	case []any:
		ret := make([]any, len(v))
		for i, sub := range v {
			ret[i] = deepCopy(sub)
		}
		return ret
	default:
		// primitives are immutable
		return v
	}
}

// ErrInvalidPath is returned for field paths that are not valid JSONPath expressions.
var ErrInvalidPath = errors.New("invalid field path")

// Path is a compiled field path. Paths are JSONPath expressions, e.g. "$.spec.replicas" or
// "$.spec.ports[0].port"; the "$." prefix may be omitted.
type Path struct {
	raw  string
	expr jp.Expr
}

// ParsePath compiles a field path.
func ParsePath(path string) (Path, error) {
	query := path
	if query == "" {
		return Path{}, errors.Wrap(ErrInvalidPath, "path must not be empty")
	}
	if query[0] != '$' && query[0] != '@' {
		query = "$." + query
	}
	x, err := jp.ParseString(query)
	if err != nil {
		return Path{}, errors.Wrapf(ErrInvalidPath, "%q: %s", path, err.Error())
	}
	return Path{raw: path, expr: x}, nil
}

// String returns the path as it was given to ParsePath.
func (p Path) String() string { return p.raw }

// Get returns the first value the path selects from doc.
func (p Path) Get(doc Document) (any, error) {
	values := p.expr.Get(doc)
	if len(values) == 0 {
		return nil, errors.Wrapf(ErrNoField, "%q", p.raw)
	}
	return values[0], nil
}

// GetString returns the value the path selects rendered as a string.
func (p Path) GetString(doc Document) (string, error) {
	v, err := p.Get(doc)
	if err != nil {
		return "", err
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}

// Compare orders two documents by the value the path selects. Numbers compare numerically,
// strings lexically and bools false first; documents missing the field sort first, and values of
// different kinds are ordered by their JSON encoding.
func (p Path) Compare(a, b Document) int {
	va, erra := p.Get(a)
	vb, errb := p.Get(b)
	switch {
	case erra != nil && errb != nil:
		return 0
	case erra != nil:
		return -1
	case errb != nil:
		return 1
	}
	return compareValues(va, vb)
}

// Get returns the value at path, e.g. "spec.replicas" or "$.spec.ports[0].port".
func Get(doc Document, path string) (any, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	return p.Get(doc)
}

// GetString returns the value at path rendered as a string.
func GetString(doc Document, path string) (string, error) {
	p, err := ParsePath(path)
	if err != nil {
		return "", err
	}
	return p.GetString(doc)
}

// Compare orders two documents by the value at path, see Path.Compare. An invalid path compares
// every pair as equal.
func Compare(a, b Document, path string) int {
	p, err := ParsePath(path)
	if err != nil {
		return 0
	}
	return p.Compare(a, b)
}

func compareValues(va, vb any) int {
	if fa, ok := toFloat(va); ok {
		if fb, ok := toFloat(vb); ok {
			return cmp.Compare(fa, fb)
		}
	}
	switch x := va.(type) {
	case string:
		if y, ok := vb.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := vb.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	}
	ja, _ := json.Marshal(va)
	jb, _ := json.Marshal(vb)
	return strings.Compare(string(ja), string(jb))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
