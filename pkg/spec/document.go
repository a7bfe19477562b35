// Package spec loads specification documents and validates them against the
// se_dsl schema. Object key order is preserved exactly as written, because
// the AST builder walks dictionaries in insertion order.
package spec

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/canonicalize"
	"github.com/ShieldCraft-AI/ShieldCraft-Engine-sub002/pkg/pointer"
)

// SpecFormat is the only accepted metadata.spec_format value.
const SpecFormat = "canonical_json_v1"

// Format is the on-disk encoding of a specification.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Object is a JSON object that remembers key insertion order.
// A repeated key keeps its first position and its last value.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject returns an empty ordered object.
func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// Set inserts or replaces key.
func (o *Object) Set(key string, value any) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get implements pointer.Keyed.
func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// MarshalJSON emits keys in insertion order. Canonical hashing re-sorts them.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

var _ pointer.Keyed = (*Object)(nil)

// Document is a loaded specification.
type Document struct {
	Root   any    // *Object for every valid spec
	Path   string // empty when parsed from memory
	Format Format
	Raw    []byte
}

// Object returns the root object, or nil when the root is not an object.
func (d *Document) Object() *Object {
	if d == nil {
		return nil
	}
	obj, _ := d.Root.(*Object)
	return obj
}

// Resolve resolves a JSON pointer against the document.
func (d *Document) Resolve(ptr string) (any, error) {
	return pointer.Resolve(d.Root, ptr)
}

// Plain returns the document as plain map[string]any / []any values with
// json.Number scalars. This is the form handed to the schema validator and
// the canonicalizer.
func (d *Document) Plain() any {
	return Plain(d.Root)
}

// Plain converts ordered values into plain Go JSON values.
func Plain(v any) any {
	switch t := v.(type) {
	case *Object:
		out := make(map[string]any, t.Len())
		for _, k := range t.keys {
			out[k] = Plain(t.values[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Plain(e)
		}
		return out
	default:
		return t
	}
}

// Native is Plain with json.Number replaced by int64 or float64, which is
// what expression evaluators expect.
func Native(v any) any {
	switch t := v.(type) {
	case *Object:
		out := make(map[string]any, t.Len())
		for _, k := range t.keys {
			out[k] = Native(t.values[k])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Native(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Native(e)
		}
		return out
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return t
	}
}

// String returns v as a string when it is a JSON string.
func String(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// Lookup returns obj[key] when obj is an *Object.
func Lookup(obj any, key string) (any, bool) {
	o, ok := obj.(*Object)
	if !ok {
		return nil, false
	}
	return o.Get(key)
}

// LookupString returns obj[key] when it is a string.
func LookupString(obj any, key string) (string, bool) {
	v, ok := Lookup(obj, key)
	if !ok {
		return "", false
	}
	return String(v)
}

// ScalarText renders a scalar for human-readable item text.
func ScalarText(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		// 1.0 and 1 must render alike: the determinism record stores the
		// canonical spec and replays from it.
		if c, err := canonicalize.JCSString(t); err == nil {
			return c
		}
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
