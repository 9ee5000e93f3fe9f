// Package args provides an insertion-ordered argument map. The order in which
// a caller supplies keys is preserved through encoding.
package args

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Args is an insertion-ordered map from field name to runtime value. Nested
// records decoded from JSON or YAML are themselves *Args.
type Args struct {
	keys   []string
	values map[string]interface{}
}

// New builds Args from alternating keys and values:
//
//	args.New("prompt", "hello", "max_tokens", 64)
//
// Non-string keys are formatted with fmt.Sprint; a trailing key without a
// value is stored with a nil value.
func New(kv ...interface{}) *Args {
	a := &Args{values: make(map[string]interface{}, len(kv)/2)}
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		var v interface{}
		if i+1 < len(kv) {
			v = kv[i+1]
		}
		a.Set(key, v)
	}
	return a
}

// FromMap builds Args from a plain map. Map order is undefined in Go, so keys
// are ordered lexically.
func FromMap(m map[string]interface{}) *Args {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	a := &Args{keys: keys, values: make(map[string]interface{}, len(m))}
	for k, v := range m {
		a.values[k] = v
	}
	return a
}

// Set stores v under key. Re-setting an existing key keeps its position.
func (a *Args) Set(key string, v interface{}) *Args {
	if a.values == nil {
		a.values = make(map[string]interface{})
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = v
	return a
}

// Get returns the value stored under key.
func (a *Args) Get(key string) (interface{}, bool) {
	if a == nil {
		return nil, false
	}
	v, ok := a.values[key]
	return v, ok
}

// Has reports whether key is present, even with a nil value.
func (a *Args) Has(key string) bool {
	_, ok := a.Get(key)
	return ok
}

// Keys returns the keys in insertion order.
func (a *Args) Keys() []string {
	if a == nil {
		return nil
	}
	return append([]string(nil), a.keys...)
}

// Len returns the number of keys.
func (a *Args) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// Each calls fn for every entry in order until fn returns false.
func (a *Args) Each(fn func(key string, v interface{}) bool) {
	if a == nil {
		return
	}
	for _, k := range a.keys {
		if !fn(k, a.values[k]) {
			return
		}
	}
}

// Map returns a plain nested copy with every *Args converted to map[string]interface{}.
func (a *Args) Map() map[string]interface{} {
	if a == nil {
		return nil
	}
	out := make(map[string]interface{}, len(a.keys))
	for _, k := range a.keys {
		out[k] = Plain(a.values[k])
	}
	return out
}

// Plain converts any *Args nested in v into plain maps.
func Plain(v interface{}) interface{} {
	switch t := v.(type) {
	case *Args:
		return t.Map()
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = Plain(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = Plain(e)
		}
		return out
	default:
		return v
	}
}

// MarshalJSON writes keys in insertion order.
func (a *Args) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range a.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(a.values[k])
		if err != nil {
			return nil, fmt.Errorf("args:args - failed to encode %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
