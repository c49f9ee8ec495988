package opt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Param is one named optimizer parameter.
type Param struct {
	Key   string
	Value any
}

// Params is an ordered set of named optimizer parameters. Order is the order
// in which keys were supplied and is kept through YAML and JSON decoding.
//
// Lookups never fail: a missing key, or a value of the wrong type, yields
// the caller's default.
type Params []Param

// Get returns the value stored under key.
func (p Params) Get(key string) (any, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// Set returns a copy of p with key set to value. An existing key keeps its
// position; a new key is appended.
func (p Params) Set(key string, value any) Params {
	out := append(Params(nil), p...)
	for i := range out {
		if out[i].Key == key {
			out[i].Value = value
			return out
		}
	}
	return append(out, Param{Key: key, Value: value})
}

// Keys lists the keys in order.
func (p Params) Keys() []string {
	keys := make([]string, len(p))
	for i, kv := range p {
		keys[i] = kv.Key
	}
	return keys
}

// Map returns the parameters as a plain map.
func (p Params) Map() map[string]any {
	m := make(map[string]any, len(p))
	for _, kv := range p {
		m[kv.Key] = kv.Value
	}
	return m
}

// FromMap builds Params from a map with keys in sorted order.
func FromMap(m map[string]any) Params {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	p := make(Params, 0, len(m))
	for _, k := range keys {
		p = append(p, Param{Key: k, Value: m[k]})
	}
	return p
}

// Float returns the numeric value under key, or def. Integers are accepted.
func (p Params) Float(key string, def float64) float64 {
	v, ok := p.Get(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return def
	}
}

// Int returns the integer value under key, or def. Floats are accepted only
// when they hold a whole number.
func (p Params) Int(key string, def int) int {
	v, ok := p.Get(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		if n == math.Trunc(n) && math.Abs(n) <= math.MaxInt32 {
			return int(n)
		}
	}
	return def
}

// Int64 is Int for 64-bit values such as seeds.
func (p Params) Int64(key string, def int64) int64 {
	v, ok := p.Get(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n)
		}
	}
	return def
}

// String returns the string value under key, or def.
func (p Params) String(key, def string) string {
	if s, ok := p.lookupString(key); ok {
		return s
	}
	return def
}

func (p Params) lookupString(key string) (string, bool) {
	v, ok := p.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Prefixed returns the parameters whose key starts with prefix+".", with the
// prefix removed.
func (p Params) Prefixed(prefix string) Params {
	var out Params
	for _, kv := range p {
		if rest, ok := strings.CutPrefix(kv.Key, prefix+"."); ok {
			out = append(out, Param{Key: rest, Value: kv.Value})
		}
	}
	return out
}

// ParseParam parses "key=value" as given on a command line. The value
// becomes an int, a float, a bool or a string, in that order of preference.
func ParseParam(s string) (Param, error) {
	key, raw, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return Param{}, fmt.Errorf("parameter %q must have the form key=value", s)
	}
	raw = strings.TrimSpace(raw)
	if i, err := strconv.Atoi(raw); err == nil {
		return Param{Key: key, Value: i}, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Param{Key: key, Value: f}, nil
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return Param{Key: key, Value: b}, nil
	}
	return Param{Key: key, Value: raw}, nil
}

// UnmarshalYAML decodes a YAML mapping, keeping key order.
func (p *Params) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: optimizer parameters must be a mapping", node.Line)
	}
	out := make(Params, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var value any
		if err := node.Content[i+1].Decode(&value); err != nil {
			return err
		}
		out = append(out, Param{Key: node.Content[i].Value, Value: value})
	}
	*p = out
	return nil
}

// MarshalYAML encodes p as a mapping in key order.
func (p Params) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, kv := range p {
		var value yaml.Node
		if err := value.Encode(kv.Value); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: kv.Key},
			&value,
		)
	}
	return node, nil
}

// UnmarshalJSON decodes a JSON object, keeping key order. Numbers that are
// whole become ints.
func (p *Params) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("optimizer parameters must be a JSON object")
	}

	var out Params
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var value any
		if err := dec.Decode(&value); err != nil {
			return err
		}
		if n, ok := value.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				value = int(i)
			} else if f, err := n.Float64(); err == nil {
				value = f
			}
		}
		out = append(out, Param{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}

// MarshalJSON encodes p as a JSON object in key order.
func (p Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
